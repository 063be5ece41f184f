package service

import (
	"context"
	"sync"
	"time"

	"nextspay/internal/domain/order/model"
	"nextspay/internal/domain/order/repository"
)

// memoryRepo 带条件更新语义的内存仓储
type memoryRepo struct {
	mu         sync.Mutex
	orders     map[string]*model.Order
	payments   []model.Payment
	nextID     uint
	duplicates int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{orders: make(map[string]*model.Order)}
}

func (r *memoryRepo) put(o model.Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	o.ID = r.nextID
	r.orders[o.OrderNo] = &o
}

func (r *memoryRepo) paymentCount(status string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, p := range r.payments {
		if p.Status == status {
			n++
		}
	}
	return n
}

func (r *memoryRepo) CreateWithItems(_ context.Context, order *model.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.duplicates > 0 {
		r.duplicates--
		return repository.ErrDuplicateOrderNo
	}
	if _, ok := r.orders[order.OrderNo]; ok {
		return repository.ErrDuplicateOrderNo
	}
	r.nextID++
	order.ID = r.nextID
	for i := range order.Items {
		order.Items[i].OrderID = order.ID
		order.Items[i].ID = uint(i + 1)
	}
	stored := *order
	stored.Items = append([]model.OrderItem(nil), order.Items...)
	r.orders[order.OrderNo] = &stored
	return nil
}

func (r *memoryRepo) FindByOrderNo(_ context.Context, orderNo string) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderNo]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	cp := *o
	cp.Items = nil
	return &cp, nil
}

func (r *memoryRepo) GetWithItems(_ context.Context, id uint) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.ID == id {
			cp := *o
			return &cp, nil
		}
	}
	return nil, repository.ErrOrderNotFound
}

func (r *memoryRepo) GetWithItemsByOrderNo(_ context.Context, orderNo string) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderNo]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (r *memoryRepo) List(_ context.Context, filter model.OrderFilter, offset, limit int) ([]model.Order, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Order
	for _, o := range r.orders {
		if filter.PaymentStatus != "" && o.PaymentStatus != filter.PaymentStatus {
			continue
		}
		out = append(out, *o)
	}
	total := int64(len(out))
	if offset >= len(out) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(out) {
		end = len(out)
	}
	return out[offset:end], total, nil
}

func (r *memoryRepo) MarkPaid(_ context.Context, orderNo string, u repository.PaidUpdate) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderNo]
	if !ok || (o.PaymentStatus != model.PaymentStatusPending && o.PaymentStatus != model.PaymentStatusFailed) {
		return false, nil
	}
	paidAt := u.PaidAt
	o.PaymentStatus = model.PaymentStatusPaid
	if o.OrderStatus == model.OrderStatusPending {
		o.OrderStatus = model.OrderStatusConfirmed
	}
	o.PaymentType = u.PaymentType
	o.TransactionID = u.TransactionID
	o.PaidAt = &paidAt
	o.Version++
	r.payments = append(r.payments, model.Payment{
		OrderID: o.ID, OrderNo: orderNo, PaymentType: u.PaymentType,
		TransactionID: u.TransactionID, Amount: u.Amount, Status: model.PaymentRecordPaid, PaidAt: &paidAt,
	})
	return true, nil
}

func (r *memoryRepo) MarkFailed(_ context.Context, orderNo string, u repository.FailedUpdate) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderNo]
	if !ok || o.PaymentStatus != model.PaymentStatusPending {
		return false, nil
	}
	o.PaymentStatus = model.PaymentStatusFailed
	o.Version++
	r.payments = append(r.payments, model.Payment{
		OrderID: o.ID, OrderNo: orderNo, PaymentType: u.PaymentType,
		TransactionID: u.TransactionID, Amount: u.Amount, Status: model.PaymentRecordFailed, FailureReason: u.Reason,
	})
	return true, nil
}

func (r *memoryRepo) ChangeStatus(_ context.Context, orderNo string, change repository.StatusChange) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderNo]
	if !ok || !contains(change.From, o.OrderStatus) {
		return false, nil
	}
	if len(change.PaymentStatus) > 0 && !contains(change.PaymentStatus, o.PaymentStatus) {
		return false, nil
	}
	for k, v := range change.Updates {
		switch k {
		case "order_status":
			o.OrderStatus = v.(string)
		case "cancel_reason":
			o.CancelReason = v.(string)
		case "cancelled_at":
			t := v.(time.Time)
			o.CancelledAt = &t
		case "shipped_at":
			t := v.(time.Time)
			o.ShippedAt = &t
		case "delivered_at":
			t := v.(time.Time)
			o.DeliveredAt = &t
		}
	}
	o.Version++
	return true, nil
}

func (r *memoryRepo) ListExpired(_ context.Context, now time.Time, limit int) ([]model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Order
	for _, o := range r.orders {
		if o.OrderStatus == model.OrderStatusPending && o.PaymentStatus != model.PaymentStatusPaid &&
			o.ExpireAt != nil && o.ExpireAt.Before(now) {
			out = append(out, *o)
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (r *memoryRepo) ListPayments(_ context.Context, orderID uint) ([]model.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Payment
	for _, p := range r.payments {
		if p.OrderID == orderID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memoryRepo) Stats(context.Context) (*model.OrderStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := &model.OrderStats{Total: int64(len(r.orders))}
	for _, o := range r.orders {
		if o.IsPaid() {
			stats.Paid++
			stats.PaidAmount = stats.PaidAmount.Add(o.FinalAmount)
		}
	}
	return stats, nil
}

func (r *memoryRepo) TodayStats(context.Context, time.Time, time.Time) (*model.TodayStats, error) {
	return &model.TodayStats{}, nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
