package service

import (
	"context"
	"sync"
	"time"

	"nextspay/internal/domain/order/model"
	"nextspay/internal/domain/order/repository"
)

// memoryOrders 订单仓储的内存实现, 条件更新语义与数据库一致
type memoryOrders struct {
	mu       sync.Mutex
	orders   map[string]*model.Order
	payments []model.Payment
	reads    int
	writes   int
}

func newMemoryOrders() *memoryOrders {
	return &memoryOrders{orders: make(map[string]*model.Order)}
}

func (r *memoryOrders) put(o model.Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o.ID = uint(len(r.orders) + 1)
	r.orders[o.OrderNo] = &o
}

func (r *memoryOrders) snapshot(orderNo string) (model.Order, []model.Payment, int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var o model.Order
	if stored, ok := r.orders[orderNo]; ok {
		o = *stored
	}
	return o, append([]model.Payment(nil), r.payments...), r.reads, r.writes
}

func (r *memoryOrders) CreateWithItems(_ context.Context, order *model.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes++
	if _, ok := r.orders[order.OrderNo]; ok {
		return repository.ErrDuplicateOrderNo
	}
	order.ID = uint(len(r.orders) + 1)
	stored := *order
	r.orders[order.OrderNo] = &stored
	return nil
}

func (r *memoryOrders) FindByOrderNo(_ context.Context, orderNo string) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reads++
	o, ok := r.orders[orderNo]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (r *memoryOrders) GetWithItems(ctx context.Context, id uint) (*model.Order, error) {
	r.mu.Lock()
	var orderNo string
	for no, o := range r.orders {
		if o.ID == id {
			orderNo = no
		}
	}
	r.mu.Unlock()
	return r.FindByOrderNo(ctx, orderNo)
}

func (r *memoryOrders) GetWithItemsByOrderNo(ctx context.Context, orderNo string) (*model.Order, error) {
	return r.FindByOrderNo(ctx, orderNo)
}

func (r *memoryOrders) List(context.Context, model.OrderFilter, int, int) ([]model.Order, int64, error) {
	return nil, 0, nil
}

func (r *memoryOrders) MarkPaid(_ context.Context, orderNo string, u repository.PaidUpdate) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderNo]
	if !ok || (o.PaymentStatus != model.PaymentStatusPending && o.PaymentStatus != model.PaymentStatusFailed) {
		return false, nil
	}
	r.writes++
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
		OrderID: o.ID, OrderNo: orderNo, PaymentType: u.PaymentType, TransactionID: u.TransactionID,
		Amount: u.Amount, Status: model.PaymentRecordPaid, PaidAt: &paidAt,
	})
	return true, nil
}

func (r *memoryOrders) MarkFailed(_ context.Context, orderNo string, u repository.FailedUpdate) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderNo]
	if !ok || o.PaymentStatus != model.PaymentStatusPending {
		return false, nil
	}
	r.writes++
	o.PaymentStatus = model.PaymentStatusFailed
	o.Version++
	r.payments = append(r.payments, model.Payment{
		OrderID: o.ID, OrderNo: orderNo, PaymentType: u.PaymentType, TransactionID: u.TransactionID,
		Amount: u.Amount, Status: model.PaymentRecordFailed, FailureReason: u.Reason,
	})
	return true, nil
}

func (r *memoryOrders) ChangeStatus(context.Context, string, repository.StatusChange) (bool, error) {
	return false, nil
}

func (r *memoryOrders) ListExpired(context.Context, time.Time, int) ([]model.Order, error) {
	return nil, nil
}

func (r *memoryOrders) ListPayments(_ context.Context, orderID uint) ([]model.Payment, error) {
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

func (r *memoryOrders) Stats(context.Context) (*model.OrderStats, error) {
	return &model.OrderStats{}, nil
}

func (r *memoryOrders) TodayStats(context.Context, time.Time, time.Time) (*model.TodayStats, error) {
	return &model.TodayStats{}, nil
}
