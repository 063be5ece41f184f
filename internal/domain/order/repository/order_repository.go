package repository

import (
	"context"
	"errors"
	"time"

	"nextspay/internal/domain/order/model"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrOrderNotFound    = errors.New("order not found")
	ErrDuplicateOrderNo = errors.New("duplicate order number")
)

// PaidUpdate 支付成功事件落库所需字段
type PaidUpdate struct {
	PaymentType   string
	TransactionID string
	Amount        decimal.Decimal
	PaidAt        time.Time
	RawPayload    []byte
}

// FailedUpdate 支付失败事件落库所需字段
type FailedUpdate struct {
	PaymentType   string
	TransactionID string
	Amount        decimal.Decimal
	Reason        string
	RawPayload    []byte
}

// StatusChange 履约状态的条件更新
type StatusChange struct {
	From          []string
	PaymentStatus []string
	Updates       map[string]interface{}
}

type OrderRepository interface {
	CreateWithItems(ctx context.Context, order *model.Order) error
	FindByOrderNo(ctx context.Context, orderNo string) (*model.Order, error)
	GetWithItems(ctx context.Context, id uint) (*model.Order, error)
	GetWithItemsByOrderNo(ctx context.Context, orderNo string) (*model.Order, error)
	List(ctx context.Context, filter model.OrderFilter, offset, limit int) ([]model.Order, int64, error)
	MarkPaid(ctx context.Context, orderNo string, u PaidUpdate) (bool, error)
	MarkFailed(ctx context.Context, orderNo string, u FailedUpdate) (bool, error)
	ChangeStatus(ctx context.Context, orderNo string, change StatusChange) (bool, error)
	ListExpired(ctx context.Context, now time.Time, limit int) ([]model.Order, error)
	ListPayments(ctx context.Context, orderID uint) ([]model.Payment, error)
	Stats(ctx context.Context) (*model.OrderStats, error)
	TodayStats(ctx context.Context, from, to time.Time) (*model.TodayStats, error)
}

type orderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

// CreateWithItems 在同一事务中写入订单及明细
func (r *orderRepository) CreateWithItems(ctx context.Context, order *model.Order) error {
	items := order.Items
	order.Items = nil
	defer func() { order.Items = items }()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(order).Error; err != nil {
			return err
		}
		for i := range items {
			items[i].OrderID = order.ID
		}
		if len(items) > 0 {
			if err := tx.Create(&items).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if isUniqueViolation(err) {
		return ErrDuplicateOrderNo
	}
	return err
}

func (r *orderRepository) FindByOrderNo(ctx context.Context, orderNo string) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).Where("order_no = ?", orderNo).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) GetWithItems(ctx context.Context, id uint) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).Preload("Items").First(&order, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) GetWithItemsByOrderNo(ctx context.Context, orderNo string) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).Preload("Items").Where("order_no = ?", orderNo).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) List(ctx context.Context, filter model.OrderFilter, offset, limit int) ([]model.Order, int64, error) {
	var orders []model.Order
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Order{})
	if filter.OrderNo != "" {
		query = query.Where("order_no = ?", filter.OrderNo)
	}
	if filter.PaymentStatus != "" {
		query = query.Where("payment_status = ?", filter.PaymentStatus)
	}
	if filter.OrderStatus != "" {
		query = query.Where("order_status = ?", filter.OrderStatus)
	}
	if filter.PaymentType != "" {
		query = query.Where("payment_type = ?", filter.PaymentType)
	}
	if filter.From != nil {
		query = query.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("created_at < ?", filter.To.AddDate(0, 0, 1))
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&orders).Error
	return orders, total, err
}

// MarkPaid 条件更新为已支付并追加支付记录. 返回 false 表示订单当前状态不满足条件
func (r *orderRepository) MarkPaid(ctx context.Context, orderNo string, u PaidUpdate) (bool, error) {
	applied := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&model.Order{}).
			Where("order_no = ? AND payment_status IN ?", orderNo,
				[]string{model.PaymentStatusPending, model.PaymentStatusFailed}).
			Updates(map[string]interface{}{
				"payment_status": model.PaymentStatusPaid,
				"order_status": gorm.Expr("CASE WHEN order_status = ? THEN ? ELSE order_status END",
					model.OrderStatusPending, model.OrderStatusConfirmed),
				"payment_type":   u.PaymentType,
				"transaction_id": u.TransactionID,
				"paid_at":        u.PaidAt,
				"version":        gorm.Expr("version + 1"),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}

		var orderID uint
		if err := tx.Model(&model.Order{}).Select("id").Where("order_no = ?", orderNo).Scan(&orderID).Error; err != nil {
			return err
		}
		paidAt := u.PaidAt
		record := model.Payment{
			OrderID:       orderID,
			OrderNo:       orderNo,
			PaymentType:   u.PaymentType,
			TransactionID: u.TransactionID,
			Amount:        u.Amount,
			Status:        model.PaymentRecordPaid,
			RawPayload:    rawJSON(u.RawPayload),
			PaidAt:        &paidAt,
		}
		if err := tx.Create(&record).Error; err != nil {
			return err
		}
		applied = true
		return nil
	})
	return applied, err
}

// MarkFailed 条件更新为支付失败并追加失败记录, 仅允许从 pending 迁移
func (r *orderRepository) MarkFailed(ctx context.Context, orderNo string, u FailedUpdate) (bool, error) {
	applied := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&model.Order{}).
			Where("order_no = ? AND payment_status = ?", orderNo, model.PaymentStatusPending).
			Updates(map[string]interface{}{
				"payment_status": model.PaymentStatusFailed,
				"version":        gorm.Expr("version + 1"),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}

		var orderID uint
		if err := tx.Model(&model.Order{}).Select("id").Where("order_no = ?", orderNo).Scan(&orderID).Error; err != nil {
			return err
		}
		record := model.Payment{
			OrderID:       orderID,
			OrderNo:       orderNo,
			PaymentType:   u.PaymentType,
			TransactionID: u.TransactionID,
			Amount:        u.Amount,
			Status:        model.PaymentRecordFailed,
			FailureReason: u.Reason,
			RawPayload:    rawJSON(u.RawPayload),
		}
		if err := tx.Create(&record).Error; err != nil {
			return err
		}
		applied = true
		return nil
	})
	return applied, err
}

// ChangeStatus 履约状态条件更新, 条件不满足时返回 false
func (r *orderRepository) ChangeStatus(ctx context.Context, orderNo string, change StatusChange) (bool, error) {
	updates := make(map[string]interface{}, len(change.Updates)+1)
	for k, v := range change.Updates {
		updates[k] = v
	}
	updates["version"] = gorm.Expr("version + 1")

	query := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("order_no = ? AND order_status IN ?", orderNo, change.From)
	if len(change.PaymentStatus) > 0 {
		query = query.Where("payment_status IN ?", change.PaymentStatus)
	}
	result := query.Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ListExpired 查询已过支付期限的待支付订单
func (r *orderRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]model.Order, error) {
	var orders []model.Order
	err := r.db.WithContext(ctx).
		Where("order_status = ? AND payment_status IN ? AND expire_at < ?",
			model.OrderStatusPending,
			[]string{model.PaymentStatusPending, model.PaymentStatusFailed},
			now).
		Order("expire_at ASC").
		Limit(limit).
		Find(&orders).Error
	return orders, err
}

func (r *orderRepository) ListPayments(ctx context.Context, orderID uint) ([]model.Payment, error) {
	var payments []model.Payment
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Order("id ASC").Find(&payments).Error
	return payments, err
}

func (r *orderRepository) Stats(ctx context.Context) (*model.OrderStats, error) {
	var stats model.OrderStats
	err := r.db.WithContext(ctx).Model(&model.Order{}).Select(`
		COUNT(*) AS total,
		COUNT(*) FILTER (WHERE payment_status = 'pending') AS pending,
		COUNT(*) FILTER (WHERE payment_status = 'paid') AS paid,
		COUNT(*) FILTER (WHERE payment_status = 'failed') AS failed,
		COUNT(*) FILTER (WHERE payment_status = 'refunded') AS refunded,
		COUNT(*) FILTER (WHERE order_status = 'shipped') AS shipped,
		COUNT(*) FILTER (WHERE order_status = 'delivered') AS delivered,
		COUNT(*) FILTER (WHERE order_status = 'cancelled') AS cancelled,
		COALESCE(SUM(final_amount) FILTER (WHERE payment_status = 'paid'), 0) AS paid_amount`).
		Scan(&stats).Error
	return &stats, err
}

func (r *orderRepository) TodayStats(ctx context.Context, from, to time.Time) (*model.TodayStats, error) {
	var stats model.TodayStats
	err := r.db.WithContext(ctx).Model(&model.Order{}).
		Select(`
		COUNT(*) AS total,
		COUNT(*) FILTER (WHERE payment_status = 'paid') AS paid,
		COALESCE(SUM(final_amount) FILTER (WHERE payment_status = 'paid'), 0) AS amount`).
		Where("created_at >= ? AND created_at < ?", from, to).
		Scan(&stats).Error
	return &stats, err
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func rawJSON(b []byte) datatypes.JSON {
	if len(b) == 0 {
		return nil
	}
	return datatypes.JSON(b)
}
