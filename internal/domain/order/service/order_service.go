package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	catalogModel "nextspay/internal/domain/catalog/model"
	catalogService "nextspay/internal/domain/catalog/service"
	"nextspay/internal/domain/order/model"
	"nextspay/internal/domain/order/repository"
	"nextspay/internal/pkg/config"
	"nextspay/internal/pkg/worker"
	"nextspay/pkg/cache"
	"nextspay/pkg/metrics"
	"nextspay/pkg/utils"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	ErrOrderNotFound       = repository.ErrOrderNotFound
	ErrInvalidOrder        = errors.New("invalid order")
	ErrInvalidTransition   = errors.New("invalid order transition")
	ErrAlreadyPaidMismatch = errors.New("order already paid by another transaction")
	ErrAmountMismatch      = errors.New("paid amount does not match order amount")
	ErrInsufficientStock   = catalogService.ErrInsufficientStock
)

const (
	orderNoAttempts = 3
	expireBatchSize = 100
	orderCacheKey   = "order:"
	// 状态迁移后写入的版本标记, 回填缓存时据此丢弃旧数据
	orderVersionKey = "order:version:"
)

// ProductCatalog 订单依赖的商品能力
type ProductCatalog interface {
	GetByIDs(ctx context.Context, ids []uint) (map[uint]catalogModel.Product, error)
	DecreaseStock(ctx context.Context, id uint, qty int) (*catalogService.StockResult, error)
}

// Notifier 订单事件通知
type Notifier interface {
	OrderEvent(ctx context.Context, event string, order *model.Order, reason string)
	Skip(ctx context.Context, event, reference, reason string)
	Alert(ctx context.Context, alertType, message string)
	LowStock(ctx context.Context, productID uint, name string, remaining, minStock int)
}

// TaskSubmitter 异步任务入队
type TaskSubmitter interface {
	Submit(task worker.Task) error
}

// ItemInput 下单商品
type ItemInput struct {
	ProductID uint `json:"productId" binding:"required"`
	Quantity  int  `json:"quantity" binding:"required,gt=0"`
}

// CreateOrderInput 下单请求
type CreateOrderInput struct {
	Items           []ItemInput     `json:"items" binding:"required,min=1,dive"`
	PaymentType     string          `json:"paymentType" binding:"required,oneof=wechat alipay unionpay stripe"`
	CustomerName    string          `json:"customerName" binding:"required,max=100"`
	CustomerEmail   string          `json:"customerEmail" binding:"omitempty,email"`
	CustomerPhone   string          `json:"customerPhone" binding:"max=30"`
	ShippingName    string          `json:"shippingName" binding:"max=100"`
	ShippingPhone   string          `json:"shippingPhone" binding:"max=30"`
	ShippingAddress string          `json:"shippingAddress" binding:"max=500"`
	Remark          string          `json:"remark"`
	UserID          *uint           `json:"-"`
	DiscountAmount  decimal.Decimal `json:"-"`
}

// PaidEvent 已验签的支付成功事件
type PaidEvent struct {
	OrderNo       string
	PaymentType   string
	TransactionID string
	Amount        decimal.Decimal
	PaidAt        time.Time
	RawPayload    []byte
}

// FailedEvent 已验签的支付失败事件
type FailedEvent struct {
	OrderNo       string
	PaymentType   string
	TransactionID string
	Amount        decimal.Decimal
	Reason        string
	RawPayload    []byte
}

// TransitionResult 状态迁移结果, Applied=false 表示重复事件未产生变更
type TransitionResult struct {
	Order   *model.Order
	Applied bool
}

type OrderService interface {
	CreateOrder(ctx context.Context, input CreateOrderInput) (*model.Order, error)
	GetByOrderNo(ctx context.Context, orderNo string) (*model.Order, error)
	GetLatest(ctx context.Context, orderNo string) (*model.Order, error)
	Get(ctx context.Context, id uint) (*model.Order, error)
	List(ctx context.Context, filter model.OrderFilter, page utils.Pagination) (utils.PageResult, error)
	Payments(ctx context.Context, orderNo string) ([]model.Payment, error)
	MarkPaid(ctx context.Context, ev PaidEvent) (*TransitionResult, error)
	MarkFailed(ctx context.Context, ev FailedEvent) (*TransitionResult, error)
	Cancel(ctx context.Context, orderNo, reason string) (*TransitionResult, error)
	Ship(ctx context.Context, orderNo string) (*TransitionResult, error)
	Deliver(ctx context.Context, orderNo string) (*TransitionResult, error)
	ExpireOverdue(ctx context.Context) (int, error)
	Stats(ctx context.Context) (*model.OrderStats, error)
	TodayStats(ctx context.Context) (*model.TodayStats, error)
}

// Dependencies 订单服务的外部依赖, 可选项为空时使用默认实现
type Dependencies struct {
	Catalog  ProductCatalog
	Notifier Notifier
	Tasks    TaskSubmitter
	Cache    cache.Cache
	CacheTTL time.Duration
	Metrics  *metrics.MetricsCollector
	Logger   *zap.Logger
	Now      func() time.Time
}

type orderService struct {
	repo        repository.OrderRepository
	catalog     ProductCatalog
	notifier    Notifier
	tasks       TaskSubmitter
	cache       cache.Cache
	cacheTTL    time.Duration
	metrics     *metrics.MetricsCollector
	log         *zap.Logger
	now         func() time.Time
	cfg         config.OrderConfig
	shippingFee decimal.Decimal
}

func NewOrderService(repo repository.OrderRepository, deps Dependencies, cfg config.OrderConfig) OrderService {
	s := &orderService{
		repo:     repo,
		catalog:  deps.Catalog,
		notifier: deps.Notifier,
		tasks:    deps.Tasks,
		cache:    deps.Cache,
		cacheTTL: deps.CacheTTL,
		metrics:  deps.Metrics,
		log:      deps.Logger,
		now:      deps.Now,
		cfg:      cfg,
	}
	if s.notifier == nil {
		s.notifier = nopNotifier{}
	}
	if s.tasks == nil {
		s.tasks = inlineTasks{}
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.cacheTTL <= 0 {
		s.cacheTTL = 10 * time.Minute
	}
	if cfg.ShippingFee != "" {
		fee, err := decimal.NewFromString(cfg.ShippingFee)
		if err != nil {
			s.log.Warn("invalid shipping fee, fallback to 0", zap.String("shipping_fee", cfg.ShippingFee))
		} else {
			s.shippingFee = fee.Round(2)
		}
	}
	return s
}

// CreateOrder 创建订单: 校验商品并按当前价格计算金额
func (s *orderService) CreateOrder(ctx context.Context, input CreateOrderInput) (*model.Order, error) {
	if !validPaymentType(input.PaymentType) {
		return nil, fmt.Errorf("%w: unsupported payment type %q", ErrInvalidOrder, input.PaymentType)
	}
	items, err := mergeItems(input.Items)
	if err != nil {
		return nil, err
	}
	if s.catalog == nil {
		return nil, fmt.Errorf("%w: catalog unavailable", ErrInvalidOrder)
	}

	ids := make([]uint, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}
	products, err := s.catalog.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	total := decimal.Zero
	lines := make([]model.OrderItem, 0, len(items))
	for _, it := range items {
		p, ok := products[it.ProductID]
		if !ok {
			return nil, fmt.Errorf("%w: product %d not found", ErrInvalidOrder, it.ProductID)
		}
		if !p.IsActive() {
			return nil, fmt.Errorf("%w: product %q is not on sale", ErrInvalidOrder, p.Name)
		}
		if s.cfg.CheckStock && p.Stock < it.Quantity {
			return nil, fmt.Errorf("%w: %s", ErrInsufficientStock, p.Name)
		}
		lineTotal := p.Price.Mul(decimal.NewFromInt(int64(it.Quantity))).Round(2)
		total = total.Add(lineTotal)
		lines = append(lines, model.OrderItem{
			ProductID:    p.ID,
			ProductName:  p.Name,
			ProductImage: p.ImageURL,
			Quantity:     it.Quantity,
			UnitPrice:    p.Price.Round(2),
			TotalPrice:   lineTotal,
		})
	}

	discount := input.DiscountAmount.Round(2)
	final := total.Sub(discount).Add(s.shippingFee)
	if !final.IsPositive() {
		return nil, fmt.Errorf("%w: payable amount must be positive", ErrInvalidOrder)
	}

	now := s.now()
	order := &model.Order{
		UserID:          input.UserID,
		CustomerName:    strings.TrimSpace(input.CustomerName),
		CustomerEmail:   input.CustomerEmail,
		CustomerPhone:   input.CustomerPhone,
		Subject:         subject(lines),
		TotalAmount:     total,
		DiscountAmount:  discount,
		ShippingFee:     s.shippingFee,
		FinalAmount:     final,
		PaymentType:     input.PaymentType,
		PaymentStatus:   model.PaymentStatusPending,
		OrderStatus:     model.OrderStatusPending,
		ShippingName:    input.ShippingName,
		ShippingPhone:   input.ShippingPhone,
		ShippingAddress: input.ShippingAddress,
		Remark:          input.Remark,
		Items:           lines,
	}
	if s.cfg.ExpireMinutes > 0 {
		expireAt := now.Add(time.Duration(s.cfg.ExpireMinutes) * time.Minute)
		order.ExpireAt = &expireAt
	}

	for attempt := 1; ; attempt++ {
		order.OrderNo = utils.GenerateOrderNo(s.cfg.Prefix, now)
		err = s.repo.CreateWithItems(ctx, order)
		if !errors.Is(err, repository.ErrDuplicateOrderNo) || attempt >= orderNoAttempts {
			break
		}
		s.log.Warn("order number collision, regenerating", zap.String("order_no", order.OrderNo))
	}
	if err != nil {
		return nil, err
	}

	s.log.Info("order created",
		zap.String("order_no", order.OrderNo),
		zap.String("payment_type", order.PaymentType),
		zap.String("final_amount", order.FinalAmount.StringFixed(2)),
	)
	s.notifier.OrderEvent(ctx, model.EventNewOrder, order, "")
	return order, nil
}

// GetByOrderNo 订单详情, 优先读缓存
func (s *orderService) GetByOrderNo(ctx context.Context, orderNo string) (*model.Order, error) {
	if s.cache != nil {
		var cached model.Order
		if err := s.cache.Get(ctx, orderCacheKey+orderNo, &cached); err == nil {
			return &cached, nil
		}
	}
	order, err := s.repo.GetWithItemsByOrderNo(ctx, orderNo)
	if err != nil {
		return nil, err
	}
	s.fill(ctx, order)
	return order, nil
}

// GetLatest 直接读库, 用于发起支付前的状态判断
func (s *orderService) GetLatest(ctx context.Context, orderNo string) (*model.Order, error) {
	return s.repo.GetWithItemsByOrderNo(ctx, orderNo)
}

// fill 回填缓存. 迁移方先写版本标记再删缓存, 回填后发现标记更新则撤回本次写入
func (s *orderService) fill(ctx context.Context, order *model.Order) {
	if s.cache == nil {
		return
	}
	key := orderCacheKey + order.OrderNo
	if err := s.cache.Set(ctx, key, order, s.cacheTTL); err != nil {
		s.log.Warn("failed to cache order", zap.String("order_no", order.OrderNo), zap.Error(err))
		return
	}
	var version int
	if err := s.cache.Get(ctx, orderVersionKey+order.OrderNo, &version); err != nil || version <= order.Version {
		return
	}
	if err := s.cache.Delete(ctx, key); err != nil {
		s.log.Warn("failed to drop stale order cache", zap.String("order_no", order.OrderNo), zap.Error(err))
		return
	}
	s.log.Debug("stale order cache discarded",
		zap.String("order_no", order.OrderNo), zap.Int("version", order.Version), zap.Int("latest", version))
}

func (s *orderService) Get(ctx context.Context, id uint) (*model.Order, error) {
	return s.repo.GetWithItems(ctx, id)
}

func (s *orderService) List(ctx context.Context, filter model.OrderFilter, page utils.Pagination) (utils.PageResult, error) {
	offset, limit := page.GetPageOffset()
	orders, total, err := s.repo.List(ctx, filter, offset, limit)
	if err != nil {
		return utils.PageResult{}, err
	}
	return utils.NewPageResult(orders, total, page), nil
}

func (s *orderService) Payments(ctx context.Context, orderNo string) ([]model.Payment, error) {
	order, err := s.repo.FindByOrderNo(ctx, orderNo)
	if err != nil {
		return nil, err
	}
	return s.repo.ListPayments(ctx, order.ID)
}

// MarkPaid 支付成功迁移. 同一交易号重复回调返回 Applied=false
func (s *orderService) MarkPaid(ctx context.Context, ev PaidEvent) (*TransitionResult, error) {
	order, err := s.repo.FindByOrderNo(ctx, ev.OrderNo)
	if err != nil {
		s.metrics.RecordTransition("mark_paid", "not_found")
		return nil, err
	}
	if !ev.Amount.Round(2).Equal(order.FinalAmount.Round(2)) {
		s.metrics.RecordTransition("mark_paid", "amount_mismatch")
		return &TransitionResult{Order: order}, fmt.Errorf("%w: expected %s, got %s",
			ErrAmountMismatch, order.FinalAmount.StringFixed(2), ev.Amount.StringFixed(2))
	}
	if ev.PaidAt.IsZero() {
		ev.PaidAt = s.now()
	}
	if ev.PaymentType == "" {
		ev.PaymentType = order.PaymentType
	}

	applied, err := s.repo.MarkPaid(ctx, ev.OrderNo, repository.PaidUpdate{
		PaymentType:   ev.PaymentType,
		TransactionID: ev.TransactionID,
		Amount:        ev.Amount,
		PaidAt:        ev.PaidAt,
		RawPayload:    ev.RawPayload,
	})
	if err != nil {
		s.metrics.RecordTransition("mark_paid", "error")
		return nil, err
	}

	current, err := s.repo.FindByOrderNo(ctx, ev.OrderNo)
	if err != nil {
		return nil, err
	}

	if !applied {
		switch {
		case current.IsPaid() && current.TransactionID == ev.TransactionID:
			s.metrics.RecordTransition("mark_paid", "idempotent")
			s.log.Info("duplicate payment notification ignored",
				zap.String("order_no", ev.OrderNo), zap.String("transaction_id", ev.TransactionID))
			s.notifier.Skip(ctx, model.EventPaymentSuccess, ev.OrderNo, "idempotent")
			return &TransitionResult{Order: current}, nil
		case current.IsPaid():
			s.metrics.RecordTransition("mark_paid", "mismatch")
			return &TransitionResult{Order: current}, fmt.Errorf("%w: stored %s, received %s",
				ErrAlreadyPaidMismatch, current.TransactionID, ev.TransactionID)
		default:
			s.metrics.RecordTransition("mark_paid", "rejected")
			return &TransitionResult{Order: current}, fmt.Errorf("%w: payment status %s",
				ErrInvalidTransition, current.PaymentStatus)
		}
	}

	s.metrics.RecordTransition("mark_paid", "applied")
	s.invalidate(ctx, current)
	s.log.Info("order paid",
		zap.String("order_no", ev.OrderNo),
		zap.String("payment_type", ev.PaymentType),
		zap.String("transaction_id", ev.TransactionID),
	)
	if current.OrderStatus == model.OrderStatusCancelled {
		s.notifier.Alert(ctx, "paid_after_cancel",
			fmt.Sprintf("订单 %s 已取消但收到支付 %s, 请人工处理退款", ev.OrderNo, ev.TransactionID))
	}
	s.notifier.OrderEvent(ctx, model.EventPaymentSuccess, current, "")
	s.scheduleStockDecrease(ctx, current)
	return &TransitionResult{Order: current, Applied: true}, nil
}

// MarkFailed 支付失败迁移, 仅允许从 pending 进入
func (s *orderService) MarkFailed(ctx context.Context, ev FailedEvent) (*TransitionResult, error) {
	applied, err := s.repo.MarkFailed(ctx, ev.OrderNo, repository.FailedUpdate{
		PaymentType:   ev.PaymentType,
		TransactionID: ev.TransactionID,
		Amount:        ev.Amount,
		Reason:        ev.Reason,
		RawPayload:    ev.RawPayload,
	})
	if err != nil {
		s.metrics.RecordTransition("mark_failed", "error")
		return nil, err
	}

	current, err := s.repo.FindByOrderNo(ctx, ev.OrderNo)
	if err != nil {
		s.metrics.RecordTransition("mark_failed", "not_found")
		return nil, err
	}

	if !applied {
		if current.PaymentStatus == model.PaymentStatusFailed {
			s.metrics.RecordTransition("mark_failed", "idempotent")
			s.notifier.Skip(ctx, model.EventPaymentFailed, ev.OrderNo, "idempotent")
			return &TransitionResult{Order: current}, nil
		}
		s.metrics.RecordTransition("mark_failed", "rejected")
		return &TransitionResult{Order: current}, fmt.Errorf("%w: payment status %s",
			ErrInvalidTransition, current.PaymentStatus)
	}

	s.metrics.RecordTransition("mark_failed", "applied")
	s.invalidate(ctx, current)
	s.log.Info("order payment failed", zap.String("order_no", ev.OrderNo), zap.String("reason", ev.Reason))
	s.notifier.OrderEvent(ctx, model.EventPaymentFailed, current, ev.Reason)
	return &TransitionResult{Order: current, Applied: true}, nil
}

// Cancel 取消订单, 仅 pending/confirmed 可取消
func (s *orderService) Cancel(ctx context.Context, orderNo, reason string) (*TransitionResult, error) {
	now := s.now()
	return s.changeStatus(ctx, "cancel", orderNo, repository.StatusChange{
		From: []string{model.OrderStatusPending, model.OrderStatusConfirmed},
		Updates: map[string]interface{}{
			"order_status":  model.OrderStatusCancelled,
			"cancel_reason": reason,
			"cancelled_at":  now,
		},
	}, model.EventOrderCancelled, reason)
}

// Ship 发货, 要求已支付且已确认
func (s *orderService) Ship(ctx context.Context, orderNo string) (*TransitionResult, error) {
	return s.changeStatus(ctx, "ship", orderNo, repository.StatusChange{
		From:          []string{model.OrderStatusConfirmed},
		PaymentStatus: []string{model.PaymentStatusPaid},
		Updates: map[string]interface{}{
			"order_status": model.OrderStatusShipped,
			"shipped_at":   s.now(),
		},
	}, model.EventOrderShipped, "")
}

func (s *orderService) Deliver(ctx context.Context, orderNo string) (*TransitionResult, error) {
	return s.changeStatus(ctx, "deliver", orderNo, repository.StatusChange{
		From: []string{model.OrderStatusShipped},
		Updates: map[string]interface{}{
			"order_status": model.OrderStatusDelivered,
			"delivered_at": s.now(),
		},
	}, "", "")
}

// ExpireOverdue 取消超过支付期限的订单, 返回取消数量
func (s *orderService) ExpireOverdue(ctx context.Context) (int, error) {
	now := s.now()
	orders, err := s.repo.ListExpired(ctx, now, expireBatchSize)
	if err != nil {
		return 0, err
	}

	expired := 0
	for i := range orders {
		res, err := s.changeStatus(ctx, "expire", orders[i].OrderNo, repository.StatusChange{
			From:          []string{model.OrderStatusPending},
			PaymentStatus: []string{model.PaymentStatusPending, model.PaymentStatusFailed},
			Updates: map[string]interface{}{
				"order_status":  model.OrderStatusCancelled,
				"cancel_reason": model.CancelReasonExpired,
				"cancelled_at":  now,
			},
		}, model.EventOrderCancelled, model.CancelReasonExpired)
		if errors.Is(err, ErrInvalidTransition) {
			// 过期扫描期间订单已被支付或取消
			continue
		}
		if err != nil {
			return expired, err
		}
		if res.Applied {
			expired++
		}
	}
	if expired > 0 {
		s.log.Info("expired orders cancelled", zap.Int("count", expired))
	}
	return expired, nil
}

func (s *orderService) Stats(ctx context.Context) (*model.OrderStats, error) {
	return s.repo.Stats(ctx)
}

func (s *orderService) TodayStats(ctx context.Context) (*model.TodayStats, error) {
	now := s.now()
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return s.repo.TodayStats(ctx, from, from.AddDate(0, 0, 1))
}

func (s *orderService) changeStatus(ctx context.Context, transition, orderNo string, change repository.StatusChange, event, reason string) (*TransitionResult, error) {
	applied, err := s.repo.ChangeStatus(ctx, orderNo, change)
	if err != nil {
		s.metrics.RecordTransition(transition, "error")
		return nil, err
	}
	current, err := s.repo.FindByOrderNo(ctx, orderNo)
	if err != nil {
		s.metrics.RecordTransition(transition, "not_found")
		return nil, err
	}
	if !applied {
		s.metrics.RecordTransition(transition, "rejected")
		return &TransitionResult{Order: current}, fmt.Errorf("%w: cannot %s order in status %s/%s",
			ErrInvalidTransition, transition, current.OrderStatus, current.PaymentStatus)
	}

	s.metrics.RecordTransition(transition, "applied")
	s.invalidate(ctx, current)
	s.log.Info("order status changed",
		zap.String("order_no", orderNo),
		zap.String("transition", transition),
		zap.String("order_status", current.OrderStatus),
	)
	if event != "" {
		s.notifier.OrderEvent(ctx, event, current, reason)
	}
	return &TransitionResult{Order: current, Applied: true}, nil
}

// scheduleStockDecrease 支付成功后异步扣减库存, 扣减失败不影响支付结果
func (s *orderService) scheduleStockDecrease(ctx context.Context, order *model.Order) {
	if !s.cfg.DecreaseStockOnPaid || s.catalog == nil {
		return
	}
	items := order.Items
	if len(items) == 0 {
		loaded, err := s.repo.GetWithItems(ctx, order.ID)
		if err != nil {
			s.log.Error("failed to load order items for stock", zap.String("order_no", order.OrderNo), zap.Error(err))
			return
		}
		items = loaded.Items
	}

	for _, item := range items {
		item := item
		err := s.tasks.Submit(worker.Task{
			Name:     "stock.decrease:" + order.OrderNo,
			// 扣减不幂等, 失败只告警由人工核对
			MaxRetry: 0,
			Run: func(ctx context.Context) error {
				res, err := s.catalog.DecreaseStock(ctx, item.ProductID, item.Quantity)
				if errors.Is(err, catalogService.ErrInsufficientStock) {
					s.notifier.Alert(ctx, "stock_shortage",
						fmt.Sprintf("订单 %s 商品 %s 库存不足, 需要 %d", order.OrderNo, item.ProductName, item.Quantity))
					return nil
				}
				if err != nil {
					s.log.Error("stock decrease failed",
						zap.String("order_no", order.OrderNo),
						zap.Uint("product_id", item.ProductID),
						zap.Error(err),
					)
					s.notifier.Alert(ctx, "stock_decrease_failed",
						fmt.Sprintf("订单 %s 商品 %s 扣减库存失败, 数量 %d: %v", order.OrderNo, item.ProductName, item.Quantity, err))
					return nil
				}
				if res.Low() {
					s.notifier.LowStock(ctx, res.ProductID, res.Name, res.Remaining, res.MinStock)
				}
				return nil
			},
		})
		if err != nil {
			s.log.Error("failed to submit stock task", zap.String("order_no", order.OrderNo), zap.Error(err))
		}
	}
}

// invalidate 先写版本标记再删除缓存
func (s *orderService) invalidate(ctx context.Context, order *model.Order) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, orderVersionKey+order.OrderNo, order.Version, s.cacheTTL); err != nil {
		s.log.Warn("failed to mark order version", zap.String("order_no", order.OrderNo), zap.Error(err))
	}
	if err := s.cache.Delete(ctx, orderCacheKey+order.OrderNo); err != nil {
		s.log.Warn("failed to invalidate order cache", zap.String("order_no", order.OrderNo), zap.Error(err))
	}
}

func validPaymentType(t string) bool {
	for _, pt := range model.PaymentTypes {
		if pt == t {
			return true
		}
	}
	return false
}

// mergeItems 合并重复商品并校验数量
func mergeItems(in []ItemInput) ([]ItemInput, error) {
	if len(in) == 0 {
		return nil, fmt.Errorf("%w: no items", ErrInvalidOrder)
	}
	index := make(map[uint]int, len(in))
	out := make([]ItemInput, 0, len(in))
	for _, it := range in {
		if it.ProductID == 0 || it.Quantity <= 0 {
			return nil, fmt.Errorf("%w: invalid item %d x %d", ErrInvalidOrder, it.ProductID, it.Quantity)
		}
		if i, ok := index[it.ProductID]; ok {
			out[i].Quantity += it.Quantity
			continue
		}
		index[it.ProductID] = len(out)
		out = append(out, it)
	}
	return out, nil
}

func subject(items []model.OrderItem) string {
	if len(items) == 0 {
		return ""
	}
	if len(items) == 1 {
		return items[0].ProductName
	}
	return fmt.Sprintf("%s 等%d件商品", items[0].ProductName, len(items))
}

type nopNotifier struct{}

func (nopNotifier) OrderEvent(context.Context, string, *model.Order, string) {}
func (nopNotifier) Skip(context.Context, string, string, string)             {}
func (nopNotifier) Alert(context.Context, string, string)                    {}
func (nopNotifier) LowStock(context.Context, uint, string, int, int)         {}

// inlineTasks 未配置派发器时同步执行
type inlineTasks struct{}

func (inlineTasks) Submit(task worker.Task) error {
	return task.Run(context.Background())
}
