package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	orderModel "nextspay/internal/domain/order/model"
	orderService "nextspay/internal/domain/order/service"
	"nextspay/internal/domain/payment/model"
	"nextspay/internal/domain/payment/strategy"
	"nextspay/internal/pkg/middleware"
	"nextspay/pkg/metrics"

	"go.uber.org/zap"
)

var ErrOrderNotPayable = errors.New("order is not payable")

// Orders 支付模块依赖的订单能力
type Orders interface {
	CreateOrder(ctx context.Context, input orderService.CreateOrderInput) (*orderModel.Order, error)
	GetByOrderNo(ctx context.Context, orderNo string) (*orderModel.Order, error)
	GetLatest(ctx context.Context, orderNo string) (*orderModel.Order, error)
	MarkPaid(ctx context.Context, ev orderService.PaidEvent) (*orderService.TransitionResult, error)
	MarkFailed(ctx context.Context, ev orderService.FailedEvent) (*orderService.TransitionResult, error)
}

// Alerter 异常回调的运营告警
type Alerter interface {
	Alert(ctx context.Context, alertType, message string)
}

// CheckoutResult 下单并发起支付的结果
type CheckoutResult struct {
	Order   *orderModel.Order
	Payment *model.PayResult
}

type PaymentService interface {
	Checkout(ctx context.Context, input orderService.CreateOrderInput, opts strategy.PayOptions) (*CheckoutResult, error)
	Pay(ctx context.Context, orderNo string, opts strategy.PayOptions) (*model.PayResult, error)
	QueryOrder(ctx context.Context, orderNo string) (*orderModel.Order, error)
	HandleNotify(ctx context.Context, channel string, r *http.Request) model.Ack
	RegisterStrategy(s strategy.PaymentStrategy)
	Channels() []model.ChannelStatus
}

type paymentService struct {
	orders     Orders
	alerter    Alerter
	strategies map[string]strategy.PaymentStrategy
	metrics    *metrics.MetricsCollector
	log        *zap.Logger
	now        func() time.Time
}

func NewPaymentService(orders Orders, alerter Alerter, m *metrics.MetricsCollector, log *zap.Logger) PaymentService {
	if log == nil {
		log = zap.NewNop()
	}
	return &paymentService{
		orders:     orders,
		alerter:    alerter,
		strategies: make(map[string]strategy.PaymentStrategy),
		metrics:    m,
		log:        log,
		now:        time.Now,
	}
}

// RegisterStrategy 注册支付策略
func (s *paymentService) RegisterStrategy(st strategy.PaymentStrategy) {
	s.strategies[st.Channel()] = st
}

func (s *paymentService) Channels() []model.ChannelStatus {
	out := make([]model.ChannelStatus, 0, len(orderModel.PaymentTypes))
	for _, ch := range orderModel.PaymentTypes {
		_, ok := s.strategies[ch]
		out = append(out, model.ChannelStatus{Channel: ch, Name: channelNames[ch], Enabled: ok})
	}
	return out
}

func (s *paymentService) strategy(channel string) (strategy.PaymentStrategy, error) {
	if st, ok := s.strategies[channel]; ok {
		return st, nil
	}
	for _, ch := range orderModel.PaymentTypes {
		if ch == channel {
			return nil, fmt.Errorf("%w: %s", strategy.ErrGatewayDisabled, channel)
		}
	}
	return nil, fmt.Errorf("%w: %s", strategy.ErrUnsupportedChannel, channel)
}

// Checkout 先落库订单再调用渠道, 渠道失败时订单保持 pending 可重新发起
func (s *paymentService) Checkout(ctx context.Context, input orderService.CreateOrderInput, opts strategy.PayOptions) (*CheckoutResult, error) {
	if _, err := s.strategy(input.PaymentType); err != nil {
		return nil, err
	}
	order, err := s.orders.CreateOrder(ctx, input)
	if err != nil {
		return nil, err
	}
	res, err := s.initiate(ctx, order, opts)
	if err != nil {
		return &CheckoutResult{Order: order}, err
	}
	return &CheckoutResult{Order: order, Payment: res}, nil
}

// Pay 对已存在的待支付订单重新发起支付
func (s *paymentService) Pay(ctx context.Context, orderNo string, opts strategy.PayOptions) (*model.PayResult, error) {
	// 不走缓存, 已支付订单不能再次发起支付
	order, err := s.orders.GetLatest(ctx, orderNo)
	if err != nil {
		return nil, err
	}
	return s.initiate(ctx, order, opts)
}

func (s *paymentService) initiate(ctx context.Context, order *orderModel.Order, opts strategy.PayOptions) (*model.PayResult, error) {
	if opts.Now.IsZero() {
		opts.Now = s.now()
	}
	if !order.Payable(opts.Now) {
		return nil, fmt.Errorf("%w: %s is %s/%s", ErrOrderNotPayable, order.OrderNo, order.PaymentStatus, order.OrderStatus)
	}
	st, err := s.strategy(order.PaymentType)
	if err != nil {
		return nil, err
	}
	res, err := st.Pay(ctx, order, opts)
	if err != nil {
		s.metrics.RecordGatewayCall(order.PaymentType, gatewayResult(err))
		s.log.Warn("payment initiation failed",
			zap.String("order_no", order.OrderNo),
			zap.String("channel", order.PaymentType),
			zap.Error(err),
		)
		return nil, err
	}
	s.metrics.RecordGatewayCall(order.PaymentType, "ok")
	s.log.Info("payment initiated", zap.String("order_no", order.OrderNo), zap.String("channel", order.PaymentType))
	return res, nil
}

func (s *paymentService) QueryOrder(ctx context.Context, orderNo string) (*orderModel.Order, error) {
	return s.orders.GetByOrderNo(ctx, orderNo)
}

// HandleNotify 验签, 归一化, 推进订单状态, 返回渠道要求的应答
func (s *paymentService) HandleNotify(ctx context.Context, channel string, r *http.Request) model.Ack {
	start := s.now()
	st, err := s.strategy(channel)
	if err != nil {
		s.log.Warn("notification for unavailable channel", zap.String("channel", channel), zap.Error(err))
		s.metrics.RecordWebhook(channel, "unsupported", time.Since(start))
		return strategy.AckFor(channel, false)
	}

	// 验签通过前不读写订单
	notice, err := st.ParseNotify(ctx, r)
	if err != nil {
		s.log.Warn("notification rejected",
			zap.String("channel", channel),
			zap.String("remote_ip", r.RemoteAddr),
			zap.String("trace_id", middleware.TraceID(ctx)),
			zap.Bool("verified", false),
			zap.Error(err),
		)
		s.metrics.RecordWebhook(channel, "rejected", time.Since(start))
		return st.Ack(false)
	}

	outcome, ok := s.apply(ctx, notice)
	s.log.Info("notification handled",
		zap.String("channel", channel),
		zap.String("order_no", notice.OrderNo),
		zap.String("transaction_id", notice.TransactionID),
		zap.String("outcome", outcome),
		zap.String("trace_id", middleware.TraceID(ctx)),
		zap.Bool("verified", true),
		zap.Bool("ack", ok),
	)
	s.metrics.RecordWebhook(channel, outcome, time.Since(start))
	return st.Ack(ok)
}

// apply 返回处理结果标签及是否应答成功
func (s *paymentService) apply(ctx context.Context, n *model.Notice) (string, bool) {
	switch n.Outcome {
	case model.OutcomeSuccess:
		res, err := s.orders.MarkPaid(ctx, orderService.PaidEvent{
			OrderNo:       n.OrderNo,
			PaymentType:   n.Channel,
			TransactionID: n.TransactionID,
			Amount:        n.Amount,
			PaidAt:        n.PaidAt,
			RawPayload:    n.Raw,
		})
		switch {
		case err == nil && res.Applied:
			return "paid", true
		case err == nil:
			return "duplicate", true
		case errors.Is(err, orderService.ErrOrderNotFound):
			s.alert(ctx, "order_not_found", fmt.Sprintf("%s 支付回调的订单 %s 不存在, 交易号 %s", n.Channel, n.OrderNo, n.TransactionID))
			return "order_not_found", false
		case errors.Is(err, orderService.ErrAmountMismatch):
			s.alert(ctx, "amount_mismatch", fmt.Sprintf("订单 %s 回调金额异常: %v", n.OrderNo, err))
			return "amount_mismatch", false
		case errors.Is(err, orderService.ErrAlreadyPaidMismatch):
			s.alert(ctx, "paid_mismatch", fmt.Sprintf("订单 %s 已支付, 又收到不同交易号 %s 的支付通知, 请人工核对", n.OrderNo, n.TransactionID))
			return "paid_mismatch", true
		case errors.Is(err, orderService.ErrInvalidTransition):
			s.log.Warn("paid notification on non-payable order", zap.String("order_no", n.OrderNo), zap.Error(err))
			return "invalid_transition", true
		default:
			s.log.Error("mark paid failed", zap.String("order_no", n.OrderNo), zap.Error(err))
			return "error", false
		}

	case model.OutcomeFailure:
		res, err := s.orders.MarkFailed(ctx, orderService.FailedEvent{
			OrderNo:       n.OrderNo,
			PaymentType:   n.Channel,
			TransactionID: n.TransactionID,
			Amount:        n.Amount,
			Reason:        n.Reason,
			RawPayload:    n.Raw,
		})
		switch {
		case err == nil && res.Applied:
			return "failed", true
		case err == nil:
			return "duplicate", true
		case errors.Is(err, orderService.ErrOrderNotFound):
			s.alert(ctx, "order_not_found", fmt.Sprintf("%s 支付失败回调的订单 %s 不存在", n.Channel, n.OrderNo))
			return "order_not_found", false
		case errors.Is(err, orderService.ErrInvalidTransition):
			s.log.Warn("failed notification ignored", zap.String("order_no", n.OrderNo), zap.Error(err))
			return "invalid_transition", true
		default:
			s.log.Error("mark failed failed", zap.String("order_no", n.OrderNo), zap.Error(err))
			return "error", false
		}

	default:
		return "ignored", true
	}
}

func (s *paymentService) alert(ctx context.Context, alertType, message string) {
	s.log.Warn("payment anomaly", zap.String("alert", alertType), zap.String("message", message))
	if s.alerter != nil {
		s.alerter.Alert(ctx, alertType, message)
	}
}

func gatewayResult(err error) string {
	switch {
	case errors.Is(err, strategy.ErrGatewayUnavailable):
		return "unavailable"
	case errors.Is(err, strategy.ErrGatewayRejected):
		return "rejected"
	default:
		return "error"
	}
}

var channelNames = map[string]string{
	orderModel.PaymentTypeWechat:   "微信支付",
	orderModel.PaymentTypeAlipay:   "支付宝",
	orderModel.PaymentTypeUnionPay: "银联支付",
	orderModel.PaymentTypeStripe:   "Stripe",
}
