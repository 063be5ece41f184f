package payment

import (
	"net/http"

	"nextspay/internal/domain/notification"
	"nextspay/internal/domain/order"
	orderService "nextspay/internal/domain/order/service"
	"nextspay/internal/domain/payment/handler"
	"nextspay/internal/domain/payment/service"
	"nextspay/internal/domain/payment/strategy"
	"nextspay/internal/pkg/config"
	"nextspay/internal/pkg/registry"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ServiceName 暴露给后台的支付服务名
const ServiceName = "payment.service"

// PaymentModule 支付模块
type PaymentModule struct{}

func init() {
	registry.Register(&PaymentModule{})
}

func (m *PaymentModule) Name() string {
	return "payment"
}

func (m *PaymentModule) Priority() int {
	// 支付模块依赖订单模块
	return 30
}

func (m *PaymentModule) Init(ctx *registry.ModuleContext) error {
	orders, err := registry.Lookup[orderService.OrderService](ctx, order.ServiceName)
	if err != nil {
		return err
	}
	alerter, err := registry.Lookup[orderService.Notifier](ctx, notification.ServiceName)
	if err != nil {
		return err
	}

	// 1. 依赖注入
	log := ctx.Logger.Named("payment")
	pService := service.NewPaymentService(orders, alerter, ctx.Metrics, log)

	// 2. 注册支付策略, 未启用或配置错误的渠道不注册
	registerStrategies(pService, ctx.Config.Payment, log)

	pHandler := handler.NewPaymentHandler(pService)
	ctx.Provide(ServiceName, pService)

	// 3. 路由注册
	setupRoutes(ctx.Router, pHandler)
	return nil
}

func registerStrategies(s service.PaymentService, cfg config.PaymentConfig, log *zap.Logger) {
	register := func(name string, enabled bool, build func() (strategy.PaymentStrategy, error)) {
		if !enabled {
			return
		}
		st, err := build()
		if err != nil {
			log.Error("failed to init payment strategy", zap.String("channel", name), zap.Error(err))
			return
		}
		s.RegisterStrategy(st)
		log.Info("payment strategy registered", zap.String("channel", name))
	}

	register("wechat", cfg.Wechat.Enabled, func() (strategy.PaymentStrategy, error) {
		return strategy.NewWechatStrategy(cfg.Wechat, &http.Client{})
	})
	register("alipay", cfg.Alipay.Enabled, func() (strategy.PaymentStrategy, error) {
		return strategy.NewAlipayStrategy(cfg.Alipay)
	})
	register("unionpay", cfg.UnionPay.Enabled, func() (strategy.PaymentStrategy, error) {
		return strategy.NewUnionPayStrategy(cfg.UnionPay)
	})
	register("stripe", cfg.Stripe.Enabled, func() (strategy.PaymentStrategy, error) {
		return strategy.NewStripeStrategy(cfg.Stripe)
	})
}

func setupRoutes(r *gin.Engine, h *handler.PaymentHandler) {
	g := r.Group("/api/payment")

	g.GET("", h.Action)
	g.POST("", h.Action)

	// 支付回调 (无需鉴权，但需验签)
	g.POST("/notify", h.Notify)
	g.POST("/notify/:type", h.Notify)
}
