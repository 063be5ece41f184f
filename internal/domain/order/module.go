package order

import (
	"context"
	"time"

	"nextspay/internal/domain/catalog"
	catalogService "nextspay/internal/domain/catalog/service"
	"nextspay/internal/domain/notification"
	"nextspay/internal/domain/order/handler"
	"nextspay/internal/domain/order/repository"
	"nextspay/internal/domain/order/service"
	"nextspay/internal/pkg/middleware"
	"nextspay/internal/pkg/registry"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ServiceName 暴露给支付、机器人等模块的订单服务名
const ServiceName = "order.service"

// OrderModule 订单模块
type OrderModule struct{}

func init() {
	registry.Register(&OrderModule{})
}

func (m *OrderModule) Name() string {
	return "order"
}

func (m *OrderModule) Priority() int {
	return 20
}

func (m *OrderModule) Init(ctx *registry.ModuleContext) error {
	products, err := registry.Lookup[catalogService.ProductService](ctx, catalog.ServiceName)
	if err != nil {
		return err
	}
	notifier, err := registry.Lookup[service.Notifier](ctx, notification.ServiceName)
	if err != nil {
		return err
	}

	// 1. 依赖注入
	log := ctx.Logger.Named("order")
	repo := repository.NewOrderRepository(ctx.DB)
	deps := service.Dependencies{
		Catalog:  products,
		Notifier: notifier,
		Cache:    ctx.Cache,
		CacheTTL: ctx.Config.Redis.OrderTTL,
		Metrics:  ctx.Metrics,
		Logger:   log,
	}
	if ctx.Dispatcher != nil {
		deps.Tasks = ctx.Dispatcher
	}
	orderService := service.NewOrderService(repo, deps, ctx.Config.Order)
	h := handler.NewOrderHandler(orderService)
	ctx.Provide(ServiceName, orderService)

	// 2. 过期订单扫描
	if sec := ctx.Config.Order.ExpireSweepSeconds; sec > 0 {
		sweepCtx, cancel := context.WithCancel(context.Background())
		go sweepExpired(sweepCtx, orderService, time.Duration(sec)*time.Second, log)
		ctx.OnShutdown(cancel)
	}

	// 3. 路由注册
	setupRoutes(ctx.Router, h, ctx)
	return nil
}

func sweepExpired(ctx context.Context, orders service.OrderService, interval time.Duration, log *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := orders.ExpireOverdue(ctx); err != nil {
				log.Error("expire overdue orders failed", zap.Error(err))
			}
		}
	}
}

func setupRoutes(r *gin.Engine, h *handler.OrderHandler, ctx *registry.ModuleContext) {
	r.GET("/api/orders/:orderNo", h.GetOrder)

	admin := r.Group("/api/admin/orders")
	admin.Use(middleware.AuthMiddleware(ctx.Tokens))
	{
		admin.GET("", h.ListOrders)
		admin.GET("/stats", h.OrderStats)
		admin.GET("/detail/:id", h.GetOrderDetail)
		admin.POST("/:orderNo/cancel", h.CancelOrder)
		admin.POST("/:orderNo/ship", h.ShipOrder)
		admin.POST("/:orderNo/deliver", h.DeliverOrder)
	}
}
