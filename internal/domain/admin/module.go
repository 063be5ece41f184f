package admin

import (
	"nextspay/internal/domain/admin/handler"
	"nextspay/internal/domain/admin/repository"
	"nextspay/internal/domain/admin/service"
	"nextspay/internal/domain/catalog"
	catalogService "nextspay/internal/domain/catalog/service"
	"nextspay/internal/domain/order"
	orderService "nextspay/internal/domain/order/service"
	"nextspay/internal/pkg/middleware"
	"nextspay/internal/pkg/registry"

	"github.com/gin-gonic/gin"
)

// ServiceName 管理员服务, 启动时用于创建默认管理员
const ServiceName = "admin.service"

// AdminModule 后台管理模块
type AdminModule struct{}

func init() {
	registry.Register(&AdminModule{})
}

func (m *AdminModule) Name() string {
	return "admin"
}

func (m *AdminModule) Priority() int {
	return 50
}

func (m *AdminModule) Init(ctx *registry.ModuleContext) error {
	orders, err := registry.Lookup[orderService.OrderService](ctx, order.ServiceName)
	if err != nil {
		return err
	}
	products, err := registry.Lookup[catalogService.ProductService](ctx, catalog.ServiceName)
	if err != nil {
		return err
	}

	// 1. 依赖注入
	repo := repository.NewAdminRepository(ctx.DB)
	svc := service.NewAdminService(repo, ctx.Tokens, orders, products, ctx.Logger.Named("admin"))
	h := handler.NewAdminHandler(svc)
	ctx.Provide(ServiceName, svc)

	// 2. 路由注册
	setupRoutes(ctx.Router, h, ctx)
	return nil
}

func setupRoutes(r *gin.Engine, h *handler.AdminHandler, ctx *registry.ModuleContext) {
	r.POST("/api/admin/login", h.Login)

	admin := r.Group("/api/admin")
	admin.Use(middleware.AuthMiddleware(ctx.Tokens))
	{
		admin.GET("/stats", h.Stats)
		admin.GET("/orders/export", h.ExportOrders)
	}
}
