package common

import (
	"nextspay/internal/domain/common/handler"
	"nextspay/internal/domain/notification"
	notificationService "nextspay/internal/domain/notification/service"
	"nextspay/internal/domain/payment"
	paymentService "nextspay/internal/domain/payment/service"
	"nextspay/internal/pkg/registry"

	"github.com/gin-gonic/gin"
)

// CommonModule 店铺公开信息模块
type CommonModule struct{}

func init() {
	registry.Register(&CommonModule{})
}

func (m *CommonModule) Name() string {
	return "common"
}

func (m *CommonModule) Priority() int {
	return 100 // 最后初始化
}

func (m *CommonModule) Init(ctx *registry.ModuleContext) error {
	payments, err := registry.Lookup[paymentService.PaymentService](ctx, payment.ServiceName)
	if err != nil {
		return err
	}
	notifications, err := registry.Lookup[notificationService.NotificationService](ctx, notification.ServiceName)
	if err != nil {
		return err
	}

	h := handler.NewSiteHandler(ctx.Config.App, payments, notifications)
	setupRoutes(ctx.Router, h)
	return nil
}

func setupRoutes(r *gin.Engine, h *handler.SiteHandler) {
	r.GET("/api/index", h.Action)
	r.POST("/api/index", h.Action)
}
