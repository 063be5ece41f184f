package bot

import (
	"nextspay/internal/domain/bot/handler"
	"nextspay/internal/domain/bot/service"
	"nextspay/internal/domain/catalog"
	catalogService "nextspay/internal/domain/catalog/service"
	"nextspay/internal/domain/notification"
	notificationService "nextspay/internal/domain/notification/service"
	"nextspay/internal/domain/order"
	orderService "nextspay/internal/domain/order/service"
	"nextspay/internal/pkg/middleware"
	"nextspay/internal/pkg/registry"
	"nextspay/internal/pkg/telegram"

	"github.com/gin-gonic/gin"
)

// BotModule Telegram 机器人模块
type BotModule struct{}

func init() {
	registry.Register(&BotModule{})
}

func (m *BotModule) Name() string {
	return "bot"
}

func (m *BotModule) Priority() int {
	return 40
}

func (m *BotModule) Init(ctx *registry.ModuleContext) error {
	client, err := registry.Lookup[*telegram.Client](ctx, notification.TelegramClientName)
	if err != nil {
		return err
	}
	notifications, err := registry.Lookup[notificationService.NotificationService](ctx, notification.ServiceName)
	if err != nil {
		return err
	}
	orders, err := registry.Lookup[orderService.OrderService](ctx, order.ServiceName)
	if err != nil {
		return err
	}
	products, err := registry.Lookup[catalogService.ProductService](ctx, catalog.ServiceName)
	if err != nil {
		return err
	}

	log := ctx.Logger.Named("bot")
	svc := service.NewBotService(client, orders, products, notifications, log)
	h := handler.NewBotHandler(svc, ctx.Config.Telegram.WebhookSecret, log)

	setupRoutes(ctx.Router, h, ctx)
	return nil
}

func setupRoutes(r *gin.Engine, h *handler.BotHandler, ctx *registry.ModuleContext) {
	r.POST("/api/telegram/webhook", h.Webhook)

	admin := r.Group("/api/admin/telegram")
	admin.Use(middleware.AuthMiddleware(ctx.Tokens))
	{
		admin.GET("", h.Admin)
		admin.POST("", h.Admin)
	}
}
