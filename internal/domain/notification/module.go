package notification

import (
	"errors"

	"nextspay/internal/domain/notification/repository"
	"nextspay/internal/domain/notification/service"
	"nextspay/internal/pkg/push"
	"nextspay/internal/pkg/registry"
	"nextspay/internal/pkg/telegram"

	"go.uber.org/zap"
)

const (
	// ServiceName 通知服务
	ServiceName = "notification.service"
	// TelegramClientName Bot 客户端, 机器人模块复用
	TelegramClientName = "notification.telegram"
)

// NotificationModule 对外通知模块
type NotificationModule struct{}

func init() {
	registry.Register(&NotificationModule{})
}

func (m *NotificationModule) Name() string {
	return "notification"
}

func (m *NotificationModule) Priority() int {
	// 订单、支付模块初始化时需要通知服务
	return 5
}

func (m *NotificationModule) Init(ctx *registry.ModuleContext) error {
	log := ctx.Logger.Named("notification")
	cfg := ctx.Config

	bot := telegram.NewClient(cfg.Telegram)
	channels := []service.Channel{service.NewTelegramChannel(bot, cfg.Telegram.ChatID)}

	var pushService push.PushService
	aliyunPush, err := push.NewAliyunPushService(cfg.Push)
	switch {
	case err == nil:
		pushService = aliyunPush
	case errors.Is(err, push.ErrPushDisabled):
	default:
		log.Error("Failed to init aliyun push", zap.Error(err))
	}
	channels = append(channels, service.NewPushChannel(pushService))

	opts := service.Options{
		Templates: cfg.Telegram.Templates,
		ParseMode: cfg.Telegram.ParseMode,
		AdminURL:  cfg.Telegram.AdminURL,
		Metrics:   ctx.Metrics,
		Logger:    log,
	}
	if ctx.Dispatcher != nil {
		opts.Tasks = ctx.Dispatcher
	}
	svc := service.NewNotificationService(repository.NewLogRepository(ctx.DB), channels, opts)

	ctx.Provide(ServiceName, svc)
	ctx.Provide(TelegramClientName, bot)

	if !bot.Enabled() {
		log.Warn("telegram notifications disabled")
	}
	return nil
}
