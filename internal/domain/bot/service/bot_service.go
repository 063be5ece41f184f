package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	catalogModel "nextspay/internal/domain/catalog/model"
	notificationModel "nextspay/internal/domain/notification/model"
	notificationService "nextspay/internal/domain/notification/service"
	orderModel "nextspay/internal/domain/order/model"
	orderService "nextspay/internal/domain/order/service"
	"nextspay/internal/pkg/config"
	"nextspay/internal/pkg/telegram"
	"nextspay/pkg/utils"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cast"
	"go.uber.org/zap"
)

// ErrWebhookURL 未提供 webhook 地址
var ErrWebhookURL = errors.New("webhook url is required")

const (
	timeLayout     = "2006-01-02 15:04:05"
	todayListLimit = 10

	welcomeText = "欢迎使用 NextsPay 通知机器人！\n\n可用命令:\n/status - 查看系统状态\n/orders - 查看今日订单\n/order <订单号> - 查看订单详情\n/help - 帮助"
)

// Bot Bot API 能力, 由 telegram.Client 实现
type Bot interface {
	Enabled() bool
	Config() config.TelegramConfig
	GetMe(ctx context.Context) (*tgbotapi.User, error)
	SendMessage(ctx context.Context, text, parseMode, chatID string) (*tgbotapi.Message, error)
	AnswerCallback(ctx context.Context, callbackID, text string) error
	SetWebhook(ctx context.Context, url string) error
	GetWebhookInfo(ctx context.Context) (*tgbotapi.WebhookInfo, error)
	DeleteWebhook(ctx context.Context) error
}

// Orders 机器人查询订单所需的能力
type Orders interface {
	Get(ctx context.Context, id uint) (*orderModel.Order, error)
	GetByOrderNo(ctx context.Context, orderNo string) (*orderModel.Order, error)
	List(ctx context.Context, filter orderModel.OrderFilter, page utils.Pagination) (utils.PageResult, error)
	Stats(ctx context.Context) (*orderModel.OrderStats, error)
	TodayStats(ctx context.Context) (*orderModel.TodayStats, error)
}

// ProductStats 商品统计
type ProductStats interface {
	Stats(ctx context.Context) (*catalogModel.ProductStats, error)
}

// Notifications 后台接口用到的通知能力
type Notifications interface {
	TestNotification(ctx context.Context) map[string]string
	Stats(ctx context.Context, days int) ([]notificationModel.TypeStats, error)
	CheckConfig() map[string]notificationModel.ChannelConfig
}

// ConfigView 后台展示的 Bot 配置
type ConfigView struct {
	Enabled    bool   `json:"enabled"`
	BotToken   string `json:"botToken"`
	ChatID     string `json:"chatId"`
	WebhookURL string `json:"webhookUrl"`
	AdminURL   string `json:"adminUrl"`
	Status     string `json:"status"`
}

type BotService interface {
	// HandleUpdate 处理 webhook 推送的更新, 只路由命令与按钮回调
	HandleUpdate(ctx context.Context, update tgbotapi.Update) error

	Config(ctx context.Context) ConfigView
	TestConnection(ctx context.Context) (*tgbotapi.User, error)
	SendTest(ctx context.Context) error
	SendSystemStatus(ctx context.Context) error
	SetWebhook(ctx context.Context, url string) error
	GetWebhook(ctx context.Context) (*tgbotapi.WebhookInfo, error)
	DeleteWebhook(ctx context.Context) error

	NotificationStats(ctx context.Context, days int) ([]notificationModel.TypeStats, error)
	TestNotification(ctx context.Context) map[string]string
	CheckConfig() map[string]notificationModel.ChannelConfig
}

type botService struct {
	bot           Bot
	orders        Orders
	products      ProductStats
	notifications Notifications
	log           *zap.Logger
	now           func() time.Time
}

func NewBotService(bot Bot, orders Orders, products ProductStats, notifications Notifications, log *zap.Logger) BotService {
	if log == nil {
		log = zap.NewNop()
	}
	return &botService{
		bot:           bot,
		orders:        orders,
		products:      products,
		notifications: notifications,
		log:           log,
		now:           time.Now,
	}
}

func (s *botService) HandleUpdate(ctx context.Context, update tgbotapi.Update) error {
	switch {
	case update.Message != nil:
		return s.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		return s.handleCallback(ctx, update.CallbackQuery)
	default:
		return nil
	}
}

func (s *botService) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.Chat == nil || !msg.IsCommand() {
		return nil
	}
	chatID := cast.ToString(msg.Chat.ID)
	s.log.Info("bot command", zap.String("command", msg.Command()), zap.String("chat_id", chatID))

	switch msg.Command() {
	case "start", "help":
		return s.reply(ctx, chatID, welcomeText)
	case "status":
		text, err := s.statusReport(ctx)
		if err != nil {
			return s.reply(ctx, chatID, "获取系统状态失败: "+err.Error())
		}
		return s.reply(ctx, chatID, text)
	case "orders":
		return s.reply(ctx, chatID, s.todayOrders(ctx))
	case "order":
		return s.reply(ctx, chatID, s.orderDetail(ctx, strings.TrimSpace(msg.CommandArguments())))
	default:
		return s.reply(ctx, chatID, "未知命令: /"+msg.Command())
	}
}

// handleCallback "处理订单"按钮只回显标签, 不修改订单
func (s *botService) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if err := s.bot.AnswerCallback(ctx, cb.ID, "已收到"); err != nil {
		s.log.Warn("answer callback failed", zap.Error(err))
	}
	if !strings.HasPrefix(cb.Data, notificationService.ProcessOrderPrefix) || cb.Message == nil || cb.Message.Chat == nil {
		return nil
	}
	chatID := cast.ToString(cb.Message.Chat.ID)

	id, err := cast.ToUintE(strings.TrimPrefix(cb.Data, notificationService.ProcessOrderPrefix))
	if err != nil || id == 0 {
		return s.reply(ctx, chatID, "订单不存在")
	}
	order, err := s.orders.Get(ctx, id)
	switch {
	case errors.Is(err, orderService.ErrOrderNotFound):
		return s.reply(ctx, chatID, "订单不存在")
	case err != nil:
		return s.reply(ctx, chatID, "处理订单失败: "+err.Error())
	}
	return s.reply(ctx, chatID, fmt.Sprintf("订单 `%s` 已标记为处理中", order.OrderNo))
}

func (s *botService) reply(ctx context.Context, chatID, text string) error {
	_, err := s.bot.SendMessage(ctx, text, "", chatID)
	if err != nil {
		s.log.Warn("bot reply failed", zap.String("chat_id", chatID), zap.Error(err))
	}
	return err
}

func (s *botService) statusReport(ctx context.Context) (string, error) {
	today, err := s.orders.TodayStats(ctx)
	if err != nil {
		return "", err
	}
	total, err := s.orders.Stats(ctx)
	if err != nil {
		return "", err
	}
	products, err := s.products.Stats(ctx)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("📊 *系统状态报告*\n\n")
	b.WriteString("*今日统计:*\n")
	fmt.Fprintf(&b, "• 订单数: %d\n", today.Total)
	fmt.Fprintf(&b, "• 已支付: %d\n", today.Paid)
	fmt.Fprintf(&b, "• 金额: ¥%s\n\n", today.Amount.StringFixed(2))
	b.WriteString("*总体统计:*\n")
	fmt.Fprintf(&b, "• 总订单: %d\n", total.Total)
	fmt.Fprintf(&b, "• 总金额: ¥%s\n", total.PaidAmount.StringFixed(2))
	fmt.Fprintf(&b, "• 商品数: %d\n", products.Total)
	fmt.Fprintf(&b, "• 低库存: %d\n\n", products.LowStock)
	fmt.Fprintf(&b, "⏰ %s", s.now().Format(timeLayout))
	return b.String(), nil
}

func (s *botService) todayOrders(ctx context.Context) string {
	now := s.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	page, err := s.orders.List(ctx, orderModel.OrderFilter{From: &today, To: &today}, utils.Pagination{Page: 1, Limit: todayListLimit})
	if err != nil {
		return "获取今日订单失败: " + err.Error()
	}
	orders, _ := page.List.([]orderModel.Order)
	if len(orders) == 0 {
		return "今日暂无订单"
	}

	var b strings.Builder
	b.WriteString("📋 *今日订单列表*\n\n")
	for _, o := range orders {
		fmt.Fprintf(&b, "• `%s` - ¥%s - %s\n", o.OrderNo, o.FinalAmount.StringFixed(2), notificationService.OrderStatusName(o.OrderStatus))
	}
	return b.String()
}

func (s *botService) orderDetail(ctx context.Context, orderNo string) string {
	if orderNo == "" {
		return "用法: /order <订单号>"
	}
	o, err := s.orders.GetByOrderNo(ctx, orderNo)
	switch {
	case errors.Is(err, orderService.ErrOrderNotFound):
		return "订单不存在"
	case err != nil:
		return "查询订单失败: " + err.Error()
	}

	var b strings.Builder
	b.WriteString("📋 *订单详情*\n\n")
	fmt.Fprintf(&b, "订单号: `%s`\n", o.OrderNo)
	fmt.Fprintf(&b, "金额: ¥%s\n", o.FinalAmount.StringFixed(2))
	fmt.Fprintf(&b, "支付方式: %s\n", notificationService.PaymentTypeName(o.PaymentType))
	fmt.Fprintf(&b, "支付状态: %s\n", o.PaymentStatus)
	fmt.Fprintf(&b, "订单状态: %s\n", notificationService.OrderStatusName(o.OrderStatus))
	fmt.Fprintf(&b, "创建时间: %s", o.CreatedAt.Format(timeLayout))
	return b.String()
}

func (s *botService) Config(ctx context.Context) ConfigView {
	cfg := s.bot.Config()
	view := ConfigView{
		Enabled:    cfg.Enabled,
		BotToken:   cfg.BotToken,
		ChatID:     cfg.ChatID,
		WebhookURL: cfg.WebhookURL,
		AdminURL:   cfg.AdminURL,
		Status:     "disconnected",
	}
	switch _, err := s.bot.GetMe(ctx); {
	case err == nil:
		view.Status = "connected"
	case errors.Is(err, telegram.ErrBotDisabled):
		view.Status = "disabled"
	case errors.Is(err, telegram.ErrTransport):
	default:
		view.Status = "error"
	}
	return view
}

func (s *botService) TestConnection(ctx context.Context) (*tgbotapi.User, error) {
	return s.bot.GetMe(ctx)
}

func (s *botService) SendTest(ctx context.Context) error {
	text := fmt.Sprintf("🤖 *NextsPay 测试消息*\n\n时间: %s\n系统: NextsPay 支付系统\n状态: 正常运行", s.now().Format(timeLayout))
	_, err := s.bot.SendMessage(ctx, text, "", "")
	return err
}

// SendSystemStatus 向默认会话发送状态报告
func (s *botService) SendSystemStatus(ctx context.Context) error {
	text, err := s.statusReport(ctx)
	if err != nil {
		return err
	}
	_, err = s.bot.SendMessage(ctx, text, "", "")
	return err
}

func (s *botService) SetWebhook(ctx context.Context, url string) error {
	if url == "" && s.bot.Config().WebhookURL == "" {
		return ErrWebhookURL
	}
	if err := s.bot.SetWebhook(ctx, url); err != nil {
		return err
	}
	s.log.Info("telegram webhook set", zap.String("url", firstNonEmpty(url, s.bot.Config().WebhookURL)))
	return nil
}

func (s *botService) GetWebhook(ctx context.Context) (*tgbotapi.WebhookInfo, error) {
	return s.bot.GetWebhookInfo(ctx)
}

func (s *botService) DeleteWebhook(ctx context.Context) error {
	return s.bot.DeleteWebhook(ctx)
}

func (s *botService) NotificationStats(ctx context.Context, days int) ([]notificationModel.TypeStats, error) {
	return s.notifications.Stats(ctx, days)
}

func (s *botService) TestNotification(ctx context.Context) map[string]string {
	return s.notifications.TestNotification(ctx)
}

func (s *botService) CheckConfig() map[string]notificationModel.ChannelConfig {
	return s.notifications.CheckConfig()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
