package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"nextspay/internal/domain/notification/model"
	"nextspay/internal/domain/notification/repository"
	orderModel "nextspay/internal/domain/order/model"
	"nextspay/internal/pkg/telegram"
	"nextspay/internal/pkg/worker"
	"nextspay/pkg/metrics"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// ProcessOrderPrefix "处理订单"按钮的回调数据前缀
const ProcessOrderPrefix = "process_order_"

// TaskSubmitter 异步任务入队
type TaskSubmitter interface {
	Submit(task worker.Task) error
}

// NotificationService 对外通知服务. 通知失败只记录日志, 不影响业务流程
type NotificationService interface {
	// Notify 同步发送订单类通知并写审计日志, 返回各通道结果
	Notify(ctx context.Context, kind string, order *orderModel.Order, extra map[string]string) map[string]string
	// Dispatch 异步发送, 调用方不等待通道结果
	Dispatch(kind string, order *orderModel.Order, extra map[string]string)
	RecordSkip(ctx context.Context, kind, reference, reason string)
	SystemAlert(ctx context.Context, alertType, message string) map[string]string
	OrderDetails(ctx context.Context, order *orderModel.Order) map[string]string
	TestNotification(ctx context.Context) map[string]string
	Stats(ctx context.Context, days int) ([]model.TypeStats, error)
	CheckConfig() map[string]model.ChannelConfig

	// 订单服务使用的事件接口
	OrderEvent(ctx context.Context, event string, order *orderModel.Order, reason string)
	Skip(ctx context.Context, event, reference, reason string)
	Alert(ctx context.Context, alertType, message string)
	LowStock(ctx context.Context, productID uint, name string, remaining, minStock int)
}

// Options 通知服务配置
type Options struct {
	Tasks     TaskSubmitter
	Templates map[string]string
	ParseMode string
	AdminURL  string
	Metrics   *metrics.MetricsCollector
	Logger    *zap.Logger
	Now       func() time.Time
}

type notificationService struct {
	repo      repository.LogRepository
	channels  []Channel
	tasks     TaskSubmitter
	templates map[string]string
	parseMode string
	adminURL  string
	metrics   *metrics.MetricsCollector
	log       *zap.Logger
	now       func() time.Time
}

func NewNotificationService(repo repository.LogRepository, channels []Channel, opts Options) NotificationService {
	s := &notificationService{
		repo:      repo,
		channels:  channels,
		tasks:     opts.Tasks,
		templates: make(map[string]string, len(defaultTemplates)),
		parseMode: opts.ParseMode,
		adminURL:  strings.TrimRight(opts.AdminURL, "/"),
		metrics:   opts.Metrics,
		log:       opts.Logger,
		now:       opts.Now,
	}
	for k, v := range defaultTemplates {
		s.templates[k] = v
	}
	for k, v := range opts.Templates {
		if v != "" {
			s.templates[k] = v
		}
	}
	if s.parseMode == "" {
		s.parseMode = tgbotapi.ModeMarkdown
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *notificationService) Notify(ctx context.Context, kind string, order *orderModel.Order, extra map[string]string) map[string]string {
	data := s.orderData(kind, order, extra)
	return s.send(ctx, kind, order.OrderNo, s.message(kind, data))
}

func (s *notificationService) Dispatch(kind string, order *orderModel.Order, extra map[string]string) {
	// 拷贝快照, 避免调用方后续修改
	snapshot := *order
	snapshot.Items = append([]orderModel.OrderItem(nil), order.Items...)
	s.submit(kind, order.OrderNo, func(ctx context.Context) error {
		s.Notify(ctx, kind, &snapshot, extra)
		return nil
	})
}

func (s *notificationService) OrderEvent(_ context.Context, event string, order *orderModel.Order, reason string) {
	var extra map[string]string
	if reason != "" {
		extra = map[string]string{"reason": reason}
	}
	s.Dispatch(event, order, extra)
}

// RecordSkip 记录未发送的通知, 例如重复回调
func (s *notificationService) RecordSkip(ctx context.Context, kind, reference, reason string) {
	results := make(map[string]string, len(s.channels))
	for _, ch := range s.channels {
		results[ch.Name()] = model.SkippedPrefix + reason
	}
	s.audit(ctx, kind, reference, results)
}

func (s *notificationService) Skip(ctx context.Context, event, reference, reason string) {
	s.RecordSkip(ctx, event, reference, reason)
}

// SystemAlert 同步发送系统警告
func (s *notificationService) SystemAlert(ctx context.Context, alertType, message string) map[string]string {
	data := map[string]string{
		"alert_type": alertType,
		"message":    message,
		"alert_time": s.now().Format(timeLayout),
	}
	return s.send(ctx, model.TypeSystemAlert, alertType, s.message(model.TypeSystemAlert, data))
}

func (s *notificationService) Alert(_ context.Context, alertType, message string) {
	s.submit(model.TypeSystemAlert, alertType, func(ctx context.Context) error {
		s.SystemAlert(ctx, alertType, message)
		return nil
	})
}

func (s *notificationService) LowStock(_ context.Context, _ uint, name string, remaining, minStock int) {
	data := map[string]string{
		"product_name":  name,
		"current_stock": fmt.Sprint(remaining),
		"min_stock":     fmt.Sprint(minStock),
		"alert_time":    s.now().Format(timeLayout),
	}
	msg := s.message(model.TypeLowStock, data)
	s.submit(model.TypeLowStock, name, func(ctx context.Context) error {
		s.send(ctx, model.TypeLowStock, name, msg)
		return nil
	})
}

// OrderDetails 发送带"查看订单"和"处理订单"按钮的订单详情
func (s *notificationService) OrderDetails(ctx context.Context, order *orderModel.Order) map[string]string {
	esc := s.escape
	var b strings.Builder
	b.WriteString("📋 *订单详情*\n\n")
	fmt.Fprintf(&b, "订单号: `%s`\n", order.OrderNo)
	fmt.Fprintf(&b, "金额: ¥%s\n", order.FinalAmount.StringFixed(2))
	fmt.Fprintf(&b, "支付方式: %s\n", PaymentTypeName(order.PaymentType))
	fmt.Fprintf(&b, "状态: %s\n", OrderStatusName(order.OrderStatus))
	fmt.Fprintf(&b, "创建时间: %s\n\n", order.CreatedAt.Format(timeLayout))
	b.WriteString("*商品列表:*\n")
	for _, item := range order.Items {
		fmt.Fprintf(&b, "• %s x%d = ¥%s\n", esc(item.ProductName), item.Quantity, item.TotalPrice.StringFixed(2))
	}

	buttons := [][]telegram.Button{{
		{Text: "查看订单", URL: fmt.Sprintf("%s?view=order&id=%d", s.adminURL, order.ID)},
		{Text: "处理订单", Data: fmt.Sprintf("%s%d", ProcessOrderPrefix, order.ID)},
	}}
	if s.adminURL == "" {
		buttons[0] = buttons[0][1:]
	}

	text := b.String()
	msg := Message{
		Kind:      model.TypeOrderDetails,
		Title:     titles[model.TypeOrderDetails],
		Text:      text,
		Plain:     plain(strings.ReplaceAll(text, `\`, "")),
		ParseMode: s.parseMode,
		Buttons:   buttons,
	}
	return s.send(ctx, model.TypeOrderDetails, order.OrderNo, msg)
}

func (s *notificationService) TestNotification(ctx context.Context) map[string]string {
	return s.SystemAlert(ctx, "test", "这是一条测试通知消息")
}

// Stats 最近 days 天按类型统计各通道结果
func (s *notificationService) Stats(ctx context.Context, days int) ([]model.TypeStats, error) {
	if days <= 0 {
		days = 7
	}
	logs, err := s.repo.ListSince(ctx, s.now().AddDate(0, 0, -days))
	if err != nil {
		return nil, err
	}

	byType := make(map[string]*model.TypeStats)
	for _, l := range logs {
		st, ok := byType[l.Type]
		if !ok {
			st = &model.TypeStats{Type: l.Type, Channels: make(map[string]model.ChannelStats)}
			byType[l.Type] = st
		}
		st.Total++
		for ch, v := range l.Results {
			cs := st.Channels[ch]
			result := fmt.Sprint(v)
			switch {
			case result == model.ResultOK:
				cs.OK++
			case result == model.ResultDisabled:
				cs.Disabled++
			case strings.HasPrefix(result, model.SkippedPrefix):
				cs.Skipped++
			default:
				cs.Failed++
			}
			st.Channels[ch] = cs
		}
	}

	stats := make([]model.TypeStats, 0, len(byType))
	for _, st := range byType {
		stats = append(stats, *st)
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Type < stats[j].Type })
	return stats, nil
}

func (s *notificationService) CheckConfig() map[string]model.ChannelConfig {
	cfg := make(map[string]model.ChannelConfig, len(s.channels))
	for _, ch := range s.channels {
		cfg[ch.Name()] = ch.Check()
	}
	return cfg
}

// send 逐个通道发送, 单个通道失败或 panic 不影响其他通道, 最后写审计日志
func (s *notificationService) send(ctx context.Context, kind, reference string, msg Message) map[string]string {
	results := make(map[string]string, len(s.channels))
	for _, ch := range s.channels {
		results[ch.Name()] = s.sendOne(ctx, ch, msg)
	}
	s.audit(ctx, kind, reference, results)
	return results
}

func (s *notificationService) sendOne(ctx context.Context, ch Channel, msg Message) (result string) {
	defer func() {
		if r := recover(); r != nil {
			result = fmt.Sprintf("%spanic: %v", model.FailedPrefix, r)
			s.log.Error("notification channel panic", zap.String("channel", ch.Name()), zap.Any("panic", r))
		}
		s.metrics.RecordNotification(ch.Name(), outcome(result))
	}()

	if !ch.Enabled() {
		return model.ResultDisabled
	}
	if err := ch.Send(ctx, msg); err != nil {
		if errors.Is(err, ErrChannelDisabled) || errors.Is(err, telegram.ErrBotDisabled) {
			return model.ResultDisabled
		}
		s.log.Warn("notification channel failed",
			zap.String("channel", ch.Name()),
			zap.String("type", msg.Kind),
			zap.Error(err),
		)
		return model.FailedPrefix + err.Error()
	}
	return model.ResultOK
}

func (s *notificationService) audit(ctx context.Context, kind, reference string, results map[string]string) {
	entry := &model.NotificationLog{
		Type:      kind,
		Reference: reference,
		Results:   make(map[string]interface{}, len(results)),
	}
	for k, v := range results {
		entry.Results[k] = v
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		s.log.Error("failed to write notification log",
			zap.String("type", kind), zap.String("reference", reference), zap.Error(err))
	}
}

// submit 入队异步任务, 队列满时直接记录失败结果
func (s *notificationService) submit(kind, reference string, run func(ctx context.Context) error) {
	if s.tasks == nil {
		_ = run(context.Background())
		return
	}
	err := s.tasks.Submit(worker.Task{Name: "notify." + kind, Run: run})
	if err == nil {
		return
	}
	s.log.Warn("notification dropped", zap.String("type", kind), zap.String("reference", reference), zap.Error(err))
	results := make(map[string]string, len(s.channels))
	for _, ch := range s.channels {
		results[ch.Name()] = model.FailedPrefix + err.Error()
	}
	s.audit(context.Background(), kind, reference, results)
}

func (s *notificationService) message(kind string, data map[string]string) Message {
	tpl := s.templates[kind]
	return Message{
		Kind:      kind,
		Title:     titles[kind],
		Text:      render(tpl, data, s.escape),
		Plain:     plain(render(tpl, data, nil)),
		ParseMode: s.parseMode,
	}
}

func (s *notificationService) escape(v string) string {
	return tgbotapi.EscapeText(s.parseMode, v)
}

// orderData 订单模板占位符
func (s *notificationService) orderData(kind string, order *orderModel.Order, extra map[string]string) map[string]string {
	now := s.now().Format(timeLayout)
	customer := order.CustomerName
	if customer == "" {
		customer = "未知客户"
	}
	data := map[string]string{
		"order_no":      order.OrderNo,
		"customer_name": customer,
		"amount":        order.FinalAmount.StringFixed(2),
		"payment_type":  PaymentTypeName(order.PaymentType),
		"status":        OrderStatusName(order.OrderStatus),
		"order_time":    order.CreatedAt.Format(timeLayout),
	}

	reason := extra["reason"]
	switch kind {
	case model.TypePaymentSuccess:
		data["transaction_id"] = order.TransactionID
		if data["transaction_id"] == "" {
			data["transaction_id"] = "N/A"
		}
		data["pay_time"] = now
		if order.PaidAt != nil {
			data["pay_time"] = order.PaidAt.Format(timeLayout)
		}
	case model.TypePaymentFailed:
		data["error_message"] = reason
		data["fail_time"] = now
	case model.TypeOrderCancelled:
		if reason == "" {
			reason = "用户取消"
		}
		if reason == orderModel.CancelReasonExpired {
			reason = "超时未支付"
		}
		data["cancel_reason"] = reason
		data["cancel_time"] = now
		if order.CancelledAt != nil {
			data["cancel_time"] = order.CancelledAt.Format(timeLayout)
		}
	case model.TypeOrderShipped:
		data["ship_time"] = now
		if order.ShippedAt != nil {
			data["ship_time"] = order.ShippedAt.Format(timeLayout)
		}
	}
	for k, v := range extra {
		if k != "reason" {
			data[k] = v
		}
	}
	return data
}

func outcome(result string) string {
	switch {
	case result == model.ResultOK:
		return "ok"
	case result == model.ResultDisabled:
		return "disabled"
	default:
		return "failed"
	}
}
