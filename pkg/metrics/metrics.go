package metrics

import (
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsCollector 指标收集器
type MetricsCollector struct {
	// HTTP 指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// 支付回调指标
	webhookTotal    *prometheus.CounterVec
	webhookDuration *prometheus.HistogramVec

	// 订单状态迁移
	transitionsTotal *prometheus.CounterVec

	// 支付发起
	gatewayCallsTotal *prometheus.CounterVec

	// 消息通道
	notificationsTotal *prometheus.CounterVec
	notifyQueueDepth   prometheus.Gauge

	// 应用指标
	activeGoroutines prometheus.Gauge
}

// NewMetricsCollector 创建指标收集器, reg 为 nil 时使用默认注册表
func NewMetricsCollector(reg prometheus.Registerer) *MetricsCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &MetricsCollector{
		httpRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),

		httpRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		webhookTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payment_webhooks_total",
				Help: "Inbound payment notifications by provider and outcome",
			},
			[]string{"provider", "outcome"},
		),

		webhookDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "payment_webhook_duration_seconds",
				Help:    "Payment notification handling duration in seconds",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
			[]string{"provider"},
		),

		transitionsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "order_transitions_total",
				Help: "Order state machine transitions by name and result",
			},
			[]string{"transition", "result"},
		),

		gatewayCallsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payment_gateway_calls_total",
				Help: "Outbound payment initiation calls by provider and result",
			},
			[]string{"provider", "result"},
		),

		notificationsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notifications_total",
				Help: "Outbound notifications by channel and result",
			},
			[]string{"channel", "result"},
		),

		notifyQueueDepth: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "notification_queue_depth",
				Help: "Pending tasks in the notification dispatcher",
			},
		),

		activeGoroutines: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "active_goroutines",
				Help: "Number of active goroutines",
			},
		),
	}
}

// RecordHTTPRequest 记录 HTTP 请求指标
func (m *MetricsCollector) RecordHTTPRequest(method, endpoint, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordWebhook 记录支付回调
func (m *MetricsCollector) RecordWebhook(provider, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.webhookTotal.WithLabelValues(provider, outcome).Inc()
	m.webhookDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// RecordTransition 记录订单状态迁移
func (m *MetricsCollector) RecordTransition(transition, result string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(transition, result).Inc()
}

// RecordGatewayCall 记录支付发起调用
func (m *MetricsCollector) RecordGatewayCall(provider, result string) {
	if m == nil {
		return
	}
	m.gatewayCallsTotal.WithLabelValues(provider, result).Inc()
}

// RecordNotification 记录消息通道发送结果
func (m *MetricsCollector) RecordNotification(channel, result string) {
	if m == nil {
		return
	}
	m.notificationsTotal.WithLabelValues(channel, result).Inc()
}

// SetQueueDepth 更新通知队列长度
func (m *MetricsCollector) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.notifyQueueDepth.Set(float64(n))
}

// UpdateSystemMetrics 更新系统指标
func (m *MetricsCollector) UpdateSystemMetrics() {
	if m == nil {
		return
	}
	m.activeGoroutines.Set(float64(runtime.NumGoroutine()))
}
