package model

import (
	baseModel "nextspay/pkg/model"

	"gorm.io/datatypes"
)

// 通知类型, 订单相关类型与订单事件同名
const (
	TypeNewOrder       = "new_order"
	TypePaymentSuccess = "payment_success"
	TypePaymentFailed  = "payment_failed"
	TypeOrderCancelled = "order_cancelled"
	TypeOrderShipped   = "order_shipped"
	TypeLowStock       = "low_stock"
	TypeSystemAlert    = "system_alert"
	TypeOrderDetails   = "order_details"
)

// 通道发送结果
const (
	ResultOK       = "ok"
	ResultDisabled = "disabled"
	FailedPrefix   = "failed: "
	SkippedPrefix  = "skipped: "
)

// 通道名称
const (
	ChannelTelegram = "telegram"
	ChannelPush     = "push"
)

// NotificationLog 通知审计日志, 只追加
type NotificationLog struct {
	baseModel.LogModel
	Type      string            `gorm:"size:50;index;not null" json:"type"`
	Reference string            `gorm:"size:100;index" json:"reference"`
	Results   datatypes.JSONMap `gorm:"type:jsonb" json:"results"`
}

func (NotificationLog) TableName() string {
	return "notification_logs"
}

// ChannelStats 单个通道的发送统计
type ChannelStats struct {
	OK       int64 `json:"ok"`
	Failed   int64 `json:"failed"`
	Disabled int64 `json:"disabled"`
	Skipped  int64 `json:"skipped"`
}

// TypeStats 按通知类型聚合的统计
type TypeStats struct {
	Type     string                  `json:"type"`
	Total    int64                   `json:"total"`
	Channels map[string]ChannelStats `json:"channels"`
}

// ChannelConfig 通道配置检查结果
type ChannelConfig struct {
	Enabled    bool   `json:"enabled"`
	Configured bool   `json:"configured"`
	Detail     string `json:"detail,omitempty"`
}
