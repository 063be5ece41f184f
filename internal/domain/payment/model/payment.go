package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Outcome 回调归一化后的支付结果
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	// OutcomeIgnored 与订单状态无关的事件, 直接应答成功
	OutcomeIgnored Outcome = "ignored"
)

// Notice 已验签的回调, 各渠道解析后统一为此结构
type Notice struct {
	Channel       string
	OrderNo       string
	TransactionID string
	Amount        decimal.Decimal
	Outcome       Outcome
	Reason        string
	PaidAt        time.Time
	Raw           []byte
}

// PayResult 发起支付的返回, 前端据此跳转或展示二维码
type PayResult struct {
	Channel    string `json:"channel"`
	PaymentURL string `json:"paymentUrl"`
	QRCode     string `json:"qrCode,omitempty"`
	SessionID  string `json:"sessionId,omitempty"`
}

// Ack 返回给支付渠道的应答
type Ack struct {
	Status      int
	ContentType string
	Body        string
}

// ChannelStatus 支付渠道配置概况
type ChannelStatus struct {
	Channel string `json:"channel"`
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}
