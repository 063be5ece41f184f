package model

import (
	"time"

	baseModel "nextspay/pkg/model"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// 支付状态 (资金状态)
const (
	PaymentStatusPending  = "pending"
	PaymentStatusPaid     = "paid"
	PaymentStatusFailed   = "failed"
	PaymentStatusRefunded = "refunded"
)

// 订单状态 (履约状态)
const (
	OrderStatusPending   = "pending"
	OrderStatusConfirmed = "confirmed"
	OrderStatusShipped   = "shipped"
	OrderStatusDelivered = "delivered"
	OrderStatusCancelled = "cancelled"
)

// 支付渠道
const (
	PaymentTypeWechat   = "wechat"
	PaymentTypeAlipay   = "alipay"
	PaymentTypeUnionPay = "unionpay"
	PaymentTypeStripe   = "stripe"
)

// CancelReasonExpired 超时未支付自动取消
const CancelReasonExpired = "expired"

// PaymentTypes 支持的支付渠道
var PaymentTypes = []string{PaymentTypeWechat, PaymentTypeAlipay, PaymentTypeUnionPay, PaymentTypeStripe}

// Order 订单
type Order struct {
	baseModel.BaseModel
	OrderNo         string          `gorm:"size:32;uniqueIndex;not null" json:"orderNo"`
	UserID          *uint           `gorm:"index" json:"userId,omitempty"`
	CustomerName    string          `gorm:"size:100" json:"customerName"`
	CustomerEmail   string          `gorm:"size:150" json:"customerEmail"`
	CustomerPhone   string          `gorm:"size:30" json:"customerPhone"`
	Subject         string          `gorm:"size:255" json:"subject"`
	TotalAmount     decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"totalAmount"`
	DiscountAmount  decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"discountAmount"`
	ShippingFee     decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"shippingFee"`
	FinalAmount     decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"finalAmount"`
	PaymentType     string          `gorm:"size:20;not null" json:"paymentType"`
	PaymentStatus   string          `gorm:"size:20;not null;default:'pending';index" json:"paymentStatus"`
	OrderStatus     string          `gorm:"size:20;not null;default:'pending';index" json:"orderStatus"`
	TransactionID   string          `gorm:"size:100" json:"transactionId,omitempty"`
	CancelReason    string          `gorm:"size:255" json:"cancelReason,omitempty"`
	ShippingName    string          `gorm:"size:100" json:"shippingName"`
	ShippingPhone   string          `gorm:"size:30" json:"shippingPhone"`
	ShippingAddress string          `gorm:"size:500" json:"shippingAddress"`
	Remark          string          `gorm:"type:text" json:"remark"`
	PaidAt          *time.Time      `json:"paidAt,omitempty"`
	ShippedAt       *time.Time      `json:"shippedAt,omitempty"`
	DeliveredAt     *time.Time      `json:"deliveredAt,omitempty"`
	CancelledAt     *time.Time      `json:"cancelledAt,omitempty"`
	ExpireAt        *time.Time      `gorm:"index" json:"expireAt,omitempty"`
	Version         int             `gorm:"not null;default:0" json:"version"`
	Items           []OrderItem     `gorm:"foreignKey:OrderID" json:"items,omitempty"`
}

// IsPaid 是否已支付
func (o *Order) IsPaid() bool {
	return o.PaymentStatus == PaymentStatusPaid
}

// Payable 是否可以发起支付
func (o *Order) Payable(now time.Time) bool {
	if o.OrderStatus != OrderStatusPending {
		return false
	}
	if o.PaymentStatus != PaymentStatusPending && o.PaymentStatus != PaymentStatusFailed {
		return false
	}
	return o.ExpireAt == nil || now.Before(*o.ExpireAt)
}

// OrderItem 订单明细, 下单时的商品快照
type OrderItem struct {
	ID           uint            `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID      uint            `gorm:"index;not null" json:"orderId"`
	ProductID    uint            `gorm:"index;not null" json:"productId"`
	ProductName  string          `gorm:"size:200;not null" json:"productName"`
	ProductImage string          `gorm:"size:500" json:"productImage"`
	Quantity     int             `gorm:"not null" json:"quantity"`
	UnitPrice    decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"unitPrice"`
	TotalPrice   decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"totalPrice"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// 支付记录状态
const (
	PaymentRecordPaid   = "paid"
	PaymentRecordFailed = "failed"
)

// Payment 支付记录, 只追加不修改
type Payment struct {
	baseModel.LogModel
	OrderID       uint            `gorm:"index;not null" json:"orderId"`
	OrderNo       string          `gorm:"size:32;index;not null" json:"orderNo"`
	PaymentType   string          `gorm:"size:20;not null" json:"paymentType"`
	TransactionID string          `gorm:"size:100" json:"transactionId"`
	Amount        decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	Status        string          `gorm:"size:20;not null" json:"status"`
	FailureReason string          `gorm:"size:500" json:"failureReason,omitempty"`
	RawPayload    datatypes.JSON  `gorm:"type:jsonb" json:"rawPayload,omitempty"`
	PaidAt        *time.Time      `json:"paidAt,omitempty"`
}

// OrderFilter 订单列表过滤条件
type OrderFilter struct {
	OrderNo       string     `form:"order_no"`
	PaymentStatus string     `form:"payment_status"`
	OrderStatus   string     `form:"order_status"`
	PaymentType   string     `form:"payment_type"`
	From          *time.Time `form:"from" time_format:"2006-01-02"`
	To            *time.Time `form:"to" time_format:"2006-01-02"`
}

// OrderStats 订单统计
type OrderStats struct {
	Total      int64           `json:"total"`
	Pending    int64           `json:"pending"`
	Paid       int64           `json:"paid"`
	Failed     int64           `json:"failed"`
	Refunded   int64           `json:"refunded"`
	Shipped    int64           `json:"shipped"`
	Delivered  int64           `json:"delivered"`
	Cancelled  int64           `json:"cancelled"`
	PaidAmount decimal.Decimal `json:"paidAmount"`
}

// TodayStats 当日统计
type TodayStats struct {
	Total  int64           `json:"total"`
	Paid   int64           `json:"paid"`
	Amount decimal.Decimal `json:"amount"`
}
