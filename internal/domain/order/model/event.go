package model

// 订单事件, 用于触发通知
const (
	EventNewOrder       = "new_order"
	EventPaymentSuccess = "payment_success"
	EventPaymentFailed  = "payment_failed"
	EventOrderCancelled = "order_cancelled"
	EventOrderShipped   = "order_shipped"
)
