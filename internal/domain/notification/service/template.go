package service

import (
	"strings"

	"nextspay/internal/domain/notification/model"
	orderModel "nextspay/internal/domain/order/model"
)

const timeLayout = "2006-01-02 15:04:05"

// defaultTemplates 各类通知的默认模板, 可通过 telegram.templates 覆盖
var defaultTemplates = map[string]string{
	model.TypeNewOrder: "🛒 *新订单通知*\n\n" +
		"订单号: {order_no}\n" +
		"客户: {customer_name}\n" +
		"金额: ¥{amount}\n" +
		"支付方式: {payment_type}\n" +
		"时间: {order_time}\n" +
		"状态: {status}",
	model.TypePaymentSuccess: "💰 *支付成功通知*\n\n" +
		"订单号: {order_no}\n" +
		"金额: ¥{amount}\n" +
		"支付方式: {payment_type}\n" +
		"交易号: {transaction_id}\n" +
		"支付时间: {pay_time}",
	model.TypePaymentFailed: "❌ *支付失败通知*\n\n" +
		"订单号: {order_no}\n" +
		"金额: ¥{amount}\n" +
		"支付方式: {payment_type}\n" +
		"失败原因: {error_message}\n" +
		"时间: {fail_time}",
	model.TypeOrderCancelled: "🚫 *订单取消通知*\n\n" +
		"订单号: {order_no}\n" +
		"金额: ¥{amount}\n" +
		"取消原因: {cancel_reason}\n" +
		"时间: {cancel_time}",
	model.TypeOrderShipped: "🚚 *订单发货通知*\n\n" +
		"订单号: {order_no}\n" +
		"金额: ¥{amount}\n" +
		"发货时间: {ship_time}",
	model.TypeLowStock: "⚠️ *库存不足警告*\n\n" +
		"商品: {product_name}\n" +
		"当前库存: {current_stock}\n" +
		"最低库存: {min_stock}\n" +
		"时间: {alert_time}",
	model.TypeSystemAlert: "🚨 *系统警告*\n\n" +
		"类型: {alert_type}\n" +
		"消息: {message}\n" +
		"时间: {alert_time}",
}

// 推送标题
var titles = map[string]string{
	model.TypeNewOrder:       "新订单通知",
	model.TypePaymentSuccess: "支付成功通知",
	model.TypePaymentFailed:  "支付失败通知",
	model.TypeOrderCancelled: "订单取消通知",
	model.TypeOrderShipped:   "订单发货通知",
	model.TypeLowStock:       "库存不足警告",
	model.TypeSystemAlert:    "系统警告",
	model.TypeOrderDetails:   "订单详情",
}

var paymentTypeNames = map[string]string{
	orderModel.PaymentTypeWechat:   "微信支付",
	orderModel.PaymentTypeAlipay:   "支付宝",
	orderModel.PaymentTypeUnionPay: "银联支付",
	orderModel.PaymentTypeStripe:   "Stripe",
}

var orderStatusNames = map[string]string{
	orderModel.OrderStatusPending:   "待处理",
	orderModel.OrderStatusConfirmed: "已确认",
	orderModel.OrderStatusShipped:   "已发货",
	orderModel.OrderStatusDelivered: "已完成",
	orderModel.OrderStatusCancelled: "已取消",
}

// PaymentTypeName 支付方式显示名
func PaymentTypeName(t string) string {
	if name, ok := paymentTypeNames[t]; ok {
		return name
	}
	return t
}

// OrderStatusName 订单状态显示名
func OrderStatusName(s string) string {
	if name, ok := orderStatusNames[s]; ok {
		return name
	}
	return s
}

// render 替换 {key} 占位符, escape 用于按消息格式转义取值
func render(tpl string, data map[string]string, escape func(string) string) string {
	pairs := make([]string, 0, len(data)*2)
	for k, v := range data {
		if escape != nil {
			v = escape(v)
		}
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tpl)
}

// plain 去掉 Markdown 标记, 用于推送正文
func plain(text string) string {
	return strings.NewReplacer("*", "", "`", "").Replace(text)
}
