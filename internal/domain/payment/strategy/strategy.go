package strategy

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	orderModel "nextspay/internal/domain/order/model"
	"nextspay/internal/domain/payment/model"
	"nextspay/internal/pkg/config"

	"github.com/shopspring/decimal"
)

var (
	ErrGatewayDisabled    = errors.New("payment gateway disabled")
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	ErrGatewayRejected    = errors.New("payment gateway rejected request")
	ErrSignatureInvalid   = errors.New("notification signature invalid")
	ErrMalformedPayload   = errors.New("malformed notification payload")
	ErrUnsupportedChannel = errors.New("unsupported payment channel")
)

const maxNotifyBody = 64 << 10

// GatewayError 携带渠道返回的错误信息
type GatewayError struct {
	Channel string
	Message string
	Err     error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Channel, e.Message, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

func rejected(channel, msg string) error {
	return &GatewayError{Channel: channel, Message: msg, Err: ErrGatewayRejected}
}

func unavailable(channel string, err error) error {
	return &GatewayError{Channel: channel, Message: err.Error(), Err: ErrGatewayUnavailable}
}

// PayOptions 发起支付时的请求上下文
type PayOptions struct {
	ClientIP string
	Now      time.Time
}

type PaymentStrategy interface {
	// Channel 渠道标识, 与订单的 payment_type 一致
	Channel() string

	// Pay 发起支付，返回跳转地址或二维码内容
	Pay(ctx context.Context, order *orderModel.Order, opts PayOptions) (*model.PayResult, error)

	// ParseNotify 验签并解析回调通知, 验签失败时不得返回 Notice
	ParseNotify(ctx context.Context, r *http.Request) (*model.Notice, error)

	// Ack 渠道要求的应答内容
	Ack(ok bool) model.Ack
}

// AckFor 各渠道约定的应答, 未知渠道返回 400
func AckFor(channel string, ok bool) model.Ack {
	switch channel {
	case orderModel.PaymentTypeWechat:
		code, msg := "FAIL", "FAIL"
		if ok {
			code, msg = "SUCCESS", "OK"
		}
		return model.Ack{
			Status:      http.StatusOK,
			ContentType: "text/xml; charset=utf-8",
			Body:        "<xml><return_code><![CDATA[" + code + "]]></return_code><return_msg><![CDATA[" + msg + "]]></return_msg></xml>",
		}
	case orderModel.PaymentTypeAlipay:
		return textAck(ok, "success", "fail")
	case orderModel.PaymentTypeUnionPay:
		return textAck(ok, "ok", "error")
	case orderModel.PaymentTypeStripe:
		if ok {
			return model.Ack{Status: http.StatusOK, ContentType: "application/json", Body: `{"received":true}`}
		}
		return model.Ack{Status: http.StatusBadRequest, ContentType: "application/json", Body: `{"received":false}`}
	default:
		return model.Ack{Status: http.StatusBadRequest, ContentType: "text/plain; charset=utf-8", Body: "Invalid payment type"}
	}
}

func textAck(ok bool, success, failure string) model.Ack {
	body := failure
	if ok {
		body = success
	}
	return model.Ack{Status: http.StatusOK, ContentType: "text/plain; charset=utf-8", Body: body}
}

// withRetry 仅对网络类错误按线性退避重试, 渠道拒绝不重试
func withRetry(ctx context.Context, opts config.GatewayOptions, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; ; attempt++ {
		callCtx := ctx
		cancel := func() {}
		if opts.Timeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		}
		err = fn(callCtx)
		cancel()
		if err == nil || !errors.Is(err, ErrGatewayUnavailable) || attempt >= opts.MaxRetries {
			return err
		}
		select {
		case <-ctx.Done():
			return err
		case <-time.After(opts.RetryDelay * time.Duration(attempt+1)):
		}
	}
}

// toCents 元转分
func toCents(amount decimal.Decimal) int64 {
	return amount.Round(2).Shift(2).IntPart()
}

// fromCents 分转元
func fromCents(cents string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(cents)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: amount %q", ErrMalformedPayload, cents)
	}
	return d.Shift(-2), nil
}

func payable(channel string, order *orderModel.Order) error {
	if order == nil || order.OrderNo == "" {
		return rejected(channel, "order number is empty")
	}
	if !order.FinalAmount.IsPositive() {
		return rejected(channel, "payable amount must be positive")
	}
	return nil
}
