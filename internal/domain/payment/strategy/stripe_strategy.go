package strategy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	orderModel "nextspay/internal/domain/order/model"
	"nextspay/internal/domain/payment/model"
	"nextspay/internal/pkg/config"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"
	"github.com/stripe/stripe-go/v76/webhook"
)

const (
	stripeSignatureHeader = "Stripe-Signature"
	stripeOrderKey        = "order_no"

	eventSessionCompleted     = "checkout.session.completed"
	eventAsyncPaymentSucceded = "checkout.session.async_payment_succeeded"
	eventAsyncPaymentFailed   = "checkout.session.async_payment_failed"
	eventSessionExpired       = "checkout.session.expired"
)

// checkoutSessions Stripe Checkout Session 创建接口
type checkoutSessions interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// StripeStrategy Stripe Checkout, 由 Stripe 托管收银台
type StripeStrategy struct {
	cfg      config.StripeConfig
	sessions checkoutSessions
}

func NewStripeStrategy(cfg config.StripeConfig) (*StripeStrategy, error) {
	if cfg.SecretKey == "" || cfg.WebhookSecret == "" {
		return nil, errors.New("stripe config missing")
	}
	sc := &session.Client{B: stripe.GetBackend(stripe.APIBackend), Key: cfg.SecretKey}
	return newStripeStrategy(sc, cfg), nil
}

func newStripeStrategy(sessions checkoutSessions, cfg config.StripeConfig) *StripeStrategy {
	if cfg.Currency == "" {
		cfg.Currency = "cny"
	}
	return &StripeStrategy{cfg: cfg, sessions: sessions}
}

func (s *StripeStrategy) Channel() string {
	return orderModel.PaymentTypeStripe
}

// Pay 创建 Checkout Session, 订单号写入 metadata 供回调关联
func (s *StripeStrategy) Pay(ctx context.Context, order *orderModel.Order, _ PayOptions) (*model.PayResult, error) {
	if err := payable(s.Channel(), order); err != nil {
		return nil, err
	}

	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems:          s.lineItems(order),
		SuccessURL:         stripe.String(s.cfg.SuccessURL),
		CancelURL:          stripe.String(s.cfg.CancelURL),
		ClientReferenceID:  stripe.String(order.OrderNo),
	}
	params.AddMetadata(stripeOrderKey, order.OrderNo)

	var sess *stripe.CheckoutSession
	err := withRetry(ctx, s.cfg.GatewayOptions, func(ctx context.Context) error {
		params.Context = ctx
		var callErr error
		sess, callErr = s.sessions.New(params)
		return s.classify(callErr)
	})
	if err != nil {
		return nil, err
	}
	return &model.PayResult{Channel: s.Channel(), PaymentURL: sess.URL, SessionID: sess.ID}, nil
}

// lineItems 没有优惠时按明细展示, 否则合并为一行应付金额
func (s *StripeStrategy) lineItems(order *orderModel.Order) []*stripe.CheckoutSessionLineItemParams {
	line := func(name string, amount decimal.Decimal, qty int64) *stripe.CheckoutSessionLineItemParams {
		return &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(s.cfg.Currency),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(name),
				},
				UnitAmount: stripe.Int64(toCents(amount)),
			},
			Quantity: stripe.Int64(qty),
		}
	}

	if len(order.Items) == 0 || !order.DiscountAmount.IsZero() {
		return []*stripe.CheckoutSessionLineItemParams{line(order.Subject, order.FinalAmount, 1)}
	}
	items := make([]*stripe.CheckoutSessionLineItemParams, 0, len(order.Items)+1)
	for _, it := range order.Items {
		items = append(items, line(it.ProductName, it.UnitPrice, int64(it.Quantity)))
	}
	if order.ShippingFee.IsPositive() {
		items = append(items, line("运费", order.ShippingFee, 1))
	}
	return items
}

func (s *StripeStrategy) classify(err error) error {
	if err == nil {
		return nil
	}
	var serr *stripe.Error
	if errors.As(err, &serr) && serr.HTTPStatusCode > 0 && serr.HTTPStatusCode < http.StatusInternalServerError {
		return rejected(s.Channel(), serr.Msg)
	}
	return unavailable(s.Channel(), err)
}

// ParseNotify 校验 Stripe-Signature 后解析 Checkout 事件
func (s *StripeStrategy) ParseNotify(_ context.Context, r *http.Request) (*model.Notice, error) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxNotifyBody))
	if err != nil || len(payload) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrMalformedPayload)
	}
	event, err := webhook.ConstructEventWithOptions(payload, r.Header.Get(stripeSignatureHeader), s.cfg.WebhookSecret,
		webhook.ConstructEventOptions{Tolerance: webhook.DefaultTolerance, IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}

	notice := &model.Notice{Channel: s.Channel(), Outcome: model.OutcomeIgnored, Raw: payload}
	switch event.Type {
	case eventSessionCompleted, eventAsyncPaymentSucceded, eventAsyncPaymentFailed, eventSessionExpired:
	default:
		return notice, nil
	}
	if event.Data == nil {
		return nil, fmt.Errorf("%w: event without data", ErrMalformedPayload)
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	notice.OrderNo = sess.Metadata[stripeOrderKey]
	if notice.OrderNo == "" {
		notice.OrderNo = sess.ClientReferenceID
	}
	if notice.OrderNo == "" {
		return nil, fmt.Errorf("%w: session %s without order_no", ErrMalformedPayload, sess.ID)
	}
	notice.TransactionID = sess.ID
	if sess.PaymentIntent != nil && sess.PaymentIntent.ID != "" {
		notice.TransactionID = sess.PaymentIntent.ID
	}
	notice.Amount = decimal.New(sess.AmountTotal, -2)

	switch event.Type {
	case eventSessionCompleted, eventAsyncPaymentSucceded:
		// 异步支付方式在 completed 时仍为 unpaid, 等待后续事件
		if sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
			return notice, nil
		}
		notice.Outcome = model.OutcomeSuccess
		notice.PaidAt = time.Unix(event.Created, 0)
	default:
		notice.Outcome = model.OutcomeFailure
		notice.Reason = string(event.Type)
	}
	return notice, nil
}

func (s *StripeStrategy) Ack(ok bool) model.Ack {
	return AckFor(s.Channel(), ok)
}

var _ PaymentStrategy = (*StripeStrategy)(nil)
