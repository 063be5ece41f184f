package strategy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	orderModel "nextspay/internal/domain/order/model"
	"nextspay/internal/domain/payment/model"
	"nextspay/internal/pkg/config"

	"github.com/shopspring/decimal"
	"github.com/smartwalle/alipay/v3"
)

const alipayTimeLayout = "2006-01-02 15:04:05"

// alipayClient smartwalle/alipay 客户端中用到的部分
type alipayClient interface {
	TradePagePay(param alipay.TradePagePay) (*url.URL, error)
	DecodeNotification(values url.Values) (*alipay.Notification, error)
}

// AlipayStrategy 支付宝电脑网站支付, RSA2 签名
type AlipayStrategy struct {
	client alipayClient
	config config.AlipayConfig
}

func NewAlipayStrategy(cfg config.AlipayConfig) (*AlipayStrategy, error) {
	if cfg.AppID == "" || cfg.PrivateKey == "" || cfg.PublicKey == "" {
		return nil, errors.New("alipay config missing")
	}

	client, err := alipay.New(cfg.AppID, cfg.PrivateKey, cfg.IsProduction)
	if err != nil {
		return nil, err
	}

	// 加载支付宝公钥 (用于验证签名)
	if err = client.LoadAliPayPublicKey(cfg.PublicKey); err != nil {
		return nil, err
	}

	return newAlipayStrategy(client, cfg), nil
}

func newAlipayStrategy(client alipayClient, cfg config.AlipayConfig) *AlipayStrategy {
	return &AlipayStrategy{client: client, config: cfg}
}

func (s *AlipayStrategy) Channel() string {
	return orderModel.PaymentTypeAlipay
}

// Pay 生成签名后的收银台跳转地址
func (s *AlipayStrategy) Pay(_ context.Context, order *orderModel.Order, _ PayOptions) (*model.PayResult, error) {
	if err := payable(s.Channel(), order); err != nil {
		return nil, err
	}

	p := alipay.TradePagePay{}
	p.NotifyURL = s.config.NotifyURL
	p.ReturnURL = s.config.ReturnURL
	p.Subject = order.Subject
	p.OutTradeNo = order.OrderNo
	p.TotalAmount = order.FinalAmount.StringFixed(2)
	p.ProductCode = "FAST_INSTANT_TRADE_PAY" // 电脑网站支付产品码

	u, err := s.client.TradePagePay(p)
	if err != nil {
		return nil, rejected(s.Channel(), err.Error())
	}
	return &model.PayResult{Channel: s.Channel(), PaymentURL: u.String()}, nil
}

// ParseNotify 异步通知为 POST 表单, 使用支付宝公钥验签
func (s *AlipayStrategy) ParseNotify(_ context.Context, r *http.Request) (*model.Notice, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, maxNotifyBody)
	if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	values := r.PostForm
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: empty form", ErrMalformedPayload)
	}

	// 1. 验证签名
	noti, err := s.client.DecodeNotification(values)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}
	if noti.AppId != "" && noti.AppId != s.config.AppID {
		return nil, fmt.Errorf("%w: app_id mismatch", ErrSignatureInvalid)
	}
	if noti.OutTradeNo == "" {
		return nil, fmt.Errorf("%w: missing out_trade_no", ErrMalformedPayload)
	}

	// 2. 解析金额
	amount, err := decimal.NewFromString(noti.TotalAmount)
	if err != nil {
		return nil, fmt.Errorf("%w: total_amount %q", ErrMalformedPayload, noti.TotalAmount)
	}
	raw, _ := json.Marshal(flatten(values))

	notice := &model.Notice{
		Channel:       s.Channel(),
		OrderNo:       noti.OutTradeNo,
		TransactionID: noti.TradeNo,
		Amount:        amount,
		Raw:           raw,
	}

	// 3. 检查交易状态, TRADE_SUCCESS 或 TRADE_FINISHED 表示成功
	switch noti.TradeStatus {
	case alipay.TradeStatusSuccess, alipay.TradeStatusFinished:
		notice.Outcome = model.OutcomeSuccess
		if t, err := time.ParseInLocation(alipayTimeLayout, noti.GmtPayment, chinaZone); err == nil {
			notice.PaidAt = t
		}
	case alipay.TradeStatusClosed:
		notice.Outcome = model.OutcomeFailure
		notice.Reason = string(noti.TradeStatus)
	default:
		notice.Outcome = model.OutcomeIgnored
	}
	return notice, nil
}

func (s *AlipayStrategy) Ack(ok bool) model.Ack {
	return AckFor(s.Channel(), ok)
}

func flatten(values url.Values) map[string]string {
	out := make(map[string]string, len(values))
	for k := range values {
		out[k] = values.Get(k)
	}
	return out
}

// 确保实现了接口
var _ PaymentStrategy = (*AlipayStrategy)(nil)
