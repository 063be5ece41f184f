package strategy

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	orderModel "nextspay/internal/domain/order/model"
	"nextspay/internal/domain/payment/model"
	"nextspay/internal/pkg/config"
	"nextspay/pkg/sign"

	"github.com/wechatpay-apiv3/wechatpay-go/utils"
)

const (
	unionPayVersion    = "5.1.0"
	unionPayTimeLayout = "20060102150405"
	unionPaySuccess    = "00"
)

// UnionPayStrategy 银联全渠道网关支付 5.1.0
type UnionPayStrategy struct {
	cfg    config.UnionPayConfig
	signer sign.RSASigner
}

func NewUnionPayStrategy(cfg config.UnionPayConfig) (*UnionPayStrategy, error) {
	if cfg.MerID == "" || cfg.PrivateKey == "" || cfg.PublicKey == "" {
		return nil, errors.New("unionpay config missing")
	}
	privateKey, err := utils.LoadPrivateKey(cfg.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("load unionpay private key: %w", err)
	}
	publicKey, err := loadVerifyKey(cfg.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("load unionpay public key: %w", err)
	}
	if cfg.Gateway == "" {
		cfg.Gateway = "https://gateway.95516.com/gateway/api"
	}
	return &UnionPayStrategy{
		cfg:    cfg,
		signer: sign.RSASigner{PrivateKey: privateKey, PublicKey: publicKey, Digest: true},
	}, nil
}

// loadVerifyKey 支持 PEM 公钥或证书
func loadVerifyKey(pemText string) (*rsa.PublicKey, error) {
	if !strings.Contains(pemText, "CERTIFICATE") {
		return utils.LoadPublicKey(pemText)
	}
	cert, err := utils.LoadCertificate(pemText)
	if err != nil {
		return nil, err
	}
	key, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("certificate does not carry an RSA public key")
	}
	return key, nil
}

func (s *UnionPayStrategy) Channel() string {
	return orderModel.PaymentTypeUnionPay
}

// Pay 生成前台交易跳转地址, 用户在银联页面完成支付
func (s *UnionPayStrategy) Pay(_ context.Context, order *orderModel.Order, opts PayOptions) (*model.PayResult, error) {
	if err := payable(s.Channel(), order); err != nil {
		return nil, err
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	params := map[string]string{
		"version":      unionPayVersion,
		"encoding":     "UTF-8",
		"certId":       s.cfg.CertID,
		"signMethod":   "01",
		"txnType":      "01",
		"txnSubType":   "01",
		"bizType":      "000201",
		"channelType":  "07",
		"accessType":   "0",
		"merId":        s.cfg.MerID,
		"orderId":      order.OrderNo,
		"txnTime":      now.In(chinaZone).Format(unionPayTimeLayout),
		"txnAmt":       strconv.FormatInt(toCents(order.FinalAmount), 10),
		"currencyCode": "156",
		"frontUrl":     s.cfg.FrontURL,
		"backUrl":      s.cfg.BackURL,
	}
	signature, err := s.signer.Sign(sign.Canonical(params, "signature"))
	if err != nil {
		return nil, err
	}
	params["signature"] = signature

	values := make(url.Values, len(params))
	for k, v := range params {
		values.Set(k, v)
	}
	paymentURL := strings.TrimRight(s.cfg.Gateway, "/") + "/frontTransReq.do?" + values.Encode()
	return &model.PayResult{Channel: s.Channel(), PaymentURL: paymentURL, QRCode: paymentURL}, nil
}

// ParseNotify 后台通知为 POST 表单, respCode=00 表示成功
func (s *UnionPayStrategy) ParseNotify(_ context.Context, r *http.Request) (*model.Notice, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, maxNotifyBody)
	if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if len(r.PostForm) == 0 {
		return nil, fmt.Errorf("%w: empty form", ErrMalformedPayload)
	}
	params := flatten(r.PostForm)

	if err := s.signer.Verify(sign.Canonical(params, "signature"), params["signature"]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}
	if params["merId"] != s.cfg.MerID {
		return nil, fmt.Errorf("%w: merId mismatch", ErrSignatureInvalid)
	}
	if params["orderId"] == "" {
		return nil, fmt.Errorf("%w: missing orderId", ErrMalformedPayload)
	}
	amount, err := fromCents(params["txnAmt"])
	if err != nil {
		return nil, err
	}
	raw, _ := json.Marshal(params)

	notice := &model.Notice{
		Channel:       s.Channel(),
		OrderNo:       params["orderId"],
		TransactionID: params["queryId"],
		Amount:        amount,
		Raw:           raw,
	}
	if params["respCode"] == unionPaySuccess {
		notice.Outcome = model.OutcomeSuccess
		if t, err := time.ParseInLocation(unionPayTimeLayout, params["txnTime"], chinaZone); err == nil {
			notice.PaidAt = t
		}
		return notice, nil
	}
	notice.Outcome = model.OutcomeFailure
	notice.Reason = firstNonEmpty(params["respMsg"], "respCode="+params["respCode"])
	return notice, nil
}

func (s *UnionPayStrategy) Ack(ok bool) model.Ack {
	return AckFor(s.Channel(), ok)
}

var _ PaymentStrategy = (*UnionPayStrategy)(nil)
