package strategy

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
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
	wechatSuccess    = "SUCCESS"
	wechatTimeLayout = "20060102150405"
	wechatBodyLimit  = 128
)

// 微信支付使用北京时间
var chinaZone = time.FixedZone("CST", 8*3600)

// WechatStrategy 微信支付 v2 (XML + MD5/HMAC-SHA256) 扫码支付
type WechatStrategy struct {
	cfg    config.WechatPayConfig
	client *http.Client
}

func NewWechatStrategy(cfg config.WechatPayConfig, client *http.Client) (*WechatStrategy, error) {
	if cfg.AppID == "" || cfg.MchID == "" || cfg.APIKey == "" {
		return nil, errors.New("wechat pay config missing")
	}
	if _, err := signerFor(cfg.SignType, cfg.APIKey); err != nil {
		return nil, err
	}
	if cfg.Gateway == "" {
		cfg.Gateway = "https://api.mch.weixin.qq.com"
	}
	if client == nil {
		client = &http.Client{}
	}
	return &WechatStrategy{cfg: cfg, client: client}, nil
}

func (s *WechatStrategy) Channel() string {
	return orderModel.PaymentTypeWechat
}

// Pay 统一下单 (NATIVE), 返回 code_url 作为二维码内容
func (s *WechatStrategy) Pay(ctx context.Context, order *orderModel.Order, opts PayOptions) (*model.PayResult, error) {
	if err := payable(s.Channel(), order); err != nil {
		return nil, err
	}
	signer, _ := signerFor(s.cfg.SignType, s.cfg.APIKey)

	nonce, err := utils.GenerateNonce()
	if err != nil {
		return nil, err
	}
	ip := opts.ClientIP
	if ip == "" {
		ip = "127.0.0.1"
	}
	params := xmlParams{
		"appid":            s.cfg.AppID,
		"mch_id":           s.cfg.MchID,
		"nonce_str":        nonce,
		"body":             truncate(order.Subject, wechatBodyLimit),
		"out_trade_no":     order.OrderNo,
		"total_fee":        strconv.FormatInt(toCents(order.FinalAmount), 10),
		"spbill_create_ip": ip,
		"notify_url":       s.cfg.NotifyURL,
		"trade_type":       "NATIVE",
		"product_id":       order.OrderNo,
	}
	if isHMAC(s.cfg.SignType) {
		params["sign_type"] = "HMAC-SHA256"
	}
	if order.ExpireAt != nil {
		params["time_expire"] = order.ExpireAt.In(chinaZone).Format(wechatTimeLayout)
	}
	if params["sign"], err = signer.Sign(sign.Canonical(params, "sign")); err != nil {
		return nil, err
	}
	body, err := xml.Marshal(params)
	if err != nil {
		return nil, err
	}

	var resp xmlParams
	err = withRetry(ctx, s.cfg.GatewayOptions, func(ctx context.Context) error {
		var callErr error
		resp, callErr = s.unifiedOrder(ctx, body)
		return callErr
	})
	if err != nil {
		return nil, err
	}

	if resp["return_code"] != wechatSuccess {
		return nil, rejected(s.Channel(), resp["return_msg"])
	}
	if err := signer.Verify(sign.Canonical(resp, "sign"), resp["sign"]); err != nil {
		return nil, rejected(s.Channel(), "response signature invalid")
	}
	if resp["result_code"] != wechatSuccess {
		msg := resp["err_code_des"]
		if msg == "" {
			msg = resp["err_code"]
		}
		return nil, rejected(s.Channel(), msg)
	}
	if resp["code_url"] == "" {
		return nil, rejected(s.Channel(), "empty code_url")
	}
	return &model.PayResult{Channel: s.Channel(), PaymentURL: resp["code_url"], QRCode: resp["code_url"]}, nil
}

func (s *WechatStrategy) unifiedOrder(ctx context.Context, body []byte) (xmlParams, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(s.cfg.Gateway, "/")+"/pay/unifiedorder", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")

	res, err := s.client.Do(req)
	if err != nil {
		return nil, unavailable(s.Channel(), err)
	}
	defer res.Body.Close()

	if res.StatusCode >= http.StatusInternalServerError {
		return nil, unavailable(s.Channel(), fmt.Errorf("http status %d", res.StatusCode))
	}
	if res.StatusCode != http.StatusOK {
		return nil, rejected(s.Channel(), fmt.Sprintf("http status %d", res.StatusCode))
	}
	raw, err := io.ReadAll(io.LimitReader(res.Body, maxNotifyBody))
	if err != nil {
		return nil, unavailable(s.Channel(), err)
	}
	var out xmlParams
	if err := xml.Unmarshal(raw, &out); err != nil {
		return nil, rejected(s.Channel(), "invalid response body")
	}
	return out, nil
}

// ParseNotify 解析支付结果通知 XML 并验签
func (s *WechatStrategy) ParseNotify(_ context.Context, r *http.Request) (*model.Notice, error) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxNotifyBody))
	if err != nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrMalformedPayload)
	}
	var params xmlParams
	if err := xml.Unmarshal(raw, &params); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if params["return_code"] != wechatSuccess {
		return nil, fmt.Errorf("%w: return_code=%s %s", ErrMalformedPayload, params["return_code"], params["return_msg"])
	}

	signType := params["sign_type"]
	if signType == "" {
		signType = s.cfg.SignType
	}
	signer, err := signerFor(signType, s.cfg.APIKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}
	if err := signer.Verify(sign.Canonical(params, "sign"), params["sign"]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}
	if params["mch_id"] != s.cfg.MchID || params["appid"] != s.cfg.AppID {
		return nil, fmt.Errorf("%w: merchant mismatch", ErrSignatureInvalid)
	}

	if params["out_trade_no"] == "" {
		return nil, fmt.Errorf("%w: missing out_trade_no", ErrMalformedPayload)
	}
	amount, err := fromCents(params["total_fee"])
	if err != nil {
		return nil, err
	}
	payload, _ := json.Marshal(params)

	notice := &model.Notice{
		Channel:       s.Channel(),
		OrderNo:       params["out_trade_no"],
		TransactionID: params["transaction_id"],
		Amount:        amount,
		Raw:           payload,
	}
	if params["result_code"] == wechatSuccess {
		notice.Outcome = model.OutcomeSuccess
		if t, err := time.ParseInLocation(wechatTimeLayout, params["time_end"], chinaZone); err == nil {
			notice.PaidAt = t
		}
		return notice, nil
	}
	notice.Outcome = model.OutcomeFailure
	notice.Reason = firstNonEmpty(params["err_code_des"], params["err_code"], "支付失败")
	return notice, nil
}

func (s *WechatStrategy) Ack(ok bool) model.Ack {
	return AckFor(s.Channel(), ok)
}

func signerFor(signType, key string) (sign.Signer, error) {
	switch {
	case signType == "" || strings.EqualFold(signType, "MD5"):
		return sign.MD5Signer{Key: key}, nil
	case isHMAC(signType):
		return sign.HMACSHA256Signer{Key: key}, nil
	default:
		return nil, fmt.Errorf("unsupported wechat sign_type %q", signType)
	}
}

func isHMAC(signType string) bool {
	return strings.EqualFold(signType, "HMAC-SHA256")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

var _ PaymentStrategy = (*WechatStrategy)(nil)
