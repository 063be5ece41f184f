package sign

import (
	"crypto"
	"crypto/hmac"
	"crypto/md5"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"sort"
	"strings"

	"github.com/wechatpay-apiv3/wechatpay-go/utils"
)

var (
	ErrSignatureMismatch = errors.New("signature mismatch")
	ErrMissingKey        = errors.New("signing key not configured")
)

// Signer 签名算法
type Signer interface {
	Sign(content string) (string, error)
	Verify(content, signature string) error
}

// Canonical 按 key 字典序拼接 k=v&k=v，跳过空值和 exclude 中的字段
func Canonical(params map[string]string, exclude ...string) string {
	skip := make(map[string]struct{}, len(exclude))
	for _, k := range exclude {
		skip[k] = struct{}{}
	}

	keys := make([]string, 0, len(params))
	for k, v := range params {
		if v == "" {
			continue
		}
		if _, ok := skip[k]; ok {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(params[k])
	}
	return b.String()
}

// MD5Signer 微信支付 v2 MD5 签名: MD5(content&key=KEY) 转大写
type MD5Signer struct {
	Key string
}

func (s MD5Signer) Sign(content string) (string, error) {
	if s.Key == "" {
		return "", ErrMissingKey
	}
	sum := md5.Sum([]byte(content + "&key=" + s.Key))
	return strings.ToUpper(hex.EncodeToString(sum[:])), nil
}

func (s MD5Signer) Verify(content, signature string) error {
	return verifyKeyed(s, content, signature)
}

// HMACSHA256Signer 微信支付 v2 HMAC-SHA256 签名
type HMACSHA256Signer struct {
	Key string
}

func (s HMACSHA256Signer) Sign(content string) (string, error) {
	if s.Key == "" {
		return "", ErrMissingKey
	}
	mac := hmac.New(sha256.New, []byte(s.Key))
	mac.Write([]byte(content + "&key=" + s.Key))
	return strings.ToUpper(hex.EncodeToString(mac.Sum(nil))), nil
}

func (s HMACSHA256Signer) Verify(content, signature string) error {
	return verifyKeyed(s, content, signature)
}

func verifyKeyed(s Signer, content, signature string) error {
	if signature == "" {
		return ErrSignatureMismatch
	}
	expected, err := s.Sign(content)
	if err != nil {
		return err
	}
	if !hmac.Equal([]byte(expected), []byte(strings.ToUpper(signature))) {
		return ErrSignatureMismatch
	}
	return nil
}

// RSASigner SHA256WithRSA 签名，结果为 base64
// Digest 为 true 时先对内容做 SHA-256 十六进制摘要再签名 (银联 5.1.0)
type RSASigner struct {
	PrivateKey *rsa.PrivateKey
	PublicKey  *rsa.PublicKey
	Digest     bool
}

func (s RSASigner) prepare(content string) string {
	if !s.Digest {
		return content
	}
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

func (s RSASigner) Sign(content string) (string, error) {
	if s.PrivateKey == nil {
		return "", ErrMissingKey
	}
	return utils.SignSHA256WithRSA(s.prepare(content), s.PrivateKey)
}

func (s RSASigner) Verify(content, signature string) error {
	if s.PublicKey == nil {
		return ErrMissingKey
	}
	raw, err := base64.StdEncoding.DecodeString(signature)
	if err != nil || len(raw) == 0 {
		return ErrSignatureMismatch
	}
	hashed := sha256.Sum256([]byte(s.prepare(content)))
	if err := rsa.VerifyPKCS1v15(s.PublicKey, crypto.SHA256, hashed[:], raw); err != nil {
		return ErrSignatureMismatch
	}
	return nil
}
