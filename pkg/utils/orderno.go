package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// DefaultOrderPrefix 订单号前缀
const DefaultOrderPrefix = "NP"

// GenerateOrderNo 生成订单号: 前缀 + yyyyMMddHHmmss + 4 位随机数
func GenerateOrderNo(prefix string, now time.Time) string {
	if prefix == "" {
		prefix = DefaultOrderPrefix
	}
	n, err := rand.Int(rand.Reader, big.NewInt(9000))
	if err != nil {
		n = big.NewInt(now.UnixNano() % 9000)
	}
	return fmt.Sprintf("%s%s%04d", prefix, now.Format("20060102150405"), n.Int64()+1000)
}
