package utils

import (
	"crypto/rand"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

// NewID 生成业务主键 (售后单号、消息ID 等)
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// RandomDigits 生成指定长度的数字串，用于退款批次号
func RandomDigits(n int) string {
	var b strings.Builder
	b.Grow(n)
	ten := big.NewInt(10)
	for i := 0; i < n; i++ {
		d, err := rand.Int(rand.Reader, ten)
		if err != nil {
			b.WriteByte('0')
			continue
		}
		b.WriteByte(byte('0' + d.Int64()))
	}
	return b.String()
}
