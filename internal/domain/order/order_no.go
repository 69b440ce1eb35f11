package order

import (
	"fmt"
	"math/rand"
	"time"
)

// GenerateOrderNo 生成订单号
// 格式:RNT + 时间戳(秒) + 6位随机数,如 RNT1699248000123456
func GenerateOrderNo(now time.Time) string {
	return fmt.Sprintf("RNT%d%06d", now.Unix(), rand.Intn(1000000))
}
