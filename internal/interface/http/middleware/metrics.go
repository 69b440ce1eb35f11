package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xiebiao/rentalhub/pkg/metrics"
)

// Metrics HTTP指标中间件
// 教学要点：path使用路由模板（/api/v1/orders/:id）而不是实际URL，
// 否则每个订单ID都会产生一条新的时间序列（标签基数爆炸）
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		metrics.HTTPInProgress(1)
		defer metrics.HTTPInProgress(-1)

		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.RecordHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
