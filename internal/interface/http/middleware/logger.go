package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xiebiao/rentalhub/pkg/response"
	"github.com/xiebiao/rentalhub/pkg/tracing"
)

// slowRequestThreshold 慢请求阈值
const slowRequestThreshold = 3 * time.Second

// RequestLogger 请求日志中间件
//
// 教学要点：
// 1. 每个请求生成唯一的请求ID，写入响应头X-Request-ID
// 2. 带request_id的子Logger放进Context，response.Error记录内部错误时会带上它
// 3. 结构化字段输出（方法、路径、状态码、耗时、客户端IP）
//
// DON'T：
// - 记录敏感信息（密码、Token）
// - 记录完整的请求体
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)

		reqLogger := logger.With(zap.String("request_id", requestID))
		if traceID := tracing.ExtractTraceID(c.Request.Context()); traceID != "" {
			reqLogger = reqLogger.With(zap.String("trace_id", traceID))
		}
		response.SetLogger(c, reqLogger)

		start := time.Now()
		c.Next()
		latency := time.Since(start)

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		if latency > slowRequestThreshold {
			reqLogger.Warn("slow request", fields...)
			return
		}
		reqLogger.Info("request", fields...)
	}
}
