package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"insight-service/pkg/logger"
)

// ContextKeyRequestID gin上下文中请求标识的键
const ContextKeyRequestID = "request_id"

// RequestContextMiddleware 为每个请求分配request_id并回写响应头。
// 用户身份只认JWT中间件的验签结果，不透传网关头；
// 5xx响应补一条带request_id的错误日志，便于按请求排查。
func RequestContextMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Set(ContextKeyRequestID, reqID)
		c.Writer.Header().Set("X-Request-ID", reqID)

		start := time.Now()
		c.Next()

		if status := c.Writer.Status(); status >= 500 {
			logger.Errorf("request failed request_id=%s method=%s path=%s status=%d latency=%s",
				reqID, c.Request.Method, c.Request.URL.Path, status, time.Since(start))
		}
	}
}

// RequestIDFromContext 读取当前请求的request_id
func RequestIDFromContext(c *gin.Context) string {
	if v, ok := c.Get(ContextKeyRequestID); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
