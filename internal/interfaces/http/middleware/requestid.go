// Package middleware 提供 HTTP 中间件
package middleware

import (
	"storyloom-api/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// RequestIDHeader 请求 ID 头
	RequestIDHeader = "X-Request-ID"
	// TraceIDHeader 追踪 ID 响应头
	TraceIDHeader = "X-Trace-ID"
)

// RequestID 请求 ID 注入中间件
// 透传调用方携带的 ID，缺失时生成新的，并回写到响应头
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}

		c.Set("request_id", id)
		c.Header(RequestIDHeader, id)

		// 注入到请求 Context，供 slog 自动附带
		ctx := logger.WithContext(c.Request.Context(), logger.RequestIDKey, id)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}
