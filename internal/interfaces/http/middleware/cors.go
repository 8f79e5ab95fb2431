// Package middleware 提供 HTTP 中间件
package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"storyloom-api/internal/config"
)

// CORS 跨域中间件
// 未配置的字段回退到保守默认值
func CORS(cfg config.CORSConfig) gin.HandlerFunc {
	allowed := cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     cfg.AllowedMethods,
		AllowHeaders:     cfg.AllowedHeaders,
		ExposeHeaders:    []string{RequestIDHeader, TraceIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	if len(allowed.AllowOrigins) == 0 {
		allowed.AllowOrigins = []string{"*"}
	}
	if len(allowed.AllowMethods) == 0 {
		allowed.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	}
	if len(allowed.AllowHeaders) == 0 {
		allowed.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", RequestIDHeader}
	}

	return cors.New(allowed)
}
