// Package middleware 提供 HTTP 中间件
package middleware

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"runtime/debug"
	"syscall"

	apperrors "storyloom-api/pkg/errors"
	"storyloom-api/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Recovery Panic 恢复中间件
// 连接已断开时只中止请求，不再尝试写响应
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}

			err := fmt.Errorf("%v", r)
			logger.Error(c.Request.Context(), "panic recovered", err,
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"stack", string(debug.Stack()),
			)

			if isBrokenConnection(r) {
				c.Abort()
				return
			}

			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"code":    http.StatusInternalServerError,
				"message": apperrors.ErrInternalError.Message,
				"error": gin.H{
					"error_code": string(apperrors.CodeInternalError),
				},
			})
		}()

		c.Next()
	}
}

// isBrokenConnection 判断 panic 是否源于客户端断开连接
func isBrokenConnection(r interface{}) bool {
	err, ok := r.(error)
	if !ok {
		return false
	}
	var opErr *net.OpError
	if !errors.As(err, &opErr) {
		return false
	}
	return errors.Is(opErr.Err, syscall.EPIPE) || errors.Is(opErr.Err, syscall.ECONNRESET)
}
