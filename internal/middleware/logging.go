package middleware

import (
	"time"

	"treehub/pkg/log"

	"github.com/gin-gonic/gin"
)

// RequestLogger 记录每个请求的方法、路径、状态码、耗时和租户。
// 不抓取请求/响应体：树接口的响应可能很大，完整留痕交给事件日志。
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()

		c.Next()

		log.Infow("HTTP request",
			"latency", time.Since(startTime),
			"status", c.Writer.Status(),
			"client_ip", c.ClientIP(),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"tenant", TenantFromContext(c),
		)
	}
}
