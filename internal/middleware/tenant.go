package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// 租户解析的上下文键与各解析来源。解析顺序：请求头 → query 参数 → cookie → 默认租户。
const (
	TenantContextKey = "tenant_id"
	TenantHeader     = "X-Tenant-Id"
	TenantQueryKey   = "tenant"
	TenantCookieKey  = "tenant_id"
)

// TenantResolver 按固定优先级从请求中解析租户标识并注入 Gin 上下文。
// 任何来源都没有时回落到 defaultTenant，保证下游始终拿得到租户。
func TenantResolver(defaultTenant string) gin.HandlerFunc {
	if strings.TrimSpace(defaultTenant) == "" {
		defaultTenant = "default"
	}

	return func(c *gin.Context) {
		tenantID := strings.TrimSpace(c.GetHeader(TenantHeader))
		if tenantID == "" {
			tenantID = strings.TrimSpace(c.Query(TenantQueryKey))
		}
		if tenantID == "" {
			if cookie, err := c.Cookie(TenantCookieKey); err == nil {
				tenantID = strings.TrimSpace(cookie)
			}
		}
		if tenantID == "" {
			tenantID = defaultTenant
		}

		c.Set(TenantContextKey, tenantID)
		c.Next()
	}
}

// TenantFromContext 读取 TenantResolver 注入的租户标识。
// 中间件未挂载时返回空串，由调用方决定如何失败。
func TenantFromContext(c *gin.Context) string {
	if v, ok := c.Get(TenantContextKey); ok {
		if tenantID, ok := v.(string); ok {
			return tenantID
		}
	}
	return ""
}
