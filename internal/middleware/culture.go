package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// CultureContextKey 文案语言的上下文键。
const CultureContextKey = "culture"

// CultureResolver 解析请求期望的文案语言：query 参数 culture 优先，
// 其次取 Accept-Language 的第一个语言标签，都没有时回落到 defaultCulture。
func CultureResolver(defaultCulture string) gin.HandlerFunc {
	if strings.TrimSpace(defaultCulture) == "" {
		defaultCulture = "en"
	}

	return func(c *gin.Context) {
		culture := strings.TrimSpace(c.Query("culture"))
		if culture == "" {
			culture = firstLanguageTag(c.GetHeader("Accept-Language"))
		}
		if culture == "" {
			culture = defaultCulture
		}

		c.Set(CultureContextKey, culture)
		c.Next()
	}
}

// CultureFromContext 读取 CultureResolver 注入的语言标签。
func CultureFromContext(c *gin.Context) string {
	if v, ok := c.Get(CultureContextKey); ok {
		if culture, ok := v.(string); ok {
			return culture
		}
	}
	return ""
}

// firstLanguageTag 取 Accept-Language 里第一个语言标签，丢弃 q 权重。
// "zh-CN,zh;q=0.9,en;q=0.8" -> "zh-CN"
func firstLanguageTag(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	first := strings.SplitN(header, ",", 2)[0]
	first = strings.SplitN(first, ";", 2)[0]
	return strings.TrimSpace(first)
}
