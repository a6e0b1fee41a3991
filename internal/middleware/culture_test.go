package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

// TestCultureResolver 验证语言解析：query 参数 > Accept-Language > 默认。
func TestCultureResolver(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name   string
		query  string
		header string
		want   string
	}{
		{"query 优先", "culture=zh-CN", "en-US,en;q=0.8", "zh-CN"},
		{"取 Accept-Language 首个标签", "", "zh-CN,zh;q=0.9,en;q=0.8", "zh-CN"},
		{"丢弃 q 权重", "", "fr;q=0.7", "fr"},
		{"全部缺失回落默认", "", "", "en"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			router := gin.New()
			router.Use(CultureResolver("en"))
			router.GET("/", func(c *gin.Context) {
				got = CultureFromContext(c)
				c.Status(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/?"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Accept-Language", tt.header)
			}
			router.ServeHTTP(httptest.NewRecorder(), req)

			if got != tt.want {
				t.Fatalf("resolved culture = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFirstLanguageTag(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"zh-CN,zh;q=0.9,en;q=0.8", "zh-CN"},
		{"en-US", "en-US"},
		{" de ; q=0.5 ", "de"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := firstLanguageTag(tt.header); got != tt.want {
			t.Fatalf("firstLanguageTag(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}
