package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func resolveTenant(t *testing.T, middleware gin.HandlerFunc, build func(req *http.Request)) string {
	t.Helper()
	gin.SetMode(gin.TestMode)

	var got string
	router := gin.New()
	router.Use(middleware)
	router.GET("/", func(c *gin.Context) {
		got = TenantFromContext(c)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if build != nil {
		build(req)
	}
	router.ServeHTTP(httptest.NewRecorder(), req)
	return got
}

// TestTenantResolver_Priority 验证解析优先级：请求头 > query > cookie > 默认。
func TestTenantResolver_Priority(t *testing.T) {
	middleware := TenantResolver("default")

	tests := []struct {
		name  string
		build func(req *http.Request)
		want  string
	}{
		{
			name: "请求头优先",
			build: func(req *http.Request) {
				req.Header.Set(TenantHeader, "from-header")
				req.URL.RawQuery = "tenant=from-query"
				req.AddCookie(&http.Cookie{Name: TenantCookieKey, Value: "from-cookie"})
			},
			want: "from-header",
		},
		{
			name: "无请求头时取 query",
			build: func(req *http.Request) {
				req.URL.RawQuery = "tenant=from-query"
				req.AddCookie(&http.Cookie{Name: TenantCookieKey, Value: "from-cookie"})
			},
			want: "from-query",
		},
		{
			name: "只有 cookie 时取 cookie",
			build: func(req *http.Request) {
				req.AddCookie(&http.Cookie{Name: TenantCookieKey, Value: "from-cookie"})
			},
			want: "from-cookie",
		},
		{
			name: "全部缺失回落默认",
			want: "default",
		},
		{
			name: "空白请求头视同缺失",
			build: func(req *http.Request) {
				req.Header.Set(TenantHeader, "   ")
			},
			want: "default",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := resolveTenant(t, middleware, tt.build); got != tt.want {
				t.Fatalf("resolved tenant = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTenantResolver_EmptyDefaultFallsBack(t *testing.T) {
	if got := resolveTenant(t, TenantResolver("  "), nil); got != "default" {
		t.Fatalf("empty default should normalize to \"default\", got %q", got)
	}
}

func TestTenantFromContext_Unset(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	if got := TenantFromContext(c); got != "" {
		t.Fatalf("expected empty tenant without resolver, got %q", got)
	}
}
