package middleware

import (
	"errors"
	"net/http"

	"treehub/internal/model"

	"github.com/gin-gonic/gin"
)

var errInvalidAuthHeader = errors.New("invalid authorization header")

// AdminAuthMiddleware 保护仅管理员可用的接口（组织结构的全部写操作）。
// 必须挂在 AuthMiddleware 之后，依赖其注入的用户身份。
func AdminAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userVal, exists := c.Get("user")
		if !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":    http.StatusUnauthorized,
				"message": "User not found in context",
			})
			return
		}

		user, ok := userVal.(*model.User)
		if !ok {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"code":    http.StatusInternalServerError,
				"message": "Failed to get user profile",
			})
			return
		}

		if user.Role != "ADMIN" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"code":    http.StatusForbidden,
				"message": "Forbidden: Only admin can access this resource",
			})
			return
		}

		c.Next()
	}
}
