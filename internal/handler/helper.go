package handler

import (
	"errors"
	"net/http"

	"treehub/internal/model"
	"treehub/internal/service"

	"github.com/gin-gonic/gin"
)

// mapServiceError 把 Service 层哨兵错误转换为 HTTP 状态码和对外消息。
// 统一映射的价值：
// 1. Handler 不必散落大量 if/else 判断。
// 2. 对外返回口径稳定，避免泄露内部实现细节。
func mapServiceError(err error) (httpStatus int, message string) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest, "Invalid request parameters"
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid username or password"
	case errors.Is(err, service.ErrUserAlreadyExists):
		return http.StatusConflict, "User already exists"
	case errors.Is(err, service.ErrUserNotFound):
		return http.StatusNotFound, "User not found"
	case errors.Is(err, service.ErrNodeNotFound):
		return http.StatusNotFound, "Org node not found"
	case errors.Is(err, service.ErrNodeAlreadyExists):
		return http.StatusConflict, "Org node already exists"
	case errors.Is(err, service.ErrNodeHasChildren):
		return http.StatusConflict, "Org node has child nodes"
	case errors.Is(err, service.ErrNodeCycle):
		return http.StatusConflict, "Org node move would create a cycle"
	case errors.Is(err, service.ErrEventNotFound):
		return http.StatusNotFound, "Integration event not found"
	case errors.Is(err, service.ErrEventStateConflict):
		return http.StatusConflict, "Integration event state conflict"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

// respondError 用统一结构写错误响应。
func respondError(c *gin.Context, err error) {
	status, msg := mapServiceError(err)
	c.JSON(status, gin.H{
		"code":    status,
		"message": msg,
	})
}

// getUserFromContext 从 Gin 上下文读取 AuthMiddleware 注入的用户对象。
// 上下文异常时直接写错误响应并返回 false，调用方只需 `if !ok { return }`。
func getUserFromContext(c *gin.Context) (*model.User, bool) {
	userVal, exists := c.Get("user")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{
			"code":    http.StatusUnauthorized,
			"message": "User not found in context",
		})
		return nil, false
	}

	user, ok := userVal.(*model.User)
	if !ok || user == nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "Failed to get user profile",
		})
		return nil, false
	}
	return user, true
}
