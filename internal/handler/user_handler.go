package handler

import (
	"net/http"

	"treehub/internal/service"
	"treehub/pkg/log"
	"treehub/pkg/token"

	"github.com/gin-gonic/gin"
)

// UserHandler 负责认证相关接口。
type UserHandler struct {
	userService service.UserService
	jwtManager  *token.JWTManager
}

func NewUserHandler(userService service.UserService, jwtManager *token.JWTManager) *UserHandler {
	return &UserHandler{userService: userService, jwtManager: jwtManager}
}

// RegisterRequest 是注册请求体。
type RegisterRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required,min=6"`
}

// LoginRequest 是登录请求体。
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RefreshRequest 是刷新令牌请求体。
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// Register 注册新用户。
func (h *UserHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "Invalid request body",
		})
		return
	}

	user, err := h.userService.Register(req.Username, req.Password)
	if err != nil {
		log.Warnf("UserHandler.Register: failed to register user %q: %v", req.Username, err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"code":    http.StatusCreated,
		"message": "User registered successfully",
		"data":    user,
	})
}

// Login 登录并返回令牌对。
func (h *UserHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "Invalid request body",
		})
		return
	}

	accessToken, refreshToken, err := h.userService.Login(req.Username, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "Login successful",
		"data": gin.H{
			"accessToken":  accessToken,
			"refreshToken": refreshToken,
		},
	})
}

// Logout 把当前 access token 拉入黑名单。
func (h *UserHandler) Logout(c *gin.Context) {
	claimsVal, exists := c.Get("claims")
	tokenVal, tokenExists := c.Get("token")
	if !exists || !tokenExists {
		c.JSON(http.StatusUnauthorized, gin.H{
			"code":    http.StatusUnauthorized,
			"message": "Not authenticated",
		})
		return
	}

	claims, ok := claimsVal.(*token.CustomClaims)
	tokenString, okToken := tokenVal.(string)
	if !ok || !okToken || claims.ExpiresAt == nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "Internal server error",
		})
		return
	}

	if err := h.userService.Logout(tokenString, claims.ExpiresAt.Time); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "Logout successful",
	})
}

// Refresh 用 refresh token 换新的令牌对。
func (h *UserHandler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "Invalid request body",
		})
		return
	}

	claims, err := h.jwtManager.VerifyToken(req.RefreshToken)
	if err != nil || claims == nil || claims.TokenType != token.TokenTypeRefresh {
		c.JSON(http.StatusUnauthorized, gin.H{
			"code":    http.StatusUnauthorized,
			"message": "Invalid or expired refresh token",
		})
		return
	}

	// 回查用户，确认未被删除或改权限
	user, err := h.userService.GetProfile(claims.Username)
	if err != nil {
		respondError(c, err)
		return
	}

	accessToken, refreshToken, err := h.jwtManager.GenerateToken(user.ID, user.Username, user.Role)
	if err != nil {
		log.Errorf("UserHandler.Refresh: failed to generate token: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "Internal server error",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "Token refreshed successfully",
		"data": gin.H{
			"accessToken":  accessToken,
			"refreshToken": refreshToken,
		},
	})
}

// GetProfile 返回当前登录用户信息。
func (h *UserHandler) GetProfile(c *gin.Context) {
	user, ok := getUserFromContext(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "Profile retrieved successfully",
		"data":    user,
	})
}
