package handler

import (
	"net/http"

	"treehub/internal/middleware"
	"treehub/internal/service"

	"github.com/gin-gonic/gin"
)

// LocaleHandler 负责本地化文案接口。
type LocaleHandler struct {
	localeService service.LocaleService
}

func NewLocaleHandler(localeService service.LocaleService) *LocaleHandler {
	return &LocaleHandler{localeService: localeService}
}

// UpsertLocaleRequest 是写入文案的请求体。
type UpsertLocaleRequest struct {
	Culture string `json:"culture" binding:"required"`
	Name    string `json:"name" binding:"required"`
	Value   string `json:"value" binding:"required"`
}

// GetStrings 返回请求语言合并后的完整文案表。
func (h *LocaleHandler) GetStrings(c *gin.Context) {
	table, err := h.localeService.GetStrings(middleware.CultureFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "Locale strings retrieved successfully",
		"data":    table,
	})
}

// Upsert 写入或更新一条文案（管理员）。
func (h *LocaleHandler) Upsert(c *gin.Context) {
	var req UpsertLocaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "Invalid request body",
		})
		return
	}

	if err := h.localeService.Set(req.Culture, req.Name, req.Value); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "Locale string saved successfully",
	})
}
