package handler

import (
	"net/http"

	"treehub/internal/events"
	"treehub/internal/middleware"
	"treehub/internal/service"

	"github.com/gin-gonic/gin"
)

// EventHandler 负责集成事件日志的查询与订阅接口。
// 状态回执（processing/success/fail）由事件消费方调用。
type EventHandler struct {
	eventService service.EventService
	hub          *events.Hub
}

func NewEventHandler(eventService service.EventService, hub *events.Hub) *EventHandler {
	return &EventHandler{eventService: eventService, hub: hub}
}

// MarkFailRequest 是失败回执的请求体。
type MarkFailRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// List 按租户（可选按状态）列出事件。
func (h *EventHandler) List(c *gin.Context) {
	eventsList, err := h.eventService.List(middleware.TenantFromContext(c), c.Query("state"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "Integration events retrieved successfully",
		"data":    eventsList,
	})
}

// Get 返回单个事件及其重试记录。
func (h *EventHandler) Get(c *gin.Context) {
	eventID := c.Param("id")

	event, err := h.eventService.FindByID(eventID)
	if err != nil {
		respondError(c, err)
		return
	}

	retryLogs, err := h.eventService.GetRetryLogs(eventID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "Integration event retrieved successfully",
		"data": gin.H{
			"event":     event,
			"retryLogs": retryLogs,
		},
	})
}

// MarkProcessing 消费方认领事件。
func (h *EventHandler) MarkProcessing(c *gin.Context) {
	if err := h.eventService.MarkProcessing(c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "Integration event marked as processing",
	})
}

// MarkSuccess 消费方确认处理成功。
func (h *EventHandler) MarkSuccess(c *gin.Context) {
	if err := h.eventService.MarkSuccess(c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "Integration event marked as success",
	})
}

// MarkFail 消费方上报处理失败，追加一条尝试记录。
func (h *EventHandler) MarkFail(c *gin.Context) {
	var req MarkFailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "Invalid request body",
		})
		return
	}

	if err := h.eventService.MarkFail(c.Param("id"), req.Reason); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "Integration event marked as fail",
	})
}

// Subscribe 升级为 websocket 连接，实时接收本租户的新事件。
func (h *EventHandler) Subscribe(c *gin.Context) {
	if h.hub == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"code":    http.StatusNotFound,
			"message": "Event feed is not enabled",
		})
		return
	}
	h.hub.HandleWS(c, middleware.TenantFromContext(c))
}
