package handler

import (
	"context"
	"net/http"
	"strings"

	"treehub/internal/middleware"
	"treehub/internal/search"
	"treehub/internal/service"
	"treehub/pkg/log"

	"github.com/gin-gonic/gin"
)

// NodeHandler 负责组织节点接口。读接口对登录用户开放，写接口由路由层加管理员中间件。
type NodeHandler struct {
	nodeService service.NodeService
	indexer     *search.Indexer
}

// NewNodeHandler 创建 NodeHandler。indexer 可为 nil，此时搜索接口返回 404。
func NewNodeHandler(nodeService service.NodeService, indexer *search.Indexer) *NodeHandler {
	return &NodeHandler{nodeService: nodeService, indexer: indexer}
}

// CreateNodeRequest 是创建组织节点的请求体。
// parentId 使用指针以区分“没传该字段”和“显式传空字符串”两种情况。
type CreateNodeRequest struct {
	ID          string  `json:"id" binding:"required"`
	Name        string  `json:"name" binding:"required"`
	Description string  `json:"description"`
	ParentID    *string `json:"parentId"`
	SortID      int     `json:"sortId"`
}

// UpdateNodeRequest 是更新组织节点的请求体。
type UpdateNodeRequest struct {
	Name        string  `json:"name" binding:"required"`
	Description string  `json:"description"`
	ParentID    *string `json:"parentId"`
	SortID      int     `json:"sortId"`
}

// MoveNodeRequest 是调整挂载位置的请求体。parentId 为 null 表示升为根节点。
type MoveNodeRequest struct {
	ParentID *string `json:"parentId"`
}

// BatchNodeRequest 是批量删除/启用/停用的请求体。
type BatchNodeRequest struct {
	IDs []string `json:"ids" binding:"required"`
}

// Create 创建组织节点。
func (h *NodeHandler) Create(c *gin.Context) {
	var req CreateNodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "Invalid request body",
		})
		return
	}

	user, ok := getUserFromContext(c)
	if !ok {
		return
	}

	input := service.NodeInput{
		Name:        req.Name,
		Description: req.Description,
		ParentID:    req.ParentID,
		SortID:      req.SortID,
	}
	node, err := h.nodeService.Create(middleware.TenantFromContext(c), req.ID, input, user.Username)
	if err != nil {
		log.Warnf("NodeHandler.Create: failed to create node: %v", err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"code":    http.StatusCreated,
		"message": "Org node created successfully",
		"data":    node,
	})
}

// List 返回平铺节点列表。带 parentId 参数时按父节点过滤并补齐缺失祖先。
func (h *NodeHandler) List(c *gin.Context) {
	tenantID := middleware.TenantFromContext(c)

	var parentID *string
	if raw, exists := c.GetQuery("parentId"); exists && strings.TrimSpace(raw) != "" {
		trimmed := strings.TrimSpace(raw)
		parentID = &trimmed
	}

	nodes, err := h.nodeService.ListByParent(tenantID, parentID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "Org nodes retrieved successfully",
		"data":    nodes,
	})
}

// GetTree 返回树形组织结构。
func (h *NodeHandler) GetTree(c *gin.Context) {
	tree, err := h.nodeService.GetTree(middleware.TenantFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "Org node tree retrieved successfully",
		"data":    tree,
	})
}

// Get 返回单个节点。
func (h *NodeHandler) Get(c *gin.Context) {
	node, err := h.nodeService.FindByID(middleware.TenantFromContext(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "Org node retrieved successfully",
		"data":    node,
	})
}

// GetSubtree 返回节点自身及其全部后代（平铺，按路径排序）。
func (h *NodeHandler) GetSubtree(c *gin.Context) {
	nodes, err := h.nodeService.GetSubtree(middleware.TenantFromContext(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "Org node subtree retrieved successfully",
		"data":    nodes,
	})
}

// Update 更新组织节点，parentId 变化时触发子树路径级联。
func (h *NodeHandler) Update(c *gin.Context) {
	var req UpdateNodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "Invalid request body",
		})
		return
	}

	user, ok := getUserFromContext(c)
	if !ok {
		return
	}

	input := service.NodeInput{
		Name:        req.Name,
		Description: req.Description,
		ParentID:    req.ParentID,
		SortID:      req.SortID,
	}
	node, err := h.nodeService.Update(middleware.TenantFromContext(c), c.Param("id"), input, user.Username)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "Org node updated successfully",
		"data":    node,
	})
}

// Move 只调整节点挂载位置。
func (h *NodeHandler) Move(c *gin.Context) {
	var req MoveNodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "Invalid request body",
		})
		return
	}

	user, ok := getUserFromContext(c)
	if !ok {
		return
	}

	node, err := h.nodeService.Move(middleware.TenantFromContext(c), c.Param("id"), req.ParentID, user.Username)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "Org node moved successfully",
		"data":    node,
	})
}

// Delete 批量删除组织节点。
// 支持两种策略（query 参数 strategy 控制）：
// 1. protect（默认）：有删除集外的子节点时拒绝删除。
// 2. subtree：连同各节点整棵子树一起删除。
func (h *NodeHandler) Delete(c *gin.Context) {
	var req BatchNodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "Invalid request body",
		})
		return
	}

	strategy := strings.ToLower(strings.TrimSpace(c.DefaultQuery("strategy", "protect")))
	var subtree bool
	switch strategy {
	case "protect":
		subtree = false
	case "subtree":
		subtree = true
	default:
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "Invalid delete strategy, use 'protect' or 'subtree'",
		})
		return
	}

	if err := h.nodeService.Delete(middleware.TenantFromContext(c), req.IDs, subtree); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "Org nodes deleted successfully",
	})
}

// Enable 批量启用节点。
func (h *NodeHandler) Enable(c *gin.Context) {
	h.setEnabled(c, true)
}

// Disable 批量停用节点，级联停用整棵子树。
func (h *NodeHandler) Disable(c *gin.Context) {
	h.setEnabled(c, false)
}

func (h *NodeHandler) setEnabled(c *gin.Context, enabled bool) {
	var req BatchNodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "Invalid request body",
		})
		return
	}

	user, ok := getUserFromContext(c)
	if !ok {
		return
	}

	if err := h.nodeService.SetEnabled(middleware.TenantFromContext(c), req.IDs, enabled, user.Username); err != nil {
		respondError(c, err)
		return
	}

	message := "Org nodes disabled successfully"
	if enabled {
		message = "Org nodes enabled successfully"
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": message,
	})
}

// GetChanges 返回节点的字段变更审计记录。
func (h *NodeHandler) GetChanges(c *gin.Context) {
	records, err := h.nodeService.GetChanges(middleware.TenantFromContext(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "Change records retrieved successfully",
		"data":    records,
	})
}

// Search 按名称/描述检索节点。未启用 Elasticsearch 时返回 404。
func (h *NodeHandler) Search(c *gin.Context) {
	if h.indexer == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"code":    http.StatusNotFound,
			"message": "Search is not enabled",
		})
		return
	}

	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "Query parameter 'q' is required",
		})
		return
	}

	docs, err := h.indexer.SearchNodes(context.Background(), middleware.TenantFromContext(c), query, 20)
	if err != nil {
		log.Errorf("NodeHandler.Search: search failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "Internal server error",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "Org nodes retrieved successfully",
		"data":    docs,
	})
}
