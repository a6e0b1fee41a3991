package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"treehub/internal/middleware"
	"treehub/internal/model"
	"treehub/internal/service"
	applog "treehub/pkg/log"

	"github.com/gin-gonic/gin"
)

func TestMain(m *testing.M) {
	// handler 里有 log.Warnf/Errorf，初始化一下避免 nil panic
	applog.Init("error", "console", "")
	code := m.Run()
	os.Exit(code)
}

// stubNodeService 用函数字段替换各业务操作，便于在 handler 测试中注入行为。
type stubNodeService struct {
	createFn     func(tenantID, id string, input service.NodeInput, actor string) (*model.OrgNode, error)
	updateFn     func(tenantID, id string, input service.NodeInput, actor string) (*model.OrgNode, error)
	moveFn       func(tenantID, id string, parentID *string, actor string) (*model.OrgNode, error)
	deleteFn     func(tenantID string, ids []string, subtree bool) error
	setEnabledFn func(tenantID string, ids []string, enabled bool, actor string) error
	findByIDFn   func(tenantID, id string) (*model.OrgNode, error)
	getTreeFn    func(tenantID string) ([]*model.OrgNodeTreeItem, error)
	getSubtreeFn func(tenantID, id string) ([]model.OrgNode, error)
	listFn       func(tenantID string, parentID *string) ([]model.OrgNode, error)
	getChangesFn func(tenantID, id string) ([]model.ChangeRecord, error)
}

func (s *stubNodeService) Create(tenantID, id string, input service.NodeInput, actor string) (*model.OrgNode, error) {
	return s.createFn(tenantID, id, input, actor)
}

func (s *stubNodeService) Update(tenantID, id string, input service.NodeInput, actor string) (*model.OrgNode, error) {
	return s.updateFn(tenantID, id, input, actor)
}

func (s *stubNodeService) Move(tenantID, id string, parentID *string, actor string) (*model.OrgNode, error) {
	return s.moveFn(tenantID, id, parentID, actor)
}

func (s *stubNodeService) Delete(tenantID string, ids []string, subtree bool) error {
	return s.deleteFn(tenantID, ids, subtree)
}

func (s *stubNodeService) SetEnabled(tenantID string, ids []string, enabled bool, actor string) error {
	return s.setEnabledFn(tenantID, ids, enabled, actor)
}

func (s *stubNodeService) FindByID(tenantID, id string) (*model.OrgNode, error) {
	return s.findByIDFn(tenantID, id)
}

func (s *stubNodeService) GetTree(tenantID string) ([]*model.OrgNodeTreeItem, error) {
	return s.getTreeFn(tenantID)
}

func (s *stubNodeService) GetSubtree(tenantID, id string) ([]model.OrgNode, error) {
	return s.getSubtreeFn(tenantID, id)
}

func (s *stubNodeService) ListByParent(tenantID string, parentID *string) ([]model.OrgNode, error) {
	return s.listFn(tenantID, parentID)
}

func (s *stubNodeService) GetChanges(tenantID, id string) ([]model.ChangeRecord, error) {
	return s.getChangesFn(tenantID, id)
}

// newNodeRouter 搭一个带租户解析和假登录用户的路由，复用主程序的路径布局。
func newNodeRouter(svc service.NodeService) *gin.Engine {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(middleware.TenantResolver("default"))
	router.Use(func(c *gin.Context) {
		c.Set("user", &model.User{ID: 1, Username: "admin", Role: "ADMIN"})
		c.Next()
	})

	h := NewNodeHandler(svc, nil)
	router.POST("/api/nodes", h.Create)
	router.GET("/api/nodes", h.List)
	router.GET("/api/nodes/tree", h.GetTree)
	router.GET("/api/nodes/search", h.Search)
	router.GET("/api/nodes/:id", h.Get)
	router.GET("/api/nodes/:id/subtree", h.GetSubtree)
	router.PUT("/api/nodes/:id", h.Update)
	router.PUT("/api/nodes/:id/parent", h.Move)
	router.DELETE("/api/nodes", h.Delete)
	router.GET("/api/nodes/:id/changes", h.GetChanges)
	return router
}

func doJSON(router *gin.Engine, method, target string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestNodeHandler_Create(t *testing.T) {
	var gotTenant, gotActor string
	svc := &stubNodeService{
		createFn: func(tenantID, id string, input service.NodeInput, actor string) (*model.OrgNode, error) {
			gotTenant, gotActor = tenantID, actor
			return &model.OrgNode{ID: id, TenantID: tenantID, Name: input.Name, Path: "/"}, nil
		},
	}
	router := newNodeRouter(svc)

	w := doJSON(router, http.MethodPost, "/api/nodes?tenant=acme", gin.H{"id": "A", "name": "Root"})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if gotTenant != "acme" || gotActor != "admin" {
		t.Fatalf("tenant/actor not propagated: %q %q", gotTenant, gotActor)
	}
}

func TestNodeHandler_Create_MissingBodyFields(t *testing.T) {
	router := newNodeRouter(&stubNodeService{})

	w := doJSON(router, http.MethodPost, "/api/nodes", gin.H{"id": "A"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestNodeHandler_Create_Conflict(t *testing.T) {
	svc := &stubNodeService{
		createFn: func(tenantID, id string, input service.NodeInput, actor string) (*model.OrgNode, error) {
			return nil, service.ErrNodeAlreadyExists
		},
	}
	router := newNodeRouter(svc)

	w := doJSON(router, http.MethodPost, "/api/nodes", gin.H{"id": "A", "name": "Root"})
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
}

func TestNodeHandler_List_ParentFilter(t *testing.T) {
	var gotParent *string
	svc := &stubNodeService{
		listFn: func(tenantID string, parentID *string) ([]model.OrgNode, error) {
			gotParent = parentID
			return []model.OrgNode{{ID: "C"}}, nil
		},
	}
	router := newNodeRouter(svc)

	w := doJSON(router, http.MethodGet, "/api/nodes?parentId=B", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if gotParent == nil || *gotParent != "B" {
		t.Fatalf("parentId query not propagated: %v", gotParent)
	}

	w = doJSON(router, http.MethodGet, "/api/nodes", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if gotParent != nil {
		t.Fatalf("missing parentId query should pass nil, got %q", *gotParent)
	}
}

func TestNodeHandler_Move_CycleConflict(t *testing.T) {
	svc := &stubNodeService{
		moveFn: func(tenantID, id string, parentID *string, actor string) (*model.OrgNode, error) {
			return nil, service.ErrNodeCycle
		},
	}
	router := newNodeRouter(svc)

	w := doJSON(router, http.MethodPut, "/api/nodes/A/parent", gin.H{"parentId": "C"})
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409, body = %s", w.Code, w.Body.String())
	}
}

func TestNodeHandler_Delete_Strategy(t *testing.T) {
	var gotSubtree bool
	svc := &stubNodeService{
		deleteFn: func(tenantID string, ids []string, subtree bool) error {
			gotSubtree = subtree
			return nil
		},
	}
	router := newNodeRouter(svc)

	if w := doJSON(router, http.MethodDelete, "/api/nodes", gin.H{"ids": []string{"B"}}); w.Code != http.StatusOK {
		t.Fatalf("protect delete status = %d", w.Code)
	}
	if gotSubtree {
		t.Fatalf("default strategy must be protect")
	}

	if w := doJSON(router, http.MethodDelete, "/api/nodes?strategy=subtree", gin.H{"ids": []string{"B"}}); w.Code != http.StatusOK {
		t.Fatalf("subtree delete status = %d", w.Code)
	}
	if !gotSubtree {
		t.Fatalf("strategy=subtree not propagated")
	}

	if w := doJSON(router, http.MethodDelete, "/api/nodes?strategy=nuke", gin.H{"ids": []string{"B"}}); w.Code != http.StatusBadRequest {
		t.Fatalf("unknown strategy status = %d, want 400", w.Code)
	}
}

func TestNodeHandler_Delete_HasChildren(t *testing.T) {
	svc := &stubNodeService{
		deleteFn: func(tenantID string, ids []string, subtree bool) error {
			return service.ErrNodeHasChildren
		},
	}
	router := newNodeRouter(svc)

	w := doJSON(router, http.MethodDelete, "/api/nodes", gin.H{"ids": []string{"A"}})
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
}

func TestNodeHandler_Get_NotFound(t *testing.T) {
	svc := &stubNodeService{
		findByIDFn: func(tenantID, id string) (*model.OrgNode, error) {
			return nil, service.ErrNodeNotFound
		},
	}
	router := newNodeRouter(svc)

	w := doJSON(router, http.MethodGet, "/api/nodes/ghost", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestNodeHandler_GetTree(t *testing.T) {
	svc := &stubNodeService{
		getTreeFn: func(tenantID string) ([]*model.OrgNodeTreeItem, error) {
			return []*model.OrgNodeTreeItem{{ID: "root", Children: []*model.OrgNodeTreeItem{{ID: "child"}}}}, nil
		},
	}
	router := newNodeRouter(svc)

	w := doJSON(router, http.MethodGet, "/api/nodes/tree", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var resp struct {
		Data []struct {
			ID       string `json:"id"`
			Children []struct {
				ID string `json:"id"`
			} `json:"children"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if len(resp.Data) != 1 || resp.Data[0].ID != "root" || len(resp.Data[0].Children) != 1 {
		t.Fatalf("unexpected tree payload: %s", w.Body.String())
	}
}

func TestNodeHandler_GetSubtree(t *testing.T) {
	var gotID string
	svc := &stubNodeService{
		getSubtreeFn: func(tenantID, id string) ([]model.OrgNode, error) {
			gotID = id
			return []model.OrgNode{{ID: id}, {ID: "child"}}, nil
		},
	}
	router := newNodeRouter(svc)

	w := doJSON(router, http.MethodGet, "/api/nodes/dev/subtree", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if gotID != "dev" {
		t.Fatalf("node id not propagated: %q", gotID)
	}

	var resp struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if len(resp.Data) != 2 || resp.Data[0].ID != "dev" {
		t.Fatalf("unexpected subtree payload: %s", w.Body.String())
	}
}

func TestNodeHandler_GetSubtree_NotFound(t *testing.T) {
	svc := &stubNodeService{
		getSubtreeFn: func(tenantID, id string) ([]model.OrgNode, error) {
			return nil, service.ErrNodeNotFound
		},
	}
	router := newNodeRouter(svc)

	w := doJSON(router, http.MethodGet, "/api/nodes/ghost/subtree", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

// TestNodeHandler_Search_Disabled 未配置 Elasticsearch 时搜索接口应返回 404。
func TestNodeHandler_Search_Disabled(t *testing.T) {
	router := newNodeRouter(&stubNodeService{})

	w := doJSON(router, http.MethodGet, "/api/nodes/search?q=dev", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}
