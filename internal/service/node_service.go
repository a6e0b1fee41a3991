package service

import (
	"errors"
	"regexp"
	"strings"

	"treehub/internal/model"
	"treehub/internal/repository"
	"treehub/internal/treepath"
	"treehub/pkg/log"

	"gorm.io/gorm"
)

// nodeIDPattern 限定节点 ID 的字符集。
// ID 会拼进物化路径并进入 LIKE 前缀匹配，必须排除路径分隔符和多字节字符：
// 含 "/" 的 ID 会让路径解析出不存在的祖先段，多字节字符会让字节偏移和字符偏移不一致。
var nodeIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// NodeInput 是创建/更新组织节点的业务入参。
// ParentID 使用指针以区分“挂到根下”（nil）和“挂到某节点下”。
type NodeInput struct {
	Name        string
	Description string
	ParentID    *string
	SortID      int
}

// NodeHooks 是围绕节点操作的扩展点，以回调注入而非继承覆盖。
// Before* 在持久化之前执行，返回错误可否决整个操作；
// After* 在事务提交之后执行，用于接事件发布、搜索索引等旁路消费者，失败不回滚主流程。
type NodeHooks struct {
	BeforeCreate func(node *model.OrgNode) error
	AfterCreate  func(node *model.OrgNode)
	BeforeUpdate func(old, updated *model.OrgNode) error
	AfterUpdate  func(node *model.OrgNode)
	BeforeDelete func(tenantID string, ids []string) error
	AfterDelete  func(tenantID string, ids []string)
	AfterToggle  func(tenantID string, ids []string, enabled bool)
}

// NodeService 封装组织节点领域逻辑。
// 每个写操作遵循统一流程：校验 → 组装实体 → Before 钩子 → 持久化 → After 钩子。
type NodeService interface {
	Create(tenantID, id string, input NodeInput, actor string) (*model.OrgNode, error)
	Update(tenantID, id string, input NodeInput, actor string) (*model.OrgNode, error)
	// Move 只调整节点的挂载位置，字段不变；父节点变化时触发子树路径级联重写。
	Move(tenantID, id string, parentID *string, actor string) (*model.OrgNode, error)
	Delete(tenantID string, ids []string, subtree bool) error
	SetEnabled(tenantID string, ids []string, enabled bool, actor string) error
	FindByID(tenantID, id string) (*model.OrgNode, error)
	GetTree(tenantID string) ([]*model.OrgNodeTreeItem, error)
	// GetSubtree 返回节点自身及其全部后代，按物化路径前缀一次取出。
	GetSubtree(tenantID, id string) ([]model.OrgNode, error)
	// ListByParent 按父节点取一页节点，并补齐页内路径引用到、但不在页内的祖先节点。
	ListByParent(tenantID string, parentID *string) ([]model.OrgNode, error)
	GetChanges(tenantID, id string) ([]model.ChangeRecord, error)
}

type nodeService struct {
	nodeRepo   repository.NodeRepository
	changeRepo repository.ChangeRecordRepository
	hooks      NodeHooks
}

func NewNodeService(nodeRepo repository.NodeRepository, changeRepo repository.ChangeRecordRepository, hooks NodeHooks) NodeService {
	return &nodeService{
		nodeRepo:   nodeRepo,
		changeRepo: changeRepo,
		hooks:      hooks,
	}
}

// Create 创建组织节点。
// 关键规则：
// 1. id/name 必填，且去除首尾空白。
// 2. id 不能重复，也不能把自己设为父节点。
// 3. 指定 parentID 时父节点必须存在，Path 由父节点路径推算。
func (s *nodeService) Create(tenantID, id string, input NodeInput, actor string) (*model.OrgNode, error) {
	if s.nodeRepo == nil {
		return nil, ErrInternal
	}

	id = strings.TrimSpace(id)
	name := strings.TrimSpace(input.Name)
	if tenantID == "" || id == "" || name == "" {
		return nil, ErrInvalidInput
	}
	if len(id) > 64 || !nodeIDPattern.MatchString(id) {
		return nil, ErrInvalidInput
	}

	parentID := normalizeOptionalID(input.ParentID)
	if parentID != nil && *parentID == id {
		return nil, ErrInvalidInput
	}

	// 先检查 ID 是否已占用，避免数据库唯一键报错直接外泄
	_, err := s.nodeRepo.FindByID(tenantID, id)
	if err == nil {
		return nil, ErrNodeAlreadyExists
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	// 路径由父节点推算；父节点缺失会形成悬挂引用，必须拒绝
	path := treepath.Root
	if parentID != nil {
		parent, err := s.nodeRepo.FindByID(tenantID, *parentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrNodeNotFound
			}
			return nil, err
		}
		path = treepath.ChildPath(parent.Path, parent.ID)
	}

	actor = normalizeActor(actor)
	node := &model.OrgNode{
		ID:          id,
		TenantID:    tenantID,
		Name:        name,
		Description: input.Description,
		ParentID:    parentID,
		Path:        path,
		Enabled:     true,
		SortID:      input.SortID,
		CreatedBy:   actor,
		UpdatedBy:   actor,
	}

	if s.hooks.BeforeCreate != nil {
		if err := s.hooks.BeforeCreate(node); err != nil {
			return nil, err
		}
	}
	if err := s.nodeRepo.Create(node); err != nil {
		return nil, err
	}
	if s.hooks.AfterCreate != nil {
		s.hooks.AfterCreate(node)
	}
	return node, nil
}

// Update 更新组织节点。
// 流程：取旧快照 → 组装新快照 → Before 钩子 → 字段对比出变更集 →
// 父节点变化时先走路径级联 → 持久化标量字段 → 追加审计记录 → After 钩子。
// 级联在前：环检测在级联事务里完成，被拒绝时标量字段尚未写入，不留半截状态。
// 新旧快照无差异时是空操作，不产生审计记录。
func (s *nodeService) Update(tenantID, id string, input NodeInput, actor string) (*model.OrgNode, error) {
	if s.nodeRepo == nil {
		return nil, ErrInternal
	}

	id = strings.TrimSpace(id)
	name := strings.TrimSpace(input.Name)
	if tenantID == "" || id == "" || name == "" {
		return nil, ErrInvalidInput
	}

	old, err := s.FindByID(tenantID, id)
	if err != nil {
		return nil, err
	}

	parentID := normalizeOptionalID(input.ParentID)
	if parentID != nil && *parentID == id {
		return nil, ErrInvalidInput
	}

	actor = normalizeActor(actor)
	updated := *old
	updated.Name = name
	updated.Description = input.Description
	updated.ParentID = parentID
	updated.SortID = input.SortID
	updated.UpdatedBy = actor

	if s.hooks.BeforeUpdate != nil {
		if err := s.hooks.BeforeUpdate(old, &updated); err != nil {
			return nil, err
		}
	}

	records := model.DiffNodes(old, &updated)
	if len(records) == 0 {
		return old, nil
	}

	var structural, scalar []model.ChangeRecord
	for _, rec := range records {
		if rec.Property == "parentId" {
			structural = append(structural, rec)
		} else {
			scalar = append(scalar, rec)
		}
	}

	// 换父在标量字段之前提交：级联被拒绝（环、父节点缺失）时数据库未被触碰
	if len(structural) > 0 {
		if err := s.updatePath(tenantID, id, parentID); err != nil {
			return nil, err
		}
	}

	if len(scalar) > 0 {
		if err := s.nodeRepo.Update(&updated); err != nil {
			// 换父已提交，先把对应审计补上再报错
			s.appendChanges(structural, actor)
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrNodeNotFound
			}
			return nil, err
		}
	}

	s.appendChanges(records, actor)

	// 路径可能被级联重写过，回读一次拿到最终快照
	node, err := s.FindByID(tenantID, id)
	if err != nil {
		return nil, err
	}
	if s.hooks.AfterUpdate != nil {
		s.hooks.AfterUpdate(node)
	}
	return node, nil
}

// Move 只换挂载位置。目标父节点是自己或自己的后代时返回 ErrNodeCycle；
// 位置未变化时幂等返回当前快照。
func (s *nodeService) Move(tenantID, id string, parentID *string, actor string) (*model.OrgNode, error) {
	if s.nodeRepo == nil {
		return nil, ErrInternal
	}

	id = strings.TrimSpace(id)
	if tenantID == "" || id == "" {
		return nil, ErrInvalidInput
	}

	old, err := s.FindByID(tenantID, id)
	if err != nil {
		return nil, err
	}

	parentID = normalizeOptionalID(parentID)
	if parentID != nil && *parentID == id {
		return nil, ErrNodeCycle
	}
	if derefOrEmpty(old.ParentID) == derefOrEmpty(parentID) {
		return old, nil
	}

	if err := s.updatePath(tenantID, id, parentID); err != nil {
		return nil, err
	}

	actor = normalizeActor(actor)
	s.appendChanges([]model.ChangeRecord{{
		TenantID:    tenantID,
		EntityID:    id,
		Property:    "parentId",
		Description: "父节点",
		OldValue:    derefOrEmpty(old.ParentID),
		NewValue:    derefOrEmpty(parentID),
	}}, actor)

	node, err := s.FindByID(tenantID, id)
	if err != nil {
		return nil, err
	}
	if s.hooks.AfterUpdate != nil {
		s.hooks.AfterUpdate(node)
	}
	return node, nil
}

// Delete 按 ID 列表批量删除。
// subtree=false 为保护删除，节点有删除集外的子节点时返回 ErrNodeHasChildren；
// subtree=true 连同各节点的整棵子树一起删除。
func (s *nodeService) Delete(tenantID string, ids []string, subtree bool) error {
	if s.nodeRepo == nil {
		return ErrInternal
	}

	ids = normalizeIDs(ids)
	if tenantID == "" || len(ids) == 0 {
		return ErrInvalidInput
	}

	if s.hooks.BeforeDelete != nil {
		if err := s.hooks.BeforeDelete(tenantID, ids); err != nil {
			return err
		}
	}

	if err := s.nodeRepo.RemoveByIDs(tenantID, ids, subtree); err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return ErrNodeNotFound
		case errors.Is(err, repository.ErrNodeHasChildren):
			return ErrNodeHasChildren
		default:
			return err
		}
	}

	if s.hooks.AfterDelete != nil {
		s.hooks.AfterDelete(tenantID, ids)
	}
	return nil
}

func (s *nodeService) SetEnabled(tenantID string, ids []string, enabled bool, actor string) error {
	if s.nodeRepo == nil {
		return ErrInternal
	}

	ids = normalizeIDs(ids)
	if tenantID == "" || len(ids) == 0 {
		return ErrInvalidInput
	}

	if err := s.nodeRepo.SetEnabled(tenantID, ids, enabled, normalizeActor(actor)); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNodeNotFound
		}
		return err
	}

	if s.hooks.AfterToggle != nil {
		s.hooks.AfterToggle(tenantID, ids, enabled)
	}
	return nil
}

func (s *nodeService) FindByID(tenantID, id string) (*model.OrgNode, error) {
	if s.nodeRepo == nil {
		return nil, ErrInternal
	}

	id = strings.TrimSpace(id)
	if tenantID == "" || id == "" {
		return nil, ErrInvalidInput
	}

	node, err := s.nodeRepo.FindByID(tenantID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNodeNotFound
		}
		return nil, err
	}
	if node == nil {
		return nil, ErrNodeNotFound
	}
	return node, nil
}

// GetTree 构建节点树（根节点 + 递归 children）。
// 两遍扫描：第一遍建 map（id -> item），第二遍按 parent 关系挂载。
// 父节点缺失的孤儿节点作为根返回，避免节点丢失。
func (s *nodeService) GetTree(tenantID string) ([]*model.OrgNodeTreeItem, error) {
	if s.nodeRepo == nil {
		return nil, ErrInternal
	}
	if tenantID == "" {
		return nil, ErrInvalidInput
	}

	nodes, err := s.nodeRepo.FindAll(tenantID)
	if err != nil {
		return nil, err
	}

	items := make(map[string]*model.OrgNodeTreeItem, len(nodes))
	for _, node := range nodes {
		items[node.ID] = &model.OrgNodeTreeItem{
			ID:       node.ID,
			Name:     node.Name,
			ParentID: node.ParentID,
			Path:     node.Path,
			Enabled:  node.Enabled,
			SortID:   node.SortID,
			Children: []*model.OrgNodeTreeItem{},
		}
	}

	tree := make([]*model.OrgNodeTreeItem, 0)
	for _, node := range nodes {
		item := items[node.ID]
		if node.ParentID != nil && *node.ParentID != "" {
			if parent, ok := items[*node.ParentID]; ok {
				parent.Children = append(parent.Children, item)
				continue
			}
		}
		tree = append(tree, item)
	}
	return tree, nil
}

// GetSubtree 先读节点本身拿到路径，再按子树前缀取全部后代。
// 返回结果以节点自身开头，后代按路径排序跟在后面。
func (s *nodeService) GetSubtree(tenantID, id string) ([]model.OrgNode, error) {
	node, err := s.FindByID(tenantID, id)
	if err != nil {
		return nil, err
	}

	prefix := treepath.SubtreePrefix(node.Path, node.ID)
	descendants, err := s.nodeRepo.FindByPathPrefix(tenantID, prefix)
	if err != nil {
		return nil, err
	}
	return append([]model.OrgNode{*node}, descendants...), nil
}

// ListByParent 先按父节点过滤取一页，再用页内路径解析缺失祖先并补齐，
// 调用方拿到的结果足以渲染完整的祖先链。
func (s *nodeService) ListByParent(tenantID string, parentID *string) ([]model.OrgNode, error) {
	if s.nodeRepo == nil {
		return nil, ErrInternal
	}
	if tenantID == "" {
		return nil, ErrInvalidInput
	}

	page, err := s.nodeRepo.FindByParentID(tenantID, normalizeOptionalID(parentID))
	if err != nil {
		return nil, err
	}

	refs := make([]*model.OrgNode, len(page))
	for i := range page {
		refs[i] = &page[i]
	}
	missing := treepath.MissingParentIDs(refs)
	if len(missing) == 0 {
		return page, nil
	}

	ancestors, err := s.nodeRepo.FindByIDs(tenantID, missing)
	if err != nil {
		return nil, err
	}
	return append(page, ancestors...), nil
}

func (s *nodeService) GetChanges(tenantID, id string) ([]model.ChangeRecord, error) {
	if s.changeRepo == nil {
		return nil, ErrInternal
	}

	id = strings.TrimSpace(id)
	if tenantID == "" || id == "" {
		return nil, ErrInvalidInput
	}
	return s.changeRepo.FindByEntity(tenantID, id)
}

// updatePath 调用仓库的路径级联，并把仓库错误翻译为 service 哨兵错误。
func (s *nodeService) updatePath(tenantID, id string, parentID *string) error {
	err := s.nodeRepo.UpdatePath(tenantID, id, parentID)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNodeCycle):
		return ErrNodeCycle
	case errors.Is(err, gorm.ErrRecordNotFound):
		// 节点或目标父节点不存在
		return ErrNodeNotFound
	default:
		return err
	}
}

// appendChanges 写审计记录。审计是旁路数据，失败只告警，不回滚已提交的业务变更。
func (s *nodeService) appendChanges(records []model.ChangeRecord, actor string) {
	if s.changeRepo == nil || len(records) == 0 {
		return
	}
	for i := range records {
		records[i].ChangedBy = actor
	}
	if err := s.changeRepo.Append(records); err != nil {
		log.Warnf("NodeService: failed to append change records for %s: %v", records[0].EntityID, err)
	}
}

// normalizeOptionalID 把可选字符串指针做标准化：
// nil 或空白 -> nil；非空 -> trim 后返回新指针。
func normalizeOptionalID(raw *string) *string {
	if raw == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*raw)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// normalizeIDs 去空白、去重，保持首次出现的顺序。
func normalizeIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, raw := range ids {
		id := strings.TrimSpace(raw)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func normalizeActor(actor string) string {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return "system"
	}
	return actor
}

func derefOrEmpty(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
