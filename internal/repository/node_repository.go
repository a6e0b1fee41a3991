package repository

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"treehub/internal/model"
	"treehub/internal/treepath"

	"gorm.io/gorm"
)

var (
	// ErrNodeHasChildren 表示节点下仍有子节点，保护删除时拒绝执行。
	ErrNodeHasChildren = errors.New("org node has children")
	// ErrNodeCycle 表示换父会把节点挂到自己或自己的后代下面，形成环。
	ErrNodeCycle = errors.New("org node move would create a cycle")
)

// NodeRepository 定义组织节点的持久化操作接口。
// 所有查询都按租户隔离；Path 字段只能通过 Create 初始化或 UpdatePath 级联重写。
type NodeRepository interface {
	Create(node *model.OrgNode) error
	FindByID(tenantID, id string) (*model.OrgNode, error)
	FindByIDs(tenantID string, ids []string) ([]model.OrgNode, error)
	FindAll(tenantID string) ([]model.OrgNode, error)
	FindByParentID(tenantID string, parentID *string) ([]model.OrgNode, error)
	FindByPathPrefix(tenantID, prefix string) ([]model.OrgNode, error)

	// Update 更新节点的 name、description、sort_id、updated_by 字段。
	// 不更新 parent_id/path，结构调整必须走 UpdatePath。
	Update(node *model.OrgNode) error

	// UpdatePath 把节点挂到新父节点下，并级联重写整棵子树的物化路径。
	// 在单个事务内完成：读父路径 → 环检测 → 改自身 → 前缀重写后代。
	// 新父是自己或自己的后代时返回 ErrNodeCycle；路径未变化时为幂等空操作。
	UpdatePath(tenantID, id string, newParentID *string) error

	// RemoveByIDs 按 ID 列表批量删除。
	// subtree=false 为保护删除：任一待删节点存在不在删除集内的子节点时返回 ErrNodeHasChildren。
	// subtree=true 为子树删除：连同各节点的全部后代一起删除。
	RemoveByIDs(tenantID string, ids []string, subtree bool) error

	// SetEnabled 批量启用/停用。停用会级联到整棵子树，启用只作用于指定节点。
	SetEnabled(tenantID string, ids []string, enabled bool, actor string) error
}

type nodeRepository struct {
	db *gorm.DB
}

func NewNodeRepository(db *gorm.DB) NodeRepository {
	return &nodeRepository{db: db}
}

func (r *nodeRepository) Create(node *model.OrgNode) error {
	if node == nil {
		return fmt.Errorf("node is nil")
	}
	if node.ID == "" {
		return fmt.Errorf("node id is required")
	}
	if node.TenantID == "" {
		return fmt.Errorf("tenant id is required")
	}
	return r.db.Create(node).Error
}

func (r *nodeRepository) FindByID(tenantID, id string) (*model.OrgNode, error) {
	if tenantID == "" || id == "" {
		return nil, fmt.Errorf("tenant id and node id are required")
	}

	var node model.OrgNode
	if err := r.db.Where("tenant_id = ? AND id = ?", tenantID, id).First(&node).Error; err != nil {
		return nil, err
	}
	return &node, nil
}

func (r *nodeRepository) FindByIDs(tenantID string, ids []string) ([]model.OrgNode, error) {
	if len(ids) == 0 {
		return []model.OrgNode{}, nil
	}

	var nodes []model.OrgNode
	if err := r.db.Where("tenant_id = ? AND id IN ?", tenantID, ids).
		Order("sort_id ASC, id ASC").Find(&nodes).Error; err != nil {
		return nil, err
	}
	return nodes, nil
}

func (r *nodeRepository) FindAll(tenantID string) ([]model.OrgNode, error) {
	var nodes []model.OrgNode
	if err := r.db.Where("tenant_id = ?", tenantID).
		Order("sort_id ASC, id ASC").Find(&nodes).Error; err != nil {
		return nil, err
	}
	return nodes, nil
}

func (r *nodeRepository) FindByParentID(tenantID string, parentID *string) ([]model.OrgNode, error) {
	tx := r.db.Where("tenant_id = ?", tenantID).Order("sort_id ASC, id ASC")
	if parentID == nil {
		tx = tx.Where("parent_id IS NULL")
	} else {
		tx = tx.Where("parent_id = ?", *parentID)
	}

	var nodes []model.OrgNode
	if err := tx.Find(&nodes).Error; err != nil {
		return nil, err
	}
	return nodes, nil
}

// FindByPathPrefix 按物化路径前缀查询，即取某棵子树的全部节点。
func (r *nodeRepository) FindByPathPrefix(tenantID, prefix string) ([]model.OrgNode, error) {
	if prefix == "" {
		return nil, fmt.Errorf("path prefix is required")
	}

	var nodes []model.OrgNode
	if err := r.db.Where("tenant_id = ? AND path LIKE ?", tenantID, escapeLike(prefix)+"%").
		Order("path ASC, sort_id ASC").Find(&nodes).Error; err != nil {
		return nil, err
	}
	return nodes, nil
}

// escapeLike 转义 LIKE 模式中的通配符，保证前缀匹配是纯字面量匹配：
// 前缀里的 "_"/"%" 不转义会把无关路径也卷进级联重写和子树删除。
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// Update 使用 Select 限定只更新四个字段，避免零值覆盖，也防止绕过 UpdatePath 改结构。
// 记录不存在时返回 gorm.ErrRecordNotFound。
func (r *nodeRepository) Update(node *model.OrgNode) error {
	if node == nil {
		return fmt.Errorf("node is nil")
	}
	if node.ID == "" || node.TenantID == "" {
		return fmt.Errorf("tenant id and node id are required")
	}

	tx := r.db.Model(&model.OrgNode{}).
		Where("tenant_id = ? AND id = ?", node.TenantID, node.ID).
		Select("name", "description", "sort_id", "updated_by").
		Updates(node)

	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpdatePath 是路径级联的唯一入口。
// 步骤（单事务）：
//  1. 读当前节点，拿到旧路径。
//  2. 读新父节点并做环检测：新父是自己，或新父的祖先链里出现当前节点，都拒绝。
//  3. 推算新路径；与旧路径一致则整个操作为空操作（幂等）。
//  4. 改写自身 parent_id/path，再用一条 UPDATE 把旧子树前缀整体替换为新前缀。
//
// 任一步失败整个事务回滚，外部观察不到半成品路径。
func (r *nodeRepository) UpdatePath(tenantID, id string, newParentID *string) error {
	if tenantID == "" || id == "" {
		return fmt.Errorf("tenant id and node id are required")
	}

	return r.db.Transaction(func(tx *gorm.DB) error {
		var current model.OrgNode
		if err := tx.Where("tenant_id = ? AND id = ?", tenantID, id).First(&current).Error; err != nil {
			return err
		}

		newPath := treepath.Root
		if newParentID != nil {
			if *newParentID == id {
				return ErrNodeCycle
			}

			var parent model.OrgNode
			if err := tx.Where("tenant_id = ? AND id = ?", tenantID, *newParentID).First(&parent).Error; err != nil {
				return err
			}
			// 新父的祖先链里有自己，说明新父在自己的子树内
			if treepath.ContainsID(parent.Path, id) {
				return ErrNodeCycle
			}
			newPath = treepath.ChildPath(parent.Path, parent.ID)
		}

		// 路径由父链唯一决定，路径相同即父节点未变，直接幂等返回
		if newPath == current.Path {
			return nil
		}

		if err := tx.Model(&model.OrgNode{}).
			Where("tenant_id = ? AND id = ?", tenantID, id).
			Updates(map[string]interface{}{"parent_id": newParentID, "path": newPath}).Error; err != nil {
			return err
		}

		// SUBSTRING 的偏移量按字符数算（MySQL 语义），不能用 Go 的字节长度
		oldPrefix := treepath.SubtreePrefix(current.Path, id)
		newPrefix := treepath.SubtreePrefix(newPath, id)
		if err := tx.Model(&model.OrgNode{}).
			Where("tenant_id = ? AND path LIKE ?", tenantID, escapeLike(oldPrefix)+"%").
			Update("path", gorm.Expr("CONCAT(?, SUBSTRING(path, ?))", newPrefix, utf8.RuneCountInString(oldPrefix)+1)).Error; err != nil {
			return err
		}
		return nil
	})
}

func (r *nodeRepository) RemoveByIDs(tenantID string, ids []string, subtree bool) error {
	if tenantID == "" {
		return fmt.Errorf("tenant id is required")
	}
	if len(ids) == 0 {
		return fmt.Errorf("node ids are required")
	}

	return r.db.Transaction(func(tx *gorm.DB) error {
		var nodes []model.OrgNode
		if err := tx.Where("tenant_id = ? AND id IN ?", tenantID, ids).Find(&nodes).Error; err != nil {
			return err
		}
		if len(nodes) != len(ids) {
			return gorm.ErrRecordNotFound
		}

		if subtree {
			// 子树删除：每个节点连同其整棵子树一起删掉
			for _, node := range nodes {
				prefix := treepath.SubtreePrefix(node.Path, node.ID)
				if err := tx.Where("tenant_id = ? AND path LIKE ?", tenantID, escapeLike(prefix)+"%").
					Delete(&model.OrgNode{}).Error; err != nil {
					return err
				}
			}
		} else {
			// 保护删除：删除集外还有子节点挂在待删节点下时拒绝
			var childCount int64
			if err := tx.Model(&model.OrgNode{}).
				Where("tenant_id = ? AND parent_id IN ? AND id NOT IN ?", tenantID, ids, ids).
				Count(&childCount).Error; err != nil {
				return err
			}
			if childCount > 0 {
				return ErrNodeHasChildren
			}
		}

		res := tx.Where("tenant_id = ? AND id IN ?", tenantID, ids).Delete(&model.OrgNode{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// SetEnabled 停用时按子树前缀级联：祖先被停用，后代不应再可用；
// 启用不级联，恢复范围由调用方按需逐层控制。
func (r *nodeRepository) SetEnabled(tenantID string, ids []string, enabled bool, actor string) error {
	if tenantID == "" {
		return fmt.Errorf("tenant id is required")
	}
	if len(ids) == 0 {
		return fmt.Errorf("node ids are required")
	}

	return r.db.Transaction(func(tx *gorm.DB) error {
		var nodes []model.OrgNode
		if err := tx.Where("tenant_id = ? AND id IN ?", tenantID, ids).Find(&nodes).Error; err != nil {
			return err
		}
		if len(nodes) != len(ids) {
			return gorm.ErrRecordNotFound
		}

		updates := map[string]interface{}{"enabled": enabled, "updated_by": actor}
		if err := tx.Model(&model.OrgNode{}).
			Where("tenant_id = ? AND id IN ?", tenantID, ids).
			Updates(updates).Error; err != nil {
			return err
		}

		if !enabled {
			for _, node := range nodes {
				prefix := treepath.SubtreePrefix(node.Path, node.ID)
				if err := tx.Model(&model.OrgNode{}).
					Where("tenant_id = ? AND path LIKE ?", tenantID, escapeLike(prefix)+"%").
					Updates(updates).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
}
