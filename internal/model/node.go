package model

import "time"

// RootPath 根节点的物化路径。子节点路径 = 父节点路径 + 父节点ID + "/"。
const RootPath = "/"

// OrgNode 对应数据库中 org_nodes 表，表示组织层级树中的一个节点。
// 树通过 ParentID 维护父子关系，通过 Path（物化路径）支持按前缀查询整棵子树。
// Path 只记录祖先链，不含节点自身 ID：
//   - 根节点：      "/"
//   - A 的子节点 B： "/A/"
//   - B 的子节点 C： "/A/B/"
//
// Path 是派生字段：创建时由父节点推算，换父时由路径级联重写，其余场景只读。
type OrgNode struct {
	ID          string    `gorm:"type:varchar(64);primaryKey" json:"id"`
	TenantID    string    `gorm:"type:varchar(64);primaryKey" json:"tenantId"`
	Name        string    `gorm:"type:varchar(100);not null" json:"name"`
	Description string    `gorm:"type:varchar(255);not null" json:"description"`
	ParentID    *string   `gorm:"type:varchar(64);index" json:"parentId"`
	Path        string    `gorm:"type:varchar(1024);not null;index:idx_org_nodes_path,length:255" json:"path"`
	Enabled     bool      `gorm:"not null;default:true" json:"enabled"`
	SortID      int       `gorm:"not null;default:0" json:"sortId"`
	CreatedBy   string    `gorm:"type:varchar(255);not null" json:"createdBy"`
	UpdatedBy   string    `gorm:"type:varchar(255);not null" json:"updatedBy"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// OrgNodeTreeItem 是组织节点的树形视图，用于构建接口返回的嵌套结构。
// 与 OrgNode（数据库模型）的区别：
//   - 不含审计字段
//   - 增加了 Children 字段，用于嵌套子节点
type OrgNodeTreeItem struct {
	ID       string             `json:"id"`
	Name     string             `json:"name"`
	ParentID *string            `json:"parentId"`
	Path     string             `json:"path"`
	Enabled  bool               `json:"enabled"`
	SortID   int                `json:"sortId"`
	Children []*OrgNodeTreeItem `json:"children"`
}

// TableName 指定 GORM 使用的表名
func (OrgNode) TableName() string {
	return "org_nodes"
}

// GetID 实现 treepath 所需的最小读取面。
func (n *OrgNode) GetID() string { return n.ID }

// GetPath 实现 treepath 所需的最小读取面。
func (n *OrgNode) GetPath() string { return n.Path }
