package model

import (
	"fmt"
	"time"
)

// ChangeRecord 对应数据库中 change_records 表，记录一次节点更新中单个字段的变化。
// 仅用于审计展示，不参与并发控制。
type ChangeRecord struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	TenantID    string    `gorm:"type:varchar(64);not null;index" json:"tenantId"`
	EntityID    string    `gorm:"type:varchar(64);not null;index" json:"entityId"`
	Property    string    `gorm:"type:varchar(64);not null" json:"property"`
	Description string    `gorm:"type:varchar(255);not null" json:"description"`
	OldValue    string    `gorm:"type:varchar(1024);not null" json:"oldValue"`
	NewValue    string    `gorm:"type:varchar(1024);not null" json:"newValue"`
	ChangedBy   string    `gorm:"type:varchar(255);not null" json:"changedBy"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName 指定 GORM 使用的表名
func (ChangeRecord) TableName() string {
	return "change_records"
}

// DiffNodes 对比新旧两份节点快照，产出有序的字段变更集合。
// 字段顺序固定（name, description, parentId, enabled, sortId），无变化的字段不产出记录。
// 只做快照对比，不触碰数据库。
func DiffNodes(old, new *OrgNode) []ChangeRecord {
	if old == nil || new == nil {
		return nil
	}

	var records []ChangeRecord
	add := func(property, description, oldValue, newValue string) {
		if oldValue == newValue {
			return
		}
		records = append(records, ChangeRecord{
			TenantID:    old.TenantID,
			EntityID:    old.ID,
			Property:    property,
			Description: description,
			OldValue:    oldValue,
			NewValue:    newValue,
		})
	}

	add("name", "节点名称", old.Name, new.Name)
	add("description", "节点描述", old.Description, new.Description)
	add("parentId", "父节点", derefOrEmpty(old.ParentID), derefOrEmpty(new.ParentID))
	add("enabled", "启用状态", fmt.Sprintf("%t", old.Enabled), fmt.Sprintf("%t", new.Enabled))
	add("sortId", "排序号", fmt.Sprintf("%d", old.SortID), fmt.Sprintf("%d", new.SortID))
	return records
}

func derefOrEmpty(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
