package repository

import (
	"fmt"

	"treehub/internal/model"

	"gorm.io/gorm"
)

// ChangeRecordRepository 定义字段变更审计记录的持久化操作接口。
// 记录只追加、不修改。
type ChangeRecordRepository interface {
	Append(records []model.ChangeRecord) error
	FindByEntity(tenantID, entityID string) ([]model.ChangeRecord, error)
}

type changeRecordRepository struct {
	db *gorm.DB
}

func NewChangeRecordRepository(db *gorm.DB) ChangeRecordRepository {
	return &changeRecordRepository{db: db}
}

func (r *changeRecordRepository) Append(records []model.ChangeRecord) error {
	if len(records) == 0 {
		return nil
	}
	for i := range records {
		if records[i].TenantID == "" || records[i].EntityID == "" {
			return fmt.Errorf("tenant id and entity id are required")
		}
	}
	return r.db.Create(&records).Error
}

func (r *changeRecordRepository) FindByEntity(tenantID, entityID string) ([]model.ChangeRecord, error) {
	if tenantID == "" || entityID == "" {
		return nil, fmt.Errorf("tenant id and entity id are required")
	}

	var records []model.ChangeRecord
	if err := r.db.Where("tenant_id = ? AND entity_id = ?", tenantID, entityID).
		Order("id ASC").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
