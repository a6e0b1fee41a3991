package repository

import (
	"fmt"

	"treehub/internal/model"

	"gorm.io/gorm"
)

// LocaleRepository 定义本地化文案的持久化操作接口。
type LocaleRepository interface {
	// FindByCultures 取出指定 culture 列表下的全部文案，由 service 层按回退链合并。
	FindByCultures(cultures []string) ([]model.LocaleResource, error)
	Upsert(resource *model.LocaleResource) error
}

type localeRepository struct {
	db *gorm.DB
}

func NewLocaleRepository(db *gorm.DB) LocaleRepository {
	return &localeRepository{db: db}
}

func (r *localeRepository) FindByCultures(cultures []string) ([]model.LocaleResource, error) {
	if len(cultures) == 0 {
		return []model.LocaleResource{}, nil
	}

	var resources []model.LocaleResource
	if err := r.db.Where("culture IN ?", cultures).
		Order("name ASC, culture ASC").Find(&resources).Error; err != nil {
		return nil, err
	}
	return resources, nil
}

// Upsert 以 (culture, name) 为键：存在则改 value，不存在则插入。
func (r *localeRepository) Upsert(resource *model.LocaleResource) error {
	if resource == nil {
		return fmt.Errorf("locale resource is nil")
	}
	if resource.Culture == "" || resource.Name == "" {
		return fmt.Errorf("culture and name are required")
	}

	return r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.LocaleResource{}).
			Where("culture = ? AND name = ?", resource.Culture, resource.Name).
			Update("value", resource.Value)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return nil
		}
		return tx.Create(resource).Error
	})
}
