package model

import "time"

// LocaleResource 对应数据库中 locale_resources 表，存储一条本地化文案。
// 同一 Name 在不同 Culture 下各有一行，查询时按 culture 回退链取最具体的一条。
type LocaleResource struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Culture   string    `gorm:"type:varchar(16);not null;uniqueIndex:idx_locale_culture_name" json:"culture"`
	Name      string    `gorm:"type:varchar(128);not null;uniqueIndex:idx_locale_culture_name" json:"name"`
	Value     string    `gorm:"type:varchar(1024);not null" json:"value"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定 GORM 使用的表名
func (LocaleResource) TableName() string {
	return "locale_resources"
}
