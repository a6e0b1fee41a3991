package model

import "time"

// 集成事件生命周期状态。合法迁移：
//
//	published → processing → success
//	                       ↘ fail → processing（重试）
const (
	EventStatePublished  = "published"
	EventStateProcessing = "processing"
	EventStateSuccess    = "success"
	EventStateFail       = "fail"
)

// IntegrationEventLog 对应数据库中 integration_event_logs 表。
// 以追加写为主的事件发布记录，State 记录当前处理阶段，RetryCount 记录失败重试次数。
type IntegrationEventLog struct {
	EventID    string    `gorm:"type:varchar(64);primaryKey" json:"eventId"`
	TenantID   string    `gorm:"type:varchar(64);not null;index" json:"tenantId"`
	EventType  string    `gorm:"type:varchar(128);not null;index" json:"eventType"`
	Payload    string    `gorm:"type:text;not null" json:"payload"`
	State      string    `gorm:"type:varchar(16);not null;index" json:"state"`
	RetryCount int       `gorm:"not null;default:0" json:"retryCount"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定 GORM 使用的表名
func (IntegrationEventLog) TableName() string {
	return "integration_event_logs"
}

// EventRetryLog 对应数据库中 event_retry_logs 表，记录事件的每次处理尝试。
// 只追加，不更新：一条事件可对应多条尝试记录。
type EventRetryLog struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	EventID   string    `gorm:"type:varchar(64);not null;index" json:"eventId"`
	Attempt   int       `gorm:"not null" json:"attempt"`
	State     string    `gorm:"type:varchar(16);not null" json:"state"`
	Error     string    `gorm:"type:varchar(1024);not null" json:"error"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName 指定 GORM 使用的表名
func (EventRetryLog) TableName() string {
	return "event_retry_logs"
}
