package repository

import (
	"errors"
	"fmt"

	"treehub/internal/model"

	"gorm.io/gorm"
)

// ErrEventStateConflict 表示事件不处于期望的起始状态，状态迁移被拒绝。
var ErrEventStateConflict = errors.New("integration event state conflict")

// EventLogRepository 定义集成事件日志的持久化操作接口。
// 状态迁移用条件 UPDATE 实现乐观保护：起始状态不匹配则零行受影响。
type EventLogRepository interface {
	Create(event *model.IntegrationEventLog) error
	FindByID(eventID string) (*model.IntegrationEventLog, error)
	ListByState(tenantID, state string) ([]model.IntegrationEventLog, error)

	// TransitionState 把事件从 fromState 迁移到 toState。
	// 事件不存在返回 gorm.ErrRecordNotFound；状态不匹配返回 ErrEventStateConflict。
	TransitionState(eventID, fromState, toState string) error

	// RecordFailure 在事务中把事件置为失败、递增重试计数，并追加一条尝试记录。
	RecordFailure(eventID, fromState, reason string) error

	FindRetryLogs(eventID string) ([]model.EventRetryLog, error)
}

type eventLogRepository struct {
	db *gorm.DB
}

func NewEventLogRepository(db *gorm.DB) EventLogRepository {
	return &eventLogRepository{db: db}
}

func (r *eventLogRepository) Create(event *model.IntegrationEventLog) error {
	if event == nil {
		return fmt.Errorf("event is nil")
	}
	if event.EventID == "" {
		return fmt.Errorf("event id is required")
	}
	return r.db.Create(event).Error
}

func (r *eventLogRepository) FindByID(eventID string) (*model.IntegrationEventLog, error) {
	if eventID == "" {
		return nil, fmt.Errorf("event id is required")
	}

	var event model.IntegrationEventLog
	if err := r.db.Where("event_id = ?", eventID).First(&event).Error; err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *eventLogRepository) ListByState(tenantID, state string) ([]model.IntegrationEventLog, error) {
	tx := r.db.Where("tenant_id = ?", tenantID).Order("created_at ASC")
	if state != "" {
		tx = tx.Where("state = ?", state)
	}

	var events []model.IntegrationEventLog
	if err := tx.Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

func (r *eventLogRepository) TransitionState(eventID, fromState, toState string) error {
	if eventID == "" {
		return fmt.Errorf("event id is required")
	}

	return r.db.Transaction(func(tx *gorm.DB) error {
		return transitionState(tx, eventID, fromState, toState)
	})
}

// RecordFailure “置失败 + 计数 + 追加尝试记录”三步在一个事务内完成，
// 避免出现计数与尝试记录不一致的窗口。
func (r *eventLogRepository) RecordFailure(eventID, fromState, reason string) error {
	if eventID == "" {
		return fmt.Errorf("event id is required")
	}

	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := transitionState(tx, eventID, fromState, model.EventStateFail); err != nil {
			return err
		}

		if err := tx.Model(&model.IntegrationEventLog{}).
			Where("event_id = ?", eventID).
			Update("retry_count", gorm.Expr("retry_count + ?", 1)).Error; err != nil {
			return err
		}

		var event model.IntegrationEventLog
		if err := tx.Where("event_id = ?", eventID).First(&event).Error; err != nil {
			return err
		}

		return tx.Create(&model.EventRetryLog{
			EventID: eventID,
			Attempt: event.RetryCount,
			State:   model.EventStateFail,
			Error:   reason,
		}).Error
	})
}

func (r *eventLogRepository) FindRetryLogs(eventID string) ([]model.EventRetryLog, error) {
	if eventID == "" {
		return nil, fmt.Errorf("event id is required")
	}

	var logs []model.EventRetryLog
	if err := r.db.Where("event_id = ?", eventID).Order("attempt ASC").Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

// transitionState 先确认事件存在，再做条件更新。
// 零行受影响说明当前状态不是 fromState，返回 ErrEventStateConflict。
func transitionState(tx *gorm.DB, eventID, fromState, toState string) error {
	var event model.IntegrationEventLog
	if err := tx.Where("event_id = ?", eventID).First(&event).Error; err != nil {
		return err
	}

	res := tx.Model(&model.IntegrationEventLog{}).
		Where("event_id = ? AND state = ?", eventID, fromState).
		Update("state", toState)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrEventStateConflict
	}
	return nil
}
