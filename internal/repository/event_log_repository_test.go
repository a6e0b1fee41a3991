package repository

import (
	"errors"
	"testing"
	"time"

	"treehub/internal/model"

	"github.com/DATA-DOG/go-sqlmock"
	"gorm.io/gorm"
)

func newMockEventRepo(t *testing.T) (EventLogRepository, sqlmock.Sqlmock) {
	t.Helper()
	gdb, mock := newMockDB(t)
	return NewEventLogRepository(gdb), mock
}

func eventRows(eventID, state string, retryCount int) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"event_id", "tenant_id", "event_type", "payload", "state", "retry_count", "created_at", "updated_at",
	}).AddRow(eventID, "default", "org_node.created", "{}", state, retryCount, now, now)
}

func TestEventLogRepository_Create(t *testing.T) {
	repo, mock := newMockEventRepo(t)

	event := &model.IntegrationEventLog{
		EventID:   "evt-1",
		TenantID:  "default",
		EventType: "org_node.created",
		Payload:   "{}",
		State:     model.EventStatePublished,
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `integration_event_logs`").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	if err := repo.Create(event); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestEventLogRepository_TransitionState_Success(t *testing.T) {
	repo, mock := newMockEventRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .* FROM `integration_event_logs` WHERE event_id = \\? ORDER BY .* LIMIT \\?").
		WithArgs("evt-1", 1).
		WillReturnRows(eventRows("evt-1", model.EventStatePublished, 0))
	mock.ExpectExec("UPDATE `integration_event_logs` SET .* WHERE event_id = \\? AND state = \\?").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.TransitionState("evt-1", model.EventStatePublished, model.EventStateProcessing); err != nil {
		t.Fatalf("TransitionState() error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

// TestEventLogRepository_TransitionState_Conflict 验证起始状态不匹配时拒绝迁移。
func TestEventLogRepository_TransitionState_Conflict(t *testing.T) {
	repo, mock := newMockEventRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .* FROM `integration_event_logs` WHERE event_id = \\? ORDER BY .* LIMIT \\?").
		WithArgs("evt-1", 1).
		WillReturnRows(eventRows("evt-1", model.EventStateSuccess, 0))
	mock.ExpectExec("UPDATE `integration_event_logs` SET .* WHERE event_id = \\? AND state = \\?").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.TransitionState("evt-1", model.EventStateProcessing, model.EventStateSuccess)
	if !errors.Is(err, ErrEventStateConflict) {
		t.Fatalf("expected ErrEventStateConflict, got: %v", err)
	}
}

func TestEventLogRepository_TransitionState_NotFound(t *testing.T) {
	repo, mock := newMockEventRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .* FROM `integration_event_logs` WHERE event_id = \\? ORDER BY .* LIMIT \\?").
		WithArgs("ghost", 1).
		WillReturnRows(sqlmock.NewRows([]string{"event_id"}))
	mock.ExpectRollback()

	err := repo.TransitionState("ghost", model.EventStatePublished, model.EventStateProcessing)
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got: %v", err)
	}
}

// TestEventLogRepository_RecordFailure 验证“置失败 + 计数 + 尝试记录”在一个事务内完成。
func TestEventLogRepository_RecordFailure(t *testing.T) {
	repo, mock := newMockEventRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .* FROM `integration_event_logs` WHERE event_id = \\? ORDER BY .* LIMIT \\?").
		WithArgs("evt-1", 1).
		WillReturnRows(eventRows("evt-1", model.EventStateProcessing, 0))
	mock.ExpectExec("UPDATE `integration_event_logs` SET .* WHERE event_id = \\? AND state = \\?").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE `integration_event_logs` SET .*retry_count.* WHERE event_id = \\?").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT .* FROM `integration_event_logs` WHERE event_id = \\? ORDER BY .* LIMIT \\?").
		WithArgs("evt-1", 1).
		WillReturnRows(eventRows("evt-1", model.EventStateFail, 1))
	mock.ExpectExec("INSERT INTO `event_retry_logs`").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	if err := repo.RecordFailure("evt-1", model.EventStateProcessing, "downstream timeout"); err != nil {
		t.Fatalf("RecordFailure() error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
