package service

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"

	"treehub/internal/model"
	"treehub/internal/repository"
	"treehub/pkg/log"

	"gorm.io/gorm"
)

// EventBroadcaster 是事件对外推送的最小接口，由 websocket hub 实现。
// 推送是尽力而为：失败不影响事件日志本身。
type EventBroadcaster interface {
	Broadcast(event *model.IntegrationEventLog)
}

// EventService 管理集成事件日志的发布与处理生命周期。
// 状态机：published → processing → success；processing → fail → processing（重试）。
type EventService interface {
	Publish(tenantID, eventType string, payload interface{}) (*model.IntegrationEventLog, error)
	MarkProcessing(eventID string) error
	MarkSuccess(eventID string) error
	// MarkFail 置失败并追加一条尝试记录；失败事件可再次 MarkProcessing 重试。
	MarkFail(eventID, reason string) error
	FindByID(eventID string) (*model.IntegrationEventLog, error)
	List(tenantID, state string) ([]model.IntegrationEventLog, error)
	GetRetryLogs(eventID string) ([]model.EventRetryLog, error)
}

type eventService struct {
	eventRepo   repository.EventLogRepository
	broadcaster EventBroadcaster
}

func NewEventService(eventRepo repository.EventLogRepository, broadcaster EventBroadcaster) EventService {
	return &eventService{
		eventRepo:   eventRepo,
		broadcaster: broadcaster,
	}
}

// Publish 落库一条 published 状态的事件，随后广播给在线订阅者。
// 广播失败只告警：事件日志才是事实来源，订阅者可以随时回查。
func (s *eventService) Publish(tenantID, eventType string, payload interface{}) (*model.IntegrationEventLog, error) {
	if s.eventRepo == nil {
		return nil, ErrInternal
	}

	eventType = strings.TrimSpace(eventType)
	if tenantID == "" || eventType == "" {
		return nil, ErrInvalidInput
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, ErrInvalidInput
	}

	event := &model.IntegrationEventLog{
		EventID:   newEventID(),
		TenantID:  tenantID,
		EventType: eventType,
		Payload:   string(body),
		State:     model.EventStatePublished,
	}
	if err := s.eventRepo.Create(event); err != nil {
		return nil, err
	}

	if s.broadcaster != nil {
		s.broadcaster.Broadcast(event)
	}
	return event, nil
}

// MarkProcessing 允许从 published（首次处理）或 fail（重试）进入 processing。
func (s *eventService) MarkProcessing(eventID string) error {
	if s.eventRepo == nil {
		return ErrInternal
	}
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return ErrInvalidInput
	}

	err := s.eventRepo.TransitionState(eventID, model.EventStatePublished, model.EventStateProcessing)
	if errors.Is(err, repository.ErrEventStateConflict) {
		// 首次处理失败后的重试路径
		err = s.eventRepo.TransitionState(eventID, model.EventStateFail, model.EventStateProcessing)
	}
	return s.translateEventErr(err)
}

func (s *eventService) MarkSuccess(eventID string) error {
	if s.eventRepo == nil {
		return ErrInternal
	}
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return ErrInvalidInput
	}

	return s.translateEventErr(
		s.eventRepo.TransitionState(eventID, model.EventStateProcessing, model.EventStateSuccess))
}

func (s *eventService) MarkFail(eventID, reason string) error {
	if s.eventRepo == nil {
		return ErrInternal
	}
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return ErrInvalidInput
	}

	return s.translateEventErr(
		s.eventRepo.RecordFailure(eventID, model.EventStateProcessing, reason))
}

func (s *eventService) FindByID(eventID string) (*model.IntegrationEventLog, error) {
	if s.eventRepo == nil {
		return nil, ErrInternal
	}
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return nil, ErrInvalidInput
	}

	event, err := s.eventRepo.FindByID(eventID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	return event, nil
}

func (s *eventService) List(tenantID, state string) ([]model.IntegrationEventLog, error) {
	if s.eventRepo == nil {
		return nil, ErrInternal
	}
	if tenantID == "" {
		return nil, ErrInvalidInput
	}

	switch state {
	case "", model.EventStatePublished, model.EventStateProcessing, model.EventStateSuccess, model.EventStateFail:
	default:
		return nil, ErrInvalidInput
	}
	return s.eventRepo.ListByState(tenantID, state)
}

func (s *eventService) GetRetryLogs(eventID string) ([]model.EventRetryLog, error) {
	if s.eventRepo == nil {
		return nil, ErrInternal
	}
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return nil, ErrInvalidInput
	}
	return s.eventRepo.FindRetryLogs(eventID)
}

func (s *eventService) translateEventErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrEventNotFound
	case errors.Is(err, repository.ErrEventStateConflict):
		return ErrEventStateConflict
	default:
		return err
	}
}

// newEventID 生成随机事件 ID。
func newEventID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		log.Errorf("EventService: failed to generate event id: %v", err)
		return ""
	}
	return hex.EncodeToString(buf)
}
