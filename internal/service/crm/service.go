// Package crm содержит слой валидации и мутаций CRM, а также слой запросов.
package crm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/crm/internal/domain"
	"github.com/vladislavdragonenkov/crm/internal/metrics"
)

const helloMessage = "Hello, GraphQL!"

// Service реализует мутации и запросы CRM поверх domain.Store.
type Service struct {
	store   domain.Store
	metrics *metrics.CRMMetrics
	logger  *log.Entry
	now     func() time.Time
	newID   func() string
}

// Option настраивает Service.
type Option func(*Service)

// WithClock подменяет источник времени (используется в тестах).
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator подменяет генератор идентификаторов.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) {
		if newID != nil {
			s.newID = newID
		}
	}
}

// NewService конструирует сервис с зависимостями. metrics может быть nil.
func NewService(store domain.Store, m *metrics.CRMMetrics, logger *log.Entry, opts ...Option) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "crm-service")
	}
	s := &Service{
		store:   store,
		metrics: m,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Hello возвращает приветствие; heartbeat использует его как self-test API.
func (s *Service) Hello() string {
	return helloMessage
}

// pendingEvent — событие, которое будет записано в outbox внутри транзакции мутации.
type pendingEvent struct {
	aggregateType string
	aggregateID   string
	eventType     string
	payload       any
}

// enqueue записывает события в outbox текущей транзакции.
func enqueue(tx domain.Store, events ...pendingEvent) error {
	for _, ev := range events {
		body, err := json.Marshal(ev.payload)
		if err != nil {
			return fmt.Errorf("marshal %s payload: %w", ev.eventType, err)
		}
		if _, err := tx.Outbox().Enqueue(domain.OutboxMessage{
			AggregateType: ev.aggregateType,
			AggregateID:   ev.aggregateID,
			EventType:     ev.eventType,
			Payload:       body,
		}); err != nil {
			return fmt.Errorf("enqueue %s: %w", ev.eventType, err)
		}
	}
	return nil
}

// recordEvents отражает в метриках события, закоммиченные вместе с мутацией.
func (s *Service) recordEvents(events ...pendingEvent) {
	for _, ev := range events {
		s.metrics.RecordOutboxEvent(ev.eventType)
	}
}

// failure переводит ошибку мутации в сообщение результата. Бизнес-ошибки
// отдаются как есть, остальные получают префикс операции.
func (s *Service) failure(ctx context.Context, operation, prefix string, err error, done func(string)) string {
	entry := s.logger.WithContext(ctx).WithError(err).WithField("operation", operation)
	if domain.IsBusiness(err) {
		entry.Warn("mutation rejected")
		done(metrics.ResultBusinessError)
		return err.Error()
	}
	entry.Error("mutation failed")
	done(metrics.ResultFailure)
	return fmt.Sprintf("%s: %v", prefix, err)
}
