// Package outbox публикует доменные события CRM, записанные в outbox вместе с мутацией.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/crm/internal/domain"
	"github.com/vladislavdragonenkov/crm/internal/metrics"
)

// Config — параметры публикации outbox.
type Config struct {
	PollInterval time.Duration
	BatchSize    int
	// MaxAttempts — число попыток публикации одного события до failed/DLQ.
	MaxAttempts int
	// RetryDelay удваивается с каждой попыткой, но не превышает MaxRetryDelay.
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.RetryDelay < 0 {
		c.RetryDelay = 0
	}
	if c.MaxRetryDelay <= 0 {
		c.MaxRetryDelay = 5 * time.Second
	}
	return c
}

// BatchResult — итог одного прохода по outbox.
type BatchResult struct {
	Sent   int
	Failed int
	// ByType считает опубликованные события по типу (customer.created и т.д.).
	ByType map[string]int
}

// Worker переносит pending-события outbox в брокер. Неопубликованное после
// MaxAttempts событие помечается failed и, если задан dlq, уходит туда
// в конверте domain.DeadLetter.
type Worker struct {
	repo      domain.OutboxRepository
	publisher domain.OutboxPublisher
	dlq       domain.OutboxPublisher
	cfg       Config
	logger    *log.Entry
	metrics   *metrics.OutboxMetrics
	now       func() time.Time
}

// NewWorker создаёт воркер; dlq и m могут быть nil.
func NewWorker(repo domain.OutboxRepository, publisher, dlq domain.OutboxPublisher, cfg Config, logger *log.Entry, m *metrics.OutboxMetrics) *Worker {
	if logger == nil {
		logger = log.WithField("component", "outbox-worker")
	}
	return &Worker{
		repo:      repo,
		publisher: publisher,
		dlq:       dlq,
		cfg:       cfg.withDefaults(),
		logger:    logger,
		metrics:   m,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Run опрашивает outbox до отмены ctx.
func (w *Worker) Run(ctx context.Context) {
	if w.repo == nil || w.publisher == nil {
		w.logger.Warn("outbox worker is disabled: repo or publisher is nil")
		return
	}

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if res := w.ProcessOnce(ctx); res.Sent+res.Failed > 0 {
			w.logger.WithFields(log.Fields{
				"sent":    res.Sent,
				"failed":  res.Failed,
				"by_type": res.ByType,
			}).Debug("outbox batch published")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// ProcessOnce публикует один батч pending-событий в порядке создания.
func (w *Worker) ProcessOnce(ctx context.Context) BatchResult {
	res := BatchResult{ByType: make(map[string]int)}
	if ctx.Err() != nil {
		return res
	}
	defer w.refreshBacklog()

	events, err := w.repo.PullPending(w.cfg.BatchSize)
	if err != nil {
		w.logger.WithError(err).Warn("failed to pull pending outbox events")
		return res
	}

	for _, event := range events {
		if ctx.Err() != nil {
			break
		}
		switch w.deliver(ctx, event) {
		case delivered:
			res.Sent++
			res.ByType[event.EventType]++
		case deadLettered:
			res.Failed++
		}
	}
	return res
}

type outcome int

const (
	postponed outcome = iota
	delivered
	deadLettered
)

func (w *Worker) deliver(ctx context.Context, event domain.OutboxMessage) outcome {
	logger := w.logger.WithFields(log.Fields{
		"outbox_id":    event.ID,
		"event_type":   event.EventType,
		"aggregate_id": event.AggregateID,
	})

	err := w.publishWithRetry(ctx, event)
	switch {
	case err == nil:
		if markErr := w.repo.MarkSent(event.ID); markErr != nil {
			logger.WithError(markErr).Warn("failed to mark outbox event as sent")
		}
		return delivered
	case ctx.Err() != nil:
		// Событие остаётся pending и уйдёт при следующем запуске.
		return postponed
	}

	logger.WithError(err).Error("outbox publish failed after retries")
	w.metrics.RecordPublish(metrics.PublishFailed)
	if w.dlq != nil {
		if dlqErr := w.deadLetter(event, err); dlqErr != nil {
			logger.WithError(dlqErr).Warn("failed to publish outbox event to DLQ")
			w.metrics.RecordPublish(metrics.PublishDLQFailed)
		} else {
			w.metrics.RecordPublish(metrics.PublishDLQ)
		}
	}
	if markErr := w.repo.MarkFailed(event.ID); markErr != nil {
		logger.WithError(markErr).Warn("failed to mark outbox event as failed")
	}
	return deadLettered
}

func (w *Worker) publishWithRetry(ctx context.Context, event domain.OutboxMessage) error {
	var err error
	for attempt := 1; ; attempt++ {
		if err = w.publisher.Publish(event); err == nil {
			w.metrics.RecordPublish(metrics.PublishSent)
			return nil
		}
		w.metrics.RecordPublish(metrics.PublishRetryError)
		if attempt == w.cfg.MaxAttempts {
			return fmt.Errorf("publish %s after %d attempts: %w", event.EventType, attempt, err)
		}

		if delay := w.retryDelay(attempt); delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}
}

// retryDelay — задержка после попытки attempt (с 1).
func (w *Worker) retryDelay(attempt int) time.Duration {
	delay := w.cfg.RetryDelay
	for i := 1; i < attempt && delay > 0; i++ {
		if delay >= w.cfg.MaxRetryDelay/2 {
			return w.cfg.MaxRetryDelay
		}
		delay *= 2
	}
	return min(delay, w.cfg.MaxRetryDelay)
}

func (w *Worker) refreshBacklog() {
	stats, err := w.repo.Stats()
	if err != nil {
		w.logger.WithError(err).Warn("failed to collect outbox backlog stats")
		return
	}

	var age time.Duration
	if stats.PendingCount > 0 && !stats.OldestPendingAt.IsZero() {
		age = w.now().Sub(stats.OldestPendingAt)
	}
	w.metrics.SetBacklog(stats.PendingCount, age)
}

func (w *Worker) deadLetter(event domain.OutboxMessage, publishErr error) error {
	payload, err := json.Marshal(domain.NewDeadLetter(event, publishErr, w.now()))
	if err != nil {
		return fmt.Errorf("marshal dead letter %s: %w", event.ID, err)
	}

	letter := event
	letter.Payload = payload
	return w.dlq.Publish(letter)
}
