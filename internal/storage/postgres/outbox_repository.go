package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/crm/internal/domain"
)

type outboxStatus string

const (
	outboxSent   outboxStatus = "sent"
	outboxFailed outboxStatus = "failed"

	defaultOutboxBatch = 100
)

const (
	insertOutboxSQL = `
INSERT INTO outbox_messages (id, aggregate_type, aggregate_id, event_type, payload, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, 'pending', $6, $6)`

	// События одного агрегата уходят в порядке записи.
	selectPendingOutboxSQL = `
SELECT id, aggregate_type, aggregate_id, event_type, payload
FROM outbox_messages
WHERE status = 'pending'
ORDER BY created_at, id
LIMIT $1`

	outboxBacklogSQL = `
SELECT COUNT(*), MIN(created_at) FROM outbox_messages WHERE status = 'pending'`

	// Итоговый статус ставится один раз: повторная отметка не меняет запись.
	settleOutboxSQL = `
UPDATE outbox_messages
SET status = $2, attempt_count = attempt_count + 1, updated_at = $3
WHERE id = $1 AND status = 'pending'`
)

// outboxRepository пишет события CRM в outbox_messages через dbtx Store:
// внутри WithinTx событие коммитится вместе с изменением клиента, товара или заказа.
type outboxRepository struct {
	q dbtx
}

func (r *outboxRepository) Enqueue(msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}

	err := withOpTimeout(func(ctx context.Context) error {
		_, err := r.q.ExecContext(ctx, insertOutboxSQL,
			msg.ID, msg.AggregateType, msg.AggregateID, msg.EventType, msg.Payload, time.Now().UTC())
		return err
	})
	if err != nil {
		return domain.OutboxMessage{}, fmt.Errorf("enqueue %s event for %s %s: %w", msg.EventType, msg.AggregateType, msg.AggregateID, err)
	}
	return msg, nil
}

func (r *outboxRepository) PullPending(limit int) ([]domain.OutboxMessage, error) {
	if limit <= 0 {
		limit = defaultOutboxBatch
	}

	var events []domain.OutboxMessage
	err := withOpTimeout(func(ctx context.Context) error {
		rows, err := r.q.QueryContext(ctx, selectPendingOutboxSQL, limit)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var ev domain.OutboxMessage
			if err := rows.Scan(&ev.ID, &ev.AggregateType, &ev.AggregateID, &ev.EventType, &ev.Payload); err != nil {
				return err
			}
			events = append(events, ev)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("pull pending outbox events: %w", err)
	}
	return events, nil
}

func (r *outboxRepository) Stats() (domain.OutboxStats, error) {
	var (
		stats  domain.OutboxStats
		oldest sql.NullTime
	)
	err := withOpTimeout(func(ctx context.Context) error {
		return r.q.QueryRowContext(ctx, outboxBacklogSQL).Scan(&stats.PendingCount, &oldest)
	})
	if err != nil {
		return domain.OutboxStats{}, fmt.Errorf("outbox backlog query: %w", err)
	}
	if oldest.Valid {
		stats.OldestPendingAt = oldest.Time.UTC()
	}
	return stats, nil
}

func (r *outboxRepository) MarkSent(id string) error { return r.settle(id, outboxSent) }

func (r *outboxRepository) MarkFailed(id string) error { return r.settle(id, outboxFailed) }

// settle переводит pending-событие в итоговый статус. Неизвестное или уже
// обработанное событие даёт domain.ErrOutboxPublish.
func (r *outboxRepository) settle(id string, status outboxStatus) error {
	var affected int64
	err := withOpTimeout(func(ctx context.Context) error {
		res, err := r.q.ExecContext(ctx, settleOutboxSQL, id, string(status), time.Now().UTC())
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("mark outbox event %s as %s: %w", id, status, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: event %s is not pending", domain.ErrOutboxPublish, id)
	}
	return nil
}

// withOpTimeout ограничивает операцию репозитория opTimeout. Интерфейсы outbox
// и idempotency не принимают context, поэтому отсчёт идёт от Background.
func withOpTimeout(fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	return fn(ctx)
}

var _ domain.OutboxRepository = (*outboxRepository)(nil)
