package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/crm/internal/domain"
)

const defaultIdempotencyTTL = 24 * time.Hour

const (
	// Истёкший ключ занимается заново сразу, не дожидаясь очистки.
	claimIdempotencyKeySQL = `
INSERT INTO idempotency_keys (key, request_hash, status, ttl_at, created_at, updated_at)
VALUES ($1, $2, 'processing', $3, $4, $4)
ON CONFLICT (key) DO UPDATE
SET request_hash = EXCLUDED.request_hash,
    response_body = NULL,
    http_status = NULL,
    status = EXCLUDED.status,
    ttl_at = EXCLUDED.ttl_at,
    created_at = EXCLUDED.created_at,
    updated_at = EXCLUDED.updated_at
WHERE idempotency_keys.ttl_at <= EXCLUDED.created_at`

	selectIdempotencyKeySQL = `
SELECT key, request_hash, response_body, http_status, status, ttl_at, created_at, updated_at
FROM idempotency_keys
WHERE key = $1`

	storeIdempotentResponseSQL = `
UPDATE idempotency_keys
SET response_body = $2, http_status = $3, status = $4, updated_at = $5
WHERE key = $1`

	// Старые ключи удаляются первыми; LIMIT ограничивает длину одной транзакции.
	purgeIdempotencyBatchSQL = `
DELETE FROM idempotency_keys
WHERE key IN (SELECT key FROM idempotency_keys WHERE ttl_at <= $1 ORDER BY ttl_at LIMIT $2)`

	purgeIdempotencyAllSQL = `DELETE FROM idempotency_keys WHERE ttl_at <= $1`
)

// idempotencyRepository хранит ответы мутаций GraphQL. Работает с *sql.DB
// напрямую: запись ключа не должна откатываться вместе с мутацией.
type idempotencyRepository struct {
	db *sql.DB
}

// NewIdempotencyRepository создаёт PostgreSQL-реализацию IdempotencyRepository.
func NewIdempotencyRepository(store *Store) domain.IdempotencyRepository {
	return &idempotencyRepository{db: store.DB()}
}

func normalizeIdempotencyKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", domain.ErrIdempotencyKeyRequired
	}
	return key, nil
}

func (r *idempotencyRepository) CreateProcessing(key, requestHash string, ttlAt time.Time) (domain.IdempotencyRecord, error) {
	key, err := normalizeIdempotencyKey(key)
	if err != nil {
		return domain.IdempotencyRecord{}, err
	}
	requestHash = strings.TrimSpace(requestHash)
	if requestHash == "" {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyRequestHashRequired
	}

	now := time.Now().UTC()
	if ttlAt.IsZero() {
		ttlAt = now.Add(defaultIdempotencyTTL)
	}

	var claimed int64
	err = withOpTimeout(func(ctx context.Context) error {
		res, err := r.db.ExecContext(ctx, claimIdempotencyKeySQL, key, requestHash, ttlAt, now)
		if err != nil {
			return err
		}
		claimed, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return domain.IdempotencyRecord{}, fmt.Errorf("claim idempotency key %s: %w", key, err)
	}

	if claimed == 0 {
		// Ключ занят живой записью: отличаем повтор от переиспользования с другим телом.
		existing, getErr := r.Get(key)
		switch {
		case getErr != nil:
			return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyAlreadyExists
		case existing.RequestHash != requestHash:
			return existing, domain.ErrIdempotencyHashMismatch
		default:
			return existing, domain.ErrIdempotencyKeyAlreadyExists
		}
	}

	return domain.IdempotencyRecord{
		Key:         key,
		RequestHash: requestHash,
		Status:      domain.IdempotencyStatusProcessing,
		TTLAt:       ttlAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func (r *idempotencyRepository) Get(key string) (domain.IdempotencyRecord, error) {
	key, err := normalizeIdempotencyKey(key)
	if err != nil {
		return domain.IdempotencyRecord{}, err
	}

	var record domain.IdempotencyRecord
	err = withOpTimeout(func(ctx context.Context) error {
		return scanIdempotencyRecord(r.db.QueryRowContext(ctx, selectIdempotencyKeySQL, key), &record)
	})
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyNotFound
	case err != nil:
		return domain.IdempotencyRecord{}, fmt.Errorf("get idempotency key %s: %w", key, err)
	}
	return record, nil
}

func scanIdempotencyRecord(row *sql.Row, record *domain.IdempotencyRecord) error {
	var (
		status     string
		body       []byte
		httpStatus sql.NullInt64
	)
	if err := row.Scan(&record.Key, &record.RequestHash, &body, &httpStatus, &status,
		&record.TTLAt, &record.CreatedAt, &record.UpdatedAt); err != nil {
		return err
	}

	record.Status = domain.IdempotencyStatus(status)
	if !record.Status.Valid() {
		return fmt.Errorf("invalid idempotency status %q", status)
	}
	record.ResponseBody = append([]byte(nil), body...)
	record.HTTPStatus = int(httpStatus.Int64)
	return nil
}

func (r *idempotencyRepository) MarkDone(key string, responseBody []byte, httpStatus int) error {
	return r.storeResponse(key, domain.IdempotencyStatusDone, responseBody, httpStatus)
}

func (r *idempotencyRepository) MarkFailed(key string, responseBody []byte, httpStatus int) error {
	return r.storeResponse(key, domain.IdempotencyStatusFailed, responseBody, httpStatus)
}

// storeResponse сохраняет ответ, который будет отдан при повторе запроса с тем же ключом.
func (r *idempotencyRepository) storeResponse(key string, status domain.IdempotencyStatus, responseBody []byte, httpStatus int) error {
	key, err := normalizeIdempotencyKey(key)
	if err != nil {
		return err
	}

	var updated int64
	err = withOpTimeout(func(ctx context.Context) error {
		res, err := r.db.ExecContext(ctx, storeIdempotentResponseSQL,
			key, responseBody, httpStatus, string(status), time.Now().UTC())
		if err != nil {
			return err
		}
		updated, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("store %s response for idempotency key %s: %w", status, key, err)
	}
	if updated == 0 {
		return domain.ErrIdempotencyKeyNotFound
	}
	return nil
}

func (r *idempotencyRepository) DeleteExpired(before time.Time, limit int) (int, error) {
	if before.IsZero() {
		before = time.Now().UTC()
	}

	var removed int64
	err := withOpTimeout(func(ctx context.Context) error {
		var (
			res sql.Result
			err error
		)
		if limit > 0 {
			res, err = r.db.ExecContext(ctx, purgeIdempotencyBatchSQL, before, limit)
		} else {
			res, err = r.db.ExecContext(ctx, purgeIdempotencyAllSQL, before)
		}
		if err != nil {
			return err
		}
		removed, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("delete expired idempotency keys: %w", err)
	}
	return int(removed), nil
}

var _ domain.IdempotencyRepository = (*idempotencyRepository)(nil)
