// Package idempotency удаляет ключи Idempotency-Key, срок хранения которых истёк.
package idempotency

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/crm/internal/domain"
	"github.com/vladislavdragonenkov/crm/internal/metrics"
)

// CleanupConfig — расписание и объём очистки.
type CleanupConfig struct {
	Interval  time.Duration
	BatchSize int
	// MaxBatches ограничивает число порций за проход, остаток удаляется
	// на следующем тике; 0 — без ограничения.
	MaxBatches int
}

func (c CleanupConfig) withDefaults() CleanupConfig {
	if c.Interval <= 0 {
		c.Interval = 10 * time.Minute
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 500
	}
	if c.MaxBatches < 0 {
		c.MaxBatches = 0
	}
	return c
}

// CleanupWorker периодически удаляет ответы мутаций с истёкшим TTL.
type CleanupWorker struct {
	repo    domain.IdempotencyRepository
	cfg     CleanupConfig
	logger  *log.Entry
	metrics *metrics.CleanupMetrics
	now     func() time.Time
}

// NewCleanupWorker создаёт воркер очистки. logger и m могут быть nil.
func NewCleanupWorker(repo domain.IdempotencyRepository, cfg CleanupConfig, logger *log.Entry, m *metrics.CleanupMetrics) *CleanupWorker {
	if logger == nil {
		logger = log.WithField("component", "idempotency-cleanup-worker")
	}
	return &CleanupWorker{
		repo:    repo,
		cfg:     cfg.withDefaults(),
		logger:  logger,
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Run делает проход сразу и затем раз в Interval до отмены ctx.
func (w *CleanupWorker) Run(ctx context.Context) {
	if w.repo == nil {
		w.logger.Warn("idempotency cleanup worker is disabled: repo is nil")
		return
	}

	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()
	for {
		w.sweep(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w *CleanupWorker) sweep(ctx context.Context) {
	res, err := w.DeleteExpired(ctx, w.now())
	if errors.Is(err, context.Canceled) {
		return
	}
	w.metrics.RecordRun(res.Deleted, err)

	entry := w.logger.WithField("deleted", res.Deleted)
	switch {
	case err != nil:
		entry.WithError(err).Warn("idempotency cleanup run failed")
	case res.More:
		entry.Info("idempotency cleanup paused, expired keys remain until the next run")
	case res.Deleted > 0:
		entry.Info("idempotency cleanup completed")
	}
}

// SweepResult — итог одного прохода очистки.
type SweepResult struct {
	Deleted int
	// More — проход остановлен по MaxBatches, просроченные ключи ещё есть.
	More bool
}

// DeleteExpired удаляет ключи с TTL не позже before порциями BatchSize.
func (w *CleanupWorker) DeleteExpired(ctx context.Context, before time.Time) (SweepResult, error) {
	if before.IsZero() {
		before = w.now()
	}

	var res SweepResult
	for batch := 1; ; batch++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		n, err := w.repo.DeleteExpired(before, w.cfg.BatchSize)
		res.Deleted += n
		if err != nil {
			return res, err
		}
		if n < w.cfg.BatchSize {
			return res, nil
		}
		if w.cfg.MaxBatches > 0 && batch >= w.cfg.MaxBatches {
			res.More = true
			return res, nil
		}
	}
}
