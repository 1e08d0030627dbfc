package app

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/crm/internal/domain"
	"github.com/vladislavdragonenkov/crm/internal/metrics"
	"github.com/vladislavdragonenkov/crm/internal/service/idempotency"
	"github.com/vladislavdragonenkov/crm/internal/service/outbox"
)

// backgroundWorker — горутина, остановку которой дожидается Run.
type backgroundWorker struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func startWorker(ctx context.Context, run func(context.Context)) backgroundWorker {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		run(ctx)
	}()
	return backgroundWorker{cancel: cancel, done: done}
}

func (w backgroundWorker) stop() {
	if w.cancel == nil {
		return
	}
	w.cancel()
	<-w.done
}

// startOutboxWorker запускает публикацию outbox в Kafka; без bus воркер не стартует.
func startOutboxWorker(ctx context.Context, cfg Config, repo domain.OutboxRepository, bus *eventBus, logger *log.Entry) backgroundWorker {
	if bus == nil {
		return backgroundWorker{}
	}

	worker := outbox.NewWorker(
		repo,
		bus.events,
		bus.dlq,
		outbox.Config{
			PollInterval: cfg.OutboxPollInterval,
			BatchSize:    cfg.OutboxBatchSize,
			MaxAttempts:  cfg.OutboxMaxAttempts,
			RetryDelay:   cfg.OutboxRetryDelay,
		},
		logger.WithField("component", "outbox-worker"),
		metrics.NewOutboxMetrics(nil),
	)
	return startWorker(ctx, worker.Run)
}

func startCleanupWorker(ctx context.Context, cfg Config, repo domain.IdempotencyRepository, logger *log.Entry) backgroundWorker {
	worker := idempotency.NewCleanupWorker(repo, idempotency.CleanupConfig{
		Interval:   cfg.IdempotencyCleanupInterval,
		BatchSize:  cfg.IdempotencyCleanupBatchSize,
		MaxBatches: cfg.IdempotencyCleanupMaxBatches,
	}, logger.WithField("component", "idempotency-cleanup-worker"), metrics.NewCleanupMetrics(nil))
	return startWorker(ctx, worker.Run)
}
