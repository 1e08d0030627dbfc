// Package app собирает crm-server: хранилище, GraphQL HTTP, gRPC health, метрики и фоновые воркеры.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"

	healthcheck "github.com/vladislavdragonenkov/crm/internal/health"
	"github.com/vladislavdragonenkov/crm/internal/metrics"
	"github.com/vladislavdragonenkov/crm/internal/service/crm"
	graphqlsvc "github.com/vladislavdragonenkov/crm/internal/service/graphql"
	"github.com/vladislavdragonenkov/crm/internal/version"
)

// Run запускает сервер и блокируется до отмены ctx или падения одного из серверов.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	deps, err := initRuntimeDependencies(ctx, cfg, logger.WithField("layer", "storage"))
	if err != nil {
		return err
	}
	defer deps.close(logger)

	svc := crm.NewService(deps.store, metrics.NewCRMMetrics(), logger.WithField("component", "crm-service"))
	schema, err := graphqlsvc.NewSchema(svc)
	if err != nil {
		return err
	}
	router := graphqlsvc.NewRouter(graphqlsvc.RouterConfig{
		Handler:        graphqlsvc.NewHandler(schema, logger.WithField("layer", "graphql")),
		Idempotency:    graphqlsvc.NewIdempotencyMiddleware(deps.idempotencyRepo, cfg.IdempotencyTTL, logger.WithField("layer", "idempotency")),
		Logger:         logger.WithField("layer", "http"),
		RequestTimeout: cfg.RequestTimeout,
	})

	healthHandler := healthcheck.NewHandler(version.Current().Version)
	healthHandler.RegisterChecker("storage", deps.storageChecker)
	healthHandler.RegisterChecker("outbox", healthcheck.NewOutboxBacklogChecker(deps.store.Outbox(), cfg.OutboxBacklogMaxAge, nil))

	httpLis, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listen http %s: %w", cfg.HTTPAddr, err)
	}
	grpcLis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		_ = httpLis.Close()
		return fmt.Errorf("listen grpc %s: %w", cfg.GRPCAddr, err)
	}

	bus := connectEventBus(cfg, logger)
	defer bus.close(logger)

	outboxWorker := startOutboxWorker(ctx, cfg, deps.store.Outbox(), bus, logger)
	cleanupWorker := startCleanupWorker(ctx, cfg, deps.idempotencyRepo, logger)

	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)

	errCh := make(chan error, 2)
	httpSrv := serveHTTP(httpLis, router, logger, errCh)

	grpcServer, grpcHealth := newGRPCServer(logger)
	go func() {
		logger.Infof("gRPC health сервер слушает %s", grpcLis.Addr())
		if err := grpcServer.Serve(grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем серверы")
		err = ctx.Err()
	case err = <-errCh:
		logger.WithError(err).Error("server failed")
	}

	stopGRPC(grpcServer, grpcHealth, logger)
	shutdownHTTP(httpSrv, logger)
	shutdownHTTP(metricsSrv, logger)
	outboxWorker.stop()
	cleanupWorker.stop()

	return err
}
