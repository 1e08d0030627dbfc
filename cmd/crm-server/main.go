package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/crm/internal/app"
	"github.com/vladislavdragonenkov/crm/internal/version"
)

// startupFields — поля стартовой записи лога.
func startupFields(cfg app.Config) log.Fields {
	fields := version.Current().Fields()
	fields["http_addr"] = cfg.HTTPAddr
	fields["grpc_addr"] = cfg.GRPCAddr
	fields["metrics_addr"] = cfg.MetricsAddr
	fields["storage"] = cfg.StorageDriver
	fields["kafka"] = cfg.KafkaBrokers != ""
	return fields
}

func main() {
	cfg, err := app.LoadConfig()
	if err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}
	if err := app.ConfigureLogging(cfg.LogLevel); err != nil {
		log.WithError(err).Fatal("invalid log level")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(startupFields(cfg)).Info("starting crm server")

	if err := app.Run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("crm server stopped with error")
	}

	log.Info("crm server stopped")
}
