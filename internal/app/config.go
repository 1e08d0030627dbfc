package app

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

// Поддерживаемые драйверы хранилища.
const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"
)

// Config описывает настройки запуска crm-server.
type Config struct {
	HTTPAddr    string
	GRPCAddr    string
	MetricsAddr string

	StorageDriver       string
	PostgresDSN         string
	PostgresAutoMigrate bool

	KafkaBrokers        string
	KafkaTopic          string
	OutboxPollInterval  time.Duration
	OutboxBatchSize     int
	OutboxMaxAttempts   int
	OutboxRetryDelay    time.Duration
	// OutboxBacklogMaxAge — возраст pending-события, после которого /healthz отдаёт degraded.
	OutboxBacklogMaxAge time.Duration

	IdempotencyTTL               time.Duration
	IdempotencyCleanupInterval   time.Duration
	IdempotencyCleanupBatchSize  int
	// IdempotencyCleanupMaxBatches ограничивает работу одного прохода очистки; 0 — без ограничения.
	IdempotencyCleanupMaxBatches int

	RequestTimeout time.Duration
	LogLevel       string
}

// DefaultConfig возвращает настройки по умолчанию: in-memory хранилище без Kafka.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:    ":8000",
		GRPCAddr:    ":50051",
		MetricsAddr: ":9090",

		StorageDriver:       StorageDriverMemory,
		PostgresAutoMigrate: true,

		KafkaTopic:          "crm.events",
		OutboxPollInterval:  time.Second,
		OutboxBatchSize:     100,
		OutboxMaxAttempts:   3,
		OutboxRetryDelay:    50 * time.Millisecond,
		OutboxBacklogMaxAge: 5 * time.Minute,

		IdempotencyTTL:               24 * time.Hour,
		IdempotencyCleanupInterval:   10 * time.Minute,
		IdempotencyCleanupBatchSize:  500,
		IdempotencyCleanupMaxBatches: 20,

		RequestTimeout: 30 * time.Second,
		LogLevel:       "info",
	}
}

// LoadConfig читает .env (если есть) и переменные окружения поверх DefaultConfig.
func LoadConfig() (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return ConfigFromEnv(os.LookupEnv)
}

// ConfigFromEnv собирает конфигурацию из lookup (os.LookupEnv в рабочем режиме).
func ConfigFromEnv(lookup func(string) (string, bool)) (Config, error) {
	cfg := DefaultConfig()
	p := envParser{lookup: lookup}

	p.str("CRM_HTTP_ADDR", &cfg.HTTPAddr)
	p.str("CRM_GRPC_ADDR", &cfg.GRPCAddr)
	p.str("CRM_METRICS_ADDR", &cfg.MetricsAddr)
	p.str("CRM_STORAGE_DRIVER", &cfg.StorageDriver)
	p.str("CRM_POSTGRES_DSN", &cfg.PostgresDSN)
	p.boolean("CRM_POSTGRES_AUTO_MIGRATE", &cfg.PostgresAutoMigrate)
	p.str("KAFKA_BROKERS", &cfg.KafkaBrokers)
	p.str("CRM_KAFKA_TOPIC", &cfg.KafkaTopic)
	p.duration("CRM_OUTBOX_POLL_INTERVAL", &cfg.OutboxPollInterval)
	p.integer("CRM_OUTBOX_BATCH_SIZE", &cfg.OutboxBatchSize)
	p.integer("CRM_OUTBOX_MAX_ATTEMPTS", &cfg.OutboxMaxAttempts)
	p.duration("CRM_OUTBOX_RETRY_DELAY", &cfg.OutboxRetryDelay)
	p.duration("CRM_OUTBOX_BACKLOG_MAX_AGE", &cfg.OutboxBacklogMaxAge)
	p.duration("CRM_IDEMPOTENCY_TTL", &cfg.IdempotencyTTL)
	p.duration("CRM_IDEMPOTENCY_CLEANUP_INTERVAL", &cfg.IdempotencyCleanupInterval)
	p.integer("CRM_IDEMPOTENCY_CLEANUP_BATCH_SIZE", &cfg.IdempotencyCleanupBatchSize)
	p.integer("CRM_IDEMPOTENCY_CLEANUP_MAX_BATCHES", &cfg.IdempotencyCleanupMaxBatches)
	p.duration("CRM_REQUEST_TIMEOUT", &cfg.RequestTimeout)
	p.str("CRM_LOG_LEVEL", &cfg.LogLevel)

	if p.err != nil {
		return Config{}, p.err
	}
	cfg.StorageDriver = strings.ToLower(cfg.StorageDriver)
	return cfg, cfg.Validate()
}

// Validate проверяет согласованность настроек.
func (c Config) Validate() error {
	switch c.StorageDriver {
	case StorageDriverMemory:
	case StorageDriverPostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			return fmt.Errorf("CRM_POSTGRES_DSN is required for storage driver %q", StorageDriverPostgres)
		}
	default:
		return fmt.Errorf("unsupported storage driver %q", c.StorageDriver)
	}
	if c.OutboxBatchSize <= 0 || c.OutboxMaxAttempts <= 0 {
		return fmt.Errorf("outbox batch size and max attempts must be positive")
	}
	if c.IdempotencyTTL <= 0 {
		return fmt.Errorf("idempotency ttl must be positive")
	}
	if c.IdempotencyCleanupMaxBatches < 0 {
		return fmt.Errorf("idempotency cleanup max batches must not be negative")
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	return nil
}

// ConfigureLogging настраивает глобальный logrus: текстовый формат с полным временем.
func ConfigureLogging(level string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("parse log level: %w", err)
	}
	log.SetLevel(lvl)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	return nil
}

// envParser запоминает первую ошибку разбора.
type envParser struct {
	lookup func(string) (string, bool)
	err    error
}

func (p *envParser) value(key string) (string, bool) {
	if p.err != nil {
		return "", false
	}
	v, ok := p.lookup(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (p *envParser) str(key string, dst *string) {
	if v, ok := p.value(key); ok {
		*dst = v
	}
}

func (p *envParser) boolean(key string, dst *bool) {
	if v, ok := p.value(key); ok {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			p.err = fmt.Errorf("parse %s: %w", key, err)
			return
		}
		*dst = parsed
	}
}

func (p *envParser) integer(key string, dst *int) {
	if v, ok := p.value(key); ok {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			p.err = fmt.Errorf("parse %s: %w", key, err)
			return
		}
		*dst = parsed
	}
}

func (p *envParser) duration(key string, dst *time.Duration) {
	if v, ok := p.value(key); ok {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			p.err = fmt.Errorf("parse %s: %w", key, err)
			return
		}
		*dst = parsed
	}
}
