// Command dlq-reprocess переигрывает события CRM из DLQ обратно в топик событий.
// По умолчанию работает в режиме dry-run и только перечисляет кандидатов.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/crm/internal/domain"
	"github.com/vladislavdragonenkov/crm/internal/messaging/kafka"
)

const (
	defaultReplayLimit = 100
	defaultIdleTimeout = 2 * time.Second
)

type config struct {
	brokers     []string
	sourceTopic string
	targetTopic string
	limit       int
	execute     bool
	fromNewest  bool
	idleTimeout time.Duration
	// eventTypes и aggregates сужают выборку; пустой фильтр пропускает всё.
	eventTypes []string
	aggregates []string
}

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.InfoLevel)

	cfg, err := readConfig()
	if err != nil {
		fail("%v", err)
	}
	if err := run(context.Background(), cfg); err != nil {
		fail("dlq replay failed: %v", err)
	}
}

func readConfig() (config, error) {
	var (
		cfg           config
		brokersRaw    string
		eventTypesRaw string
		aggregatesRaw string
	)

	flag.StringVar(&brokersRaw, "brokers", "", "Kafka brokers as comma-separated list (fallback: KAFKA_BROKERS)")
	flag.StringVar(&cfg.sourceTopic, "source-topic", kafka.TopicDeadLetterQueue, "DLQ source topic")
	flag.StringVar(&cfg.targetTopic, "target-topic", kafka.TopicCRMEvents, "target topic for replay")
	flag.StringVar(&eventTypesRaw, "event-types", "", "replay only these CRM event types, comma-separated")
	flag.StringVar(&aggregatesRaw, "aggregates", "", "replay only events of these aggregates: customer, product, order")
	flag.IntVar(&cfg.limit, "limit", defaultReplayLimit, "max number of DLQ messages to scan")
	flag.BoolVar(&cfg.execute, "execute", false, "publish replayed events; default is dry-run")
	flag.BoolVar(&cfg.fromNewest, "from-newest", false, "scan the latest messages of each partition")
	flag.DurationVar(&cfg.idleTimeout, "idle-timeout", defaultIdleTimeout, "idle timeout per partition")
	flag.Parse()

	_ = godotenv.Load()
	if strings.TrimSpace(brokersRaw) == "" {
		brokersRaw = os.Getenv("KAFKA_BROKERS")
	}
	cfg.brokers = splitList(brokersRaw)
	cfg.eventTypes = splitList(eventTypesRaw)
	cfg.aggregates = splitList(aggregatesRaw)

	return cfg, cfg.validate()
}

func (c config) validate() error {
	switch {
	case len(c.brokers) == 0:
		return fmt.Errorf("kafka brokers are required (-brokers or KAFKA_BROKERS)")
	case strings.TrimSpace(c.sourceTopic) == "":
		return fmt.Errorf("source-topic is required")
	case strings.TrimSpace(c.targetTopic) == "":
		return fmt.Errorf("target-topic is required")
	case c.limit <= 0:
		return fmt.Errorf("limit must be > 0")
	case c.idleTimeout <= 0:
		return fmt.Errorf("idle-timeout must be > 0")
	}

	for _, eventType := range c.eventTypes {
		if _, ok := domain.EventAggregate(eventType); !ok {
			return fmt.Errorf("unknown event type %q", eventType)
		}
	}
	for _, aggregate := range c.aggregates {
		if !slices.Contains([]string{domain.AggregateCustomer, domain.AggregateProduct, domain.AggregateOrder}, aggregate) {
			return fmt.Errorf("unknown aggregate %q", aggregate)
		}
	}
	return nil
}

// wants сообщает, проходит ли событие фильтры -event-types и -aggregates.
func (c config) wants(event domain.OutboxMessage) bool {
	if len(c.eventTypes) > 0 && !slices.Contains(c.eventTypes, event.EventType) {
		return false
	}
	return len(c.aggregates) == 0 || slices.Contains(c.aggregates, event.AggregateType)
}

func (c config) mode() string {
	if c.execute {
		return "execute"
	}
	return "dry-run"
}

func splitList(raw string) []string {
	var items []string
	for _, chunk := range strings.Split(raw, ",") {
		if item := strings.TrimSpace(chunk); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func fail(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
