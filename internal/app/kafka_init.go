package app

import (
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/crm/internal/messaging/kafka"
)

// eventBus — Kafka-публикаторы outbox: рабочий topic и DLQ поверх одного producer.
type eventBus struct {
	producer *kafka.Producer
	events   *kafka.OutboxTopicPublisher
	dlq      *kafka.OutboxTopicPublisher
}

// connectEventBus подключается к Kafka, если заданы брокеры. Недоступный брокер
// не мешает старту: события CRM копятся в outbox до следующего запуска.
func connectEventBus(cfg Config, logger *log.Entry) *eventBus {
	brokers := brokerList(cfg.KafkaBrokers)
	if len(brokers) == 0 {
		logger.Info("kafka is not configured, outbox events stay pending")
		return nil
	}

	producer, err := kafka.NewProducer(brokers, logger.WithField("component", "kafka-producer"))
	if err != nil {
		logger.WithError(err).Warn("kafka is unavailable, outbox events stay pending")
		return nil
	}

	logger.WithFields(log.Fields{"brokers": brokers, "topic": cfg.KafkaTopic}).Info("kafka producer connected")
	return &eventBus{
		producer: producer,
		events:   kafka.NewOutboxPublisher(producer, cfg.KafkaTopic),
		dlq:      kafka.NewOutboxPublisher(producer, kafka.TopicDeadLetterQueue),
	}
}

func brokerList(raw string) []string {
	var brokers []string
	for _, b := range strings.Split(raw, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func (b *eventBus) close(logger *log.Entry) {
	if b == nil {
		return
	}
	if err := b.producer.Close(); err != nil {
		logger.WithError(err).Warn("failed to close kafka producer")
	}
}
