package kafka

import (
	"fmt"
	"slices"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"
)

const clientID = "crm-server"

// Producer — синхронный Kafka producer сервиса CRM. Событие считается
// опубликованным только после подтверждения всеми репликами.
type Producer struct {
	sync   sarama.SyncProducer
	logger *log.Entry
	now    func() time.Time
}

// newSaramaConfig — настройки идемпотентной доставки: повтор внутри sarama
// не создаёт дублей в партиции.
func newSaramaConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.ClientID = clientID
	cfg.Producer.Idempotent = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5
	cfg.Producer.Return.Successes = true
	cfg.Producer.Compression = sarama.CompressionSnappy
	cfg.Net.MaxOpenRequests = 1
	return cfg
}

// NewProducer подключается к brokers.
func NewProducer(brokers []string, logger *log.Entry) (*Producer, error) {
	sp, err := sarama.NewSyncProducer(brokers, newSaramaConfig())
	if err != nil {
		return nil, fmt.Errorf("connect kafka producer to %v: %w", brokers, err)
	}
	return newProducer(sp, logger), nil
}

func newProducer(sp sarama.SyncProducer, logger *log.Entry) *Producer {
	if logger == nil {
		logger = log.WithField("component", "kafka-producer")
	}
	return &Producer{
		sync:   sp,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Send отправляет уже сериализованное значение и ждёт подтверждения брокера.
func (p *Producer) Send(topic, key string, value []byte, headers map[string]string) error {
	fields := log.Fields{"topic": topic, "key": key}

	partition, offset, err := p.sync.SendMessage(&sarama.ProducerMessage{
		Topic:     topic,
		Key:       sarama.StringEncoder(key),
		Value:     sarama.ByteEncoder(value),
		Headers:   RecordHeaders(headers),
		Timestamp: p.now(),
	})
	if err != nil {
		p.logger.WithError(err).WithFields(fields).Warn("kafka rejected message")
		return fmt.Errorf("send to %s: %w", topic, err)
	}

	fields["partition"], fields["offset"] = partition, offset
	p.logger.WithFields(fields).Debug("kafka message acknowledged")
	return nil
}

// RecordHeaders переводит заголовки в формат sarama, отсортированные по ключу.
func RecordHeaders(headers map[string]string) []sarama.RecordHeader {
	if len(headers) == 0 {
		return nil
	}
	out := make([]sarama.RecordHeader, 0, len(headers))
	for k, v := range headers {
		out = append(out, sarama.RecordHeader{Key: []byte(k), Value: []byte(v)})
	}
	slices.SortFunc(out, func(a, b sarama.RecordHeader) int {
		return slices.Compare(a.Key, b.Key)
	})
	return out
}

func (p *Producer) Close() error {
	if err := p.sync.Close(); err != nil {
		return fmt.Errorf("close kafka producer: %w", err)
	}
	return nil
}
