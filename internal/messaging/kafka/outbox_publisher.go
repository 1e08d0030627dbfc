package kafka

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/crm/internal/domain"
)

var errPublisherNotInitialized = errors.New("kafka outbox publisher is not initialized")

// OutboxTopicPublisher публикует события outbox в один topic: crm.events
// для рабочего потока или crm.dlq для отказов.
type OutboxTopicPublisher struct {
	producer *Producer
	topic    string
}

// NewOutboxPublisher создаёт publisher; пустой topic означает crm.events.
func NewOutboxPublisher(producer *Producer, topic string) *OutboxTopicPublisher {
	if topic == "" {
		topic = TopicCRMEvents
	}
	return &OutboxTopicPublisher{producer: producer, topic: topic}
}

func (p *OutboxTopicPublisher) Topic() string { return p.topic }

// Publish оборачивает событие в Envelope. Ключ сообщения — id агрегата,
// поэтому события одного клиента или заказа сохраняют порядок.
func (p *OutboxTopicPublisher) Publish(event domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return errPublisherNotInitialized
	}
	if _, ok := domain.EventAggregate(event.EventType); !ok {
		return fmt.Errorf("%w: unknown event type %q", domain.ErrOutboxPublish, event.EventType)
	}

	envelope := NewEnvelope(event, p.producer.now())
	value, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal %s envelope: %w", event.EventType, err)
	}
	return p.producer.Send(p.topic, envelope.Key(), value, envelope.Headers())
}

var _ domain.OutboxPublisher = (*OutboxTopicPublisher)(nil)
