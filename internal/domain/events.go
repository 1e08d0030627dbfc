package domain

import (
	"encoding/json"
	"time"
)

// Агрегаты CRM, от имени которых пишутся события.
const (
	AggregateCustomer = "customer"
	AggregateProduct  = "product"
	AggregateOrder    = "order"
)

// Типы событий CRM.
const (
	EventCustomerCreated  = "customer.created"
	EventProductCreated   = "product.created"
	EventProductRestocked = "product.restocked"
	EventOrderCreated     = "order.created"
)

var eventAggregates = map[string]string{
	EventCustomerCreated:  AggregateCustomer,
	EventProductCreated:   AggregateProduct,
	EventProductRestocked: AggregateProduct,
	EventOrderCreated:     AggregateOrder,
}

// EventAggregate возвращает агрегат, которому принадлежит тип события.
// ok=false для типа, который CRM не публикует.
func EventAggregate(eventType string) (aggregate string, ok bool) {
	aggregate, ok = eventAggregates[eventType]
	return aggregate, ok
}

// OutboxPublisher — транспорт событий CRM (Kafka, лог). Повторная доставка
// одного события допустима: потребители различают их по ID.
type OutboxPublisher interface {
	Publish(event OutboxMessage) error
}

// OutboxMessage — событие в outbox.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats — размер backlog и возраст самого старого pending-события.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}

// DeadLetter — тело сообщения DLQ: исходное событие и причина, по которой
// его не удалось опубликовать.
type DeadLetter struct {
	OutboxID      string          `json:"outbox_id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PublishError  string          `json:"publish_error"`
	FailedAt      time.Time       `json:"failed_at"`
}

// NewDeadLetter фиксирует отказ публикации события.
func NewDeadLetter(event OutboxMessage, publishErr error, failedAt time.Time) DeadLetter {
	letter := DeadLetter{
		OutboxID:      event.ID,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		EventType:     event.EventType,
		Payload:       json.RawMessage(event.Payload),
		FailedAt:      failedAt,
	}
	if publishErr != nil {
		letter.PublishError = publishErr.Error()
	}
	return letter
}

// Event восстанавливает исходное событие для повторной публикации.
func (d DeadLetter) Event() OutboxMessage {
	return OutboxMessage{
		ID:            d.OutboxID,
		AggregateType: d.AggregateType,
		AggregateID:   d.AggregateID,
		EventType:     d.EventType,
		Payload:       []byte(d.Payload),
	}
}
