package main

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/crm/internal/domain"
	"github.com/vladislavdragonenkov/crm/internal/messaging/kafka"
)

// errNotDeadLetter — сообщение в DLQ не является конвертом outbox worker.
var errNotDeadLetter = errors.New("message is not an outbox dead letter")

// replayMessage — событие, готовое к повторной публикации.
type replayMessage struct {
	event   domain.OutboxMessage
	topic   string
	key     string
	value   []byte
	headers map[string]string
}

// decodeDeadLetter достаёт исходное событие CRM из сообщения DLQ.
// Поля конверта дополняют пустые поля domain.DeadLetter.
func decodeDeadLetter(value []byte) (domain.OutboxMessage, error) {
	var envelope kafka.Envelope
	if err := json.Unmarshal(value, &envelope); err != nil {
		return domain.OutboxMessage{}, errNotDeadLetter
	}
	if len(envelope.Payload) == 0 || string(envelope.Payload) == "null" {
		return domain.OutboxMessage{}, errNotDeadLetter
	}

	var letter domain.DeadLetter
	if err := json.Unmarshal(envelope.Payload, &letter); err != nil {
		return domain.OutboxMessage{}, fmt.Errorf("decode dead letter: %w", err)
	}
	if len(letter.Payload) == 0 {
		return domain.OutboxMessage{}, fmt.Errorf("dead letter for %s has no original payload", cmp.Or(letter.OutboxID, envelope.ID))
	}

	event := letter.Event()
	event.ID = cmp.Or(event.ID, envelope.ID)
	event.AggregateType = cmp.Or(event.AggregateType, envelope.AggregateType)
	event.AggregateID = cmp.Or(event.AggregateID, envelope.AggregateID)
	event.EventType = cmp.Or(event.EventType, envelope.EventType)

	aggregate, ok := domain.EventAggregate(event.EventType)
	if !ok {
		return domain.OutboxMessage{}, fmt.Errorf("unknown event type %q", event.EventType)
	}
	event.AggregateType = cmp.Or(event.AggregateType, aggregate)
	return event, nil
}

// newReplayMessage упаковывает событие в тот же конверт, что и outbox publisher.
func newReplayMessage(event domain.OutboxMessage, topic string, now time.Time) (replayMessage, error) {
	envelope := kafka.NewEnvelope(event, now)
	value, err := json.Marshal(envelope)
	if err != nil {
		return replayMessage{}, fmt.Errorf("encode replay envelope: %w", err)
	}
	return replayMessage{
		event:   event,
		topic:   topic,
		key:     envelope.Key(),
		value:   value,
		headers: envelope.Headers(),
	}, nil
}
