package main

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/crm/internal/messaging/kafka"
)

// tally — итог просмотра DLQ; replayed считается по типам событий.
type tally struct {
	scanned  int
	skipped  int
	replayed map[string]int
}

func (t *tally) merge(other tally) {
	t.scanned += other.scanned
	t.skipped += other.skipped
	for eventType, n := range other.replayed {
		t.count(eventType, n)
	}
}

func (t *tally) count(eventType string, n int) {
	if t.replayed == nil {
		t.replayed = make(map[string]int)
	}
	t.replayed[eventType] += n
}

func (t tally) replayedTotal() int {
	total := 0
	for _, n := range t.replayed {
		total += n
	}
	return total
}

type replayer struct {
	cfg     config
	offsets offsetClient
	source  partitionConsumerSource
	sink    replayProducer
	logger  *log.Entry
	now     func() time.Time
}

func run(ctx context.Context, cfg config) error {
	logger := log.WithFields(log.Fields{
		"source_topic": cfg.sourceTopic,
		"target_topic": cfg.targetTopic,
		"mode":         cfg.mode(),
	})
	logger.WithFields(log.Fields{
		"limit":       cfg.limit,
		"from_newest": cfg.fromNewest,
		"event_types": cfg.eventTypes,
		"aggregates":  cfg.aggregates,
	}).Info("starting dlq replay")

	offsets, source, sink, err := newReplayDependencies(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if sink != nil {
			_ = sink.Close()
		}
		if source != nil {
			_ = source.Close()
		}
		if offsets != nil {
			_ = offsets.Close()
		}
	}()

	r := &replayer{cfg: cfg, offsets: offsets, source: source, sink: sink, logger: logger, now: time.Now}
	_, err = r.replayAll(ctx)
	return err
}

// replayAll обходит партиции DLQ по возрастанию номера, пока не исчерпан лимит.
func (r *replayer) replayAll(ctx context.Context) (tally, error) {
	var total tally
	if r.offsets == nil || r.source == nil {
		return total, errors.New("kafka client and consumer are required")
	}
	if r.cfg.execute && r.sink == nil {
		return total, errors.New("producer is required in execute mode")
	}

	partitions, err := r.offsets.Partitions(r.cfg.sourceTopic)
	if err != nil {
		return total, fmt.Errorf("get partitions for topic %s: %w", r.cfg.sourceTopic, err)
	}
	slices.Sort(partitions)

	for _, partition := range partitions {
		budget := r.cfg.limit - total.scanned
		if budget <= 0 {
			break
		}
		got, err := r.drain(ctx, partition, budget)
		total.merge(got)
		if err != nil {
			return total, err
		}
	}

	fields := log.Fields{"scanned": total.scanned, "skipped": total.skipped, "replayed": total.replayedTotal()}
	for eventType, n := range total.replayed {
		fields["replayed_"+eventType] = n
	}
	r.logger.WithFields(fields).Info("dlq replay finished")
	return total, nil
}

// drain читает партицию от начального offset до high-water mark на момент старта.
func (r *replayer) drain(ctx context.Context, partition int32, budget int) (tally, error) {
	var t tally

	oldest, err := r.offsets.GetOffset(r.cfg.sourceTopic, partition, sarama.OffsetOldest)
	if err != nil {
		return t, fmt.Errorf("get oldest offset for partition %d: %w", partition, err)
	}
	end, err := r.offsets.GetOffset(r.cfg.sourceTopic, partition, sarama.OffsetNewest)
	if err != nil {
		return t, fmt.Errorf("get newest offset for partition %d: %w", partition, err)
	}
	if end <= oldest {
		return t, nil
	}
	start := oldest
	if r.cfg.fromNewest {
		start = max(oldest, end-int64(budget))
	}

	pc, err := r.source.ConsumePartition(r.cfg.sourceTopic, partition, start)
	if err != nil {
		return t, fmt.Errorf("consume partition %d: %w", partition, err)
	}
	defer func() { _ = pc.Close() }()

	idle := time.NewTimer(r.cfg.idleTimeout)
	defer idle.Stop()

	for t.scanned < budget {
		select {
		case <-ctx.Done():
			return t, ctx.Err()
		case <-idle.C:
			return t, nil
		case cerr := <-pc.Errors():
			if cerr != nil {
				return t, fmt.Errorf("partition %d consumer error: %w", partition, cerr)
			}
		case msg, ok := <-pc.Messages():
			if !ok || msg == nil || msg.Offset >= end {
				return t, nil
			}
			idle.Reset(r.cfg.idleTimeout)

			t.scanned++
			if err := r.handle(msg, &t); err != nil {
				return t, err
			}
			if msg.Offset+1 >= end {
				return t, nil
			}
		}
	}
	return t, nil
}

// handle переигрывает одно сообщение DLQ. Ошибкой считается только сбой публикации.
func (r *replayer) handle(msg *sarama.ConsumerMessage, t *tally) error {
	logger := r.logger.WithFields(log.Fields{"partition": msg.Partition, "offset": msg.Offset})

	event, err := decodeDeadLetter(msg.Value)
	if err != nil {
		t.skipped++
		if !errors.Is(err, errNotDeadLetter) {
			logger.WithError(err).Warn("skip unsupported dlq message")
		}
		return nil
	}
	if !r.cfg.wants(event) {
		t.skipped++
		return nil
	}

	replay, err := newReplayMessage(event, r.cfg.targetTopic, r.now().UTC())
	if err != nil {
		t.skipped++
		logger.WithError(err).Warn("skip dlq message")
		return nil
	}

	logger = logger.WithFields(log.Fields{"event_type": event.EventType, "aggregate_id": event.AggregateID})
	if !r.cfg.execute {
		logger.Info("dlq replay candidate")
		t.count(event.EventType, 1)
		return nil
	}
	if err := publishReplay(r.sink, replay); err != nil {
		return fmt.Errorf("replay %s %s: %w", event.EventType, event.AggregateID, err)
	}
	logger.Debug("dlq message replayed")
	t.count(event.EventType, 1)
	return nil
}

func publishReplay(producer replayProducer, msg replayMessage) error {
	if producer == nil {
		return errors.New("producer is nil")
	}
	_, _, err := producer.SendMessage(&sarama.ProducerMessage{
		Topic:     msg.topic,
		Key:       sarama.StringEncoder(msg.key),
		Value:     sarama.ByteEncoder(msg.value),
		Headers:   kafka.RecordHeaders(msg.headers),
		Timestamp: time.Now().UTC(),
	})
	return err
}
