package memory

import (
	"errors"
	"testing"

	"github.com/vladislavdragonenkov/crm/internal/domain"
)

func TestOutboxRepository_EnqueueAndPull(t *testing.T) {
	repo := NewStore().Outbox()

	msg := domain.OutboxMessage{
		AggregateType: domain.AggregateCustomer,
		AggregateID:   "customer-1",
		EventType:     domain.EventCustomerCreated,
		Payload:       []byte(`{"name":"Alice"}`),
	}

	saved, err := repo.Enqueue(msg)
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	if saved.ID == "" {
		t.Fatal("expected generated id")
	}

	pending, err := repo.PullPending(10)
	if err != nil {
		t.Fatalf("pull pending failed: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending message, got %d", len(pending))
	}
	if pending[0].ID != saved.ID {
		t.Fatalf("expected same message id, got %s", pending[0].ID)
	}

	stats, err := repo.Stats()
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.PendingCount != 1 || stats.OldestPendingAt.IsZero() {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestOutboxRepository_MarkSentAndFailed(t *testing.T) {
	repo := NewStore().Outbox()

	saved, err := repo.Enqueue(domain.OutboxMessage{AggregateType: domain.AggregateOrder})
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	if err := repo.MarkSent(saved.ID); err != nil {
		t.Fatalf("mark sent failed: %v", err)
	}

	pending, err := repo.PullPending(10)
	if err != nil {
		t.Fatalf("pull pending failed: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected no pending messages after MarkSent, got %d", len(pending))
	}

	if err := repo.MarkFailed(saved.ID); !errors.Is(err, domain.ErrOutboxPublish) {
		t.Fatalf("expected settled event to stay sent, got %v", err)
	}

	failed, err := repo.Enqueue(domain.OutboxMessage{AggregateType: domain.AggregateCustomer, EventType: domain.EventCustomerCreated})
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	if err := repo.MarkFailed(failed.ID); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if err := repo.MarkSent(failed.ID); !errors.Is(err, domain.ErrOutboxPublish) {
		t.Fatalf("expected failed event to stay failed, got %v", err)
	}

	if err := repo.MarkFailed("missing"); err == nil {
		t.Fatal("expected error for missing record")
	}
}

func TestOutboxRepository_PullPendingRespectsLimit(t *testing.T) {
	repo := NewStore().Outbox()

	for i := 0; i < 5; i++ {
		if _, err := repo.Enqueue(domain.OutboxMessage{EventType: domain.EventProductCreated}); err != nil {
			t.Fatalf("enqueue failed: %v", err)
		}
	}

	pending, err := repo.PullPending(3)
	if err != nil {
		t.Fatalf("pull pending failed: %v", err)
	}
	if len(pending) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(pending))
	}
}
