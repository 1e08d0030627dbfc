package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestOutboxMetrics(t *testing.T) {
	m := NewOutboxMetrics(prometheus.NewRegistry())

	m.RecordPublish(PublishSent)
	m.RecordPublish(PublishSent)
	m.RecordPublish(PublishDLQ)
	m.SetBacklog(4, -time.Second)

	if got := testutil.ToFloat64(m.attempts.WithLabelValues(PublishSent)); got != 2 {
		t.Fatalf("expected 2 sent attempts, got %v", got)
	}
	if got := testutil.ToFloat64(m.attempts.WithLabelValues(PublishDLQ)); got != 1 {
		t.Fatalf("expected 1 dlq attempt, got %v", got)
	}
	if got := testutil.ToFloat64(m.pending); got != 4 {
		t.Fatalf("expected pending=4, got %v", got)
	}
	if got := testutil.ToFloat64(m.oldestPendingAge); got != 0 {
		t.Fatalf("negative age must be clamped to 0, got %v", got)
	}
}

func TestCleanupMetrics(t *testing.T) {
	m := NewCleanupMetrics(prometheus.NewRegistry())

	m.RecordRun(3, nil)
	m.RecordRun(0, errors.New("boom"))

	if got := testutil.ToFloat64(m.deleted); got != 3 {
		t.Fatalf("expected deleted=3, got %v", got)
	}
	if got := testutil.ToFloat64(m.lastDeleted); got != 3 {
		t.Fatalf("expected last deleted=3, got %v", got)
	}
	if got := testutil.ToFloat64(m.runs.WithLabelValues(ResultFailure)); got != 1 {
		t.Fatalf("expected 1 failed run, got %v", got)
	}
}

func TestWorkerMetricsNilSafe(t *testing.T) {
	var outbox *OutboxMetrics
	var cleanup *CleanupMetrics

	outbox.RecordPublish(PublishSent)
	outbox.SetBacklog(1, time.Second)
	cleanup.RecordRun(1, nil)
}

func TestWorkerMetricsReuseRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := NewOutboxMetrics(reg)
	second := NewOutboxMetrics(reg)

	first.RecordPublish(PublishFailed)
	if got := testutil.ToFloat64(second.attempts.WithLabelValues(PublishFailed)); got != 1 {
		t.Fatalf("second instance must share collectors, got %v", got)
	}
}
