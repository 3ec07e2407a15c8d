package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestOutboxMetrics_LabelsByEventKind(t *testing.T) {
	m := NewOutboxMetricsWithRegisterer(prometheus.NewRegistry())

	m.RecordPublishAttempt("Purchase", "ok")
	m.RecordPublishAttempt("Purchase", "ok")
	m.RecordDeadLettered("unknown", "invalid_payload")
	m.SetBacklog(3, 90*time.Second)

	if got := testutil.ToFloat64(m.attempts.WithLabelValues("Purchase", "ok")); got != 2 {
		t.Fatalf("expected 2 ok attempts, got %f", got)
	}
	if got := testutil.ToFloat64(m.deadLettered.WithLabelValues("unknown", "invalid_payload")); got != 1 {
		t.Fatalf("expected 1 dead-lettered record, got %f", got)
	}
	if got := testutil.ToFloat64(m.oldestAge); got != 90 {
		t.Fatalf("expected oldest age 90s, got %f", got)
	}
}

func TestIdempotencyMetrics_CleanupRun(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewIdempotencyMetricsWithRegisterer(reg)
	again := NewIdempotencyMetricsWithRegisterer(reg)

	at := time.Unix(1_700_000_000, 0)
	m.RecordDeleted(4)
	again.RecordDeleted(1)
	m.RecordCleanupFinished(5, at)
	m.RecordCleanupFailed()

	if got := testutil.ToFloat64(m.deleted); got != 5 {
		t.Fatalf("expected shared deleted counter = 5, got %f", got)
	}
	if got := testutil.ToFloat64(m.lastRun); got != float64(at.Unix()) {
		t.Fatalf("unexpected last run %f", got)
	}
	if got := testutil.ToFloat64(m.runs.WithLabelValues("error")); got != 1 {
		t.Fatalf("expected 1 failed run, got %f", got)
	}
}
