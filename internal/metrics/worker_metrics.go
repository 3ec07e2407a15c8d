package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OutboxMetrics — метрики доставки событий аудита из outbox.
type OutboxMetrics struct {
	attempts     *prometheus.CounterVec
	deadLettered *prometheus.CounterVec
	pending      prometheus.Gauge
	oldestAge    prometheus.Gauge
}

// NewOutboxMetricsWithRegisterer регистрирует метрики outbox worker; nil означает DefaultRegisterer.
func NewOutboxMetricsWithRegisterer(registerer prometheus.Registerer) *OutboxMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &OutboxMetrics{
		attempts: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "catalog_outbox_publish_attempts_total",
			Help: "Outbox publish attempts grouped by audit event kind and result",
		}, []string{"event_kind", "result"}),
		deadLettered: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "catalog_outbox_dead_lettered_total",
			Help: "Outbox records moved to the DLQ grouped by audit event kind and reason",
		}, []string{"event_kind", "reason"}),
		pending: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "catalog_outbox_pending_records",
			Help: "Outbox records waiting for delivery",
		}),
		oldestAge: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "catalog_outbox_oldest_pending_age_seconds",
			Help: "Age of the oldest undelivered outbox record",
		}),
	}
}

func (m *OutboxMetrics) RecordPublishAttempt(kind, result string) {
	m.attempts.WithLabelValues(kind, result).Inc()
}

func (m *OutboxMetrics) RecordDeadLettered(kind, reason string) {
	m.deadLettered.WithLabelValues(kind, reason).Inc()
}

// SetBacklog обновляет размер очереди и возраст самой старой записи.
func (m *OutboxMetrics) SetBacklog(pending int, oldestAge time.Duration) {
	m.pending.Set(float64(pending))
	m.oldestAge.Set(oldestAge.Seconds())
}

// IdempotencyMetrics — метрики очистки ключей идемпотентности.
type IdempotencyMetrics struct {
	runs        *prometheus.CounterVec
	deleted     prometheus.Counter
	lastDeleted prometheus.Gauge
	lastRun     prometheus.Gauge
}

// NewIdempotencyMetricsWithRegisterer регистрирует метрики cleanup worker; nil означает DefaultRegisterer.
func NewIdempotencyMetricsWithRegisterer(registerer prometheus.Registerer) *IdempotencyMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &IdempotencyMetrics{
		runs: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "catalog_idempotency_cleanup_runs_total",
			Help: "Idempotency cleanup runs grouped by result",
		}, []string{"result"}),
		deleted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "catalog_idempotency_cleanup_deleted_total",
			Help: "Expired idempotency records deleted",
		}),
		lastDeleted: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "catalog_idempotency_cleanup_last_deleted",
			Help: "Records deleted during the last successful cleanup run",
		}),
		lastRun: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "catalog_idempotency_cleanup_last_run_timestamp_seconds",
			Help: "Unix time of the last successful cleanup run",
		}),
	}
}

func (m *IdempotencyMetrics) RecordDeleted(n int) {
	m.deleted.Add(float64(n))
}

func (m *IdempotencyMetrics) RecordCleanupFailed() {
	m.runs.WithLabelValues("error").Inc()
}

// RecordCleanupFinished учитывает успешный прогон, завершившийся в at.
func (m *IdempotencyMetrics) RecordCleanupFinished(deleted int, at time.Time) {
	m.runs.WithLabelValues("ok").Inc()
	m.lastDeleted.Set(float64(deleted))
	m.lastRun.Set(float64(at.Unix()))
}
