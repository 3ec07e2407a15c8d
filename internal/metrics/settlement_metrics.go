package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SettlementMetrics содержит метрики расчётов и мутаций каталога.
type SettlementMetrics struct {
	started   *prometheus.CounterVec
	completed *prometheus.CounterVec
	failed    *prometheus.CounterVec

	compensations          prometheus.Counter
	asyncTransferFailures  prometheus.Counter
	settlementDuration     *prometheus.HistogramVec
	stepDuration           *prometheus.HistogramVec
	inFlight               prometheus.Gauge
	asyncTransfersInFlight prometheus.Gauge

	timelineEvents   prometheus.Counter
	auditEvents      *prometheus.CounterVec
	catalogMutations *prometheus.CounterVec
	rateLimited      *prometheus.CounterVec
}

// NewSettlementMetrics регистрирует метрики в prometheus.DefaultRegisterer.
func NewSettlementMetrics() *SettlementMetrics {
	return NewSettlementMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewSettlementMetricsWithRegisterer регистрирует метрики в переданном registerer (изолированные тесты).
func NewSettlementMetricsWithRegisterer(registerer prometheus.Registerer) *SettlementMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &SettlementMetrics{
		started: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "catalog_settlements_started_total",
			Help: "Total number of settlements started",
		}, []string{"kind"}),
		completed: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "catalog_settlements_completed_total",
			Help: "Total number of settlements completed successfully",
		}, []string{"kind", "mode"}),
		failed: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "catalog_settlements_failed_total",
			Help: "Total number of settlements failed",
		}, []string{"kind", "reason"}),
		compensations: registerCounter(registerer, prometheus.CounterOpts{
			Name: "catalog_settlement_compensations_total",
			Help: "Total number of supply or ownership rollbacks after transfer failure",
		}),
		asyncTransferFailures: registerCounter(registerer, prometheus.CounterOpts{
			Name: "catalog_async_transfer_failures_total",
			Help: "Total number of fire-and-forget transfers that failed after the purchase was recorded",
		}),
		settlementDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "catalog_settlement_duration_seconds",
			Help:    "Duration of settlements in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
		stepDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "catalog_settlement_step_duration_seconds",
			Help:    "Duration of individual settlement steps in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"step"}),
		inFlight: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "catalog_settlements_in_flight",
			Help: "Number of settlements currently executing",
		}),
		asyncTransfersInFlight: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "catalog_async_transfers_in_flight",
			Help: "Number of fire-and-forget transfers not yet finished",
		}),
		timelineEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "catalog_timeline_events_total",
			Help: "Total number of timeline events recorded",
		}),
		auditEvents: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "catalog_audit_events_total",
			Help: "Total number of audit events emitted",
		}, []string{"event"}),
		catalogMutations: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "catalog_mutations_total",
			Help: "Total number of catalog mutations by operation and outcome",
		}, []string{"operation", "outcome"}),
		rateLimited: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "catalog_rate_limited_total",
			Help: "Total number of calls rejected by the per-caller rate limiter",
		}, []string{"method"}),
	}
}

// RecordSettlementStarted увеличивает счётчик начатых расчётов и число активных.
func (m *SettlementMetrics) RecordSettlementStarted(kind string) {
	m.started.WithLabelValues(kind).Inc()
	m.inFlight.Inc()
}

// RecordSettlementFinished уменьшает число активных расчётов и пишет длительность.
func (m *SettlementMetrics) RecordSettlementFinished(kind string, duration time.Duration) {
	m.inFlight.Dec()
	m.settlementDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

func (m *SettlementMetrics) RecordSettlementCompleted(kind, mode string) {
	m.completed.WithLabelValues(kind, mode).Inc()
}

func (m *SettlementMetrics) RecordSettlementFailed(kind, reason string) {
	m.failed.WithLabelValues(kind, reason).Inc()
}

func (m *SettlementMetrics) RecordCompensation() {
	m.compensations.Inc()
}

func (m *SettlementMetrics) RecordAsyncTransferStarted() {
	m.asyncTransfersInFlight.Inc()
}

// RecordAsyncTransferFinished уменьшает gauge и учитывает неудачу, если failed.
func (m *SettlementMetrics) RecordAsyncTransferFinished(failed bool) {
	m.asyncTransfersInFlight.Dec()
	if failed {
		m.asyncTransferFailures.Inc()
	}
}

// RecordStepDuration записывает время выполнения шага расчёта.
func (m *SettlementMetrics) RecordStepDuration(step string, duration time.Duration) {
	m.stepDuration.WithLabelValues(step).Observe(duration.Seconds())
}

func (m *SettlementMetrics) RecordTimelineEvent() {
	m.timelineEvents.Inc()
}

func (m *SettlementMetrics) RecordAuditEvent(event string) {
	m.auditEvents.WithLabelValues(event).Inc()
}

// RecordCatalogMutation учитывает создание или изменение сущности каталога.
func (m *SettlementMetrics) RecordCatalogMutation(operation string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.catalogMutations.WithLabelValues(operation, outcome).Inc()
}

func (m *SettlementMetrics) RecordRateLimited(method string) {
	m.rateLimited.WithLabelValues(method).Inc()
}
