// Package outbox доставляет события аудита из transactional outbox в Kafka.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/catalog/internal/audit"
	"github.com/vladislavdragonenkov/catalog/internal/domain"
	"github.com/vladislavdragonenkov/catalog/internal/metrics"
)

const (
	defaultPollInterval  = time.Second
	defaultBatchSize     = 100
	defaultMaxAttempts   = 3
	defaultRetryDelay    = 50 * time.Millisecond
	defaultMaxRetryDelay = 2 * time.Second

	// kindUnknown — метка для записей, payload которых не разобрался как событие аудита.
	kindUnknown = "unknown"
)

// Причины попадания записи в DLQ.
const (
	ReasonInvalidPayload = "invalid_payload"
	ReasonPublishFailed  = "publish_failed"
)

// WorkerConfig — параметры доставки. Нулевые значения заменяются значениями по умолчанию.
type WorkerConfig struct {
	PollInterval  time.Duration
	BatchSize     int
	MaxAttempts   int
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
}

func (c WorkerConfig) normalized() WorkerConfig {
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaultBatchSize
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
	if c.RetryDelay < 0 {
		c.RetryDelay = 0
	}
	if c.MaxRetryDelay <= 0 {
		c.MaxRetryDelay = defaultMaxRetryDelay
	}
	return c
}

// Publishers — куда уходят события. ByKind переопределяет Default для отдельных видов событий,
// DLQ получает записи, которые не удалось доставить; nil DLQ только помечает их failed.
type Publishers struct {
	Default domain.OutboxPublisher
	ByKind  map[audit.EventKind]domain.OutboxPublisher
	DLQ     domain.OutboxPublisher
}

func (p Publishers) route(kind audit.EventKind) domain.OutboxPublisher {
	if publisher, ok := p.ByKind[kind]; ok && publisher != nil {
		return publisher
	}
	return p.Default
}

// Worker публикует pending-события аудита. Payload проверяется как EVENT_JSON до публикации:
// битая запись сразу уходит в DLQ, без повторов.
type Worker struct {
	repo       domain.OutboxRepository
	publishers Publishers
	cfg        WorkerConfig
	metrics    *metrics.OutboxMetrics
	logger     *log.Entry
	now        func() time.Time
}

// NewWorker создаёт outbox worker. Nil metrics регистрируются в DefaultRegisterer.
func NewWorker(repo domain.OutboxRepository, publishers Publishers, cfg WorkerConfig, m *metrics.OutboxMetrics, logger *log.Entry) *Worker {
	if m == nil {
		m = metrics.NewOutboxMetricsWithRegisterer(nil)
	}
	if logger == nil {
		logger = log.WithField("component", "outbox")
	}
	return &Worker{
		repo:       repo,
		publishers: publishers,
		cfg:        cfg.normalized(),
		metrics:    m,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Run опрашивает outbox раз в PollInterval до отмены ctx.
func (w *Worker) Run(ctx context.Context) {
	if w.repo == nil || w.publishers.Default == nil {
		w.logger.Warn("outbox worker disabled: no repository or publisher")
		return
	}

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		w.ProcessOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// ProcessOnce доставляет одну порцию pending-записей.
func (w *Worker) ProcessOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	messages, err := w.repo.PullPending(ctx, w.cfg.BatchSize)
	if err != nil {
		w.logger.WithError(err).Warn("failed to pull pending outbox messages")
		return
	}

	for _, msg := range messages {
		if ctx.Err() != nil {
			break
		}
		w.deliver(ctx, msg)
	}

	w.refreshBacklog(ctx)
}

func (w *Worker) deliver(ctx context.Context, msg domain.OutboxMessage) {
	logger := w.logger.WithFields(log.Fields{
		"outbox_id":    msg.ID,
		"aggregate_id": msg.AggregateID,
	})

	event, err := audit.ParseJSON(msg.Payload)
	if err == nil && !event.Event.Known() {
		err = fmt.Errorf("unknown audit event kind %q", event.Event)
	}
	if err != nil {
		logger.WithError(err).Error("outbox payload is not an audit event")
		w.fail(ctx, msg, kindUnknown, ReasonInvalidPayload, err, logger)
		return
	}
	kind := string(event.Event)
	logger = logger.WithField("event_kind", kind)

	if err := w.publishWithRetry(ctx, w.publishers.route(event.Event), msg, kind); err != nil {
		if ctx.Err() != nil {
			return
		}
		logger.WithError(err).Error("outbox publish failed after retries")
		w.fail(ctx, msg, kind, ReasonPublishFailed, err, logger)
		return
	}

	if err := w.repo.MarkSent(ctx, msg.ID); err != nil {
		logger.WithError(err).Warn("failed to mark outbox message sent")
	}
}

func (w *Worker) publishWithRetry(ctx context.Context, publisher domain.OutboxPublisher, msg domain.OutboxMessage, kind string) error {
	var lastErr error
	for attempt := 1; attempt <= w.cfg.MaxAttempts; attempt++ {
		if lastErr = publisher.Publish(ctx, msg); lastErr == nil {
			w.metrics.RecordPublishAttempt(kind, "sent")
			return nil
		}
		w.metrics.RecordPublishAttempt(kind, "error")

		if attempt == w.cfg.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(w.retryBackoff(attempt)):
		}
	}
	return fmt.Errorf("publish failed after %d attempts: %w", w.cfg.MaxAttempts, lastErr)
}

// retryBackoff удваивает RetryDelay с каждой попыткой, не превышая MaxRetryDelay.
func (w *Worker) retryBackoff(attempt int) time.Duration {
	delay := w.cfg.RetryDelay
	for i := 1; i < attempt && delay < w.cfg.MaxRetryDelay; i++ {
		delay *= 2
	}
	return min(delay, w.cfg.MaxRetryDelay)
}

func (w *Worker) fail(ctx context.Context, msg domain.OutboxMessage, kind, reason string, cause error, logger *log.Entry) {
	if err := w.publishToDLQ(ctx, msg, kind, reason, cause); err != nil {
		logger.WithError(err).Warn("failed to publish outbox message to DLQ")
		w.metrics.RecordPublishAttempt(kind, "dlq_failed")
	}
	if err := w.repo.MarkFailed(ctx, msg.ID); err != nil {
		logger.WithError(err).Warn("failed to mark outbox message failed")
	}
}

func (w *Worker) refreshBacklog(ctx context.Context) {
	stats, err := w.repo.Stats(ctx)
	if err != nil {
		w.logger.WithError(err).Warn("failed to collect outbox backlog stats")
		return
	}

	var age time.Duration
	if stats.PendingCount > 0 && !stats.OldestPendingAt.IsZero() {
		age = max(w.now().Sub(stats.OldestPendingAt), 0)
	}
	w.metrics.SetBacklog(stats.PendingCount, age)
}

// DeadLetter — сообщение в DLQ-топике. Payload хранит исходный EVENT_JSON, если он валидный JSON,
// иначе байты записи лежат в RawPayload.
type DeadLetter struct {
	OutboxID       string          `json:"outbox_id"`
	AggregateType  string          `json:"aggregate_type"`
	AggregateID    string          `json:"aggregate_id"`
	EventType      string          `json:"event_type"`
	EventKind      string          `json:"event_kind"`
	Reason         string          `json:"reason"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	RawPayload     []byte          `json:"raw_payload,omitempty"`
	PublishError   string          `json:"publish_error"`
	DLQPublishedAt time.Time       `json:"dlq_published_at"`
}

func (w *Worker) publishToDLQ(ctx context.Context, msg domain.OutboxMessage, kind, reason string, cause error) error {
	if w.publishers.DLQ == nil {
		return nil
	}

	letter := DeadLetter{
		OutboxID:       msg.ID,
		AggregateType:  msg.AggregateType,
		AggregateID:    msg.AggregateID,
		EventType:      msg.EventType,
		EventKind:      kind,
		Reason:         reason,
		PublishError:   cause.Error(),
		DLQPublishedAt: w.now(),
	}
	if json.Valid(msg.Payload) {
		letter.Payload = json.RawMessage(msg.Payload)
	} else {
		letter.RawPayload = msg.Payload
	}

	payload, err := json.Marshal(letter)
	if err != nil {
		return fmt.Errorf("marshal dead letter: %w", err)
	}

	dlqMsg := msg
	dlqMsg.Payload = payload
	if err := w.publishers.DLQ.Publish(ctx, dlqMsg); err != nil {
		return fmt.Errorf("publish to dlq: %w", err)
	}
	w.metrics.RecordDeadLettered(kind, reason)
	return nil
}
