package audit

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/catalog/internal/domain"
)

// Sink принимает события аудита. Пути отказа нет: ошибки логируются внутри реализации.
type Sink interface {
	Emit(ctx context.Context, aggregateType, aggregateID string, event EventLog)
}

// LogSink пишет строку EVENT_JSON в лог как есть.
type LogSink struct {
	logger *log.Entry
}

// NewLogSink создаёт sink поверх logrus.
func NewLogSink(logger *log.Entry) *LogSink {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &LogSink{logger: logger.WithField("component", "audit")}
}

func (s *LogSink) Emit(_ context.Context, _, _ string, event EventLog) {
	s.logger.Info(event.String())
}

// OutboxSink сохраняет событие в transactional outbox для публикации в Kafka.
type OutboxSink struct {
	repo   domain.OutboxRepository
	logger *log.Entry
}

// NewOutboxSink создаёт sink, пишущий в outbox.
func NewOutboxSink(repo domain.OutboxRepository, logger *log.Entry) *OutboxSink {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &OutboxSink{repo: repo, logger: logger.WithField("component", "audit-outbox")}
}

func (s *OutboxSink) Emit(ctx context.Context, aggregateType, aggregateID string, event EventLog) {
	if s.repo == nil {
		return
	}
	msg := domain.OutboxMessage{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     string(event.Event),
		Payload:       event.JSON(),
	}
	if _, err := s.repo.Enqueue(ctx, msg); err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"aggregate_type": aggregateType,
			"aggregate_id":   aggregateID,
			"event":          event.Event,
		}).Error("не удалось сохранить событие аудита в outbox")
	}
}

// MultiSink рассылает событие во все вложенные sinks по порядку.
type MultiSink []Sink

func (m MultiSink) Emit(ctx context.Context, aggregateType, aggregateID string, event EventLog) {
	for _, sink := range m {
		if sink != nil {
			sink.Emit(ctx, aggregateType, aggregateID, event)
		}
	}
}

// MemorySink накапливает события в памяти; используется в тестах.
type MemorySink struct {
	events chan EventLog
}

// NewMemorySink создаёт sink с буфером на size событий.
func NewMemorySink(size int) *MemorySink {
	return &MemorySink{events: make(chan EventLog, size)}
}

func (m *MemorySink) Emit(_ context.Context, _, _ string, event EventLog) {
	select {
	case m.events <- event:
	default:
	}
}

// Drain возвращает накопленные события.
func (m *MemorySink) Drain() []EventLog {
	var out []EventLog
	for {
		select {
		case event := <-m.events:
			out = append(out, event)
		default:
			return out
		}
	}
}

var (
	_ Sink = (*LogSink)(nil)
	_ Sink = (*OutboxSink)(nil)
	_ Sink = MultiSink(nil)
	_ Sink = (*MemorySink)(nil)
)
