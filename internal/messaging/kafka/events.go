package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"

	"github.com/vladislavdragonenkov/catalog/internal/audit"
)

// Topics для Kafka
const (
	TopicAuditEvents     = "catalog.audit.events"
	TopicDeadLetterQueue = "catalog.audit.dlq" // Dead Letter Queue для failed messages
)

// Kafka headers для retry логики и маршрутизации
const (
	HeaderRetryCount    = "x-retry-count"
	HeaderOriginalTopic = "x-original-topic"
	HeaderErrorMessage  = "x-error-message"
	HeaderFailedAt      = "x-failed-at"
	HeaderEventType     = "x-event-type"
	HeaderStandard      = "x-audit-standard"
)

// AuditEnvelope — сообщение в топике аудита: метаданные outbox и исходная запись EVENT_JSON.
type AuditEnvelope struct {
	ID            string          `json:"id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PublishedAt   time.Time       `json:"published_at"`
}

// Event разбирает вложенную запись аудита.
func (e AuditEnvelope) Event() (audit.EventLog, error) {
	return audit.ParseJSON(e.Payload)
}

// DeadLetter — сообщение, которое consumer не смог обработать.
type DeadLetter struct {
	OriginalTopic     string    `json:"original_topic"`
	OriginalPartition int32     `json:"original_partition"`
	OriginalOffset    int64     `json:"original_offset"`
	OriginalKey       string    `json:"original_key"`
	OriginalValue     string    `json:"original_value"`
	ErrorMessage      string    `json:"error_message"`
	FailedAt          time.Time `json:"failed_at"`
	RetryCount        int       `json:"retry_count"`
}

// ParseAuditEnvelope парсит конверт и запись аудита из сообщения
func ParseAuditEnvelope(message *sarama.ConsumerMessage) (AuditEnvelope, audit.EventLog, error) {
	var envelope AuditEnvelope
	if err := json.Unmarshal(message.Value, &envelope); err != nil {
		return AuditEnvelope{}, audit.EventLog{}, fmt.Errorf("failed to unmarshal audit envelope: %w", err)
	}
	event, err := envelope.Event()
	if err != nil {
		return envelope, audit.EventLog{}, fmt.Errorf("failed to parse audit payload: %w", err)
	}
	return envelope, event, nil
}

func headerValue(headers []*sarama.RecordHeader, key string) (string, bool) {
	for _, header := range headers {
		if header != nil && string(header.Key) == key {
			return string(header.Value), true
		}
	}
	return "", false
}
