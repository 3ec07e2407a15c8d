package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"

	"github.com/vladislavdragonenkov/catalog/internal/audit"
	"github.com/vladislavdragonenkov/catalog/internal/domain"
)

// OutboxTopicPublisher публикует outbox-сообщения в заданный Kafka topic.
type OutboxTopicPublisher struct {
	producer *Producer
	topic    string
	raw      bool
}

// NewOutboxPublisher создаёт Kafka-паблишер событий аудита, оборачивая payload в AuditEnvelope.
func NewOutboxPublisher(producer *Producer, topic string) *OutboxTopicPublisher {
	if topic == "" {
		topic = TopicAuditEvents
	}
	return &OutboxTopicPublisher{
		producer: producer,
		topic:    topic,
	}
}

// NewDLQPublisher создаёт паблишер, который отправляет payload без конверта: outbox worker уже упаковал его.
func NewDLQPublisher(producer *Producer, topic string) *OutboxTopicPublisher {
	if topic == "" {
		topic = TopicDeadLetterQueue
	}
	return &OutboxTopicPublisher{
		producer: producer,
		topic:    topic,
		raw:      true,
	}
}

// Topic возвращает целевой топик.
func (p *OutboxTopicPublisher) Topic() string {
	return p.topic
}

func (p *OutboxTopicPublisher) Publish(ctx context.Context, event domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return fmt.Errorf("kafka outbox publisher is not initialized")
	}

	key := event.AggregateID
	if key == "" {
		key = event.ID
	}
	headers := []sarama.RecordHeader{
		{Key: []byte(HeaderEventType), Value: []byte(event.EventType)},
		{Key: []byte(HeaderStandard), Value: []byte(audit.Standard)},
	}

	if p.raw {
		return p.producer.PublishRaw(ctx, p.topic, key, event.Payload, headers...)
	}

	envelope := AuditEnvelope{
		ID:            event.ID,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		EventType:     event.EventType,
		Payload:       json.RawMessage(event.Payload),
		PublishedAt:   time.Now().UTC(),
	}

	return p.producer.PublishEvent(ctx, p.topic, key, envelope, headers...)
}

var _ domain.OutboxPublisher = (*OutboxTopicPublisher)(nil)
