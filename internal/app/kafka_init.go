package app

import (
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/catalog/internal/audit"
	"github.com/vladislavdragonenkov/catalog/internal/domain"
	"github.com/vladislavdragonenkov/catalog/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/catalog/internal/service/outbox"
)

// initKafkaProducer создаёт producer, если брокеры заданы.
// Возвращает nil, nil при пустом списке брокеров.
func initKafkaProducer(brokers []string, logger *log.Entry) (*kafka.Producer, error) {
	if len(brokers) == 0 {
		return nil, nil
	}

	producer, err := kafka.NewProducer(brokers)
	if err != nil {
		logger.WithError(err).Warn("failed to create kafka producer, continuing without kafka")
		return nil, err
	}

	logger.WithField("brokers", brokers).Info("kafka producer initialized")
	return producer, nil
}

// outboxPublishers собирает publishers outbox worker. Без producer Default равен nil и worker не запускается.
// KafkaOwnershipTopic, если задан, уводит ownership_transfer в отдельный топик.
func outboxPublishers(producer *kafka.Producer, cfg Config) outbox.Publishers {
	if producer == nil {
		return outbox.Publishers{}
	}
	publishers := outbox.Publishers{
		Default: kafka.NewOutboxPublisher(producer, cfg.KafkaAuditTopic),
		DLQ:     kafka.NewDLQPublisher(producer, cfg.KafkaDLQTopic),
	}
	if topic := cfg.KafkaOwnershipTopic; topic != "" && topic != cfg.KafkaAuditTopic {
		publishers.ByKind = map[audit.EventKind]domain.OutboxPublisher{
			audit.EventOwnershipTransfer: kafka.NewOutboxPublisher(producer, topic),
		}
	}
	return publishers
}

// closeKafka закрывает producer, если он не nil.
func closeKafka(producer *kafka.Producer, logger *log.Entry) {
	if producer == nil {
		return
	}

	if err := producer.Close(); err != nil {
		logger.WithError(err).Warn("failed to close kafka producer")
	} else {
		logger.Info("kafka producer closed")
	}
}
