// Command audit-consumer читает записи аудита из Kafka и пишет их в лог строками EVENT_JSON.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/catalog/internal/audit"
	"github.com/vladislavdragonenkov/catalog/internal/messaging/kafka"
)

const defaultGroupID = "catalog-audit-consumer"

type consumerConfig struct {
	brokers    []string
	groupID    string
	topic      string
	dlqTopic   string
	maxRetries int
}

func main() {
	log.SetFormatter(&log.JSONFormatter{})
	logger := log.WithField("component", "audit-consumer")

	cfg, err := readConfig(os.LookupEnv)
	if err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Fatal("audit consumer failed")
	}
}

func run(ctx context.Context, cfg consumerConfig, logger *log.Entry) error {
	dlq, err := kafka.NewProducer(cfg.brokers)
	if err != nil {
		return err
	}
	defer func() { _ = dlq.Close() }()

	consumer, err := kafka.NewConsumerWithDLQ(cfg.brokers, cfg.groupID, []string{cfg.topic}, kafka.HandleAudit(newAuditHandler(logger)), dlq, cfg.maxRetries)
	if err != nil {
		return err
	}
	consumer.WithDLQTopic(cfg.dlqTopic).WithLogger(logger.WithField("topic", cfg.topic))

	if err := consumer.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	logger.Info("shutting down audit consumer")
	return consumer.Stop()
}

// newAuditHandler пишет каждое событие в лог в том же формате, что и LogSink сервиса.
func newAuditHandler(logger *log.Entry) kafka.AuditHandler {
	return func(_ context.Context, envelope kafka.AuditEnvelope, event audit.EventLog) error {
		if len(event.Data) == 0 {
			return errors.New("audit event has no records")
		}
		logger.WithFields(log.Fields{
			"outbox_id":    envelope.ID,
			"aggregate_id": envelope.AggregateID,
			"event":        event.Event,
		}).Info(event.String())
		return nil
	}
}

func readConfig(lookup func(string) (string, bool)) (consumerConfig, error) {
	get := func(key, fallback string) string {
		if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
		return fallback
	}

	cfg := consumerConfig{
		groupID:    get("CATALOG_AUDIT_CONSUMER_GROUP", defaultGroupID),
		topic:      get("CATALOG_KAFKA_AUDIT_TOPIC", kafka.TopicAuditEvents),
		dlqTopic:   get("CATALOG_KAFKA_DLQ_TOPIC", kafka.TopicDeadLetterQueue),
		maxRetries: 3,
	}
	for _, broker := range strings.Split(get("CATALOG_KAFKA_BROKERS", ""), ",") {
		if broker = strings.TrimSpace(broker); broker != "" {
			cfg.brokers = append(cfg.brokers, broker)
		}
	}
	if len(cfg.brokers) == 0 {
		return consumerConfig{}, errors.New("CATALOG_KAFKA_BROKERS is required")
	}

	if raw := get("CATALOG_AUDIT_CONSUMER_MAX_RETRIES", ""); raw != "" {
		retries, err := strconv.Atoi(raw)
		if err != nil || retries < 1 {
			return consumerConfig{}, fmt.Errorf("CATALOG_AUDIT_CONSUMER_MAX_RETRIES=%q must be a positive integer", raw)
		}
		cfg.maxRetries = retries
	}
	return cfg, nil
}
