package main

import (
	"context"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/catalog/internal/audit"
	"github.com/vladislavdragonenkov/catalog/internal/domain"
	"github.com/vladislavdragonenkov/catalog/internal/messaging/kafka"
)

func mapLookup(values map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func TestReadConfigDefaults(t *testing.T) {
	cfg, err := readConfig(mapLookup(map[string]string{"CATALOG_KAFKA_BROKERS": "a:9092, b:9092"}))
	require.NoError(t, err)

	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.brokers)
	assert.Equal(t, defaultGroupID, cfg.groupID)
	assert.Equal(t, kafka.TopicAuditEvents, cfg.topic)
	assert.Equal(t, kafka.TopicDeadLetterQueue, cfg.dlqTopic)
	assert.Equal(t, 3, cfg.maxRetries)
}

func TestReadConfigOverrides(t *testing.T) {
	cfg, err := readConfig(mapLookup(map[string]string{
		"CATALOG_KAFKA_BROKERS":              "kafka:9092",
		"CATALOG_AUDIT_CONSUMER_GROUP":       "reports",
		"CATALOG_KAFKA_AUDIT_TOPIC":          "audit.v2",
		"CATALOG_KAFKA_DLQ_TOPIC":            "audit.v2.dlq",
		"CATALOG_AUDIT_CONSUMER_MAX_RETRIES": "5",
	}))
	require.NoError(t, err)

	assert.Equal(t, "reports", cfg.groupID)
	assert.Equal(t, "audit.v2", cfg.topic)
	assert.Equal(t, "audit.v2.dlq", cfg.dlqTopic)
	assert.Equal(t, 5, cfg.maxRetries)
}

func TestReadConfigErrors(t *testing.T) {
	_, err := readConfig(mapLookup(nil))
	assert.Error(t, err)

	_, err = readConfig(mapLookup(map[string]string{
		"CATALOG_KAFKA_BROKERS":              "kafka:9092",
		"CATALOG_AUDIT_CONSUMER_MAX_RETRIES": "zero",
	}))
	assert.Error(t, err)
}

func TestAuditHandlerLogsEventLine(t *testing.T) {
	logger, hook := test.NewNullLogger()
	handler := newAuditHandler(log.NewEntry(logger))

	event := audit.NewPurchase(domain.Product{Owner: "acme", Description: "a widget"}, domain.NewAmount(100), "")
	envelope := kafka.AuditEnvelope{ID: "outbox-1", AggregateID: "sku-1", EventType: string(event.Event)}

	require.NoError(t, handler(context.Background(), envelope, event))

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, event.String(), entry.Message)
	assert.Equal(t, "outbox-1", entry.Data["outbox_id"])
}

func TestAuditHandlerRejectsEmptyEvent(t *testing.T) {
	logger, _ := test.NewNullLogger()
	handler := newAuditHandler(log.NewEntry(logger))

	err := handler(context.Background(), kafka.AuditEnvelope{ID: "x"}, audit.EventLog{Standard: audit.Standard})
	assert.Error(t, err)
}
