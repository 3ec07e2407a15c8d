package main

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"

	"github.com/vladislavdragonenkov/catalog/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/catalog/internal/service/outbox"
)

const purchasePayload = `{"standard":"e-commerce-1.0.0","event":"purchase","data":[{"owner_id":"alice","product_info":"a widget","price":100}]}`

type fakeOffsetClient struct {
	partitions []int32
	oldest     map[int32]int64
	newest     map[int32]int64
	err        error
}

func (f *fakeOffsetClient) GetOffset(_ string, partition int32, at int64) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	if at == sarama.OffsetOldest {
		return f.oldest[partition], nil
	}
	return f.newest[partition], nil
}

func (f *fakeOffsetClient) Partitions(string) ([]int32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.partitions, nil
}

func (f *fakeOffsetClient) Close() error { return nil }

type fakePartitionConsumer struct {
	messages chan *sarama.ConsumerMessage
	errors   chan *sarama.ConsumerError
}

func (f *fakePartitionConsumer) Messages() <-chan *sarama.ConsumerMessage { return f.messages }
func (f *fakePartitionConsumer) Errors() <-chan *sarama.ConsumerError     { return f.errors }
func (f *fakePartitionConsumer) Close() error                             { return nil }

type fakeConsumerSource struct {
	byPartition map[int32][]*sarama.ConsumerMessage
	startedAt   map[int32]int64
}

func (f *fakeConsumerSource) ConsumePartition(_ string, partition int32, offset int64) (partitionConsumer, error) {
	if f.startedAt == nil {
		f.startedAt = map[int32]int64{}
	}
	f.startedAt[partition] = offset

	pc := &fakePartitionConsumer{
		messages: make(chan *sarama.ConsumerMessage, len(f.byPartition[partition])),
		errors:   make(chan *sarama.ConsumerError),
	}
	for _, msg := range f.byPartition[partition] {
		if msg.Offset >= offset {
			pc.messages <- msg
		}
	}
	return pc, nil
}

func (f *fakeConsumerSource) Close() error { return nil }

func consumerLetter(t *testing.T, offset int64) *sarama.ConsumerMessage {
	t.Helper()
	raw, err := json.Marshal(kafka.DeadLetter{
		OriginalTopic: kafka.TopicAuditEvents,
		OriginalKey:   "widget",
		OriginalValue: `{"id":"evt-1"}`,
		ErrorMessage:  "handler failed",
		RetryCount:    3,
	})
	if err != nil {
		t.Fatalf("marshal consumer letter: %v", err)
	}
	return &sarama.ConsumerMessage{Topic: kafka.TopicDeadLetterQueue, Offset: offset, Value: raw}
}

func outboxLetter(t *testing.T, offset int64) *sarama.ConsumerMessage {
	t.Helper()
	raw, err := json.Marshal(outbox.DeadLetter{
		OutboxID:      "outbox-1",
		AggregateType: "product",
		AggregateID:   "widget",
		EventType:     "purchase",
		Payload:       json.RawMessage(purchasePayload),
		PublishError:  "timeout",
	})
	if err != nil {
		t.Fatalf("marshal outbox letter: %v", err)
	}
	return &sarama.ConsumerMessage{Topic: kafka.TopicDeadLetterQueue, Offset: offset, Value: raw}
}

func TestParseBrokers(t *testing.T) {
	brokers := parseBrokers(" broker-1:9092, ,broker-2:9092 ")
	if len(brokers) != 2 || brokers[0] != "broker-1:9092" || brokers[1] != "broker-2:9092" {
		t.Fatalf("unexpected brokers: %+v", brokers)
	}
}

func TestParseConfig(t *testing.T) {
	lookup := func(key string) (string, bool) {
		if key == "CATALOG_KAFKA_BROKERS" {
			return "kafka:9092", true
		}
		return "", false
	}

	cfg, err := parseConfig(nil, lookup)
	if err != nil {
		t.Fatalf("parseConfig failed: %v", err)
	}
	if len(cfg.brokers) != 1 || cfg.brokers[0] != "kafka:9092" {
		t.Fatalf("unexpected brokers: %+v", cfg.brokers)
	}
	if cfg.sourceTopic != kafka.TopicDeadLetterQueue || cfg.targetTopic != kafka.TopicAuditEvents {
		t.Fatalf("unexpected topics: %s -> %s", cfg.sourceTopic, cfg.targetTopic)
	}
	if cfg.execute || cfg.limit != defaultReplayLimit {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}

	cfg, err = parseConfig([]string{"-brokers", "a:1,b:2", "-execute", "-limit", "5"}, lookup)
	if err != nil {
		t.Fatalf("parseConfig with flags failed: %v", err)
	}
	if len(cfg.brokers) != 2 || !cfg.execute || cfg.limit != 5 {
		t.Fatalf("flags not applied: %+v", cfg)
	}
}

func TestParseConfigErrors(t *testing.T) {
	cases := map[string][]string{
		"no brokers":   {},
		"zero limit":   {"-brokers", "a:1", "-limit", "0"},
		"empty source": {"-brokers", "a:1", "-source-topic", " "},
		"empty target": {"-brokers", "a:1", "-target-topic", ""},
		"zero idle":    {"-brokers", "a:1", "-idle-timeout", "0s"},
		"unknown flag": {"-nope"},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := parseConfig(args, nil); err == nil {
				t.Fatalf("expected error for %v", args)
			}
		})
	}
}

func TestExtractReplayMessageConsumerLetter(t *testing.T) {
	got, err := extractReplayMessage(consumerLetter(t, 0), "fallback")
	if err != nil {
		t.Fatalf("extractReplayMessage failed: %v", err)
	}
	if got.topic != kafka.TopicAuditEvents || got.key != "widget" || string(got.value) != `{"id":"evt-1"}` {
		t.Fatalf("unexpected replay: %+v", got)
	}
}

func TestExtractReplayMessageOutboxLetter(t *testing.T) {
	got, err := extractReplayMessage(outboxLetter(t, 0), kafka.TopicAuditEvents)
	if err != nil {
		t.Fatalf("extractReplayMessage failed: %v", err)
	}
	if got.topic != kafka.TopicAuditEvents || got.key != "widget" {
		t.Fatalf("unexpected replay: %+v", got)
	}

	var envelope kafka.AuditEnvelope
	if err := json.Unmarshal(got.value, &envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if envelope.ID != "outbox-1" || envelope.EventType != "purchase" {
		t.Fatalf("unexpected envelope: %+v", envelope)
	}
	if _, err := envelope.Event(); err != nil {
		t.Fatalf("replayed payload is not an audit event: %v", err)
	}
}

func TestExtractReplayMessageRejectsUnknown(t *testing.T) {
	for name, value := range map[string]string{
		"not json":      "plain",
		"empty object":  `{}`,
		"no payload":    `{"outbox_id":"o-1"}`,
		"bad audit log": `{"outbox_id":"o-1","payload":{"standard":"x"}}`,
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := extractReplayMessage(&sarama.ConsumerMessage{Value: []byte(value)}, kafka.TopicAuditEvents); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestRunReplayDryRun(t *testing.T) {
	client := &fakeOffsetClient{
		partitions: []int32{1, 0},
		oldest:     map[int32]int64{0: 0, 1: 0},
		newest:     map[int32]int64{0: 2, 1: 1},
	}
	source := &fakeConsumerSource{byPartition: map[int32][]*sarama.ConsumerMessage{
		0: {consumerLetter(t, 0), {Offset: 1, Value: []byte("garbage")}},
		1: {outboxLetter(t, 0)},
	}}

	cfg := config{sourceTopic: kafka.TopicDeadLetterQueue, targetTopic: kafka.TopicAuditEvents, limit: 10, idleTimeout: time.Second}
	stats, err := runReplay(context.Background(), cfg, replayDeps{client: client, consumer: source})
	if err != nil {
		t.Fatalf("runReplay failed: %v", err)
	}
	if stats.processed != 3 || stats.replayed != 2 || stats.skipped != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestRunReplayExecutePublishes(t *testing.T) {
	client := &fakeOffsetClient{
		partitions: []int32{0},
		oldest:     map[int32]int64{0: 0},
		newest:     map[int32]int64{0: 2},
	}
	source := &fakeConsumerSource{byPartition: map[int32][]*sarama.ConsumerMessage{
		0: {consumerLetter(t, 0), outboxLetter(t, 1)},
	}}

	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		if string(val) != `{"id":"evt-1"}` {
			return errors.New("unexpected consumer replay value")
		}
		return nil
	})
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var envelope kafka.AuditEnvelope
		if err := json.Unmarshal(val, &envelope); err != nil {
			return err
		}
		if envelope.ID != "outbox-1" {
			return errors.New("unexpected outbox replay id")
		}
		return nil
	})
	defer func() { _ = producer.Close() }()

	cfg := config{sourceTopic: kafka.TopicDeadLetterQueue, targetTopic: kafka.TopicAuditEvents, limit: 10, execute: true, idleTimeout: time.Second}
	stats, err := runReplay(context.Background(), cfg, replayDeps{client: client, consumer: source, producer: producer})
	if err != nil {
		t.Fatalf("runReplay failed: %v", err)
	}
	if stats.replayed != 2 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestRunReplayFromNewestRespectsLimit(t *testing.T) {
	client := &fakeOffsetClient{
		partitions: []int32{0},
		oldest:     map[int32]int64{0: 0},
		newest:     map[int32]int64{0: 3},
	}
	source := &fakeConsumerSource{byPartition: map[int32][]*sarama.ConsumerMessage{
		0: {consumerLetter(t, 0), consumerLetter(t, 1), consumerLetter(t, 2)},
	}}

	cfg := config{sourceTopic: kafka.TopicDeadLetterQueue, targetTopic: kafka.TopicAuditEvents, limit: 1, fromNewest: true, idleTimeout: time.Second}
	stats, err := runReplay(context.Background(), cfg, replayDeps{client: client, consumer: source})
	if err != nil {
		t.Fatalf("runReplay failed: %v", err)
	}
	if stats.processed != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if source.startedAt[0] != 2 {
		t.Fatalf("expected replay from offset 2, got %d", source.startedAt[0])
	}
}

func TestRunReplayErrors(t *testing.T) {
	cfg := config{sourceTopic: kafka.TopicDeadLetterQueue, targetTopic: kafka.TopicAuditEvents, limit: 1, idleTimeout: time.Second}

	if _, err := runReplay(context.Background(), cfg, replayDeps{}); err == nil {
		t.Fatal("expected error without client")
	}

	cfg.execute = true
	deps := replayDeps{client: &fakeOffsetClient{}, consumer: &fakeConsumerSource{}}
	if _, err := runReplay(context.Background(), cfg, deps); err == nil {
		t.Fatal("expected error without producer in execute mode")
	}

	cfg.execute = false
	deps.client = &fakeOffsetClient{err: errors.New("broker down")}
	if _, err := runReplay(context.Background(), cfg, deps); err == nil {
		t.Fatal("expected partitions error")
	}
}

func TestRunReplayIdleTimeout(t *testing.T) {
	client := &fakeOffsetClient{
		partitions: []int32{0},
		oldest:     map[int32]int64{0: 0},
		newest:     map[int32]int64{0: 5},
	}
	source := &fakeConsumerSource{byPartition: map[int32][]*sarama.ConsumerMessage{0: {consumerLetter(t, 0)}}}

	cfg := config{sourceTopic: kafka.TopicDeadLetterQueue, targetTopic: kafka.TopicAuditEvents, limit: 10, idleTimeout: 20 * time.Millisecond}
	stats, err := runReplay(context.Background(), cfg, replayDeps{client: client, consumer: source})
	if err != nil {
		t.Fatalf("runReplay failed: %v", err)
	}
	if stats.processed != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}
