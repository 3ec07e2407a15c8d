package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/catalog/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/catalog/internal/service/outbox"
)

const (
	defaultReplayLimit = 100
	defaultIdleTimeout = 2 * time.Second
)

// config — параметры повторной публикации из DLQ.
type config struct {
	brokers     []string
	sourceTopic string
	targetTopic string
	limit       int
	execute     bool
	fromNewest  bool
	idleTimeout time.Duration
}

// replayMessage — то, что уйдёт обратно в топик аудита.
type replayMessage struct {
	topic string
	key   string
	value []byte
}

type offsetClient interface {
	GetOffset(topic string, partition int32, time int64) (int64, error)
	Partitions(topic string) ([]int32, error)
	Close() error
}

type partitionConsumer interface {
	Messages() <-chan *sarama.ConsumerMessage
	Errors() <-chan *sarama.ConsumerError
	Close() error
}

type partitionConsumerSource interface {
	ConsumePartition(topic string, partition int32, offset int64) (partitionConsumer, error)
	Close() error
}

type replayProducer interface {
	SendMessage(msg *sarama.ProducerMessage) (partition int32, offset int64, err error)
	Close() error
}

type saramaConsumerAdapter struct {
	consumer sarama.Consumer
}

func (a saramaConsumerAdapter) ConsumePartition(topic string, partition int32, offset int64) (partitionConsumer, error) {
	return a.consumer.ConsumePartition(topic, partition, offset)
}

func (a saramaConsumerAdapter) Close() error {
	if a.consumer == nil {
		return nil
	}
	return a.consumer.Close()
}

// replayDeps — подключения к Kafka; producer равен nil в dry-run.
type replayDeps struct {
	client   offsetClient
	consumer partitionConsumerSource
	producer replayProducer
}

func (d replayDeps) close() {
	if d.producer != nil {
		_ = d.producer.Close()
	}
	if d.consumer != nil {
		_ = d.consumer.Close()
	}
	if d.client != nil {
		_ = d.client.Close()
	}
}

var newReplayDeps = func(cfg config) (replayDeps, error) {
	consumerConfig := sarama.NewConfig()
	consumerConfig.Consumer.Return.Errors = true

	client, err := sarama.NewClient(cfg.brokers, consumerConfig)
	if err != nil {
		return replayDeps{}, fmt.Errorf("create kafka client: %w", err)
	}
	rawConsumer, err := sarama.NewConsumerFromClient(client)
	if err != nil {
		_ = client.Close()
		return replayDeps{}, fmt.Errorf("create kafka consumer: %w", err)
	}
	deps := replayDeps{client: client, consumer: saramaConsumerAdapter{consumer: rawConsumer}}
	if !cfg.execute {
		return deps, nil
	}

	producerConfig := sarama.NewConfig()
	producerConfig.Producer.RequiredAcks = sarama.WaitForAll
	producerConfig.Producer.Retry.Max = 5
	producerConfig.Producer.Return.Successes = true
	producerConfig.Producer.Idempotent = true
	producerConfig.Net.MaxOpenRequests = 1

	producer, err := sarama.NewSyncProducer(cfg.brokers, producerConfig)
	if err != nil {
		deps.close()
		return replayDeps{}, fmt.Errorf("create kafka producer: %w", err)
	}
	deps.producer = producer
	return deps, nil
}

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.InfoLevel)

	cfg, err := parseConfig(os.Args[1:], os.LookupEnv)
	if err != nil {
		fail("%v", err)
	}

	deps, err := newReplayDeps(cfg)
	if err != nil {
		fail("%v", err)
	}
	defer deps.close()

	if _, err := runReplay(context.Background(), cfg, deps); err != nil {
		deps.close()
		fail("dlq replay failed: %v", err)
	}
}

func parseConfig(args []string, lookup func(string) (string, bool)) (config, error) {
	var (
		brokersRaw string
		cfg        config
	)

	flags := flag.NewFlagSet("dlq-reprocess", flag.ContinueOnError)
	flags.SetOutput(io.Discard)
	flags.StringVar(&brokersRaw, "brokers", "", "Kafka brokers as comma-separated list (fallback: CATALOG_KAFKA_BROKERS)")
	flags.StringVar(&cfg.sourceTopic, "source-topic", kafka.TopicDeadLetterQueue, "DLQ source topic")
	flags.StringVar(&cfg.targetTopic, "target-topic", kafka.TopicAuditEvents, "audit topic for replay")
	flags.IntVar(&cfg.limit, "limit", defaultReplayLimit, "max number of messages to scan/replay")
	flags.BoolVar(&cfg.execute, "execute", false, "execute replay; default is dry-run")
	flags.BoolVar(&cfg.fromNewest, "from-newest", false, "scan latest messages first (bounded by limit)")
	flags.DurationVar(&cfg.idleTimeout, "idle-timeout", defaultIdleTimeout, "idle timeout per partition")
	if err := flags.Parse(args); err != nil {
		return config{}, err
	}

	if strings.TrimSpace(brokersRaw) == "" && lookup != nil {
		brokersRaw, _ = lookup("CATALOG_KAFKA_BROKERS")
	}
	cfg.brokers = parseBrokers(brokersRaw)

	switch {
	case len(cfg.brokers) == 0:
		return config{}, errors.New("kafka brokers are required (-brokers or CATALOG_KAFKA_BROKERS)")
	case strings.TrimSpace(cfg.sourceTopic) == "":
		return config{}, errors.New("source-topic is required")
	case strings.TrimSpace(cfg.targetTopic) == "":
		return config{}, errors.New("target-topic is required")
	case cfg.limit <= 0:
		return config{}, errors.New("limit must be > 0")
	case cfg.idleTimeout <= 0:
		return config{}, errors.New("idle-timeout must be > 0")
	}
	return cfg, nil
}

func parseBrokers(raw string) []string {
	chunks := strings.Split(raw, ",")
	brokers := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		if broker := strings.TrimSpace(chunk); broker != "" {
			brokers = append(brokers, broker)
		}
	}
	return brokers
}

// replayStats — итог прохода по DLQ.
type replayStats struct {
	processed int
	replayed  int
	skipped   int
}

func (s *replayStats) add(other replayStats) {
	s.processed += other.processed
	s.replayed += other.replayed
	s.skipped += other.skipped
}

func runReplay(ctx context.Context, cfg config, deps replayDeps) (replayStats, error) {
	var total replayStats
	if deps.client == nil || deps.consumer == nil {
		return total, errors.New("kafka client and consumer are required")
	}
	if cfg.execute && deps.producer == nil {
		return total, errors.New("producer is required in execute mode")
	}

	log.WithFields(log.Fields{
		"source_topic": cfg.sourceTopic,
		"target_topic": cfg.targetTopic,
		"limit":        cfg.limit,
		"execute":      cfg.execute,
	}).Info("starting dlq replay")

	partitions, err := deps.client.Partitions(cfg.sourceTopic)
	if err != nil {
		return total, fmt.Errorf("get partitions for topic %s: %w", cfg.sourceTopic, err)
	}
	sort.Slice(partitions, func(i, j int) bool { return partitions[i] < partitions[j] })

	for _, partition := range partitions {
		if total.processed >= cfg.limit {
			break
		}
		stats, err := replayPartition(ctx, cfg, deps, partition, cfg.limit-total.processed)
		total.add(stats)
		if err != nil {
			return total, err
		}
	}

	mode := "dry-run"
	if cfg.execute {
		mode = "execute"
	}
	log.WithFields(log.Fields{
		"mode":      mode,
		"processed": total.processed,
		"replayed":  total.replayed,
		"skipped":   total.skipped,
	}).Info("dlq replay finished")
	return total, nil
}

// replayPartition читает партицию от начала (или последние limit сообщений) до текущего конца.
func replayPartition(ctx context.Context, cfg config, deps replayDeps, partition int32, limit int) (replayStats, error) {
	var stats replayStats

	oldest, err := deps.client.GetOffset(cfg.sourceTopic, partition, sarama.OffsetOldest)
	if err != nil {
		return stats, fmt.Errorf("get oldest offset for partition %d: %w", partition, err)
	}
	newest, err := deps.client.GetOffset(cfg.sourceTopic, partition, sarama.OffsetNewest)
	if err != nil {
		return stats, fmt.Errorf("get newest offset for partition %d: %w", partition, err)
	}
	if newest <= oldest {
		return stats, nil
	}

	start := oldest
	if cfg.fromNewest && newest-int64(limit) > oldest {
		start = newest - int64(limit)
	}

	pc, err := deps.consumer.ConsumePartition(cfg.sourceTopic, partition, start)
	if err != nil {
		return stats, fmt.Errorf("consume partition %d: %w", partition, err)
	}
	defer func() { _ = pc.Close() }()

	idle := time.NewTimer(cfg.idleTimeout)
	defer idle.Stop()

	for stats.processed < limit {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		case <-idle.C:
			return stats, nil
		case cerr := <-pc.Errors():
			if cerr != nil {
				return stats, fmt.Errorf("partition %d consumer error: %w", partition, cerr)
			}
		case msg, ok := <-pc.Messages():
			if !ok || msg == nil || msg.Offset >= newest {
				return stats, nil
			}
			idle.Reset(cfg.idleTimeout)
			stats.processed++

			replay, err := extractReplayMessage(msg, cfg.targetTopic)
			if err != nil {
				stats.skipped++
				log.WithError(err).WithFields(log.Fields{
					"partition": msg.Partition,
					"offset":    msg.Offset,
				}).Warn("skip unsupported dlq message")
				continue
			}

			if cfg.execute {
				if err := publishReplay(deps.producer, replay); err != nil {
					return stats, fmt.Errorf("publish replay message: %w", err)
				}
			} else {
				log.WithFields(log.Fields{
					"partition":    msg.Partition,
					"offset":       msg.Offset,
					"target_topic": replay.topic,
					"key":          replay.key,
				}).Info("dlq replay candidate")
			}
			stats.replayed++

			if msg.Offset+1 >= newest {
				return stats, nil
			}
		}
	}
	return stats, nil
}

func publishReplay(producer replayProducer, msg replayMessage) error {
	if producer == nil {
		return errors.New("producer is nil")
	}
	_, _, err := producer.SendMessage(&sarama.ProducerMessage{
		Topic:     msg.topic,
		Key:       sarama.StringEncoder(msg.key),
		Value:     sarama.ByteEncoder(msg.value),
		Timestamp: time.Now().UTC(),
	})
	return err
}

var errUnknownDeadLetter = errors.New("message is neither consumer nor outbox dead letter")

// extractReplayMessage понимает два формата DLQ:
// kafka.DeadLetter (consumer не смог обработать сообщение) и outbox.DeadLetter (worker не смог опубликовать).
func extractReplayMessage(msg *sarama.ConsumerMessage, auditTopic string) (replayMessage, error) {
	var consumerLetter kafka.DeadLetter
	if err := json.Unmarshal(msg.Value, &consumerLetter); err == nil && consumerLetter.OriginalValue != "" {
		topic := strings.TrimSpace(consumerLetter.OriginalTopic)
		if topic == "" {
			topic = auditTopic
		}
		return replayMessage{
			topic: topic,
			key:   consumerLetter.OriginalKey,
			value: []byte(consumerLetter.OriginalValue),
		}, nil
	}

	var outboxLetter outbox.DeadLetter
	if err := json.Unmarshal(msg.Value, &outboxLetter); err != nil || outboxLetter.OutboxID == "" {
		return replayMessage{}, errUnknownDeadLetter
	}
	if len(outboxLetter.Payload) == 0 {
		return replayMessage{}, fmt.Errorf("outbox dead letter %s has no audit payload", outboxLetter.OutboxID)
	}
	envelope := kafka.AuditEnvelope{
		ID:            outboxLetter.OutboxID,
		AggregateType: outboxLetter.AggregateType,
		AggregateID:   outboxLetter.AggregateID,
		EventType:     outboxLetter.EventType,
		Payload:       outboxLetter.Payload,
		PublishedAt:   time.Now().UTC(),
	}
	if _, err := envelope.Event(); err != nil {
		return replayMessage{}, err
	}
	encoded, err := json.Marshal(envelope)
	if err != nil {
		return replayMessage{}, fmt.Errorf("encode replay envelope: %w", err)
	}

	key := envelope.AggregateID
	if key == "" {
		key = envelope.ID
	}
	return replayMessage{topic: auditTopic, key: key, value: encoded}, nil
}

func fail(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
