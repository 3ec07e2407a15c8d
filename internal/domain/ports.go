package domain

import (
	"context"
	"time"
)

// TransferService — внешний примитив перевода ценности в две фазы.
type TransferService interface {
	// Reserve блокирует amount на счёте from в пользу to.
	Reserve(ctx context.Context, from, to AccountRef, amount Amount, reference string) (TransferHold, error)
	// Confirm проводит ранее зарезервированный перевод.
	Confirm(ctx context.Context, holdID string) error
	// Release снимает резерв (компенсация).
	Release(ctx context.Context, holdID string) error
}

// EscrowService сообщает баланс собственного счёта движка.
type EscrowService interface {
	EscrowBalance(ctx context.Context) (Amount, error)
}

// AccountFunder пополняет счета; доступен только у тестовых реализаций перевода.
type AccountFunder interface {
	Credit(ctx context.Context, account AccountRef, amount Amount) (Amount, error)
	Balance(ctx context.Context, account AccountRef) (Amount, error)
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(ctx context.Context, event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(ctx context.Context, msg OutboxMessage) (OutboxMessage, error)
	PullPending(ctx context.Context, limit int) ([]OutboxMessage, error)
	Stats(ctx context.Context) (OutboxStats, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string) error
}

// TimelineRepository хранит историю агрегатов каталога.
type TimelineRepository interface {
	Append(ctx context.Context, event TimelineEvent) error
	List(ctx context.Context, aggregateType, aggregateID string) ([]TimelineEvent, error)
}

// IdempotencyRepository хранит состояние обработки запросов по idempotency-key.
type IdempotencyRepository interface {
	CreateProcessing(ctx context.Context, key, requestHash string, ttlAt time.Time) (IdempotencyRecord, error)
	Get(ctx context.Context, key string) (IdempotencyRecord, error)
	MarkDone(ctx context.Context, key string, responseBody []byte, responseCode int) error
	MarkFailed(ctx context.Context, key string, responseBody []byte, responseCode int) error
	DeleteExpired(ctx context.Context, before time.Time, limit int) (int, error)
}

// SettlementStep задаёт константы фаз расчёта для метрик, логов и timeline.
type SettlementStep string

const (
	SettlementStepRequested      SettlementStep = "requested"
	SettlementStepValidated      SettlementStep = "validated"
	SettlementStepSupplyDebited  SettlementStep = "supply_debited"
	SettlementStepTransferIssued SettlementStep = "transfer_issued"
	SettlementStepRecorded       SettlementStep = "recorded"
	SettlementStepOwnerChanged   SettlementStep = "owner_changed"
	SettlementStepCompensated    SettlementStep = "compensated"
)

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
