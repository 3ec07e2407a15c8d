package settlement

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/catalog/internal/audit"
	"github.com/vladislavdragonenkov/catalog/internal/domain"
)

// Mode определяет, как выполняется шаг перевода.
type Mode string

const (
	// ModeSync — двухфазный перевод с откатом списания при неудаче.
	ModeSync Mode = "sync"
	// ModeAsync — перевод в фоне, результат только логируется; списание не откатывается.
	ModeAsync Mode = "async"
)

// ParseMode разбирает режим из конфигурации; пустая строка означает sync.
func ParseMode(raw string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ModeSync:
		return ModeSync, nil
	case ModeAsync:
		return ModeAsync, nil
	default:
		return "", fmt.Errorf("unknown settlement mode %q", raw)
	}
}

// Channel — способ оплаты, которым пришёл запрос.
type Channel string

const (
	ChannelDirect Channel = "direct"
	ChannelToken  Channel = "token"
)

// Виды расчётов для метрик.
const (
	kindPurchase  = "purchase"
	kindOwnership = "ownership"
)

// Типы событий timeline, которые пишет движок.
const (
	EventPurchaseSupplyDebited  = "PurchaseSupplyDebited"
	EventPurchaseTransferIssued = "PurchaseTransferIssued"
	EventPurchaseRecorded       = "PurchaseRecorded"
	EventPurchaseCompensated    = "PurchaseCompensated"
	EventListingOwnerChanged    = "ListingOwnerChanged"
	EventListingSold            = "ListingSold"
	EventListingSaleReverted    = "ListingSaleReverted"
)

// ErrShuttingDown возвращается после вызова Shutdown.
var ErrShuttingDown = errors.New("settlement engine is shutting down")

// Config задаёт параметры движка расчётов.
type Config struct {
	Mode Mode
	// Platform — получатель оплаты за товары магазинов.
	Platform domain.AccountRef
	// AsyncTimeout ограничивает фоновый перевод в async-режиме.
	AsyncTimeout time.Duration
	// Retry — повторы компенсаций; нулевое значение заменяется DefaultRetryConfig.
	Retry RetryConfig
}

// DefaultConfig возвращает sync-режим и платформу catalog.platform.
func DefaultConfig() Config {
	return Config{
		Mode:         ModeSync,
		Platform:     "catalog.platform",
		AsyncTimeout: 30 * time.Second,
		Retry:        DefaultRetryConfig(),
	}
}

// PurchaseRequest — запрос на покупку единицы товара магазина.
type PurchaseRequest struct {
	Caller    domain.AccountRef
	ProductID string
	Attached  domain.Amount
	Memo      string
	Channel   Channel
}

// BuyListingRequest — запрос на покупку записи реестра у текущего владельца.
type BuyListingRequest struct {
	Caller    domain.AccountRef
	ListingID uint32
	Attached  domain.Amount
	Memo      string
}

// Receipt описывает завершённый расчёт.
type Receipt struct {
	AggregateType   string
	AggregateID     string
	Seller          domain.AccountRef
	Beneficiary     domain.AccountRef
	Price           domain.Amount
	RemainingSupply uint64
	HoldID          string
	Mode            Mode
	Channel         Channel
	Event           audit.EventLog
}

// failureReason сводит ошибку к короткой метке для метрик.
func failureReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrShuttingDown):
		return "shutting_down"
	case domain.IsValidation(err), errors.Is(err, domain.ErrCallerRequired):
		return "validation"
	case domain.IsNotFound(err):
		return "not_found"
	case errors.Is(err, domain.ErrPriceMismatch):
		return "price_mismatch"
	case errors.Is(err, domain.ErrOutOfStock):
		return "out_of_stock"
	case errors.Is(err, domain.ErrTransferFailed):
		return "transfer_failed"
	case errors.Is(err, domain.ErrInsufficientEscrow):
		return "insufficient_escrow"
	case errors.Is(err, domain.ErrAlreadyOwner):
		return "already_owner"
	case errors.Is(err, domain.ErrUnauthorized):
		return "unauthorized"
	default:
		return "internal"
	}
}
