// Package audit формирует версионированные записи о расчётах и передаёт их во внешний лог.
package audit

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/vladislavdragonenkov/catalog/internal/domain"
)

const (
	// Standard — версия формата, на которую опираются внешние потребители логов.
	Standard = "e-commerce-1.0.0"
	// LinePrefix предшествует JSON в каждой строке аудита.
	LinePrefix = "EVENT_JSON:"
)

// EventKind — дискриминатор события.
type EventKind string

const (
	EventPurchase          EventKind = "purchase"
	EventOwnershipTransfer EventKind = "ownership_transfer"
)

// Known сообщает, что вид события поддерживается.
func (k EventKind) Known() bool {
	return k == EventPurchase || k == EventOwnershipTransfer
}

var errNotAuditLine = errors.New("line is not an audit event")

// PurchaseRecord описывает одну продажу.
type PurchaseRecord struct {
	OwnerID     domain.AccountRef `json:"owner_id"`
	ProductInfo string            `json:"product_info"`
	Price       domain.Amount     `json:"price"`
	Memo        string            `json:"memo,omitempty"`
}

// EventLog — запись аудита в формате EVENT_JSON.
type EventLog struct {
	Standard string           `json:"standard"`
	Event    EventKind        `json:"event"`
	Data     []PurchaseRecord `json:"data"`
}

// NewPurchase создаёт событие продажи товара магазина.
func NewPurchase(product domain.Product, price domain.Amount, memo string) EventLog {
	return EventLog{
		Standard: Standard,
		Event:    EventPurchase,
		Data: []PurchaseRecord{{
			OwnerID:     product.Owner,
			ProductInfo: product.Description,
			Price:       price,
			Memo:        memo,
		}},
	}
}

// NewOwnershipTransfer создаёт событие перепродажи записи реестра; OwnerID — предыдущий владелец.
func NewOwnershipTransfer(seller domain.AccountRef, listing domain.Listing, memo string) EventLog {
	return EventLog{
		Standard: Standard,
		Event:    EventOwnershipTransfer,
		Data: []PurchaseRecord{{
			OwnerID:     seller,
			ProductInfo: listing.Description,
			Price:       listing.Price,
			Memo:        memo,
		}},
	}
}

// JSON возвращает тело события без префикса.
func (e EventLog) JSON() []byte {
	if e.Data == nil {
		e.Data = []PurchaseRecord{}
	}
	// Marshal не падает: все поля сериализуются без ошибок.
	body, _ := json.Marshal(e)
	return body
}

func (e EventLog) String() string {
	return LinePrefix + string(e.JSON())
}

// Parse разбирает строку EVENT_JSON обратно в событие.
func Parse(line string) (EventLog, error) {
	body, ok := strings.CutPrefix(strings.TrimSpace(line), LinePrefix)
	if !ok {
		return EventLog{}, errNotAuditLine
	}
	return ParseJSON([]byte(body))
}

// ParseJSON разбирает тело события (например, payload из outbox).
func ParseJSON(body []byte) (EventLog, error) {
	var event EventLog
	if err := json.Unmarshal(body, &event); err != nil {
		return EventLog{}, fmt.Errorf("decode audit event: %w", err)
	}
	if event.Standard != Standard {
		return EventLog{}, fmt.Errorf("unsupported audit standard %q", event.Standard)
	}
	return event, nil
}
