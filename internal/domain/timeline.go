package domain

import "time"

// Типы агрегатов для timeline и outbox.
const (
	AggregateShop    = "shop"
	AggregateProduct = "product"
	AggregateListing = "listing"
)

// TimelineEvent описывает событие в истории магазина, товара или записи реестра.
type TimelineEvent struct {
	AggregateType string    `json:"aggregate_type"`
	AggregateID   string    `json:"aggregate_id"`
	Type          string    `json:"type"`
	Reason        string    `json:"reason,omitempty"`
	Occurred      time.Time `json:"occurred"`
}
