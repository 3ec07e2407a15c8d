package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/catalog/internal/domain"
)

type timelineRepository struct {
	store *Store
}

// NewTimelineRepository создаёт SQL-реализацию TimelineRepository.
func NewTimelineRepository(store *Store) domain.TimelineRepository {
	return &timelineRepository{store: store}
}

func (r *timelineRepository) Append(ctx context.Context, event domain.TimelineEvent) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if event.Occurred.IsZero() {
		event.Occurred = time.Now().UTC()
	}

	if _, err := r.store.conn().ExecContext(ctx, `
		INSERT INTO timeline_events (aggregate_type, aggregate_id, type, reason, occurred)
		VALUES ($1,$2,$3,$4,$5)
	`, event.AggregateType, event.AggregateID, event.Type, event.Reason, event.Occurred.UTC()); err != nil {
		return fmt.Errorf("append timeline event: %w", err)
	}

	return nil
}

func (r *timelineRepository) List(ctx context.Context, aggregateType, aggregateID string) ([]domain.TimelineEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.store.conn().QueryContext(ctx, `
		SELECT aggregate_type, aggregate_id, type, reason, occurred
		FROM timeline_events
		WHERE aggregate_type = $1 AND aggregate_id = $2
		ORDER BY occurred ASC, id ASC
	`, aggregateType, aggregateID)
	if err != nil {
		return nil, fmt.Errorf("list timeline events: %w", err)
	}
	defer rows.Close()

	events := make([]domain.TimelineEvent, 0)
	for rows.Next() {
		var event domain.TimelineEvent
		if err := rows.Scan(&event.AggregateType, &event.AggregateID, &event.Type, &event.Reason, &event.Occurred); err != nil {
			return nil, fmt.Errorf("scan timeline event: %w", err)
		}
		event.Occurred = event.Occurred.UTC()
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate timeline events: %w", err)
	}

	return events, nil
}

var _ domain.TimelineRepository = (*timelineRepository)(nil)
