package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/vladislavdragonenkov/catalog/internal/domain"
)

// timelineRepositoryInMemory хранит историю агрегатов в памяти (для разработки/тестов).
type timelineRepositoryInMemory struct {
	mu     sync.RWMutex
	events map[string][]domain.TimelineEvent
}

// NewTimelineRepository создаёт in-memory реализацию TimelineRepository.
func NewTimelineRepository() domain.TimelineRepository {
	return &timelineRepositoryInMemory{events: make(map[string][]domain.TimelineEvent)}
}

func timelineKey(aggregateType, aggregateID string) string {
	return aggregateType + "/" + aggregateID
}

// Append добавляет событие, сохраняя хронологический порядок.
func (r *timelineRepositoryInMemory) Append(_ context.Context, event domain.TimelineEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := timelineKey(event.AggregateType, event.AggregateID)
	events := append(r.events[key], event)
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Occurred.Before(events[j].Occurred)
	})
	r.events[key] = events

	return nil
}

// List возвращает события агрегата в хронологическом порядке.
func (r *timelineRepositoryInMemory) List(_ context.Context, aggregateType, aggregateID string) ([]domain.TimelineEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	events := r.events[timelineKey(aggregateType, aggregateID)]
	result := make([]domain.TimelineEvent, len(events))
	copy(result, events)
	return result, nil
}

var _ domain.TimelineRepository = (*timelineRepositoryInMemory)(nil)
