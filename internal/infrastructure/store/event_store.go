package store

import (
	"context"
	"sync"

	"github.com/example/ec-backoffice/internal/event"
)

// MemoryEventLog keeps published events in process.
type MemoryEventLog struct {
	mu     sync.RWMutex
	seen   map[string]struct{}
	events map[string][]event.Envelope // aggregateID -> events
}

func NewMemoryEventLog() *MemoryEventLog {
	return &MemoryEventLog{
		seen:   make(map[string]struct{}),
		events: make(map[string][]event.Envelope),
	}
}

// Append stores an event once per id
func (l *MemoryEventLog) Append(_ context.Context, e event.Envelope) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.seen[e.ID]; ok {
		return false, nil
	}
	l.seen[e.ID] = struct{}{}
	l.events[e.AggregateID] = append(l.events[e.AggregateID], e)
	return true, nil
}

// ListByAggregate returns all events for an aggregate in append order
func (l *MemoryEventLog) ListByAggregate(_ context.Context, aggregateID string) ([]event.Envelope, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]event.Envelope(nil), l.events[aggregateID]...), nil
}

// Len returns the number of stored events
func (l *MemoryEventLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.seen)
}
