package memory

import (
	"context"
	"sort"
	"sync"

	"cpmm-sniper/internal/domain"
	"cpmm-sniper/internal/storage"
)

// TradeEventStore is an in-memory implementation of storage.TradeEventStore.
type TradeEventStore struct {
	mu     sync.RWMutex
	events []*domain.TradeEvent
}

// NewTradeEventStore creates a new in-memory trade event store.
func NewTradeEventStore() *TradeEventStore {
	return &TradeEventStore{}
}

// Compile-time interface check.
var _ storage.TradeEventStore = (*TradeEventStore)(nil)

// Insert appends one trade event.
func (s *TradeEventStore) Insert(_ context.Context, e *domain.TradeEvent) error {
	if e == nil || e.Pool == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	eventCopy := *e
	s.events = append(s.events, &eventCopy)
	return nil
}

// GetByPool retrieves all events for a pool, ordered by timestamp ASC.
func (s *TradeEventStore) GetByPool(_ context.Context, pool string) ([]*domain.TradeEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.TradeEvent
	for _, e := range s.events {
		if e.Pool == pool {
			eventCopy := *e
			out = append(out, &eventCopy)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TimestampMs < out[j].TimestampMs
	})
	return out, nil
}
