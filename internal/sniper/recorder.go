package sniper

import (
	"context"
	"log"

	"cpmm-sniper/internal/domain"
	"cpmm-sniper/internal/observability"
	"cpmm-sniper/internal/storage"
)

// EventRecorder writes trade events to the event sink and bumps the
// trade counters. Sink failures are logged and swallowed; a trade that
// landed on chain is never re-tried or rolled back because the record
// did not stick.
type EventRecorder struct {
	store   storage.TradeEventStore
	metrics *observability.Metrics
}

// NewEventRecorder creates a recorder over the given sink.
func NewEventRecorder(store storage.TradeEventStore, metrics *observability.Metrics) *EventRecorder {
	return &EventRecorder{store: store, metrics: metrics}
}

// Record persists one trade event.
func (r *EventRecorder) Record(ctx context.Context, e *domain.TradeEvent) {
	if r.metrics != nil {
		r.metrics.TradesTotal.WithLabelValues(string(e.Side), e.Reason).Inc()
	}
	if r.store == nil {
		return
	}
	if err := r.store.Insert(ctx, e); err != nil {
		log.Printf("[sniper] record trade event pool=%s side=%s failed: %v", e.Pool, e.Side, err)
	}
}
