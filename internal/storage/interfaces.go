// Package storage defines the persistence interfaces of the sniper and
// their shared errors. Backends live in subpackages.
package storage

import (
	"context"
	"time"

	"cpmm-sniper/internal/domain"
)

// SeenTokenStore records mints discovery has already handed to the
// pipeline, so restarts and duplicate chain notifications do not
// trigger a second cycle on the same token.
type SeenTokenStore interface {
	// MarkSeen records a mint. Returns ErrDuplicateKey when the mint was
	// recorded before.
	MarkSeen(ctx context.Context, mint string, seenAt time.Time) error
}

// TradeEventStore is the append-only trade history sink.
type TradeEventStore interface {
	// Insert appends one trade event.
	Insert(ctx context.Context, e *domain.TradeEvent) error

	// GetByPool retrieves all events for a pool, ordered by timestamp ASC.
	GetByPool(ctx context.Context, pool string) ([]*domain.TradeEvent, error)
}
