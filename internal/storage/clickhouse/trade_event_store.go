package clickhouse

import (
	"context"
	"fmt"

	"cpmm-sniper/internal/domain"
	"cpmm-sniper/internal/storage"
)

// TradeEventStore implements storage.TradeEventStore using ClickHouse.
type TradeEventStore struct {
	conn *Conn
}

// NewTradeEventStore creates a new TradeEventStore.
func NewTradeEventStore(conn *Conn) *TradeEventStore {
	return &TradeEventStore{conn: conn}
}

// Compile-time interface check.
var _ storage.TradeEventStore = (*TradeEventStore)(nil)

// Insert appends one trade event.
func (s *TradeEventStore) Insert(ctx context.Context, e *domain.TradeEvent) error {
	if e == nil || e.Pool == "" {
		return storage.ErrInvalidInput
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO trade_events (
			pool, mint, side, reason, amount, price, profit_pct, signature, timestamp_ms
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	err = batch.Append(
		e.Pool, e.Mint, string(e.Side), e.Reason,
		e.Amount, e.Price, e.ProfitPct, e.Signature, uint64(e.TimestampMs),
	)
	if err != nil {
		return fmt.Errorf("append to batch: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByPool retrieves all events for a pool, ordered by timestamp ASC.
func (s *TradeEventStore) GetByPool(ctx context.Context, pool string) ([]*domain.TradeEvent, error) {
	query := `
		SELECT pool, mint, side, reason, amount, price, profit_pct, signature, timestamp_ms
		FROM trade_events
		WHERE pool = ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, pool)
	if err != nil {
		return nil, fmt.Errorf("query by pool: %w", err)
	}
	defer rows.Close()

	var out []*domain.TradeEvent
	for rows.Next() {
		var (
			e           domain.TradeEvent
			side        string
			timestampMs uint64
		)
		err := rows.Scan(
			&e.Pool, &e.Mint, &side, &e.Reason,
			&e.Amount, &e.Price, &e.ProfitPct, &e.Signature, &timestampMs,
		)
		if err != nil {
			return nil, fmt.Errorf("scan trade event: %w", err)
		}
		e.Side = domain.TradeSide(side)
		e.TimestampMs = int64(timestampMs)
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade events: %w", err)
	}
	return out, nil
}
