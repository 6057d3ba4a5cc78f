package postgres

import (
	"context"
	"fmt"
	"time"

	"cpmm-sniper/internal/storage"
)

// SeenTokenStore implements storage.SeenTokenStore using PostgreSQL.
type SeenTokenStore struct {
	pool *Pool
}

// NewSeenTokenStore creates a new SeenTokenStore.
func NewSeenTokenStore(pool *Pool) *SeenTokenStore {
	return &SeenTokenStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SeenTokenStore = (*SeenTokenStore)(nil)

// MarkSeen records a mint. Returns ErrDuplicateKey when already recorded.
func (s *SeenTokenStore) MarkSeen(ctx context.Context, mint string, seenAt time.Time) error {
	if mint == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO seen_tokens (mint, seen_at)
		VALUES ($1, $2)
	`

	_, err := s.pool.Exec(ctx, query, mint, seenAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert seen token: %w", err)
	}
	return nil
}
