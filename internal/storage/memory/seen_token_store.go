// Package memory provides in-memory storage backends, used by tests and
// by runs without external databases.
package memory

import (
	"context"
	"sync"
	"time"

	"cpmm-sniper/internal/storage"
)

// SeenTokenStore is an in-memory implementation of storage.SeenTokenStore.
type SeenTokenStore struct {
	mu   sync.Mutex
	seen map[string]time.Time
}

// NewSeenTokenStore creates a new in-memory seen-token store.
func NewSeenTokenStore() *SeenTokenStore {
	return &SeenTokenStore{seen: make(map[string]time.Time)}
}

// Compile-time interface check.
var _ storage.SeenTokenStore = (*SeenTokenStore)(nil)

// MarkSeen records a mint. Returns ErrDuplicateKey when already recorded.
func (s *SeenTokenStore) MarkSeen(_ context.Context, mint string, seenAt time.Time) error {
	if mint == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.seen[mint]; exists {
		return storage.ErrDuplicateKey
	}
	s.seen[mint] = seenAt
	return nil
}
