package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cpmm-sniper/internal/storage"
)

func TestSeenTokenStore_MarkSeen(t *testing.T) {
	store := NewSeenTokenStore()
	ctx := context.Background()

	if err := store.MarkSeen(ctx, "mint-a", time.Now()); err != nil {
		t.Fatalf("MarkSeen failed: %v", err)
	}

	err := store.MarkSeen(ctx, "mint-a", time.Now())
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}

	if err := store.MarkSeen(ctx, "mint-b", time.Now()); err != nil {
		t.Errorf("expected distinct mint to be accepted, got %v", err)
	}
}

func TestSeenTokenStore_EmptyMint(t *testing.T) {
	store := NewSeenTokenStore()

	err := store.MarkSeen(context.Background(), "", time.Now())
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestSeenTokenStore_ConcurrentMarkSeen(t *testing.T) {
	store := NewSeenTokenStore()

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if store.MarkSeen(context.Background(), "contested", time.Now()) == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("expected exactly one writer to win, got %d", wins)
	}
}
