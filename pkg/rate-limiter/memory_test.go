package ratelimiter

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestInMemoryCounterStoreWindowReset(t *testing.T) {
	store := NewInMemoryCounterStore()
	current := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return current }
	ctx := context.Background()

	count, remaining, err := store.IncrementAndGet(ctx, "k", time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 1 || remaining != time.Hour {
		t.Errorf("unexpected first increment: count=%d remaining=%s", count, remaining)
	}

	current = current.Add(30 * time.Minute)
	count, remaining, _ = store.IncrementAndGet(ctx, "k", time.Hour)
	if count != 2 {
		t.Errorf("count should continue within the window, got %d", count)
	}
	if remaining != 30*time.Minute {
		t.Errorf("unexpected remaining window %s", remaining)
	}

	// Window elapsed: the counter starts over.
	current = current.Add(31 * time.Minute)
	count, remaining, _ = store.IncrementAndGet(ctx, "k", time.Hour)
	if count != 1 || remaining != time.Hour {
		t.Errorf("counter should reset after the window: count=%d remaining=%s", count, remaining)
	}
}

func TestInMemoryCounterStoreKeysAreIndependent(t *testing.T) {
	store := NewInMemoryCounterStore()
	ctx := context.Background()

	store.IncrementAndGet(ctx, "a", time.Hour)
	store.IncrementAndGet(ctx, "a", time.Hour)
	count, _, _ := store.IncrementAndGet(ctx, "b", time.Hour)
	if count != 1 {
		t.Errorf("keys should have independent counters, got %d", count)
	}
	if store.Len() != 2 {
		t.Errorf("expected 2 tracked counters, got %d", store.Len())
	}
}

func TestInMemoryCounterStoreConcurrentIncrements(t *testing.T) {
	store := NewInMemoryCounterStore()
	ctx := context.Background()

	const workers = 50
	var wg sync.WaitGroup
	seen := make(chan int64, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			count, _, err := store.IncrementAndGet(ctx, "shared", time.Hour)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			seen <- count
		}()
	}
	wg.Wait()
	close(seen)

	// Every caller must observe a distinct count between 1 and workers.
	observed := make(map[int64]bool)
	for count := range seen {
		if observed[count] {
			t.Fatalf("count %d observed twice", count)
		}
		observed[count] = true
	}
	if len(observed) != workers {
		t.Errorf("expected %d distinct counts, got %d", workers, len(observed))
	}
}
