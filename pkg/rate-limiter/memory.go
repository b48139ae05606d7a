package ratelimiter

import (
	"context"
	"sync"
	"time"
)

// Sweep threshold to keep the counter map from growing without bound on
// long running single-node deployments.
const memoryStoreSweepAbove = 10000

type memoryCounter struct {
	count     int64
	windowEnd time.Time
}

// InMemoryCounterStore is a mutex-guarded counter map. Used in tests and as
// the automatic fallback when no redis address is configured.
type InMemoryCounterStore struct {
	mu       sync.Mutex
	counters map[string]*memoryCounter
	now      func() time.Time
}

func NewInMemoryCounterStore() *InMemoryCounterStore {
	return &InMemoryCounterStore{
		counters: make(map[string]*memoryCounter),
		now:      time.Now,
	}
}

func (s *InMemoryCounterStore) IncrementAndGet(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	counter, ok := s.counters[key]
	if !ok || !counter.windowEnd.After(now) {
		if len(s.counters) > memoryStoreSweepAbove {
			s.sweepExpired(now)
		}
		counter = &memoryCounter{windowEnd: now.Add(window)}
		s.counters[key] = counter
	}

	counter.count++
	return counter.count, counter.windowEnd.Sub(now), nil
}

func (s *InMemoryCounterStore) sweepExpired(now time.Time) {
	for key, counter := range s.counters {
		if !counter.windowEnd.After(now) {
			delete(s.counters, key)
		}
	}
}

// Len reports the number of tracked counters, including expired ones not
// yet swept.
func (s *InMemoryCounterStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.counters)
}
