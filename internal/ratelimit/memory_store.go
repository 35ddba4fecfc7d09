package ratelimit

import (
	"context"
	"sync"
	"time"
)

type bucket struct {
	windowStart time.Time
	window      time.Duration
	count       int64
}

// MemoryCounterStore keeps counters in process memory.  It suits a single
// server instance; buckets are created lazily and dropped by Sweep once
// their window has elapsed.
type MemoryCounterStore struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
}

// NewMemoryCounterStore returns an empty store.  A nil clock means
// time.Now.
func NewMemoryCounterStore(now func() time.Time) *MemoryCounterStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryCounterStore{buckets: make(map[string]*bucket), now: now}
}

func (s *MemoryCounterStore) Increment(_ context.Context, key string, window time.Duration) (Counter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	b, ok := s.buckets[key]
	if !ok || !now.Before(b.windowStart.Add(b.window)) {
		b = &bucket{windowStart: now, window: window}
		s.buckets[key] = b
	}
	b.count++
	return Counter{Count: b.count, ResetIn: b.windowStart.Add(b.window).Sub(now)}, nil
}

// Sweep evicts every bucket whose window has elapsed and returns how many
// were removed.
func (s *MemoryCounterStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for k, b := range s.buckets {
		if !now.Before(b.windowStart.Add(b.window)) {
			delete(s.buckets, k)
			removed++
		}
	}
	return removed
}

// Len returns the number of live buckets.
func (s *MemoryCounterStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buckets)
}

// RunJanitor sweeps every interval until ctx is cancelled.
func (s *MemoryCounterStore) RunJanitor(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.Sweep()
		}
	}
}
