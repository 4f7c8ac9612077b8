// Package ratelimit implements a fixed-window request limiter keyed by
// caller identity.
package ratelimit

import (
	"sync"
	"time"
)

// Clock supplies the current time
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the wall clock
var SystemClock Clock = ClockFunc(time.Now)

// Window is the state kept for one key
type Window struct {
	Start time.Time
	Count int
}

// Store holds per-key windows
type Store interface {
	// Update atomically replaces the window of key with fn's result
	Update(key string, fn func(w Window, ok bool) Window) Window
}

// MemoryStore is an in-process Store
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]Window
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{windows: make(map[string]Window)}
}

func (s *MemoryStore) Update(key string, fn func(w Window, ok bool) Window) Window {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.windows[key]
	w = fn(w, ok)
	s.windows[key] = w
	return w
}

// Prune drops windows that started before cutoff
func (s *MemoryStore) Prune(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for k, w := range s.windows {
		if w.Start.Before(cutoff) {
			delete(s.windows, k)
			removed++
		}
	}
	return removed
}

// Limiter allows at most Limit requests per key in each Period
type Limiter struct {
	limit  int
	period time.Duration
	clock  Clock
	store  Store
}

// New creates a limiter. Nil clock or store select the system clock and a
// fresh in-memory store.
func New(limit int, period time.Duration, clock Clock, store Store) *Limiter {
	if clock == nil {
		clock = SystemClock
	}
	if store == nil {
		store = NewMemoryStore()
	}
	return &Limiter{limit: limit, period: period, clock: clock, store: store}
}

// Allow records a request for key. When the limit is exhausted it returns
// false and the time left until the window resets.
func (l *Limiter) Allow(key string) (bool, time.Duration) {
	now := l.clock.Now()
	allowed := false

	w := l.store.Update(key, func(w Window, ok bool) Window {
		if !ok || now.Sub(w.Start) >= l.period {
			w = Window{Start: now}
		}
		if w.Count < l.limit {
			w.Count++
			allowed = true
		}
		return w
	})

	if allowed {
		return true, 0
	}
	return false, l.period - now.Sub(w.Start)
}
