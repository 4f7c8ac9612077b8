package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestLimiter_Allow(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	limiter := New(3, time.Minute, clock, nil)

	for i := 0; i < 3; i++ {
		ok, retry := limiter.Allow("client")
		assert.True(t, ok, "request %d", i)
		assert.Zero(t, retry)
	}

	clock.Advance(20 * time.Second)
	ok, retry := limiter.Allow("client")
	assert.False(t, ok)
	assert.Equal(t, 40*time.Second, retry)

	// other keys are independent
	ok, _ = limiter.Allow("other")
	assert.True(t, ok)

	clock.Advance(40 * time.Second)
	ok, _ = limiter.Allow("client")
	assert.True(t, ok, "window resets after the period")
}

func TestLimiter_Concurrent(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	limiter := New(10, time.Minute, clock, NewMemoryStore())

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := limiter.Allow("k"); ok {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, allowed)
}

func TestMemoryStore_Prune(t *testing.T) {
	store := NewMemoryStore()
	base := time.Unix(1000, 0)

	store.Update("old", func(Window, bool) Window { return Window{Start: base, Count: 1} })
	store.Update("new", func(Window, bool) Window { return Window{Start: base.Add(time.Hour), Count: 1} })

	assert.Equal(t, 1, store.Prune(base.Add(time.Minute)))
	assert.NotContains(t, store.windows, "old")
	assert.Contains(t, store.windows, "new")
}
