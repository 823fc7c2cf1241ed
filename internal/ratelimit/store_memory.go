package ratelimit

import (
	"context"
	"sync"
	"time"
)

const cleanupInterval = 5 * time.Minute

type counter struct {
	start time.Time
	count int
}

// MemoryLimiter keeps fixed-window counters in process. Suitable for a
// single instance; use RedisLimiter when running several.
type MemoryLimiter struct {
	mu       sync.Mutex
	counters map[string]*counter
	now      func() time.Time
	stop     chan struct{}
	once     sync.Once
}

// NewMemoryLimiter starts a limiter with a background cleanup loop. Call
// Close to stop it.
func NewMemoryLimiter() *MemoryLimiter {
	m := &MemoryLimiter{
		counters: make(map[string]*counter),
		now:      time.Now,
		stop:     make(chan struct{}),
	}
	go m.cleanupLoop()
	return m
}

func (m *MemoryLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	start := windowStart(m.now(), window)
	c, ok := m.counters[key]
	if !ok || !c.start.Equal(start) {
		c = &counter{start: start}
		m.counters[key] = c
	}
	c.count++
	return result(c.count, limit, start.Add(window)), nil
}

func (m *MemoryLimiter) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.cleanup(time.Hour)
		case <-m.stop:
			return
		}
	}
}

// cleanup drops counters whose window began more than maxAge ago.
func (m *MemoryLimiter) cleanup(maxAge time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := m.now().Add(-maxAge)
	for key, c := range m.counters {
		if c.start.Before(cutoff) {
			delete(m.counters, key)
		}
	}
}

// Close stops the cleanup loop. Safe to call more than once.
func (m *MemoryLimiter) Close() {
	m.once.Do(func() { close(m.stop) })
}
