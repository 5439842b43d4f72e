package cache

import (
	"sync"
	"time"

	"github.com/reelscope/reelscope/internal/domain"
)

type entry struct {
	value     domain.PipelineResult
	expiresAt time.Time // zero means never
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// Memory is an in-process Store. Expired entries are dropped lazily on read
// and proactively by a background sweep.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]entry

	sweepInterval time.Duration
	stop          chan struct{}
	stopOnce      sync.Once
}

// NewMemory creates an in-memory store. A non-positive sweepInterval
// disables the background sweep; lazy expiry on read still applies.
func NewMemory(sweepInterval time.Duration) *Memory {
	m := &Memory{
		entries:       make(map[string]entry),
		sweepInterval: sweepInterval,
		stop:          make(chan struct{}),
	}
	if sweepInterval > 0 {
		go m.sweepLoop()
	}
	return m
}

func (m *Memory) Get(key string) (domain.PipelineResult, bool) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return domain.PipelineResult{}, false
	}
	if e.expired(time.Now()) {
		m.mu.Lock()
		// Re-check under the write lock; another writer may have replaced it.
		if cur, ok := m.entries[key]; ok && cur.expired(time.Now()) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		return domain.PipelineResult{}, false
	}
	return e.value, true
}

func (m *Memory) Set(key string, value domain.PipelineResult, ttl time.Duration) {
	e := entry{value: value}
	if ttl != 0 {
		e.expiresAt = time.Now().Add(ttl)
	}
	m.mu.Lock()
	m.entries[key] = e
	m.mu.Unlock()
}

func (m *Memory) Delete(key string) {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Close stops the background sweep.
func (m *Memory) Close() error {
	m.stopOnce.Do(func() { close(m.stop) })
	return nil
}

func (m *Memory) sweepLoop() {
	ticker := time.NewTicker(m.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.sweep(time.Now())
		}
	}
}

func (m *Memory) sweep(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, e := range m.entries {
		if e.expired(now) {
			delete(m.entries, key)
		}
	}
}
