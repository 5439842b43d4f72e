// Package inflight tracks posts currently being processed and collapses
// concurrent requests for the same key into a single unit of work: the
// first caller runs the pipeline, later callers wait for its result.
package inflight

import (
	"context"
	"sort"
	"sync"

	"github.com/reelscope/reelscope/internal/domain"
)

// Flight is one in-progress unit of work. Waiters block on Wait until the
// leader finishes; all of them receive the same result or error.
type Flight struct {
	done  chan struct{}
	value domain.PipelineResult
	err   error
}

// Wait blocks until the flight completes or ctx is cancelled. Cancelling a
// waiter's context releases only that waiter; the flight keeps running.
func (f *Flight) Wait(ctx context.Context) (domain.PipelineResult, error) {
	select {
	case <-ctx.Done():
		return domain.PipelineResult{}, ctx.Err()
	case <-f.done:
		return f.value, f.err
	}
}

// Tracker is the in-flight set. Safe for concurrent use.
type Tracker struct {
	mu     sync.Mutex
	active map[string]*Flight
}

// New creates an empty tracker.
func New() *Tracker {
	return &Tracker{active: make(map[string]*Flight)}
}

// Begin marks key active and reports whether the caller is the leader.
// The leader must call Finish exactly once, on every exit path; waiters
// call Wait on the returned flight.
func (t *Tracker) Begin(key string) (*Flight, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if f, ok := t.active[key]; ok {
		return f, false
	}
	f := &Flight{done: make(chan struct{})}
	t.active[key] = f
	return f, true
}

// Finish records the outcome, releases all waiters and clears the marker.
// Calling Finish for a key that is not active is a no-op, which makes it
// safe to defer unconditionally.
func (t *Tracker) Finish(key string, value domain.PipelineResult, err error) {
	t.mu.Lock()
	f, ok := t.active[key]
	if ok {
		delete(t.active, key)
	}
	t.mu.Unlock()

	if !ok {
		return
	}
	f.value = value
	f.err = err
	close(f.done)
}

// IsActive reports whether key is currently being processed.
func (t *Tracker) IsActive(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.active[key]
	return ok
}

// Active returns the sorted set of keys currently being processed.
func (t *Tracker) Active() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	keys := make([]string, 0, len(t.active))
	for k := range t.active {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of active keys.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.active)
}
