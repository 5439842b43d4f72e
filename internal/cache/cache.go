// Package cache provides the pipeline result cache: a key/value store with
// per-entry expiry where a miss is a first-class result, not an error.
package cache

import (
	"time"

	"github.com/reelscope/reelscope/internal/domain"
)

// NeverExpires is the TTL for entries that persist for the process lifetime.
const NeverExpires time.Duration = 0

// Store is the result cache consumed by the pipeline coordinator.
type Store interface {
	// Get returns the entry for key, or ok=false on a miss or an expired entry.
	Get(key string) (domain.PipelineResult, bool)

	// Set stores value under key. A zero ttl means the entry never expires.
	Set(key string, value domain.PipelineResult, ttl time.Duration)

	// Delete removes the entry for key, if any.
	Delete(key string)

	// Len returns the number of live entries.
	Len() int

	// Close releases any resources held by the store.
	Close() error
}
