// Package dedup provides the seen-event cache that protects comment handling
// from webhook re-delivery.
//
// The cache is a capacity-bounded set of external event identifiers. When the
// background reset loop finds it over capacity it clears the whole set; this
// coarse reset trades occasional reprocessing after a clear for a hard memory
// bound, and is a deliberate simplicity choice rather than a correctness
// guarantee.
package dedup

import (
	"context"
	"log/slog"
	"sync"
)

// DefaultCapacity is the reset threshold for seen event identifiers.
const DefaultCapacity = 1000

// Cache records seen external event identifiers.
type Cache interface {
	// Remember inserts the identifier and reports whether it was fresh.
	// A false return means the event was already processed and must be dropped.
	Remember(ctx context.Context, eventID string) (bool, error)

	// Size returns the number of remembered identifiers.
	Size(ctx context.Context) (int64, error)

	// Reset clears all remembered identifiers.
	Reset(ctx context.Context) error
}

// MemoryCache is the process-local Cache implementation.
type MemoryCache struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{seen: make(map[string]struct{})}
}

// Remember inserts eventID and reports whether it was fresh.
func (c *MemoryCache) Remember(ctx context.Context, eventID string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, dup := c.seen[eventID]; dup {
		return false, nil
	}
	c.seen[eventID] = struct{}{}
	return true, nil
}

// Size returns the number of remembered identifiers.
func (c *MemoryCache) Size(ctx context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return int64(len(c.seen)), nil
}

// Reset clears all remembered identifiers.
func (c *MemoryCache) Reset(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	slog.Info("Dedup cache cleared", "entries", len(c.seen))
	c.seen = make(map[string]struct{})
	return nil
}

// ResetIfOver clears the cache when it holds more than capacity entries.
// Returns true if a reset happened.
func ResetIfOver(ctx context.Context, cache Cache, capacity int64) (bool, error) {
	size, err := cache.Size(ctx)
	if err != nil {
		return false, err
	}
	if size <= capacity {
		return false, nil
	}
	if err := cache.Reset(ctx); err != nil {
		return false, err
	}
	return true, nil
}
