package store

import (
	"context"
	"log/slog"
	"sync"

	"github.com/kiara-bot/kiara/internal/models"
)

// KeywordCache caches keyword tables per source id until explicitly
// refreshed. On a backend error it serves the last good copy, so a transient
// outage does not break auto-replies.
type KeywordCache struct {
	store Store
	mu    sync.RWMutex
	cache map[string][]models.KeywordEntry
}

// NewKeywordCache wraps a store with a per-source keyword cache.
func NewKeywordCache(st Store) *KeywordCache {
	return &KeywordCache{store: st, cache: make(map[string][]models.KeywordEntry)}
}

// Get returns the keyword table for a source id, loading it on first use.
// forceRefresh bypasses and replaces the cached copy.
func (k *KeywordCache) Get(ctx context.Context, sourceID string, forceRefresh bool) ([]models.KeywordEntry, error) {
	if !forceRefresh {
		k.mu.RLock()
		entries, ok := k.cache[sourceID]
		k.mu.RUnlock()
		if ok {
			return entries, nil
		}
	}

	entries, err := k.store.GetKeywords(ctx, sourceID)
	if err != nil {
		slog.Error("KeywordCache load failed", "error", err, "sourceID", sourceID)
		k.mu.RLock()
		cached, ok := k.cache[sourceID]
		k.mu.RUnlock()
		if ok {
			return cached, nil
		}
		return nil, err
	}

	k.mu.Lock()
	k.cache[sourceID] = entries
	k.mu.Unlock()
	slog.Debug("Keywords loaded", "sourceID", sourceID, "count", len(entries))
	return entries, nil
}

// RefreshAll reloads every cached source id. Used by the background refresh
// loop so sheet edits show up without a manual refresh.
func (k *KeywordCache) RefreshAll(ctx context.Context) {
	k.mu.RLock()
	sourceIDs := make([]string, 0, len(k.cache))
	for id := range k.cache {
		sourceIDs = append(sourceIDs, id)
	}
	k.mu.RUnlock()

	for _, id := range sourceIDs {
		if _, err := k.Get(ctx, id, true); err != nil {
			slog.Warn("Keyword refresh failed", "error", err, "sourceID", id)
		}
	}
}
