package store

import (
	"context"
	"sync"
	"time"

	"github.com/kiara-bot/kiara/internal/models"
)

// MemoryStore is an in-memory Store used in tests and single-process setups
// without a database.
type MemoryStore struct {
	mu          sync.RWMutex
	pageConfigs map[string]models.PageConfig
	keywords    map[string][]models.KeywordEntry
	steps       map[string][]models.StepDefinition
	orders      []models.Order
	userLog     []UserLogEntry
}

// UserLogEntry is one row of the append-only user log.
type UserLogEntry struct {
	UserID string
	SeenAt time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		pageConfigs: make(map[string]models.PageConfig),
		keywords:    make(map[string][]models.KeywordEntry),
		steps:       make(map[string][]models.StepDefinition),
	}
}

// SetPageConfig seeds a page provisioning record.
func (s *MemoryStore) SetPageConfig(cfg models.PageConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pageConfigs[cfg.PageID] = cfg
}

// SetKeywords seeds a keyword table for a source id.
func (s *MemoryStore) SetKeywords(sourceID string, entries []models.KeywordEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keywords[sourceID] = entries
}

// SetStepSequence seeds a booking step sequence for a source id.
func (s *MemoryStore) SetStepSequence(sourceID string, steps []models.StepDefinition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps[sourceID] = steps
}

// GetPageConfig returns the page record, or nil when unknown.
func (s *MemoryStore) GetPageConfig(ctx context.Context, pageID string) (*models.PageConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.pageConfigs[pageID]
	if !ok {
		return nil, nil
	}
	return &cfg, nil
}

// GetKeywords returns the keyword table for a source id.
func (s *MemoryStore) GetKeywords(ctx context.Context, sourceID string) ([]models.KeywordEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.keywords[sourceID]
	out := make([]models.KeywordEntry, len(entries))
	copy(out, entries)
	return out, nil
}

// GetStepSequence returns the booking steps for a source id.
func (s *MemoryStore) GetStepSequence(ctx context.Context, sourceID string) ([]models.StepDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	steps := s.steps[sourceID]
	out := make([]models.StepDefinition, len(steps))
	copy(out, steps)
	return out, nil
}

// SaveOrder records a completed booking.
func (s *MemoryStore) SaveOrder(ctx context.Context, order models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders = append(s.orders, order)
	return nil
}

// Orders returns all saved orders.
func (s *MemoryStore) Orders() []models.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Order, len(s.orders))
	copy(out, s.orders)
	return out
}

// LogUser appends a user sighting.
func (s *MemoryStore) LogUser(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userLog = append(s.userLog, UserLogEntry{UserID: userID, SeenAt: time.Now()})
	return nil
}

// UserLog returns the append-only user log.
func (s *MemoryStore) UserLog() []UserLogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]UserLogEntry, len(s.userLog))
	copy(out, s.userLog)
	return out
}

// Ping always succeeds for the in-memory store.
func (s *MemoryStore) Ping(ctx context.Context) error { return nil }

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }
