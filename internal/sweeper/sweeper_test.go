package sweeper

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/kiara-bot/kiara/internal/dedup"
	"github.com/kiara-bot/kiara/internal/models"
	"github.com/kiara-bot/kiara/internal/session"
	"github.com/kiara-bot/kiara/internal/store"
)

func newTestSweeper(opts ...Option) (*Sweeper, *session.Store, *dedup.MemoryCache, *store.MemoryStore) {
	sessions := session.NewStore()
	cache := dedup.NewMemoryCache()
	mem := store.NewMemoryStore()
	s := NewSweeper(sessions, session.NewKeyedLock(), cache, store.NewKeywordCache(mem), opts...)
	return s, sessions, cache, mem
}

func TestSweepSessions(t *testing.T) {
	s, sessions, _, _ := newTestSweeper(WithSessionTTL(30 * time.Minute))
	steps := []models.StepDefinition{{FieldKey: "name", Prompt: "Name?", Type: models.StepTypeText}}
	sessions.Create("user-fresh", steps, "src")
	sessions.Create("user-stale", steps, "src")

	stale, _ := sessions.Get("user-stale")
	stale.StartedAt = time.Now().Add(-time.Hour)
	sessions.Put(stale)

	s.SweepSessions(time.Now())
	if sessions.Exists("user-stale") {
		t.Error("stale session should be swept")
	}
	if !sessions.Exists("user-fresh") {
		t.Error("fresh session should survive")
	}
}

func TestResetDedup(t *testing.T) {
	ctx := context.Background()
	s, _, cache, _ := newTestSweeper(WithDedupCapacity(5))

	for i := 0; i < 4; i++ {
		cache.Remember(ctx, fmt.Sprintf("event-%d", i))
	}
	s.ResetDedup(ctx)
	if size, _ := cache.Size(ctx); size != 4 {
		t.Errorf("under-capacity cache was cleared, size = %d", size)
	}

	for i := 4; i < 10; i++ {
		cache.Remember(ctx, fmt.Sprintf("event-%d", i))
	}
	s.ResetDedup(ctx)
	if size, _ := cache.Size(ctx); size != 0 {
		t.Errorf("over-capacity cache not cleared, size = %d", size)
	}
}

func TestStartStop(t *testing.T) {
	s, _, _, _ := newTestSweeper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	s.Stop()
}
