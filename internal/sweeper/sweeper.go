// Package sweeper runs the background maintenance jobs: stale session
// cleanup, dedup cache bounding and keyword table refresh.
package sweeper

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/kiara-bot/kiara/internal/dedup"
	"github.com/kiara-bot/kiara/internal/session"
	"github.com/kiara-bot/kiara/internal/store"
)

// Default maintenance cadence and limits.
const (
	DefaultSessionTTL  = 30 * time.Minute
	sessionSweepSpec   = "*/10 * * * *"
	dedupResetSpec     = "0 * * * *"
	keywordRefreshSpec = "*/30 * * * *"
)

// Opts holds configuration options for the sweeper.
type Opts struct {
	SessionTTL    time.Duration
	DedupCapacity int64
}

// Option defines a configuration option for the sweeper.
type Option func(*Opts)

// WithSessionTTL overrides how long a session may idle before sweeping.
func WithSessionTTL(ttl time.Duration) Option {
	return func(o *Opts) { o.SessionTTL = ttl }
}

// WithDedupCapacity overrides the dedup cache reset threshold.
func WithDedupCapacity(n int64) Option {
	return func(o *Opts) { o.DedupCapacity = n }
}

// Sweeper schedules the maintenance jobs on a cron runner.
type Sweeper struct {
	cron          *cron.Cron
	sessions      *session.Store
	locks         *session.KeyedLock
	cache         dedup.Cache
	keywords      *store.KeywordCache
	sessionTTL    time.Duration
	dedupCapacity int64
}

// NewSweeper creates a sweeper over the given stores. The keyed lock is the
// one the request paths use, so sweeping a user cannot race their transition.
func NewSweeper(sessions *session.Store, locks *session.KeyedLock, cache dedup.Cache, keywords *store.KeywordCache, opts ...Option) *Sweeper {
	cfg := Opts{
		SessionTTL:    DefaultSessionTTL,
		DedupCapacity: dedup.DefaultCapacity,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Sweeper{
		cron:          cron.New(),
		sessions:      sessions,
		locks:         locks,
		cache:         cache,
		keywords:      keywords,
		sessionTTL:    cfg.SessionTTL,
		dedupCapacity: cfg.DedupCapacity,
	}
}

// Start registers the maintenance jobs and starts the cron runner.
func (s *Sweeper) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(sessionSweepSpec, func() { s.SweepSessions(time.Now()) }); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(dedupResetSpec, func() { s.ResetDedup(ctx) }); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(keywordRefreshSpec, func() { s.RefreshKeywords(ctx) }); err != nil {
		return err
	}
	s.cron.Start()
	slog.Info("Sweeper started", "sessionTTL", s.sessionTTL, "dedupCapacity", s.dedupCapacity)
	return nil
}

// Stop halts the cron runner and waits for running jobs to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
	slog.Info("Sweeper stopped")
}

// SweepSessions removes sessions idle past the TTL. Each removal runs under
// the user's keyed lock and re-checks expiry, so a user mid-transition or a
// just-restarted booking is never swept.
func (s *Sweeper) SweepSessions(now time.Time) {
	removed := 0
	for _, userID := range s.sessions.ExpiredUserIDs(now, s.sessionTTL) {
		s.locks.With(userID, func() {
			if s.sessions.DeleteIfExpired(userID, now, s.sessionTTL) {
				removed++
			}
		})
	}
	if removed > 0 {
		slog.Info("Stale sessions swept", "removed", removed, "remaining", s.sessions.Len())
	}
}

// ResetDedup clears the dedup cache when it has grown past capacity.
func (s *Sweeper) ResetDedup(ctx context.Context) {
	cleared, err := dedup.ResetIfOver(ctx, s.cache, s.dedupCapacity)
	if err != nil {
		slog.Error("Dedup reset failed", "error", err)
		return
	}
	if cleared {
		slog.Info("Dedup cache reset", "capacity", s.dedupCapacity)
	}
}

// RefreshKeywords reloads every cached keyword table.
func (s *Sweeper) RefreshKeywords(ctx context.Context) {
	s.keywords.RefreshAll(ctx)
}
