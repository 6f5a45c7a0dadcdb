// Package store provides the configuration and persistence backends for Kiara.
//
// It holds page provisioning records, keyword auto-reply tables, booking step
// sequences, confirmed orders, and the append-only user log, behind one
// interface with SQLite, PostgreSQL, and in-memory implementations.
package store

import (
	"context"

	"github.com/kiara-bot/kiara/internal/models"
)

// Store is the configuration and persistence interface consumed by the core.
type Store interface {
	// GetPageConfig returns the provisioning record for a page, or nil if the
	// page is unknown.
	GetPageConfig(ctx context.Context, pageID string) (*models.PageConfig, error)

	// GetKeywords returns the keyword auto-reply table for a source id, in
	// declared order.
	GetKeywords(ctx context.Context, sourceID string) ([]models.KeywordEntry, error)

	// GetStepSequence returns the ordered booking steps for a source id, or
	// an empty slice if none are configured.
	GetStepSequence(ctx context.Context, sourceID string) ([]models.StepDefinition, error)

	// SaveOrder persists a completed booking.
	SaveOrder(ctx context.Context, order models.Order) error

	// LogUser appends a user sighting to the append-only log.
	LogUser(ctx context.Context, userID string) error

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// Opts holds configuration options for store implementations.
type Opts struct {
	// DSN is the database connection string (file path for SQLite).
	DSN string
}

// Option defines a configuration option for store implementations.
type Option func(*Opts)

// WithSQLiteDSN configures the store to use an SQLite database file.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithPostgresDSN configures the store to use a PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType classifies a DSN as "postgres" or "sqlite".
// PostgreSQL DSNs use URL or key=value forms; anything else is treated as an
// SQLite file path.
func DetectDSNType(dsn string) string {
	if len(dsn) >= 11 && dsn[:11] == "postgres://" {
		return "postgres"
	}
	if len(dsn) >= 13 && dsn[:13] == "postgresql://" {
		return "postgres"
	}
	for i := 0; i+5 <= len(dsn); i++ {
		if dsn[i:i+5] == "host=" {
			return "postgres"
		}
	}
	return "sqlite"
}
