// Package store provides storage backends for Kiara.
//
// This file implements the PostgreSQL-backed store.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	_ "embed"

	"github.com/kiara-bot/kiara/internal/models"
	_ "github.com/lib/pq"
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore implements Store on a PostgreSQL database.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL store with the given DSN.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	if cfg.DSN == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied")

	return &PostgresStore{db: db}, nil
}

// GetPageConfig returns the page record, or nil when unknown.
func (s *PostgresStore) GetPageConfig(ctx context.Context, pageID string) (*models.PageConfig, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT page_id, page_token, keywords_source_id, booking_source_id FROM page_configs WHERE page_id = $1`, pageID)
	return scanPageConfig(row)
}

// GetKeywords returns the keyword table for a source id, in declared order.
func (s *PostgresStore) GetKeywords(ctx context.Context, sourceID string) ([]models.KeywordEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT keywords, reply, extra FROM keywords WHERE source_id = $1 ORDER BY position`, sourceID)
	if err != nil {
		slog.Error("PostgresStore GetKeywords query failed", "error", err, "sourceID", sourceID)
		return nil, fmt.Errorf("failed to query keywords: %w", err)
	}
	defer rows.Close()
	return scanKeywords(rows)
}

// GetStepSequence returns the booking steps for a source id, in declared order.
func (s *PostgresStore) GetStepSequence(ctx context.Context, sourceID string) ([]models.StepDefinition, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT field_key, prompt, type, options FROM step_sequences WHERE source_id = $1 ORDER BY position`, sourceID)
	if err != nil {
		slog.Error("PostgresStore GetStepSequence query failed", "error", err, "sourceID", sourceID)
		return nil, fmt.Errorf("failed to query step sequence: %w", err)
	}
	defer rows.Close()
	return scanSteps(rows)
}

// SaveOrder persists a completed booking.
func (s *PostgresStore) SaveOrder(ctx context.Context, order models.Order) error {
	answers, err := json.Marshal(order.Answers)
	if err != nil {
		return fmt.Errorf("failed to encode order answers: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO orders (id, user_id, source_id, answers, completed_at) VALUES ($1, $2, $3, $4, $5)`,
		order.ID, order.UserID, order.SourceID, string(answers), order.CompletedAt)
	if err != nil {
		slog.Error("PostgresStore SaveOrder failed", "error", err, "userID", order.UserID)
		return fmt.Errorf("failed to insert order for %s: %w", order.UserID, err)
	}
	slog.Debug("PostgresStore SaveOrder succeeded", "orderID", order.ID, "userID", order.UserID)
	return nil
}

// LogUser appends a user sighting to the append-only log.
func (s *PostgresStore) LogUser(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_log (user_id, seen_at) VALUES ($1, NOW())`, userID)
	if err != nil {
		return fmt.Errorf("failed to log user %s: %w", userID, err)
	}
	return nil
}

// Ping verifies the database is reachable.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Compile-time check that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)
