// Package store provides storage backends for Kiara.
//
// This file implements the SQLite-backed store.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	"github.com/kiara-bot/kiara/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore implements Store on a local SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN is a file path; its directory is created if missing.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied")

	return &SQLiteStore{db: db}, nil
}

// GetPageConfig returns the page record, or nil when unknown.
func (s *SQLiteStore) GetPageConfig(ctx context.Context, pageID string) (*models.PageConfig, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT page_id, page_token, keywords_source_id, booking_source_id FROM page_configs WHERE page_id = ?`, pageID)
	return scanPageConfig(row)
}

// GetKeywords returns the keyword table for a source id, in declared order.
func (s *SQLiteStore) GetKeywords(ctx context.Context, sourceID string) ([]models.KeywordEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT keywords, reply, extra FROM keywords WHERE source_id = ? ORDER BY position`, sourceID)
	if err != nil {
		slog.Error("SQLiteStore GetKeywords query failed", "error", err, "sourceID", sourceID)
		return nil, fmt.Errorf("failed to query keywords: %w", err)
	}
	defer rows.Close()
	return scanKeywords(rows)
}

// GetStepSequence returns the booking steps for a source id, in declared order.
func (s *SQLiteStore) GetStepSequence(ctx context.Context, sourceID string) ([]models.StepDefinition, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT field_key, prompt, type, options FROM step_sequences WHERE source_id = ? ORDER BY position`, sourceID)
	if err != nil {
		slog.Error("SQLiteStore GetStepSequence query failed", "error", err, "sourceID", sourceID)
		return nil, fmt.Errorf("failed to query step sequence: %w", err)
	}
	defer rows.Close()
	return scanSteps(rows)
}

// SaveOrder persists a completed booking. Answers are stored as JSON; Go's
// encoder writes map keys in sorted order, which keeps columns deterministic.
func (s *SQLiteStore) SaveOrder(ctx context.Context, order models.Order) error {
	answers, err := json.Marshal(order.Answers)
	if err != nil {
		return fmt.Errorf("failed to encode order answers: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO orders (id, user_id, source_id, answers, completed_at) VALUES (?, ?, ?, ?, ?)`,
		order.ID, order.UserID, order.SourceID, string(answers), order.CompletedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveOrder failed", "error", err, "userID", order.UserID)
		return fmt.Errorf("failed to insert order for %s: %w", order.UserID, err)
	}
	slog.Debug("SQLiteStore SaveOrder succeeded", "orderID", order.ID, "userID", order.UserID)
	return nil
}

// LogUser appends a user sighting to the append-only log.
func (s *SQLiteStore) LogUser(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_log (user_id, seen_at) VALUES (?, CURRENT_TIMESTAMP)`, userID)
	if err != nil {
		return fmt.Errorf("failed to log user %s: %w", userID, err)
	}
	return nil
}

// Ping verifies the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Compile-time check that SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)
