// Package history keeps a ledger of completed extraction batches in a SQL
// database (SQLite by default, PostgreSQL optionally).
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/spherical-ai/spherical/libs/figure-service/internal/domain"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverNone     = "none"

	defaultLimit = 20
)

// ErrNotFound is returned when a batch id is unknown.
var ErrNotFound = errors.New("batch not found")

// DB represents a database connection interface.
type DB interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Entry is the listing view of one stored batch.
type Entry struct {
	BatchID        string    `json:"batch_id"`
	Source         string    `json:"source"`
	StartedAt      time.Time `json:"started_at"`
	ElapsedSeconds float64   `json:"elapsed_seconds"`
	Total          int       `json:"total"`
	Succeeded      int       `json:"succeeded"`
	Failed         int       `json:"failed"`
	Figures        int       `json:"figures"`
}

// Store persists batch results.
type Store struct {
	db     DB
	closer func() error
	pinger func(context.Context) error
}

// NewStore wraps an existing connection. The schema must already exist or be
// created with Migrate.
func NewStore(db DB) *Store {
	s := &Store{db: db}
	if sqlDB, ok := db.(*sql.DB); ok {
		s.closer = sqlDB.Close
		s.pinger = sqlDB.PingContext
	}
	return s
}

// Open connects to driver/dsn and creates the schema. DriverNone returns a nil
// store and no error.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	var sqlDriver string
	switch driver {
	case DriverNone, "":
		return nil, nil
	case DriverSQLite:
		sqlDriver = "sqlite3"
	case DriverPostgres:
		sqlDriver = "postgres"
	default:
		return nil, domain.ConfigError(fmt.Sprintf("unknown history driver %q", driver), nil)
	}

	db, err := sql.Open(sqlDriver, dsn)
	if err != nil {
		return nil, domain.ConfigError("failed to open history database", err)
	}
	if driver == DriverSQLite {
		// One connection keeps a shared in-memory database alive and avoids
		// SQLITE_BUSY between pooled connections.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, domain.ConfigError("failed to connect to history database", err)
	}

	s := NewStore(db)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates the batches table if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS figure_batches (
			id              TEXT PRIMARY KEY,
			source          TEXT NOT NULL,
			started_at      BIGINT NOT NULL,
			elapsed_seconds DOUBLE PRECISION NOT NULL,
			total           INTEGER NOT NULL,
			succeeded       INTEGER NOT NULL,
			failed          INTEGER NOT NULL,
			figures         INTEGER NOT NULL,
			result          TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_figure_batches_started_at ON figure_batches (started_at)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return domain.IOError("failed to create history schema", err)
		}
	}
	return nil
}

// Save stores result, replacing an earlier row with the same batch id.
func (s *Store) Save(ctx context.Context, result *domain.BatchResult) error {
	if result == nil || result.BatchID == "" {
		return domain.ValidationError("batch result has no id", nil)
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return domain.IOError("failed to encode batch result", err)
	}

	query := `
		INSERT INTO figure_batches (id, source, started_at, elapsed_seconds, total, succeeded, failed, figures, result)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			source = excluded.source,
			started_at = excluded.started_at,
			elapsed_seconds = excluded.elapsed_seconds,
			total = excluded.total,
			succeeded = excluded.succeeded,
			failed = excluded.failed,
			figures = excluded.figures,
			result = excluded.result
	`
	_, err = s.db.ExecContext(ctx, query,
		result.BatchID, result.Source, result.StartedAt.UnixNano(), result.ElapsedSeconds,
		result.Total, result.Succeeded, result.Failed, result.TotalFigures(), string(payload),
	)
	if err != nil {
		return domain.IOError("failed to save batch "+result.BatchID, err)
	}
	return nil
}

// Get returns the full batch result for id.
func (s *Store) Get(ctx context.Context, id string) (*domain.BatchResult, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT result FROM figure_batches WHERE id = $1`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFoundError("batch "+id+" not found", ErrNotFound)
	}
	if err != nil {
		return nil, domain.IOError("failed to load batch "+id, err)
	}

	var result domain.BatchResult
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return nil, domain.IOError("failed to decode batch "+id, err)
	}
	return &result, nil
}

// List returns the most recent batches, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = defaultLimit
	}

	query := `
		SELECT id, source, started_at, elapsed_seconds, total, succeeded, failed, figures
		FROM figure_batches
		ORDER BY started_at DESC
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, domain.IOError("failed to list batches", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var started int64
		if err := rows.Scan(&e.BatchID, &e.Source, &started, &e.ElapsedSeconds,
			&e.Total, &e.Succeeded, &e.Failed, &e.Figures); err != nil {
			return nil, domain.IOError("failed to scan batch row", err)
		}
		e.StartedAt = time.Unix(0, started).UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.IOError("failed to list batches", err)
	}
	return entries, nil
}

// Ping checks the underlying connection when the store owns one.
func (s *Store) Ping(ctx context.Context) error {
	if s.pinger == nil {
		return nil
	}
	return s.pinger(ctx)
}

// Close releases the underlying connection when the store owns one.
func (s *Store) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}
