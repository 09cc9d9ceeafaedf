package idempotent

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/pressly/goose/v3"
	"golang.org/x/sync/singleflight"

	// Pure-Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Step status constants for the steps.status column.
const (
	statusDone   = "done"
	statusFailed = "failed"
)

const (
	sqlGetStep = `SELECT result, status FROM steps WHERE key = ?`

	sqlUpsertStep = `INSERT INTO steps (key, label, status, result, error, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
		 label = excluded.label,
		 status = excluded.status,
		 result = excluded.result,
		 error = excluded.error,
		 updated_at = excluded.updated_at`

	sqlListSteps = `SELECT key, label, status, result, error, updated_at
		FROM steps ORDER BY key`

	sqlListFailed = `SELECT key, label, error FROM steps
		WHERE status = ? ORDER BY key`
)

// StepRecord is one persisted step outcome, as shown by the status
// command.
type StepRecord struct {
	Key       string
	Label     string
	Status    string
	Result    string
	Error     string
	UpdatedAt time.Time
}

// Store is an Executor whose key cache survives process restarts: an
// interrupted job rerun against the same database skips every step that
// already succeeded. The database is opened in WAL mode with a single
// writer connection.
type Store struct {
	db      *sql.DB
	logger  *slog.Logger
	flight  singleflight.Group
	nowFunc func() time.Time // injectable for deterministic tests
}

// OpenStore opens (or creates) the step database at dbPath and applies
// pending schema migrations.
func OpenStore(dbPath string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	// DSN parameters ensure pragmas apply to every pooled connection.
	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(FULL)&_pragma=busy_timeout(5000)",
		dbPath,
	)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("idempotent: opening database %s: %w", dbPath, err)
	}

	// Sole-writer pattern: one connection writes at a time.
	db.SetMaxOpenConns(1)

	if err := runMigrations(context.Background(), db, logger); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("step store opened", slog.String("db_path", dbPath))

	return &Store{db: db, logger: logger, nowFunc: time.Now}, nil
}

// runMigrations applies all pending schema migrations using the goose v3
// Provider API (no global state, context-aware).
func runMigrations(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	subFS, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("idempotent: creating migration sub-filesystem: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, db, subFS)
	if err != nil {
		return fmt.Errorf("idempotent: creating migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("idempotent: running migrations: %w", err)
	}

	for _, r := range results {
		logger.Info("applied migration",
			slog.String("source", r.Source.Path),
			slog.Int64("duration_ms", r.Duration.Milliseconds()),
		)
	}

	return nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// ExecuteOnce implements Executor. A step that succeeded in any earlier
// run of the job short-circuits from the database without invoking fn.
func (s *Store) ExecuteOnce(ctx context.Context, key, label string, fn StepFn) (string, error) {
	if v, ok := s.Cached(key); ok {
		s.logger.Debug("step already executed, returning persisted result",
			slog.String("key", key),
			slog.String("label", label),
		)

		return v, nil
	}

	v, err, _ := s.flight.Do(key, func() (any, error) {
		if cached, ok := s.Cached(key); ok {
			return cached, nil
		}

		res, stepErr := fn(ctx)
		if stepErr != nil {
			s.record(ctx, key, label, statusFailed, "", stepErr.Error())

			return "", stepErr
		}

		s.record(ctx, key, label, statusDone, res, "")

		return res, nil
	})
	if err != nil {
		return "", fmt.Errorf("idempotent: step %q (key %s): %w", label, key, err)
	}

	return v.(string), nil
}

// record upserts a step outcome. Persistence failures are logged, not
// propagated: losing a cache row costs a redundant (idempotent) network
// call on the next run, while failing the step would discard real work.
func (s *Store) record(ctx context.Context, key, label, status, result, errMsg string) {
	_, err := s.db.ExecContext(ctx, sqlUpsertStep,
		key, label, status, result, errMsg, s.nowFunc().Unix(),
	)
	if err != nil {
		s.logger.Warn("failed to persist step outcome",
			slog.String("key", key),
			slog.String("status", status),
			slog.String("error", err.Error()),
		)
	}
}

// Cached implements Executor.
func (s *Store) Cached(key string) (string, bool) {
	var (
		result string
		status string
	)

	err := s.db.QueryRow(sqlGetStep, key).Scan(&result, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false
	}

	if err != nil {
		s.logger.Warn("failed to read step cache",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)

		return "", false
	}

	if status != statusDone {
		return "", false
	}

	return result, true
}

// Errors implements Executor.
func (s *Store) Errors() []KeyError {
	rows, err := s.db.Query(sqlListFailed, statusFailed)
	if err != nil {
		s.logger.Warn("failed to list failed steps", slog.String("error", err.Error()))
		return nil
	}
	defer rows.Close()

	var errs []KeyError

	for rows.Next() {
		var key, label, errMsg string
		if scanErr := rows.Scan(&key, &label, &errMsg); scanErr != nil {
			s.logger.Warn("failed to scan failed step", slog.String("error", scanErr.Error()))
			continue
		}

		errs = append(errs, KeyError{Key: key, Label: label, Err: errors.New(errMsg)})
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		s.logger.Warn("failed to iterate failed steps", slog.String("error", rowsErr.Error()))
	}

	return errs
}

// List returns every persisted step outcome, ordered by key.
func (s *Store) List(ctx context.Context) ([]StepRecord, error) {
	rows, err := s.db.QueryContext(ctx, sqlListSteps)
	if err != nil {
		return nil, fmt.Errorf("idempotent: listing steps: %w", err)
	}
	defer rows.Close()

	var records []StepRecord

	for rows.Next() {
		var (
			rec StepRecord
			ts  int64
		)

		if scanErr := rows.Scan(&rec.Key, &rec.Label, &rec.Status, &rec.Result, &rec.Error, &ts); scanErr != nil {
			return nil, fmt.Errorf("idempotent: scanning step row: %w", scanErr)
		}

		rec.UpdatedAt = time.Unix(ts, 0).UTC()
		records = append(records, rec)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("idempotent: iterating steps: %w", rowsErr)
	}

	return records, nil
}
