package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chis/imagesmith/internal/logging"

	_ "modernc.org/sqlite" // SQLite driver
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStorage implements the Storage interface using SQLite.
type SQLiteStorage struct {
	db     *sql.DB
	dbPath string
	log    *logging.Logger
}

// NewSQLiteStorage creates a new SQLite storage instance.
// Creates the parent directory, enables WAL mode, and runs migrations.
// Returns nil and an error if initialization fails.
func NewSQLiteStorage(dbPath string, log *logging.Logger) (*SQLiteStorage, error) {
	log = logging.OrDefault(log).Named("storage")

	if dir := filepath.Dir(dbPath); dir != "." && dir != "/" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite serializes writers; one connection avoids SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	storage := &SQLiteStorage{
		db:     db,
		dbPath: dbPath,
		log:    log,
	}

	if err := storage.enableWALMode(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := storage.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Debug("History database ready at %s", dbPath)
	return storage, nil
}

// enableWALMode enables Write-Ahead Logging mode for better concurrency.
func (s *SQLiteStorage) enableWALMode() error {
	if _, err := s.db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("failed to set WAL mode: %w", err)
	}

	var mode string
	if err := s.db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		return fmt.Errorf("failed to verify WAL mode: %w", err)
	}
	if mode != "wal" {
		return fmt.Errorf("WAL mode not enabled, got: %s", mode)
	}
	return nil
}

// runMigrations executes all migration files in order.
func (s *SQLiteStorage) runMigrations() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	applied := 0
	for _, entry := range entries {
		filename := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(filename, ".up.sql") {
			continue
		}

		// "000001_create_run_history.up.sql" -> 1
		var version int
		if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
			s.log.Warn("Skipping invalid migration filename: %s", filename)
			continue
		}

		var count int
		err = s.db.QueryRow("SELECT COUNT(*) FROM schema_migrations WHERE version = ?", version).Scan(&count)
		if err != nil {
			return fmt.Errorf("failed to check migration status: %w", err)
		}
		if count > 0 {
			continue
		}

		migrationSQL, err := migrationsFS.ReadFile("migrations/" + filename)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", filename, err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %s: %w", filename, err)
		}
		if _, err := tx.Exec(string(migrationSQL)); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %s: %w", filename, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %s: %w", filename, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %s: %w", filename, err)
		}

		s.log.Debug("Applied migration: %s", filename)
		applied++
	}

	if applied > 0 {
		s.log.Debug("Migrations complete: %d applied", applied)
	}
	return nil
}

// SaveRun implements Storage.SaveRun.
func (s *SQLiteStorage) SaveRun(ctx context.Context, run RunRecord) error {
	if run.RunID == "" {
		return fmt.Errorf("run ID is required")
	}

	return s.retryWithBackoff(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback()

		for _, table := range []string{"outcomes", "runs"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE run_id = ?", run.RunID); err != nil {
				return fmt.Errorf("failed to replace run %s: %w", run.RunID, err)
			}
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO runs
			(run_id, command, namespace, mode, dry_run, succeeded, failed, skipped, error, started_at, ended_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, run.RunID, run.Command, run.Namespace, run.Mode, run.DryRun,
			run.Succeeded, run.Failed, run.Skipped, nullString(run.Error),
			run.StartedAt.UTC(), run.EndedAt.UTC())
		if err != nil {
			return fmt.Errorf("failed to insert run: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO outcomes
			(run_id, position, namespace, variant, state, status, tags, pushed, failed_pushes, digest, detail, error, duration_ms)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for i, o := range run.Outcomes {
			tags, err := marshalList(o.Tags)
			if err != nil {
				return err
			}
			pushed, err := marshalList(o.Pushed)
			if err != nil {
				return err
			}
			failedPushes, err := marshalList(o.FailedPushes)
			if err != nil {
				return err
			}
			_, err = stmt.ExecContext(ctx, run.RunID, i, o.Namespace, o.Variant, o.State, o.Status,
				tags, pushed, failedPushes, nullString(o.Digest), nullString(o.Detail), nullString(o.Error),
				o.Duration.Milliseconds())
			if err != nil {
				return fmt.Errorf("failed to insert outcome %s: %w", o.Variant, err)
			}
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit transaction: %w", err)
		}

		s.log.DebugContext(ctx, "Recorded %s run %s: %d outcome(s)", run.Command, run.RunID, len(run.Outcomes))
		return nil
	})
}

// ListRuns implements Storage.ListRuns.
func (s *SQLiteStorage) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	query := appendLimitClause(`
		SELECT id, run_id, command, namespace, mode, dry_run, succeeded, failed, skipped, error, started_at, ended_at
		FROM runs
		ORDER BY started_at DESC, id DESC
	`, limit)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	return scanRunRows(rows)
}

// GetRun implements Storage.GetRun.
func (s *SQLiteStorage) GetRun(ctx context.Context, runID string) (RunRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, command, namespace, mode, dry_run, succeeded, failed, skipped, error, started_at, ended_at
		FROM runs
		WHERE run_id = ?
	`, runID)
	if err != nil {
		return RunRecord{}, fmt.Errorf("failed to query run: %w", err)
	}
	runs, err := scanRunRows(rows)
	rows.Close()
	if err != nil {
		return RunRecord{}, err
	}
	if len(runs) == 0 {
		return RunRecord{}, fmt.Errorf("%s: %w", runID, ErrRunNotFound)
	}
	run := runs[0]

	outcomeRows, err := s.db.QueryContext(ctx, `
		SELECT namespace, variant, state, status, tags, pushed, failed_pushes, digest, detail, error, duration_ms
		FROM outcomes
		WHERE run_id = ?
		ORDER BY position
	`, runID)
	if err != nil {
		return RunRecord{}, fmt.Errorf("failed to query outcomes: %w", err)
	}
	defer outcomeRows.Close()

	run.Outcomes, err = scanOutcomeRows(outcomeRows)
	if err != nil {
		return RunRecord{}, err
	}
	return run, nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// retryWithBackoff executes a function with exponential backoff for SQLITE_BUSY errors.
func (s *SQLiteStorage) retryWithBackoff(ctx context.Context, operation func() error) error {
	maxRetries := 5
	baseDelay := 10 * time.Millisecond

	for attempt := 0; attempt < maxRetries; attempt++ {
		err := operation()
		if err == nil {
			return nil
		}
		if !isBusy(err) {
			return err
		}

		delay := baseDelay * time.Duration(1<<uint(attempt))
		if delay > time.Second {
			delay = time.Second
		}
		s.log.WarnContext(ctx, "Database locked, retrying in %v (attempt %d/%d)", delay, attempt+1, maxRetries)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return fmt.Errorf("database operation failed after %d retries", maxRetries)
}

func isBusy(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "database table is locked")
}
