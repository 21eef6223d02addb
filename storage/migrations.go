package storage

import (
	"database/sql"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Migration is one schema change, applied at most once
type Migration struct {
	Version int
	Name    string
	Up      func(*sql.Tx) error
}

// MigrationRecord is a row of schema_migrations
type MigrationRecord struct {
	Version   int
	Name      string
	AppliedAt time.Time
	Duration  time.Duration
}

// MigrationRunner applies registered migrations in version order
type MigrationRunner struct {
	db         *sql.DB
	logger     *zap.SugaredLogger
	migrations []Migration
}

// NewMigrationRunner creates a runner and its bookkeeping table
func NewMigrationRunner(db *sql.DB, logger *zap.SugaredLogger) (*MigrationRunner, error) {
	_, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TEXT NOT NULL,
		duration_ms INTEGER NOT NULL DEFAULT 0
	)`)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}
	return &MigrationRunner{db: db, logger: logger}, nil
}

// Register adds migrations to the runner
func (r *MigrationRunner) Register(ms ...Migration) {
	r.migrations = append(r.migrations, ms...)
}

// Applied returns the applied migrations ordered by version
func (r *MigrationRunner) Applied() ([]MigrationRecord, error) {
	rows, err := r.db.Query(`SELECT version, name, applied_at, duration_ms FROM schema_migrations ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer rows.Close()

	var records []MigrationRecord
	for rows.Next() {
		var (
			rec       MigrationRecord
			appliedAt string
			ms        int64
		)
		if err := rows.Scan(&rec.Version, &rec.Name, &appliedAt, &ms); err != nil {
			return nil, fmt.Errorf("failed to scan migration record: %w", err)
		}
		rec.AppliedAt, _ = time.Parse(time.RFC3339Nano, appliedAt)
		rec.Duration = time.Duration(ms) * time.Millisecond
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Pending returns the registered migrations not yet applied, by version
func (r *MigrationRunner) Pending() ([]Migration, error) {
	applied, err := r.Applied()
	if err != nil {
		return nil, err
	}
	done := make(map[int]bool, len(applied))
	for _, rec := range applied {
		done[rec.Version] = true
	}

	var pending []Migration
	for _, m := range r.migrations {
		if !done[m.Version] {
			pending = append(pending, m)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].Version < pending[j].Version })
	return pending, nil
}

// Run applies every pending migration, each in its own transaction. It
// stops at the first failure; earlier migrations stay applied.
func (r *MigrationRunner) Run() error {
	pending, err := r.Pending()
	if err != nil {
		return err
	}
	for _, m := range pending {
		if err := r.apply(m); err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", m.Version, m.Name, err)
		}
	}
	return nil
}

func (r *MigrationRunner) apply(m Migration) (err error) {
	start := time.Now()
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			err = fmt.Errorf("migration panicked: %v", p)
		}
	}()

	if err := m.Up(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	elapsed := time.Since(start)
	_, err = tx.Exec(`INSERT INTO schema_migrations (version, name, applied_at, duration_ms) VALUES (?, ?, ?, ?)`,
		m.Version, m.Name, time.Now().UTC().Format(time.RFC3339Nano), elapsed.Milliseconds())
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to record migration: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration: %w", err)
	}

	r.logger.Infow("Applied migration", "version", m.Version, "name", m.Name, "duration", elapsed)
	return nil
}

var sqlIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func validateSQLIdentifier(name string) error {
	if !sqlIdentifier.MatchString(name) {
		return fmt.Errorf("invalid SQL identifier %q", name)
	}
	return nil
}

// createIndexIfNotExists indexes columns (comma separated, each optionally
// followed by DESC) of table.
func createIndexIfNotExists(tx *sql.Tx, index, table, columns string) error {
	for _, name := range []string{index, table} {
		if err := validateSQLIdentifier(name); err != nil {
			return err
		}
	}
	for _, col := range strings.Split(columns, ",") {
		col = strings.TrimSuffix(strings.TrimSpace(col), " DESC")
		if err := validateSQLIdentifier(col); err != nil {
			return err
		}
	}
	_, err := tx.Exec(fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s(%s)", index, table, columns))
	return err
}
