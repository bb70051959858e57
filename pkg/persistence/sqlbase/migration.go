// Package sqlbase provides the base functionality for SQL database persistence.
package sqlbase

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"slices"
)

// migrationLockKey serializes migrations of the API and worker processes sharing one database.
const migrationLockKey = 7_106_142

// MigrationManager applies versioned schema migrations.
type MigrationManager struct {
	db         *sql.DB
	logger     *slog.Logger
	migrations map[int]string
}

func NewMigrationManager(logger *slog.Logger, db *sql.DB, migrations map[int]string) *MigrationManager {
	return &MigrationManager{
		db:         db,
		logger:     logger,
		migrations: migrations,
	}
}

// LatestVersion returns the highest migration version known to the manager.
func (m *MigrationManager) LatestVersion() int {
	return slices.Max(append(m.pending(0), 0))
}

// RunMigrations applies every pending migration in one transaction, holding an advisory lock so
// concurrent starters wait instead of racing. Nothing is applied if any migration fails.
func (m *MigrationManager) RunMigrations(ctx context.Context) error {
	m.logger.InfoContext(ctx, "Starting database migrations")

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin migration transaction: %w", err)
	}

	version, err := m.migrate(ctx, tx)
	if err != nil {
		_ = tx.Rollback()

		return err
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit migrations: %w", err)
	}

	m.logger.InfoContext(ctx, "Database migrations completed", "version", version)

	return nil
}

func (m *MigrationManager) migrate(ctx context.Context, tx *sql.Tx) (int, error) {
	_, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)", migrationLockKey)
	if err != nil {
		return 0, fmt.Errorf("failed to acquire migration lock: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	var current int

	err = tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current)
	if err != nil {
		return 0, fmt.Errorf("failed to query current schema version: %w", err)
	}

	m.logger.InfoContext(ctx, "Current schema version", "version", current)

	for _, version := range m.pending(current) {
		m.logger.InfoContext(ctx, "Applying migration", "version", version)

		_, err = tx.ExecContext(ctx, m.migrations[version])
		if err != nil {
			return 0, fmt.Errorf("failed to execute migration %d: %w", version, err)
		}

		_, err = tx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", version)
		if err != nil {
			return 0, fmt.Errorf("failed to record migration %d: %w", version, err)
		}

		current = version
	}

	return current, nil
}

// pending returns the versions newer than after, ascending.
func (m *MigrationManager) pending(after int) []int {
	versions := make([]int, 0, len(m.migrations))

	for version := range m.migrations {
		if version > after {
			versions = append(versions, version)
		}
	}

	slices.Sort(versions)

	return versions
}
