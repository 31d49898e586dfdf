package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// ErrMigrationFailed indicates a migration failure.
var ErrMigrationFailed = errors.New("postgres: migration failed")

// migrationLockID serialises migrators started by several replicas at once.
const migrationLockID = 0x6375727269 // "curri"

// Migration represents a database migration.
type Migration struct {
	Version   int
	Name      string
	UpSQL     string
	DownSQL   string
	AppliedAt time.Time
	IsApplied bool
}

// Migrator applies embedded migrations and records them in schema_migrations.
type Migrator struct {
	conn       *Connection
	migrations []Migration
	tableName  string
}

// NewMigrator creates a new migrator with embedded migrations.
func NewMigrator(conn *Connection) *Migrator {
	return NewMigratorWithMigrations(conn, Migrations())
}

// NewMigratorWithMigrations creates a migrator with custom migrations.
func NewMigratorWithMigrations(conn *Connection, migrations []Migration) *Migrator {
	return &Migrator{
		conn:       conn,
		migrations: migrations,
		tableName:  "schema_migrations",
	}
}

func (m *Migrator) ensureTable(ctx context.Context, q Querier) error {
	_, err := q.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)
	`, m.tableName))
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	return nil
}

func (m *Migrator) applied(ctx context.Context, q Querier) (map[int]time.Time, error) {
	rows, err := q.Query(ctx, fmt.Sprintf("SELECT version, applied_at FROM %s ORDER BY version", m.tableName))
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]time.Time)
	for rows.Next() {
		var version int
		var appliedAt time.Time
		if err := rows.Scan(&version, &appliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan migration row: %w", err)
		}
		applied[version] = appliedAt
	}
	return applied, rows.Err()
}

// locked runs fn in one transaction holding a transaction-scoped advisory lock.
func (m *Migrator) locked(ctx context.Context, fn func(pgx.Tx) error) error {
	return m.conn.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", migrationLockID); err != nil {
			return fmt.Errorf("failed to acquire migration lock: %w", err)
		}
		if err := m.ensureTable(ctx, tx); err != nil {
			return err
		}
		return fn(tx)
	})
}

// Migrate applies all pending migrations in version order. It returns the
// number of migrations applied.
func (m *Migrator) Migrate(ctx context.Context) (int, error) {
	count := 0
	err := m.locked(ctx, func(tx pgx.Tx) error {
		applied, err := m.applied(ctx, tx)
		if err != nil {
			return err
		}

		for _, mig := range m.migrations {
			if _, ok := applied[mig.Version]; ok {
				continue
			}
			if mig.UpSQL == "" {
				return fmt.Errorf("%w: missing up SQL for migration %d", ErrMigrationFailed, mig.Version)
			}
			if _, err := tx.Exec(ctx, mig.UpSQL); err != nil {
				return fmt.Errorf("%w: version %d (%s): %v", ErrMigrationFailed, mig.Version, mig.Name, err)
			}
			if _, err := tx.Exec(ctx,
				fmt.Sprintf("INSERT INTO %s (version, name) VALUES ($1, $2)", m.tableName),
				mig.Version, mig.Name,
			); err != nil {
				return fmt.Errorf("%w: record version %d: %v", ErrMigrationFailed, mig.Version, err)
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Rollback reverts the most recently applied migration. It returns the
// reverted version, or zero when nothing was applied.
func (m *Migrator) Rollback(ctx context.Context) (int, error) {
	var reverted int
	err := m.locked(ctx, func(tx pgx.Tx) error {
		applied, err := m.applied(ctx, tx)
		if err != nil {
			return err
		}

		last := 0
		for v := range applied {
			if v > last {
				last = v
			}
		}
		if last == 0 {
			return nil
		}

		var mig *Migration
		for i := range m.migrations {
			if m.migrations[i].Version == last {
				mig = &m.migrations[i]
				break
			}
		}
		if mig == nil || mig.DownSQL == "" {
			return fmt.Errorf("%w: missing down SQL for migration %d", ErrMigrationFailed, last)
		}

		if _, err := tx.Exec(ctx, mig.DownSQL); err != nil {
			return fmt.Errorf("%w: rollback %d: %v", ErrMigrationFailed, last, err)
		}
		if _, err := tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE version = $1", m.tableName), last); err != nil {
			return err
		}
		reverted = last
		return nil
	})
	return reverted, err
}

// Status returns every known migration with its applied state.
func (m *Migrator) Status(ctx context.Context) ([]Migration, error) {
	if err := m.ensureTable(ctx, m.conn); err != nil {
		return nil, err
	}
	applied, err := m.applied(ctx, m.conn)
	if err != nil {
		return nil, err
	}

	result := make([]Migration, len(m.migrations))
	copy(result, m.migrations)
	for i := range result {
		if at, ok := applied[result[i].Version]; ok {
			result[i].IsApplied = true
			result[i].AppliedAt = at
		}
	}
	return result, nil
}
