// Package migrations applies and rolls back the SQL files in migrations/.
//
// Files are named VERSION_NAME.sql and applied in lexical order; the
// matching VERSION_NAME_rollback.sql undoes one. Applied versions are
// recorded in schema_migrations.
package migrations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/pageza/foodgram/backend/internal/logger"
)

const rollbackSuffix = "_rollback.sql"

// ErrNothingToRollback is returned by Rollback when no migration is applied.
var ErrNothingToRollback = errors.New("no migrations to roll back")

const createTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
	version    TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Runner applies migrations from files against db.
type Runner struct {
	db    *sql.DB
	files fs.FS
}

func NewRunner(db *sql.DB, files fs.FS) *Runner {
	return &Runner{db: db, files: files}
}

// migrations lists forward migration files in application order.
func (r *Runner) migrations() ([]string, error) {
	entries, err := fs.ReadDir(r.files, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}
	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || path.Ext(name) != ".sql" || strings.HasSuffix(name, rollbackSuffix) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func version(name string) string {
	v, _, _ := strings.Cut(name, "_")
	return strings.TrimSuffix(v, ".sql")
}

// Up applies every migration not yet recorded and returns the files applied.
func (r *Runner) Up(ctx context.Context) ([]string, error) {
	if _, err := r.db.ExecContext(ctx, createTable); err != nil {
		return nil, fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	names, err := r.migrations()
	if err != nil {
		return nil, err
	}
	done, err := r.appliedVersions(ctx)
	if err != nil {
		return nil, err
	}

	var applied []string
	for _, name := range names {
		v := version(name)
		if done[v] {
			logger.Debug("migration already applied", "file", name)
			continue
		}
		if err := r.apply(ctx, name, func(tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, v, name)
			return err
		}); err != nil {
			return applied, err
		}
		logger.Info("migration applied", "file", name)
		applied = append(applied, name)
	}
	return applied, nil
}

// Rollback undoes the most recently applied migration and returns its file.
func (r *Runner) Rollback(ctx context.Context) (string, error) {
	var v, name string
	err := r.db.QueryRowContext(ctx,
		`SELECT version, name FROM schema_migrations ORDER BY applied_at DESC, version DESC LIMIT 1`,
	).Scan(&v, &name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNothingToRollback
	}
	if err != nil {
		return "", fmt.Errorf("failed to find last migration: %w", err)
	}

	rollback := strings.TrimSuffix(name, ".sql") + rollbackSuffix
	if err := r.apply(ctx, rollback, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM schema_migrations WHERE version = $1`, v)
		return err
	}); err != nil {
		return "", err
	}
	logger.Info("migration rolled back", "file", name)
	return name, nil
}

func (r *Runner) appliedVersions(ctx context.Context) (map[string]bool, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema_migrations: %w", err)
	}
	defer rows.Close()

	done := make(map[string]bool)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		done[v] = true
	}
	return done, rows.Err()
}

// apply runs file and record in one transaction.
func (r *Runner) apply(ctx context.Context, file string, record func(*sql.Tx) error) error {
	content, err := fs.ReadFile(r.files, file)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", file, err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	if _, err := tx.ExecContext(ctx, string(content)); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to execute %s: %w", file, err)
	}
	if err := record(tx); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to record %s: %w", file, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit %s: %w", file, err)
	}
	return nil
}
