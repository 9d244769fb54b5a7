// Package storage persists the practice library in PostgreSQL. Schema
// changes live in SQL migrations; every library mutation is applied as one
// transaction.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/meltforce/fretlog/internal/models"
)

// ErrNotMigrated means the database is reachable but the schema or its
// Unfiled seed row is missing.
var ErrNotMigrated = errors.New("database schema not migrated")

// DB is the PostgreSQL practice store.
type DB struct {
	Pool *pgxpool.Pool
}

// New connects, pings and checks that migrations have created the Unfiled
// folder every exercise falls back to.
func New(ctx context.Context, dsn string) (*DB, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("creating pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	db := &DB{Pool: pool}
	if err := db.checkSeed(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return db, nil
}

func (db *DB) checkSeed(ctx context.Context) error {
	var exists bool
	err := db.Pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM folders WHERE id = $1)`, models.UnfiledFolderID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("checking unfiled folder: %w: %w", ErrNotMigrated, err)
	}
	if !exists {
		return fmt.Errorf("unfiled folder missing: %w", ErrNotMigrated)
	}
	return nil
}

// Close closes the connection pool.
func (db *DB) Close() {
	db.Pool.Close()
}

// statement is one step of a planned change. what names it in errors.
type statement struct {
	what string
	sql  string
	args []any
}

// execAll runs stmts in order inside one transaction. Any failure rolls the
// whole set back.
func (db *DB) execAll(ctx context.Context, stmts []statement) error {
	if len(stmts) == 0 {
		return nil
	}
	return pgx.BeginFunc(ctx, db.Pool, func(tx pgx.Tx) error {
		for _, s := range stmts {
			if _, err := tx.Exec(ctx, s.sql, s.args...); err != nil {
				return fmt.Errorf("%s: %w", s.what, err)
			}
		}
		return nil
	})
}

// RunMigrations applies all pending migrations from the given directory.
func RunMigrations(dsn, migrationsPath string) error {
	src, err := migrationSource(migrationsPath)
	if err != nil {
		return err
	}
	m, err := migrate.New(src, dsn)
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

// migrationSource turns a directory into a file:// source URL. Relative
// paths resolve against the working directory.
func migrationSource(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving migrations path: %w", err)
	}
	return "file://" + filepath.ToSlash(abs), nil
}
