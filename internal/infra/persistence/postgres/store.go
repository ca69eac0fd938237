// Package postgres opens the PostgreSQL backend through a pgx pool and applies
// the bundled goose migrations on startup.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"tfdcore/internal/infra/persistence/sqlstore"
)

// DefaultDSN is used when no DSN is configured.
const DefaultDSN = "postgres://localhost/tfdcore?sslmode=disable"

//go:embed migrations/*.sql
var migrations embed.FS

// Open connects to dsn, migrates the schema and returns a persister. Closing
// the persister closes the pool.
func Open(ctx context.Context, dsn string) (*sqlstore.Persister, error) {
	db, pool, err := Connect(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		pool.Close()
		return nil, err
	}
	return sqlstore.New(db, sqlstore.Postgres, pool.Close), nil
}

// Connect opens a pool for dsn and a database/sql handle over it.
func Connect(ctx context.Context, dsn string) (*sql.DB, *pgxpool.Pool, error) {
	if dsn == "" {
		dsn = DefaultDSN
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping postgres: %w", err)
	}
	return stdlib.OpenDBFromPool(pool), pool, nil
}

// Migrate applies the bundled schema to db.
func Migrate(ctx context.Context, db *sql.DB) error {
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return err
	}
	return sqlstore.Migrate(ctx, db, sqlstore.Postgres, fsys)
}
