package core

import (
	"context"
	"fmt"

	"tfdcore/internal/infra/persistence/memory"
	"tfdcore/internal/infra/persistence/postgres"
	"tfdcore/internal/infra/persistence/sqlite"
	"tfdcore/internal/infra/persistence/supabase"
	"tfdcore/pkg/domain"
)

// StorageDriver identifies a concrete persistence backend.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-process only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
	StorageSupabase StorageDriver = "supabase" // hosted Supabase tables over PostgREST
)

// StorageOptions selects and configures a backend.
type StorageOptions struct {
	Driver      StorageDriver
	SQLitePath  string
	PostgresDSN string
	SupabaseURL string
	SupabaseKey string
}

// OpenPersister opens the configured backend. Defaults to sqlite when unset.
func OpenPersister(ctx context.Context, opts StorageOptions) (domain.Persister, error) {
	driver := opts.Driver
	if driver == "" {
		driver = StorageSQLite
	}
	var (
		p   domain.Persister
		err error
	)
	switch driver {
	case StorageMemory:
		return memory.NewPersister(), nil
	case StorageSQLite:
		p, err = sqlite.Open(ctx, opts.SQLitePath)
	case StoragePostgres:
		p, err = postgres.Open(ctx, opts.PostgresDSN)
	case StorageSupabase:
		p, err = supabase.Open(opts.SupabaseURL, opts.SupabaseKey)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s storage: %w", driver, err)
	}
	return p, nil
}
