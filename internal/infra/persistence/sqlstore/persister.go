// Package sqlstore implements domain.Persister over database/sql. Records live
// in a single JSON table keyed by kind and id; trip manifests live in their own
// table keyed by trip id and row order.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io/fs"
	"strconv"
	"strings"

	"github.com/pressly/goose/v3"

	"tfdcore/pkg/domain"
)

// Dialect adapts the shared statements to one SQL engine.
type Dialect struct {
	Name    string
	Goose   goose.Dialect
	Numeric bool // $1, $2 placeholders instead of ?
}

// Dialects supported by the bundled migrations.
var (
	SQLite   = Dialect{Name: "sqlite", Goose: goose.DialectSQLite3}
	Postgres = Dialect{Name: "postgres", Goose: goose.DialectPostgres, Numeric: true}
)

// rebind rewrites ? placeholders for dialects that number them.
func (d Dialect) rebind(query string) string {
	if !d.Numeric {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Migrate applies the goose migrations in fsys to db.
func Migrate(ctx context.Context, db *sql.DB, dialect Dialect, fsys fs.FS) error {
	provider, err := goose.NewProvider(dialect.Goose, db, fsys)
	if err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

var _ domain.Persister = (*Persister)(nil)

// Persister writes records through a *sql.DB.
type Persister struct {
	db      *sql.DB
	dialect Dialect
	onClose func()

	upsert     string
	remove     string
	selectKind string
	selectRows string
	deleteRows string
	insertRow  string
}

// New wraps an open, migrated database. onClose runs after the database is closed.
func New(db *sql.DB, dialect Dialect, onClose func()) *Persister {
	return &Persister{
		db:         db,
		dialect:    dialect,
		onClose:    onClose,
		upsert:     dialect.rebind(`INSERT INTO records (kind, id, payload) VALUES (?, ?, ?) ON CONFLICT (kind, id) DO UPDATE SET payload = excluded.payload`),
		remove:     dialect.rebind(`DELETE FROM records WHERE kind = ? AND id = ?`),
		selectKind: dialect.rebind(`SELECT payload FROM records WHERE kind = ? ORDER BY id`),
		selectRows: `SELECT payload FROM trip_passengers ORDER BY trip_id, seq`,
		deleteRows: dialect.rebind(`DELETE FROM trip_passengers WHERE trip_id = ?`),
		insertRow:  dialect.rebind(`INSERT INTO trip_passengers (id, trip_id, seq, payload) VALUES (?, ?, ?, ?)`),
	}
}

// DB exposes the underlying handle.
func (p *Persister) DB() *sql.DB { return p.db }

// Driver names the backend.
func (p *Persister) Driver() string { return p.dialect.Name }

// Close releases the database.
func (p *Persister) Close() error {
	err := p.db.Close()
	if p.onClose != nil {
		p.onClose()
	}
	return err
}

// Upsert inserts or replaces one record.
func (p *Persister) Upsert(ctx context.Context, kind domain.EntityType, id string, record any) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal %s %s: %w", kind, id, err)
	}
	if _, err := p.db.ExecContext(ctx, p.upsert, string(kind), id, string(payload)); err != nil {
		return fmt.Errorf("upsert %s %s: %w", kind, id, err)
	}
	return nil
}

// Delete removes one record.
func (p *Persister) Delete(ctx context.Context, kind domain.EntityType, id string) error {
	if _, err := p.db.ExecContext(ctx, p.remove, string(kind), id); err != nil {
		return fmt.Errorf("delete %s %s: %w", kind, id, err)
	}
	return nil
}

// FetchAll returns every record of kind. Passenger rows come back grouped by
// trip in manifest order.
func (p *Persister) FetchAll(ctx context.Context, kind domain.EntityType) ([]json.RawMessage, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if kind == domain.EntityTripPassenger {
		rows, err = p.db.QueryContext(ctx, p.selectRows)
	} else {
		rows, err = p.db.QueryContext(ctx, p.selectKind, string(kind))
	}
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", kind, err)
	}
	defer func() { _ = rows.Close() }()
	var out []json.RawMessage
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan %s: %w", kind, err)
		}
		out = append(out, json.RawMessage(payload))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", kind, err)
	}
	return out, nil
}

// ReplaceTripPassengers swaps the manifest of tripID in one transaction.
func (p *Persister) ReplaceTripPassengers(ctx context.Context, tripID string, rows []domain.TripPassenger) error {
	return p.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, p.deleteRows, tripID); err != nil {
			return fmt.Errorf("clear passengers of %s: %w", tripID, err)
		}
		for i, row := range rows {
			row.TripID = tripID
			row.Seq = i
			payload, err := json.Marshal(row)
			if err != nil {
				return fmt.Errorf("marshal passenger %s: %w", row.ID, err)
			}
			if _, err := tx.ExecContext(ctx, p.insertRow, row.ID, tripID, i, string(payload)); err != nil {
				return fmt.Errorf("insert passenger %s: %w", row.ID, err)
			}
		}
		return nil
	})
}

// DeleteTrip removes the trip header and its manifest together.
func (p *Persister) DeleteTrip(ctx context.Context, tripID string) error {
	return p.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, p.deleteRows, tripID); err != nil {
			return fmt.Errorf("clear passengers of %s: %w", tripID, err)
		}
		if _, err := tx.ExecContext(ctx, p.remove, string(domain.EntityTrip), tripID); err != nil {
			return fmt.Errorf("delete trip %s: %w", tripID, err)
		}
		return nil
	})
}

func (p *Persister) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}
