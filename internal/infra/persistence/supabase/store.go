// Package supabase mirrors records to hosted Supabase tables over PostgREST.
// It expects the same records and trip_passengers tables the postgres
// migrations create.
package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/samber/lo"
	supa "github.com/supabase-community/supabase-go"

	"tfdcore/pkg/domain"
)

var _ domain.Persister = (*Persister)(nil)

const (
	recordsTable    = "records"
	passengersTable = "trip_passengers"
)

// Persister writes through the Supabase REST API. PostgREST offers no
// multi-statement transactions, so manifests are replaced by upserting the
// new rows before deleting stale ones.
type Persister struct {
	client *supa.Client
}

type recordRow struct {
	Kind    string          `json:"kind"`
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload"`
}

type passengerRow struct {
	ID      string          `json:"id"`
	TripID  string          `json:"trip_id"`
	Seq     int             `json:"seq"`
	Payload json.RawMessage `json:"payload"`
}

// Open builds a client for the project at url using a service key.
func Open(url, key string) (*Persister, error) {
	if url == "" || key == "" {
		return nil, errors.New("supabase url and key are required")
	}
	client, err := supa.NewClient(url, key, nil)
	if err != nil {
		return nil, fmt.Errorf("supabase client: %w", err)
	}
	return &Persister{client: client}, nil
}

// Driver names the backend.
func (p *Persister) Driver() string { return "supabase" }

// Close is a no-op; the client holds no pooled resources.
func (p *Persister) Close() error { return nil }

// Upsert inserts or replaces one record.
func (p *Persister) Upsert(ctx context.Context, kind domain.EntityType, id string, record any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal %s %s: %w", kind, id, err)
	}
	row := recordRow{Kind: string(kind), ID: id, Payload: payload}
	if _, _, err := p.client.From(recordsTable).Insert(row, true, "kind,id", "minimal", "").Execute(); err != nil {
		return fmt.Errorf("upsert %s %s: %w", kind, id, err)
	}
	return nil
}

// Delete removes one record.
func (p *Persister) Delete(ctx context.Context, kind domain.EntityType, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, _, err := p.client.From(recordsTable).Delete("minimal", "").Eq("kind", string(kind)).Eq("id", id).Execute(); err != nil {
		return fmt.Errorf("delete %s %s: %w", kind, id, err)
	}
	return nil
}

// FetchAll returns every record of kind.
func (p *Persister) FetchAll(ctx context.Context, kind domain.EntityType) ([]json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if kind == domain.EntityTripPassenger {
		data, _, err := p.client.From(passengersTable).Select("trip_id,seq,payload", "", false).Execute()
		if err != nil {
			return nil, fmt.Errorf("select passengers: %w", err)
		}
		var rows []passengerRow
		if err := json.Unmarshal(data, &rows); err != nil {
			return nil, fmt.Errorf("decode passengers: %w", err)
		}
		sort.SliceStable(rows, func(i, j int) bool {
			if rows[i].TripID != rows[j].TripID {
				return rows[i].TripID < rows[j].TripID
			}
			return rows[i].Seq < rows[j].Seq
		})
		return lo.Map(rows, func(r passengerRow, _ int) json.RawMessage { return r.Payload }), nil
	}
	data, _, err := p.client.From(recordsTable).Select("payload", "", false).Eq("kind", string(kind)).Order("id", nil).Execute()
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", kind, err)
	}
	var rows []recordRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("decode %s: %w", kind, err)
	}
	return lo.Map(rows, func(r recordRow, _ int) json.RawMessage { return r.Payload }), nil
}

// ReplaceTripPassengers upserts the manifest of tripID and removes rows that
// are no longer on it.
func (p *Persister) ReplaceTripPassengers(ctx context.Context, tripID string, rows []domain.TripPassenger) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	existing, err := p.passengerIDs(tripID)
	if err != nil {
		return err
	}
	fresh := make([]passengerRow, 0, len(rows))
	for i, row := range rows {
		row.TripID = tripID
		row.Seq = i
		payload, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("marshal passenger %s: %w", row.ID, err)
		}
		fresh = append(fresh, passengerRow{ID: row.ID, TripID: tripID, Seq: i, Payload: payload})
	}
	if len(fresh) > 0 {
		if _, _, err := p.client.From(passengersTable).Insert(fresh, true, "id", "minimal", "").Execute(); err != nil {
			return fmt.Errorf("upsert passengers of %s: %w", tripID, err)
		}
	}
	keep := lo.SliceToMap(fresh, func(r passengerRow) (string, struct{}) { return r.ID, struct{}{} })
	stale := lo.Reject(existing, func(id string, _ int) bool {
		_, ok := keep[id]
		return ok
	})
	if len(stale) == 0 {
		return nil
	}
	if _, _, err := p.client.From(passengersTable).Delete("minimal", "").In("id", stale).Execute(); err != nil {
		return fmt.Errorf("prune passengers of %s: %w", tripID, err)
	}
	return nil
}

// DeleteTrip removes the manifest rows and then the trip header.
func (p *Persister) DeleteTrip(ctx context.Context, tripID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, _, err := p.client.From(passengersTable).Delete("minimal", "").Eq("trip_id", tripID).Execute(); err != nil {
		return fmt.Errorf("delete passengers of %s: %w", tripID, err)
	}
	return p.Delete(ctx, domain.EntityTrip, tripID)
}

func (p *Persister) passengerIDs(tripID string) ([]string, error) {
	data, _, err := p.client.From(passengersTable).Select("id", "", false).Eq("trip_id", tripID).Execute()
	if err != nil {
		return nil, fmt.Errorf("select passengers of %s: %w", tripID, err)
	}
	var rows []passengerRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("decode passengers of %s: %w", tripID, err)
	}
	return lo.Map(rows, func(r passengerRow, _ int) string { return r.ID }), nil
}
