package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"tfdcore/pkg/domain"
)

var _ domain.Persister = (*Persister)(nil)

// Persister keeps records as JSON in process memory. It backs the "memory"
// storage driver and lets tests observe the persistence phase of commands.
type Persister struct {
	mu       sync.Mutex
	records  map[domain.EntityType]map[string]json.RawMessage
	failures []error
	calls    int
}

// NewPersister constructs an empty in-memory persister.
func NewPersister() *Persister {
	return &Persister{records: make(map[domain.EntityType]map[string]json.RawMessage)}
}

// Driver identifies the backend.
func (p *Persister) Driver() string { return "memory" }

// Close is a no-op.
func (p *Persister) Close() error { return nil }

// FailNext makes the next len(errs) calls return the given errors in order.
func (p *Persister) FailNext(errs ...error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures = append(p.failures, errs...)
}

// Calls returns how many backend operations were attempted.
func (p *Persister) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func (p *Persister) attempt() error {
	p.calls++
	if len(p.failures) == 0 {
		return nil
	}
	err := p.failures[0]
	p.failures = p.failures[1:]
	return err
}

func (p *Persister) bucket(kind domain.EntityType) map[string]json.RawMessage {
	b, ok := p.records[kind]
	if !ok {
		b = make(map[string]json.RawMessage)
		p.records[kind] = b
	}
	return b
}

// Upsert stores record under kind and id.
func (p *Persister) Upsert(_ context.Context, kind domain.EntityType, id string, record any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.attempt(); err != nil {
		return err
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal %s %s: %w", kind, id, err)
	}
	p.bucket(kind)[id] = payload
	return nil
}

// Delete removes a record.
func (p *Persister) Delete(_ context.Context, kind domain.EntityType, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.attempt(); err != nil {
		return err
	}
	delete(p.bucket(kind), id)
	return nil
}

// FetchAll returns the records of kind ordered by id.
func (p *Persister) FetchAll(_ context.Context, kind domain.EntityType) ([]json.RawMessage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.attempt(); err != nil {
		return nil, err
	}
	b := p.bucket(kind)
	ids := make([]string, 0, len(b))
	for id := range b {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]json.RawMessage, 0, len(ids))
	for _, id := range ids {
		out = append(out, append(json.RawMessage(nil), b[id]...))
	}
	return out, nil
}

// ReplaceTripPassengers swaps the manifest of tripID under a single lock.
func (p *Persister) ReplaceTripPassengers(_ context.Context, tripID string, rows []domain.TripPassenger) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.attempt(); err != nil {
		return err
	}
	encoded := make(map[string]json.RawMessage, len(rows))
	for _, row := range rows {
		payload, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("marshal passenger %s: %w", row.ID, err)
		}
		encoded[row.ID] = payload
	}
	b := p.bucket(domain.EntityTripPassenger)
	p.dropPassengers(b, tripID)
	for id, payload := range encoded {
		b[id] = payload
	}
	return nil
}

// DeleteTrip removes the trip header and its manifest.
func (p *Persister) DeleteTrip(_ context.Context, tripID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.attempt(); err != nil {
		return err
	}
	p.dropPassengers(p.bucket(domain.EntityTripPassenger), tripID)
	delete(p.bucket(domain.EntityTrip), tripID)
	return nil
}

func (p *Persister) dropPassengers(b map[string]json.RawMessage, tripID string) {
	for id, payload := range b {
		var row struct {
			TripID string `json:"trip_id"`
		}
		if err := json.Unmarshal(payload, &row); err == nil && row.TripID == tripID {
			delete(b, id)
		}
	}
}
