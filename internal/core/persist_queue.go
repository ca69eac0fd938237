package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"tfdcore/pkg/domain"
)

type jobAction int

const (
	jobUpsert jobAction = iota
	jobDelete
	jobReplacePassengers
	jobDeleteTrip
)

// persistJob is one backend call derived from a committed change.
type persistJob struct {
	action jobAction
	kind   EntityType
	id     string
	record any
	rows   []TripPassenger
}

func (j persistJob) key() string {
	return fmt.Sprintf("%d/%s/%s", j.action, j.kind, j.id)
}

// jobsFromChanges translates committed changes into backend calls. Later
// writes to the same record replace earlier ones.
func jobsFromChanges(changes []Change) []persistJob {
	var jobs []persistJob
	index := make(map[string]int)
	push := func(job persistJob) {
		if i, ok := index[job.key()]; ok {
			jobs[i] = job
			return
		}
		index[job.key()] = len(jobs)
		jobs = append(jobs, job)
	}
	for _, c := range changes {
		switch c.Entity {
		case domain.EntityTrip:
			if c.Action == domain.ActionDelete {
				if before, ok := c.Before.(Trip); ok {
					push(persistJob{action: jobDeleteTrip, kind: domain.EntityTrip, id: before.ID})
				}
				continue
			}
			after, ok := c.After.(Trip)
			if !ok {
				continue
			}
			push(persistJob{action: jobUpsert, kind: domain.EntityTrip, id: after.ID, record: after.Header()})
			push(persistJob{action: jobReplacePassengers, kind: domain.EntityTripPassenger, id: after.ID, rows: append([]TripPassenger(nil), after.Passengers...)})
		default:
			if c.Action == domain.ActionDelete {
				push(persistJob{action: jobDelete, kind: c.Entity, id: recordID(c.Before)})
				continue
			}
			push(persistJob{action: jobUpsert, kind: c.Entity, id: recordID(c.After), record: c.After})
		}
	}
	return jobs
}

func recordID(v any) string {
	switch r := v.(type) {
	case Patient:
		return r.ID
	case TreatmentType:
		return r.ID
	case Destination:
		return r.ID
	case Vehicle:
		return r.ID
	case Driver:
		return r.ID
	case Appointment:
		return r.ID
	case Trip:
		return r.ID
	case SupportHouse:
		return r.ID
	case PatientStay:
		return r.ID
	default:
		return ""
	}
}

// PersistTicket observes the asynchronous persistence of one command.
type PersistTicket struct {
	op   string
	done chan struct{}
	err  error
}

func newTicket(op string) *PersistTicket {
	return &PersistTicket{op: op, done: make(chan struct{})}
}

func completedTicket(op string) *PersistTicket {
	t := newTicket(op)
	close(t.done)
	return t
}

func (t *PersistTicket) finish(err error) {
	t.err = err
	close(t.done)
}

// Done is closed once every job of the command has been attempted.
func (t *PersistTicket) Done() <-chan struct{} { return t.done }

// Err returns the persistence failure, if any. Only meaningful after Done.
func (t *PersistTicket) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// Wait blocks until persistence finished or ctx is done.
func (t *PersistTicket) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

type persistBatch struct {
	op     string
	jobs   []persistJob
	ticket *PersistTicket
}

// PersistenceQueue mirrors committed changes to a domain.Persister in commit
// order using a single worker. Failures are retried with exponential backoff,
// then logged and reported; the in-memory state is never rolled back.
type PersistenceQueue struct {
	persister domain.Persister
	opts      serviceOptions

	mu      sync.Mutex
	pending []persistBatch
	closed  bool
	wake    chan struct{}
	stopped chan struct{}
}

func newPersistenceQueue(persister domain.Persister, opts serviceOptions) *PersistenceQueue {
	q := &PersistenceQueue{
		persister: persister,
		opts:      opts,
		wake:      make(chan struct{}, 1),
		stopped:   make(chan struct{}),
	}
	go q.loop()
	return q
}

// Enqueue schedules the jobs derived from a committed command.
func (q *PersistenceQueue) Enqueue(op string, changes []Change) *PersistTicket {
	jobs := jobsFromChanges(changes)
	if len(jobs) == 0 {
		return completedTicket(op)
	}
	ticket := newTicket(op)
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		ticket.finish(fmt.Errorf("%w: queue closed", domain.ErrPersistence))
		return ticket
	}
	q.pending = append(q.pending, persistBatch{op: op, jobs: jobs, ticket: ticket})
	// wake is only closed under mu, so the send cannot race Close
	select {
	case q.wake <- struct{}{}:
	default:
	}
	q.mu.Unlock()
	return ticket
}

// Close stops accepting work and waits for queued batches to drain.
func (q *PersistenceQueue) Close(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.wake)
	}
	q.mu.Unlock()
	select {
	case <-q.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *PersistenceQueue) next() (persistBatch, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return persistBatch{}, false
	}
	b := q.pending[0]
	q.pending = q.pending[1:]
	return b, true
}

func (q *PersistenceQueue) loop() {
	defer close(q.stopped)
	for {
		for {
			b, ok := q.next()
			if !ok {
				break
			}
			q.process(b)
		}
		if _, open := <-q.wake; !open {
			for {
				b, ok := q.next()
				if !ok {
					return
				}
				q.process(b)
			}
		}
	}
}

func (q *PersistenceQueue) process(b persistBatch) {
	var errs []error
	for _, job := range b.jobs {
		start := time.Now()
		err := q.apply(job)
		q.opts.metrics.Observe(context.Background(), "persist_"+string(job.kind), err == nil, time.Since(start))
		if err != nil {
			q.opts.logger.Error("persistence failed", "op", b.op, "kind", string(job.kind), "id", job.id, "driver", q.persister.Driver(), "error", err)
			errs = append(errs, fmt.Errorf("%w: %s %s: %w", domain.ErrPersistence, job.kind, job.id, err))
		}
	}
	err := errors.Join(errs...)
	if err == nil {
		q.opts.logger.Debug("persisted", "op", b.op, "jobs", len(b.jobs))
	}
	b.ticket.finish(err)
	if q.opts.listener != nil {
		q.opts.listener(PersistOutcome{Operation: b.op, Jobs: len(b.jobs), Err: err})
	}
}

func (q *PersistenceQueue) apply(job persistJob) error {
	backoff := retry.WithMaxRetries(q.opts.retries, retry.NewExponential(q.opts.backoff))
	return retry.Do(context.Background(), backoff, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, q.opts.jobTimeout)
		defer cancel()
		var err error
		switch job.action {
		case jobUpsert:
			err = q.persister.Upsert(ctx, job.kind, job.id, job.record)
		case jobDelete:
			err = q.persister.Delete(ctx, job.kind, job.id)
		case jobReplacePassengers:
			err = q.persister.ReplaceTripPassengers(ctx, job.id, job.rows)
		case jobDeleteTrip:
			err = q.persister.DeleteTrip(ctx, job.id)
		}
		if err != nil {
			q.opts.logger.Warn("persistence attempt failed", "kind", string(job.kind), "id", job.id, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
}
