package core

import (
	"context"
	"time"

	"tfdcore/internal/infra/persistence/memory"
	"tfdcore/pkg/domain"
)

// Receipt is returned by every command. Result carries rule warnings from the
// commit; Persistence observes the asynchronous write to the backend.
type Receipt struct {
	Result      Result
	Persistence *PersistTicket
}

// Service exposes the transactional commands of the trip and appointment engine.
type Service struct {
	store    domain.EntityStore
	opts     serviceOptions
	queue    *PersistenceQueue
	capacity CapacityValidator
	conflict ConflictDetector
	machine  AppointmentStateMachine
}

// NewService constructs a service backed by store. When persister is nil,
// commands complete without a persistence phase.
func NewService(store domain.EntityStore, persister domain.Persister, opts ...ServiceOption) *Service {
	cfg := defaultServiceOptions()
	for _, opt := range opts {
		opt(&cfg)
	}
	svc := &Service{store: store, opts: cfg}
	if persister != nil {
		svc.queue = newPersistenceQueue(persister, cfg)
	}
	return svc
}

// NewInMemoryService creates a service and in-memory store with the given rules engine.
func NewInMemoryService(engine *RulesEngine, opts ...ServiceOption) *Service {
	cfg := defaultServiceOptions()
	for _, opt := range opts {
		opt(&cfg)
	}
	store := memory.NewStore(engine, memory.WithNowFunc(cfg.clock.Now))
	return NewService(store, nil, opts...)
}

// Store returns the underlying entity store.
func (s *Service) Store() domain.EntityStore { return s.store }

// Close drains pending persistence work.
func (s *Service) Close(ctx context.Context) error {
	if s.queue == nil {
		return nil
	}
	return s.queue.Close(ctx)
}

// Today returns the current calendar date in the configured location.
func (s *Service) Today() string {
	return s.opts.clock.Now().In(s.opts.location).Format(domain.DateLayout)
}

// run executes fn in a store transaction, records metrics, and enqueues the
// persistence of whatever was committed.
func (s *Service) run(ctx context.Context, op string, fn func(tx Transaction) error) (Receipt, error) {
	start := time.Now()
	var changes []Change
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		if err := fn(tx); err != nil {
			return err
		}
		changes = tx.Changes()
		return nil
	})
	s.opts.metrics.Observe(ctx, op, err == nil, time.Since(start))
	if err != nil {
		s.opts.logger.Warn("command rejected", "op", op, "error", err)
		return Receipt{Result: res}, err
	}
	for _, v := range res.Warnings() {
		s.opts.logger.Warn("rule warning", "op", op, "rule", v.Rule, "entity", string(v.Entity), "id", v.EntityID, "message", v.Message)
	}
	s.opts.logger.Debug("command committed", "op", op, "changes", len(changes))
	if s.queue == nil {
		return Receipt{Result: res, Persistence: completedTicket(op)}, nil
	}
	return Receipt{Result: res, Persistence: s.queue.Enqueue(op, changes)}, nil
}

// view runs fn against a read-only snapshot.
func (s *Service) view(ctx context.Context, fn func(TransactionView) error) error {
	return s.store.View(ctx, fn)
}

// ListTrips returns every trip with its manifest.
func (s *Service) ListTrips(ctx context.Context) ([]Trip, error) {
	var out []Trip
	err := s.view(ctx, func(v TransactionView) error {
		out = v.ListTrips()
		return nil
	})
	return out, err
}

// GetTrip returns one trip.
func (s *Service) GetTrip(ctx context.Context, id string) (Trip, error) {
	var out Trip
	err := s.view(ctx, func(v TransactionView) error {
		t, ok := v.FindTrip(id)
		if !ok {
			return domain.NotFound(domain.EntityTrip, id)
		}
		out = t
		return nil
	})
	return out, err
}

// ListAppointments returns appointments, optionally restricted to one date.
func (s *Service) ListAppointments(ctx context.Context, date string) ([]Appointment, error) {
	var out []Appointment
	err := s.view(ctx, func(v TransactionView) error {
		for _, a := range v.ListAppointments() {
			if date == "" || a.Date == date {
				out = append(out, a)
			}
		}
		return nil
	})
	return out, err
}

// GetAppointment returns one appointment.
func (s *Service) GetAppointment(ctx context.Context, id string) (Appointment, error) {
	var out Appointment
	err := s.view(ctx, func(v TransactionView) error {
		a, ok := v.FindAppointment(id)
		if !ok {
			return domain.NotFound(domain.EntityAppointment, id)
		}
		out = a
		return nil
	})
	return out, err
}

// CheckPatientTravel reports whether the patient is already on a non-cancelled trip that day.
func (s *Service) CheckPatientTravel(ctx context.Context, patientID, date, excludeTripID string) (TravelCheck, error) {
	var out TravelCheck
	err := s.view(ctx, func(v TransactionView) error {
		out = s.conflict.IsPatientTravelingOnDate(v, patientID, date, excludeTripID)
		return nil
	})
	return out, err
}

func (s *Service) checkNotRetroactive(entity EntityType, id, date string) error {
	if today := s.Today(); date < today {
		return domain.Errorf(domain.ErrRetroactiveDate, entity, id, "%s date %s is before today (%s)", entity, date, today)
	}
	return nil
}

func validDate(entity EntityType, id, date string) error {
	if date == "" {
		return domain.Errorf(domain.ErrValidation, entity, id, "%s requires date", entity)
	}
	if _, err := time.Parse(domain.DateLayout, date); err != nil {
		return domain.Errorf(domain.ErrValidation, entity, id, "invalid date %q", date)
	}
	return nil
}
