package core

import (
	"context"
	"time"
)

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

// Logger is the structured logging surface the service writes to. Arguments
// are alternating key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// MetricsRecorder observes operation outcomes.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

// PersistOutcome reports the persistence phase of one committed command.
type PersistOutcome struct {
	Operation string
	Jobs      int
	Err       error
}

// ServiceOption customises Service construction.
type ServiceOption func(*serviceOptions)

type serviceOptions struct {
	clock      Clock
	location   *time.Location
	logger     Logger
	metrics    MetricsRecorder
	listener   func(PersistOutcome)
	retries    uint64
	backoff    time.Duration
	jobTimeout time.Duration
}

func defaultServiceOptions() serviceOptions {
	return serviceOptions{
		clock:      ClockFunc(func() time.Time { return time.Now().UTC() }),
		location:   time.UTC,
		logger:     noopLogger{},
		metrics:    noopMetrics{},
		retries:    3,
		backoff:    200 * time.Millisecond,
		jobTimeout: 15 * time.Second,
	}
}

// WithClock overrides the service clock. "Today" for date policies derives from it.
func WithClock(clock Clock) ServiceOption {
	return func(o *serviceOptions) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithLocation sets the timezone used to compute the current calendar date.
func WithLocation(loc *time.Location) ServiceOption {
	return func(o *serviceOptions) {
		if loc != nil {
			o.location = loc
		}
	}
}

// WithLogger routes service logs to logger.
func WithLogger(logger Logger) ServiceOption {
	return func(o *serviceOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetricsRecorder records operation timings.
func WithMetricsRecorder(metrics MetricsRecorder) ServiceOption {
	return func(o *serviceOptions) {
		if metrics != nil {
			o.metrics = metrics
		}
	}
}

// WithPersistenceListener is notified after every persistence batch.
func WithPersistenceListener(fn func(PersistOutcome)) ServiceOption {
	return func(o *serviceOptions) {
		o.listener = fn
	}
}

// WithPersistRetry bounds persistence retries. base is the first backoff interval.
func WithPersistRetry(maxRetries uint64, base time.Duration) ServiceOption {
	return func(o *serviceOptions) {
		o.retries = maxRetries
		if base > 0 {
			o.backoff = base
		}
	}
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

type noopMetrics struct{}

func (noopMetrics) Observe(context.Context, string, bool, time.Duration) {}
