// Package httpapi exposes the trip and appointment service over HTTP with echo.
package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/lo"

	"tfdcore/internal/core"
	"tfdcore/pkg/domain"
)

// Handler serves /api/v1 on top of a Service.
type Handler struct {
	svc    *core.Service
	logger core.Logger
}

// Option customises a Handler or server.
type Option func(*config)

type config struct {
	logger   core.Logger
	gatherer prometheus.Gatherer
}

// WithLogger routes request and error logs to logger.
func WithLogger(l core.Logger) Option { return func(c *config) { c.logger = l } }

// WithMetrics serves the gatherer's series on /metrics.
func WithMetrics(g prometheus.Gatherer) Option { return func(c *config) { c.gatherer = g } }

// NewServer builds an echo instance with every route registered.
func NewServer(svc *core.Service, opts ...Option) *echo.Echo {
	cfg := config{logger: nopLogger{}}
	for _, opt := range opts {
		opt(&cfg)
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler(cfg.logger)
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			cfg.logger.Debug("http request", "method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency.String())
			return nil
		},
	}))
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)})
	})
	if cfg.gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(cfg.gatherer, promhttp.HandlerOpts{})))
	}
	h := &Handler{svc: svc, logger: cfg.logger}
	h.Register(e.Group("/api/v1"))
	return e
}

// Register mounts the API routes on g.
func (h *Handler) Register(g *echo.Group) {
	h.registerRegistry(g)
	h.registerAppointments(g)
	h.registerTrips(g)
	h.registerManifests(g)
	h.registerStays(g)
}

// envelope wraps successful command results with the rule warnings that
// were recorded at commit.
type envelope struct {
	Data     any           `json:"data"`
	Warnings []ruleWarning `json:"warnings,omitempty"`
}

type ruleWarning struct {
	Rule     string `json:"rule"`
	Message  string `json:"message"`
	Entity   string `json:"entity"`
	EntityID string `json:"entity_id"`
}

type errorBody struct {
	Error      string        `json:"error"`
	Kind       string        `json:"kind,omitempty"`
	Entity     string        `json:"entity,omitempty"`
	ID         string        `json:"id,omitempty"`
	Violations []ruleWarning `json:"violations,omitempty"`
}

type confirmationBody struct {
	Error    string           `json:"error"`
	Warnings []domain.Warning `json:"warnings"`
}

func toRuleWarnings(vs []domain.Violation) []ruleWarning {
	return lo.Map(vs, func(v domain.Violation, _ int) ruleWarning {
		return ruleWarning{Rule: v.Rule, Message: v.Message, Entity: string(v.Entity), EntityID: v.EntityID}
	})
}

// respond writes data with the receipt warnings. With ?wait=true the
// persistence phase is awaited and its failure reported as 502.
func respond(c echo.Context, status int, data any, receipt core.Receipt) error {
	if c.QueryParam("wait") == "true" && receipt.Persistence != nil {
		if err := receipt.Persistence.Wait(c.Request().Context()); err != nil {
			return err
		}
	}
	body := envelope{Data: data, Warnings: toRuleWarnings(receipt.Result.Warnings())}
	if status == http.StatusNoContent {
		if len(body.Warnings) == 0 {
			return c.NoContent(status)
		}
		status = http.StatusOK
	}
	return c.JSON(status, body)
}

// needsConfirmation answers 409 with the soft warnings a proposal holds.
func needsConfirmation(c echo.Context, warnings []domain.Warning) error {
	return c.JSON(http.StatusConflict, confirmationBody{Error: "confirmation required", Warnings: warnings})
}

var kindStatus = []struct {
	kind   error
	status int
	name   string
}{
	{domain.ErrNotFound, http.StatusNotFound, "not_found"},
	{domain.ErrPersistence, http.StatusBadGateway, "persistence"},
	{domain.ErrCapacityExceeded, http.StatusConflict, "capacity_exceeded"},
	{domain.ErrLinkage, http.StatusConflict, "linkage"},
	{domain.ErrVersionConflict, http.StatusConflict, "version_conflict"},
	{domain.ErrIllegalTransition, http.StatusConflict, "illegal_transition"},
	{domain.ErrDetachRequired, http.StatusConflict, "detach_required"},
	{domain.ErrRetroactiveDate, http.StatusUnprocessableEntity, "retroactive_date"},
	{domain.ErrDuplicateAppointment, http.StatusUnprocessableEntity, "duplicate_appointment"},
	{domain.ErrDuplicateInManifest, http.StatusUnprocessableEntity, "duplicate_in_manifest"},
	{domain.ErrManualAddNotAllowed, http.StatusUnprocessableEntity, "manual_add_not_allowed"},
	{domain.ErrValidation, http.StatusUnprocessableEntity, "validation"},
	{core.ErrProposalApplied, http.StatusConflict, "proposal_applied"},
}

// statusFor maps an error onto an HTTP status and a stable kind name.
func statusFor(err error) (int, string) {
	for _, ks := range kindStatus {
		if errors.Is(err, ks.kind) {
			return ks.status, ks.name
		}
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, ""
	}
	return http.StatusInternalServerError, "internal"
}

func errorHandler(logger core.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status, kind := statusFor(err)
		body := errorBody{Error: err.Error(), Kind: kind}
		var de *domain.Error
		if errors.As(err, &de) {
			body.Entity, body.ID = string(de.Entity), de.ID
		}
		var rv domain.RuleViolationError
		if errors.As(err, &rv) {
			body.Violations = toRuleWarnings(lo.Filter(rv.Result.Violations, func(v domain.Violation, _ int) bool {
				return v.Severity == domain.SeverityBlock
			}))
		}
		var he *echo.HTTPError
		if errors.As(err, &he) {
			body.Error = http.StatusText(he.Code)
			if msg, ok := he.Message.(string); ok {
				body.Error = msg
			}
		}
		if status >= http.StatusInternalServerError {
			logger.Error("request failed", "method", c.Request().Method, "path", c.Path(), "status", status, "error", err)
		}
		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(status)
		} else {
			werr = c.JSON(status, body)
		}
		if werr != nil {
			logger.Error("write error response", "error", werr)
		}
	}
}

func badRequest(err error) error {
	return echo.NewHTTPError(http.StatusBadRequest, err.Error())
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
