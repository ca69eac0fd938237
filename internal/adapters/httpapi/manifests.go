package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"tfdcore/internal/core"
)

// manifestAddRequest carries a manifest draft and one passenger to add. The
// server keeps no draft state; the client sends the rows back each time.
type manifestAddRequest struct {
	Trip       core.ManifestTrip     `json:"trip"`
	Rows       []core.TripPassenger  `json:"rows"`
	Suggestion *suggestionAdd        `json:"suggestion,omitempty"`
	Manual     *core.ManualPassenger `json:"manual,omitempty"`
	Confirm    bool                  `json:"confirm"`
}

type suggestionAdd struct {
	AppointmentID string                  `json:"appointment_id"`
	Options       *core.SuggestionOptions `json:"options,omitempty"`
}

type manifestResponse struct {
	Trip      core.ManifestTrip    `json:"trip"`
	Rows      []core.TripPassenger `json:"rows"`
	Occupancy int                  `json:"occupancy"`
}

func (h *Handler) registerManifests(g *echo.Group) {
	g.POST("/manifests/add", h.addToManifest)
}

// suggestions lists appointments that can ride a trip. With trip_id the
// stored manifest is the starting point; otherwise date is required.
func (h *Handler) suggestions(c echo.Context) error {
	ctx := c.Request().Context()
	var builder *core.ManifestBuilder
	if tripID := c.QueryParam("trip_id"); tripID != "" {
		b, err := h.svc.EditManifest(ctx, tripID)
		if err != nil {
			return err
		}
		builder = b
	} else {
		date := c.QueryParam("date")
		if date == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "date or trip_id is required")
		}
		capacity := 0
		if raw := c.QueryParam("capacity"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				return badRequest(err)
			}
			capacity = n
		}
		builder = h.svc.NewManifest(core.ManifestTrip{
			Date:        date,
			Origin:      c.QueryParam("origin"),
			Destination: c.QueryParam("destination"),
			Capacity:    capacity,
		})
	}
	out, err := builder.Suggestions(ctx)
	if err != nil {
		return err
	}
	if out == nil {
		out = []core.Suggestion{}
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) addToManifest(c echo.Context) error {
	var req manifestAddRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(err)
	}
	if (req.Suggestion == nil) == (req.Manual == nil) {
		return echo.NewHTTPError(http.StatusBadRequest, "exactly one of suggestion or manual is required")
	}
	ctx := c.Request().Context()
	builder := core.NewManifestBuilder(h.svc.Store(), req.Trip, req.Rows)
	var (
		proposal *core.Proposal
		err      error
	)
	if req.Suggestion != nil {
		proposal, err = builder.AddSuggestion(ctx, req.Suggestion.AppointmentID, req.Suggestion.Options)
	} else {
		proposal, err = builder.AddManual(ctx, *req.Manual)
	}
	if err != nil {
		return err
	}
	if proposal.NeedsConfirmation() {
		if !req.Confirm {
			return needsConfirmation(c, proposal.Warnings)
		}
		if err := proposal.ProceedAnyway(ctx); err != nil && !errors.Is(err, core.ErrProposalApplied) {
			return err
		}
	}
	return c.JSON(http.StatusOK, manifestResponse{Trip: builder.Trip(), Rows: builder.Rows(), Occupancy: builder.Occupancy()})
}
