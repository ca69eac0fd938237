package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/samber/lo"

	"tfdcore/internal/core"
	"tfdcore/pkg/domain"
)

type tripRequest struct {
	core.TripDetails
	Passengers []core.TripPassenger `json:"passengers"`
}

type tripStatusRequest struct {
	Status domain.TripStatus `json:"status"`
}

type passengerStatusRequest struct {
	Status domain.PassengerStatus `json:"status"`
}

func (h *Handler) registerTrips(g *echo.Group) {
	g.GET("/trips", h.listTrips)
	g.POST("/trips", h.createTrip)
	g.GET("/trips/suggestions", h.suggestions)
	g.GET("/trips/:id", h.getTrip)
	g.PUT("/trips/:id", h.updateTrip)
	g.DELETE("/trips/:id", h.deleteTrip)
	g.POST("/trips/:id/status", h.changeTripStatus)
	g.POST("/trips/:id/passengers/:rowID/status", h.changePassengerStatus)
	g.GET("/conflicts", h.conflicts)
}

func (h *Handler) listTrips(c echo.Context) error {
	trips, err := h.svc.ListTrips(c.Request().Context())
	if err != nil {
		return err
	}
	if date := c.QueryParam("date"); date != "" {
		trips = lo.Filter(trips, func(t core.Trip, _ int) bool { return t.Date == date })
	}
	if trips == nil {
		trips = []core.Trip{}
	}
	return c.JSON(http.StatusOK, trips)
}

func (h *Handler) getTrip(c echo.Context) error {
	trip, err := h.svc.GetTrip(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, trip)
}

func (h *Handler) createTrip(c echo.Context) error {
	var req tripRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(err)
	}
	trip, receipt, err := h.svc.CreateTrip(c.Request().Context(), req.TripDetails, req.Passengers)
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, trip, receipt)
}

func (h *Handler) updateTrip(c echo.Context) error {
	var req tripRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(err)
	}
	trip, receipt, err := h.svc.UpdateTrip(c.Request().Context(), c.Param("id"), req.TripDetails, req.Passengers)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, trip, receipt)
}

func (h *Handler) deleteTrip(c echo.Context) error {
	receipt, err := h.svc.DeleteTrip(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return respond(c, http.StatusNoContent, nil, receipt)
}

func (h *Handler) changeTripStatus(c echo.Context) error {
	var req tripStatusRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(err)
	}
	trip, receipt, err := h.svc.UpdateTripStatus(c.Request().Context(), c.Param("id"), req.Status)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, trip, receipt)
}

func (h *Handler) changePassengerStatus(c echo.Context) error {
	var req passengerStatusRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(err)
	}
	trip, receipt, err := h.svc.SetPassengerStatus(c.Request().Context(), c.Param("id"), c.Param("rowID"), req.Status)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, trip, receipt)
}

func (h *Handler) conflicts(c echo.Context) error {
	patientID, date := c.QueryParam("patient_id"), c.QueryParam("date")
	if patientID == "" || date == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "patient_id and date are required")
	}
	check, err := h.svc.CheckPatientTravel(c.Request().Context(), patientID, date, c.QueryParam("exclude_trip_id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, check)
}
