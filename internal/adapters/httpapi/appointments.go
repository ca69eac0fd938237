package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"tfdcore/internal/core"
	"tfdcore/pkg/domain"
)

type statusRequest struct {
	Status domain.AppointmentStatus `json:"status"`
	TripID string                   `json:"trip_id"`
}

type dateRequest struct {
	Date    string `json:"date"`
	Confirm bool   `json:"confirm"`
}

func (h *Handler) registerAppointments(g *echo.Group) {
	g.GET("/appointments", h.listAppointments)
	g.POST("/appointments", h.createAppointment)
	g.GET("/appointments/:id", h.getAppointment)
	g.PUT("/appointments/:id", h.updateAppointment)
	g.DELETE("/appointments/:id", h.deleteAppointment)
	g.POST("/appointments/:id/status", h.changeAppointmentStatus)
	g.POST("/appointments/:id/date", h.changeAppointmentDate)
}

func (h *Handler) listAppointments(c echo.Context) error {
	items, err := h.svc.ListAppointments(c.Request().Context(), c.QueryParam("date"))
	if err != nil {
		return err
	}
	if items == nil {
		items = []core.Appointment{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) getAppointment(c echo.Context) error {
	appt, err := h.svc.GetAppointment(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, appt)
}

func (h *Handler) createAppointment(c echo.Context) error {
	var in core.AppointmentInput
	if err := c.Bind(&in); err != nil {
		return badRequest(err)
	}
	appt, receipt, err := h.svc.CreateAppointment(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, appt, receipt)
}

func (h *Handler) updateAppointment(c echo.Context) error {
	var in core.AppointmentInput
	if err := c.Bind(&in); err != nil {
		return badRequest(err)
	}
	appt, receipt, err := h.svc.UpdateAppointment(c.Request().Context(), c.Param("id"), in)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, appt, receipt)
}

func (h *Handler) deleteAppointment(c echo.Context) error {
	receipt, err := h.svc.DeleteAppointment(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return respond(c, http.StatusNoContent, nil, receipt)
}

func (h *Handler) changeAppointmentStatus(c echo.Context) error {
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(err)
	}
	appt, receipt, err := h.svc.ChangeAppointmentStatus(c.Request().Context(), c.Param("id"), req.Status, req.TripID)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, appt, receipt)
}

// changeAppointmentDate moves an appointment. A linked appointment answers
// 409 with the detach warning until the request is repeated with confirm.
func (h *Handler) changeAppointmentDate(c echo.Context) error {
	var req dateRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(err)
	}
	ctx := c.Request().Context()
	id := c.Param("id")
	if !req.Confirm {
		plan, err := h.svc.ProposeDateChange(ctx, id, req.Date)
		if err != nil {
			return err
		}
		if plan.RequiresDetachConfirmation {
			return needsConfirmation(c, plan.Proposal.Warnings)
		}
		return respond(c, http.StatusOK, plan.Appointment, plan.Receipt)
	}
	appt, receipt, err := h.svc.CommitDateChange(ctx, id, req.Date)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, appt, receipt)
}
