package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"tfdcore/internal/core"
)

type checkoutRequest struct {
	ExitDate string `json:"exit_date"`
	ExitTime string `json:"exit_time"`
}

func (h *Handler) registerStays(g *echo.Group) {
	g.GET("/stays", h.listStays)
	g.POST("/stays", h.checkIn)
	g.POST("/stays/:id/checkout", h.checkOut)
	g.POST("/stays/:id/cancel", h.cancelStay)
}

func (h *Handler) listStays(c echo.Context) error {
	stays, err := h.svc.ListPatientStays(c.Request().Context())
	if err != nil {
		return err
	}
	if stays == nil {
		stays = []core.PatientStay{}
	}
	return c.JSON(http.StatusOK, stays)
}

func (h *Handler) checkIn(c echo.Context) error {
	var in core.StayInput
	if err := c.Bind(&in); err != nil {
		return badRequest(err)
	}
	stay, receipt, err := h.svc.CheckInStay(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, stay, receipt)
}

func (h *Handler) checkOut(c echo.Context) error {
	var req checkoutRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(err)
	}
	stay, receipt, err := h.svc.CheckOutStay(c.Request().Context(), c.Param("id"), req.ExitDate, req.ExitTime)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, stay, receipt)
}

func (h *Handler) cancelStay(c echo.Context) error {
	stay, receipt, err := h.svc.CancelStay(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, stay, receipt)
}
