package httpapi

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"tfdcore/internal/core"
)

// crud binds the list/create/replace/delete routes of one registry collection.
type crud[T any] struct {
	list  func(context.Context) ([]T, error)
	save  func(context.Context, T) (T, core.Receipt, error)
	del   func(context.Context, string) (core.Receipt, error)
	setID func(*T, string)
}

func (r crud[T]) mount(g *echo.Group, path string) {
	g.GET(path, func(c echo.Context) error {
		items, err := r.list(c.Request().Context())
		if err != nil {
			return err
		}
		if items == nil {
			items = []T{}
		}
		return c.JSON(http.StatusOK, items)
	})
	g.POST(path, func(c echo.Context) error {
		var item T
		if err := c.Bind(&item); err != nil {
			return badRequest(err)
		}
		r.setID(&item, "")
		saved, receipt, err := r.save(c.Request().Context(), item)
		if err != nil {
			return err
		}
		return respond(c, http.StatusCreated, saved, receipt)
	})
	g.PUT(path+"/:id", func(c echo.Context) error {
		var item T
		if err := c.Bind(&item); err != nil {
			return badRequest(err)
		}
		r.setID(&item, c.Param("id"))
		saved, receipt, err := r.save(c.Request().Context(), item)
		if err != nil {
			return err
		}
		return respond(c, http.StatusOK, saved, receipt)
	})
	g.DELETE(path+"/:id", func(c echo.Context) error {
		receipt, err := r.del(c.Request().Context(), c.Param("id"))
		if err != nil {
			return err
		}
		return respond(c, http.StatusNoContent, nil, receipt)
	})
}

func (h *Handler) registerRegistry(g *echo.Group) {
	crud[core.Patient]{
		list: h.svc.ListPatients, save: h.svc.SavePatient, del: h.svc.DeletePatient,
		setID: func(p *core.Patient, id string) { p.ID = id },
	}.mount(g, "/patients")
	crud[core.Vehicle]{
		list: h.svc.ListVehicles, save: h.svc.SaveVehicle, del: h.svc.DeleteVehicle,
		setID: func(v *core.Vehicle, id string) { v.ID = id },
	}.mount(g, "/vehicles")
	crud[core.Driver]{
		list: h.svc.ListDrivers, save: h.svc.SaveDriver, del: h.svc.DeleteDriver,
		setID: func(d *core.Driver, id string) { d.ID = id },
	}.mount(g, "/drivers")
	crud[core.Destination]{
		list: h.svc.ListDestinations, save: h.svc.SaveDestination, del: h.svc.DeleteDestination,
		setID: func(d *core.Destination, id string) { d.ID = id },
	}.mount(g, "/destinations")
	crud[core.TreatmentType]{
		list: h.svc.ListTreatmentTypes, save: h.svc.SaveTreatmentType, del: h.svc.DeleteTreatmentType,
		setID: func(t *core.TreatmentType, id string) { t.ID = id },
	}.mount(g, "/treatment-types")
	crud[core.SupportHouse]{
		list: h.svc.ListSupportHouses, save: h.svc.SaveSupportHouse, del: h.svc.DeleteSupportHouse,
		setID: func(s *core.SupportHouse, id string) { s.ID = id },
	}.mount(g, "/support-houses")
}
