package billing

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/entclinic/clinic/internal/domain/invoice"
	"github.com/entclinic/clinic/internal/platform/apperror"
	"github.com/entclinic/clinic/internal/platform/auth"
	"github.com/entclinic/clinic/pkg/pagination"
)

type Handler struct {
	orch *Orchestrator
}

func NewHandler(orch *Orchestrator) *Handler {
	return &Handler{orch: orch}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/encounters/:id/invoice", h.InvoiceEncounter, auth.RequirePermission(auth.PermCreateInvoices))
	api.GET("/billing/billable-encounters", h.BillableEncounters, auth.RequirePermission(auth.PermViewEncounters))
	api.DELETE("/invoices/:id", h.DeleteInvoice, auth.RequirePermission(auth.PermDeleteInvoices))
}

func (h *Handler) InvoiceEncounter(c echo.Context) error {
	encounterID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid encounter id")
	}
	var req InvoiceRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	inv := &invoice.Invoice{Notes: req.Notes}
	if req.DueDate != "" {
		due, err := time.Parse("2006-01-02", req.DueDate)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "due_date must be YYYY-MM-DD")
		}
		inv.DueDate = due
	}
	if uid, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context())); err == nil {
		inv.CreatedBy = uid
	}

	created, err := h.orch.CreateInvoiceForEncounter(c.Request().Context(), encounterID, inv, req.Items)
	if err != nil {
		return echo.NewHTTPError(apperror.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusCreated, created)
}

func (h *Handler) BillableEncounters(c echo.Context) error {
	p := pagination.FromContext(c)
	encounters, total, err := h.orch.BillableEncounters(c.Request().Context(), p.Limit, p.Offset)
	if err != nil {
		return echo.NewHTTPError(apperror.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(encounters, total, p.Limit, p.Offset))
}

func (h *Handler) DeleteInvoice(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid invoice id")
	}
	if err := h.orch.DeleteInvoice(c.Request().Context(), id); err != nil {
		return echo.NewHTTPError(apperror.HTTPStatus(err), err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
