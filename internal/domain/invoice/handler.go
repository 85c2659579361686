package invoice

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/entclinic/clinic/internal/platform/apperror"
	"github.com/entclinic/clinic/internal/platform/auth"
	"github.com/entclinic/clinic/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequirePermission(auth.PermViewInvoices))
	read.GET("/invoices", h.ListInvoices)
	read.GET("/invoices/:id", h.GetInvoice)

	api.POST("/invoices", h.CreateInvoice, auth.RequirePermission(auth.PermCreateInvoices))
	api.PUT("/invoices/:id", h.UpdateInvoice, auth.RequirePermission(auth.PermEditInvoices))
	api.POST("/invoices/:id/payments", h.AddPayment, auth.RequirePermission(auth.PermEditInvoices))
}

type itemRequest struct {
	ID            *uuid.UUID `json:"id,omitempty"`
	BillingCodeID *uuid.UUID `json:"billing_code_id,omitempty"`
	Description   string     `json:"description"`
	Quantity      int        `json:"quantity"`
	UnitPrice     float64    `json:"unit_price"`
}

type invoiceRequest struct {
	Invoice
	Items []itemRequest `json:"items"`
}

func (r *invoiceRequest) toItems() []*InvoiceItem {
	items := make([]*InvoiceItem, 0, len(r.Items))
	for _, it := range r.Items {
		item := &InvoiceItem{
			BillingCodeID: it.BillingCodeID,
			Description:   it.Description,
			Quantity:      it.Quantity,
			UnitPrice:     it.UnitPrice,
		}
		if it.ID != nil {
			item.ID = *it.ID
		}
		items = append(items, item)
	}
	return items
}

func (h *Handler) CreateInvoice(c echo.Context) error {
	var req invoiceRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	inv := req.Invoice
	if inv.CreatedBy == uuid.Nil {
		if uid, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context())); err == nil {
			inv.CreatedBy = uid
		}
	}
	if err := h.svc.CreateInvoice(c.Request().Context(), &inv, req.toItems()); err != nil {
		return echo.NewHTTPError(apperror.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusCreated, inv)
}

func (h *Handler) GetInvoice(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	detail, err := h.svc.GetInvoiceDetail(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(apperror.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, detail)
}

func (h *Handler) ListInvoices(c echo.Context) error {
	pg := pagination.FromContext(c)
	ctx := c.Request().Context()

	if pid := c.QueryParam("patient_id"); pid != "" {
		patientID, err := uuid.Parse(pid)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
		invoices, total, err := h.svc.ListInvoicesByPatient(ctx, patientID, pg.Limit, pg.Offset)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, pagination.NewResponse(invoices, total, pg.Limit, pg.Offset))
	}

	if status := c.QueryParam("status"); status != "" {
		invoices, total, err := h.svc.ListInvoicesByStatus(ctx, status, pg.Limit, pg.Offset)
		if err != nil {
			return echo.NewHTTPError(apperror.HTTPStatus(err), err.Error())
		}
		return c.JSON(http.StatusOK, pagination.NewResponse(invoices, total, pg.Limit, pg.Offset))
	}

	invoices, total, err := h.svc.ListInvoices(ctx, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(invoices, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateInvoice(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req invoiceRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	updated, err := h.svc.UpdateInvoice(c.Request().Context(), id, &req.Invoice, req.toItems())
	if err != nil {
		return echo.NewHTTPError(apperror.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, updated)
}

func (h *Handler) AddPayment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var p Payment
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if p.RecordedBy == uuid.Nil {
		if uid, perr := uuid.Parse(auth.UserIDFromContext(c.Request().Context())); perr == nil {
			p.RecordedBy = uid
		}
	}
	if err := h.svc.AddPayment(c.Request().Context(), id, &p); err != nil {
		return echo.NewHTTPError(apperror.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusCreated, p)
}
