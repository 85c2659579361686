package billingcode

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
	read := api.Group("", auth.RequirePermission(auth.PermViewBillingCodes))
	read.GET("/billing-codes", h.ListBillingCodes)
	read.GET("/billing-codes/:id", h.GetBillingCode)

	api.POST("/billing-codes", h.CreateBillingCode, auth.RequirePermission(auth.PermCreateBillingCodes))
	api.PUT("/billing-codes/:id", h.UpdateBillingCode, auth.RequirePermission(auth.PermEditBillingCodes))
	api.DELETE("/billing-codes/:id", h.DeleteBillingCode, auth.RequirePermission(auth.PermDeleteBillingCodes))
}

func (h *Handler) CreateBillingCode(c echo.Context) error {
	bc := BillingCode{Active: true}
	if err := c.Bind(&bc); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateBillingCode(c.Request().Context(), &bc); err != nil {
		return echo.NewHTTPError(apperror.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusCreated, bc)
}

func (h *Handler) GetBillingCode(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	bc, err := h.svc.GetBillingCode(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(apperror.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, bc)
}

func (h *Handler) ListBillingCodes(c echo.Context) error {
	pg := pagination.FromContext(c)
	activeOnly := c.QueryParam("active") == "true"

	codes, total, err := h.svc.ListBillingCodes(c.Request().Context(), activeOnly, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(codes, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateBillingCode(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var bc BillingCode
	if err := c.Bind(&bc); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	bc.ID = id
	if err := h.svc.UpdateBillingCode(c.Request().Context(), &bc); err != nil {
		return echo.NewHTTPError(apperror.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, bc)
}

func (h *Handler) DeleteBillingCode(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteBillingCode(c.Request().Context(), id); err != nil {
		return echo.NewHTTPError(apperror.HTTPStatus(err), err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
