package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// Permission names checked before the corresponding mutation paths. They
// mirror the seeded permission table: "<verb> <resource plural>".
const (
	PermViewPatients   = "view patients"
	PermCreatePatients = "create patients"
	PermEditPatients   = "edit patients"
	PermDeletePatients = "delete patients"

	PermViewAppointments   = "view appointments"
	PermCreateAppointments = "create appointments"
	PermEditAppointments   = "edit appointments"
	PermDeleteAppointments = "delete appointments"

	PermViewEncounters   = "view encounters"
	PermCreateEncounters = "create encounters"
	PermEditEncounters   = "edit encounters"
	PermDeleteEncounters = "delete encounters"

	PermViewBillingCodes   = "view billing codes"
	PermCreateBillingCodes = "create billing codes"
	PermEditBillingCodes   = "edit billing codes"
	PermDeleteBillingCodes = "delete billing codes"

	PermViewInvoices   = "view invoices"
	PermCreateInvoices = "create invoices"
	PermEditInvoices   = "edit invoices"
	PermDeleteInvoices = "delete invoices"
)

// HasRole reports whether the actor in ctx carries the given role.
func HasRole(ctx context.Context, role string) bool {
	for _, r := range RolesFromContext(ctx) {
		if r == role {
			return true
		}
	}
	return false
}

// HasPermission reports whether the actor in ctx holds the named permission.
// The admin role implicitly holds every permission.
func HasPermission(ctx context.Context, permission string) bool {
	if HasRole(ctx, "admin") {
		return true
	}
	for _, p := range PermissionsFromContext(ctx) {
		if p == permission {
			return true
		}
	}
	return false
}

// RequireRole returns middleware that checks if the user has at least one of
// the specified roles.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			for _, required := range roles {
				if HasRole(ctx, required) || HasRole(ctx, "admin") {
					return next(c)
				}
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required role: %s", strings.Join(roles, " or ")))
		}
	}
}

// RequirePermission returns middleware that checks if the user holds at
// least one of the named permissions.
func RequirePermission(permissions ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			for _, required := range permissions {
				if HasPermission(ctx, required) {
					return next(c)
				}
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required permission: %s", strings.Join(permissions, " or ")))
		}
	}
}
