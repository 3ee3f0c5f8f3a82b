package surgery

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/surgicast/surgicast/internal/platform/auth"
	"github.com/surgicast/surgicast/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/cases", h.ListCases, auth.RequireRole("patient", "surgeon"))
	api.GET("/cases/summary", h.GetSummary, auth.RequireRole("patient"))
}

func identity(c echo.Context) (uuid.UUID, error) {
	id, ok := auth.IdentityUUID(c.Request().Context())
	if !ok {
		return uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	return id, nil
}

// ListCases returns the caller's own cases: all of them for a patient, a page
// for a surgeon.
func (h *Handler) ListCases(c echo.Context) error {
	id, err := identity(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	if auth.RoleFromContext(ctx) == "surgeon" {
		pg := pagination.FromContext(c)
		items, total, err := h.svc.SurgeonCases(ctx, id, pg.Limit, pg.Offset)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
	}
	items, err := h.svc.PatientCases(ctx, id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) GetSummary(c echo.Context) error {
	id, err := identity(c)
	if err != nil {
		return err
	}
	sum, err := h.svc.PatientSummary(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, sum)
}
