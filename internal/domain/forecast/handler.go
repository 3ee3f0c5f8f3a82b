package forecast

import (
	"bytes"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/surgicast/surgicast/internal/platform/auth"
	"github.com/surgicast/surgicast/internal/platform/reporting"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	admin := api.Group("", auth.RequireRole("admin"))
	admin.POST("/forecast", h.Predict)
	admin.GET("/forecast/velocity", h.GetVelocity)
	admin.GET("/reports/forecast.xlsx", h.DownloadReport)
}

type forecastRequest struct {
	TMinus3 *int `json:"t_minus_3"`
	TMinus2 *int `json:"t_minus_2"`
	TMinus1 *int `json:"t_minus_1"`
}

type forecastResponse struct {
	Predicted
	TMinus3        int `json:"t_minus_3"`
	TMinus2        int `json:"t_minus_2"`
	TMinus1        int `json:"t_minus_1"`
	AccuracyMargin int `json:"accuracy_margin"`
}

func valueOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

func (h *Handler) Predict(c echo.Context) error {
	var req forecastRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	t3 := valueOr(req.TMinus3, DefaultTMinus3)
	t2 := valueOr(req.TMinus2, DefaultTMinus2)
	t1 := valueOr(req.TMinus1, DefaultTMinus1)
	if t3 < 0 || t2 < 0 || t1 < 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "booking counts must not be negative")
	}
	p := h.svc.Predict(c.Request().Context(), t3, t2, t1)
	return c.JSON(http.StatusOK, forecastResponse{
		Predicted:      p,
		TMinus3:        t3,
		TMinus2:        t2,
		TMinus1:        t1,
		AccuracyMargin: AccuracyMargin,
	})
}

func (h *Handler) GetVelocity(c echo.Context) error {
	weeks, err := h.svc.Velocity(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, weeks)
}

func (h *Handler) DownloadReport(c echo.Context) error {
	var buf bytes.Buffer
	if err := h.svc.WriteReport(c.Request().Context(), &buf); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="forecast.xlsx"`)
	return c.Blob(http.StatusOK, reporting.ContentTypeXLSX, buf.Bytes())
}
