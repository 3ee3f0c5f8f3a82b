package healthrecord

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/surgicast/surgicast/internal/domain/session"
	"github.com/surgicast/surgicast/internal/platform/auth"
)

// EditorSource returns the editor bound to a dashboard session.
type EditorSource interface {
	Editor(sessionID string) (*Editor, bool)
}

type Handler struct {
	svc     *Service
	editors EditorSource
}

func NewHandler(svc *Service, editors EditorSource) *Handler {
	return &Handler{svc: svc, editors: editors}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/health-profile", auth.RequireRole("patient"))
	g.GET("", h.GetHealthProfile)
	g.GET("/editor", h.GetEditor)
	g.POST("/editor", h.OpenEditor)
	g.PATCH("/editor", h.UpdateEditor)
	g.POST("/editor/save", h.SaveEditor)
	g.DELETE("/editor", h.CloseEditor)
}

func (h *Handler) patient(c echo.Context) (uuid.UUID, error) {
	id, ok := auth.IdentityUUID(c.Request().Context())
	if !ok {
		return uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	return id, nil
}

// editor returns the session's editor, refusing it when it was opened for a
// patient other than the caller.
func (h *Handler) editor(c echo.Context) (*Editor, error) {
	pid, err := h.patient(c)
	if err != nil {
		return nil, err
	}
	ed, ok := h.editors.Editor(session.IDFromContext(c.Request().Context()))
	if !ok {
		return nil, echo.NewHTTPError(http.StatusConflict, "no editor for this session")
	}
	if ed.PatientID() != pid {
		return nil, echo.NewHTTPError(http.StatusConflict, "editor belongs to another patient")
	}
	return ed, nil
}

func (h *Handler) GetHealthProfile(c echo.Context) error {
	pid, err := h.patient(c)
	if err != nil {
		return err
	}
	hp, err := h.svc.Profile(c.Request().Context(), pid)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, hp)
}

func (h *Handler) GetEditor(c echo.Context) error {
	ed, err := h.editor(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ed.View())
}

type openRequest struct {
	Kind Kind       `json:"kind"`
	ID   *uuid.UUID `json:"id,omitempty"`
}

func (h *Handler) OpenEditor(c echo.Context) error {
	ed, err := h.editor(c)
	if err != nil {
		return err
	}
	var req openRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if !req.Kind.Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, "kind must be vitals, surgery or personal")
	}
	existing, err := h.svc.Existing(c.Request().Context(), ed.PatientID(), req.Kind, req.ID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "record not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	d, err := ed.Open(req.Kind, existing)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, ViewOf(d))
}

type updateRequest struct {
	Field  string            `json:"field"`
	Value  string            `json:"value"`
	Fields map[string]string `json:"fields"`
}

func (h *Handler) UpdateEditor(c echo.Context) error {
	ed, err := h.editor(c)
	if err != nil {
		return err
	}
	var req updateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	updates := req.Fields
	if req.Field != "" {
		if updates == nil {
			updates = map[string]string{}
		}
		updates[req.Field] = req.Value
	}
	if len(updates) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "no fields to update")
	}
	if err := ed.UpdateFields(updates); err != nil {
		return editorError(err)
	}
	return c.JSON(http.StatusOK, ed.View())
}

func editorError(err error) error {
	switch {
	case errors.Is(err, ErrNoDraft):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrUnknownField):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

type saveResponse struct {
	Editor        View           `json:"editor"`
	HealthProfile *HealthProfile `json:"health_profile,omitempty"`
}

func (h *Handler) SaveEditor(c echo.Context) error {
	ed, err := h.editor(c)
	if err != nil {
		return err
	}
	if err := ed.Save(c.Request().Context()); err != nil {
		var fe *FieldError
		switch {
		case errors.Is(err, ErrNoDraft):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		case errors.As(err, &fe):
			return echo.NewHTTPError(http.StatusUnprocessableEntity, fe.Error())
		default:
			return echo.NewHTTPError(http.StatusBadGateway, "save failed")
		}
	}
	return c.JSON(http.StatusOK, saveResponse{Editor: ed.View(), HealthProfile: ed.Latest()})
}

func (h *Handler) CloseEditor(c echo.Context) error {
	ed, err := h.editor(c)
	if err != nil {
		return err
	}
	ed.Close()
	return c.NoContent(http.StatusNoContent)
}
