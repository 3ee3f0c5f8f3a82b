package dashboard

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/surgicast/surgicast/internal/domain/session"
)

// SessionSource reports the session a dashboard request belongs to.
type SessionSource interface {
	Get(sid string) (session.Session, bool)
}

type Handler struct {
	sessions SessionSource
	spaces   *Workspaces
}

func NewHandler(sessions SessionSource, spaces *Workspaces) *Handler {
	return &Handler{sessions: sessions, spaces: spaces}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/dashboard")
	g.GET("/menu", h.GetMenu)
	g.PUT("/tab", h.SelectTab)
	g.GET("/view", h.GetView)
}

// state resolves the router state, replacing the view while the session is
// loading or signed out.
func (h *Handler) state(c echo.Context) State {
	sid := session.IDFromContext(c.Request().Context())
	st := h.spaces.Router(sid).State()
	sess, ok := h.sessions.Get(sid)
	switch {
	case ok && sess.Loading:
		st.View = ViewLoading
	case !ok || sess.Identity == "":
		st.View = ViewSignIn
	}
	return st
}

type menuResponse struct {
	Role   string     `json:"role"`
	Active string     `json:"active_tab"`
	Items  []MenuItem `json:"items"`
}

func (h *Handler) GetMenu(c echo.Context) error {
	st := h.state(c)
	return c.JSON(http.StatusOK, menuResponse{Role: st.Role, Active: st.Active, Items: st.Menu})
}

func (h *Handler) GetView(c echo.Context) error {
	return c.JSON(http.StatusOK, h.state(c))
}

type selectTabRequest struct {
	Tab string `json:"tab"`
}

func (h *Handler) SelectTab(c echo.Context) error {
	var req selectTabRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	tab := strings.TrimSpace(req.Tab)
	if tab == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "tab is required")
	}
	sid := session.IDFromContext(c.Request().Context())
	h.spaces.Router(sid).SelectTab(tab)
	return c.JSON(http.StatusOK, h.state(c))
}
