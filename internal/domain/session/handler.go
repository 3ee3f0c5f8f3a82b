package session

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/surgicast/surgicast/internal/platform/auth"
	"github.com/surgicast/surgicast/internal/platform/notice"
)

type Handler struct {
	env Env
}

func NewHandler(env Env) *Handler {
	return &Handler{env: env}
}

// RegisterRoutes mounts the session endpoints. authLimit throttles the
// credential endpoints.
func (h *Handler) RegisterRoutes(api *echo.Group, authLimit echo.MiddlewareFunc) {
	authGroup := api.Group("/auth")
	if authLimit != nil {
		authGroup.Use(authLimit)
	}
	authGroup.POST("/signup", h.SignUp)
	authGroup.POST("/signin", h.SignIn)
	authGroup.POST("/signout", h.SignOut, auth.RequireIdentity())

	api.GET("/session", h.GetSession)
	api.GET("/notices", h.GetNotices)
}

type signUpRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type grantResponse struct {
	Grant   *auth.Grant `json:"grant"`
	Session Session     `json:"session"`
}

type sessionResponse struct {
	Session          Session `json:"session"`
	ServiceAvailable bool    `json:"service_available"`
}

// authStatus maps provider errors to HTTP statuses.
func authStatus(err error) int {
	var authErr *auth.Error
	if !errors.As(err, &authErr) {
		return http.StatusInternalServerError
	}
	switch authErr {
	case auth.ErrUserNotFound, auth.ErrWrongPassword:
		return http.StatusUnauthorized
	case auth.ErrEmailInUse:
		return http.StatusConflict
	case auth.ErrUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadRequest
	}
}

func authError(err error) error {
	if errors.Is(err, ErrInvalidRole) || errors.Is(err, ErrNameRequired) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	status := authStatus(err)
	var authErr *auth.Error
	if errors.As(err, &authErr) {
		return echo.NewHTTPError(status, map[string]string{
			"code":    authErr.Code(),
			"message": notice.FriendlyMessage("authenticate", err),
		})
	}
	return echo.NewHTTPError(status, "authentication failed")
}

func (h *Handler) SignUp(c echo.Context) error {
	var req signUpRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	grant, sess, err := h.env.Store.SignUp(ctx, IDFromContext(ctx), req.Email, req.Password, req.FullName, req.Role)
	if err != nil {
		return authError(err)
	}
	return c.JSON(http.StatusCreated, grantResponse{Grant: grant, Session: sess})
}

func (h *Handler) SignIn(c echo.Context) error {
	var req signInRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	grant, sess, err := h.env.Store.SignIn(ctx, IDFromContext(ctx), req.Email, req.Password)
	if err != nil {
		return authError(err)
	}
	return c.JSON(http.StatusOK, grantResponse{Grant: grant, Session: sess})
}

func (h *Handler) SignOut(c echo.Context) error {
	ctx := c.Request().Context()
	token, _ := auth.TokenFromContext(ctx)
	sess, err := h.env.Store.SignOut(ctx, IDFromContext(ctx), token)
	if err != nil {
		return authError(err)
	}
	return c.JSON(http.StatusOK, sess)
}

func (h *Handler) GetSession(c echo.Context) error {
	ctx := c.Request().Context()
	sid := IDFromContext(ctx)
	available := h.env.Store.CheckAvailability(ctx, sid)
	sess, _ := h.env.Store.Get(sid)
	return c.JSON(http.StatusOK, sessionResponse{Session: sess, ServiceAvailable: available})
}

func (h *Handler) GetNotices(c echo.Context) error {
	return c.JSON(http.StatusOK, h.env.Notices.Drain(IDFromContext(c.Request().Context())))
}
