package profile

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/surgicast/surgicast/internal/platform/auth"
	"github.com/surgicast/surgicast/internal/platform/blobstore"
)

// ChangeListener is told when a profile was created or modified so cached
// session state can be refreshed.
type ChangeListener interface {
	ProfileChanged(ctx context.Context, id uuid.UUID)
}

type Handler struct {
	svc      *Service
	listener ChangeListener
}

func NewHandler(svc *Service, listener ChangeListener) *Handler {
	return &Handler{svc: svc, listener: listener}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	self := api.Group("", auth.RequireIdentity())
	self.GET("/profile", h.GetProfile)
	self.POST("/profile", h.CreateProfile)
	self.PATCH("/profile", h.UpdateProfile)
	self.POST("/profile/picture", h.UploadPicture)

	surgeonGroup := api.Group("", auth.RequireRole(RoleSurgeon))
	surgeonGroup.PUT("/profile/surgeon-details", h.SaveSurgeonDetails)

	api.GET("/surgeons", h.ListSurgeons, auth.RequireRole(RolePatient, RoleAdmin))
}

func (h *Handler) notify(c echo.Context, id uuid.UUID) {
	if h.listener != nil {
		h.listener.ProfileChanged(c.Request().Context(), id)
	}
}

func identity(c echo.Context) (uuid.UUID, error) {
	id, ok := auth.IdentityUUID(c.Request().Context())
	if !ok {
		return uuid.Nil, echo.NewHTTPError(http.StatusNotFound, "profile not found")
	}
	return id, nil
}

func (h *Handler) GetProfile(c echo.Context) error {
	id, err := identity(c)
	if err != nil {
		return err
	}
	p, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "profile not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, p)
}

type createProfileRequest struct {
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

func (h *Handler) CreateProfile(c echo.Context) error {
	id, ok := auth.IdentityUUID(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "identity cannot own a profile")
	}
	var req createProfileRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p := &Profile{
		ID:       id,
		Email:    auth.EmailFromContext(c.Request().Context()),
		FullName: req.FullName,
		Role:     req.Role,
	}
	if err := h.svc.CreateSelf(c.Request().Context(), p); err != nil {
		if errors.Is(err, ErrExists) {
			return echo.NewHTTPError(http.StatusConflict, "profile already exists")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	h.notify(c, id)
	return c.JSON(http.StatusCreated, p)
}

type updateProfileRequest struct {
	FullName string `json:"full_name"`
}

func (h *Handler) UpdateProfile(c echo.Context) error {
	id, err := identity(c)
	if err != nil {
		return err
	}
	var req updateProfileRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.svc.UpdateName(c.Request().Context(), id, req.FullName)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "profile not found")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	h.notify(c, id)
	return c.JSON(http.StatusOK, p)
}

type pictureRequest struct {
	ContentType string `json:"content_type"`
}

type pictureResponse struct {
	Upload  *blobstore.Upload `json:"upload"`
	Profile *Profile          `json:"profile"`
}

func (h *Handler) UploadPicture(c echo.Context) error {
	id, err := identity(c)
	if err != nil {
		return err
	}
	var req pictureRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	up, p, err := h.svc.PresignPicture(c.Request().Context(), id, req.ContentType)
	switch {
	case err == nil:
	case errors.Is(err, ErrPicturesDisabled):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, blobstore.ErrInvalidContentType):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "profile not found")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	h.notify(c, id)
	return c.JSON(http.StatusOK, pictureResponse{Upload: up, Profile: p})
}

func (h *Handler) SaveSurgeonDetails(c echo.Context) error {
	id, err := identity(c)
	if err != nil {
		return err
	}
	var d SurgeonDetails
	if err := c.Bind(&d); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	d.UserID = id
	if err := h.svc.SaveSurgeonDetails(c.Request().Context(), &d); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) ListSurgeons(c echo.Context) error {
	items, err := h.svc.ListSurgeons(c.Request().Context(), c.QueryParam("q"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []*Surgeon{}
	}
	return c.JSON(http.StatusOK, items)
}
