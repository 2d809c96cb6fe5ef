package staff

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinicdesk/clinicdesk/internal/platform/auth"
	"github.com/clinicdesk/clinicdesk/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("", auth.RequireRole(auth.RoleStaff, auth.RoleDoctor))
	g.POST("/staff/checkin", h.CheckIn)
	g.POST("/staff/checkout", h.CheckOut)
	g.GET("/staff/checkins", h.History)
}

type checkinRequest struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (h *Handler) CheckIn(c echo.Context) error {
	ctx := c.Request().Context()
	staffID, err := uuid.Parse(auth.UserIDFromContext(ctx))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "no staff identity on token")
	}
	var req checkinRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	rec, err := h.svc.CheckIn(ctx, staffID, req.Lat, req.Lng)
	if err != nil {
		if errors.Is(err, ErrOutsideGeofence) {
			return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
		}
		if errors.Is(err, ErrAlreadyCheckedIn) {
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, rec)
}

func (h *Handler) CheckOut(c echo.Context) error {
	ctx := c.Request().Context()
	staffID, err := uuid.Parse(auth.UserIDFromContext(ctx))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "no staff identity on token")
	}
	rec, err := h.svc.CheckOut(ctx, staffID)
	if err != nil {
		if errors.Is(err, ErrNoOpenCheckin) {
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) History(c echo.Context) error {
	ctx := c.Request().Context()
	staffID, err := uuid.Parse(auth.UserIDFromContext(ctx))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "no staff identity on token")
	}
	if raw := c.QueryParam("staff_id"); raw != "" && auth.RoleFromContext(ctx) == auth.RoleAdmin {
		staffID, err = uuid.Parse(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid staff_id")
		}
	}
	p := pagination.FromContext(c)
	checkins, total, err := h.svc.History(ctx, staffID, p.Limit, p.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(checkins, total, p.Limit, p.Offset))
}
