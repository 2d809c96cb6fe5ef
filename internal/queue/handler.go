package queue

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinicdesk/clinicdesk/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/queue/position", h.GetMyPosition, auth.RequireRole(auth.RolePatient))

	staff := api.Group("", auth.RequireRole(auth.RoleDoctor, auth.RoleStaff))
	staff.GET("/queue", h.GetQueue)
	staff.POST("/queue/tokens", h.IssueToken)
	staff.POST("/queue/tokens/:id/call", h.CallToken)
	staff.POST("/queue/tokens/:id/start", h.StartToken)
	staff.POST("/queue/tokens/:id/complete", h.CompleteToken)
	staff.POST("/queue/tokens/:id/miss", h.MissToken)
}

// GetMyPosition is the request/response fallback for the patient push feed.
func (h *Handler) GetMyPosition(c echo.Context) error {
	ctx := c.Request().Context()
	patientID := auth.PatientIDFromContext(ctx)
	if patientID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "no patient bound to token")
	}
	payload, err := h.svc.PositionFor(ctx, patientID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, payload)
}

// GetQueue is the request/response fallback for the admin push feed. Doctors
// see their own queue; staff and admins pass ?doctor_id=.
func (h *Handler) GetQueue(c echo.Context) error {
	ctx := c.Request().Context()
	doctorID := auth.DoctorIDFromContext(ctx)
	if raw := c.QueryParam("doctor_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor_id")
		}
		doctorID = id
	}
	if doctorID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "doctor_id is required")
	}
	entries, err := h.svc.AdminQueue(ctx, doctorID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, entries)
}

type issueRequest struct {
	PatientID     uuid.UUID  `json:"patient_id"`
	DoctorID      uuid.UUID  `json:"doctor_id"`
	AppointmentID *uuid.UUID `json:"appointment_id,omitempty"`
	Priority      int        `json:"priority,omitempty"`
}

func (h *Handler) IssueToken(c echo.Context) error {
	var req issueRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	t, err := h.svc.Issue(c.Request().Context(), req.PatientID, req.DoctorID, req.AppointmentID, req.Priority)
	if err != nil {
		if errors.Is(err, ErrActiveTokenExists) {
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, t)
}

func (h *Handler) CallToken(c echo.Context) error {
	return h.transition(c, h.svc.Call)
}

func (h *Handler) StartToken(c echo.Context) error {
	return h.transition(c, h.svc.Start)
}

func (h *Handler) CompleteToken(c echo.Context) error {
	return h.transition(c, h.svc.Complete)
}

func (h *Handler) MissToken(c echo.Context) error {
	return h.transition(c, h.svc.Miss)
}

func (h *Handler) transition(c echo.Context, fn func(ctx context.Context, tokenID uuid.UUID) (*Token, error)) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	t, err := fn(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return echo.NewHTTPError(http.StatusNotFound, "token not found")
	}
	return c.JSON(http.StatusOK, t)
}
