package scheduling

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinicdesk/clinicdesk/internal/queue"
)

func newTestHandler() (*Handler, *echo.Echo) {
	svc, _, _ := newTestService()
	return NewHandler(svc), echo.New()
}

func TestHandler_Book(t *testing.T) {
	h, e := newTestHandler()

	body := `{"patient_id":"` + uuid.New().String() + `","doctor_id":"` + uuid.New().String() +
		`","scheduled_at":"2026-09-01T10:00:00Z"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/appointments", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Book(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}

	var a Appointment
	json.Unmarshal(rec.Body.Bytes(), &a)
	if a.Status != StatusBooked {
		t.Errorf("expected booked, got %s", a.Status)
	}
}

func TestHandler_Book_MissingDoctor(t *testing.T) {
	h, e := newTestHandler()

	body := `{"patient_id":"` + uuid.New().String() + `","scheduled_at":"2026-09-01T10:00:00Z"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/appointments", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Book(c); err == nil {
		t.Error("expected error for missing doctor_id")
	}
}

func TestHandler_CheckIn(t *testing.T) {
	h, e := newTestHandler()
	a := &Appointment{PatientID: uuid.New(), DoctorID: uuid.New(), ScheduledAt: time.Now()}
	if err := h.svc.Book(context.Background(), a); err != nil {
		t.Fatalf("Book: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(a.ID.String())

	if err := h.CheckIn(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	var tok queue.Token
	json.Unmarshal(rec.Body.Bytes(), &tok)
	if tok.Status != queue.StatusWaiting {
		t.Errorf("expected waiting token, got %s", tok.Status)
	}
}

func TestHandler_Cancel_Conflict(t *testing.T) {
	h, e := newTestHandler()
	a := &Appointment{PatientID: uuid.New(), DoctorID: uuid.New(), ScheduledAt: time.Now()}
	if err := h.svc.Book(context.Background(), a); err != nil {
		t.Fatalf("Book: %v", err)
	}
	if _, err := h.svc.Cancel(context.Background(), a.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(a.ID.String())

	err := h.Cancel(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %v", err)
	}
}

func TestHandler_List_ByDoctor(t *testing.T) {
	h, e := newTestHandler()
	doctorID := uuid.New()
	a := &Appointment{PatientID: uuid.New(), DoctorID: doctorID, ScheduledAt: time.Now()}
	if err := h.svc.Book(context.Background(), a); err != nil {
		t.Fatalf("Book: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/appointments?doctor_id="+doctorID.String(), nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.List(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestHandler_List_NoScope(t *testing.T) {
	h, e := newTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/appointments", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.List(c); err == nil {
		t.Error("expected error without doctor_id or patient_id")
	}
}

func TestHandler_RegisterRoutes(t *testing.T) {
	h, e := newTestHandler()
	h.RegisterRoutes(e.Group("/api/v1"))

	routePaths := make(map[string]bool)
	for _, r := range e.Routes() {
		routePaths[r.Method+":"+r.Path] = true
	}

	expected := []string{
		"POST:/api/v1/appointments",
		"GET:/api/v1/appointments",
		"POST:/api/v1/appointments/:id/checkin",
		"POST:/api/v1/appointments/:id/cancel",
		"POST:/api/v1/appointments/:id/noshow",
	}
	for _, path := range expected {
		if !routePaths[path] {
			t.Errorf("missing expected route: %s", path)
		}
	}
}
