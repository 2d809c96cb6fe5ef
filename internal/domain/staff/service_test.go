package staff

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
)

// Clinic used throughout: central Bengaluru, 200m radius.
var testFence = Geofence{Lat: 12.9716, Lng: 77.5946, RadiusM: 200}

// -- Mock Repository --

type mockRepo struct {
	checkins map[uuid.UUID]*Checkin
}

func newMockRepo() *mockRepo {
	return &mockRepo{checkins: make(map[uuid.UUID]*Checkin)}
}

func (m *mockRepo) Create(_ context.Context, c *Checkin) error {
	c.ID = uuid.New()
	c.CheckedInAt = time.Now()
	m.checkins[c.ID] = c
	return nil
}

func (m *mockRepo) Open(_ context.Context, staffID uuid.UUID) (*Checkin, error) {
	for _, c := range m.checkins {
		if c.StaffID == staffID && c.CheckedOutAt == nil {
			return c, nil
		}
	}
	return nil, ErrNoOpenCheckin
}

func (m *mockRepo) Close(_ context.Context, id uuid.UUID, at time.Time) error {
	c, ok := m.checkins[id]
	if !ok || c.CheckedOutAt != nil {
		return ErrNoOpenCheckin
	}
	c.CheckedOutAt = &at
	return nil
}

func (m *mockRepo) ListByStaff(_ context.Context, staffID uuid.UUID, limit, offset int) ([]*Checkin, int, error) {
	var out []*Checkin
	for _, c := range m.checkins {
		if c.StaffID == staffID {
			out = append(out, c)
		}
	}
	return out, len(out), nil
}

func newTestService() (*Service, *mockRepo) {
	repo := newMockRepo()
	return NewService(repo, testFence), repo
}

// -- Tests --

func TestDistanceM(t *testing.T) {
	// Same point.
	if d := DistanceM(12.9716, 77.5946, 12.9716, 77.5946); d != 0 {
		t.Errorf("distance to self = %v, want 0", d)
	}
	// ~1 degree of latitude is ~111km.
	d := DistanceM(12.0, 77.0, 13.0, 77.0)
	if math.Abs(d-111195) > 500 {
		t.Errorf("1° latitude = %.0fm, want ≈111195m", d)
	}
}

func TestGeofenceContains(t *testing.T) {
	if !testFence.Contains(12.9716, 77.5946) {
		t.Error("clinic center not inside its own fence")
	}
	// ~100m north.
	if !testFence.Contains(12.9725, 77.5946) {
		t.Error("point ~100m away rejected")
	}
	// ~1.1km north.
	if testFence.Contains(12.9816, 77.5946) {
		t.Error("point ~1.1km away accepted")
	}
}

func TestCheckIn_InsideFence(t *testing.T) {
	svc, repo := newTestService()
	staffID := uuid.New()

	rec, err := svc.CheckIn(context.Background(), staffID, 12.9717, 77.5947)
	if err != nil {
		t.Fatalf("CheckIn: %v", err)
	}
	if rec.ID == uuid.Nil {
		t.Error("checkin ID not assigned")
	}
	if len(repo.checkins) != 1 {
		t.Errorf("records = %d, want 1", len(repo.checkins))
	}
}

func TestCheckIn_OutsideFence(t *testing.T) {
	svc, repo := newTestService()

	_, err := svc.CheckIn(context.Background(), uuid.New(), 13.0827, 80.2707) // Chennai
	if !errors.Is(err, ErrOutsideGeofence) {
		t.Fatalf("error = %v, want ErrOutsideGeofence", err)
	}
	if len(repo.checkins) != 0 {
		t.Error("record created despite geofence rejection")
	}
}

func TestCheckIn_AlreadyOpen(t *testing.T) {
	svc, _ := newTestService()
	staffID := uuid.New()

	if _, err := svc.CheckIn(context.Background(), staffID, 12.9716, 77.5946); err != nil {
		t.Fatalf("CheckIn: %v", err)
	}
	if _, err := svc.CheckIn(context.Background(), staffID, 12.9716, 77.5946); !errors.Is(err, ErrAlreadyCheckedIn) {
		t.Fatalf("error = %v, want ErrAlreadyCheckedIn", err)
	}
}

func TestCheckOut(t *testing.T) {
	svc, _ := newTestService()
	staffID := uuid.New()

	if _, err := svc.CheckIn(context.Background(), staffID, 12.9716, 77.5946); err != nil {
		t.Fatalf("CheckIn: %v", err)
	}
	rec, err := svc.CheckOut(context.Background(), staffID)
	if err != nil {
		t.Fatalf("CheckOut: %v", err)
	}
	if rec.CheckedOutAt == nil {
		t.Error("checkout timestamp not set")
	}

	// Closed record allows a fresh check-in.
	if _, err := svc.CheckIn(context.Background(), staffID, 12.9716, 77.5946); err != nil {
		t.Fatalf("re-check-in after checkout: %v", err)
	}
}

func TestCheckOut_NothingOpen(t *testing.T) {
	svc, _ := newTestService()
	if _, err := svc.CheckOut(context.Background(), uuid.New()); !errors.Is(err, ErrNoOpenCheckin) {
		t.Fatalf("error = %v, want ErrNoOpenCheckin", err)
	}
}
