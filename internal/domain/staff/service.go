package staff

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrOutsideGeofence is returned when a check-in's coordinates fall outside
// the clinic radius.
var ErrOutsideGeofence = errors.New("check-in location is outside the clinic geofence")

// Geofence is the clinic's location and allowed check-in radius.
type Geofence struct {
	Lat     float64
	Lng     float64
	RadiusM float64
}

// Contains reports whether a point falls within the fence.
func (g Geofence) Contains(lat, lng float64) bool {
	return DistanceM(g.Lat, g.Lng, lat, lng) <= g.RadiusM
}

type Service struct {
	repo  Repository
	fence Geofence
}

func NewService(repo Repository, fence Geofence) *Service {
	return &Service{repo: repo, fence: fence}
}

// CheckIn records attendance after validating the coordinates against the
// geofence. A staff member can hold at most one open record.
func (s *Service) CheckIn(ctx context.Context, staffID uuid.UUID, lat, lng float64) (*Checkin, error) {
	if staffID == uuid.Nil {
		return nil, fmt.Errorf("staff_id is required")
	}
	if !s.fence.Contains(lat, lng) {
		return nil, fmt.Errorf("%w: %.0fm from clinic, allowed %.0fm",
			ErrOutsideGeofence, DistanceM(s.fence.Lat, s.fence.Lng, lat, lng), s.fence.RadiusM)
	}

	if _, err := s.repo.Open(ctx, staffID); err == nil {
		return nil, ErrAlreadyCheckedIn
	} else if !errors.Is(err, ErrNoOpenCheckin) {
		return nil, err
	}

	c := &Checkin{StaffID: staffID, Lat: lat, Lng: lng}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// CheckOut closes the staff member's open record.
func (s *Service) CheckOut(ctx context.Context, staffID uuid.UUID) (*Checkin, error) {
	c, err := s.repo.Open(ctx, staffID)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	if err := s.repo.Close(ctx, c.ID, now); err != nil {
		return nil, err
	}
	c.CheckedOutAt = &now
	return c, nil
}

func (s *Service) History(ctx context.Context, staffID uuid.UUID, limit, offset int) ([]*Checkin, int, error) {
	return s.repo.ListByStaff(ctx, staffID, limit, offset)
}
