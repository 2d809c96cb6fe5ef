package staff

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNoOpenCheckin is returned when checkout finds no open record.
var ErrNoOpenCheckin = errors.New("no open check-in for staff member")

// ErrAlreadyCheckedIn is returned when a staff member has an open record.
var ErrAlreadyCheckedIn = errors.New("staff member is already checked in")

type Repository interface {
	Create(ctx context.Context, c *Checkin) error
	// Open returns the staff member's open (not checked out) record, or
	// ErrNoOpenCheckin.
	Open(ctx context.Context, staffID uuid.UUID) (*Checkin, error)
	Close(ctx context.Context, id uuid.UUID, at time.Time) error
	ListByStaff(ctx context.Context, staffID uuid.UUID, limit, offset int) ([]*Checkin, int, error)
}
