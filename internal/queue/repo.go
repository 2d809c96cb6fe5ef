package queue

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrActiveTokenExists is returned when a patient already holds a
// non-terminal token for the same doctor and appointment.
var ErrActiveTokenExists = errors.New("an active queue token already exists for this patient")

// ErrNotQueued is returned when no non-terminal token exists for a patient.
var ErrNotQueued = errors.New("patient is not currently queued")

type Repository interface {
	// Issue assigns the next token number for the doctor's service day and
	// persists the token. Serialized per doctor by the store.
	Issue(ctx context.Context, t *Token) error
	GetByID(ctx context.Context, id uuid.UUID) (*Token, error)
	// ActiveByPatient returns the patient's newest non-terminal token, or
	// ErrNotQueued.
	ActiveByPatient(ctx context.Context, patientID uuid.UUID) (*Token, error)
	// ActiveByAppointment returns the non-terminal token linked to an
	// appointment, or ErrNotQueued.
	ActiveByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Token, error)
	UpdateStatus(ctx context.Context, t *Token) error
	// ListWaiting returns the doctor's waiting tokens ordered by priority
	// desc, created_at asc.
	ListWaiting(ctx context.Context, doctorID uuid.UUID) ([]*Token, error)
	// ListActive returns waiting + called + in_progress tokens for the
	// doctor's queue in serving order, joined with patient names.
	ListActive(ctx context.Context, doctorID uuid.UUID) ([]*AdminEntry, error)
	// SaveWaitTimes persists recomputed estimated_wait_minutes values.
	SaveWaitTimes(ctx context.Context, tokens []*Token) error
}
