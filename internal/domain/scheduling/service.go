package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clinicdesk/clinicdesk/internal/queue"
)

// ErrInvalidTransition is returned for an appointment status change the
// lifecycle does not allow.
var ErrInvalidTransition = errors.New("invalid appointment status transition")

// QueueIntake is the queue-side surface scheduling drives: check-in issues
// a token, cancellation retires one. Satisfied by queue.Service.
type QueueIntake interface {
	Issue(ctx context.Context, patientID, doctorID uuid.UUID, appointmentID *uuid.UUID, priority int) (*queue.Token, error)
	MissByAppointment(ctx context.Context, appointmentID uuid.UUID) error
}

type Service struct {
	repo   Repository
	intake QueueIntake
}

func NewService(repo Repository, intake QueueIntake) *Service {
	return &Service{repo: repo, intake: intake}
}

// Book creates an appointment in the booked state.
func (s *Service) Book(ctx context.Context, a *Appointment) error {
	if a.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if a.DoctorID == uuid.Nil {
		return fmt.Errorf("doctor_id is required")
	}
	if a.ScheduledAt.IsZero() {
		return fmt.Errorf("scheduled_at is required")
	}
	a.Status = StatusBooked
	return s.repo.Create(ctx, a)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByDoctor(ctx context.Context, doctorID uuid.UUID, day time.Time, limit, offset int) ([]*Appointment, int, error) {
	return s.repo.ListByDoctor(ctx, doctorID, day, limit, offset)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}

// CheckIn marks the patient as arrived and places them in the doctor's
// queue at normal priority.
func (s *Service) CheckIn(ctx context.Context, id uuid.UUID) (*queue.Token, error) {
	a, err := s.transition(ctx, id, StatusCheckedIn)
	if err != nil {
		return nil, err
	}
	return s.intake.Issue(ctx, a.PatientID, a.DoctorID, &a.ID, queue.PriorityNormal)
}

// Fulfill closes a checked-in appointment after the visit.
func (s *Service) Fulfill(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, StatusFulfilled)
}

// Cancel cancels an appointment. Any live queue token for it is marked
// missed, which recomputes and republishes the doctor's queue.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := s.transition(ctx, id, StatusCancelled)
	if err != nil {
		return nil, err
	}
	if err := s.intake.MissByAppointment(ctx, a.ID); err != nil {
		return nil, err
	}
	return a, nil
}

// NoShow marks a booked appointment as missed by the patient.
func (s *Service) NoShow(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := s.transition(ctx, id, StatusNoShow)
	if err != nil {
		return nil, err
	}
	if err := s.intake.MissByAppointment(ctx, a.ID); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, to AppointmentStatus) (*Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(a.Status, to) {
		return nil, fmt.Errorf("%w: %s → %s", ErrInvalidTransition, a.Status, to)
	}
	if err := s.repo.UpdateStatus(ctx, id, to); err != nil {
		return nil, err
	}
	a.Status = to
	return a, nil
}
