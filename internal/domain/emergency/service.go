package emergency

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/clinicdesk/clinicdesk/internal/platform/notification"
	"github.com/clinicdesk/clinicdesk/internal/queue"
)

// QueueIntake issues the emergency-priority token. Satisfied by
// queue.Service.
type QueueIntake interface {
	Issue(ctx context.Context, patientID, doctorID uuid.UUID, appointmentID *uuid.UUID, priority int) (*queue.Token, error)
}

type Service struct {
	repo     Repository
	intake   QueueIntake
	notifier *notification.Dispatcher
}

func NewService(repo Repository, intake QueueIntake, notifier *notification.Dispatcher) *Service {
	return &Service{repo: repo, intake: intake, notifier: notifier}
}

// Create records the emergency, pushes the patient into the doctor's queue
// at emergency priority and raises an alert.
func (s *Service) Create(ctx context.Context, req *Request) error {
	if req.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if req.DoctorID == uuid.Nil {
		return fmt.Errorf("doctor_id is required")
	}
	if req.Complaint == "" {
		return fmt.Errorf("complaint is required")
	}
	if req.Severity == "" {
		req.Severity = SeverityModerate
	}
	if !req.Severity.Valid() {
		return fmt.Errorf("unknown severity %q", req.Severity)
	}

	token, err := s.intake.Issue(ctx, req.PatientID, req.DoctorID, nil, queue.PriorityEmergency)
	if err != nil {
		return fmt.Errorf("queue emergency patient: %w", err)
	}
	req.TokenID = &token.ID

	if err := s.repo.Create(ctx, req); err != nil {
		return err
	}

	s.notifier.Dispatch(ctx, notification.KindEmergencyCreated, map[string]string{
		"patient_id": req.PatientID.String(),
		"doctor_id":  req.DoctorID.String(),
		"severity":   string(req.Severity),
		"complaint":  req.Complaint,
	})
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Request, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Request, int, error) {
	return s.repo.ListByDoctor(ctx, doctorID, limit, offset)
}
