package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicdesk/clinicdesk/internal/platform/metrics"
)

// ErrInvalidTransition is returned for a status change the lifecycle does
// not allow.
var ErrInvalidTransition = errors.New("invalid token status transition")

// Broadcaster pushes recomputed queue snapshots to subscribers. Satisfied by
// the realtime hub.
type Broadcaster interface {
	Publish(doctorID uuid.UUID, patientMsgs map[uuid.UUID][]byte, adminMsg []byte)
}

type Service struct {
	repo       Repository
	broadcast  Broadcaster
	metrics    *metrics.Metrics
	log        zerolog.Logger
	avgMinutes int

	// Serializes mutate→recompute→publish per doctor so a later mutation's
	// snapshot can never be published before an earlier one's.
	mu      sync.Mutex
	doctors map[uuid.UUID]*sync.Mutex
}

func NewService(repo Repository, broadcast Broadcaster, m *metrics.Metrics, avgConsultMinutes int, log zerolog.Logger) *Service {
	if avgConsultMinutes <= 0 {
		avgConsultMinutes = 15
	}
	return &Service{
		repo:       repo,
		broadcast:  broadcast,
		metrics:    m,
		log:        log.With().Str("component", "queue").Logger(),
		avgMinutes: avgConsultMinutes,
		doctors:    make(map[uuid.UUID]*sync.Mutex),
	}
}

func (s *Service) doctorLock(doctorID uuid.UUID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.doctors[doctorID]
	if !ok {
		l = &sync.Mutex{}
		s.doctors[doctorID] = l
	}
	return l
}

// Issue creates a waiting token for the patient in the doctor's queue,
// recomputes positions and broadcasts the result.
func (s *Service) Issue(ctx context.Context, patientID, doctorID uuid.UUID, appointmentID *uuid.UUID, priority int) (*Token, error) {
	if patientID == uuid.Nil {
		return nil, fmt.Errorf("patient_id is required")
	}
	if doctorID == uuid.Nil {
		return nil, fmt.Errorf("doctor_id is required")
	}
	if priority == 0 {
		priority = PriorityNormal
	}
	if priority < PriorityNormal || priority > PriorityEmergency {
		return nil, fmt.Errorf("priority must be between %d and %d", PriorityNormal, PriorityEmergency)
	}

	l := s.doctorLock(doctorID)
	l.Lock()
	defer l.Unlock()

	t := &Token{
		PatientID:     patientID,
		DoctorID:      doctorID,
		AppointmentID: appointmentID,
		Priority:      priority,
	}
	if err := s.repo.Issue(ctx, t); err != nil {
		return nil, err
	}
	s.metrics.TokensIssued.Inc()
	s.log.Info().
		Str("token_id", t.ID.String()).
		Int("token_number", t.TokenNumber).
		Str("doctor_id", doctorID.String()).
		Int("priority", priority).
		Msg("token issued")

	ordered, err := s.refreshLocked(ctx, doctorID, nil)
	if err != nil {
		return t, err
	}
	for _, o := range ordered {
		if o.ID == t.ID {
			t.EstimatedWaitMinutes = o.EstimatedWaitMinutes
		}
	}
	return t, nil
}

// Call marks a waiting token as called to the consultation room.
func (s *Service) Call(ctx context.Context, tokenID uuid.UUID) (*Token, error) {
	return s.advance(ctx, tokenID, StatusCalled)
}

// Start marks a called token as in consultation.
func (s *Service) Start(ctx context.Context, tokenID uuid.UUID) (*Token, error) {
	return s.advance(ctx, tokenID, StatusInProgress)
}

// Complete closes out a token after consultation.
func (s *Service) Complete(ctx context.Context, tokenID uuid.UUID) (*Token, error) {
	return s.advance(ctx, tokenID, StatusCompleted)
}

// Miss marks a waiting or called token as missed.
func (s *Service) Miss(ctx context.Context, tokenID uuid.UUID) (*Token, error) {
	return s.advance(ctx, tokenID, StatusMissed)
}

// MissByAppointment misses the active token tied to an appointment, if any.
// Used when an appointment is cancelled or marked no-show.
func (s *Service) MissByAppointment(ctx context.Context, appointmentID uuid.UUID) error {
	t, err := s.repo.ActiveByAppointment(ctx, appointmentID)
	if errors.Is(err, ErrNotQueued) {
		return nil
	}
	if err != nil {
		return err
	}
	if !CanTransition(t.Status, StatusMissed) {
		// Already in consultation; the visit proceeds regardless.
		return nil
	}
	_, err = s.advance(ctx, t.ID, StatusMissed)
	return err
}

func (s *Service) advance(ctx context.Context, tokenID uuid.UUID, to Status) (*Token, error) {
	t, err := s.repo.GetByID(ctx, tokenID)
	if err != nil {
		return nil, err
	}

	l := s.doctorLock(t.DoctorID)
	l.Lock()
	defer l.Unlock()

	// Re-read under the doctor lock; another mutation may have advanced it.
	t, err = s.repo.GetByID(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(t.Status, to) {
		return nil, fmt.Errorf("%w: %s → %s", ErrInvalidTransition, t.Status, to)
	}

	now := time.Now().UTC()
	t.Status = to
	switch to {
	case StatusCalled:
		t.CalledAt = &now
	case StatusInProgress:
		t.StartedAt = &now
	case StatusCompleted, StatusMissed:
		t.CompletedAt = &now
	}
	if err := s.repo.UpdateStatus(ctx, t); err != nil {
		return nil, err
	}
	s.log.Info().
		Str("token_id", t.ID.String()).
		Str("status", string(to)).
		Msg("token status changed")

	if _, err := s.refreshLocked(ctx, t.DoctorID, t); err != nil {
		return t, err
	}
	return t, nil
}

// refreshLocked recomputes positions for the doctor's waiting tokens,
// persists the new wait times and publishes snapshots. moved, when set, is a
// token that just left the waiting set; its patient still gets a push
// carrying the new status. Callers hold the doctor lock.
func (s *Service) refreshLocked(ctx context.Context, doctorID uuid.UUID, moved *Token) ([]*Token, error) {
	waiting, err := s.repo.ListWaiting(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	ordered := ComputePositions(waiting, s.avgMinutes)
	if err := s.repo.SaveWaitTimes(ctx, ordered); err != nil {
		return nil, err
	}
	s.metrics.QueueDepth.WithLabelValues(doctorID.String()).Set(float64(len(ordered)))

	patientMsgs := make(map[uuid.UUID][]byte, len(ordered))
	for i, t := range ordered {
		pos := i + 1
		num := t.TokenNumber
		msg, err := json.Marshal(PositionMessage{
			Type: TypeQueuePosition,
			Data: PositionPayload{
				TokenNumber:       &num,
				Position:          &pos,
				EstimatedWaitTime: t.EstimatedWaitMinutes,
				Status:            string(t.Status),
			},
		})
		if err != nil {
			return nil, err
		}
		patientMsgs[t.PatientID] = msg
	}

	if moved != nil {
		if _, ok := patientMsgs[moved.PatientID]; !ok {
			num := moved.TokenNumber
			msg, err := json.Marshal(PositionMessage{
				Type: TypeQueuePosition,
				Data: PositionPayload{
					TokenNumber: &num,
					Status:      string(moved.Status),
				},
			})
			if err != nil {
				return nil, err
			}
			patientMsgs[moved.PatientID] = msg
		}
	}

	entries, err := s.repo.ListActive(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	adminMsg, err := json.Marshal(AdminMessage{Type: TypeAdminQueueUpdate, Data: entries})
	if err != nil {
		return nil, err
	}

	s.broadcast.Publish(doctorID, patientMsgs, adminMsg)
	return ordered, nil
}

// PositionFor is the request/response fallback for the patient-scoped push:
// the patient's current position, or the empty "not queued" payload.
func (s *Service) PositionFor(ctx context.Context, patientID uuid.UUID) (*PositionPayload, error) {
	t, err := s.repo.ActiveByPatient(ctx, patientID)
	if errors.Is(err, ErrNotQueued) {
		return &PositionPayload{Status: "none"}, nil
	}
	if err != nil {
		return nil, err
	}
	return s.positionPayload(ctx, t)
}

func (s *Service) positionPayload(ctx context.Context, t *Token) (*PositionPayload, error) {
	num := t.TokenNumber
	payload := &PositionPayload{
		TokenNumber:       &num,
		EstimatedWaitTime: t.EstimatedWaitMinutes,
		Status:            string(t.Status),
	}
	if t.Status != StatusWaiting {
		// Called or in consultation: no longer holds a waiting position,
		// so position stays null.
		payload.EstimatedWaitTime = 0
		return payload, nil
	}
	waiting, err := s.repo.ListWaiting(ctx, t.DoctorID)
	if err != nil {
		return nil, err
	}
	ordered := ComputePositions(waiting, s.avgMinutes)
	pos := PositionOf(ordered, t.ID)
	if pos > 0 {
		payload.Position = &pos
		payload.EstimatedWaitTime = (pos - 1) * s.avgMinutes
	}
	return payload, nil
}

// AdminQueue is the request/response fallback for the admin-scoped push.
func (s *Service) AdminQueue(ctx context.Context, doctorID uuid.UUID) ([]*AdminEntry, error) {
	entries, err := s.repo.ListActive(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []*AdminEntry{}
	}
	return entries, nil
}

// PatientSnapshot implements the hub's snapshot source for patient scopes.
func (s *Service) PatientSnapshot(ctx context.Context, patientID uuid.UUID) ([]byte, error) {
	payload, err := s.PositionFor(ctx, patientID)
	if err != nil {
		return nil, err
	}
	return json.Marshal(PositionMessage{Type: TypeQueuePosition, Data: *payload})
}

// AdminSnapshot implements the hub's snapshot source for admin scopes.
func (s *Service) AdminSnapshot(ctx context.Context, doctorID uuid.UUID) ([]byte, error) {
	entries, err := s.AdminQueue(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	return json.Marshal(AdminMessage{Type: TypeAdminQueueUpdate, Data: entries})
}
