package queue

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a token. Transitions only move forward:
// waiting → called → in_progress → completed, with waiting/called → missed
// as the alternate exit.
type Status string

const (
	StatusWaiting    Status = "waiting"
	StatusCalled     Status = "called"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusMissed     Status = "missed"
)

// Priority levels. Higher serves first.
const (
	PriorityNormal    = 1
	PriorityUrgent    = 2
	PriorityEmergency = 3
)

var forwardTransitions = map[Status][]Status{
	StatusWaiting:    {StatusCalled, StatusMissed},
	StatusCalled:     {StatusInProgress, StatusMissed},
	StatusInProgress: {StatusCompleted},
}

// CanTransition reports whether from → to is a legal forward transition.
func CanTransition(from, to Status) bool {
	for _, next := range forwardTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether a status ends the token's lifecycle.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusMissed
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusWaiting, StatusCalled, StatusInProgress, StatusCompleted, StatusMissed:
		return true
	}
	return false
}

// Token maps to the queue_token table: one patient's numbered place in a
// doctor's queue for a service day.
type Token struct {
	ID                   uuid.UUID  `db:"id" json:"id"`
	TokenNumber          int        `db:"token_number" json:"token_number"`
	PatientID            uuid.UUID  `db:"patient_id" json:"patient_id"`
	DoctorID             uuid.UUID  `db:"doctor_id" json:"doctor_id"`
	AppointmentID        *uuid.UUID `db:"appointment_id" json:"appointment_id,omitempty"`
	Status               Status     `db:"status" json:"status"`
	Priority             int        `db:"priority" json:"priority"`
	EstimatedWaitMinutes int        `db:"estimated_wait_minutes" json:"estimated_wait_minutes"`
	CalledAt             *time.Time `db:"called_at" json:"called_at,omitempty"`
	StartedAt            *time.Time `db:"started_at" json:"started_at,omitempty"`
	CompletedAt          *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt            time.Time  `db:"created_at" json:"created_at"`
}

// PatientName carries the display name joined from the patient record for
// the admin queue view.
type PatientName struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// AdminEntry is one row of the admin full-queue payload.
type AdminEntry struct {
	ID                uuid.UUID   `json:"id"`
	TokenNumber       int         `json:"tokenNumber"`
	PatientID         uuid.UUID   `json:"patientId"`
	Status            Status      `json:"status"`
	EstimatedWaitTime int         `json:"estimatedWaitTime"`
	CreatedAt         time.Time   `json:"createdAt"`
	Patient           PatientName `json:"patient"`
}

// PositionPayload is the patient-scoped push payload. Null token number and
// position render the "not currently queued" state.
type PositionPayload struct {
	TokenNumber       *int   `json:"tokenNumber"`
	Position          *int   `json:"position"`
	EstimatedWaitTime int    `json:"estimatedWaitTime"`
	Status            string `json:"status"`
}

// Server→client message envelopes.
const (
	TypeQueuePosition    = "queue_position"
	TypeAdminQueueUpdate = "admin_queue_update"
)

// PositionMessage is the queue_position wire message.
type PositionMessage struct {
	Type string          `json:"type"`
	Data PositionPayload `json:"data"`
}

// AdminMessage is the admin_queue_update wire message.
type AdminMessage struct {
	Type string        `json:"type"`
	Data []*AdminEntry `json:"data"`
}
