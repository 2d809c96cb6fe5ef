package scheduling

import (
	"time"

	"github.com/google/uuid"
)

// AppointmentStatus is the lifecycle state of an appointment.
type AppointmentStatus string

const (
	StatusBooked    AppointmentStatus = "booked"
	StatusCheckedIn AppointmentStatus = "checked_in"
	StatusFulfilled AppointmentStatus = "fulfilled"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusNoShow    AppointmentStatus = "no_show"
)

var appointmentTransitions = map[AppointmentStatus][]AppointmentStatus{
	StatusBooked:    {StatusCheckedIn, StatusCancelled, StatusNoShow},
	StatusCheckedIn: {StatusFulfilled, StatusCancelled},
}

// CanTransition reports whether from → to is a legal appointment transition.
func CanTransition(from, to AppointmentStatus) bool {
	for _, next := range appointmentTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Appointment maps to the appointment table.
type Appointment struct {
	ID          uuid.UUID         `db:"id" json:"id"`
	PatientID   uuid.UUID         `db:"patient_id" json:"patient_id"`
	DoctorID    uuid.UUID         `db:"doctor_id" json:"doctor_id"`
	ScheduledAt time.Time         `db:"scheduled_at" json:"scheduled_at"`
	Reason      *string           `db:"reason" json:"reason,omitempty"`
	Status      AppointmentStatus `db:"status" json:"status"`
	CreatedAt   time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time         `db:"updated_at" json:"updated_at"`
}
