package emergency

import (
	"time"

	"github.com/google/uuid"
)

// Severity grades an emergency request.
type Severity string

const (
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
	SeverityCritical Severity = "critical"
)

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	switch s {
	case SeverityModerate, SeveritySevere, SeverityCritical:
		return true
	}
	return false
}

// Request maps to the emergency_request table.
type Request struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	PatientID uuid.UUID  `db:"patient_id" json:"patient_id"`
	DoctorID  uuid.UUID  `db:"doctor_id" json:"doctor_id"`
	Complaint string     `db:"complaint" json:"complaint"`
	Severity  Severity   `db:"severity" json:"severity"`
	TokenID   *uuid.UUID `db:"token_id" json:"token_id,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}
