package staff

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// Checkin maps to the staff_checkin table: one attendance record.
type Checkin struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	StaffID      uuid.UUID  `db:"staff_id" json:"staff_id"`
	Lat          float64    `db:"lat" json:"lat"`
	Lng          float64    `db:"lng" json:"lng"`
	CheckedInAt  time.Time  `db:"checked_in_at" json:"checked_in_at"`
	CheckedOutAt *time.Time `db:"checked_out_at" json:"checked_out_at,omitempty"`
}

const earthRadiusM = 6371000

// DistanceM returns the great-circle distance in meters between two
// lat/lng points (haversine).
func DistanceM(lat1, lng1, lat2, lng2 float64) float64 {
	rad := func(deg float64) float64 { return deg * math.Pi / 180 }

	dLat := rad(lat2 - lat1)
	dLng := rad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(lat1))*math.Cos(rad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return earthRadiusM * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
