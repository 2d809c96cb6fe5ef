package medicine

import (
	"time"

	"github.com/google/uuid"
)

// Medicine maps to the medicine table: one stocked batch.
type Medicine struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	Name         string     `db:"name" json:"name"`
	Batch        string     `db:"batch" json:"batch"`
	Quantity     int        `db:"quantity" json:"quantity"`
	ReorderLevel int        `db:"reorder_level" json:"reorder_level"`
	ExpiryDate   *time.Time `db:"expiry_date" json:"expiry_date,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// LowStock reports whether the batch is at or below its reorder level.
func (m *Medicine) LowStock() bool {
	return m.Quantity <= m.ReorderLevel
}
