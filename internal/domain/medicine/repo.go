package medicine

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, m *Medicine) error
	GetByID(ctx context.Context, id uuid.UUID) (*Medicine, error)
	Update(ctx context.Context, m *Medicine) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*Medicine, int, error)
	// AdjustQuantity applies a signed delta and returns the updated row.
	AdjustQuantity(ctx context.Context, id uuid.UUID, delta int) (*Medicine, error)
	ListLowStock(ctx context.Context) ([]*Medicine, error)
	ListExpiring(ctx context.Context, before time.Time) ([]*Medicine, error)
}
