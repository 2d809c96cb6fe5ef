package medicine

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/clinicdesk/clinicdesk/internal/platform/notification"
)

// DefaultExpiryWindowDays bounds the "expiring soon" listing.
const DefaultExpiryWindowDays = 30

type Service struct {
	repo     Repository
	notifier *notification.Dispatcher
}

func NewService(repo Repository, notifier *notification.Dispatcher) *Service {
	return &Service{repo: repo, notifier: notifier}
}

func (s *Service) Create(ctx context.Context, m *Medicine) error {
	if m.Name == "" {
		return fmt.Errorf("medicine name is required")
	}
	if m.Quantity < 0 {
		return fmt.Errorf("quantity cannot be negative")
	}
	if m.ReorderLevel < 0 {
		return fmt.Errorf("reorder level cannot be negative")
	}
	return s.repo.Create(ctx, m)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Medicine, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Update(ctx context.Context, m *Medicine) error {
	if m.Name == "" {
		return fmt.Errorf("medicine name is required")
	}
	return s.repo.Update(ctx, m)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Medicine, int, error) {
	return s.repo.List(ctx, limit, offset)
}

// Adjust applies a signed stock delta. Dispensing that drops a batch to or
// below its reorder level raises a low-stock alert.
func (s *Service) Adjust(ctx context.Context, id uuid.UUID, delta int) (*Medicine, error) {
	if delta == 0 {
		return nil, fmt.Errorf("delta must be non-zero")
	}
	m, err := s.repo.AdjustQuantity(ctx, id, delta)
	if err != nil {
		return nil, err
	}
	if delta < 0 && m.LowStock() {
		s.notifier.Dispatch(ctx, notification.KindLowStock, map[string]string{
			"medicine_name": m.Name,
			"batch":         m.Batch,
			"quantity":      strconv.Itoa(m.Quantity),
			"reorder_level": strconv.Itoa(m.ReorderLevel),
		})
	}
	return m, nil
}

func (s *Service) ListLowStock(ctx context.Context) ([]*Medicine, error) {
	return s.repo.ListLowStock(ctx)
}

// ListExpiring returns batches expiring within the window (days; the
// default is used when days <= 0).
func (s *Service) ListExpiring(ctx context.Context, days int) ([]*Medicine, error) {
	if days <= 0 {
		days = DefaultExpiryWindowDays
	}
	before := time.Now().AddDate(0, 0, days)
	return s.repo.ListExpiring(ctx, before)
}
