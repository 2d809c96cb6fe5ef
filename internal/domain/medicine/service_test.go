package medicine

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicdesk/clinicdesk/internal/platform/notification"
)

// -- Mock Repository --

type mockRepo struct {
	meds map[uuid.UUID]*Medicine
}

func newMockRepo() *mockRepo {
	return &mockRepo{meds: make(map[uuid.UUID]*Medicine)}
}

func (m *mockRepo) Create(_ context.Context, med *Medicine) error {
	med.ID = uuid.New()
	med.CreatedAt = time.Now()
	med.UpdatedAt = time.Now()
	m.meds[med.ID] = med
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Medicine, error) {
	med, ok := m.meds[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return med, nil
}

func (m *mockRepo) Update(_ context.Context, med *Medicine) error {
	if _, ok := m.meds[med.ID]; !ok {
		return fmt.Errorf("not found")
	}
	m.meds[med.ID] = med
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.meds, id)
	return nil
}

func (m *mockRepo) List(_ context.Context, limit, offset int) ([]*Medicine, int, error) {
	var out []*Medicine
	for _, med := range m.meds {
		out = append(out, med)
	}
	return out, len(out), nil
}

func (m *mockRepo) AdjustQuantity(_ context.Context, id uuid.UUID, delta int) (*Medicine, error) {
	med, ok := m.meds[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	if med.Quantity+delta < 0 {
		return nil, fmt.Errorf("stock would go negative")
	}
	med.Quantity += delta
	return med, nil
}

func (m *mockRepo) ListLowStock(_ context.Context) ([]*Medicine, error) {
	var out []*Medicine
	for _, med := range m.meds {
		if med.LowStock() {
			out = append(out, med)
		}
	}
	return out, nil
}

func (m *mockRepo) ListExpiring(_ context.Context, before time.Time) ([]*Medicine, error) {
	var out []*Medicine
	for _, med := range m.meds {
		if med.ExpiryDate != nil && !med.ExpiryDate.After(before) {
			out = append(out, med)
		}
	}
	return out, nil
}

type recordingChannel struct {
	alerts []notification.Alert
}

func (c *recordingChannel) Deliver(_ context.Context, a notification.Alert) error {
	c.alerts = append(c.alerts, a)
	return nil
}

func newTestService() (*Service, *mockRepo, *recordingChannel) {
	repo := newMockRepo()
	ch := &recordingChannel{}
	d := notification.NewDispatcher(zerolog.Nop())
	d.Register(ch)
	return NewService(repo, d), repo, ch
}

// -- Tests --

func TestCreate(t *testing.T) {
	svc, _, _ := newTestService()

	m := &Medicine{Name: "Paracetamol 500mg", Batch: "B221", Quantity: 200, ReorderLevel: 50}
	if err := svc.Create(context.Background(), m); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if m.ID == uuid.Nil {
		t.Error("medicine ID not assigned")
	}
}

func TestCreate_Validations(t *testing.T) {
	svc, _, _ := newTestService()

	cases := []Medicine{
		{Batch: "B1", Quantity: 10},
		{Name: "X", Quantity: -1},
		{Name: "X", ReorderLevel: -1},
	}
	for i, m := range cases {
		if err := svc.Create(context.Background(), &m); err == nil {
			t.Errorf("case %d: expected validation error", i)
		}
	}
}

func TestAdjust_DispenseTriggersLowStockAlert(t *testing.T) {
	svc, _, ch := newTestService()

	m := &Medicine{Name: "Amoxicillin", Batch: "A9", Quantity: 12, ReorderLevel: 10}
	if err := svc.Create(context.Background(), m); err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Still above reorder level: no alert.
	if _, err := svc.Adjust(context.Background(), m.ID, -1); err != nil {
		t.Fatalf("Adjust: %v", err)
	}
	if len(ch.alerts) != 0 {
		t.Fatalf("unexpected alert at quantity 11: %v", ch.alerts)
	}

	// Crosses the reorder level.
	got, err := svc.Adjust(context.Background(), m.ID, -1)
	if err != nil {
		t.Fatalf("Adjust: %v", err)
	}
	if got.Quantity != 10 {
		t.Errorf("quantity = %d, want 10", got.Quantity)
	}
	if len(ch.alerts) != 1 || ch.alerts[0].Kind != notification.KindLowStock {
		t.Fatalf("alerts = %v, want one low_stock", ch.alerts)
	}
}

func TestAdjust_RestockDoesNotAlert(t *testing.T) {
	svc, _, ch := newTestService()

	m := &Medicine{Name: "Insulin", Batch: "I3", Quantity: 2, ReorderLevel: 10}
	if err := svc.Create(context.Background(), m); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Adjust(context.Background(), m.ID, 5); err != nil {
		t.Fatalf("Adjust: %v", err)
	}
	if len(ch.alerts) != 0 {
		t.Errorf("restock raised alerts: %v", ch.alerts)
	}
}

func TestAdjust_ZeroDelta(t *testing.T) {
	svc, _, _ := newTestService()
	if _, err := svc.Adjust(context.Background(), uuid.New(), 0); err == nil {
		t.Fatal("expected error for zero delta")
	}
}

func TestAdjust_NegativeStockRejected(t *testing.T) {
	svc, _, _ := newTestService()

	m := &Medicine{Name: "Ibuprofen", Batch: "I1", Quantity: 3, ReorderLevel: 1}
	if err := svc.Create(context.Background(), m); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Adjust(context.Background(), m.ID, -5); err == nil {
		t.Fatal("expected error when stock would go negative")
	}
}

func TestListLowStock_ExactMembership(t *testing.T) {
	svc, _, _ := newTestService()

	low1 := &Medicine{Name: "A", Batch: "1", Quantity: 5, ReorderLevel: 10}
	low2 := &Medicine{Name: "B", Batch: "1", Quantity: 10, ReorderLevel: 10}
	ok := &Medicine{Name: "C", Batch: "1", Quantity: 11, ReorderLevel: 10}
	for _, m := range []*Medicine{low1, low2, ok} {
		if err := svc.Create(context.Background(), m); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	got, err := svc.ListLowStock(context.Background())
	if err != nil {
		t.Fatalf("ListLowStock: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("low stock count = %d, want 2", len(got))
	}
	for _, m := range got {
		if m.ID == ok.ID {
			t.Error("above-threshold medicine listed as low stock")
		}
	}
}

func TestListExpiring(t *testing.T) {
	svc, _, _ := newTestService()

	soon := time.Now().AddDate(0, 0, 7)
	far := time.Now().AddDate(1, 0, 0)
	expiring := &Medicine{Name: "A", Batch: "1", Quantity: 5, ExpiryDate: &soon}
	fresh := &Medicine{Name: "B", Batch: "1", Quantity: 5, ExpiryDate: &far}
	noExpiry := &Medicine{Name: "C", Batch: "1", Quantity: 5}
	for _, m := range []*Medicine{expiring, fresh, noExpiry} {
		if err := svc.Create(context.Background(), m); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	got, err := svc.ListExpiring(context.Background(), 30)
	if err != nil {
		t.Fatalf("ListExpiring: %v", err)
	}
	if len(got) != 1 || got[0].ID != expiring.ID {
		t.Fatalf("expiring = %v, want just the 7-day batch", got)
	}
}
