package emergency

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicdesk/clinicdesk/internal/platform/notification"
	"github.com/clinicdesk/clinicdesk/internal/queue"
)

// -- Mocks --

type mockRepo struct {
	reqs map[uuid.UUID]*Request
}

func newMockRepo() *mockRepo {
	return &mockRepo{reqs: make(map[uuid.UUID]*Request)}
}

func (m *mockRepo) Create(_ context.Context, r *Request) error {
	r.ID = uuid.New()
	r.CreatedAt = time.Now()
	m.reqs[r.ID] = r
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Request, error) {
	r, ok := m.reqs[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return r, nil
}

func (m *mockRepo) ListByDoctor(_ context.Context, doctorID uuid.UUID, limit, offset int) ([]*Request, int, error) {
	var out []*Request
	for _, r := range m.reqs {
		if r.DoctorID == doctorID {
			out = append(out, r)
		}
	}
	return out, len(out), nil
}

type fakeIntake struct {
	issued []int
	fail   error
}

func (f *fakeIntake) Issue(_ context.Context, patientID, doctorID uuid.UUID, appointmentID *uuid.UUID, priority int) (*queue.Token, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	f.issued = append(f.issued, priority)
	return &queue.Token{
		ID:        uuid.New(),
		PatientID: patientID,
		DoctorID:  doctorID,
		Status:    queue.StatusWaiting,
		Priority:  priority,
	}, nil
}

type recordingChannel struct {
	alerts []notification.Alert
}

func (c *recordingChannel) Deliver(_ context.Context, a notification.Alert) error {
	c.alerts = append(c.alerts, a)
	return nil
}

func newTestService() (*Service, *mockRepo, *fakeIntake, *recordingChannel) {
	repo := newMockRepo()
	intake := &fakeIntake{}
	ch := &recordingChannel{}
	d := notification.NewDispatcher(zerolog.Nop())
	d.Register(ch)
	return NewService(repo, intake, d), repo, intake, ch
}

// -- Tests --

func TestCreate_IssuesEmergencyToken(t *testing.T) {
	svc, repo, intake, ch := newTestService()

	req := &Request{
		PatientID: uuid.New(),
		DoctorID:  uuid.New(),
		Complaint: "chest pain",
		Severity:  SeveritySevere,
	}
	if err := svc.Create(context.Background(), req); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if len(intake.issued) != 1 || intake.issued[0] != queue.PriorityEmergency {
		t.Errorf("issued priorities = %v, want [%d]", intake.issued, queue.PriorityEmergency)
	}
	if req.TokenID == nil {
		t.Error("request not linked to its token")
	}
	if _, ok := repo.reqs[req.ID]; !ok {
		t.Error("request not persisted")
	}
	if len(ch.alerts) != 1 || ch.alerts[0].Kind != notification.KindEmergencyCreated {
		t.Errorf("alerts = %v", ch.alerts)
	}
}

func TestCreate_DefaultSeverity(t *testing.T) {
	svc, _, _, _ := newTestService()

	req := &Request{PatientID: uuid.New(), DoctorID: uuid.New(), Complaint: "fall"}
	if err := svc.Create(context.Background(), req); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if req.Severity != SeverityModerate {
		t.Errorf("severity = %s, want moderate", req.Severity)
	}
}

func TestCreate_Validations(t *testing.T) {
	svc, _, intake, _ := newTestService()

	cases := []Request{
		{DoctorID: uuid.New(), Complaint: "x"},
		{PatientID: uuid.New(), Complaint: "x"},
		{PatientID: uuid.New(), DoctorID: uuid.New()},
		{PatientID: uuid.New(), DoctorID: uuid.New(), Complaint: "x", Severity: "mild-ish"},
	}
	for i, req := range cases {
		if err := svc.Create(context.Background(), &req); err == nil {
			t.Errorf("case %d: expected validation error", i)
		}
	}
	if len(intake.issued) != 0 {
		t.Errorf("tokens issued despite validation failures: %v", intake.issued)
	}
}

func TestCreate_QueueFailureAborts(t *testing.T) {
	svc, repo, intake, ch := newTestService()
	intake.fail = fmt.Errorf("queue unavailable")

	req := &Request{PatientID: uuid.New(), DoctorID: uuid.New(), Complaint: "bleeding"}
	if err := svc.Create(context.Background(), req); err == nil {
		t.Fatal("expected error when queue intake fails")
	}
	if len(repo.reqs) != 0 {
		t.Error("request persisted despite queue failure")
	}
	if len(ch.alerts) != 0 {
		t.Error("alert dispatched despite queue failure")
	}
}
