package realtime

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// fakeSource returns canned snapshots and counts calls.
type fakeSource struct {
	mu           sync.Mutex
	patientCalls int
	adminCalls   int
	lastPatient  uuid.UUID
	fail         bool
}

func (f *fakeSource) PatientSnapshot(_ context.Context, patientID uuid.UUID) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return nil, errors.New("store unavailable")
	}
	f.patientCalls++
	f.lastPatient = patientID
	return []byte(fmt.Sprintf(`{"type":"queue_position","patient":"%s","seq":%d}`, patientID, f.patientCalls)), nil
}

func (f *fakeSource) AdminSnapshot(_ context.Context, doctorID uuid.UUID) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return nil, errors.New("store unavailable")
	}
	f.adminCalls++
	return []byte(fmt.Sprintf(`{"type":"admin_queue_update","doctor":"%s"}`, doctorID)), nil
}

func newTestHub() (*Hub, *fakeSource) {
	hub := NewHub(zerolog.New(os.Stderr), nil)
	src := &fakeSource{}
	hub.SetSource(src)
	return hub, src
}

func newTestClient(buffer int) *Client {
	return &Client{ID: uuid.New().String(), Send: make(chan []byte, buffer)}
}

func receive(t *testing.T, c *Client) []byte {
	t.Helper()
	select {
	case msg := <-c.Send:
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func TestSubscribe_SendsSnapshot(t *testing.T) {
	hub, _ := newTestHub()
	client := newTestClient(4)
	hub.Register(client)

	patientID := uuid.New()
	hub.Subscribe(context.Background(), client.ID, Scope{Kind: ScopePatient, PatientID: patientID})

	msg := receive(t, client)
	if len(msg) == 0 {
		t.Fatal("expected snapshot payload")
	}
}

func TestSubscribe_Idempotent(t *testing.T) {
	hub, _ := newTestHub()
	client := newTestClient(4)
	hub.Register(client)

	scope := Scope{Kind: ScopePatient, PatientID: uuid.New()}
	hub.Subscribe(context.Background(), client.ID, scope)
	hub.Subscribe(context.Background(), client.ID, scope)

	// Two snapshots, one registry entry.
	receive(t, client)
	receive(t, client)
	if n := hub.ScopeCount(scope); n != 1 {
		t.Errorf("expected 1 registry entry, got %d", n)
	}
}

func TestSubscribe_ReplacesPriorScope(t *testing.T) {
	hub, _ := newTestHub()
	client := newTestClient(4)
	hub.Register(client)

	first := Scope{Kind: ScopePatient, PatientID: uuid.New()}
	second := Scope{Kind: ScopeAdmin, DoctorID: uuid.New()}
	hub.Subscribe(context.Background(), client.ID, first)
	hub.Subscribe(context.Background(), client.ID, second)

	if n := hub.ScopeCount(first); n != 0 {
		t.Errorf("expected prior scope to be vacated, got %d entries", n)
	}
	if n := hub.ScopeCount(second); n != 1 {
		t.Errorf("expected 1 entry on new scope, got %d", n)
	}
}

func TestSubscribe_SnapshotErrorKeepsConnection(t *testing.T) {
	hub, src := newTestHub()
	src.fail = true
	client := newTestClient(4)
	hub.Register(client)

	hub.Subscribe(context.Background(), client.ID, Scope{Kind: ScopePatient, PatientID: uuid.New()})

	if hub.ClientCount() != 1 {
		t.Error("expected client to remain registered after snapshot failure")
	}
	select {
	case <-client.Send:
		t.Error("expected no message after snapshot failure")
	default:
	}
}

func TestPublish_RoutesByScope(t *testing.T) {
	hub, _ := newTestHub()
	doctorID := uuid.New()
	patientA := uuid.New()
	patientB := uuid.New()

	clientA := newTestClient(4)
	clientB := newTestClient(4)
	admin := newTestClient(4)
	for _, c := range []*Client{clientA, clientB, admin} {
		hub.Register(c)
	}
	hub.Subscribe(context.Background(), clientA.ID, Scope{Kind: ScopePatient, PatientID: patientA})
	hub.Subscribe(context.Background(), clientB.ID, Scope{Kind: ScopePatient, PatientID: patientB})
	hub.Subscribe(context.Background(), admin.ID, Scope{Kind: ScopeAdmin, DoctorID: doctorID})
	receive(t, clientA)
	receive(t, clientB)
	receive(t, admin)

	hub.Publish(doctorID, map[uuid.UUID][]byte{
		patientA: []byte(`{"for":"a"}`),
	}, []byte(`{"for":"admin"}`))

	if got := string(receive(t, clientA)); got != `{"for":"a"}` {
		t.Errorf("patient A got %s", got)
	}
	if got := string(receive(t, admin)); got != `{"for":"admin"}` {
		t.Errorf("admin got %s", got)
	}
	select {
	case msg := <-clientB.Send:
		t.Errorf("patient B should not receive anything, got %s", msg)
	default:
	}
}

func TestPublish_PerConnectionFIFO(t *testing.T) {
	hub, _ := newTestHub()
	patientID := uuid.New()
	doctorID := uuid.New()
	client := newTestClient(16)
	hub.Register(client)
	hub.Subscribe(context.Background(), client.ID, Scope{Kind: ScopePatient, PatientID: patientID})
	receive(t, client)

	for i := 0; i < 5; i++ {
		hub.Publish(doctorID, map[uuid.UUID][]byte{
			patientID: []byte(fmt.Sprintf(`{"seq":%d}`, i)),
		}, nil)
	}

	for i := 0; i < 5; i++ {
		want := fmt.Sprintf(`{"seq":%d}`, i)
		if got := string(receive(t, client)); got != want {
			t.Fatalf("position %d: expected %s, got %s", i, want, got)
		}
	}
}

func TestPublish_FullBufferDoesNotBlock(t *testing.T) {
	hub, _ := newTestHub()
	patientID, doctorID := uuid.New(), uuid.New()
	client := newTestClient(1)
	hub.Register(client)
	hub.Subscribe(context.Background(), client.ID, Scope{Kind: ScopePatient, PatientID: patientID})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10; i++ {
			hub.Publish(doctorID, map[uuid.UUID][]byte{patientID: []byte(`{}`)}, nil)
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}

func TestUnregister_RemovesFromScope(t *testing.T) {
	hub, _ := newTestHub()
	scope := Scope{Kind: ScopePatient, PatientID: uuid.New()}
	client := newTestClient(4)
	hub.Register(client)
	hub.Subscribe(context.Background(), client.ID, scope)

	hub.Unregister(client.ID)

	if hub.ClientCount() != 0 {
		t.Error("expected client to be removed")
	}
	if hub.ScopeCount(scope) != 0 {
		t.Error("expected scope entry to be removed")
	}

	// Second unregister is a no-op.
	hub.Unregister(client.ID)
}

func TestUnregister_DoesNotAffectOthers(t *testing.T) {
	hub, _ := newTestHub()
	doctorID := uuid.New()
	patientID := uuid.New()

	leaving := newTestClient(4)
	staying := newTestClient(4)
	hub.Register(leaving)
	hub.Register(staying)
	hub.Subscribe(context.Background(), leaving.ID, Scope{Kind: ScopePatient, PatientID: patientID})
	hub.Subscribe(context.Background(), staying.ID, Scope{Kind: ScopePatient, PatientID: patientID})
	receive(t, leaving)
	receive(t, staying)

	hub.Unregister(leaving.ID)
	hub.Publish(doctorID, map[uuid.UUID][]byte{patientID: []byte(`{"still":"here"}`)}, nil)

	if got := string(receive(t, staying)); got != `{"still":"here"}` {
		t.Errorf("surviving subscriber got %s", got)
	}
}

// ---------------------------------------------------------------------------
// readPump message handling
// ---------------------------------------------------------------------------

// scriptedConn feeds a fixed list of inbound frames, then reports closure.
type scriptedConn struct {
	mu     sync.Mutex
	frames [][]byte
	closed bool
}

func (c *scriptedConn) ReadMessage() (int, []byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.frames) == 0 {
		return 0, nil, errors.New("connection closed")
	}
	frame := c.frames[0]
	c.frames = c.frames[1:]
	return 1, frame, nil
}

func (c *scriptedConn) WriteMessage(int, []byte) error { return nil }

func (c *scriptedConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func TestReadPump_MalformedAndUnknownDiscarded(t *testing.T) {
	hub, src := newTestHub()
	patientID := uuid.New()
	conn := &scriptedConn{frames: [][]byte{
		[]byte(`not json at all`),
		[]byte(`{"type":"mystery"}`),
		[]byte(fmt.Sprintf(`{"type":"subscribe_patient_queue","patientId":"%s"}`, patientID)),
	}}
	client := &Client{ID: uuid.New().String(), Send: make(chan []byte, 4), conn: conn}
	hub.Register(client)

	wh := &Handler{hub: hub, log: zerolog.New(os.Stderr)}
	wh.readPump(context.Background(), client, uuid.Nil)

	src.mu.Lock()
	calls := src.patientCalls
	src.mu.Unlock()
	if calls != 1 {
		t.Errorf("expected exactly 1 snapshot from the valid subscribe, got %d", calls)
	}
	if !conn.closed {
		t.Error("expected connection to be closed after read loop ends")
	}
}

func TestReadPump_BoundPatientOverridesMessage(t *testing.T) {
	hub, src := newTestHub()
	bound := uuid.New()
	other := uuid.New()
	conn := &scriptedConn{frames: [][]byte{
		[]byte(fmt.Sprintf(`{"type":"subscribe_patient_queue","patientId":"%s"}`, other)),
	}}
	client := &Client{ID: uuid.New().String(), Send: make(chan []byte, 4), conn: conn}
	hub.Register(client)

	wh := &Handler{hub: hub, log: zerolog.New(os.Stderr)}
	wh.readPump(context.Background(), client, bound)

	src.mu.Lock()
	defer src.mu.Unlock()
	if src.lastPatient != bound {
		t.Errorf("expected snapshot for bound patient %s, got %s", bound, src.lastPatient)
	}
}
