// Package realtime maintains the registry of live WebSocket connections and
// routes queue snapshots to them. Each connection carries at most one
// subscription scope: a single patient's position, or a doctor's full queue
// (the admin view). Delivery is fire-and-forget; a slow or broken subscriber
// never blocks the mutation path or its siblings.
package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/google/uuid"
	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinicdesk/clinicdesk/internal/platform/metrics"
)

// Message types on the wire.
const (
	TypeSubscribePatient = "subscribe_patient_queue"
	TypeSubscribeAdmin   = "subscribe_admin_queue"
)

// ClientMessage is an inbound message from a WebSocket client. Anything that
// does not match a known type is logged and discarded at the boundary.
type ClientMessage struct {
	Type      string `json:"type"`
	PatientID string `json:"patientId,omitempty"`
}

// ScopeKind distinguishes the two subscription targets.
type ScopeKind string

const (
	ScopePatient ScopeKind = "patient"
	ScopeAdmin   ScopeKind = "admin"
)

// Scope is the subscription target of a connection.
type Scope struct {
	Kind      ScopeKind
	PatientID uuid.UUID // set for ScopePatient
	DoctorID  uuid.UUID // set for ScopeAdmin
}

func (s Scope) key() string {
	if s.Kind == ScopeAdmin {
		return "admin:" + s.DoctorID.String()
	}
	return "patient:" + s.PatientID.String()
}

// SnapshotSource produces the snapshot payloads sent on subscribe. The queue
// service implements it.
type SnapshotSource interface {
	PatientSnapshot(ctx context.Context, patientID uuid.UUID) ([]byte, error)
	AdminSnapshot(ctx context.Context, doctorID uuid.UUID) ([]byte, error)
}

// Conn abstracts a WebSocket connection for testability.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client represents a single WebSocket connection.
type Client struct {
	ID       string
	Send     chan []byte
	conn     Conn
	doctorID uuid.UUID // admin scope target resolved at connect
	scope    *Scope
}

// Hub is the connection registry. All operations are safe for concurrent use.
type Hub struct {
	mu      sync.RWMutex
	conns   map[string]*Client
	byScope map[string]map[string]*Client // scope key -> client id -> client

	source  SnapshotSource
	log     zerolog.Logger
	metrics *metrics.Metrics
}

func NewHub(log zerolog.Logger, m *metrics.Metrics) *Hub {
	return &Hub{
		conns:   make(map[string]*Client),
		byScope: make(map[string]map[string]*Client),
		log:     log,
		metrics: m,
	}
}

// SetSource attaches the snapshot source. Must be called before serving
// connections; separate from the constructor because the queue service that
// implements it is built after the hub.
func (h *Hub) SetSource(src SnapshotSource) {
	h.source = src
}

// Register adds a client with no scope yet.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	h.conns[client.ID] = client
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.ConnectedClients.Inc()
	}
}

// Unregister removes a client from the registry and its scope, and closes its
// send channel. Safe to call twice.
func (h *Hub) Unregister(clientID string) {
	h.mu.Lock()
	client, ok := h.conns[clientID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if client.scope != nil {
		h.detachScopeLocked(client)
	}
	delete(h.conns, clientID)
	h.mu.Unlock()

	close(client.Send)
	if h.metrics != nil {
		h.metrics.ConnectedClients.Dec()
	}
}

func (h *Hub) detachScopeLocked(client *Client) {
	key := client.scope.key()
	if set, ok := h.byScope[key]; ok {
		delete(set, client.ID)
		if len(set) == 0 {
			delete(h.byScope, key)
		}
	}
	client.scope = nil
}

// Subscribe replaces the client's scope with the given one and immediately
// sends the matching snapshot. Re-subscribing to the same scope resends the
// current snapshot and leaves a single registry entry in place.
func (h *Hub) Subscribe(ctx context.Context, clientID string, scope Scope) {
	h.mu.Lock()
	client, ok := h.conns[clientID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if client.scope != nil {
		h.detachScopeLocked(client)
	}
	sc := scope
	client.scope = &sc
	key := sc.key()
	if h.byScope[key] == nil {
		h.byScope[key] = make(map[string]*Client)
	}
	h.byScope[key][clientID] = client
	h.mu.Unlock()

	// The snapshot is read outside the queue's per-doctor mutation lock, so
	// it may trail a publish that raced the subscribe; the next publish for
	// the scope carries the current state.
	snapshot, err := h.snapshot(ctx, scope)
	if err != nil {
		h.log.Error().Err(err).Str("scope", key).Msg("build subscribe snapshot")
		return
	}

	// Re-check under the lock: the client may have disconnected while the
	// snapshot was being built, and its send channel closed.
	h.mu.RLock()
	if _, ok := h.conns[clientID]; ok {
		h.trySend(client, snapshot, scope.Kind)
	}
	h.mu.RUnlock()
}

func (h *Hub) snapshot(ctx context.Context, scope Scope) ([]byte, error) {
	if scope.Kind == ScopeAdmin {
		return h.source.AdminSnapshot(ctx, scope.DoctorID)
	}
	return h.source.PatientSnapshot(ctx, scope.PatientID)
}

// Publish delivers post-mutation snapshots: one per affected patient scope,
// and the full-queue payload to the doctor's admin scope.
func (h *Hub) Publish(doctorID uuid.UUID, patientMsgs map[uuid.UUID][]byte, adminMsg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for patientID, msg := range patientMsgs {
		key := Scope{Kind: ScopePatient, PatientID: patientID}.key()
		for _, client := range h.byScope[key] {
			h.trySend(client, msg, ScopePatient)
		}
	}

	if adminMsg != nil {
		key := Scope{Kind: ScopeAdmin, DoctorID: doctorID}.key()
		for _, client := range h.byScope[key] {
			h.trySend(client, adminMsg, ScopeAdmin)
		}
	}
}

// trySend enqueues without blocking. A full buffer means the subscriber is
// not keeping up; the stale snapshot is dropped since a newer one supersedes
// it and per-connection ordering is preserved either way.
func (h *Hub) trySend(client *Client, msg []byte, kind ScopeKind) {
	select {
	case client.Send <- msg:
		if h.metrics != nil {
			h.metrics.PushesDelivered.WithLabelValues(string(kind)).Inc()
		}
	default:
		if h.metrics != nil {
			h.metrics.PushesDropped.Inc()
		}
		h.log.Warn().Str("client_id", client.ID).Msg("send buffer full, snapshot dropped")
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// ScopeCount returns the number of clients subscribed to the given scope.
func (h *Hub) ScopeCount(scope Scope) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byScope[scope.key()])
}

// ---------------------------------------------------------------------------
// Handler: Echo HTTP handler for WebSocket connections
// ---------------------------------------------------------------------------

var upgrader = gorillawebsocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins; tighten in production.
	},
}

// Handler upgrades HTTP connections to WebSocket and routes inbound
// subscription messages. boundPatient and adminDoctor resolve the caller's
// identity from the request so a patient token can only watch its own
// position and the admin scope targets the right doctor.
type Handler struct {
	hub          *Hub
	boundPatient func(echo.Context) uuid.UUID
	adminDoctor  func(echo.Context) uuid.UUID
	log          zerolog.Logger
}

func NewHandler(hub *Hub, boundPatient, adminDoctor func(echo.Context) uuid.UUID, log zerolog.Logger) *Handler {
	return &Handler{hub: hub, boundPatient: boundPatient, adminDoctor: adminDoctor, log: log}
}

// RegisterRoutes registers the WebSocket endpoint.
func (wh *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/ws", wh.HandleConnect)
}

// HandleConnect upgrades the connection, registers the client, and starts the
// read/write pumps.
func (wh *Handler) HandleConnect(c echo.Context) error {
	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	client := &Client{
		ID:       uuid.New().String(),
		Send:     make(chan []byte, 256),
		conn:     &gorillaConnAdapter{ws},
		doctorID: wh.adminDoctor(c),
	}

	wh.hub.Register(client)

	go wh.writePump(client)
	go wh.readPump(c.Request().Context(), client, wh.boundPatient(c))

	return nil
}

// readPump reads inbound messages and dispatches subscriptions. Malformed or
// unknown messages are logged and discarded; the connection stays open.
func (wh *Handler) readPump(ctx context.Context, client *Client, boundPatient uuid.UUID) {
	defer func() {
		wh.hub.Unregister(client.ID)
		client.conn.Close()
	}()

	for {
		_, raw, err := client.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			wh.log.Warn().Str("client_id", client.ID).Msg("discarding malformed message")
			continue
		}

		switch msg.Type {
		case TypeSubscribePatient:
			patientID := boundPatient
			if patientID == uuid.Nil {
				patientID, err = uuid.Parse(msg.PatientID)
				if err != nil {
					wh.log.Warn().Str("client_id", client.ID).Msg("discarding subscribe with invalid patientId")
					continue
				}
			}
			wh.hub.Subscribe(ctx, client.ID, Scope{Kind: ScopePatient, PatientID: patientID})
		case TypeSubscribeAdmin:
			if client.doctorID == uuid.Nil {
				wh.log.Warn().Str("client_id", client.ID).Msg("admin subscribe without doctor scope")
				continue
			}
			wh.hub.Subscribe(ctx, client.ID, Scope{Kind: ScopeAdmin, DoctorID: client.doctorID})
		default:
			wh.log.Warn().Str("client_id", client.ID).Str("type", msg.Type).Msg("discarding unknown message type")
		}
	}
}

// writePump writes queued messages to the connection. A write error tears the
// connection down; senders are never affected.
func (wh *Handler) writePump(client *Client) {
	defer client.conn.Close()

	for message := range client.Send {
		if err := client.conn.WriteMessage(gorillawebsocket.TextMessage, message); err != nil {
			wh.hub.Unregister(client.ID)
			return
		}
	}
}

// gorillaConnAdapter wraps a gorilla/websocket.Conn to satisfy Conn.
type gorillaConnAdapter struct {
	conn *gorillawebsocket.Conn
}

func (a *gorillaConnAdapter) ReadMessage() (int, []byte, error) {
	return a.conn.ReadMessage()
}

func (a *gorillaConnAdapter) WriteMessage(messageType int, data []byte) error {
	return a.conn.WriteMessage(messageType, data)
}

func (a *gorillaConnAdapter) Close() error {
	return a.conn.Close()
}
