package queueclient

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultBackoff is the fixed delay between reconnect attempts.
const DefaultBackoff = 3 * time.Second

// Conn is one established feed connection.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}

// Dialer establishes a new feed connection.
type Dialer func(ctx context.Context) (Conn, error)

// Subscriber maintains a subscription to the queue feed across connection
// failures: on closure it waits a fixed backoff, redials, and re-sends the
// last subscribe message. The last received snapshot stays available while
// disconnected.
type Subscriber struct {
	dial    Dialer
	backoff time.Duration
	onMsg   func([]byte)
	log     zerolog.Logger

	mu           sync.Mutex
	conn         Conn
	lastSub      []byte
	lastSnapshot []byte
}

func NewSubscriber(dial Dialer, onMsg func([]byte), log zerolog.Logger) *Subscriber {
	return &Subscriber{
		dial:    dial,
		backoff: DefaultBackoff,
		onMsg:   onMsg,
		log:     log.With().Str("component", "queueclient").Logger(),
	}
}

// SetBackoff overrides the reconnect delay. Tests use a short value.
func (s *Subscriber) SetBackoff(d time.Duration) {
	s.backoff = d
}

// Subscribe records the subscription to maintain and sends it on the current
// connection if one is up.
func (s *Subscriber) Subscribe(msg []byte) error {
	s.mu.Lock()
	s.lastSub = msg
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.WriteMessage(msg)
}

// LastSnapshot returns the most recent message received, or nil. Used as the
// stale-but-present display value while reconnecting.
func (s *Subscriber) LastSnapshot() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSnapshot
}

// Run drives the connect/read/reconnect loop until ctx is cancelled.
func (s *Subscriber) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		conn, err := s.dial(ctx)
		if err != nil {
			s.log.Warn().Err(err).Msg("dial failed")
			if !s.wait(ctx) {
				return
			}
			continue
		}

		s.mu.Lock()
		s.conn = conn
		sub := s.lastSub
		s.mu.Unlock()

		if sub != nil {
			if err := conn.WriteMessage(sub); err != nil {
				s.log.Warn().Err(err).Msg("re-subscribe failed")
				s.drop(conn)
				if !s.wait(ctx) {
					return
				}
				continue
			}
		}

		s.readLoop(ctx, conn)
		s.drop(conn)
		if !s.wait(ctx) {
			return
		}
	}
}

func (s *Subscriber) readLoop(ctx context.Context, conn Conn) {
	for {
		if ctx.Err() != nil {
			return
		}
		msg, err := conn.ReadMessage()
		if err != nil {
			s.log.Warn().Err(err).Msg("connection lost")
			return
		}
		s.mu.Lock()
		s.lastSnapshot = msg
		s.mu.Unlock()
		if s.onMsg != nil {
			s.onMsg(msg)
		}
	}
}

func (s *Subscriber) drop(conn Conn) {
	conn.Close()
	s.mu.Lock()
	if s.conn == conn {
		s.conn = nil
	}
	s.mu.Unlock()
}

// wait sleeps for the fixed backoff, returning false when ctx is cancelled.
func (s *Subscriber) wait(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(s.backoff):
		return true
	}
}
