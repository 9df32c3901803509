// Package session owns per-socket runtime state: the Session type
// (send queue, heartbeat state, write half) and the Manager that maps
// session_id and client_id to a Session, mirroring the reader/writer
// task pair and RWMutex-guarded indices the rest of the broker's
// concurrency model depends on.
package session

import (
	"bufio"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"signalbroker/internal/frame"
)

// Session is the per-socket runtime record. A Session never outlives
// its socket: closing one always closes the other.
type Session struct {
	ID   uuid.UUID
	conn net.Conn
	bw   *bufio.Writer

	state atomic.Int32

	mu           sync.RWMutex
	clientID     string
	openedAt     time.Time
	lastActivity time.Time

	sendCh chan frame.Frame

	closeOnce sync.Once
	done      chan struct{}
	closeErr  error
}

// NewSession allocates Session state around an accepted socket. The
// caller (Manager.Open) is responsible for spawning the reader/writer
// goroutines.
func NewSession(conn net.Conn, sendQueueSize int) *Session {
	now := time.Now()
	s := &Session{
		ID:           uuid.New(),
		conn:         conn,
		bw:           bufio.NewWriter(conn),
		openedAt:     now,
		lastActivity: now,
		sendCh:       make(chan frame.Frame, sendQueueSize),
		done:         make(chan struct{}),
	}
	s.state.Store(int32(AwaitingRegister))
	return s
}

// State returns the session's current heartbeat state.
func (s *Session) State() HeartbeatState { return HeartbeatState(s.state.Load()) }

// setState transitions the session's state. Not exported: state
// transitions are a Manager responsibility so lifecycle events stay
// centralized.
func (s *Session) setState(st HeartbeatState) { s.state.Store(int32(st)) }

// ClientID returns the bound client_id, or "" if still AwaitingRegister.
func (s *Session) ClientID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clientID
}

func (s *Session) bind(clientID string) {
	s.mu.Lock()
	s.clientID = clientID
	s.mu.Unlock()
}

// Touch bumps last_activity to now. Called on every inbound frame.
func (s *Session) Touch(now time.Time) {
	s.mu.Lock()
	s.lastActivity = now
	s.mu.Unlock()
}

// LastActivity returns the last time any frame was received.
func (s *Session) LastActivity() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActivity
}

// OpenedAt returns when the session was created.
func (s *Session) OpenedAt() time.Time { return s.openedAt }

// Enqueue places f on the send queue for the writer goroutine to
// flush. Blocks under backpressure up to the deadline; on timeout the
// caller should treat the session as dead (slow-peer disconnection).
func (s *Session) Enqueue(f frame.Frame, deadline time.Duration) error {
	select {
	case s.sendCh <- f:
		return nil
	case <-s.done:
		return net.ErrClosed
	case <-time.After(deadline):
		return ErrSendQueueFull
	}
}

// writerLoop drains the send queue to the socket. Only the writer
// goroutine touches the socket's output side; everything else
// enqueues, which serializes writes without a per-write lock.
func (s *Session) writerLoop() {
	defer s.bw.Flush()
	for {
		select {
		case <-s.done:
			// drain whatever remains, best-effort, without blocking
			// indefinitely.
			for {
				select {
				case f := <-s.sendCh:
					_ = frame.Encode(s.bw, f)
				default:
					return
				}
			}
		case f, ok := <-s.sendCh:
			if !ok {
				return
			}
			if err := frame.Encode(s.bw, f); err != nil {
				s.Close(err)
				return
			}
			if len(s.sendCh) == 0 {
				_ = s.bw.Flush()
			}
		}
	}
}

// Close tears the session down idempotently: the socket is closed,
// the done channel is closed, and subsequent Enqueue/writerLoop calls
// observe it immediately.
func (s *Session) Close(cause error) {
	s.closeOnce.Do(func() {
		s.closeErr = cause
		s.setState(Closing)
		close(s.done)
		_ = s.conn.Close()
	})
}

// Done returns a channel closed once the session has been torn down.
func (s *Session) Done() <-chan struct{} { return s.done }

// Conn exposes the underlying socket for reader use (blocking reads
// outside the writer's exclusive domain).
func (s *Session) Conn() net.Conn { return s.conn }
