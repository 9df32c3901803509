package session

import (
	"bufio"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"signalbroker/internal/frame"
	"signalbroker/internal/logging"
)

// Dispatch handles one decoded frame for a session. Implemented by the
// server/registration/room/signaling layers; the session manager never
// interprets payloads itself.
type Dispatch func(s *Session, f frame.Frame)

// DecodeError is invoked when frame.Decode fails. malformed reports
// whether the session must be torn down (true) or may stay open after
// an ERROR reply (false, for unknown message/payload type).
type DecodeError func(s *Session, err error, malformed bool)

// EvictNotify is invoked when Bind evicts a previously-bound session
// for the same client_id, so the server can send the courtesy
// DISCONNECT frame before the old socket closes.
type EvictNotify func(old *Session, reason CloseReason)

// Manager owns the session_id -> *Session map and the client_id ->
// session_id secondary index, guarded by a single RWMutex never held
// across a suspension point: every method below either only touches
// maps, or releases the lock before doing any I/O.
type Manager struct {
	maxMessageSize int

	mu        sync.RWMutex
	byID      map[uuid.UUID]*Session
	byClient  map[string]uuid.UUID

	onEvict EvictNotify
}

// NewManager constructs an empty Manager. maxMessageSize bounds
// decoder-side payload length independent of the wire's own 65535-byte
// ceiling (frame.MaxPayloadLen).
func NewManager(maxMessageSize int, onEvict EvictNotify) *Manager {
	return &Manager{
		maxMessageSize: maxMessageSize,
		byID:           make(map[uuid.UUID]*Session),
		byClient:       make(map[string]uuid.UUID),
		onEvict:        onEvict,
	}
}

// Open allocates a Session around conn and spawns its reader and
// writer goroutines. The reader decodes frames and invokes dispatch in
// arrival order; it never touches the socket's output side. onDone is
// invoked exactly once, after the reader loop exits for any reason
// (EOF, decode error, or the session being closed), so the caller can
// run close-time cleanup.
func (m *Manager) Open(conn net.Conn, sendQueueSize int, dispatch Dispatch, onDecodeErr DecodeError, onDone func(*Session)) *Session {
	s := NewSession(conn, sendQueueSize)

	m.mu.Lock()
	m.byID[s.ID] = s
	m.mu.Unlock()

	go s.writerLoop()
	go m.readerLoop(s, dispatch, onDecodeErr, onDone)

	return s
}

func (m *Manager) readerLoop(s *Session, dispatch Dispatch, onDecodeErr DecodeError, onDone func(*Session)) {
	defer func() {
		m.remove(s)
		if onDone != nil {
			onDone(s)
		}
	}()

	br := bufio.NewReaderSize(s.conn, 8192)
	for {
		select {
		case <-s.done:
			return
		default:
		}
		f, err := frame.Decode(br, m.maxMessageSize)
		if err != nil {
			// ErrUnknownMessageType/ErrUnknownPayloadType are the only
			// cases where the frame was fully consumed and the session
			// can stay open; everything else (bad start byte, oversize
			// payload, transport failure) tears it down.
			recoverable := err == frame.ErrUnknownMessageType || err == frame.ErrUnknownPayloadType
			if onDecodeErr != nil {
				onDecodeErr(s, err, !recoverable)
			}
			if !recoverable {
				s.Close(err)
				return
			}
			continue
		}
		s.Touch(time.Now())
		dispatch(s, f)
	}
}

// Bind associates clientID with s, evicting any session already
// holding that client_id (courtesy DISCONNECT is the caller's
// responsibility via onEvict, invoked with the lock released).
func (m *Manager) Bind(s *Session, clientID string) {
	m.mu.Lock()
	var evicted *Session
	if existingID, ok := m.byClient[clientID]; ok && existingID != s.ID {
		evicted = m.byID[existingID]
		delete(m.byID, existingID)
	}
	s.bind(clientID)
	s.setState(Live)
	m.byClient[clientID] = s.ID
	m.mu.Unlock()

	if evicted != nil {
		if m.onEvict != nil {
			m.onEvict(evicted, ReasonSuperseded)
		}
		evicted.Close(nil)
	}
}

// Get returns the session for id, if open.
func (m *Manager) Get(id uuid.UUID) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.byID[id]
	return s, ok
}

// GetByClient returns the session currently bound to clientID, if any.
func (m *Manager) GetByClient(clientID string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byClient[clientID]
	if !ok {
		return nil, false
	}
	s, ok := m.byID[id]
	return s, ok
}

func (m *Manager) remove(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.byID[s.ID]; ok && cur == s {
		delete(m.byID, s.ID)
	}
	clientID := s.ClientID()
	if clientID != "" {
		if id, ok := m.byClient[clientID]; ok && id == s.ID {
			delete(m.byClient, clientID)
		}
	}
}

// Broadcast enqueues msg on every session matching predicate. Never
// synchronous: a slow or dead peer blocks only its own enqueue up to
// the given deadline, observed from a background goroutine so
// Broadcast itself never suspends the caller.
func (m *Manager) Broadcast(f frame.Frame, deadline time.Duration, predicate func(*Session) bool) {
	m.mu.RLock()
	targets := make([]*Session, 0, len(m.byID))
	for _, s := range m.byID {
		if predicate == nil || predicate(s) {
			targets = append(targets, s)
		}
	}
	m.mu.RUnlock()

	for _, s := range targets {
		go func(s *Session) {
			if err := s.Enqueue(f, deadline); err != nil {
				logging.With(map[string]any{"session_id": s.ID, "err": err}).Warn("broadcast enqueue failed")
			}
		}(s)
	}
}

// Snapshot returns the number of open sessions, for the admin surface.
func (m *Manager) Snapshot() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byID)
}

// All returns every open session; used by graceful shutdown.
func (m *Manager) All() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Session, 0, len(m.byID))
	for _, s := range m.byID {
		out = append(out, s)
	}
	return out
}
