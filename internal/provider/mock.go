package provider

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// Mock is a RealtimeProvider test double that records every call and
// lets tests script failures (e.g. to exercise compensation paths).
type Mock struct {
	mu       sync.Mutex
	sessions map[string]Session
	seq      atomic.Int64

	// FailCreate, when non-nil, is returned by CreateSession on every
	// call instead of succeeding.
	FailCreate error
	// FailPullN fails the first N calls to PullTracks, then succeeds.
	FailPullN int

	CreateCalls    int
	TerminateCalls []string
}

func NewMock() *Mock {
	return &Mock{sessions: make(map[string]Session)}
}

func (m *Mock) CreateSession(_ context.Context, appID, offerSDP string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreateCalls++
	if m.FailCreate != nil {
		return Session{}, m.FailCreate
	}
	id := fmt.Sprintf("mock-session-%d", m.seq.Add(1))
	s := Session{SessionIDExt: id, AnswerSDP: "v=0\r\no=mock-answer\r\n"}
	m.sessions[id] = s
	return s, nil
}

func (m *Mock) AddTracks(_ context.Context, sessionIDExt, _ string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionIDExt]
	if !ok {
		return Session{}, &NotFoundError{Op: "add_tracks"}
	}
	return s, nil
}

func (m *Mock) PullTracks(_ context.Context, sourceSessionIDExt string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailPullN > 0 {
		m.FailPullN--
		return Session{}, &StatusError{Op: "pull_tracks", StatusCode: 503}
	}
	if _, ok := m.sessions[sourceSessionIDExt]; !ok {
		return Session{}, &NotFoundError{Op: "pull_tracks"}
	}
	id := fmt.Sprintf("mock-pull-%d", m.seq.Add(1))
	s := Session{SessionIDExt: id, AnswerSDP: "v=0\r\no=mock-pull-offer\r\n"}
	return s, nil
}

func (m *Mock) TerminateSession(_ context.Context, sessionIDExt string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TerminateCalls = append(m.TerminateCalls, sessionIDExt)
	delete(m.sessions, sessionIDExt)
	return nil
}

// Has reports whether sessionIDExt is still live, for test assertions
// that no orphan session survives a compensated failure.
func (m *Mock) Has(sessionIDExt string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[sessionIDExt]
	return ok
}
