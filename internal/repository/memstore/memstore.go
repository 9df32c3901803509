// Package memstore is an in-memory implementation of the repository
// contracts, used by tests and local/dev runs. Every collection is a
// plain map guarded by its own RWMutex; no lock is ever held across a
// suspension point since nothing here performs I/O.
package memstore

import (
	"context"
	"sync"
	"time"

	"signalbroker/internal/domain"
	"signalbroker/internal/repository"
)

type ClientStore struct {
	mu   sync.RWMutex
	byID map[string]domain.Client
}

func NewClientStore() *ClientStore {
	return &ClientStore{byID: make(map[string]domain.Client)}
}

func (s *ClientStore) Create(_ context.Context, c domain.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[c.ClientID]; ok {
		return &repository.DatabaseError{Op: "client.create", Kind: repository.KindConflict, Err: repository.ErrConflict}
	}
	s.byID[c.ClientID] = c
	return nil
}

func (s *ClientStore) Get(_ context.Context, clientID string) (domain.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.byID[clientID]
	if !ok {
		return domain.Client{}, &repository.DatabaseError{Op: "client.get", Kind: repository.KindNotFound, Err: repository.ErrNotFound}
	}
	return c, nil
}

func (s *ClientStore) Update(_ context.Context, c domain.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[c.ClientID]; !ok {
		return &repository.DatabaseError{Op: "client.update", Kind: repository.KindNotFound, Err: repository.ErrNotFound}
	}
	s.byID[c.ClientID] = c
	return nil
}

func (s *ClientStore) Delete(_ context.Context, clientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byID, clientID)
	return nil
}

// Touch bumps LastSeen for clientID. It is not part of the
// ClientRepository contract since not every backing store can cheaply
// support a bump-only write, and no handler calls it, so a client's
// LastSeen keeps its registration-time value.
func (s *ClientStore) Touch(clientID string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.byID[clientID]; ok {
		c.LastSeen = now
		s.byID[clientID] = c
	}
}
