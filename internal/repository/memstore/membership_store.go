package memstore

import (
	"context"
	"sync"

	"signalbroker/internal/domain"
	"signalbroker/internal/repository"
)

type MembershipStore struct {
	mu       sync.RWMutex
	byClient map[string]domain.Membership
}

func NewMembershipStore() *MembershipStore {
	return &MembershipStore{byClient: make(map[string]domain.Membership)}
}

func (s *MembershipStore) Create(_ context.Context, m domain.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.byClient[m.ClientID]; ok && existing.Status == domain.MembershipActive {
		return &repository.DatabaseError{Op: "membership.create", Kind: repository.KindConflict, Err: repository.ErrConflict}
	}
	s.byClient[m.ClientID] = m
	return nil
}

func (s *MembershipStore) Get(_ context.Context, clientID string) (domain.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.byClient[clientID]
	if !ok {
		return domain.Membership{}, &repository.DatabaseError{Op: "membership.get", Kind: repository.KindNotFound, Err: repository.ErrNotFound}
	}
	return m, nil
}

func (s *MembershipStore) ListByRoom(_ context.Context, roomID string) ([]domain.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Membership
	for _, m := range s.byClient {
		if m.RoomID == roomID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *MembershipStore) Update(_ context.Context, m domain.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byClient[m.ClientID]; !ok {
		return &repository.DatabaseError{Op: "membership.update", Kind: repository.KindNotFound, Err: repository.ErrNotFound}
	}
	s.byClient[m.ClientID] = m
	return nil
}

func (s *MembershipStore) Delete(_ context.Context, clientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byClient, clientID)
	return nil
}
