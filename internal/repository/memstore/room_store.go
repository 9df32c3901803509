package memstore

import (
	"context"
	"sync"

	"signalbroker/internal/domain"
	"signalbroker/internal/repository"
)

type RoomStore struct {
	mu   sync.RWMutex
	byID map[string]domain.Room
}

func NewRoomStore() *RoomStore {
	return &RoomStore{byID: make(map[string]domain.Room)}
}

func (s *RoomStore) Create(_ context.Context, r domain.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[r.RoomID]; ok {
		return &repository.DatabaseError{Op: "room.create", Kind: repository.KindConflict, Err: repository.ErrConflict}
	}
	s.byID[r.RoomID] = r
	return nil
}

func (s *RoomStore) Get(_ context.Context, roomID string) (domain.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.byID[roomID]
	if !ok {
		return domain.Room{}, &repository.DatabaseError{Op: "room.get", Kind: repository.KindNotFound, Err: repository.ErrNotFound}
	}
	return r, nil
}

func (s *RoomStore) Update(_ context.Context, r domain.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[r.RoomID]; !ok {
		return &repository.DatabaseError{Op: "room.update", Kind: repository.KindNotFound, Err: repository.ErrNotFound}
	}
	s.byID[r.RoomID] = r
	return nil
}

func (s *RoomStore) Delete(_ context.Context, roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byID, roomID)
	return nil
}

func (s *RoomStore) CountActive(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, r := range s.byID {
		if r.Status == domain.RoomActive {
			n++
		}
	}
	return n, nil
}
