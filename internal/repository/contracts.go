// Package repository defines the persistence contracts the room and
// registration handlers depend on, plus a typed DatabaseError taxonomy.
// Two implementations exist: memstore (in-memory, for tests and local
// runs) and redisstore (durable, document-oriented).
package repository

import (
	"context"

	"signalbroker/internal/domain"
)

// ClientRepository persists Client registrations.
type ClientRepository interface {
	Create(ctx context.Context, c domain.Client) error
	Get(ctx context.Context, clientID string) (domain.Client, error)
	Update(ctx context.Context, c domain.Client) error
	Delete(ctx context.Context, clientID string) error
}

// RoomRepository persists Rooms.
type RoomRepository interface {
	Create(ctx context.Context, r domain.Room) error
	Get(ctx context.Context, roomID string) (domain.Room, error)
	Update(ctx context.Context, r domain.Room) error
	Delete(ctx context.Context, roomID string) error
	// CountActive reports how many Rooms currently have Status Active,
	// for the admin status surface.
	CountActive(ctx context.Context) (int, error)
}

// MembershipRepository persists client-in-room associations.
type MembershipRepository interface {
	Create(ctx context.Context, m domain.Membership) error
	Get(ctx context.Context, clientID string) (domain.Membership, error)
	ListByRoom(ctx context.Context, roomID string) ([]domain.Membership, error)
	Update(ctx context.Context, m domain.Membership) error
	Delete(ctx context.Context, clientID string) error
}

// TerminationRepository persists immutable room-termination records.
type TerminationRepository interface {
	Create(ctx context.Context, t domain.Termination) error
	Get(ctx context.Context, roomID string) (domain.Termination, error)
}

// CreationAuditRepository persists an append-only log of room-creation
// attempts and their outcomes, including compensations.
type CreationAuditRepository interface {
	Create(ctx context.Context, a domain.CreationAudit) error
	ListByRoom(ctx context.Context, roomID string) ([]domain.CreationAudit, error)
}

// Repositories bundles the five contracts so handlers can depend on a
// single injected value.
type Repositories struct {
	Clients      ClientRepository
	Rooms        RoomRepository
	Memberships  MembershipRepository
	Terminations TerminationRepository
	CreationAudit CreationAuditRepository
}
