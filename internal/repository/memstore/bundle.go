package memstore

import "signalbroker/internal/repository"

// New returns a fully wired in-memory Repositories bundle.
func New() repository.Repositories {
	return repository.Repositories{
		Clients:       NewClientStore(),
		Rooms:         NewRoomStore(),
		Memberships:   NewMembershipStore(),
		Terminations:  NewTerminationStore(),
		CreationAudit: NewCreationAuditStore(),
	}
}
