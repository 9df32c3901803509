// Package domain holds the persisted record shapes the repository
// contracts operate on. These are plain data types; no behavior lives
// here beyond simple invariant helpers.
package domain

import "time"

// ClientStatus is the lifecycle state of a Client registration.
type ClientStatus string

const (
	ClientActive    ClientStatus = "active"
	ClientInactive  ClientStatus = "inactive"
	ClientSuspended ClientStatus = "suspended"
	ClientPending   ClientStatus = "pending"
)

// Client is a registered endpoint identity, independent of any one
// socket/session.
type Client struct {
	ClientID     string            `json:"client_id"`
	AuthTokenHash string           `json:"auth_token_hash"`
	Version      string            `json:"version"`
	RoomID       string            `json:"room_id,omitempty"`
	Capabilities []string          `json:"capabilities,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	RegisteredAt time.Time         `json:"registered_at"`
	LastSeen     time.Time         `json:"last_seen"`
	Status       ClientStatus      `json:"status"`
}

// RoomStatus is the lifecycle state of a Room.
type RoomStatus string

const (
	RoomPending    RoomStatus = "pending"
	RoomActive     RoomStatus = "active"
	RoomInactive   RoomStatus = "inactive"
	RoomTerminated RoomStatus = "terminated"
)

// Room is a signaling session shared by a sender and (optionally) a
// receiver, backed by one external provider session.
type Room struct {
	RoomID           string            `json:"room_id"`
	AppID            string            `json:"app_id"`
	SessionIDExt     string            `json:"session_id_ext"`
	SenderClientID   string            `json:"sender_client_id,omitempty"`
	ReceiverClientID string            `json:"receiver_client_id,omitempty"`
	Status           RoomStatus        `json:"status"`
	Metadata         map[string]string `json:"metadata,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
}

// MembershipRole distinguishes the two roles a client may hold in a Room.
type MembershipRole string

const (
	RoleSender   MembershipRole = "sender"
	RoleReceiver MembershipRole = "receiver"
)

// MembershipStatus is the lifecycle state of a Membership.
type MembershipStatus string

const (
	MembershipActive MembershipStatus = "active"
	MembershipLeft   MembershipStatus = "left"
)

// Membership associates a Client with a Room under a role.
type Membership struct {
	ClientID     string           `json:"client_id"`
	RoomID       string           `json:"room_id"`
	Role         MembershipRole   `json:"role"`
	JoinedAt     time.Time        `json:"joined_at"`
	LastActivity time.Time        `json:"last_activity"`
	Status       MembershipStatus `json:"status"`
}

// Termination is an immutable record created when a Room transitions to
// Terminated.
type Termination struct {
	RoomID             string     `json:"room_id"`
	TerminatedAt       time.Time  `json:"terminated_at"`
	TerminationReason  string     `json:"termination_reason"`
	TerminatedBy       string     `json:"terminated_by"`
	RoomSnapshot       Room       `json:"room_snapshot"`
}

// CreationAudit is an append-only record of a room-creation attempt,
// used to detect drift between the provider and the store when
// compensation was required.
type CreationAudit struct {
	RoomID         string    `json:"room_id"`
	SenderClientID string    `json:"sender_client_id"`
	SessionIDExt   string    `json:"session_id_ext"`
	Outcome        string    `json:"outcome"` // "committed", "compensated", "failed"
	Detail         string    `json:"detail,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
