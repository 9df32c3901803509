// Package protocol defines the payload shapes carried inside each
// frame.MessageType, and the JSON encode/decode helpers handlers use to
// move between a frame.Frame and a typed payload.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"signalbroker/internal/frame"
)

// Status codes are numeric and decoupled from HTTP, though chosen to
// align with it for operator familiarity.
const (
	StatusOK           = 200
	StatusBadRequest   = 400
	StatusUnauthorized = 401
	StatusNotFound     = 404
	StatusConflict     = 409
	StatusInternal     = 500
	StatusUnavailable  = 503
)

type ConnectPayload struct {
	ClientID  string `json:"client_id"`
	AuthToken string `json:"auth_token"`
}

type ConnectAckPayload struct {
	Status            int    `json:"status"`
	SessionID         string `json:"session_id"`
	HeartbeatInterval int64  `json:"heartbeat_interval"`
}

type DisconnectPayload struct {
	ClientID string `json:"client_id,omitempty"`
	Reason   string `json:"reason"`
}

type PingPayload struct {
	Timestamp int64 `json:"timestamp"`
}

type PingAckPayload struct {
	Timestamp  int64 `json:"timestamp"`
	ServerTime int64 `json:"server_time"`
}

type SignalPayload struct {
	TargetClientID string          `json:"target_client_id"`
	SignalData     json.RawMessage `json:"signal_data"`
}

type RegisterPayload struct {
	Version      string            `json:"version"`
	ClientID     string            `json:"client_id"`
	AuthToken    string            `json:"auth_token"`
	Capabilities []string          `json:"capabilities,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	RoomID       string            `json:"room_id,omitempty"`
}

type RegisterAckPayload struct {
	Version   string `json:"version"`
	Status    int    `json:"status"`
	Message   string `json:"message,omitempty"`
	ClientID  string `json:"client_id"`
	SessionID string `json:"session_id"`
}

type UnregisterPayload struct {
	Version   string `json:"version"`
	ClientID  string `json:"client_id"`
	AuthToken string `json:"auth_token"`
}

type UnregisterAckPayload struct {
	Version  string `json:"version"`
	Status   int    `json:"status"`
	Message  string `json:"message,omitempty"`
	ClientID string `json:"client_id"`
}

// Role identifies a client's participation in a room.
type Role string

const (
	RoleSender   Role = "sender"
	RoleReceiver Role = "receiver"
)

type RoomCreatePayload struct {
	Version   string            `json:"version"`
	ClientID  string            `json:"client_id"`
	AuthToken string            `json:"auth_token"`
	Role      Role              `json:"role"`
	OfferSDP  string            `json:"offer_sdp,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

type ConnectionInfo struct {
	AnswerSDP  string   `json:"answer_sdp,omitempty"`
	OfferSDP   string   `json:"offer_sdp,omitempty"`
	Candidates []string `json:"candidates,omitempty"`
}

type RoomCreateAckPayload struct {
	Version        string         `json:"version"`
	Status         int            `json:"status"`
	Message        string         `json:"message,omitempty"`
	RoomID         string         `json:"room_id"`
	SessionID      string         `json:"session_id"`
	AppID          string         `json:"app_id"`
	STUNURL        string         `json:"stun_url"`
	ConnectionInfo ConnectionInfo `json:"connection_info"`
}

type RoomJoinPayload struct {
	Version   string            `json:"version"`
	ClientID  string            `json:"client_id"`
	AuthToken string            `json:"auth_token"`
	RoomID    string            `json:"room_id"`
	Role      Role              `json:"role"`
	OfferSDP  string            `json:"offer_sdp,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// RoomJoinAckPayload carries the same fields as RoomCreateAckPayload.
type RoomJoinAckPayload = RoomCreateAckPayload

type RoomLeavePayload struct {
	Version   string `json:"version"`
	ClientID  string `json:"client_id"`
	AuthToken string `json:"auth_token"`
	RoomID    string `json:"room_id"`
	Reason    string `json:"reason,omitempty"`
}

type RoomLeaveAckPayload struct {
	Version  string `json:"version"`
	Status   int    `json:"status"`
	Message  string `json:"message,omitempty"`
	RoomID   string `json:"room_id"`
	ClientID string `json:"client_id"`
}

type ErrorPayload struct {
	ErrorCode    int    `json:"error_code"`
	ErrorMessage string `json:"error_message"`
	Details      string `json:"details,omitempty"`
}

// DecodeJSON unmarshals a frame's JSON payload into v. Callers that
// also need to accept the legacy text encoding should use Decode
// instead, which dispatches on f.PayloadType.
func DecodeJSON(f frame.Frame, v any) error {
	if f.PayloadType != frame.PayloadJSON {
		return fmt.Errorf("protocol: unsupported payload type %d for json decode", f.PayloadType)
	}
	if err := json.Unmarshal(f.Payload, v); err != nil {
		return fmt.Errorf("protocol: payload decode: %w", err)
	}
	return nil
}

// EncodeJSON builds a frame.Frame carrying v as a JSON payload.
func EncodeJSON(mt frame.MessageType, id uuid.UUID, v any) (frame.Frame, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return frame.Frame{}, fmt.Errorf("protocol: payload encode: %w", err)
	}
	return frame.Frame{Type: mt, ID: id, PayloadType: frame.PayloadJSON, Payload: b}, nil
}
