package protocol

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"signalbroker/internal/frame"
)

// Decode dispatches to DecodeJSON or DecodeText based on f.PayloadType.
// Handlers call this instead of DecodeJSON directly wherever the legacy
// text encoding is still accepted on the wire.
func Decode(f frame.Frame, v any) error {
	switch f.PayloadType {
	case frame.PayloadJSON:
		return DecodeJSON(f, v)
	case frame.PayloadText:
		return DecodeText(f, v)
	default:
		return fmt.Errorf("protocol: unsupported payload type %d for decode", f.PayloadType)
	}
}

// DecodeText parses the colon-joined field list the original
// implementation's payload_from_text used for its small legacy
// payloads, into the same payload structs DecodeJSON produces.
func DecodeText(f frame.Frame, v any) error {
	if f.PayloadType != frame.PayloadText {
		return fmt.Errorf("protocol: unsupported payload type %d for text decode", f.PayloadType)
	}
	text := string(f.Payload)

	switch p := v.(type) {
	case *ConnectPayload:
		parts := strings.SplitN(text, ":", 2)
		if len(parts) != 2 {
			return fmt.Errorf("protocol: malformed text connect payload")
		}
		p.ClientID, p.AuthToken = parts[0], parts[1]
	case *ConnectAckPayload:
		parts := strings.SplitN(text, ":", 2)
		if len(parts) != 2 {
			return fmt.Errorf("protocol: malformed text connect_ack payload")
		}
		status, err := strconv.Atoi(parts[0])
		if err != nil {
			return fmt.Errorf("protocol: malformed text connect_ack status: %w", err)
		}
		p.Status, p.SessionID = status, parts[1]
	case *SignalPayload:
		parts := strings.SplitN(text, ":", 2)
		if len(parts) != 2 {
			return fmt.Errorf("protocol: malformed text signal payload")
		}
		p.TargetClientID, p.SignalData = parts[0], json.RawMessage(parts[1])
	case *RegisterPayload:
		parts := strings.SplitN(text, ":", 3)
		if len(parts) != 3 {
			return fmt.Errorf("protocol: malformed text register payload")
		}
		p.Version, p.ClientID, p.AuthToken = parts[0], parts[1], parts[2]
	case *RegisterAckPayload:
		parts := strings.SplitN(text, ":", 5)
		if len(parts) != 5 {
			return fmt.Errorf("protocol: malformed text register_ack payload")
		}
		status, err := strconv.Atoi(parts[1])
		if err != nil {
			return fmt.Errorf("protocol: malformed text register_ack status: %w", err)
		}
		p.Version, p.Status, p.Message, p.ClientID, p.SessionID = parts[0], status, parts[2], parts[3], parts[4]
	case *UnregisterPayload:
		parts := strings.SplitN(text, ":", 3)
		if len(parts) != 3 {
			return fmt.Errorf("protocol: malformed text unregister payload")
		}
		p.Version, p.ClientID, p.AuthToken = parts[0], parts[1], parts[2]
	case *UnregisterAckPayload:
		parts := strings.SplitN(text, ":", 4)
		if len(parts) != 4 {
			return fmt.Errorf("protocol: malformed text unregister_ack payload")
		}
		status, err := strconv.Atoi(parts[1])
		if err != nil {
			return fmt.Errorf("protocol: malformed text unregister_ack status: %w", err)
		}
		p.Version, p.Status, p.Message, p.ClientID = parts[0], status, parts[2], parts[3]
	case *ErrorPayload:
		parts := strings.SplitN(text, ":", 2)
		if len(parts) != 2 {
			return fmt.Errorf("protocol: malformed text error payload")
		}
		code, err := strconv.Atoi(parts[0])
		if err != nil {
			return fmt.Errorf("protocol: malformed text error_code: %w", err)
		}
		p.ErrorCode, p.ErrorMessage = code, parts[1]
	default:
		return fmt.Errorf("protocol: text decoding not implemented for %T", v)
	}
	return nil
}

// EncodeText builds a frame.Frame carrying v in the colon-joined text
// encoding, for the same fixed set of payload types DecodeText accepts.
func EncodeText(mt frame.MessageType, id uuid.UUID, v any) (frame.Frame, error) {
	var text string
	switch p := v.(type) {
	case ConnectPayload:
		text = fmt.Sprintf("%s:%s", p.ClientID, p.AuthToken)
	case ConnectAckPayload:
		text = fmt.Sprintf("%d:%s", p.Status, p.SessionID)
	case SignalPayload:
		text = fmt.Sprintf("%s:%s", p.TargetClientID, string(p.SignalData))
	case RegisterPayload:
		text = fmt.Sprintf("%s:%s:%s", p.Version, p.ClientID, p.AuthToken)
	case RegisterAckPayload:
		text = fmt.Sprintf("%s:%d:%s:%s:%s", p.Version, p.Status, p.Message, p.ClientID, p.SessionID)
	case UnregisterPayload:
		text = fmt.Sprintf("%s:%s:%s", p.Version, p.ClientID, p.AuthToken)
	case UnregisterAckPayload:
		text = fmt.Sprintf("%s:%d:%s:%s", p.Version, p.Status, p.Message, p.ClientID)
	case ErrorPayload:
		text = fmt.Sprintf("%d:%s", p.ErrorCode, p.ErrorMessage)
	default:
		return frame.Frame{}, fmt.Errorf("protocol: text encoding not implemented for %T", v)
	}
	return frame.Frame{Type: mt, ID: id, PayloadType: frame.PayloadText, Payload: []byte(text)}, nil
}
