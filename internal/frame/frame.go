// Package frame implements the wire codec for the broker's binary
// framing: a fixed header followed by a payload whose length is
// declared in the header.
//
// Layout: start(1)=0xAA | message_type(1) | message_id(16) |
// payload_type(1) | payload_length(2, big-endian) | payload(length).
package frame

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/google/uuid"
)

// StartByte marks the beginning of every frame on the wire.
const StartByte = 0xAA

const headerLen = 1 + 1 + 16 + 1 + 2

// MessageType identifies the semantic kind of a frame.
type MessageType byte

const (
	TypeConnect       MessageType = 0x01
	TypeConnectAck    MessageType = 0x02
	TypeDisconnect    MessageType = 0x03
	TypePing          MessageType = 0x04
	TypePingAck       MessageType = 0x05
	TypeSignalOffer   MessageType = 0x10
	TypeSignalAnswer  MessageType = 0x11
	TypeSignalICE     MessageType = 0x12
	TypeRegister      MessageType = 0x20
	TypeRegisterAck   MessageType = 0x21
	TypeUnregister    MessageType = 0x22
	TypeUnregisterAck MessageType = 0x23
	TypeRoomCreate    MessageType = 0x30
	TypeRoomCreateAck MessageType = 0x31
	TypeRoomJoin      MessageType = 0x32
	TypeRoomJoinAck   MessageType = 0x33
	TypeRoomLeave     MessageType = 0x34
	TypeRoomLeaveAck  MessageType = 0x35
	TypeError         MessageType = 0xFF
)

func (t MessageType) known() bool {
	switch t {
	case TypeConnect, TypeConnectAck, TypeDisconnect, TypePing, TypePingAck,
		TypeSignalOffer, TypeSignalAnswer, TypeSignalICE,
		TypeRegister, TypeRegisterAck, TypeUnregister, TypeUnregisterAck,
		TypeRoomCreate, TypeRoomCreateAck, TypeRoomJoin, TypeRoomJoinAck,
		TypeRoomLeave, TypeRoomLeaveAck, TypeError:
		return true
	default:
		return false
	}
}

// PayloadType identifies the encoding of a frame's payload bytes.
type PayloadType byte

const (
	PayloadBinary   PayloadType = 0x01
	PayloadJSON     PayloadType = 0x02
	PayloadText     PayloadType = 0x03
	PayloadProtobuf PayloadType = 0x04
	PayloadCBOR     PayloadType = 0x05
)

func (p PayloadType) known() bool {
	switch p {
	case PayloadBinary, PayloadJSON, PayloadText, PayloadProtobuf, PayloadCBOR:
		return true
	default:
		return false
	}
}

// Frame is the decoded wire unit.
type Frame struct {
	Type        MessageType
	ID          uuid.UUID
	PayloadType PayloadType
	Payload     []byte
}

// MaxPayloadLen is the hard ceiling imposed by the 16-bit length field;
// independent of any configured max_message_size.
const MaxPayloadLen = 1<<16 - 1

// Encode writes f to w as a well-formed frame. Returns ErrPayloadTooLarge
// if f.Payload exceeds MaxPayloadLen.
func Encode(w io.Writer, f Frame) error {
	if len(f.Payload) > MaxPayloadLen {
		return ErrPayloadTooLarge
	}
	var hdr [headerLen]byte
	hdr[0] = StartByte
	hdr[1] = byte(f.Type)
	copy(hdr[2:18], f.ID[:])
	hdr[18] = byte(f.PayloadType)
	binary.BigEndian.PutUint16(hdr[19:21], uint16(len(f.Payload)))
	if _, err := w.Write(hdr[:]); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if len(f.Payload) > 0 {
		if _, err := w.Write(f.Payload); err != nil {
			return fmt.Errorf("write payload: %w", err)
		}
	}
	return nil
}

// Decode reads exactly one frame from r, rejecting any declared payload
// length greater than maxMessageSize (pass MaxPayloadLen to disable this
// check beyond the wire's own 65535-byte ceiling). On a malformed start
// byte it returns ErrMalformedFrame and the caller must tear down the
// connection without attempting resynchronization. Unknown message or
// payload types are still fully consumed off the stream and returned
// alongside ErrUnknownMessageType / ErrUnknownPayloadType so the caller
// may reply with an ERROR frame and keep the session alive.
func Decode(r *bufio.Reader, maxMessageSize int) (Frame, error) {
	start, err := r.ReadByte()
	if err != nil {
		return Frame{}, err
	}
	if start != StartByte {
		return Frame{}, ErrMalformedFrame
	}

	var rest [headerLen - 1]byte
	if _, err := io.ReadFull(r, rest[:]); err != nil {
		return Frame{}, fmt.Errorf("read header: %w", err)
	}
	mt := MessageType(rest[0])
	var id uuid.UUID
	copy(id[:], rest[1:17])
	pt := PayloadType(rest[17])
	plen := binary.BigEndian.Uint16(rest[18:20])
	if maxMessageSize >= 0 && int(plen) > maxMessageSize {
		if _, err := io.CopyN(io.Discard, r, int64(plen)); err != nil {
			return Frame{}, ErrPayloadTooLarge
		}
		return Frame{}, ErrPayloadTooLarge
	}

	payload := make([]byte, plen)
	if plen > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return Frame{}, fmt.Errorf("read payload: %w", err)
		}
	}

	f := Frame{Type: mt, ID: id, PayloadType: pt, Payload: payload}
	if !mt.known() {
		return f, ErrUnknownMessageType
	}
	if !pt.known() {
		return f, ErrUnknownPayloadType
	}
	return f, nil
}
