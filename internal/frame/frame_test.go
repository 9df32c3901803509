package frame

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/google/uuid"
)

func TestRoundTrip(t *testing.T) {
	cases := []Frame{
		{Type: TypePing, ID: uuid.New(), PayloadType: PayloadJSON, Payload: []byte(`{"timestamp":1}`)},
		{Type: TypeRegister, ID: uuid.New(), PayloadType: PayloadJSON, Payload: []byte(`{}`)},
		{Type: TypeError, ID: uuid.New(), PayloadType: PayloadText, Payload: nil},
	}
	for _, f := range cases {
		var buf bytes.Buffer
		if err := Encode(&buf, f); err != nil {
			t.Fatalf("encode: %v", err)
		}
		got, err := Decode(bufio.NewReader(&buf), MaxPayloadLen)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if got.Type != f.Type || got.ID != f.ID || got.PayloadType != f.PayloadType {
			t.Fatalf("round-trip mismatch: got %+v want %+v", got, f)
		}
		if !bytes.Equal(got.Payload, f.Payload) {
			t.Fatalf("payload mismatch: got %q want %q", got.Payload, f.Payload)
		}
	}
}

func TestDecodeMalformedStartByte(t *testing.T) {
	r := bufio.NewReader(bytes.NewReader([]byte{0x00, 0x01}))
	if _, err := Decode(r, MaxPayloadLen); err != ErrMalformedFrame {
		t.Fatalf("expected ErrMalformedFrame, got %v", err)
	}
}

func TestDecodeUnknownTypesStillConsumed(t *testing.T) {
	var buf bytes.Buffer
	id := uuid.New()
	raw := Frame{Type: 0x99, ID: id, PayloadType: PayloadJSON, Payload: []byte("x")}
	// Encode refuses to validate type/payload-type, mirroring the wire
	// format: any byte value round-trips through the header.
	if err := Encode(&buf, raw); err != nil {
		t.Fatalf("encode: %v", err)
	}
	f, err := Decode(bufio.NewReader(&buf), MaxPayloadLen)
	if err != ErrUnknownMessageType {
		t.Fatalf("expected ErrUnknownMessageType, got %v", err)
	}
	if f.ID != id || string(f.Payload) != "x" {
		t.Fatalf("frame not fully consumed: %+v", f)
	}
}

func TestEncodeRejectsOversizePayload(t *testing.T) {
	big := make([]byte, MaxPayloadLen+1)
	err := Encode(&bytes.Buffer{}, Frame{Type: TypePing, PayloadType: PayloadJSON, Payload: big})
	if err != ErrPayloadTooLarge {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
}

func TestDecodeRejectsOverMaxMessageSize(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, Frame{Type: TypePing, PayloadType: PayloadJSON, Payload: []byte("0123456789")}); err != nil {
		t.Fatalf("encode: %v", err)
	}
	_, err := Decode(bufio.NewReader(&buf), 4)
	if err != ErrPayloadTooLarge {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
}
