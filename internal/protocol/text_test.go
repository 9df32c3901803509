package protocol

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/google/uuid"

	"signalbroker/internal/frame"
)

func TestTextRoundTripRegister(t *testing.T) {
	want := RegisterPayload{Version: "1.0.0", ClientID: "client-1", AuthToken: "tok"}
	f, err := EncodeText(frame.TypeRegister, uuid.New(), want)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if f.PayloadType != frame.PayloadText {
		t.Fatalf("expected PayloadText, got %v", f.PayloadType)
	}

	var got RegisterPayload
	if err := DecodeText(f, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, want)
	}
}

func TestTextRoundTripRegisterAck(t *testing.T) {
	want := RegisterAckPayload{Version: "1.0.0", Status: StatusOK, Message: "", ClientID: "client-1", SessionID: "sess-1"}
	f, err := EncodeText(frame.TypeRegisterAck, uuid.New(), want)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var got RegisterAckPayload
	if err := DecodeText(f, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != want {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, want)
	}
}

func TestTextRoundTripSignalPreservesJSONBody(t *testing.T) {
	want := SignalPayload{TargetClientID: "client-2", SignalData: json.RawMessage(`{"sdp":"v=0:1:2"}`)}
	f, err := EncodeText(frame.TypeSignalOffer, uuid.New(), want)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var got SignalPayload
	if err := DecodeText(f, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.TargetClientID != want.TargetClientID || string(got.SignalData) != string(want.SignalData) {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, want)
	}
}

func TestDecodeDispatchesOnPayloadType(t *testing.T) {
	id := uuid.New()
	jsonFrame, err := EncodeJSON(frame.TypeConnect, id, ConnectPayload{ClientID: "c", AuthToken: "t"})
	if err != nil {
		t.Fatalf("encode json: %v", err)
	}
	textFrame, err := EncodeText(frame.TypeConnect, id, ConnectPayload{ClientID: "c", AuthToken: "t"})
	if err != nil {
		t.Fatalf("encode text: %v", err)
	}

	var fromJSON, fromText ConnectPayload
	if err := Decode(jsonFrame, &fromJSON); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if err := Decode(textFrame, &fromText); err != nil {
		t.Fatalf("decode text: %v", err)
	}
	if fromJSON != fromText {
		t.Fatalf("expected json and text decode to agree, got %+v vs %+v", fromJSON, fromText)
	}
}

func TestDecodeTextRejectsMalformedInput(t *testing.T) {
	f := frame.Frame{Type: frame.TypeConnect, PayloadType: frame.PayloadText, Payload: []byte("no-colon-here")}
	var p ConnectPayload
	if err := DecodeText(f, &p); err == nil {
		t.Fatal("expected an error for a malformed text connect payload")
	}
}
