package broker

import (
	"encoding/json"
	"testing"

	"signalbroker/internal/frame"
	"signalbroker/internal/protocol"
)

func TestHandleSignalForwardsToTargetPreservingMessageID(t *testing.T) {
	r := newTestRig(t)
	registerClient(t, r, "sender-1", "tok")

	target := newTestRigSharing(t, r)
	registerClient(t, target, "receiver-1", "tok")

	id := r.send(frame.TypeSignalOffer, protocol.SignalPayload{
		TargetClientID: "receiver-1",
		SignalData:     json.RawMessage(`{"sdp":"v=0"}`),
	})

	f := target.recv()
	if f.Type != frame.TypeSignalOffer {
		t.Fatalf("expected forwarded signal_offer, got %v", f.Type)
	}
	if f.ID != id {
		t.Fatalf("expected forwarded frame to preserve message_id %s, got %s", id, f.ID)
	}
	var sig protocol.SignalPayload
	if err := protocol.DecodeJSON(f, &sig); err != nil {
		t.Fatalf("decode forwarded signal: %v", err)
	}
	if string(sig.SignalData) != `{"sdp":"v=0"}` {
		t.Fatalf("unexpected forwarded signal_data: %s", sig.SignalData)
	}
}

func TestHandleSignalRejectsUnknownTarget(t *testing.T) {
	r := newTestRig(t)
	registerClient(t, r, "sender-1", "tok")

	r.send(frame.TypeSignalOffer, protocol.SignalPayload{
		TargetClientID: "nobody",
		SignalData:     json.RawMessage(`{}`),
	})
	var errPayload protocol.ErrorPayload
	r.recvJSON(frame.TypeError, &errPayload)
	if errPayload.ErrorCode == 0 {
		t.Fatalf("expected not-found error, got %+v", errPayload)
	}
}
