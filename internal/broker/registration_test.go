package broker

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"signalbroker/internal/events"
	"signalbroker/internal/frame"
	"signalbroker/internal/protocol"
)

func TestHandleRegisterSucceedsAndBindsSession(t *testing.T) {
	r := newTestRig(t)
	registerClient(t, r, "client-1", "token-1")

	if _, ok := r.manager.GetByClient("client-1"); !ok {
		t.Fatal("expected manager to have bound client-1")
	}
	if _, ok := r.events.Last(events.ClientRegistered); !ok {
		t.Fatal("expected a client_registered event")
	}
}

func TestHandleRegisterRejectsDuplicateActive(t *testing.T) {
	r := newTestRig(t)
	registerClient(t, r, "client-1", "token-1")

	r.send(frame.TypeRegister, protocol.RegisterPayload{
		Version:   SupportedVersion,
		ClientID:  "client-1",
		AuthToken: "token-1",
	})
	var errPayload protocol.ErrorPayload
	r.recvJSON(frame.TypeError, &errPayload)
	if errPayload.ErrorCode == 0 {
		t.Fatalf("expected a non-zero error code on duplicate register, got %+v", errPayload)
	}
}

func TestHandleRegisterRejectsUnsupportedVersion(t *testing.T) {
	r := newTestRig(t)
	r.send(frame.TypeRegister, protocol.RegisterPayload{
		Version:   "99.0.0",
		ClientID:  "client-1",
		AuthToken: "token-1",
	})
	var errPayload protocol.ErrorPayload
	r.recvJSON(frame.TypeError, &errPayload)
	if errPayload.ErrorCode == 0 {
		t.Fatalf("expected a version-unsupported error, got %+v", errPayload)
	}
}

func TestHandleUnregisterRemovesRegistration(t *testing.T) {
	r := newTestRig(t)
	registerClient(t, r, "client-1", "token-1")

	r.send(frame.TypeUnregister, protocol.UnregisterPayload{
		Version:   SupportedVersion,
		ClientID:  "client-1",
		AuthToken: "token-1",
	})
	var ack protocol.UnregisterAckPayload
	r.recvJSON(frame.TypeUnregisterAck, &ack)
	if ack.Status != protocol.StatusOK {
		t.Fatalf("unregister failed: %+v", ack)
	}
	if _, err := r.broker.Repos.Clients.Get(context.Background(), "client-1"); err == nil {
		t.Fatal("expected client record to be deleted")
	}
}

// TestHandleRegisterAcceptsLegacyTextEncoding exercises the
// colon-joined text payload encoding end to end: the frame on the wire
// carries PayloadText, not PayloadJSON, and the handler must still
// register the client.
func TestHandleRegisterAcceptsLegacyTextEncoding(t *testing.T) {
	r := newTestRig(t)

	f, err := protocol.EncodeText(frame.TypeRegister, uuid.New(), protocol.RegisterPayload{
		Version:   SupportedVersion,
		ClientID:  "client-text",
		AuthToken: "token-1",
	})
	if err != nil {
		t.Fatalf("encode text register: %v", err)
	}
	if err := frame.Encode(r.peer, f); err != nil {
		t.Fatalf("write frame: %v", err)
	}

	var ack protocol.RegisterAckPayload
	r.recvJSON(frame.TypeRegisterAck, &ack)
	if ack.Status != protocol.StatusOK || ack.ClientID != "client-text" {
		t.Fatalf("text-encoded register failed: %+v", ack)
	}
	if _, ok := r.manager.GetByClient("client-text"); !ok {
		t.Fatal("expected manager to have bound client-text")
	}
}

func TestFrameBeforeRegisterIsRejected(t *testing.T) {
	r := newTestRig(t)
	r.send(frame.TypeRoomCreate, protocol.RoomCreatePayload{
		Version:  SupportedVersion,
		ClientID: "client-1",
		Role:     protocol.RoleSender,
		OfferSDP: "v=0",
	})
	var errPayload protocol.ErrorPayload
	r.recvJSON(frame.TypeError, &errPayload)
	if errPayload.ErrorCode == 0 {
		t.Fatalf("expected registration-required error, got %+v", errPayload)
	}
}
