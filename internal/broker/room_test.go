package broker

import (
	"testing"
	"time"

	"signalbroker/internal/brokererr"
	"signalbroker/internal/domain"
	"signalbroker/internal/frame"
	"signalbroker/internal/protocol"
	"signalbroker/internal/repository"
)

func TestRoomCreateJoinLeaveHappyPath(t *testing.T) {
	r := newTestRig(t)
	registerClient(t, r, "sender-1", "tok")

	r.send(frame.TypeRoomCreate, protocol.RoomCreatePayload{
		Version:   SupportedVersion,
		ClientID:  "sender-1",
		AuthToken: "tok",
		Role:      protocol.RoleSender,
		OfferSDP:  "v=0\r\no=sender\r\n",
	})
	var createAck protocol.RoomCreateAckPayload
	r.recvJSON(frame.TypeRoomCreateAck, &createAck)
	if createAck.Status != protocol.StatusOK || createAck.RoomID == "" {
		t.Fatalf("room_create failed: %+v", createAck)
	}
	if !r.provider.Has(createAck.SessionID) {
		t.Fatal("expected provider session to exist after create")
	}

	// A second rig (its own session over the same broker/manager)
	// stands in for the receiver's socket.
	recv := newTestRigSharing(t, r)
	registerClient(t, recv, "receiver-1", "tok")

	recv.send(frame.TypeRoomJoin, protocol.RoomJoinPayload{
		Version:   SupportedVersion,
		ClientID:  "receiver-1",
		AuthToken: "tok",
		RoomID:    createAck.RoomID,
		Role:      protocol.RoleReceiver,
	})
	var joinAck protocol.RoomJoinAckPayload
	recv.recvJSON(frame.TypeRoomJoinAck, &joinAck)
	if joinAck.Status != protocol.StatusOK || joinAck.RoomID != createAck.RoomID {
		t.Fatalf("room_join failed: %+v", joinAck)
	}

	recv.send(frame.TypeRoomLeave, protocol.RoomLeavePayload{
		Version:   SupportedVersion,
		ClientID:  "receiver-1",
		AuthToken: "tok",
		RoomID:    createAck.RoomID,
	})
	var leaveAck protocol.RoomLeaveAckPayload
	recv.recvJSON(frame.TypeRoomLeaveAck, &leaveAck)
	if leaveAck.Status != protocol.StatusOK {
		t.Fatalf("room_leave failed: %+v", leaveAck)
	}

	r.send(frame.TypeRoomLeave, protocol.RoomLeavePayload{
		Version:   SupportedVersion,
		ClientID:  "sender-1",
		AuthToken: "tok",
		RoomID:    createAck.RoomID,
	})
	var senderLeaveAck protocol.RoomLeaveAckPayload
	r.recvJSON(frame.TypeRoomLeaveAck, &senderLeaveAck)
	if senderLeaveAck.Status != protocol.StatusOK {
		t.Fatalf("sender room_leave failed: %+v", senderLeaveAck)
	}
	if r.provider.Has(createAck.SessionID) {
		t.Fatal("expected provider session to be terminated once both slots empty")
	}
}

func TestRoomLeaveIsIdempotent(t *testing.T) {
	r := newTestRig(t)
	registerClient(t, r, "client-1", "tok")

	r.send(frame.TypeRoomLeave, protocol.RoomLeavePayload{
		Version:   SupportedVersion,
		ClientID:  "client-1",
		AuthToken: "tok",
		RoomID:    "no-such-room",
	})
	var ack protocol.RoomLeaveAckPayload
	r.recvJSON(frame.TypeRoomLeaveAck, &ack)
	if ack.Status != protocol.StatusOK || ack.Message != "already left" {
		t.Fatalf("expected idempotent already-left ack, got %+v", ack)
	}
}

func TestRoomCreateHappyPathAuditsCommitted(t *testing.T) {
	r := newTestRig(t)
	registerClient(t, r, "sender-1", "tok")

	r.send(frame.TypeRoomCreate, protocol.RoomCreatePayload{
		Version:   SupportedVersion,
		ClientID:  "sender-1",
		AuthToken: "tok",
		Role:      protocol.RoleSender,
		OfferSDP:  "v=0",
	})
	var ack protocol.RoomCreateAckPayload
	r.recvJSON(frame.TypeRoomCreateAck, &ack)
	if ack.Status != protocol.StatusOK {
		t.Fatalf("setup room_create failed: %+v", ack)
	}

	audits, err := r.broker.Repos.CreationAudit.ListByRoom(bgCtx(), ack.RoomID)
	if err != nil || len(audits) == 0 {
		t.Fatalf("expected a creation-audit record, err=%v audits=%v", err, audits)
	}
	if audits[0].Outcome != "committed" {
		t.Fatalf("expected committed outcome, got %q", audits[0].Outcome)
	}
}

// TestRoomCreateCompensatesOnMembershipFailure forces the Membership
// write in persistRoomCreation to fail (the sender already holds an
// active Membership elsewhere) and asserts the Room is rolled back and
// the provider session it was paired with is terminated, per spec.md
// §4.4 step 5 / §7 compensated errors.
func TestRoomCreateCompensatesOnMembershipFailure(t *testing.T) {
	r := newTestRig(t)
	registerClient(t, r, "sender-1", "tok")

	prevNewRoomID := newRoomID
	newRoomID = func() string { return "fixed-room-id" }
	defer func() { newRoomID = prevNewRoomID }()

	now := time.Now().UTC()
	if err := r.broker.Repos.Memberships.Create(bgCtx(), domain.Membership{
		ClientID:     "sender-1",
		RoomID:       "other-room",
		Role:         domain.RoleSender,
		JoinedAt:     now,
		LastActivity: now,
		Status:       domain.MembershipActive,
	}); err != nil {
		t.Fatalf("seed membership: %v", err)
	}

	r.send(frame.TypeRoomCreate, protocol.RoomCreatePayload{
		Version:   SupportedVersion,
		ClientID:  "sender-1",
		AuthToken: "tok",
		Role:      protocol.RoleSender,
		OfferSDP:  "v=0",
	})

	var errPayload protocol.ErrorPayload
	r.recvJSON(frame.TypeError, &errPayload)
	if errPayload.ErrorCode != brokererr.CodeInternal {
		t.Fatalf("expected error_code %d, got %+v", brokererr.CodeInternal, errPayload)
	}

	if _, err := r.broker.Repos.Rooms.Get(bgCtx(), "fixed-room-id"); !repository.IsNotFound(err) {
		t.Fatalf("expected the Room to be rolled back, got err=%v", err)
	}
	if len(r.provider.TerminateCalls) != 1 || r.provider.TerminateCalls[0] != "mock-session-1" {
		t.Fatalf("expected the provider session to be terminated, got %+v", r.provider.TerminateCalls)
	}
	if r.provider.Has("mock-session-1") {
		t.Fatal("expected no orphan provider session after compensation")
	}

	audits, err := r.broker.Repos.CreationAudit.ListByRoom(bgCtx(), "fixed-room-id")
	if err != nil || len(audits) == 0 {
		t.Fatalf("expected a creation-audit record, err=%v audits=%v", err, audits)
	}
	if audits[len(audits)-1].Outcome != "compensated" {
		t.Fatalf("expected compensated outcome, got %q", audits[len(audits)-1].Outcome)
	}
}

// TestRoomCreateProviderFailureLeavesNoState covers spec.md §8 scenario
// S5: the provider fails every retry attempt, so no Room, Membership,
// or provider session should exist after the ERROR reply.
func TestRoomCreateProviderFailureLeavesNoState(t *testing.T) {
	r := newTestRig(t)
	registerClient(t, r, "sender-1", "tok")
	r.provider.FailCreate = &errRoundTripFailure{}

	r.send(frame.TypeRoomCreate, protocol.RoomCreatePayload{
		Version:   SupportedVersion,
		ClientID:  "sender-1",
		AuthToken: "tok",
		Role:      protocol.RoleSender,
		OfferSDP:  "v=0",
	})

	var errPayload protocol.ErrorPayload
	r.recvJSON(frame.TypeError, &errPayload)
	if errPayload.ErrorCode != brokererr.CodeUnavailable {
		t.Fatalf("expected error_code %d, got %+v", brokererr.CodeUnavailable, errPayload)
	}

	if r.provider.CreateCalls != 1 {
		t.Fatalf("expected exactly one provider create_session attempt, got %d", r.provider.CreateCalls)
	}
	if len(r.provider.TerminateCalls) != 0 {
		t.Fatalf("expected no provider session to ever exist, got terminate calls %+v", r.provider.TerminateCalls)
	}
	if _, err := r.broker.Repos.Memberships.Get(bgCtx(), "sender-1"); !repository.IsNotFound(err) {
		t.Fatalf("expected no Membership to be persisted, got err=%v", err)
	}
}

type errRoundTripFailure struct{}

func (e *errRoundTripFailure) Error() string { return "provider create_session exhausted retries" }
