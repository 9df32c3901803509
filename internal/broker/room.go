package broker

import (
	"context"
	"crypto/rand"
	"encoding/base32"
	"strings"
	"time"

	"signalbroker/internal/brokererr"
	"signalbroker/internal/domain"
	"signalbroker/internal/events"
	"signalbroker/internal/frame"
	"signalbroker/internal/logging"
	"signalbroker/internal/metrics"
	"signalbroker/internal/protocol"
	"signalbroker/internal/provider"
	"signalbroker/internal/repository"
	"signalbroker/internal/session"
)

// newRoomID returns a collision-resistant, 12+ byte opaque identifier
// per spec.md §4.4 step 4: 16 random bytes, base32 (RFC 4648, no
// padding) for a compact, URL-safe, case-stable wire value. Declared
// as a var, not a func, so tests can stub in a deterministic ID.
var newRoomID = func() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return strings.ToLower(time.Now().Format("20060102150405.000000000"))
	}
	return strings.ToLower(base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(b[:]))
}

// handleRoomCreate implements spec.md §4.4 Create: authenticate,
// validate role/offer requirements, call the provider, then atomically
// persist Room + Membership + a creation-audit record, compensating
// (delete Room, terminate the provider session) if the persistence
// step fails after the provider call already succeeded.
func (b *Broker) handleRoomCreate(ctx context.Context, s *session.Session, f frame.Frame) {
	var req protocol.RoomCreatePayload
	if err := protocol.DecodeJSON(f, &req); err != nil {
		b.reject(s, f.ID, brokererr.New(brokererr.CodeBadRequest, "malformed room_create payload"))
		return
	}
	if err := b.authenticate(ctx, req.ClientID, req.AuthToken); err != nil {
		b.reject(s, f.ID, err)
		return
	}

	switch req.Role {
	case protocol.RoleSender:
		if req.OfferSDP == "" {
			b.reject(s, f.ID, brokererr.New(brokererr.CodeBadRequest, "offer_sdp required for sender"))
			return
		}
	case protocol.RoleReceiver:
		if req.OfferSDP != "" || !b.Cfg.Room.AllowListenerFirst {
			b.reject(s, f.ID, brokererr.New(brokererr.CodeBadRequest, "listener-first rooms not permitted"))
			return
		}
	default:
		b.reject(s, f.ID, brokererr.New(brokererr.CodeBadRequest, "invalid role"))
		return
	}

	sess, err := b.callProviderCreate(ctx, req.OfferSDP)
	if err != nil {
		b.reject(s, f.ID, err)
		return
	}

	roomID := newRoomID()
	now := nowUTC()
	room := domain.Room{
		RoomID:         roomID,
		AppID:          b.Cfg.Provider.AppID,
		SessionIDExt:   sess.SessionIDExt,
		SenderClientID: req.ClientID,
		Status:         domain.RoomActive,
		Metadata:       req.Metadata,
		CreatedAt:      now,
	}
	member := domain.Membership{
		ClientID:     req.ClientID,
		RoomID:       roomID,
		Role:         domain.RoleSender,
		JoinedAt:     now,
		LastActivity: now,
		Status:       domain.MembershipActive,
	}

	if err := b.persistRoomCreation(ctx, room, member); err != nil {
		b.reject(s, f.ID, err)
		return
	}

	metrics.RoomsActive.Inc()
	metrics.RoomLifecycle.WithLabelValues("created").Inc()

	b.reply(s, f.ID, frame.TypeRoomCreateAck, protocol.RoomCreateAckPayload{
		Version:   req.Version,
		Status:    protocol.StatusOK,
		RoomID:    roomID,
		SessionID: sess.SessionIDExt,
		AppID:     room.AppID,
		STUNURL:   b.Cfg.Provider.STUNURL,
		ConnectionInfo: protocol.ConnectionInfo{
			AnswerSDP:  sess.AnswerSDP,
			Candidates: sess.Candidates,
		},
	})

	b.Events.Publish(ctx, events.New(events.RoomCreated, map[string]string{
		"room_id":   roomID,
		"client_id": req.ClientID,
	}, nil))
}

// callProviderCreate wraps provider.RealtimeProvider.CreateSession with
// the failure policy from spec.md §4.4: a provider protocol error
// surfaces as 503 with no persistence side-effects; the retry/backoff
// schedule itself lives in provider.HTTPClient.doJSON, so by the time
// this returns the retry budget is already exhausted on failure.
func (b *Broker) callProviderCreate(ctx context.Context, offerSDP string) (provider.Session, error) {
	pctx, cancel := context.WithTimeout(ctx, b.Cfg.Timing.ProviderTimeout)
	defer cancel()
	sess, err := b.Provider.CreateSession(pctx, b.Cfg.Provider.AppID, offerSDP)
	if err != nil {
		metrics.ProviderCalls.WithLabelValues("create_session", "error").Inc()
		return provider.Session{}, brokererr.Wrap(brokererr.CodeUnavailable, "realtime provider create_session failed", err)
	}
	metrics.ProviderCalls.WithLabelValues("create_session", "ok").Inc()
	return sess, nil
}

// persistRoomCreation performs the three-write transaction named in
// spec.md §4.4 step 5. The repository contracts give no cross-document
// transaction, so on a Room write failure this best-effort terminates
// the provider session, and on a Membership write failure it deletes
// the Room and best-effort terminates the provider session; either
// failure returns a 500, and the outcome is recorded in the
// creation-audit log (spec.md §9's "operators can detect drift"
// requirement).
func (b *Broker) persistRoomCreation(ctx context.Context, room domain.Room, member domain.Membership) error {
	if err := b.Repos.Rooms.Create(ctx, room); err != nil {
		termErr := b.Provider.TerminateSession(ctx, room.SessionIDExt)
		logging.With(map[string]any{
			"room_id":       room.RoomID,
			"session_ext":   room.SessionIDExt,
			"cause":         err,
			"terminate_err": termErr,
		}).Error("room write failed, provider session terminated")
		b.auditCreate(ctx, room, "failed", err.Error())
		return brokererr.Wrap(brokererr.CodeInternal, "persist room failed", err)
	}

	if err := b.Repos.Memberships.Create(ctx, member); err != nil {
		b.compensateRoomCreation(ctx, room, err)
		return brokererr.New(brokererr.CodeInternal, "room creation compensated after membership write failure")
	}

	b.auditCreate(ctx, room, "committed", "")
	return nil
}

// compensateRoomCreation deletes the orphaned Room and best-effort
// terminates the provider session, logging the compensation outcome
// per spec.md §4.4/§7 (compensated errors).
func (b *Broker) compensateRoomCreation(ctx context.Context, room domain.Room, cause error) {
	delErr := b.Repos.Rooms.Delete(ctx, room.RoomID)
	termErr := b.Provider.TerminateSession(ctx, room.SessionIDExt)
	logging.With(map[string]any{
		"room_id":       room.RoomID,
		"session_ext":   room.SessionIDExt,
		"cause":         cause,
		"delete_err":    delErr,
		"terminate_err": termErr,
	}).Error("room creation compensated")
	b.auditCreate(ctx, room, "compensated", cause.Error())
}

func (b *Broker) auditCreate(ctx context.Context, room domain.Room, outcome, detail string) {
	err := b.Repos.CreationAudit.Create(ctx, domain.CreationAudit{
		RoomID:         room.RoomID,
		SenderClientID: room.SenderClientID,
		SessionIDExt:   room.SessionIDExt,
		Outcome:        outcome,
		Detail:         detail,
		CreatedAt:      nowUTC(),
	})
	if err != nil {
		logging.With(map[string]any{"room_id": room.RoomID, "err": err}).Error("creation audit write failed")
	}
}

// handleRoomJoin implements spec.md §4.4 Join: authenticate, load the
// Room, validate the requested role against current occupancy, call
// the provider for the sender's added tracks or the receiver's pulled
// offer, then persist the Membership and update Room occupancy.
func (b *Broker) handleRoomJoin(ctx context.Context, s *session.Session, f frame.Frame) {
	var req protocol.RoomJoinPayload
	if err := protocol.DecodeJSON(f, &req); err != nil {
		b.reject(s, f.ID, brokererr.New(brokererr.CodeBadRequest, "malformed room_join payload"))
		return
	}
	if err := b.authenticate(ctx, req.ClientID, req.AuthToken); err != nil {
		b.reject(s, f.ID, err)
		return
	}

	room, err := b.Repos.Rooms.Get(ctx, req.RoomID)
	if err != nil || room.Status != domain.RoomActive {
		b.reject(s, f.ID, brokererr.New(brokererr.CodeNotFound, "room not found"))
		return
	}

	var sess provider.Session
	switch req.Role {
	case protocol.RoleSender:
		if room.SenderClientID != "" && room.SenderClientID != req.ClientID {
			b.reject(s, f.ID, brokererr.New(brokererr.CodeBadRequest, "sender slot occupied"))
			return
		}
		if req.OfferSDP == "" {
			b.reject(s, f.ID, brokererr.New(brokererr.CodeBadRequest, "offer_sdp required for sender"))
			return
		}
		pctx, cancel := context.WithTimeout(ctx, b.Cfg.Timing.ProviderTimeout)
		sess, err = b.Provider.AddTracks(pctx, room.SessionIDExt, req.OfferSDP)
		cancel()
		if err != nil {
			metrics.ProviderCalls.WithLabelValues("add_tracks", "error").Inc()
			b.reject(s, f.ID, brokererr.Wrap(brokererr.CodeUnavailable, "realtime provider add_tracks failed", err))
			return
		}
		metrics.ProviderCalls.WithLabelValues("add_tracks", "ok").Inc()
		room.SenderClientID = req.ClientID
	case protocol.RoleReceiver:
		if b.Cfg.Room.SingleReceiver && room.ReceiverClientID != "" && room.ReceiverClientID != req.ClientID {
			b.reject(s, f.ID, brokererr.New(brokererr.CodeBadRequest, "receiver slot occupied"))
			return
		}
		pctx, cancel := context.WithTimeout(ctx, b.Cfg.Timing.ProviderTimeout)
		sess, err = b.Provider.PullTracks(pctx, room.SessionIDExt)
		cancel()
		if err != nil {
			metrics.ProviderCalls.WithLabelValues("pull_tracks", "error").Inc()
			b.reject(s, f.ID, brokererr.Wrap(brokererr.CodeUnavailable, "realtime provider pull_tracks failed", err))
			return
		}
		metrics.ProviderCalls.WithLabelValues("pull_tracks", "ok").Inc()
		room.ReceiverClientID = req.ClientID
	default:
		b.reject(s, f.ID, brokererr.New(brokererr.CodeBadRequest, "invalid role"))
		return
	}

	now := nowUTC()
	member := domain.Membership{
		ClientID:     req.ClientID,
		RoomID:       req.RoomID,
		Role:         domain.MembershipRole(req.Role),
		JoinedAt:     now,
		LastActivity: now,
		Status:       domain.MembershipActive,
	}
	if err := b.Repos.Memberships.Create(ctx, member); err != nil {
		if repository.IsConflict(err) {
			b.reject(s, f.ID, brokererr.New(brokererr.CodeConflict, "already a member"))
			return
		}
		b.reject(s, f.ID, brokererr.Wrap(brokererr.CodeInternal, "persist membership failed", err))
		return
	}
	if err := b.Repos.Rooms.Update(ctx, room); err != nil {
		logging.With(map[string]any{"room_id": room.RoomID, "err": err}).Error("room occupancy update failed after join")
		b.reject(s, f.ID, brokererr.Wrap(brokererr.CodeInternal, "persist room update failed", err))
		return
	}

	b.reply(s, f.ID, frame.TypeRoomJoinAck, protocol.RoomJoinAckPayload{
		Version:   req.Version,
		Status:    protocol.StatusOK,
		RoomID:    req.RoomID,
		SessionID: sess.SessionIDExt,
		AppID:     room.AppID,
		STUNURL:   b.Cfg.Provider.STUNURL,
		ConnectionInfo: protocol.ConnectionInfo{
			AnswerSDP:  sess.AnswerSDP,
			OfferSDP:   sess.AnswerSDP,
			Candidates: sess.Candidates,
		},
	})

	b.Events.Publish(ctx, events.New(events.RoomJoined, map[string]string{
		"room_id":   req.RoomID,
		"client_id": req.ClientID,
	}, map[string]string{"role": string(req.Role)}))
}

// handleRoomLeave implements spec.md §4.4 Leave, including idempotence
// (spec.md §8(9)): a second Leave for a client with no active
// Membership replies 200 with an "already left" note and makes no
// further state change.
func (b *Broker) handleRoomLeave(ctx context.Context, s *session.Session, f frame.Frame) {
	var req protocol.RoomLeavePayload
	if err := protocol.DecodeJSON(f, &req); err != nil {
		b.reject(s, f.ID, brokererr.New(brokererr.CodeBadRequest, "malformed room_leave payload"))
		return
	}
	if err := b.authenticate(ctx, req.ClientID, req.AuthToken); err != nil {
		b.reject(s, f.ID, err)
		return
	}

	member, err := b.Repos.Memberships.Get(ctx, req.ClientID)
	if err != nil || member.Status != domain.MembershipActive || member.RoomID != req.RoomID {
		b.reply(s, f.ID, frame.TypeRoomLeaveAck, protocol.RoomLeaveAckPayload{
			Version:  req.Version,
			Status:   protocol.StatusOK,
			RoomID:   req.RoomID,
			ClientID: req.ClientID,
			Message:  "already left",
		})
		return
	}

	reason := req.Reason
	if reason == "" {
		reason = "last_participant_left"
	}
	if err := b.roomLeave(ctx, req.ClientID, req.RoomID, reason, req.ClientID); err != nil {
		b.reject(s, f.ID, err)
		return
	}

	b.reply(s, f.ID, frame.TypeRoomLeaveAck, protocol.RoomLeaveAckPayload{
		Version:  req.Version,
		Status:   protocol.StatusOK,
		RoomID:   req.RoomID,
		ClientID: req.ClientID,
	})
}

// roomLeave performs the core of spec.md §4.4 Leave steps 2-3: remove
// the Membership, clear the vacated Room slot, and if both slots are
// now empty, terminate the Room and write a Termination record. Shared
// by the explicit ROOM_LEAVE handler and by cleanupClient's
// session-teardown path, which arrives here without a prior
// handleRoomLeave auth check since it runs on behalf of a session that
// already proved its identity at bind time.
func (b *Broker) roomLeave(ctx context.Context, clientID, roomID, reason, terminatedBy string) error {
	room, err := b.Repos.Rooms.Get(ctx, roomID)
	if err != nil {
		if repository.IsNotFound(err) {
			_ = b.Repos.Memberships.Delete(ctx, clientID)
			return nil
		}
		return brokererr.Wrap(brokererr.CodeUnavailable, "room lookup failed", err)
	}

	if err := b.Repos.Memberships.Delete(ctx, clientID); err != nil {
		return brokererr.Wrap(brokererr.CodeInternal, "delete membership failed", err)
	}

	if room.SenderClientID == clientID {
		room.SenderClientID = ""
	}
	if room.ReceiverClientID == clientID {
		room.ReceiverClientID = ""
	}

	if room.SenderClientID == "" && room.ReceiverClientID == "" {
		room.Status = domain.RoomTerminated
		if err := b.Repos.Rooms.Update(ctx, room); err != nil {
			return brokererr.Wrap(brokererr.CodeInternal, "terminate room failed", err)
		}
		if err := b.Repos.Terminations.Create(ctx, domain.Termination{
			RoomID:            roomID,
			TerminatedAt:      nowUTC(),
			TerminationReason: reason,
			TerminatedBy:      terminatedBy,
			RoomSnapshot:      room,
		}); err != nil {
			logging.With(map[string]any{"room_id": roomID, "err": err}).Error("termination record write failed")
		}
		if err := b.Provider.TerminateSession(ctx, room.SessionIDExt); err != nil {
			logging.With(map[string]any{"room_id": roomID, "session_ext": room.SessionIDExt, "err": err}).
				Warn("provider terminate_session failed on room termination")
		}
		metrics.RoomsActive.Dec()
		metrics.RoomLifecycle.WithLabelValues("terminated").Inc()
		b.Events.Publish(ctx, events.New(events.RoomTerminated, map[string]string{
			"room_id": roomID,
		}, map[string]string{"reason": reason}))
	} else {
		if err := b.Repos.Rooms.Update(ctx, room); err != nil {
			return brokererr.Wrap(brokererr.CodeInternal, "update room occupancy failed", err)
		}
	}

	b.Events.Publish(ctx, events.New(events.RoomLeft, map[string]string{
		"room_id":   roomID,
		"client_id": clientID,
	}, map[string]string{"reason": reason}))
	return nil
}

// cleanupClient runs the best-effort UNREGISTER-equivalent teardown
// named in spec.md §4.2 Manager.close and §4.3 UNREGISTER: if the
// client held an active Membership, leave its room. Errors are returned
// without being logged here; UNREGISTER logs them and proceeds, while
// heartbeat expiry and socket close ignore them.
func (b *Broker) cleanupClient(ctx context.Context, clientID, reason string) error {
	member, err := b.Repos.Memberships.Get(ctx, clientID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil
		}
		return err
	}
	if member.Status != domain.MembershipActive {
		return nil
	}
	return b.roomLeave(ctx, clientID, member.RoomID, reason, clientID)
}
