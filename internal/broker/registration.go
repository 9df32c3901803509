package broker

import (
	"context"
	"unicode"

	"signalbroker/internal/auth"
	"signalbroker/internal/brokererr"
	"signalbroker/internal/domain"
	"signalbroker/internal/events"
	"signalbroker/internal/frame"
	"signalbroker/internal/logging"
	"signalbroker/internal/protocol"
	"signalbroker/internal/repository"
	"signalbroker/internal/session"
)

const maxClientIDLen = 128

func validClientID(id string) bool {
	if id == "" || len(id) > maxClientIDLen {
		return false
	}
	for _, r := range id {
		if !unicode.IsPrint(r) {
			return false
		}
	}
	return true
}

// handleRegister implements spec.md §4.3's REGISTER policy: version
// compare, client_id validation, a 409 on an Active duplicate
// registration (distinct from the session-level eviction handled in
// Manager.Bind for a second socket claiming the same identity), and on
// success persists an Active Client record, binds the session, and
// publishes client_registered.
func (b *Broker) handleRegister(ctx context.Context, s *session.Session, f frame.Frame) {
	var req protocol.RegisterPayload
	if err := protocol.Decode(f, &req); err != nil {
		b.reject(s, f.ID, brokererr.New(brokererr.CodeBadRequest, "malformed register payload"))
		return
	}

	if compareVersions(req.Version, SupportedVersion) > 0 {
		b.reject(s, f.ID, brokererr.New(brokererr.CodeVersionStale, "version unsupported"))
		return
	}
	if !validClientID(req.ClientID) {
		b.reject(s, f.ID, brokererr.New(brokererr.CodeBadRequest, "invalid client_id"))
		return
	}
	if req.AuthToken == "" {
		b.reject(s, f.ID, brokererr.New(brokererr.CodeBadRequest, "missing auth_token"))
		return
	}

	if existing, err := b.Repos.Clients.Get(ctx, req.ClientID); err == nil && existing.Status == domain.ClientActive {
		b.reject(s, f.ID, brokererr.New(brokererr.CodeConflict, "client already registered"))
		return
	} else if err != nil && !repository.IsNotFound(err) {
		b.reject(s, f.ID, brokererr.Wrap(brokererr.CodeUnavailable, "registration lookup failed", err))
		return
	}

	hash, err := auth.Hash(req.AuthToken)
	if err != nil {
		b.reject(s, f.ID, brokererr.Wrap(brokererr.CodeInternal, "hash auth_token", err))
		return
	}

	now := nowUTC()
	c := domain.Client{
		ClientID:      req.ClientID,
		AuthTokenHash: hash,
		Version:       req.Version,
		RoomID:        req.RoomID,
		Capabilities:  req.Capabilities,
		Metadata:      req.Metadata,
		RegisteredAt:  now,
		LastSeen:      now,
		Status:        domain.ClientActive,
	}
	if err := b.Repos.Clients.Create(ctx, c); err != nil {
		if repository.IsConflict(err) {
			// Lost a race against a concurrent REGISTER for the same
			// client_id; re-fetch and apply the same Active check a
			// sequential caller would have hit.
			if existing, getErr := b.Repos.Clients.Get(ctx, req.ClientID); getErr == nil && existing.Status == domain.ClientActive {
				b.reject(s, f.ID, brokererr.New(brokererr.CodeConflict, "client already registered"))
				return
			}
		}
		b.reject(s, f.ID, brokererr.Wrap(brokererr.CodeUnavailable, "persist registration failed", err))
		return
	}

	b.Sessions.Bind(s, req.ClientID)

	b.reply(s, f.ID, frame.TypeRegisterAck, protocol.RegisterAckPayload{
		Version:   req.Version,
		Status:    protocol.StatusOK,
		ClientID:  req.ClientID,
		SessionID: s.ID.String(),
	})

	b.Events.Publish(ctx, events.New(events.ClientRegistered, map[string]string{
		"client_id":  req.ClientID,
		"session_id": s.ID.String(),
	}, nil))
}

// handleUnregister implements spec.md §4.3's UNREGISTER policy:
// authenticate, transparently leave any Active room (a failure there
// is logged but never blocks deregistration), delete the registration,
// and publish client_unregistered.
func (b *Broker) handleUnregister(ctx context.Context, s *session.Session, f frame.Frame) {
	var req protocol.UnregisterPayload
	if err := protocol.Decode(f, &req); err != nil {
		b.reject(s, f.ID, brokererr.New(brokererr.CodeBadRequest, "malformed unregister payload"))
		return
	}

	if err := b.authenticate(ctx, req.ClientID, req.AuthToken); err != nil {
		b.reject(s, f.ID, err)
		return
	}

	if err := b.cleanupClient(ctx, req.ClientID, "client_unregistered"); err != nil {
		logging.With(map[string]any{"client_id": req.ClientID, "err": err}).Warn("leave-on-unregister failed, proceeding")
	}

	if err := b.Repos.Clients.Delete(ctx, req.ClientID); err != nil {
		b.reject(s, f.ID, brokererr.Wrap(brokererr.CodeUnavailable, "delete registration failed", err))
		return
	}

	b.reply(s, f.ID, frame.TypeUnregisterAck, protocol.UnregisterAckPayload{
		Version:  req.Version,
		Status:   protocol.StatusOK,
		ClientID: req.ClientID,
	})

	b.Events.Publish(ctx, events.New(events.ClientUnregistered, map[string]string{
		"client_id": req.ClientID,
	}, nil))
}

// authenticate loads the Client record for clientID and verifies token
// against its stored hash (or a JWT reattachment token, see
// auth.Verifier.Verify), returning a 401 CodeError on any mismatch.
func (b *Broker) authenticate(ctx context.Context, clientID, token string) error {
	c, err := b.Repos.Clients.Get(ctx, clientID)
	if err != nil {
		if repository.IsNotFound(err) {
			return brokererr.New(brokererr.CodeAuthFailed, "unknown client")
		}
		return brokererr.Wrap(brokererr.CodeUnavailable, "client lookup failed", err)
	}
	if !b.Verifier.Verify(clientID, c.AuthTokenHash, token) {
		return brokererr.New(brokererr.CodeAuthFailed, "auth token mismatch")
	}
	return nil
}
