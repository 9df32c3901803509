// Package broker wires the session manager to the registration
// handler, room orchestrator, and signaling passthrough: it is the
// Dispatch function session.Manager.Open calls for every decoded
// frame, plus the close-time and heartbeat-expiry cleanup hooks.
package broker

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"signalbroker/internal/auth"
	"signalbroker/internal/brokererr"
	"signalbroker/internal/config"
	"signalbroker/internal/events"
	"signalbroker/internal/frame"
	"signalbroker/internal/logging"
	"signalbroker/internal/metrics"
	"signalbroker/internal/protocol"
	"signalbroker/internal/provider"
	"signalbroker/internal/ratelimit"
	"signalbroker/internal/repository"
	"signalbroker/internal/session"
)

// SupportedVersion is the highest protocol version this broker accepts
// on REGISTER; a higher client-declared version is rejected with
// VersionUnsupported per spec.md §4.3.
const SupportedVersion = "1.0.0"

// Broker holds every collaborator a handler needs: the repository
// bundle, the realtime-provider client, the session manager (for
// binding, eviction, and signaling lookups), the event publisher, and
// the auth verifier. Handlers never cache state across invocations;
// everything is re-fetched from Repos on each call.
type Broker struct {
	Cfg          config.Config
	Repos        repository.Repositories
	Provider     provider.RealtimeProvider
	Sessions     *session.Manager
	Events       events.Publisher
	Verifier     *auth.Verifier
	SendDeadline time.Duration

	limiters sync.Map // uuid.UUID -> *ratelimit.Limiter
}

// New constructs a Broker. SendDeadline bounds how long Enqueue blocks
// under backpressure before a slow peer is disconnected.
func New(cfg config.Config, repos repository.Repositories, prov provider.RealtimeProvider, sessions *session.Manager, pub events.Publisher, verifier *auth.Verifier) *Broker {
	return &Broker{
		Cfg:          cfg,
		Repos:        repos,
		Provider:     prov,
		Sessions:     sessions,
		Events:       pub,
		Verifier:     verifier,
		SendDeadline: 5 * time.Second,
	}
}

// Dispatch is the session.Dispatch function passed to Manager.Open.
// Handlers run synchronously on the reader goroutine that invokes this
// (per-session FIFO, spec.md §4.2's ordering guarantee); any handler
// that must await repository or provider I/O does so here, suspending
// this goroutine but never blocking any other session's reader.
func (b *Broker) Dispatch(s *session.Session, f frame.Frame) {
	ctx, cancel := context.WithTimeout(context.Background(), b.Cfg.Timing.RepositoryTimeout+b.Cfg.Timing.ProviderTimeout)
	defer cancel()

	metrics.FramesReceived.WithLabelValues(frameTypeLabel(f.Type)).Inc()
	start := time.Now()
	status := "ok"

	if b.Cfg.Security.RateLimitEnabled && !b.sessionLimiter(s.ID).Allow() {
		b.reject(s, f.ID, brokererr.New(brokererr.CodeUnavailable, "rate limit exceeded"))
		metrics.HandlerDuration.WithLabelValues(frameTypeLabel(f.Type), "rate_limited").Observe(time.Since(start).Seconds())
		return
	}

	if s.State() == session.AwaitingRegister && !admittedBeforeRegister(f.Type) {
		b.reject(s, f.ID, brokererr.New(brokererr.CodeAuthFailed, "registration required"))
		status = "rejected"
		metrics.HandlerDuration.WithLabelValues(frameTypeLabel(f.Type), status).Observe(time.Since(start).Seconds())
		return
	}

	switch f.Type {
	case frame.TypeConnect:
		b.handleConnect(s, f)
	case frame.TypePing:
		b.handlePing(s, f)
	case frame.TypeDisconnect:
		s.Close(nil)
	case frame.TypeRegister:
		b.handleRegister(ctx, s, f)
	case frame.TypeUnregister:
		b.handleUnregister(ctx, s, f)
	case frame.TypeRoomCreate:
		b.handleRoomCreate(ctx, s, f)
	case frame.TypeRoomJoin:
		b.handleRoomJoin(ctx, s, f)
	case frame.TypeRoomLeave:
		b.handleRoomLeave(ctx, s, f)
	case frame.TypeSignalOffer, frame.TypeSignalAnswer, frame.TypeSignalICE:
		b.handleSignal(s, f)
	default:
		b.reject(s, f.ID, brokererr.New(brokererr.CodeBadRequest, "unsupported message type in this state"))
		status = "rejected"
	}

	metrics.HandlerDuration.WithLabelValues(frameTypeLabel(f.Type), status).Observe(time.Since(start).Seconds())
}

// admittedBeforeRegister reports whether mt may be handled while a
// session is still in AwaitingRegister, per spec.md §4.2.
func admittedBeforeRegister(mt frame.MessageType) bool {
	switch mt {
	case frame.TypeRegister, frame.TypeDisconnect, frame.TypePing, frame.TypeConnect:
		return true
	default:
		return false
	}
}

// OnDecodeErr replies ERROR to the session for a recoverable decode
// failure (unknown message/payload type) without tearing it down. For a
// non-recoverable failure (malformed frame, oversize payload, transport
// error) it only logs: no reply is sent, and the session manager closes
// the session right after this returns.
func (b *Broker) OnDecodeErr(s *session.Session, err error, malformed bool) {
	code := brokererr.CodeBadRequest
	msg := "malformed frame"
	switch err {
	case frame.ErrUnknownMessageType:
		msg = "unknown message type"
	case frame.ErrUnknownPayloadType:
		msg = "unknown payload type"
	case frame.ErrPayloadTooLarge:
		msg = "payload too large"
	}
	logging.With(map[string]any{"session_id": s.ID, "err": err, "malformed": malformed}).Warn("frame decode error")
	if !malformed {
		b.reject(s, uuid.New(), brokererr.New(code, msg))
	}
}

// OnEvict sends the courtesy DISCONNECT to a session being superseded
// by a newer registration of the same client_id, per spec.md §4.2.
func (b *Broker) OnEvict(old *session.Session, reason session.CloseReason) {
	f, err := protocol.EncodeJSON(frame.TypeDisconnect, uuid.New(), protocol.DisconnectPayload{Reason: string(reason)})
	if err == nil {
		_ = old.Enqueue(f, b.SendDeadline)
	}
}

// OnExpire runs the heartbeat-loop's eviction cleanup: best-effort
// UNREGISTER-equivalent teardown of any Membership/Room state the
// expired session's client held, plus a session_evicted event.
func (b *Broker) OnExpire(s *session.Session, reason session.CloseReason) {
	metrics.SessionsEvicted.WithLabelValues(string(reason)).Inc()
	clientID := s.ClientID()
	ctx, cancel := context.WithTimeout(context.Background(), b.Cfg.Timing.RepositoryTimeout+b.Cfg.Timing.ProviderTimeout)
	defer cancel()

	if clientID != "" {
		b.cleanupClient(ctx, clientID, "heartbeat_expired")
	}

	b.Events.Publish(ctx, events.New(events.SessionEvicted, map[string]string{
		"session_id": s.ID.String(),
		"client_id":  clientID,
	}, map[string]string{"reason": string(reason)}))
}

// OnDone runs whenever a session's reader loop exits, whatever the
// cause (EOF, decode error, heartbeat eviction, superseded bind).
// Close-time cleanup that OnExpire didn't already perform (e.g. a
// client that simply dropped the TCP connection without UNREGISTER)
// happens here.
func (b *Broker) OnDone(s *session.Session) {
	b.forgetLimiter(s.ID)
	clientID := s.ClientID()
	if clientID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), b.Cfg.Timing.RepositoryTimeout+b.Cfg.Timing.ProviderTimeout)
	defer cancel()
	b.cleanupClient(ctx, clientID, "socket_closed")
}

func nowUTC() time.Time { return time.Now().UTC() }

// sessionLimiter returns the per-session token bucket enforcing
// security.max_messages_per_minute, creating one on first use.
func (b *Broker) sessionLimiter(id uuid.UUID) *ratelimit.Limiter {
	if v, ok := b.limiters.Load(id); ok {
		return v.(*ratelimit.Limiter)
	}
	l := ratelimit.NewLimiter(b.Cfg.Security.MaxMessagesPerMinute)
	actual, _ := b.limiters.LoadOrStore(id, l)
	return actual.(*ratelimit.Limiter)
}

// forgetLimiter drops a closed session's limiter so the map doesn't
// grow unbounded across the server's lifetime.
func (b *Broker) forgetLimiter(id uuid.UUID) {
	b.limiters.Delete(id)
}

func frameTypeLabel(mt frame.MessageType) string {
	switch mt {
	case frame.TypeConnect:
		return "connect"
	case frame.TypePing:
		return "ping"
	case frame.TypeDisconnect:
		return "disconnect"
	case frame.TypeRegister:
		return "register"
	case frame.TypeUnregister:
		return "unregister"
	case frame.TypeRoomCreate:
		return "room_create"
	case frame.TypeRoomJoin:
		return "room_join"
	case frame.TypeRoomLeave:
		return "room_leave"
	case frame.TypeSignalOffer:
		return "signal_offer"
	case frame.TypeSignalAnswer:
		return "signal_answer"
	case frame.TypeSignalICE:
		return "signal_ice"
	default:
		return "other"
	}
}
