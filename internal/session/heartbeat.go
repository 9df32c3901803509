package session

import (
	"context"
	"time"
)

// HeartbeatConfig carries the timing knobs the heartbeat loop enforces.
type HeartbeatConfig struct {
	RegistrationTimeout time.Duration
	HeartbeatInterval   time.Duration
	HeartbeatTimeout    time.Duration
}

// RunHeartbeatLoop periodically evicts sessions that missed the
// registration deadline or went quiet past HeartbeatTimeout. onExpire
// is called once per evicted session, with the lock already released,
// so the caller can run best-effort UNREGISTER-equivalent cleanup and
// publish a session_evicted event before the socket is force-closed.
func (m *Manager) RunHeartbeatLoop(ctx context.Context, cfg HeartbeatConfig, onExpire func(*Session, CloseReason)) {
	ticker := time.NewTicker(cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.checkExpired(cfg, onExpire)
		}
	}
}

func (m *Manager) checkExpired(cfg HeartbeatConfig, onExpire func(*Session, CloseReason)) {
	now := time.Now()
	for _, s := range m.All() {
		switch s.State() {
		case AwaitingRegister:
			if now.Sub(s.OpenedAt()) > cfg.RegistrationTimeout {
				s.setState(Closing)
				if onExpire != nil {
					onExpire(s, ReasonRegistrationDeadline)
				}
				s.Close(nil)
			}
		case Live:
			if now.Sub(s.LastActivity()) > cfg.HeartbeatTimeout {
				s.setState(Closing)
				if onExpire != nil {
					onExpire(s, ReasonHeartbeatExpired)
				}
				s.Close(nil)
			}
		case Closing:
			// already torn down; reader/writer will exit and remove
			// it from the index shortly.
		}
	}
}
