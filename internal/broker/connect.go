package broker

import (
	"time"

	"signalbroker/internal/frame"
	"signalbroker/internal/protocol"
	"signalbroker/internal/session"
)

// handleConnect answers the optional legacy CONNECT/CONNECT_ACK step
// (spec.md §9 Open Question 2): acknowledged, but it neither binds the
// session to a client_id nor extends the registration deadline — only
// REGISTER does that.
func (b *Broker) handleConnect(s *session.Session, f frame.Frame) {
	var req protocol.ConnectPayload
	_ = protocol.Decode(f, &req)
	b.reply(s, f.ID, frame.TypeConnectAck, protocol.ConnectAckPayload{
		Status:            protocol.StatusOK,
		SessionID:         s.ID.String(),
		HeartbeatInterval: int64(b.Cfg.Timing.HeartbeatInterval / time.Second),
	})
}

// handlePing answers PING_ACK echoing the client's timestamp plus the
// server's own, per spec.md §8(10). A PING received while
// AwaitingRegister is answered but does not extend the admission
// deadline (spec.md §4.2); Touch, called by the session manager's
// reader loop for every frame, already advances last_activity for the
// Live-state heartbeat check, which is the only deadline PING affects.
func (b *Broker) handlePing(s *session.Session, f frame.Frame) {
	var req protocol.PingPayload
	if err := protocol.DecodeJSON(f, &req); err != nil {
		b.reject(s, f.ID, err)
		return
	}
	b.reply(s, f.ID, frame.TypePingAck, protocol.PingAckPayload{
		Timestamp:  req.Timestamp,
		ServerTime: time.Now().UnixMilli(),
	})
}
