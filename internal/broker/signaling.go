package broker

import (
	"signalbroker/internal/brokererr"
	"signalbroker/internal/frame"
	"signalbroker/internal/protocol"
	"signalbroker/internal/session"
)

// handleSignal implements spec.md §4.5: look up target_client_id in
// the session index and enqueue the same message, preserving
// message_id, on the target's writer. No persistence, no ordering
// across targets — only per-target FIFO, which the target session's
// own send queue already gives for free.
func (b *Broker) handleSignal(s *session.Session, f frame.Frame) {
	var sig protocol.SignalPayload
	if err := protocol.Decode(f, &sig); err != nil {
		b.reject(s, f.ID, brokererr.New(brokererr.CodeBadRequest, "malformed signal payload"))
		return
	}

	target, ok := b.Sessions.GetByClient(sig.TargetClientID)
	if !ok {
		b.reject(s, f.ID, brokererr.New(brokererr.CodeNotFound, "target client not connected"))
		return
	}

	fwd := frame.Frame{Type: f.Type, ID: f.ID, PayloadType: f.PayloadType, Payload: f.Payload}
	if err := target.Enqueue(fwd, b.SendDeadline); err != nil {
		b.reject(s, f.ID, brokererr.New(brokererr.CodeNotFound, "target client not reachable"))
	}
}
