package broker

import (
	"github.com/google/uuid"

	"signalbroker/internal/brokererr"
	"signalbroker/internal/frame"
	"signalbroker/internal/logging"
	"signalbroker/internal/metrics"
	"signalbroker/internal/protocol"
	"signalbroker/internal/session"
)

// reply enqueues an ack frame on s's writer, echoing the inbound
// message_id so the client can correlate request and response.
func (b *Broker) reply(s *session.Session, id uuid.UUID, mt frame.MessageType, payload any) {
	f, err := protocol.EncodeJSON(mt, id, payload)
	if err != nil {
		logging.With(map[string]any{"session_id": s.ID, "err": err}).Error("encode reply failed")
		return
	}
	if err := s.Enqueue(f, b.SendDeadline); err != nil {
		logging.With(map[string]any{"session_id": s.ID, "err": err}).Warn("enqueue reply failed, closing session")
		s.Close(err)
		return
	}
	metrics.FramesSent.WithLabelValues(frameTypeLabel(mt)).Inc()
}

// reject enqueues an ERROR frame built from err's CodeError taxonomy,
// keeping the session open (framing-level errors are handled by the
// session manager itself, before reaching a handler).
func (b *Broker) reject(s *session.Session, id uuid.UUID, err error) {
	code := brokererr.Code(err)
	b.reply(s, id, frame.TypeError, protocol.ErrorPayload{
		ErrorCode:    code,
		ErrorMessage: err.Error(),
	})
}
