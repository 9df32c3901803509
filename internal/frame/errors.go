package frame

import "errors"

// ErrMalformedFrame signals a corrupted start byte; the session must be
// torn down without resynchronization attempts.
var ErrMalformedFrame = errors.New("frame: malformed start byte")

// ErrUnknownMessageType and ErrUnknownPayloadType are returned alongside
// a fully-consumed Frame; the caller may reply with an ERROR frame and
// keep the session open.
var (
	ErrUnknownMessageType = errors.New("frame: unknown message type")
	ErrUnknownPayloadType = errors.New("frame: unknown payload type")
)

// ErrPayloadTooLarge is returned by Encode when a payload exceeds the
// 65535-byte wire ceiling, and by Decode when a declared length exceeds
// the configured max_message_size.
var ErrPayloadTooLarge = errors.New("frame: payload too large")
