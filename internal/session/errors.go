package session

import "errors"

// ErrSendQueueFull is returned by Session.Enqueue when the send queue
// could not accept a frame before the caller's deadline; the caller
// should disconnect the slow peer rather than drop the frame silently.
var ErrSendQueueFull = errors.New("session: send queue full")

// ErrAlreadyBound names the case of a session that already holds a
// different client_id. Manager.Bind does not return it: Bind has no
// error result and overwrites the session's client_id.
var ErrAlreadyBound = errors.New("session: already bound to a different client")
