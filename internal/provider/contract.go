// Package provider abstracts the external realtime-session API (a
// Cloudflare-Realtime-shaped service): create a session from an offer
// SDP, add/pull tracks, and terminate a session. No HTTP-level type
// leaks past this package's boundary.
package provider

import "context"

// Session is the provider's response to creating or reading back a
// realtime session.
type Session struct {
	SessionIDExt string
	AnswerSDP    string
	Candidates   []string
}

// RealtimeProvider is the contract the room orchestrator depends on.
type RealtimeProvider interface {
	// CreateSession posts an offer SDP and returns the provider's
	// session handle and answer SDP.
	CreateSession(ctx context.Context, appID, offerSDP string) (Session, error)

	// AddTracks attaches the sender's local tracks to an existing
	// session, used when a sender joins without having created the
	// room itself.
	AddTracks(ctx context.Context, sessionIDExt, offerSDP string) (Session, error)

	// PullTracks requests the provider relay tracks from sourceSessionIDExt
	// into a new session for a receiver, returning an offer SDP the
	// receiver must answer.
	PullTracks(ctx context.Context, sourceSessionIDExt string) (Session, error)

	// TerminateSession tears down a provider session. Idempotent:
	// terminating an already-gone session is not an error.
	TerminateSession(ctx context.Context, sessionIDExt string) error
}
