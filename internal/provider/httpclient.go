package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"signalbroker/internal/logging"
)

// HTTPClient is the production RealtimeProvider implementation,
// targeting a Cloudflare-Realtime-shaped API: POST
// {base_url}/apps/{app_id}/sessions/new with a bearer app_secret.
type HTTPClient struct {
	httpc     *http.Client
	baseURL   string
	appSecret string
	backoff   BackoffPolicy
}

// BackoffPolicy configures the retry schedule applied to transport
// errors and 5xx responses.
type BackoffPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultBackoff matches the schedule named in the room-orchestrator
// failure policy: 3 attempts, base 250ms, cap 2s.
func DefaultBackoff() BackoffPolicy {
	return BackoffPolicy{MaxAttempts: 3, BaseDelay: 250 * time.Millisecond, MaxDelay: 2 * time.Second}
}

// NewHTTPClient builds a provider client with the given per-call
// timeout; callers also pass ctx deadlines per request, whichever is
// tighter applies.
func NewHTTPClient(baseURL, appSecret string, timeout time.Duration, backoff BackoffPolicy) *HTTPClient {
	return &HTTPClient{
		httpc:     &http.Client{Timeout: timeout},
		baseURL:   baseURL,
		appSecret: appSecret,
		backoff:   backoff,
	}
}

type sessionDescription struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

type createSessionRequest struct {
	SessionDescription sessionDescription `json:"sessionDescription"`
}

type track struct {
	Location  string `json:"location,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	TrackName string `json:"trackName,omitempty"`
}

type addTracksRequest struct {
	SessionDescription *sessionDescription `json:"sessionDescription,omitempty"`
	Tracks             []track             `json:"tracks,omitempty"`
}

type sessionResponse struct {
	SessionID          string              `json:"sessionId"`
	SessionDescription sessionDescription  `json:"sessionDescription"`
	ErrorCode          string              `json:"errorCode,omitempty"`
	ErrorDescription   string              `json:"errorDescription,omitempty"`
}

func (c *HTTPClient) CreateSession(ctx context.Context, appID, offerSDP string) (Session, error) {
	body := createSessionRequest{SessionDescription: sessionDescription{Type: "offer", SDP: offerSDP}}
	var resp sessionResponse
	path := fmt.Sprintf("/apps/%s/sessions/new", appID)
	if err := c.doJSON(ctx, "create_session", http.MethodPost, path, body, &resp); err != nil {
		return Session{}, err
	}
	return Session{SessionIDExt: resp.SessionID, AnswerSDP: resp.SessionDescription.SDP}, nil
}

func (c *HTTPClient) AddTracks(ctx context.Context, sessionIDExt, offerSDP string) (Session, error) {
	body := addTracksRequest{SessionDescription: &sessionDescription{Type: "offer", SDP: offerSDP}}
	var resp sessionResponse
	path := fmt.Sprintf("/sessions/%s/tracks/new", sessionIDExt)
	if err := c.doJSON(ctx, "add_tracks", http.MethodPost, path, body, &resp); err != nil {
		return Session{}, err
	}
	return Session{SessionIDExt: sessionIDExt, AnswerSDP: resp.SessionDescription.SDP}, nil
}

func (c *HTTPClient) PullTracks(ctx context.Context, sourceSessionIDExt string) (Session, error) {
	body := addTracksRequest{Tracks: []track{{Location: "remote", SessionID: sourceSessionIDExt}}}
	var resp sessionResponse
	path := fmt.Sprintf("/sessions/%s/tracks/new", sourceSessionIDExt)
	if err := c.doJSON(ctx, "pull_tracks", http.MethodPost, path, body, &resp); err != nil {
		return Session{}, err
	}
	return Session{SessionIDExt: resp.SessionID, AnswerSDP: resp.SessionDescription.SDP}, nil
}

func (c *HTTPClient) TerminateSession(ctx context.Context, sessionIDExt string) error {
	path := fmt.Sprintf("/sessions/%s/close", sessionIDExt)
	err := c.doJSON(ctx, "terminate_session", http.MethodPut, path, struct{}{}, nil)
	if err != nil && !errIsNotFound(err) {
		return err
	}
	return nil
}

// doJSON executes one logical call, retrying transport errors and 5xx
// responses per the configured backoff. 4xx responses are not retried.
func (c *HTTPClient) doJSON(ctx context.Context, op, method, path string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("provider %s: marshal request: %w", op, err)
	}

	var lastErr error
	delay := c.backoff.BaseDelay
	attempts := c.backoff.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	for attempt := 1; attempt <= attempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(raw))
		if err != nil {
			return fmt.Errorf("provider %s: build request: %w", op, err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.appSecret)

		resp, err := c.httpc.Do(req)
		if err != nil {
			lastErr = &TransportError{Op: op, Err: err}
			logging.With(map[string]any{"op": op, "attempt": attempt}).Warn("provider transport error")
			if !sleepBackoff(ctx, &delay, c.backoff.MaxDelay, attempt, attempts) {
				break
			}
			continue
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = &TransportError{Op: op, Err: readErr}
			continue
		}

		if resp.StatusCode >= 500 {
			lastErr = &StatusError{Op: op, StatusCode: resp.StatusCode, Body: string(respBody)}
			logging.With(map[string]any{"op": op, "attempt": attempt, "status": resp.StatusCode}).Warn("provider 5xx")
			if !sleepBackoff(ctx, &delay, c.backoff.MaxDelay, attempt, attempts) {
				break
			}
			continue
		}
		if resp.StatusCode == http.StatusNotFound {
			return &NotFoundError{Op: op}
		}
		if resp.StatusCode >= 400 {
			return &StatusError{Op: op, StatusCode: resp.StatusCode, Body: string(respBody)}
		}
		if out != nil && len(respBody) > 0 {
			if err := json.Unmarshal(respBody, out); err != nil {
				return fmt.Errorf("provider %s: decode response: %w", op, err)
			}
		}
		return nil
	}
	return lastErr
}

func sleepBackoff(ctx context.Context, delay *time.Duration, maxDelay time.Duration, attempt, maxAttempts int) bool {
	if attempt >= maxAttempts {
		return false
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(*delay):
	}
	*delay *= 2
	if *delay > maxDelay {
		*delay = maxDelay
	}
	return true
}
