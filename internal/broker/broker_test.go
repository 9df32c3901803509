package broker

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"

	"signalbroker/internal/auth"
	"signalbroker/internal/config"
	"signalbroker/internal/events"
	"signalbroker/internal/frame"
	"signalbroker/internal/protocol"
	"signalbroker/internal/provider"
	"signalbroker/internal/repository/memstore"
	"signalbroker/internal/session"
)

// bgCtx is a short alias kept local to the test files that need a
// plain context for direct repository assertions.
func bgCtx() context.Context { return context.Background() }

// testRig wires a Broker around in-memory doubles and a real
// session.Manager, connected to the test via an in-process net.Pipe so
// handlers run exactly as they do over a TCP socket: the manager's
// reader goroutine decodes frames written on peer and calls
// Broker.Dispatch synchronously; replies flow back through the writer
// goroutine.
type testRig struct {
	t        *testing.T
	broker   *Broker
	manager  *session.Manager
	peer     net.Conn
	br       *bufio.Reader
	events   *events.MemoryPublisher
	provider *provider.Mock
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Security.RateLimitEnabled = false
	cfg.Timing.RepositoryTimeout = time.Second
	cfg.Timing.ProviderTimeout = time.Second

	repos := memstore.New()
	prov := provider.NewMock()
	pub := events.NewMemoryPublisher()
	verifier := auth.NewVerifier("")

	b := New(cfg, repos, prov, nil, pub, verifier)
	mgr := session.NewManager(1<<20, b.OnEvict)
	b.Sessions = mgr

	serverConn, peer := net.Pipe()
	mgr.Open(serverConn, 16, b.Dispatch, b.OnDecodeErr, b.OnDone)

	return &testRig{
		t:        t,
		broker:   b,
		manager:  mgr,
		peer:     peer,
		br:       bufio.NewReaderSize(peer, 4096),
		events:   pub,
		provider: prov,
	}
}

func (r *testRig) send(mt frame.MessageType, payload any) uuid.UUID {
	r.t.Helper()
	id := uuid.New()
	f, err := protocol.EncodeJSON(mt, id, payload)
	if err != nil {
		r.t.Fatalf("encode: %v", err)
	}
	if err := frame.Encode(r.peer, f); err != nil {
		r.t.Fatalf("write frame: %v", err)
	}
	return id
}

func (r *testRig) recv() frame.Frame {
	r.t.Helper()
	_ = r.peer.SetReadDeadline(time.Now().Add(2 * time.Second))
	f, err := frame.Decode(r.br, 1<<20)
	if err != nil {
		r.t.Fatalf("decode reply: %v", err)
	}
	return f
}

func (r *testRig) recvJSON(mt frame.MessageType, v any) {
	r.t.Helper()
	f := r.recv()
	if f.Type != mt {
		r.t.Fatalf("expected message type %v, got %v (payload %s)", mt, f.Type, f.Payload)
	}
	if err := protocol.DecodeJSON(f, v); err != nil {
		r.t.Fatalf("decode payload: %v", err)
	}
}

// newTestRigSharing opens a second session on the same broker and
// session.Manager as base, standing in for a second client socket
// (e.g. the receiver side of a room) within the same test.
func newTestRigSharing(t *testing.T, base *testRig) *testRig {
	t.Helper()
	serverConn, peer := net.Pipe()
	base.manager.Open(serverConn, 16, base.broker.Dispatch, base.broker.OnDecodeErr, base.broker.OnDone)
	return &testRig{
		t:        t,
		broker:   base.broker,
		manager:  base.manager,
		peer:     peer,
		br:       bufio.NewReaderSize(peer, 4096),
		events:   base.events,
		provider: base.provider,
	}
}

func registerClient(t *testing.T, r *testRig, clientID, token string) {
	t.Helper()
	r.send(frame.TypeRegister, protocol.RegisterPayload{
		Version:   SupportedVersion,
		ClientID:  clientID,
		AuthToken: token,
	})
	var ack protocol.RegisterAckPayload
	r.recvJSON(frame.TypeRegisterAck, &ack)
	if ack.Status != protocol.StatusOK {
		t.Fatalf("register failed: %+v", ack)
	}
}
