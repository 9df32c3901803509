// Package server bootstraps the signaling TCP listener, the admin HTTP
// surface, and graceful shutdown, grounded on the teacher's
// control.Hub.Start/handleConn accept loop and
// cmd/relay-server-v4/main.go's signal handling.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"signalbroker/internal/admin"
	"signalbroker/internal/broker"
	"signalbroker/internal/config"
	"signalbroker/internal/frame"
	"signalbroker/internal/logging"
	"signalbroker/internal/metrics"
	"signalbroker/internal/protocol"
	"signalbroker/internal/ratelimit"
	"signalbroker/internal/session"
)

// Server owns the TCP listener, the admin HTTP server, and the
// session.Manager; Broker supplies every protocol-level behavior.
type Server struct {
	cfg     config.Config
	broker  *broker.Broker
	sess    *session.Manager
	ipTrack *ratelimit.IPTracker
	started time.Time
	version string

	ln       net.Listener
	adminSrv *http.Server
}

// New wires a Server around an already-constructed Broker and
// session.Manager (the caller owns their lifetimes beyond Run).
func New(cfg config.Config, b *broker.Broker, sess *session.Manager, version string) *Server {
	return &Server{
		cfg:     cfg,
		broker:  b,
		sess:    sess,
		ipTrack: ratelimit.NewIPTracker(cfg.Security.MaxConnectionsPerIP),
		started: time.Now(),
		version: version,
	}
}

// Run listens, serves, and blocks until ctx is cancelled, then runs the
// graceful shutdown sequence from spec.md §5: stop accepting, send
// DISCONNECT{reason:server_shutdown} to every live session, wait up to
// shutdown_grace for writers to flush, then force-close whatever
// remains.
func (s *Server) Run(ctx context.Context) error {
	ln, err := s.listen()
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	s.ln = ln

	registry := metrics.NewRegistry()
	s.adminSrv = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.AdminPort),
		Handler: admin.Router(s.sess, s.broker.Repos.Rooms, registry, s.started, s.version),
	}

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error { return s.acceptLoop(gctx) })
	group.Go(func() error {
		s.sess.RunHeartbeatLoop(gctx, session.HeartbeatConfig{
			RegistrationTimeout: s.cfg.Timing.RegistrationTimeout,
			HeartbeatInterval:   s.cfg.Timing.HeartbeatInterval,
			HeartbeatTimeout:    s.cfg.Timing.HeartbeatTimeout,
		}, s.broker.OnExpire)
		return nil
	})
	group.Go(func() error {
		if err := s.adminSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("admin http: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-gctx.Done()
		return s.shutdown()
	})

	return group.Wait()
}

func (s *Server) listen() (net.Listener, error) {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	if !s.cfg.Server.TLSEnabled {
		return net.Listen("tcp", addr)
	}
	cert, err := tls.LoadX509KeyPair(s.cfg.Server.TLSCertPath, s.cfg.Server.TLSKeyPath)
	if err != nil {
		return nil, fmt.Errorf("load tls keypair: %w", err)
	}
	return tls.Listen("tcp", addr, &tls.Config{Certificates: []tls.Certificate{cert}})
}

func (s *Server) acceptLoop(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		_ = s.ln.Close()
	}()

	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			logging.With(map[string]any{"err": err}).Warn("accept failed")
			continue
		}
		if !s.admit(conn) {
			_ = conn.Close()
			continue
		}
		s.openSession(conn)
	}
}

// admit enforces server.max_connections and
// security.max_connections_per_ip before a socket is handed to the
// session manager, per spec.md §5's "admission checks occur before
// spawning reader/writer tasks".
func (s *Server) admit(conn net.Conn) bool {
	if s.cfg.Server.MaxConnections > 0 && s.sess.Snapshot() >= s.cfg.Server.MaxConnections {
		logging.With(map[string]any{"remote": conn.RemoteAddr()}).Warn("max_connections reached, rejecting")
		return false
	}
	ip := hostOf(conn.RemoteAddr())
	if !s.ipTrack.TryAcquire(ip) {
		logging.With(map[string]any{"remote": conn.RemoteAddr()}).Warn("max_connections_per_ip reached, rejecting")
		return false
	}
	return true
}

func (s *Server) openSession(conn net.Conn) {
	ip := hostOf(conn.RemoteAddr())
	onDone := func(sess *session.Session) {
		s.ipTrack.Release(ip)
		s.broker.OnDone(sess)
		metrics.OpenSessions.Set(float64(s.sess.Snapshot()))
	}
	s.sess.Open(conn, s.cfg.Session.SendQueueSize, s.broker.Dispatch, s.broker.OnDecodeErr, onDone)
	metrics.OpenSessions.Set(float64(s.sess.Snapshot()))
}

func (s *Server) shutdown() error {
	logging.L().Info("shutting down: draining sessions")
	f, err := protocol.EncodeJSON(frame.TypeDisconnect, uuid.New(), protocol.DisconnectPayload{Reason: "server_shutdown"})
	if err != nil {
		return fmt.Errorf("encode shutdown disconnect: %w", err)
	}
	for _, sess := range s.sess.All() {
		_ = sess.Enqueue(f, 500*time.Millisecond)
	}

	deadline := time.After(s.cfg.Timing.ShutdownGrace)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-deadline:
			for _, sess := range s.sess.All() {
				sess.Close(nil)
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Timing.ShutdownGrace)
			defer cancel()
			_ = s.adminSrv.Shutdown(shutdownCtx)
			return nil
		case <-ticker.C:
			if s.sess.Snapshot() == 0 {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Timing.ShutdownGrace)
				defer cancel()
				_ = s.adminSrv.Shutdown(shutdownCtx)
				return nil
			}
		}
	}
}

func hostOf(addr net.Addr) string {
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}
