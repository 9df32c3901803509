// Package admin serves the broker's liveness and observability HTTP
// surface — /healthz, /statusz, /metrics — on a separate port from the
// signaling TCP listener, grounded on the teacher's HTTP /status branch
// inside handleConn, generalized the way a chi.Router separates routes
// in the chat app's cmd/server/main.go.
package admin

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"signalbroker/internal/logging"
	"signalbroker/internal/repository"
	"signalbroker/internal/session"
)

// Router builds the admin HTTP surface. started is the process start
// time, reported in /statusz for uptime; rooms is used to report the
// count of currently Active rooms alongside the open session count.
func Router(sessions *session.Manager, rooms repository.RoomRepository, registry *prometheus.Registry, started time.Time, version string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	r.Get("/statusz", func(w http.ResponseWriter, req *http.Request) {
		activeRooms, err := rooms.CountActive(req.Context())
		if err != nil {
			logging.With(map[string]any{"err": err}).Warn("statusz: room count unavailable")
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"version":       version,
			"open_sessions": sessions.Snapshot(),
			"active_rooms":  activeRooms,
			"uptime_sec":    int64(time.Since(started).Seconds()),
		})
	})

	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	return r
}
