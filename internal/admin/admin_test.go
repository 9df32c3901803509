package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"signalbroker/internal/domain"
	"signalbroker/internal/repository/memstore"
	"signalbroker/internal/session"
)

func TestHealthzReportsOK(t *testing.T) {
	mgr := session.NewManager(1024, nil)
	router := Router(mgr, memstore.NewRoomStore(), prometheus.NewRegistry(), time.Now(), "test")

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("expected status=ok, got %+v", body)
	}
}

func TestStatuszReportsOpenSessionsVersionAndRoomCount(t *testing.T) {
	mgr := session.NewManager(1024, nil)
	rooms := memstore.NewRoomStore()
	if err := rooms.Create(context.Background(), domain.Room{RoomID: "room-1", Status: domain.RoomActive}); err != nil {
		t.Fatalf("seed room: %v", err)
	}
	if err := rooms.Create(context.Background(), domain.Room{RoomID: "room-2", Status: domain.RoomTerminated}); err != nil {
		t.Fatalf("seed room: %v", err)
	}
	started := time.Now().Add(-time.Minute)
	router := Router(mgr, rooms, prometheus.NewRegistry(), started, "v1.2.3")

	req := httptest.NewRequest(http.MethodGet, "/statusz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["version"] != "v1.2.3" {
		t.Fatalf("expected version v1.2.3, got %+v", body)
	}
	if openSessions, ok := body["open_sessions"].(float64); !ok || openSessions != 0 {
		t.Fatalf("expected open_sessions=0 on a manager with no sessions, got %+v", body["open_sessions"])
	}
	if uptime, ok := body["uptime_sec"].(float64); !ok || uptime <= 0 {
		t.Fatalf("expected a positive uptime_sec, got %+v", body["uptime_sec"])
	}
	if activeRooms, ok := body["active_rooms"].(float64); !ok || activeRooms != 1 {
		t.Fatalf("expected active_rooms=1 (one Active, one Terminated), got %+v", body["active_rooms"])
	}
}

func TestMetricsEndpointServesPrometheusFormat(t *testing.T) {
	mgr := session.NewManager(1024, nil)
	router := Router(mgr, memstore.NewRoomStore(), prometheus.NewRegistry(), time.Now(), "test")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
