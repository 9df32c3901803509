package broker

import (
	"testing"

	"signalbroker/internal/frame"
	"signalbroker/internal/protocol"
)

func TestHandleConnectAcksWithoutBinding(t *testing.T) {
	r := newTestRig(t)
	r.send(frame.TypeConnect, protocol.ConnectPayload{ClientID: "client-1", AuthToken: "tok"})

	var ack protocol.ConnectAckPayload
	r.recvJSON(frame.TypeConnectAck, &ack)
	if ack.Status != protocol.StatusOK || ack.SessionID == "" {
		t.Fatalf("connect_ack malformed: %+v", ack)
	}
	if _, ok := r.manager.GetByClient("client-1"); ok {
		t.Fatal("CONNECT must not bind the session to a client_id")
	}
}

func TestHandlePingEchoesTimestamp(t *testing.T) {
	r := newTestRig(t)
	registerClient(t, r, "client-1", "tok")

	r.send(frame.TypePing, protocol.PingPayload{Timestamp: 123456})
	var ack protocol.PingAckPayload
	r.recvJSON(frame.TypePingAck, &ack)
	if ack.Timestamp != 123456 {
		t.Fatalf("expected echoed timestamp 123456, got %d", ack.Timestamp)
	}
	if ack.ServerTime == 0 {
		t.Fatal("expected a non-zero server_time")
	}
}

func TestCompareVersions(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"1.0.0", "1.0.0", 0},
		{"1.0.0", "1.1.0", -1},
		{"1.2.0", "1.1.9", 1},
		{"2.0", "1.9.9", 1},
	}
	for _, c := range cases {
		if got := compareVersions(c.a, c.b); got != c.want {
			t.Errorf("compareVersions(%q, %q) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}
