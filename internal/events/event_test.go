package events

import (
	"context"
	"testing"
)

func TestNewAssignsIncreasingEventIDs(t *testing.T) {
	a := New(ClientRegistered, map[string]string{"client_id": "c1"}, nil)
	b := New(ClientRegistered, map[string]string{"client_id": "c2"}, nil)
	if b.EventID <= a.EventID {
		t.Fatalf("expected increasing event ids, got %d then %d", a.EventID, b.EventID)
	}
	if a.OccurredAt.IsZero() {
		t.Fatal("expected OccurredAt to be set")
	}
}

func TestMemoryPublisherRecordsAndFindsLast(t *testing.T) {
	p := NewMemoryPublisher()
	ctx := context.Background()
	p.Publish(ctx, New(ClientRegistered, map[string]string{"client_id": "c1"}, nil))
	p.Publish(ctx, New(RoomCreated, map[string]string{"room_id": "r1"}, nil))
	p.Publish(ctx, New(RoomCreated, map[string]string{"room_id": "r2"}, nil))

	if len(p.All()) != 3 {
		t.Fatalf("expected 3 recorded events, got %d", len(p.All()))
	}
	last, ok := p.Last(RoomCreated)
	if !ok {
		t.Fatal("expected a RoomCreated event to be found")
	}
	if last.SubjectIDs["room_id"] != "r2" {
		t.Fatalf("expected most recent RoomCreated, got %+v", last.SubjectIDs)
	}
	if _, ok := p.Last(SessionEvicted); ok {
		t.Fatal("expected no SessionEvicted event to be recorded")
	}
}
