// Package redisstore is the durable repository implementation backing
// every collection as a namespaced JSON document in Redis. Redis gives
// us the eventual-consistency document-store semantics the spec calls
// for but not cross-key transactions; the room orchestrator's
// compensation logic, not this package, is what keeps state correct
// across partial failures.
package redisstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"signalbroker/internal/domain"
	"signalbroker/internal/repository"
)

// Store wraps a redis.Client with the key-prefix convention shared by
// every sub-repository in this package.
type Store struct {
	rdb    *redis.Client
	prefix string
}

// New returns a Store bound to rdb, namespacing every key under prefix.
func New(rdb *redis.Client, prefix string) *Store {
	return &Store{rdb: rdb, prefix: prefix}
}

func (s *Store) key(collection, id string) string {
	return fmt.Sprintf("%s:%s:%s", s.prefix, collection, id)
}

func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if err == redis.Nil {
		return &repository.DatabaseError{Op: op, Kind: repository.KindNotFound, Err: repository.ErrNotFound}
	}
	return &repository.DatabaseError{Op: op, Kind: repository.KindConnection, Err: err}
}

// Repositories returns the five contracts backed by this Store.
func (s *Store) Repositories() repository.Repositories {
	return repository.Repositories{
		Clients:       &clientRepo{s},
		Rooms:         &roomRepo{s},
		Memberships:   &membershipRepo{s},
		Terminations:  &terminationRepo{s},
		CreationAudit: &creationAuditRepo{s},
	}
}

func getJSON[T any](ctx context.Context, s *Store, op, collection, id string) (T, error) {
	var v T
	raw, err := s.rdb.Get(ctx, s.key(collection, id)).Result()
	if err != nil {
		return v, classify(op, err)
	}
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return v, &repository.DatabaseError{Op: op, Kind: repository.KindInternal, Err: err}
	}
	return v, nil
}

func putJSON(ctx context.Context, s *Store, op, collection, id string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return &repository.DatabaseError{Op: op, Kind: repository.KindInternal, Err: err}
	}
	if err := s.rdb.Set(ctx, s.key(collection, id), raw, 0).Err(); err != nil {
		return classify(op, err)
	}
	return nil
}

// setIfAbsent enforces the create-vs-conflict distinction the
// in-memory store gets for free from a plain map lookup.
func setIfAbsent(ctx context.Context, s *Store, op, collection, id string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return &repository.DatabaseError{Op: op, Kind: repository.KindInternal, Err: err}
	}
	ok, err := s.rdb.SetNX(ctx, s.key(collection, id), raw, 0).Result()
	if err != nil {
		return classify(op, err)
	}
	if !ok {
		return &repository.DatabaseError{Op: op, Kind: repository.KindConflict, Err: repository.ErrConflict}
	}
	return nil
}

type clientRepo struct{ s *Store }

func (r *clientRepo) Create(ctx context.Context, c domain.Client) error {
	return setIfAbsent(ctx, r.s, "client.create", "clients", c.ClientID, c)
}
func (r *clientRepo) Get(ctx context.Context, clientID string) (domain.Client, error) {
	return getJSON[domain.Client](ctx, r.s, "client.get", "clients", clientID)
}
func (r *clientRepo) Update(ctx context.Context, c domain.Client) error {
	return putJSON(ctx, r.s, "client.update", "clients", c.ClientID, c)
}
func (r *clientRepo) Delete(ctx context.Context, clientID string) error {
	return classify("client.delete", r.s.rdb.Del(ctx, r.s.key("clients", clientID)).Err())
}

type roomRepo struct{ s *Store }

// roomsActiveKey indexes Active rooms in a set so CountActive (the
// admin /statusz room count) is an O(1) SCard instead of a SCAN over
// every room document.
func (r *roomRepo) roomsActiveKey() string { return r.s.key("index", "rooms_active") }

func (r *roomRepo) syncActiveIndex(ctx context.Context, room domain.Room) error {
	if room.Status == domain.RoomActive {
		return r.s.rdb.SAdd(ctx, r.roomsActiveKey(), room.RoomID).Err()
	}
	return r.s.rdb.SRem(ctx, r.roomsActiveKey(), room.RoomID).Err()
}

func (r *roomRepo) Create(ctx context.Context, room domain.Room) error {
	if err := setIfAbsent(ctx, r.s, "room.create", "rooms", room.RoomID, room); err != nil {
		return err
	}
	return classify("room.create", r.syncActiveIndex(ctx, room))
}
func (r *roomRepo) Get(ctx context.Context, roomID string) (domain.Room, error) {
	return getJSON[domain.Room](ctx, r.s, "room.get", "rooms", roomID)
}
func (r *roomRepo) Update(ctx context.Context, room domain.Room) error {
	if err := putJSON(ctx, r.s, "room.update", "rooms", room.RoomID, room); err != nil {
		return err
	}
	return classify("room.update", r.syncActiveIndex(ctx, room))
}
func (r *roomRepo) Delete(ctx context.Context, roomID string) error {
	_, err := r.s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SRem(ctx, r.roomsActiveKey(), roomID)
		pipe.Del(ctx, r.s.key("rooms", roomID))
		return nil
	})
	return classify("room.delete", err)
}
func (r *roomRepo) CountActive(ctx context.Context) (int, error) {
	n, err := r.s.rdb.SCard(ctx, r.roomsActiveKey()).Result()
	if err != nil {
		return 0, classify("room.count_active", err)
	}
	return int(n), nil
}

type membershipRepo struct{ s *Store }

// Create writes the Membership document and its by-room index entry
// in one TxPipelined round trip, so a SetNX-then-SAdd race never
// leaves the index pointing at a membership that failed to commit.
// SetNX's own result still decides create-vs-conflict; on conflict the
// index add is undone since the membership document itself never took.
func (r *membershipRepo) Create(ctx context.Context, m domain.Membership) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return &repository.DatabaseError{Op: "membership.create", Kind: repository.KindInternal, Err: err}
	}

	var setCmd *redis.BoolCmd
	_, err = r.s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		setCmd = pipe.SetNX(ctx, r.s.key("memberships", m.ClientID), raw, 0)
		pipe.SAdd(ctx, r.s.key("memberships_by_room", m.RoomID), m.ClientID)
		return nil
	})
	if err != nil {
		return classify("membership.create", err)
	}
	if !setCmd.Val() {
		_ = r.s.rdb.SRem(ctx, r.s.key("memberships_by_room", m.RoomID), m.ClientID).Err()
		return &repository.DatabaseError{Op: "membership.create", Kind: repository.KindConflict, Err: repository.ErrConflict}
	}
	return nil
}
func (r *membershipRepo) Get(ctx context.Context, clientID string) (domain.Membership, error) {
	return getJSON[domain.Membership](ctx, r.s, "membership.get", "memberships", clientID)
}
func (r *membershipRepo) ListByRoom(ctx context.Context, roomID string) ([]domain.Membership, error) {
	ids, err := r.s.rdb.SMembers(ctx, r.s.key("memberships_by_room", roomID)).Result()
	if err != nil {
		return nil, classify("membership.list_by_room", err)
	}
	out := make([]domain.Membership, 0, len(ids))
	for _, id := range ids {
		m, err := r.Get(ctx, id)
		if repository.IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}
func (r *membershipRepo) Update(ctx context.Context, m domain.Membership) error {
	return putJSON(ctx, r.s, "membership.update", "memberships", m.ClientID, m)
}
func (r *membershipRepo) Delete(ctx context.Context, clientID string) error {
	m, err := r.Get(ctx, clientID)
	if err != nil && !repository.IsNotFound(err) {
		return err
	}
	if err == nil {
		_, err := r.s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.SRem(ctx, r.s.key("memberships_by_room", m.RoomID), clientID)
			pipe.Del(ctx, r.s.key("memberships", clientID))
			return nil
		})
		return classify("membership.delete", err)
	}
	return classify("membership.delete", r.s.rdb.Del(ctx, r.s.key("memberships", clientID)).Err())
}

type terminationRepo struct{ s *Store }

func (r *terminationRepo) Create(ctx context.Context, t domain.Termination) error {
	return putJSON(ctx, r.s, "termination.create", "terminated_rooms", t.RoomID, t)
}
func (r *terminationRepo) Get(ctx context.Context, roomID string) (domain.Termination, error) {
	return getJSON[domain.Termination](ctx, r.s, "termination.get", "terminated_rooms", roomID)
}

type creationAuditRepo struct{ s *Store }

func (r *creationAuditRepo) Create(ctx context.Context, a domain.CreationAudit) error {
	raw, err := json.Marshal(a)
	if err != nil {
		return &repository.DatabaseError{Op: "creation_audit.create", Kind: repository.KindInternal, Err: err}
	}
	return classify("creation_audit.create", r.s.rdb.RPush(ctx, r.s.key("creation_audit", a.RoomID), raw).Err())
}
func (r *creationAuditRepo) ListByRoom(ctx context.Context, roomID string) ([]domain.CreationAudit, error) {
	raws, err := r.s.rdb.LRange(ctx, r.s.key("creation_audit", roomID), 0, -1).Result()
	if err != nil {
		return nil, classify("creation_audit.list_by_room", err)
	}
	out := make([]domain.CreationAudit, 0, len(raws))
	for _, raw := range raws {
		var a domain.CreationAudit
		if err := json.Unmarshal([]byte(raw), &a); err != nil {
			return nil, &repository.DatabaseError{Op: "creation_audit.list_by_room", Kind: repository.KindInternal, Err: err}
		}
		out = append(out, a)
	}
	return out, nil
}
