package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"signalbroker/internal/logging"
)

// Channel is the pub/sub topic every broker instance publishes
// lifecycle events to, mirroring the channel the chat app's Hub
// publishes chat messages on.
const Channel = "events.broker"

// RedisPublisher queues events in a bounded in-process channel and
// drains them to a Redis pub/sub channel on a dedicated goroutine, so
// Publish never blocks a protocol handler on network I/O. Publication
// failures are retried with bounded backoff; after the backoff budget
// is exhausted the event is logged and dropped.
type RedisPublisher struct {
	rdb     *redis.Client
	channel string
	queue   chan Event
	done    chan struct{}
}

// NewRedisPublisher starts the drainer goroutine immediately.
func NewRedisPublisher(rdb *redis.Client, channel string, queueSize int) *RedisPublisher {
	if channel == "" {
		channel = Channel
	}
	p := &RedisPublisher{
		rdb:     rdb,
		channel: channel,
		queue:   make(chan Event, queueSize),
		done:    make(chan struct{}),
	}
	go p.drain()
	return p
}

// Publish enqueues e without blocking; when the queue is full, e itself
// is dropped (and the drop logged) rather than stalling the caller.
func (p *RedisPublisher) Publish(_ context.Context, e Event) {
	select {
	case p.queue <- e:
	default:
		logging.With(map[string]any{"event_type": e.EventType, "event_id": e.EventID}).
			Warn("event queue full, dropping event")
	}
}

// Close stops the drainer after flushing whatever is already queued.
func (p *RedisPublisher) Close() {
	close(p.queue)
	<-p.done
}

func (p *RedisPublisher) drain() {
	defer close(p.done)
	for e := range p.queue {
		p.publishWithRetry(e)
	}
}

func (p *RedisPublisher) publishWithRetry(e Event) {
	raw, err := json.Marshal(e)
	if err != nil {
		logging.With(map[string]any{"event_type": e.EventType, "err": err}).Error("event marshal failed")
		return
	}

	delay := 100 * time.Millisecond
	const maxAttempts = 4
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		err := p.rdb.Publish(ctx, p.channel, raw).Err()
		cancel()
		if err == nil {
			return
		}
		logging.With(map[string]any{"event_type": e.EventType, "attempt": attempt, "err": err}).
			Warn("event publish failed")
		if attempt == maxAttempts {
			logging.With(map[string]any{"event_type": e.EventType, "event_id": e.EventID}).
				Error("event publish exhausted retries, dropping")
			return
		}
		time.Sleep(delay)
		delay *= 2
	}
}
