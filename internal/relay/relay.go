// Package relay republishes audit entries on a redis pub/sub channel.
package relay

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ppiankov/stewardgate/internal/audit"
)

// DefaultChannel is used when no channel is configured.
const DefaultChannel = "stewardgate:audit"

const (
	queueSize      = 1024
	publishTimeout = 2 * time.Second
)

// Publisher is the subset of the redis client the relay uses.
type Publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
	Ping(ctx context.Context) *redis.StatusCmd
}

// Relay queues entries from the gate and publishes them from a single
// goroutine, so a slow redis never stalls a checkpoint. Entries that do
// not fit in the queue are dropped and counted.
type Relay struct {
	client  Publisher
	channel string
	logger  *slog.Logger

	queue   chan audit.Entry
	done    chan struct{}
	once    sync.Once
	mu      sync.Mutex
	dropped int
}

// New starts a relay publishing to channel.
func New(client Publisher, channel string, logger *slog.Logger) *Relay {
	if channel == "" {
		channel = DefaultChannel
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := &Relay{
		client:  client,
		channel: channel,
		logger:  logger,
		queue:   make(chan audit.Entry, queueSize),
		done:    make(chan struct{}),
	}
	go r.run()
	return r
}

// Dial connects to redis at addr and verifies it with PING.
func Dial(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

// Observe enqueues the entry without blocking.
func (r *Relay) Observe(e audit.Entry) {
	select {
	case r.queue <- e:
	default:
		r.mu.Lock()
		r.dropped++
		r.mu.Unlock()
	}
}

// Dropped returns how many entries overflowed the queue.
func (r *Relay) Dropped() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// HealthCheck pings redis.
func (r *Relay) HealthCheck(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close stops accepting entries and waits for the queue to drain.
// Observe must not be called after Close.
func (r *Relay) Close() {
	r.once.Do(func() { close(r.queue) })
	<-r.done
}

func (r *Relay) run() {
	defer close(r.done)
	for e := range r.queue {
		r.publish(e)
	}
}

func (r *Relay) publish(e audit.Entry) {
	data, err := json.Marshal(e)
	if err != nil {
		r.logger.Warn("relay marshal failed", "seq", e.Seq, "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := r.client.Publish(ctx, r.channel, data).Err(); err != nil {
		r.logger.Warn("relay publish failed", "channel", r.channel, "seq", e.Seq, "error", err)
	}
}
