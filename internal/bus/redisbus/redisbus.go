// Package redisbus implements the core's bus.Bus interface over
// github.com/redis/go-redis/v9 Pub/Sub, grounded on the teacher's
// redis.Client wrapper (edirooss-zmux-server/redis/client.go): same
// bounded dial/read/write timeouts, same connect-diagnostics log line.
package redisbus

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Bus wraps a *redis.Client and satisfies bus.Bus.
type Bus struct {
	client *redis.Client
	log    *zap.Logger
	subs   []*redis.PubSub
}

// New dials addr and pings it once, logging connect success/failure the
// same way the teacher's Client.Ping does.
func New(addr string, log *zap.Logger) (*Bus, error) {
	log = log.Named("redisbus")

	opts := &redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
	}
	client := redis.NewClient(opts)

	b := &Bus{client: client, log: log}
	b.ping()
	return b, nil
}

func (b *Bus) ping() {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := b.client.Ping(ctx).Err()
	elapsed := time.Since(start)

	if err != nil {
		b.log.Warn("connection failed", zap.Error(err), zap.Duration("ping_rtt", elapsed))
		return
	}
	b.log.Info("connection established", zap.Duration("ping_rtt", elapsed))
}

// Publish sends payload on channel via PUBLISH.
func (b *Bus) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := b.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("redisbus: publish %s: %w", channel, err)
	}
	return nil
}

// Subscribe opens a PubSub on channel and returns its payload channel.
// The event loop treats the returned channel as one more readiness
// source. This call waits for the server's subscription confirmation
// before returning.
func (b *Bus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	sub := b.client.Subscribe(ctx, channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("redisbus: subscribe %s: %w", channel, err)
	}
	b.subs = append(b.subs, sub)

	out := make(chan []byte, 64)
	go func() {
		for msg := range sub.Channel() {
			out <- []byte(msg.Payload)
		}
		close(out)
	}()
	return out, nil
}

// Close tears down every open subscription and the underlying client.
func (b *Bus) Close() error {
	for _, sub := range b.subs {
		_ = sub.Close()
	}
	return b.client.Close()
}
