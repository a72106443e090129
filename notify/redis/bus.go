// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package redis implements notify.Bus on Redis pub/sub.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/alicebob/miniredis/v2"
	"github.com/poiesic/ragline/core"
	"github.com/poiesic/ragline/notify"
	"github.com/redis/go-redis/v9"
)

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// Bus publishes and subscribes through one Redis client.
type Bus struct {
	client   *redis.Client
	prefix   string
	logger   *slog.Logger
	embedded *miniredis.Miniredis

	mu     sync.Mutex
	subs   map[*subscription]struct{}
	closed bool
}

var _ notify.Bus = (*Bus)(nil)

// Option configures a Bus.
type Option func(*Bus)

// WithPrefix namespaces every channel name.
func WithPrefix(prefix string) Option {
	return func(b *Bus) {
		b.prefix = prefix
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bus) {
		b.logger = logger
	}
}

// New wraps an existing client.
func New(client *redis.Client, opts ...Option) *Bus {
	b := &Bus{
		client: client,
		prefix: "ragline:",
		logger: slog.Default(),
		subs:   make(map[*subscription]struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.With("component", "notify")
	return b
}

// Dial connects to Redis and verifies the connection.
func Dial(ctx context.Context, o Options, opts ...Option) (*Bus, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     o.Addr,
		Password: o.Password,
		DB:       o.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", o.Addr, err)
	}
	return New(client, opts...), nil
}

// RunEmbedded starts an in-process Redis server and returns a bus bound to
// it. Closing the bus stops the server.
func RunEmbedded(opts ...Option) (*Bus, error) {
	srv, err := miniredis.Run()
	if err != nil {
		return nil, fmt.Errorf("starting embedded redis: %w", err)
	}
	b := New(redis.NewClient(&redis.Options{Addr: srv.Addr()}), opts...)
	b.embedded = srv
	b.logger.Info("embedded redis started", "addr", srv.Addr())
	return b, nil
}

func (b *Bus) channel(name string) string {
	return b.prefix + name
}

// Publish JSON-encodes msg and sends it to channel.
func (b *Bus) Publish(ctx context.Context, channel string, msg any) error {
	if b.isClosed() {
		return notify.ErrBusClosed
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding %T: %w", msg, err)
	}
	if err := b.client.Publish(ctx, b.channel(channel), data).Err(); err != nil {
		return core.Transient("notify.Publish", err)
	}
	b.logger.Debug("published", "channel", channel, "bytes", len(data))
	return nil
}

// Subscribe delivers every message of channel to handler, one at a time,
// until the subscription is closed or ctx ends.
func (b *Bus) Subscribe(ctx context.Context, channel string, handler notify.Handler) (io.Closer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, notify.ErrBusClosed
	}

	ps := b.client.Subscribe(ctx, b.channel(channel))
	// Wait for the subscription confirmation so publishes issued after
	// Subscribe returns are never missed.
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("subscribing to %s: %w", channel, err)
	}

	sub := &subscription{bus: b, ps: ps, done: make(chan struct{})}
	b.subs[sub] = struct{}{}
	go sub.run(ctx, channel, handler)
	return sub, nil
}

// Close ends every subscription and releases the client.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	subs := make([]*subscription, 0, len(b.subs))
	for s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.Unlock()

	for _, s := range subs {
		s.Close()
	}
	err := b.client.Close()
	if b.embedded != nil {
		b.embedded.Close()
	}
	return err
}

func (b *Bus) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

type subscription struct {
	bus  *Bus
	ps   *redis.PubSub
	done chan struct{}
	once sync.Once
}

func (s *subscription) run(ctx context.Context, channel string, handler notify.Handler) {
	defer close(s.done)
	logger := s.bus.logger.With("channel", channel)
	msgs := s.ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			if err := handler(ctx, []byte(msg.Payload)); err != nil {
				logger.Error("handler failed", "err", err)
			}
		}
	}
}

// Close stops delivery and waits for an in-flight handler to return.
func (s *subscription) Close() error {
	var err error
	s.once.Do(func() {
		err = s.ps.Close()
		<-s.done
		s.bus.mu.Lock()
		delete(s.bus.subs, s)
		s.bus.mu.Unlock()
	})
	return err
}
