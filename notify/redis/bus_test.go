package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/poiesic/ragline/notify"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBus(t *testing.T) *Bus {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	bus, err := Dial(context.Background(), Options{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { bus.Close() })
	return bus
}

func TestBus_PublishSubscribe(t *testing.T) {
	bus := newTestBus(t)
	ctx := context.Background()

	received := make(chan notify.DocumentCreated, 1)
	sub, err := bus.Subscribe(ctx, notify.ChannelDocumentsCreated, notify.On(func(ctx context.Context, msg notify.DocumentCreated) error {
		received <- msg
		return nil
	}))
	require.NoError(t, err)
	defer sub.Close()

	want := notify.DocumentCreated{EventID: "e1", Bucket: "ragline", Key: "raw_docs/sales/q1.pdf"}
	require.NoError(t, bus.Publish(ctx, notify.ChannelDocumentsCreated, want))

	select {
	case got := <-received:
		assert.Equal(t, want, got)
	case <-time.After(5 * time.Second):
		t.Fatal("message not delivered")
	}
}

func TestBus_ChannelsAreIsolated(t *testing.T) {
	bus := newTestBus(t)
	ctx := context.Background()

	received := make(chan []byte, 2)
	sub, err := bus.Subscribe(ctx, notify.ChannelJobCompletions, func(ctx context.Context, payload []byte) error {
		received <- payload
		return nil
	})
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, bus.Publish(ctx, notify.ChannelDocumentsCreated, notify.DocumentCreated{Key: "x"}))
	require.NoError(t, bus.Publish(ctx, notify.ChannelJobCompletions, notify.JobCompletion{JobID: "j"}))

	select {
	case payload := <-received:
		msg, err := notify.Decode[notify.JobCompletion](payload)
		require.NoError(t, err)
		assert.Equal(t, "j", msg.JobID)
	case <-time.After(5 * time.Second):
		t.Fatal("message not delivered")
	}
	assert.Empty(t, received)
}

func TestBus_PrefixNamespacesChannels(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	bus := New(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}), WithPrefix("test:"))
	defer bus.Close()

	ctx := context.Background()
	sub, err := bus.Subscribe(ctx, "ch", func(ctx context.Context, payload []byte) error { return nil })
	require.NoError(t, err)
	defer sub.Close()

	assert.Equal(t, 1, len(mr.PubSubChannels("test:*")))
}

func TestBus_Closed(t *testing.T) {
	bus := newTestBus(t)
	require.NoError(t, bus.Close())

	assert.ErrorIs(t, bus.Publish(context.Background(), "ch", "x"), notify.ErrBusClosed)
	_, err := bus.Subscribe(context.Background(), "ch", func(ctx context.Context, payload []byte) error { return nil })
	assert.ErrorIs(t, err, notify.ErrBusClosed)
	assert.NoError(t, bus.Close())
}

func TestRunEmbedded(t *testing.T) {
	bus, err := RunEmbedded()
	require.NoError(t, err)
	defer bus.Close()

	ctx := context.Background()
	got := make(chan struct{}, 1)
	sub, err := bus.Subscribe(ctx, "ping", func(ctx context.Context, payload []byte) error {
		got <- struct{}{}
		return nil
	})
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, bus.Publish(ctx, "ping", map[string]string{"a": "b"}))
	select {
	case <-got:
	case <-time.After(5 * time.Second):
		t.Fatal("message not delivered")
	}
}
