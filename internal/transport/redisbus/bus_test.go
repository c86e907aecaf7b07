package redisbus

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharetube/watchsync/internal/protocol"
)

func newBus(t *testing.T, s *miniredis.Miniredis) *Bus {
	t.Helper()

	rc := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { rc.Close() })

	return New(rc, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestFanOutAcrossInstances(t *testing.T) {
	s := miniredis.RunT(t)
	a, b := newBus(t, s), newBus(t, s)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub, err := b.Subscribe(ctx)
	require.NoError(t, err)
	defer sub.Close()

	got := make(chan Envelope, 4)
	go sub.Run(ctx, func(_ context.Context, env Envelope) { got <- env })

	seek, err := protocol.NewMessage(protocol.TypeSeek, "m1", protocol.SeekPayload{Time: 12})
	require.NoError(t, err)
	require.NoError(t, a.Publish(ctx, Envelope{RoomID: "r1", Exclude: "m1", Message: seek}))

	select {
	case env := <-got:
		assert.Equal(t, "r1", env.RoomID)
		assert.Equal(t, "m1", env.Exclude)
		assert.Equal(t, protocol.TypeSeek, env.Message.Type)
		assert.Equal(t, "m1", env.Message.SenderID)
		assert.JSONEq(t, `{"time":12}`, string(env.Message.Payload))
	case <-time.After(2 * time.Second):
		require.FailNow(t, "envelope not delivered")
	}
}

func TestRunStopsOnContext(t *testing.T) {
	s := miniredis.RunT(t)
	bus := newBus(t, s)

	ctx, cancel := context.WithCancel(context.Background())
	sub, err := bus.Subscribe(ctx)
	require.NoError(t, err)
	defer sub.Close()

	done := make(chan error, 1)
	go func() { done <- sub.Run(ctx, func(context.Context, Envelope) {}) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		require.FailNow(t, "run did not return")
	}
}
