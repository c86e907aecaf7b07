package session

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharetube/watchsync/internal/domain"
	"github.com/sharetube/watchsync/pkg/clock"
)

func startRunner(t *testing.T) (*Runner, <-chan error) {
	t.Helper()

	r := NewRunner(slog.New(slog.NewTextHandler(io.Discard, nil)))
	done := make(chan error, 1)
	go func() {
		done <- r.Run(context.Background())
	}()
	t.Cleanup(r.Stop)

	return r, done
}

func TestRunnerExecutesInOrder(t *testing.T) {
	r, _ := startRunner(t)

	var mu sync.Mutex
	var got []int
	for i := 0; i < 100; i++ {
		i := i
		require.True(t, r.Go(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		}))
	}

	require.NoError(t, r.Do(context.Background(), func() {}))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 100)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestRunnerReentrantSubmitDoesNotDeadlock(t *testing.T) {
	r, _ := startRunner(t)

	var order []string
	err := r.Do(context.Background(), func() {
		order = append(order, "outer")
		r.Go(func() { order = append(order, "inner") })
	})
	require.NoError(t, err)
	require.NoError(t, r.Do(context.Background(), func() {}))

	assert.Equal(t, []string{"outer", "inner"}, order)
}

func TestRunnerRecoversPanics(t *testing.T) {
	r, _ := startRunner(t)

	r.Go(func() { panic("boom") })

	ran := false
	require.NoError(t, r.Do(context.Background(), func() { ran = true }))
	assert.True(t, ran)
}

func TestRunnerStop(t *testing.T) {
	r, done := startRunner(t)

	r.Stop()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("runner did not stop")
	}

	assert.False(t, r.Go(func() {}))
	assert.ErrorIs(t, r.Do(context.Background(), func() {}), ErrClosed)
}

func TestRunnerContextCancel(t *testing.T) {
	r := NewRunner(nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- r.Run(ctx)
	}()

	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("runner did not stop")
	}
}

func TestRunnerSerializesSessionTimers(t *testing.T) {
	r, _ := startRunner(t)
	fake := clock.NewFake(time.Unix(1_700_000_000, 0))
	player := &fakePlayer{ready: true, time: 10}
	pub := &fakePublisher{}

	s := New(player, pub, &fakeNavigator{},
		WithClock(fake),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithExecutor(r.Executor()),
	)
	player.onEvent = func(ev domain.LocalEvent) {
		r.Go(func() { s.HandleLocal(context.Background(), ev) })
	}

	ctx := context.Background()
	state := show("42", "A", 3, 10)
	var joinErr, updateErr error
	require.NoError(t, r.Do(ctx, func() {
		joinErr = s.Join(ctx, JoinParams{
			MemberID: "me",
			Role:     domain.RoleMember,
			Local:    show("42", "A", 3, 10),
			State:    &state,
		})
		d := show("42", "A", 3, 200)
		updateErr = s.HandleRemote(ctx, domain.Event{Type: domain.EventUpdate, SenderID: "owner", Descriptor: &d})
	}))
	require.NoError(t, joinErr)
	require.NoError(t, updateErr)

	require.Eventually(t, func() bool {
		var suppressing bool
		_ = r.Do(ctx, func() { suppressing = s.State().Suppressing })
		return !suppressing
	}, time.Second, 10*time.Millisecond, "queued echo ends suppression")

	fake.Advance(time.Second)

	var seeks []float64
	var calls int
	require.NoError(t, r.Do(ctx, func() {
		seeks = append(seeks, player.seeks...)
		calls = len(pub.calls)
	}))
	assert.Equal(t, []float64{200}, seeks)
	assert.Zero(t, calls)
}
