package session

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharetube/watchsync/internal/domain"
)

func followingHarness(t *testing.T, at float64) *harness {
	t.Helper()

	h := newHarness(t)
	owner := show("42", "A", 3, at)
	h.join(domain.RoleMember, show("42", "A", 3, at), &owner)
	require.Empty(t, h.player.seeks)

	return h
}

func TestDriftTolerance(t *testing.T) {
	tests := []struct {
		remote   float64
		wantSeek bool
	}{
		{remote: 100, wantSeek: false},
		{remote: 101.5, wantSeek: false},
		{remote: 102, wantSeek: false},
		{remote: 98, wantSeek: false},
		{remote: 102.01, wantSeek: true},
		{remote: 97.9, wantSeek: true},
		{remote: 400, wantSeek: true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("remote=%v", tt.remote), func(t *testing.T) {
			h := followingHarness(t, 100)

			h.update(show("42", "A", 3, tt.remote))

			if tt.wantSeek {
				assert.Equal(t, []float64{tt.remote}, h.player.seeks)
			} else {
				assert.Empty(t, h.player.seeks)
			}
		})
	}
}

func TestUpdateTwiceSeeksOnce(t *testing.T) {
	h := followingHarness(t, 4)

	h.update(show("42", "A", 3, 120))
	h.update(show("42", "A", 3, 120))

	assert.Equal(t, []float64{120}, h.player.seeks)
}

func TestUpdateTwiceSeeksOnceWithoutEcho(t *testing.T) {
	h := followingHarness(t, 4)
	h.player.onEvent = nil

	h.update(show("42", "A", 3, 120))
	h.clock.Advance(100 * time.Millisecond)
	h.update(show("42", "A", 3, 120))
	h.clock.Advance(time.Second)
	h.update(show("42", "A", 3, 120))

	assert.Equal(t, []float64{120}, h.player.seeks)
}

func TestUpdateForOtherEpisodeIgnored(t *testing.T) {
	h := followingHarness(t, 4)

	h.update(show("42", "A", 4, 120))
	h.update(show("42", "B", 3, 120))
	h.update(show("99", "A", 3, 120))

	assert.Empty(t, h.player.seeks)
	assert.Equal(t, domain.ModeFollowing, h.session.Mode())
}

func TestRemoteCommandsDoNotEcho(t *testing.T) {
	h := followingHarness(t, 10)

	h.remote(domain.Event{Type: domain.EventPlay})
	h.remote(domain.Event{Type: domain.EventSeek, Time: 50})
	h.remote(domain.Event{Type: domain.EventPause})

	assert.Equal(t, 1, h.player.plays)
	assert.Equal(t, 1, h.player.pauses)
	assert.Equal(t, []float64{50}, h.player.seeks)
	assert.Empty(t, h.pub.calls)
}

func TestLateEchoSuppressedThenUserEventsFlow(t *testing.T) {
	h := followingHarness(t, 10)
	h.player.onEvent = nil

	h.remote(domain.Event{Type: domain.EventSeek, Time: 50})
	h.clock.Advance(200 * time.Millisecond)
	require.True(t, h.session.State().Suppressing)

	h.session.HandleLocal(h.ctx, domain.LocalSeeked)
	assert.Empty(t, h.pub.calls)
	assert.False(t, h.session.State().Suppressing, "mirrored event ends suppression")

	h.session.HandleLocal(h.ctx, domain.LocalSeeked)
	require.Equal(t, []domain.EventType{domain.EventSeek}, h.pub.kinds())
	assert.Equal(t, 50.0, h.pub.calls[0].time)
}

func TestSuppressionWindowElapses(t *testing.T) {
	h := followingHarness(t, 10)
	h.player.onEvent = nil

	h.remote(domain.Event{Type: domain.EventSeek, Time: 50})
	h.session.HandleLocal(h.ctx, domain.LocalPause)
	assert.Empty(t, h.pub.calls)
	assert.True(t, h.session.State().Suppressing, "unrelated echo keeps suppression")

	h.clock.Advance(500 * time.Millisecond)
	assert.False(t, h.session.State().Suppressing)

	h.session.HandleLocal(h.ctx, domain.LocalPause)
	assert.Equal(t, []domain.EventType{domain.EventPause}, h.pub.kinds())
}

func TestSupersedingCommandCancelsStaleTimer(t *testing.T) {
	h := followingHarness(t, 10)
	h.player.onEvent = nil

	h.remote(domain.Event{Type: domain.EventSeek, Time: 50})
	h.clock.Advance(300 * time.Millisecond)
	h.remote(domain.Event{Type: domain.EventSeek, Time: 80})
	h.clock.Advance(300 * time.Millisecond)

	assert.True(t, h.session.State().Suppressing, "first window must not clear the second")

	h.clock.Advance(200 * time.Millisecond)
	assert.False(t, h.session.State().Suppressing)
}

func TestModeTransitionCancelsSuppression(t *testing.T) {
	h := followingHarness(t, 10)
	h.player.onEvent = nil

	h.remote(domain.Event{Type: domain.EventSeek, Time: 50})
	require.True(t, h.session.State().Suppressing)

	h.change(show("99", "A", 0, 0))

	assert.False(t, h.session.State().Suppressing)
	assert.Zero(t, h.clock.Pending(), "suppression timer cancelled")
}

func TestPlayPauseIdempotent(t *testing.T) {
	h := followingHarness(t, 10)
	h.player.playing = true

	h.remote(domain.Event{Type: domain.EventPlay})
	assert.Zero(t, h.player.plays)

	h.remote(domain.Event{Type: domain.EventPause})
	h.remote(domain.Event{Type: domain.EventPause})
	assert.Equal(t, 1, h.player.pauses)
}

func TestSeekAlwaysApplied(t *testing.T) {
	h := followingHarness(t, 100)

	h.remote(domain.Event{Type: domain.EventSeek, Time: 100.5})

	assert.Equal(t, []float64{100.5}, h.player.seeks)
}

func TestTransientCommandsGated(t *testing.T) {
	t.Run("diverged", func(t *testing.T) {
		h := followingHarness(t, 10)
		require.NoError(t, h.session.PauseSync(h.ctx))

		h.remote(domain.Event{Type: domain.EventSeek, Time: 50})
		h.remote(domain.Event{Type: domain.EventPlay})

		assert.Empty(t, h.player.seeks)
		assert.Zero(t, h.player.plays)
	})

	t.Run("other episode", func(t *testing.T) {
		h := followingHarness(t, 10)
		h.update(show("42", "A", 4, 10))

		h.remote(domain.Event{Type: domain.EventSeek, Time: 50})

		assert.Empty(t, h.player.seeks)
	})

	t.Run("no known state", func(t *testing.T) {
		h := newHarness(t)
		h.join(domain.RoleMember, show("42", "A", 3, 10), nil)

		h.remote(domain.Event{Type: domain.EventPlay})

		assert.Zero(t, h.player.plays)
	})
}

func TestOwnerObeysMemberCommands(t *testing.T) {
	t.Run("fresh room", func(t *testing.T) {
		h := newHarness(t)
		local := show("42", "A", 3, 10)
		local.IsPlaying = true
		h.join(domain.RoleOwner, local, nil)

		h.remote(domain.Event{Type: domain.EventPause, SenderID: "member-1"})
		h.remote(domain.Event{Type: domain.EventSeek, Time: 300, SenderID: "member-1"})

		assert.Equal(t, 1, h.player.pauses)
		assert.False(t, h.player.playing)
		assert.Equal(t, []float64{300}, h.player.seeks)
		assert.Equal(t, []domain.EventType{domain.EventUpdate}, h.pub.kinds(), "applied commands are not echoed")
	})

	t.Run("after own switch", func(t *testing.T) {
		h := newHarness(t)
		state := show("42", "A", 3, 10)
		h.join(domain.RoleOwner, show("42", "A", 3, 10), &state)
		require.NoError(t, h.session.SetLocal(h.ctx, show("99", "A", 0, 0), InitiatedByUser))

		h.remote(domain.Event{Type: domain.EventSeek, Time: 50, SenderID: "member-1"})

		assert.Equal(t, []float64{50}, h.player.seeks)
		require.NotNil(t, h.session.LastKnownOwnerState())
		assert.Equal(t, "99", h.session.LastKnownOwnerState().CanonicalID)
	})

	t.Run("sync paused", func(t *testing.T) {
		h := newHarness(t)
		h.join(domain.RoleOwner, show("42", "A", 3, 10), nil)
		require.NoError(t, h.session.PauseSync(h.ctx))

		h.remote(domain.Event{Type: domain.EventSeek, Time: 50, SenderID: "member-1"})

		assert.Empty(t, h.player.seeks)
	})
}

func TestLocalEventsBroadcastImmediately(t *testing.T) {
	h := followingHarness(t, 10)

	h.player.time = 33
	h.session.HandleLocal(h.ctx, domain.LocalPlay)
	h.session.HandleLocal(h.ctx, domain.LocalPause)
	h.session.HandleLocal(h.ctx, domain.LocalSeeked)

	assert.Equal(t, []domain.EventType{domain.EventPlay, domain.EventPause, domain.EventSeek}, h.pub.kinds())
	assert.Equal(t, 33.0, h.pub.calls[2].time)
}

func TestLocalEventsNotBroadcastWhileDetached(t *testing.T) {
	h := followingHarness(t, 10)
	require.NoError(t, h.session.PauseSync(h.ctx))

	h.session.HandleLocal(h.ctx, domain.LocalPlay)

	assert.Empty(t, h.pub.calls)
}

func TestPlayerRejectionClearsSuppression(t *testing.T) {
	h := followingHarness(t, 10)
	h.player.playErr = errRejected

	h.remote(domain.Event{Type: domain.EventPlay})

	assert.False(t, h.session.State().Suppressing)
	require.Equal(t, []NoticeKind{NoticePlayerRejected}, h.noticeKinds())
	assert.ErrorIs(t, h.notices[0], errRejected)

	h.session.HandleLocal(h.ctx, domain.LocalPause)
	assert.Equal(t, []domain.EventType{domain.EventPause}, h.pub.kinds())
}

func TestCommandDroppedWhenPlayerNotReady(t *testing.T) {
	h := followingHarness(t, 10)
	h.player.ready = false

	h.update(show("42", "A", 3, 300))
	h.remote(domain.Event{Type: domain.EventSeek, Time: 50})
	h.remote(domain.Event{Type: domain.EventPlay})

	assert.Empty(t, h.player.seeks)
	assert.Zero(t, h.player.plays)
	assert.Equal(t, []NoticeKind{NoticeCommandDropped, NoticeCommandDropped, NoticeCommandDropped}, h.noticeKinds())
	for _, n := range h.notices {
		assert.ErrorIs(t, n, domain.ErrPlayerNotReady)
	}
	assert.False(t, h.session.State().Suppressing)
}

func TestInvalidEvents(t *testing.T) {
	h := followingHarness(t, 10)

	err := h.session.HandleRemote(h.ctx, domain.Event{Type: domain.EventUpdate, SenderID: "x"})
	assert.ErrorIs(t, err, domain.ErrInvalidEvent)

	err = h.session.HandleRemote(h.ctx, domain.Event{Type: "bogus", SenderID: "x"})
	assert.ErrorIs(t, err, domain.ErrInvalidEvent)
}

func TestOwnerHeartbeat(t *testing.T) {
	h := newHarness(t)
	local := show("42", "A", 3, 10)
	local.IsPlaying = true
	h.join(domain.RoleOwner, local, nil)
	require.Equal(t, []domain.EventType{domain.EventUpdate}, h.pub.kinds(), "owner announces itself on join")

	h.clock.Advance(5 * time.Second)
	h.clock.Advance(5 * time.Second)
	assert.Len(t, h.pub.calls, 3)

	h.player.playing = false
	h.clock.Advance(15 * time.Second)
	assert.Len(t, h.pub.calls, 3, "no heartbeat while paused")

	h.player.playing = true
	h.player.time = 99
	h.clock.Advance(5 * time.Second)
	require.Len(t, h.pub.calls, 4)
	assert.Equal(t, 99.0, h.pub.calls[3].descriptor.CurrentTime)
	assert.True(t, h.pub.calls[3].descriptor.IsPlaying)
}

func TestOwnerUpdatesThrottled(t *testing.T) {
	h := newHarness(t)
	h.join(domain.RoleOwner, show("42", "A", 3, 10), nil)
	require.Len(t, h.pub.calls, 1)

	require.NoError(t, h.session.PublishState(h.ctx))
	h.clock.Advance(999 * time.Millisecond)
	require.NoError(t, h.session.PublishState(h.ctx))
	assert.Len(t, h.pub.calls, 1)

	h.clock.Advance(time.Millisecond)
	require.NoError(t, h.session.PublishState(h.ctx))
	assert.Len(t, h.pub.calls, 2)
}

func TestPublishFailureIsNotice(t *testing.T) {
	h := followingHarness(t, 10)
	h.pub.err = fmt.Errorf("socket closed")

	h.session.HandleLocal(h.ctx, domain.LocalPlay)

	assert.Equal(t, []NoticeKind{NoticePublishFailed}, h.noticeKinds())
	assert.Equal(t, domain.ModeFollowing, h.session.Mode())
}
