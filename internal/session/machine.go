package session

import (
	"context"
	"fmt"

	"github.com/sharetube/watchsync/internal/domain"
	"github.com/sharetube/watchsync/internal/navigation"
)

// Confirm accepts the pending target and navigates to it.
func (s *Session) Confirm(ctx context.Context) error {
	if err := s.check(); err != nil {
		return err
	}
	if !s.mode.Pending() || s.pending == nil {
		return ErrNothingPending
	}

	target := *s.pending
	s.enterMode(ctx, domain.ModeFollowing, nil)
	s.navigateTo(ctx, target)

	return nil
}

// Reject keeps the current content and detaches from sync.
func (s *Session) Reject(ctx context.Context) error {
	if err := s.check(); err != nil {
		return err
	}
	if !s.mode.Pending() {
		return ErrNothingPending
	}

	s.enterMode(ctx, domain.ModeDiverged, nil)
	return nil
}

func (s *Session) PauseSync(ctx context.Context) error {
	if err := s.check(); err != nil {
		return err
	}
	if s.mode == domain.ModeDiverged {
		return nil
	}

	s.enterMode(ctx, domain.ModeDiverged, nil)
	return nil
}

// ResumeSync reattaches to the freshest known room state. An Owner is the
// room state, so it announces its own playback instead.
func (s *Session) ResumeSync(ctx context.Context) error {
	if err := s.check(); err != nil {
		return err
	}
	if s.mode != domain.ModeDiverged {
		return ErrNotDiverged
	}

	s.enterMode(ctx, domain.ModeFollowing, nil)
	if s.role == domain.RoleOwner {
		s.throttler.Reset()
		s.broadcastState(ctx)
		return nil
	}
	if s.lastKnown != nil {
		s.navigateTo(ctx, *s.lastKnown)
	}

	return nil
}

func (s *Session) enterMode(ctx context.Context, mode domain.Mode, pending *domain.Descriptor) {
	s.endApplying()
	s.cancelSettle()

	from := s.mode
	s.mode = mode
	s.pending = cloneOrNil(pending)

	s.logger.InfoContext(ctx, "sync mode changed", "from", from.String(), "to", mode.String())
	s.emit()
}

func (s *Session) navigateTo(ctx context.Context, target domain.Descriptor) {
	outcome, err := s.resolver.Resolve(ctx, s.current(), target)
	if err != nil {
		s.notify(ctx, NoticeNavigationFailed, fmt.Errorf("failed to reach %s: %w", target.ContentID, err))
		return
	}

	if outcome.Plan.Kind != navigation.PlanInPlace {
		return
	}

	if outcome.Plan.SwitchEpisode {
		s.local.EpisodeIndex = target.EpisodeIndex
	}

	if !outcome.SeekPending {
		return
	}

	cmds := []remoteCommand{seekCommand(outcome.SeekTo)}
	settled := func() {
		if s.player.Ready() && s.player.Playing() != target.IsPlaying {
			cmds = append(cmds, playStateCommand(target.IsPlaying))
		}
		s.applyRemote(ctx, cmds...)
	}

	if outcome.SeekAfter == 0 {
		settled()
		return
	}

	s.cancelSettle()
	s.settle = s.schedule(outcome.SeekAfter, func() {
		s.settle = nil
		if s.mode == domain.ModeFollowing {
			settled()
		}
	})
}

func (s *Session) cancelSettle() {
	if s.settle != nil {
		s.settle.Stop()
		s.settle = nil
	}
}
