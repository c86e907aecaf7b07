package session

import (
	"context"
	"fmt"
	"math"

	"github.com/sharetube/watchsync/internal/domain"
	"github.com/sharetube/watchsync/internal/identity"
)

// HandleRemote routes one inbound room event. Only malformed events return
// an error; everything else degrades to local playback.
func (s *Session) HandleRemote(ctx context.Context, ev domain.Event) error {
	if err := s.check(); err != nil {
		return err
	}

	if ev.SenderID != "" && ev.SenderID == s.memberID {
		return nil
	}

	switch ev.Type {
	case domain.EventUpdate, domain.EventChange:
		if ev.Descriptor == nil {
			return fmt.Errorf("%s without descriptor: %w", ev.Type, domain.ErrInvalidEvent)
		}
	}

	switch ev.Type {
	case domain.EventUpdate:
		s.handleUpdate(ctx, *ev.Descriptor)
	case domain.EventPlay:
		s.handlePlayState(ctx, true)
	case domain.EventPause:
		s.handlePlayState(ctx, false)
	case domain.EventSeek:
		s.handleSeek(ctx, ev.Time)
	case domain.EventChange:
		s.handleChange(ctx, *ev.Descriptor)
	default:
		return fmt.Errorf("unknown event type %q: %w", ev.Type, domain.ErrInvalidEvent)
	}

	return nil
}

// HandleLocal routes one event fired by the local player.
func (s *Session) HandleLocal(ctx context.Context, ev domain.LocalEvent) {
	if s.check() != nil {
		return
	}

	if s.suppressing() {
		if s.applying.observe(ev) {
			s.endApplying()
		}
		s.logger.DebugContext(ctx, "echo suppressed", "event", ev.String())
		return
	}

	if s.mode != domain.ModeFollowing {
		s.logger.DebugContext(ctx, "local event not broadcast", "event", ev.String(), "mode", s.mode.String())
		return
	}

	var err error
	var event domain.EventType
	switch ev {
	case domain.LocalPlay:
		event = domain.EventPlay
		err = s.publisher.Play(ctx)
	case domain.LocalPause:
		event = domain.EventPause
		err = s.publisher.Pause(ctx)
	case domain.LocalSeeked:
		event = domain.EventSeek
		err = s.publisher.SeekPlayback(ctx, s.player.CurrentTime())
	default:
		s.logger.WarnContext(ctx, "unknown local event", "event", ev.String())
		return
	}

	if err != nil {
		s.publishFailed(ctx, event, err)
	}
}

func (s *Session) handleUpdate(ctx context.Context, remote domain.Descriptor) {
	s.lastKnown = remote.Clone()

	if s.mode != domain.ModeFollowing {
		return
	}

	if !identity.SameContentAndEpisode(s.local, remote) {
		s.logger.DebugContext(ctx, "update for other content ignored",
			"content_id", remote.ContentID,
			"source", remote.Source,
			"episode_index", remote.EpisodeIndex,
		)
		return
	}

	if s.suppressing() {
		return
	}

	s.correctDrift(ctx, remote.CurrentTime)
}

func (s *Session) handlePlayState(ctx context.Context, playing bool) {
	if s.lastKnown != nil {
		s.lastKnown.IsPlaying = playing
	}

	if !s.transientAllowed() {
		return
	}

	if !s.player.Ready() {
		s.dropped(ctx, playStateEvent(playing))
		return
	}

	if s.player.Playing() == playing {
		return
	}

	s.applyRemote(ctx, playStateCommand(playing))
}

func (s *Session) handleSeek(ctx context.Context, t float64) {
	if s.lastKnown != nil {
		s.lastKnown.CurrentTime = t
	}

	if !s.transientAllowed() {
		return
	}

	s.applyRemote(ctx, seekCommand(t))
}

func (s *Session) handleChange(ctx context.Context, remote domain.Descriptor) {
	s.lastKnown = remote.Clone()

	switch {
	case s.mode.Pending():
		s.logger.InfoContext(ctx, "pending target replaced", "mode", s.mode.String(), "content_id", remote.ContentID)
		s.pending = remote.Clone()
		s.emit()
	case s.mode == domain.ModeDiverged:
		return
	case identity.SameContentAndEpisode(s.local, remote):
		if !s.suppressing() {
			s.correctDrift(ctx, remote.CurrentTime)
		}
	default:
		s.enterMode(ctx, domain.ModePendingChangeConfirm, &remote)
	}
}

// transientAllowed gates play, pause and seek. They carry no descriptor, so
// the last known room state stands in for it. The Owner's local content is
// the room state.
func (s *Session) transientAllowed() bool {
	if s.mode != domain.ModeFollowing {
		return false
	}
	if s.role == domain.RoleOwner {
		return true
	}
	return s.lastKnown != nil && identity.SameContentAndEpisode(s.local, *s.lastKnown)
}

func (s *Session) correctDrift(ctx context.Context, remoteTime float64) {
	if !s.player.Ready() {
		s.dropped(ctx, domain.EventUpdate)
		return
	}

	drift := math.Abs(s.player.CurrentTime() - remoteTime)
	if drift <= s.cfg.DriftTolerance {
		return
	}

	s.logger.DebugContext(ctx, "correcting drift", "drift", drift, "remote_time", remoteTime)
	s.applyRemote(ctx, seekCommand(remoteTime))
}

// reconcileJoin compares the local descriptor with remote the way a fresh
// join does.
func (s *Session) reconcileJoin(ctx context.Context, remote domain.Descriptor) {
	switch {
	case identity.SameContentAndEpisode(s.local, remote):
		if !s.player.Ready() {
			s.dropped(ctx, domain.EventUpdate)
			return
		}

		cmds := make([]remoteCommand, 0, 2)
		if math.Abs(s.player.CurrentTime()-remote.CurrentTime) > s.cfg.DriftTolerance {
			cmds = append(cmds, seekCommand(remote.CurrentTime))
		}
		if s.player.Playing() != remote.IsPlaying {
			cmds = append(cmds, playStateCommand(remote.IsPlaying))
		}
		if len(cmds) > 0 {
			s.applyRemote(ctx, cmds...)
		}
	case identity.SameContentDifferentSource(s.local, remote):
		s.enterMode(ctx, domain.ModePendingSourceConfirm, &remote)
	default:
		s.enterMode(ctx, domain.ModePendingChangeConfirm, &remote)
	}
}

// applyRemote drives the player with cmds inside the suppression sub-state.
// A rejected command ends suppression at once.
func (s *Session) applyRemote(ctx context.Context, cmds ...remoteCommand) {
	if !s.player.Ready() {
		s.dropped(ctx, commandEvent(cmds[0]))
		return
	}

	s.beginApplying(cmds)

	for _, cmd := range cmds {
		var err error
		switch cmd.echo {
		case domain.LocalSeeked:
			err = s.player.Seek(cmd.time)
		case domain.LocalPlay:
			err = s.player.Play()
		case domain.LocalPause:
			err = s.player.Pause()
		}

		if err != nil {
			s.endApplying()
			s.notify(ctx, NoticePlayerRejected, fmt.Errorf("player rejected %s: %w", cmd.echo, err))
			return
		}
	}
}

func (s *Session) dropped(ctx context.Context, event domain.EventType) {
	s.notify(ctx, NoticeCommandDropped, fmt.Errorf("%s dropped: %w", event, domain.ErrPlayerNotReady))
}

func (s *Session) broadcastState(ctx context.Context) {
	d := s.current()
	s.adoptOwnState(d)
	if !s.throttler.Allow(d.Identity()) {
		s.logger.DebugContext(ctx, "update throttled")
		return
	}

	if err := s.publisher.UpdatePlayState(ctx, d); err != nil {
		s.publishFailed(ctx, domain.EventUpdate, err)
	}
}

func (s *Session) startHeartbeat() {
	s.stopHeartbeat()
	s.heartbeat = s.schedule(s.cfg.HeartbeatInterval, s.beat)
}

func (s *Session) stopHeartbeat() {
	if s.heartbeat != nil {
		s.heartbeat.Stop()
		s.heartbeat = nil
	}
}

func (s *Session) beat() {
	s.heartbeat = nil
	if s.role != domain.RoleOwner {
		return
	}

	if s.mode == domain.ModeFollowing && s.player.Ready() && s.player.Playing() {
		s.broadcastState(s.ctx)
	}

	s.heartbeat = s.schedule(s.cfg.HeartbeatInterval, s.beat)
}

func playStateEvent(playing bool) domain.EventType {
	if playing {
		return domain.EventPlay
	}
	return domain.EventPause
}

func commandEvent(cmd remoteCommand) domain.EventType {
	switch cmd.echo {
	case domain.LocalPlay:
		return domain.EventPlay
	case domain.LocalPause:
		return domain.EventPause
	default:
		return domain.EventSeek
	}
}
