package session

import (
	"time"

	"github.com/sharetube/watchsync/internal/domain"
	"github.com/sharetube/watchsync/pkg/clock"
)

// applyingRemote is the transient sub-state entered while a remote command
// is applied to the player. Local player events seen while it is active are
// echoes and never leave the session.
type applyingRemote struct {
	until  time.Time
	expect map[domain.LocalEvent]int
	timer  clock.Timer
}

// observe records a mirrored player event and reports whether every expected
// echo has now been seen.
func (a *applyingRemote) observe(ev domain.LocalEvent) bool {
	if n, ok := a.expect[ev]; ok {
		if n <= 1 {
			delete(a.expect, ev)
		} else {
			a.expect[ev] = n - 1
		}
	}

	return len(a.expect) == 0
}

type remoteCommand struct {
	echo domain.LocalEvent
	time float64
}

func seekCommand(t float64) remoteCommand {
	return remoteCommand{echo: domain.LocalSeeked, time: t}
}

func playStateCommand(playing bool) remoteCommand {
	if playing {
		return remoteCommand{echo: domain.LocalPlay}
	}
	return remoteCommand{echo: domain.LocalPause}
}

func (s *Session) beginApplying(cmds []remoteCommand) *applyingRemote {
	s.endApplying()

	a := &applyingRemote{
		until:  s.clock.Now().Add(s.cfg.SuppressWindow),
		expect: make(map[domain.LocalEvent]int, len(cmds)),
	}
	for _, cmd := range cmds {
		a.expect[cmd.echo]++
	}

	a.timer = s.schedule(s.cfg.SuppressWindow, func() {
		if s.applying == a {
			s.applying = nil
			s.logger.DebugContext(s.ctx, "suppression window elapsed")
		}
	})
	s.applying = a

	return a
}

func (s *Session) endApplying() {
	if s.applying == nil {
		return
	}

	s.applying.timer.Stop()
	s.applying = nil
}

func (s *Session) suppressing() bool {
	if s.applying == nil {
		return false
	}

	if !s.clock.Now().Before(s.applying.until) {
		s.endApplying()
		return false
	}

	return true
}
