// Package sim is a headless player that keeps a playback clock but renders
// nothing. The CLI drives it in place of a browser video element.
package sim

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sharetube/watchsync/internal/domain"
	"github.com/sharetube/watchsync/pkg/clock"
)

var (
	ErrNotReady      = errors.New("player not ready")
	ErrNoSuchEpisode = errors.New("no such episode")
)

type Option func(*Player)

func WithEpisodes(n int) Option {
	return func(p *Player) {
		p.episodes = n
	}
}

// WithDuration caps the playback position. Reaching it pauses the player.
func WithDuration(d float64) Option {
	return func(p *Player) {
		p.duration = d
	}
}

// WithEventHandler registers fn for play, pause and seeked events. fn runs
// on the calling goroutine after the player state has changed.
func WithEventHandler(fn func(domain.LocalEvent)) Option {
	return func(p *Player) {
		p.onEvent = fn
	}
}

type Player struct {
	clock    clock.Clock
	episodes int
	duration float64
	onEvent  func(domain.LocalEvent)

	mu       sync.Mutex
	ready    bool
	playing  bool
	position float64
	anchor   time.Time
	episode  int
}

func New(c clock.Clock, opts ...Option) *Player {
	p := &Player{
		clock: c,
		ready: true,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

func (p *Player) Ready() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.ready
}

func (p *Player) CurrentTime() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.positionLocked()
}

func (p *Player) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.positionLocked()
	return p.playing
}

func (p *Player) Episode() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.episode
}

func (p *Player) Play() error {
	changed, err := p.apply(func() bool {
		if p.playing {
			return false
		}
		p.position = p.positionLocked()
		p.anchor = p.clock.Now()
		p.playing = true
		return true
	})
	if err != nil {
		return err
	}

	if changed {
		p.fire(domain.LocalPlay)
	}
	return nil
}

func (p *Player) Pause() error {
	changed, err := p.apply(func() bool {
		if !p.playing {
			return false
		}
		p.position = p.positionLocked()
		p.playing = false
		return true
	})
	if err != nil {
		return err
	}

	if changed {
		p.fire(domain.LocalPause)
	}
	return nil
}

func (p *Player) Seek(t float64) error {
	if t < 0 {
		return fmt.Errorf("seek to %v: negative position", t)
	}

	if _, err := p.apply(func() bool {
		p.setPositionLocked(t)
		return true
	}); err != nil {
		return err
	}

	p.fire(domain.LocalSeeked)
	return nil
}

// SwitchEpisode loads another episode of the current content from its start
// without firing events.
func (p *Player) SwitchEpisode(index int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.ready {
		return ErrNotReady
	}
	if index < 0 || (p.episodes > 0 && index >= p.episodes) {
		return fmt.Errorf("%w: %d", ErrNoSuchEpisode, index)
	}

	p.episode = index
	p.setPositionLocked(0)
	return nil
}

// Unload marks the player as not ready, the way a player context does while
// it is being remounted.
func (p *Player) Unload() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.ready = false
	p.playing = false
}

// Load mounts episode at position and marks the player ready. It fires no
// events.
func (p *Player) Load(episode int, position float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.ready = true
	p.playing = false
	p.episode = episode
	p.setPositionLocked(position)
}

// SetEpisodes changes the episode count after a new content is loaded.
func (p *Player) SetEpisodes(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.episodes = n
}

// apply runs mutate under the lock and reports whether it changed anything.
func (p *Player) apply(mutate func() bool) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.ready {
		return false, ErrNotReady
	}

	return mutate(), nil
}

func (p *Player) setPositionLocked(t float64) {
	if p.duration > 0 && t > p.duration {
		t = p.duration
	}
	p.position = t
	p.anchor = p.clock.Now()
}

func (p *Player) positionLocked() float64 {
	if !p.playing {
		return p.position
	}

	pos := p.position + p.clock.Now().Sub(p.anchor).Seconds()
	if p.duration > 0 && pos >= p.duration {
		p.position = p.duration
		p.playing = false
		return p.position
	}

	return pos
}

func (p *Player) fire(ev domain.LocalEvent) {
	if p.onEvent != nil {
		p.onEvent(ev)
	}
}
