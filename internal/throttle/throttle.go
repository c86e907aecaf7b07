// Package throttle rate-limits outbound playback state broadcasts.
package throttle

import (
	"sync"
	"time"

	"github.com/sharetube/watchsync/internal/domain"
	"github.com/sharetube/watchsync/pkg/clock"
)

const DefaultMinGap = time.Second

// Throttler admits at most one broadcast per minimum gap. Attempts inside the
// window are dropped, not queued.
type Throttler struct {
	clock  clock.Clock
	minGap time.Duration

	mu           sync.Mutex
	sent         bool
	lastAt       time.Time
	lastIdentity domain.Identity
}

func New(c clock.Clock, minGap time.Duration) *Throttler {
	if minGap <= 0 {
		minGap = DefaultMinGap
	}

	return &Throttler{
		clock:  c,
		minGap: minGap,
	}
}

// Allow reports whether a broadcast of identity may go out now and records it
// when it may.
func (t *Throttler) Allow(identity domain.Identity) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	if t.sent && now.Sub(t.lastAt) < t.minGap {
		return false
	}

	t.sent = true
	t.lastAt = now
	t.lastIdentity = identity

	return true
}

// Last returns the time and identity of the last admitted broadcast.
func (t *Throttler) Last() (time.Time, domain.Identity, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.lastAt, t.lastIdentity, t.sent
}

// Reset forgets the last broadcast so the next attempt is admitted.
func (t *Throttler) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.sent = false
	t.lastAt = time.Time{}
	t.lastIdentity = domain.Identity{}
}
