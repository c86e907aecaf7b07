package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sharetube/watchsync/internal/domain"
	"github.com/sharetube/watchsync/internal/navigation"
	"github.com/sharetube/watchsync/pkg/clock"
)

type fakePlayer struct {
	ready    bool
	time     float64
	playing  bool
	episode  int
	seeks    []float64
	plays    int
	pauses   int
	switched []int
	playErr  error
	seekErr  error
	// onEvent mirrors player events back, the way a real player fires
	// play/pause/seeked after a command.
	onEvent func(domain.LocalEvent)
}

func (p *fakePlayer) Ready() bool          { return p.ready }
func (p *fakePlayer) CurrentTime() float64 { return p.time }
func (p *fakePlayer) Playing() bool        { return p.playing }

func (p *fakePlayer) Play() error {
	if p.playErr != nil {
		return p.playErr
	}
	p.plays++
	p.playing = true
	p.fire(domain.LocalPlay)
	return nil
}

func (p *fakePlayer) Pause() error {
	p.pauses++
	p.playing = false
	p.fire(domain.LocalPause)
	return nil
}

func (p *fakePlayer) Seek(t float64) error {
	if p.seekErr != nil {
		return p.seekErr
	}
	p.seeks = append(p.seeks, t)
	p.time = t
	p.fire(domain.LocalSeeked)
	return nil
}

func (p *fakePlayer) SwitchEpisode(index int) error {
	p.switched = append(p.switched, index)
	p.episode = index
	p.time = 0
	return nil
}

func (p *fakePlayer) fire(ev domain.LocalEvent) {
	if p.onEvent != nil {
		p.onEvent(ev)
	}
}

type publishCall struct {
	kind       domain.EventType
	descriptor domain.Descriptor
	time       float64
}

type fakePublisher struct {
	calls []publishCall
	err   error
}

func (p *fakePublisher) UpdatePlayState(_ context.Context, d domain.Descriptor) error {
	p.calls = append(p.calls, publishCall{kind: domain.EventUpdate, descriptor: d})
	return p.err
}

func (p *fakePublisher) Play(context.Context) error {
	p.calls = append(p.calls, publishCall{kind: domain.EventPlay})
	return p.err
}

func (p *fakePublisher) Pause(context.Context) error {
	p.calls = append(p.calls, publishCall{kind: domain.EventPause})
	return p.err
}

func (p *fakePublisher) SeekPlayback(_ context.Context, t float64) error {
	p.calls = append(p.calls, publishCall{kind: domain.EventSeek, time: t})
	return p.err
}

func (p *fakePublisher) ChangeVideo(_ context.Context, d domain.Descriptor) error {
	p.calls = append(p.calls, publishCall{kind: domain.EventChange, descriptor: d})
	return p.err
}

func (p *fakePublisher) kinds() []domain.EventType {
	kinds := make([]domain.EventType, 0, len(p.calls))
	for _, c := range p.calls {
		kinds = append(kinds, c.kind)
	}
	return kinds
}

type fakeNavigator struct {
	targets []navigation.Target
	reloads []bool
	err     error
}

func (n *fakeNavigator) Navigate(_ context.Context, target navigation.Target, forceReload bool) error {
	n.targets = append(n.targets, target)
	n.reloads = append(n.reloads, forceReload)
	return n.err
}

type harness struct {
	t       *testing.T
	ctx     context.Context
	clock   *clock.Fake
	player  *fakePlayer
	pub     *fakePublisher
	nav     *fakeNavigator
	session *Session
	states  []State
	notices []Notice
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		t:      t,
		ctx:    context.Background(),
		clock:  clock.NewFake(time.Unix(1_700_000_000, 0)),
		player: &fakePlayer{ready: true},
		pub:    &fakePublisher{},
		nav:    &fakeNavigator{},
	}

	h.session = New(h.player, h.pub, h.nav,
		WithClock(h.clock),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithStateListener(func(s State) { h.states = append(h.states, s) }),
		WithNoticeListener(func(n Notice) { h.notices = append(h.notices, n) }),
	)
	h.player.onEvent = func(ev domain.LocalEvent) {
		h.session.HandleLocal(h.ctx, ev)
	}

	return h
}

func (h *harness) join(role domain.Role, local domain.Descriptor, state *domain.Descriptor) {
	h.t.Helper()

	h.player.time = local.CurrentTime
	h.player.playing = local.IsPlaying
	h.player.episode = local.EpisodeIndex
	require.NoError(h.t, h.session.Join(h.ctx, JoinParams{
		MemberID: "me",
		Role:     role,
		Local:    local,
		State:    state,
	}))
}

func (h *harness) remote(ev domain.Event) {
	h.t.Helper()

	if ev.SenderID == "" {
		ev.SenderID = "owner"
	}
	require.NoError(h.t, h.session.HandleRemote(h.ctx, ev))
}

func (h *harness) update(d domain.Descriptor) {
	h.t.Helper()
	h.remote(domain.Event{Type: domain.EventUpdate, Descriptor: &d})
}

func (h *harness) change(d domain.Descriptor) {
	h.t.Helper()
	h.remote(domain.Event{Type: domain.EventChange, Descriptor: &d})
}

func (h *harness) noticeKinds() []NoticeKind {
	kinds := make([]NoticeKind, 0, len(h.notices))
	for _, n := range h.notices {
		kinds = append(kinds, n.Kind)
	}
	return kinds
}

func show(canonicalID, source string, episode int, at float64) domain.Descriptor {
	return domain.Descriptor{
		ContentID:    source + "-" + canonicalID,
		Source:       source,
		EpisodeIndex: episode,
		CurrentTime:  at,
		Title:        "Show " + canonicalID,
		CanonicalID:  canonicalID,
	}
}

var errRejected = errors.New("play() rejected")
