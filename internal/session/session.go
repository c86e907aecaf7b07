// Package session keeps one participant's player converged on the room.
//
// A Session is not safe for concurrent use. Every call, including timer
// callbacks, must arrive on one serialized path; Runner provides that path.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sharetube/watchsync/internal/domain"
	"github.com/sharetube/watchsync/internal/navigation"
	"github.com/sharetube/watchsync/internal/throttle"
	"github.com/sharetube/watchsync/pkg/clock"
)

var (
	ErrNothingPending = errors.New("nothing pending confirmation")
	ErrNotDiverged    = errors.New("sync is not paused")
	ErrNotJoined      = errors.New("session not joined")
	ErrClosed         = errors.New("session closed")
)

type Player interface {
	Ready() bool
	CurrentTime() float64
	Playing() bool
	Play() error
	Pause() error
	Seek(t float64) error
	SwitchEpisode(index int) error
}

// Publisher is the outbound side of the room channel. Calls are fire and
// forget; errors are only logged.
type Publisher interface {
	UpdatePlayState(ctx context.Context, d domain.Descriptor) error
	Play(ctx context.Context) error
	Pause(ctx context.Context) error
	SeekPlayback(ctx context.Context, t float64) error
	ChangeVideo(ctx context.Context, d domain.Descriptor) error
}

type Config struct {
	DriftTolerance    float64
	SuppressWindow    time.Duration
	HeartbeatInterval time.Duration
	SettleDelay       time.Duration
	MinBroadcastGap   time.Duration
}

func DefaultConfig() Config {
	return Config{
		DriftTolerance:    2.0,
		SuppressWindow:    500 * time.Millisecond,
		HeartbeatInterval: 5 * time.Second,
		SettleDelay:       navigation.DefaultSettleDelay,
		MinBroadcastGap:   throttle.DefaultMinGap,
	}
}

// Initiative says who caused a local content change.
type Initiative int

const (
	InitiatedByUser Initiative = iota + 1
	InitiatedBySync
)

type JoinParams struct {
	MemberID string
	Role     domain.Role
	Local    domain.Descriptor
	// State is the room's retained authoritative state, if any.
	State *domain.Descriptor
}

type State struct {
	Role                 domain.Role        `json:"role"`
	Mode                 domain.Mode        `json:"mode"`
	PendingSourceConfirm *domain.Descriptor `json:"pending_source_confirm"`
	PendingChangeConfirm *domain.Descriptor `json:"pending_change_confirm"`
	LastKnownOwnerState  *domain.Descriptor `json:"last_known_owner_state"`
	Suppressing          bool               `json:"suppressing"`
	Closed               bool               `json:"closed"`
}

type Option func(*Session)

func WithClock(c clock.Clock) Option {
	return func(s *Session) {
		s.clock = c
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

func WithConfig(cfg Config) Option {
	return func(s *Session) {
		s.cfg = cfg
	}
}

// WithExecutor routes timer callbacks through exec so they run on the same
// serialized path as every other call.
func WithExecutor(exec func(func())) Option {
	return func(s *Session) {
		s.exec = exec
	}
}

func WithStateListener(fn func(State)) Option {
	return func(s *Session) {
		s.onState = fn
	}
}

func WithNoticeListener(fn func(Notice)) Option {
	return func(s *Session) {
		s.onNotice = fn
	}
}

type Session struct {
	player    Player
	publisher Publisher
	navigator navigation.Navigator
	resolver  *navigation.Resolver
	throttler *throttle.Throttler
	clock     clock.Clock
	exec      func(func())
	logger    *slog.Logger
	cfg       Config
	onState   func(State)
	onNotice  func(Notice)

	ctx       context.Context
	joined    bool
	closed    bool
	memberID  string
	role      domain.Role
	mode      domain.Mode
	local     domain.Descriptor
	lastKnown *domain.Descriptor
	pending   *domain.Descriptor
	applying  *applyingRemote
	settle    clock.Timer
	heartbeat clock.Timer
}

func New(player Player, publisher Publisher, navigator navigation.Navigator, opts ...Option) *Session {
	s := &Session{
		player:    player,
		publisher: publisher,
		navigator: navigator,
		clock:     clock.New(),
		exec:      func(f func()) { f() },
		logger:    slog.Default(),
		cfg:       DefaultConfig(),
		ctx:       context.Background(),
		mode:      domain.ModeFollowing,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.resolver = navigation.NewResolver(player, navigator, s.cfg.SettleDelay, s.logger)
	s.throttler = throttle.New(s.clock, s.cfg.MinBroadcastGap)

	return s
}

// Join starts reconciling against the room. The retained room state is the
// only point at which a same-content, different-source mismatch raises a
// source confirmation.
func (s *Session) Join(ctx context.Context, params JoinParams) error {
	if s.closed {
		return ErrClosed
	}

	s.ctx = ctx
	s.joined = true
	s.memberID = params.MemberID
	s.role = params.Role
	s.local = params.Local
	s.endApplying()
	s.cancelSettle()
	s.stopHeartbeat()
	s.throttler.Reset()
	s.mode = domain.ModeFollowing
	s.pending = nil
	if params.State != nil {
		s.lastKnown = params.State.Clone()
	}

	s.logger.InfoContext(ctx, "joined room",
		"member_id", s.memberID,
		"role", s.role.String(),
		"has_state", params.State != nil,
	)

	if s.role == domain.RoleOwner {
		s.broadcastState(ctx)
		s.startHeartbeat()
	} else if s.lastKnown != nil {
		s.reconcileJoin(ctx, *s.lastKnown)
	}

	s.emit()
	return nil
}

// Reconnected handles a fresh join message after a transport reconnect. Mode
// and pending target survive; the state is applied like an ordinary update.
func (s *Session) Reconnected(ctx context.Context, role domain.Role, state *domain.Descriptor) error {
	if err := s.check(); err != nil {
		return err
	}

	s.ctx = ctx
	s.SetRole(ctx, role)
	switch {
	case role == domain.RoleOwner:
		s.broadcastState(ctx)
	case state != nil:
		s.handleUpdate(ctx, *state)
	}

	s.logger.InfoContext(ctx, "reconnected", "role", role.String(), "mode", s.mode.String())
	return nil
}

func (s *Session) SetRole(ctx context.Context, role domain.Role) {
	if s.closed || role == s.role {
		return
	}

	s.logger.InfoContext(ctx, "role changed", "from", s.role.String(), "to", role.String())
	s.role = role
	if role == domain.RoleOwner {
		s.startHeartbeat()
	} else {
		s.stopHeartbeat()
	}

	s.emit()
}

// SetLocal reports the descriptor the local player context now shows.
func (s *Session) SetLocal(ctx context.Context, d domain.Descriptor, initiative Initiative) error {
	if err := s.check(); err != nil {
		return err
	}

	prev := s.local
	s.local = d

	contentChanged := prev.ContentID != d.ContentID || prev.Source != d.Source
	if !contentChanged && prev.EpisodeIndex == d.EpisodeIndex {
		return nil
	}

	switch initiative {
	case InitiatedByUser:
		s.cancelSettle()
		if s.role == domain.RoleOwner {
			// A paused Owner takes its authority back on new content.
			if contentChanged && s.mode != domain.ModeFollowing {
				s.enterMode(ctx, domain.ModeFollowing, nil)
			}
			if s.mode == domain.ModeFollowing {
				s.throttler.Reset()
				d := s.current()
				s.adoptOwnState(d)
				if err := s.publisher.ChangeVideo(ctx, d); err != nil {
					s.publishFailed(ctx, domain.EventChange, err)
				}
			}
			return nil
		}

		s.logger.InfoContext(ctx, "local switch detaches from sync",
			"content_id", d.ContentID,
			"source", d.Source,
			"episode_index", d.EpisodeIndex,
		)
		s.enterMode(ctx, domain.ModeDiverged, nil)
	case InitiatedBySync:
		if !contentChanged {
			return nil
		}

		s.enterMode(ctx, domain.ModeFollowing, nil)
		if s.role == domain.RoleMember && s.lastKnown != nil {
			s.reconcileJoin(ctx, *s.lastKnown)
		}
	default:
		return fmt.Errorf("unknown initiative %d", initiative)
	}

	return nil
}

// PublishState pushes the local snapshot outward, subject to the throttler.
func (s *Session) PublishState(ctx context.Context) error {
	if err := s.check(); err != nil {
		return err
	}

	s.broadcastState(ctx)
	return nil
}

// Leave tears down every timer and detaches listeners. A left session
// ignores all further calls.
func (s *Session) Leave(ctx context.Context) {
	if s.closed {
		return
	}

	s.endApplying()
	s.cancelSettle()
	s.stopHeartbeat()
	s.closed = true
	s.pending = nil

	s.logger.InfoContext(ctx, "left room", "member_id", s.memberID)
	s.emit()

	s.onState = nil
	s.onNotice = nil
}

func (s *Session) State() State {
	st := State{
		Role:                s.role,
		Mode:                s.mode,
		LastKnownOwnerState: cloneOrNil(s.lastKnown),
		Suppressing:         s.applying != nil && s.clock.Now().Before(s.applying.until),
		Closed:              s.closed,
	}

	switch s.mode {
	case domain.ModePendingSourceConfirm:
		st.PendingSourceConfirm = cloneOrNil(s.pending)
	case domain.ModePendingChangeConfirm:
		st.PendingChangeConfirm = cloneOrNil(s.pending)
	}

	return st
}

func (s *Session) Mode() domain.Mode {
	return s.mode
}

func (s *Session) Role() domain.Role {
	return s.role
}

func (s *Session) PendingSourceConfirm() *domain.Descriptor {
	return s.State().PendingSourceConfirm
}

func (s *Session) PendingChangeConfirm() *domain.Descriptor {
	return s.State().PendingChangeConfirm
}

func (s *Session) LastKnownOwnerState() *domain.Descriptor {
	return cloneOrNil(s.lastKnown)
}

// Local returns the local descriptor with the player's live position.
func (s *Session) Local() domain.Descriptor {
	return s.current()
}

func (s *Session) check() error {
	if s.closed {
		return ErrClosed
	}
	if !s.joined {
		return ErrNotJoined
	}
	return nil
}

func (s *Session) current() domain.Descriptor {
	d := s.local
	if s.player.Ready() {
		d = d.WithPlayback(s.player.CurrentTime(), s.player.Playing())
	}
	return d
}

func (s *Session) emit() {
	if s.onState != nil {
		s.onState(s.State())
	}
}

// schedule runs fn after d on the serialized path unless the session has
// been left by then.
func (s *Session) schedule(d time.Duration, fn func()) clock.Timer {
	return s.clock.AfterFunc(d, func() {
		s.exec(func() {
			if s.closed {
				return
			}
			fn()
		})
	})
}

// adoptOwnState records d as the room state when this participant is the
// Owner. Nobody sends the Owner its own descriptor back.
func (s *Session) adoptOwnState(d domain.Descriptor) {
	if s.role != domain.RoleOwner {
		return
	}
	s.lastKnown = d.Clone()
}

func cloneOrNil(d *domain.Descriptor) *domain.Descriptor {
	if d == nil {
		return nil
	}
	return d.Clone()
}
