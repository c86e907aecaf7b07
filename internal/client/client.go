// Package client runs one participant: a simulated player kept in sync with
// a relay room.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sharetube/watchsync/internal/domain"
	"github.com/sharetube/watchsync/internal/player/sim"
	"github.com/sharetube/watchsync/internal/protocol"
	"github.com/sharetube/watchsync/internal/session"
	"github.com/sharetube/watchsync/internal/transport"
	"github.com/sharetube/watchsync/pkg/clock"
)

var (
	ErrQuit           = errors.New("quit")
	ErrUnknownCommand = errors.New("unknown command")
)

type Config struct {
	RelayURL       string
	RoomID         string
	Local          domain.Descriptor
	Duration       float64
	LoadDelay      time.Duration
	ReconnectDelay time.Duration
}

type Client struct {
	cfg    Config
	logger *slog.Logger
	codec  *protocol.Codec

	runner    *session.Runner
	player    *sim.Player
	navigator *sim.Navigator
	ws        *transport.WSClient
	session   *session.Session

	outMu sync.Mutex
	out   io.Writer

	// owned by the runner goroutine
	ctx      context.Context
	memberID string
	joined   bool
}

func New(cfg Config, c clock.Clock, out io.Writer, logger *slog.Logger) *Client {
	if cfg.LoadDelay <= 0 {
		cfg.LoadDelay = sim.DefaultLoadDelay
	}

	cl := &Client{
		cfg:    cfg,
		logger: logger,
		codec:  protocol.NewCodec(nil),
		runner: session.NewRunner(logger),
		out:    out,
		ctx:    context.Background(),
	}

	cl.player = sim.New(c,
		sim.WithEpisodes(cfg.Local.TotalEpisodes),
		sim.WithDuration(cfg.Duration),
		sim.WithEventHandler(cl.onPlayerEvent),
	)
	cl.player.Load(cfg.Local.EpisodeIndex, cfg.Local.CurrentTime)
	cl.navigator = sim.NewNavigator(cl.player, c, cfg.LoadDelay, logger, cl.onLoaded)

	cl.ws = transport.NewWSClient(transport.WSClientConfig{
		BaseURL:        cfg.RelayURL,
		RoomID:         cfg.RoomID,
		ReconnectDelay: cfg.ReconnectDelay,
	}, c, logger, cl.onMessage)

	cl.session = session.New(cl.player, transport.NewPublisher(cl.ws), cl.navigator,
		session.WithClock(c),
		session.WithLogger(logger),
		session.WithExecutor(cl.runner.Executor()),
		session.WithStateListener(cl.onState),
		session.WithNoticeListener(cl.onNotice),
	)

	return cl
}

// Run connects to the relay and serves the session until ctx is done.
func (c *Client) Run(ctx context.Context) error {
	c.runner.Go(func() { c.ctx = ctx })

	// the runner outlives ctx so the session can still be left
	runCtx, stopRunner := context.WithCancel(context.WithoutCancel(ctx))
	defer stopRunner()

	runnerDone := make(chan error, 1)
	go func() { runnerDone <- c.runner.Run(runCtx) }()

	err := c.ws.Run(ctx)

	_ = c.runner.Do(runCtx, func() { c.session.Leave(ctx) })
	stopRunner()
	<-runnerDone

	if errors.Is(err, context.Canceled) {
		return nil
	}

	return err
}

func (c *Client) printf(format string, args ...any) {
	c.outMu.Lock()
	defer c.outMu.Unlock()

	fmt.Fprintf(c.out, format+"\n", args...)
}

func (c *Client) onPlayerEvent(ev domain.LocalEvent) {
	c.runner.Go(func() { c.session.HandleLocal(c.ctx, ev) })
}

func (c *Client) onLoaded(d domain.Descriptor) {
	c.runner.Go(func() {
		if err := c.session.SetLocal(c.ctx, d, session.InitiatedBySync); err != nil {
			c.logger.WarnContext(c.ctx, "failed to report loaded content", "error", err)
		}
	})
}

func (c *Client) onMessage(msg protocol.Message) {
	c.runner.Go(func() { c.handleMessage(c.ctx, msg) })
}

func (c *Client) handleMessage(ctx context.Context, msg protocol.Message) {
	switch {
	case msg.Type == protocol.TypeJoined:
		p, err := c.codec.Joined(msg)
		if err != nil {
			c.logger.WarnContext(ctx, "bad joined message", "error", err)
			return
		}
		role, err := domain.ParseRole(p.Role)
		if err != nil {
			c.logger.WarnContext(ctx, "bad joined message", "error", err)
			return
		}

		c.memberID = p.MemberID
		if !c.joined {
			c.joined = true
			err = c.session.Join(ctx, session.JoinParams{
				MemberID: p.MemberID,
				Role:     role,
				Local:    c.initialLocal(),
				State:    p.State,
			})
		} else {
			err = c.session.Reconnected(ctx, role, p.State)
		}
		if err != nil {
			c.logger.WarnContext(ctx, "failed to apply joined message", "error", err)
		}
		c.printf("joined room %s as %s (%s)", c.cfg.RoomID, role, p.MemberID)
	case msg.Type == protocol.TypeRoleUpdated:
		p, err := c.codec.RoleUpdated(msg)
		if err != nil {
			c.logger.WarnContext(ctx, "bad role_updated message", "error", err)
			return
		}
		if p.MemberID != c.memberID {
			return
		}
		role, err := domain.ParseRole(p.Role)
		if err != nil {
			c.logger.WarnContext(ctx, "bad role_updated message", "error", err)
			return
		}
		c.session.SetRole(ctx, role)
	case msg.Type == protocol.TypeError:
		p, err := c.codec.Error(msg)
		if err != nil {
			c.logger.WarnContext(ctx, "bad error message", "error", err)
			return
		}
		c.printf("relay: %s", p.Message)
	case msg.Type.IsEvent():
		ev, err := c.codec.Event(msg)
		if err != nil {
			c.logger.WarnContext(ctx, "dropping malformed event", "type", msg.Type, "error", err)
			return
		}
		if err := c.session.HandleRemote(ctx, ev); err != nil {
			c.logger.InfoContext(ctx, "event not applied", "type", ev.Type, "error", err)
		}
	default:
		c.logger.DebugContext(ctx, "ignoring message", "type", msg.Type)
	}
}

func (c *Client) initialLocal() domain.Descriptor {
	d := c.cfg.Local
	d.EpisodeIndex = c.player.Episode()
	return d.WithPlayback(c.player.CurrentTime(), c.player.Playing())
}

func (c *Client) onState(st session.State) {
	switch {
	case st.PendingSourceConfirm != nil:
		d := st.PendingSourceConfirm
		c.printf("room plays %q on %s, episode %d: confirm to switch source, reject to stay", d.Title, d.Source, d.EpisodeIndex)
	case st.PendingChangeConfirm != nil:
		d := st.PendingChangeConfirm
		c.printf("owner switched to %q on %s, episode %d: confirm to follow, reject to stay", d.Title, d.Source, d.EpisodeIndex)
	default:
		c.printf("mode: %s, role: %s", st.Mode, st.Role)
	}
}

func (c *Client) onNotice(n session.Notice) {
	c.printf("notice: %s", n.Error())
}

// State returns a snapshot of the session.
func (c *Client) State(ctx context.Context) (session.State, error) {
	var st session.State
	err := c.runner.Do(ctx, func() { st = c.session.State() })
	return st, err
}

// Local returns the descriptor the simulated player shows.
func (c *Client) Local(ctx context.Context) (domain.Descriptor, error) {
	var d domain.Descriptor
	err := c.runner.Do(ctx, func() { d = c.session.Local() })
	return d, err
}

// Exec runs one interactive command line.
func (c *Client) Exec(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	cmd, args := fields[0], fields[1:]
	var err error
	doErr := c.runner.Do(ctx, func() {
		err = c.exec(ctx, cmd, args)
	})
	if doErr != nil {
		return doErr
	}

	return err
}

func (c *Client) exec(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "play":
		return c.player.Play()
	case "pause":
		return c.player.Pause()
	case "seek":
		t, err := floatArg(args)
		if err != nil {
			return err
		}
		return c.player.Seek(t)
	case "episode":
		n, err := floatArg(args)
		if err != nil {
			return err
		}
		if err := c.player.SwitchEpisode(int(n)); err != nil {
			return err
		}
		d := c.session.Local()
		d.EpisodeIndex = int(n)
		return c.session.SetLocal(ctx, d, session.InitiatedByUser)
	case "confirm":
		return c.session.Confirm(ctx)
	case "reject":
		return c.session.Reject(ctx)
	case "pause-sync":
		return c.session.PauseSync(ctx)
	case "resume":
		return c.session.ResumeSync(ctx)
	case "state":
		data, err := json.MarshalIndent(struct {
			Session session.State     `json:"session"`
			Local   domain.Descriptor `json:"local"`
		}{
			Session: c.session.State(),
			Local:   c.session.Local(),
		}, "", "  ")
		if err != nil {
			return err
		}
		c.printf("%s", data)
		return nil
	case "quit", "exit":
		return ErrQuit
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, cmd)
	}
}

func floatArg(args []string) (float64, error) {
	if len(args) != 1 {
		return 0, errors.New("expected one numeric argument")
	}

	v, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q: %w", args[0], err)
	}

	return v, nil
}
