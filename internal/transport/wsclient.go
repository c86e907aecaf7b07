package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sharetube/watchsync/internal/protocol"
	"github.com/sharetube/watchsync/pkg/clock"
)

var (
	ErrNotConnected = errors.New("not connected")
	ErrRefused      = errors.New("relay refused to admit")
)

const (
	DefaultReconnectDelay = 2 * time.Second
	writeWait             = 10 * time.Second
)

type WSClientConfig struct {
	// BaseURL is the relay's websocket root, e.g. ws://localhost:8080.
	BaseURL        string
	RoomID         string
	ReconnectDelay time.Duration
}

// WSClient keeps one websocket connection to a relay room open, dialing
// again after the connection drops. The auth token from the latest joined
// message is presented on every redial so the relay resumes the same member.
type WSClient struct {
	cfg       WSClientConfig
	dialer    *websocket.Dialer
	clock     clock.Clock
	logger    *slog.Logger
	codec     *protocol.Codec
	onMessage func(protocol.Message)

	mu        sync.Mutex
	conn      *websocket.Conn
	authToken string
}

func NewWSClient(cfg WSClientConfig, c clock.Clock, logger *slog.Logger, onMessage func(protocol.Message)) *WSClient {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}

	return &WSClient{
		cfg:       cfg,
		dialer:    websocket.DefaultDialer,
		clock:     c,
		logger:    logger,
		codec:     protocol.NewCodec(nil),
		onMessage: onMessage,
	}
}

func (c *WSClient) roomURL() (string, error) {
	u, err := url.Parse(c.cfg.BaseURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse relay url: %w", err)
	}
	u = u.JoinPath("api", "v1", "ws", "room", c.cfg.RoomID)

	c.mu.Lock()
	if c.authToken != "" {
		q := u.Query()
		q.Set("auth-token", c.authToken)
		u.RawQuery = q.Encode()
	}
	c.mu.Unlock()

	return u.String(), nil
}

// AuthToken returns the last reconnect token the relay issued.
func (c *WSClient) AuthToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.authToken
}

func (c *WSClient) SetAuthToken(token string) {
	c.mu.Lock()
	c.authToken = token
	c.mu.Unlock()
}

// Run dials the relay and reads messages until ctx is done.
func (c *WSClient) Run(ctx context.Context) error {
	for {
		err := c.serve(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if errors.Is(err, ErrRefused) {
			return err
		}

		c.logger.InfoContext(ctx, "connection lost, reconnecting", "error", err, "delay", c.cfg.ReconnectDelay)
		wait := make(chan struct{})
		timer := c.clock.AfterFunc(c.cfg.ReconnectDelay, func() { close(wait) })
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-wait:
		}
	}
}

func (c *WSClient) serve(ctx context.Context) error {
	target, err := c.roomURL()
	if err != nil {
		return err
	}

	conn, resp, err := c.dialer.DialContext(ctx, target, nil)
	if err != nil {
		if resp != nil {
			switch resp.StatusCode {
			case http.StatusUnauthorized:
				// the token is no longer honoured; join as a new member
				c.SetAuthToken("")
			case http.StatusForbidden:
				return fmt.Errorf("%w: %s", ErrRefused, resp.Status)
			}
		}
		return fmt.Errorf("failed to dial relay: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		conn.Close()
	}()

	stop := context.AfterFunc(ctx, func() {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		conn.Close()
	})
	defer stop()

	c.logger.InfoContext(ctx, "connected to relay", "room_id", c.cfg.RoomID)
	for {
		var msg protocol.Message
		if err := conn.ReadJSON(&msg); err != nil {
			return err
		}

		if msg.Type == protocol.TypeJoined {
			if joined, err := c.codec.Joined(msg); err == nil {
				c.SetAuthToken(joined.AuthToken)
			}
		}

		c.onMessage(msg)
	}
}

// Send writes msg to the current connection.
func (c *WSClient) Send(ctx context.Context, msg protocol.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return ErrNotConnected
	}

	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}

	return c.conn.WriteJSON(msg)
}
