// Package redisbus fans room messages out to every relay instance over redis
// pub/sub.
package redisbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/sharetube/watchsync/internal/protocol"
)

const channelPrefix = "watchsync:room:"

// Envelope is a message addressed to every member of a room except Exclude.
type Envelope struct {
	RoomID  string           `json:"room_id"`
	Exclude string           `json:"exclude,omitempty"`
	Message protocol.Message `json:"message"`
}

type Bus struct {
	rc     *redis.Client
	logger *slog.Logger
}

func New(rc *redis.Client, logger *slog.Logger) *Bus {
	return &Bus{
		rc:     rc,
		logger: logger,
	}
}

func channel(roomID string) string {
	return channelPrefix + roomID
}

func (b *Bus) Publish(ctx context.Context, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	if err := b.rc.Publish(ctx, channel(env.RoomID), data).Err(); err != nil {
		return fmt.Errorf("failed to publish: %w", err)
	}

	return nil
}

// Subscription delivers envelopes published by any instance.
type Subscription struct {
	ps     *redis.PubSub
	logger *slog.Logger
}

// Subscribe returns once redis has confirmed the subscription, so nothing
// published afterwards is missed.
func (b *Bus) Subscribe(ctx context.Context) (*Subscription, error) {
	ps := b.rc.PSubscribe(ctx, channelPrefix+"*")
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	return &Subscription{ps: ps, logger: b.logger}, nil
}

// Run calls deliver for every envelope until ctx is done or the
// subscription is closed.
func (s *Subscription) Run(ctx context.Context, deliver func(context.Context, Envelope)) error {
	ch := s.ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}

			var env Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				s.logger.WarnContext(ctx, "dropping malformed envelope", "channel", msg.Channel, "error", err)
				continue
			}
			if env.RoomID == "" {
				env.RoomID = strings.TrimPrefix(msg.Channel, channelPrefix)
			}

			deliver(ctx, env)
		}
	}
}

func (s *Subscription) Close() error {
	return s.ps.Close()
}
