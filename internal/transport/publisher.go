// Package transport carries session traffic to and from a relay.
package transport

import (
	"context"

	"github.com/sharetube/watchsync/internal/domain"
	"github.com/sharetube/watchsync/internal/protocol"
)

type Sender interface {
	Send(ctx context.Context, msg protocol.Message) error
}

// Publisher turns session broadcasts into wire messages.
type Publisher struct {
	sender Sender
}

func NewPublisher(sender Sender) *Publisher {
	return &Publisher{sender: sender}
}

func (p *Publisher) UpdatePlayState(ctx context.Context, d domain.Descriptor) error {
	return p.publish(ctx, domain.Event{Type: domain.EventUpdate, Descriptor: &d})
}

func (p *Publisher) Play(ctx context.Context) error {
	return p.publish(ctx, domain.Event{Type: domain.EventPlay})
}

func (p *Publisher) Pause(ctx context.Context) error {
	return p.publish(ctx, domain.Event{Type: domain.EventPause})
}

func (p *Publisher) SeekPlayback(ctx context.Context, t float64) error {
	return p.publish(ctx, domain.Event{Type: domain.EventSeek, Time: t})
}

func (p *Publisher) ChangeVideo(ctx context.Context, d domain.Descriptor) error {
	return p.publish(ctx, domain.Event{Type: domain.EventChange, Descriptor: &d})
}

func (p *Publisher) publish(ctx context.Context, ev domain.Event) error {
	msg, err := protocol.FromEvent(ev)
	if err != nil {
		return err
	}

	return p.sender.Send(ctx, msg)
}
