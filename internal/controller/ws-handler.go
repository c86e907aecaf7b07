package controller

import (
	"context"
	"errors"

	"github.com/sharetube/watchsync/internal/domain"
	"github.com/sharetube/watchsync/internal/protocol"
	"github.com/sharetube/watchsync/internal/service/room"
	"github.com/sharetube/watchsync/internal/transport/redisbus"
	"github.com/sharetube/watchsync/pkg/validator"
	"github.com/sharetube/watchsync/pkg/wsrouter"
)

func (c controller) newWSMux() *wsrouter.WSRouter {
	mux := wsrouter.New(c.handleError)
	mux.Use(c.wsRequestIDMw(), c.loggerWSMw())

	wsrouter.Handle(mux, string(protocol.TypeUpdate), c.handleDescriptor(domain.EventUpdate))
	wsrouter.Handle(mux, string(protocol.TypeChange), c.handleDescriptor(domain.EventChange))
	wsrouter.Handle(mux, string(protocol.TypeSeek), c.handleSeek)
	wsrouter.Handle(mux, string(protocol.TypePlay), c.handlePlayState(domain.EventPlay))
	wsrouter.Handle(mux, string(protocol.TypePause), c.handlePlayState(domain.EventPause))

	return mux
}

func (c controller) handleDescriptor(t domain.EventType) wsrouter.HandlerFunc[domain.Descriptor] {
	return func(ctx context.Context, _ wsrouter.Conn, payload domain.Descriptor) error {
		if err := c.validate.Struct(payload); err != nil {
			return err
		}

		return c.publish(ctx, domain.Event{Type: t, Descriptor: &payload})
	}
}

func (c controller) handleSeek(ctx context.Context, _ wsrouter.Conn, payload protocol.SeekPayload) error {
	if err := c.validate.Struct(payload); err != nil {
		return err
	}

	return c.publish(ctx, domain.Event{Type: domain.EventSeek, Time: payload.Time})
}

func (c controller) handlePlayState(t domain.EventType) wsrouter.HandlerFunc[struct{}] {
	return func(ctx context.Context, _ wsrouter.Conn, _ struct{}) error {
		return c.publish(ctx, domain.Event{Type: t})
	}
}

// publish records ev against the room and relays it, stamped with the
// sender, to every other member.
func (c controller) publish(ctx context.Context, ev domain.Event) error {
	member, err := memberFromCtx(ctx)
	if err != nil {
		return err
	}
	ev.SenderID = member.MemberID

	if err := c.roomService.Publish(ctx, &room.PublishParams{
		SenderID: member.MemberID,
		RoomID:   member.RoomID,
		Event:    ev,
	}); err != nil {
		return err
	}

	msg, err := protocol.FromEvent(ev)
	if err != nil {
		return err
	}

	return c.broadcast(ctx, member.RoomID, member.MemberID, msg)
}

func (c controller) broadcast(ctx context.Context, roomID, exclude string, msg protocol.Message) error {
	env := redisbus.Envelope{
		RoomID:  roomID,
		Exclude: exclude,
		Message: msg,
	}

	if c.bus == nil {
		c.Deliver(ctx, env)
		return nil
	}

	return c.bus.Publish(ctx, env)
}

// Deliver writes env to the room members connected to this instance.
func (c controller) Deliver(ctx context.Context, env redisbus.Envelope) {
	conns, err := c.roomService.GetConns(ctx, env.RoomID, env.Exclude)
	if err != nil {
		c.logger.WarnContext(ctx, "failed to get conns", "room_id", env.RoomID, "error", err)
		return
	}

	for _, conn := range conns {
		if err := conn.WriteJSON(env.Message); err != nil {
			c.logger.InfoContext(ctx, "failed to write message", "room_id", env.RoomID, "error", err)
		}
	}
}

func (c controller) handleError(ctx context.Context, conn wsrouter.Conn, err error) {
	payload := protocol.ErrorPayload{Message: err.Error()}

	var validationErrs validator.Errors
	switch {
	case errors.As(err, &validationErrs):
		payload.Message = "invalid payload"
		payload.Errors = validationErrs
	case errors.Is(err, room.ErrPermissionDenied):
		payload.Message = room.ErrPermissionDenied.Error()
	}

	c.logger.InfoContext(ctx, "rejecting message", "error", err)

	msg, buildErr := protocol.NewMessage(protocol.TypeError, "", payload)
	if buildErr != nil {
		c.logger.WarnContext(ctx, "failed to build error message", "error", buildErr)
		return
	}

	if err := conn.WriteJSON(msg); err != nil {
		c.logger.WarnContext(ctx, "failed to write error", "error", err)
	}
}
