package controller

import (
	"context"

	"github.com/sharetube/watchsync/internal/service/room"
)

type memberCtxKey struct{}

// memberBinding is the room membership a websocket connection was admitted
// with. Handlers act on behalf of it.
type memberBinding struct {
	RoomID   string
	MemberID string
}

func withMember(ctx context.Context, roomID, memberID string) context.Context {
	return context.WithValue(ctx, memberCtxKey{}, memberBinding{RoomID: roomID, MemberID: memberID})
}

func memberFromCtx(ctx context.Context) (memberBinding, error) {
	b, ok := ctx.Value(memberCtxKey{}).(memberBinding)
	if !ok || b.RoomID == "" || b.MemberID == "" {
		return memberBinding{}, room.ErrNotInRoom
	}

	return b, nil
}
