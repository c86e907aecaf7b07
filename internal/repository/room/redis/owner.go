package redis

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/sharetube/watchsync/internal/repository/room"
)

func (r repo) getOwnerKey(roomID string) string {
	return "room:" + roomID + ":owner"
}

// ClaimOwner makes memberID the owner if the room has none and reports
// whether it did.
func (r repo) ClaimOwner(ctx context.Context, roomID, memberID string) (bool, error) {
	r.logger.DebugContext(ctx, "called", "params", map[string]any{
		"room_id":   roomID,
		"member_id": memberID,
	})
	ok, err := r.rc.SetNX(ctx, r.getOwnerKey(roomID), memberID, r.expireDuration).Result()
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return false, err
	}

	return ok, nil
}

func (r repo) SetOwner(ctx context.Context, roomID, memberID string) error {
	r.logger.DebugContext(ctx, "called", "params", map[string]any{
		"room_id":   roomID,
		"member_id": memberID,
	})
	if err := r.rc.Set(ctx, r.getOwnerKey(roomID), memberID, r.expireDuration).Err(); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	return nil
}

func (r repo) GetOwner(ctx context.Context, roomID string) (string, error) {
	r.logger.DebugContext(ctx, "called", "params", map[string]any{
		"room_id": roomID,
	})
	ownerID, err := r.rc.Get(ctx, r.getOwnerKey(roomID)).Result()
	if errors.Is(err, redis.Nil) {
		r.logger.DebugContext(ctx, "returned", "error", room.ErrOwnerNotFound)
		return "", room.ErrOwnerNotFound
	}
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return "", err
	}

	return ownerID, nil
}

// RemoveRoom deletes the room's owner, state and member list.
func (r repo) RemoveRoom(ctx context.Context, roomID string) error {
	r.logger.DebugContext(ctx, "called", "params", map[string]any{
		"room_id": roomID,
	})
	if err := r.rc.Del(ctx,
		r.getOwnerKey(roomID),
		r.getStateKey(roomID),
		r.getMemberListKey(roomID),
	).Err(); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	return nil
}
