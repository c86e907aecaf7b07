package redis

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/sharetube/watchsync/internal/repository/room"
)

func (r repo) getMemberKey(memberID string) string {
	return "member:" + memberID
}

func (r repo) getMemberListKey(roomID string) string {
	return "room:" + roomID + ":memberlist"
}

// AddMember records the member and appends it to the room's member list.
func (r repo) AddMember(ctx context.Context, params *room.AddMemberParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	pipe := r.rc.TxPipeline()

	memberKey := r.getMemberKey(params.MemberID)
	r.hSetStruct(ctx, pipe, memberKey, room.Member{
		RoomID:   params.RoomID,
		JoinedAt: params.JoinedAt,
	})
	pipe.Expire(ctx, memberKey, r.expireDuration)

	memberListKey := r.getMemberListKey(params.RoomID)
	r.addWithIncrement(ctx, pipe, memberListKey, params.MemberID)
	pipe.Expire(ctx, memberListKey, r.expireDuration)

	if err := r.executePipe(ctx, pipe); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	return nil
}

// RemoveMemberFromList takes the member out of the room's list. The member
// record stays until it expires so a reconnect token still resolves.
func (r repo) RemoveMemberFromList(ctx context.Context, params *room.RemoveMemberFromListParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	if err := r.rc.ZRem(ctx, r.getMemberListKey(params.RoomID), params.MemberID).Err(); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	return nil
}

func (r repo) GetMember(ctx context.Context, memberID string) (room.Member, error) {
	r.logger.DebugContext(ctx, "called", "params", map[string]any{
		"member_id": memberID,
	})
	var member room.Member
	if err := r.rc.HGetAll(ctx, r.getMemberKey(memberID)).Scan(&member); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return room.Member{}, err
	}

	if member.RoomID == "" {
		r.logger.DebugContext(ctx, "returned", "error", room.ErrMemberNotFound)
		return room.Member{}, room.ErrMemberNotFound
	}

	return member, nil
}

// GetMemberIDs returns the room's members in join order.
func (r repo) GetMemberIDs(ctx context.Context, roomID string) ([]string, error) {
	r.logger.DebugContext(ctx, "called", "params", map[string]any{
		"room_id": roomID,
	})
	memberIDs, err := r.rc.ZRange(ctx, r.getMemberListKey(roomID), 0, -1).Result()
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return nil, err
	}

	return memberIDs, nil
}

func (r repo) IsMemberInList(ctx context.Context, roomID, memberID string) (bool, error) {
	r.logger.DebugContext(ctx, "called", "params", map[string]any{
		"room_id":   roomID,
		"member_id": memberID,
	})
	_, err := r.rc.ZScore(ctx, r.getMemberListKey(roomID), memberID).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return false, err
	}

	return true, nil
}
