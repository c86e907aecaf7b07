package redis

import (
	"context"

	"github.com/sharetube/watchsync/internal/repository/room"
	omitnilpointers "github.com/sharetube/watchsync/pkg/omit-nil-pointers"
)

func (r repo) getStateKey(roomID string) string {
	return "room:" + roomID + ":state"
}

// SetState replaces the retained state. Fields absent from the new state do
// not survive from the old one.
func (r repo) SetState(ctx context.Context, params *room.SetStateParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	pipe := r.rc.TxPipeline()

	stateKey := r.getStateKey(params.RoomID)
	pipe.Del(ctx, stateKey)
	r.hSetStruct(ctx, pipe, stateKey, params.State)
	pipe.Expire(ctx, stateKey, r.expireDuration)

	if err := r.executePipe(ctx, pipe); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	return nil
}

func (r repo) GetState(ctx context.Context, roomID string) (room.State, error) {
	r.logger.DebugContext(ctx, "called", "params", map[string]any{
		"room_id": roomID,
	})
	stateKey := r.getStateKey(roomID)
	cmd := r.rc.HGetAll(ctx, stateKey)
	if err := cmd.Err(); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return room.State{}, err
	}

	if len(cmd.Val()) == 0 {
		r.logger.DebugContext(ctx, "returned", "error", room.ErrStateNotFound)
		return room.State{}, room.ErrStateNotFound
	}

	var state room.State
	if err := cmd.Scan(&state); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return room.State{}, err
	}

	r.rc.Expire(ctx, stateKey, r.expireDuration)

	return state, nil
}

func (r repo) UpdatePlayback(ctx context.Context, params *room.UpdatePlaybackParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	stateKey := r.getStateKey(params.RoomID)
	cmd := r.rc.Exists(ctx, stateKey)
	if err := cmd.Err(); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	if cmd.Val() == 0 {
		r.logger.DebugContext(ctx, "returned", "error", room.ErrStateNotFound)
		return room.ErrStateNotFound
	}

	fields := omitnilpointers.OmitNilPointers(map[string]any{
		"current_time": params.CurrentTime,
		"is_playing":   params.IsPlaying,
		"updated_at":   params.UpdatedAt,
	})

	pipe := r.rc.TxPipeline()
	pipe.HSet(ctx, stateKey, fields)
	pipe.Expire(ctx, stateKey, r.expireDuration)

	if err := r.executePipe(ctx, pipe); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	return nil
}
