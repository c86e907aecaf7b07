package room

import (
	"context"
	"errors"
	"fmt"

	"github.com/sharetube/watchsync/internal/domain"
	"github.com/sharetube/watchsync/internal/repository/room"
)

type PublishParams struct {
	SenderID string
	RoomID   string
	Event    domain.Event
}

// Publish applies a playback event to the retained room state. update and
// change are accepted from the owner only.
func (s service) Publish(ctx context.Context, params *PublishParams) error {
	inList, err := s.roomRepo.IsMemberInList(ctx, params.RoomID, params.SenderID)
	if err != nil {
		return fmt.Errorf("failed to check member list: %w", err)
	}
	if !inList {
		return ErrNotInRoom
	}

	ev := params.Event
	switch ev.Type {
	case domain.EventUpdate, domain.EventChange:
		if ev.Descriptor == nil {
			return fmt.Errorf("%s without descriptor: %w", ev.Type, domain.ErrInvalidEvent)
		}
		if err := s.checkIfOwner(ctx, params.RoomID, params.SenderID); err != nil {
			return err
		}

		if err := s.roomRepo.SetState(ctx, &room.SetStateParams{
			RoomID: params.RoomID,
			State:  stateFromDescriptor(*ev.Descriptor, s.now()),
		}); err != nil {
			return fmt.Errorf("failed to set state: %w", err)
		}
	case domain.EventPlay, domain.EventPause:
		isPlaying := ev.Type == domain.EventPlay
		return s.patchPlayback(ctx, &room.UpdatePlaybackParams{
			RoomID:    params.RoomID,
			IsPlaying: &isPlaying,
		})
	case domain.EventSeek:
		currentTime := ev.Time
		return s.patchPlayback(ctx, &room.UpdatePlaybackParams{
			RoomID:      params.RoomID,
			CurrentTime: &currentTime,
		})
	default:
		return fmt.Errorf("unknown event type %q: %w", ev.Type, domain.ErrInvalidEvent)
	}

	return nil
}

// patchPlayback updates a retained state if there is one. Before the owner
// has published anything there is nothing to patch, and the event is only
// relayed.
func (s service) patchPlayback(ctx context.Context, params *room.UpdatePlaybackParams) error {
	// a playing room's stored position is stale; freeze it at now
	if params.CurrentTime == nil {
		if st, err := s.roomRepo.GetState(ctx, params.RoomID); err == nil && st.IsPlaying {
			current := descriptorFromState(st, s.now()).CurrentTime
			params.CurrentTime = &current
		}
	}
	params.UpdatedAt = s.now().UnixMilli()

	err := s.roomRepo.UpdatePlayback(ctx, params)
	if errors.Is(err, room.ErrStateNotFound) {
		s.logger.DebugContext(ctx, "no state to patch", "room_id", params.RoomID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to update playback: %w", err)
	}

	return nil
}

func (s service) checkIfOwner(ctx context.Context, roomID, memberID string) error {
	ownerID, err := s.roomRepo.GetOwner(ctx, roomID)
	if errors.Is(err, room.ErrOwnerNotFound) {
		return ErrPermissionDenied
	}
	if err != nil {
		return fmt.Errorf("failed to get owner: %w", err)
	}

	if ownerID != memberID {
		return ErrPermissionDenied
	}

	return nil
}

func (s service) getState(ctx context.Context, roomID string) (*domain.Descriptor, error) {
	st, err := s.roomRepo.GetState(ctx, roomID)
	if errors.Is(err, room.ErrStateNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get state: %w", err)
	}

	d := descriptorFromState(st, s.now())
	return &d, nil
}

// GetState returns the room's retained state projected to now, or nil.
func (s service) GetState(ctx context.Context, roomID string) (*domain.Descriptor, error) {
	return s.getState(ctx, roomID)
}
