package room

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/sharetube/watchsync/internal/domain"
	"github.com/sharetube/watchsync/internal/repository/connection"
	"github.com/sharetube/watchsync/internal/repository/room"
)

// closeReplaced is sent to a connection superseded by a reconnect.
const closeReplaced = 4000

type JoinRoomParams struct {
	RoomID    string
	AuthToken string
}

type JoinRoomResponse struct {
	MemberID    string
	Role        domain.Role
	AuthToken   string
	State       *domain.Descriptor
	Reconnected bool
}

// JoinRoom admits a new member, or resumes the member an auth token was
// issued to. The first member of a room becomes its owner.
func (s service) JoinRoom(ctx context.Context, params *JoinRoomParams) (JoinRoomResponse, error) {
	var memberID string
	var reconnected bool

	if params.AuthToken != "" {
		claims, err := s.parseJWT(params.AuthToken)
		if err != nil {
			s.logger.InfoContext(ctx, "failed to parse auth token", "error", err)
			return JoinRoomResponse{}, err
		}

		if claims.RoomID != params.RoomID {
			return JoinRoomResponse{}, fmt.Errorf("%w: issued for another room", ErrInvalidAuthToken)
		}

		if _, err := s.roomRepo.GetMember(ctx, claims.MemberID); err != nil {
			if errors.Is(err, room.ErrMemberNotFound) {
				return JoinRoomResponse{}, fmt.Errorf("%w: member expired", ErrInvalidAuthToken)
			}
			return JoinRoomResponse{}, fmt.Errorf("failed to get member: %w", err)
		}

		memberID = claims.MemberID
		reconnected = true

		inList, err := s.roomRepo.IsMemberInList(ctx, params.RoomID, memberID)
		if err != nil {
			return JoinRoomResponse{}, fmt.Errorf("failed to check member list: %w", err)
		}
		if !inList {
			if err := s.addMember(ctx, params.RoomID, memberID); err != nil {
				return JoinRoomResponse{}, err
			}
		}
	} else {
		memberIDs, err := s.roomRepo.GetMemberIDs(ctx, params.RoomID)
		if err != nil {
			return JoinRoomResponse{}, fmt.Errorf("failed to get member ids: %w", err)
		}

		if s.membersLimit > 0 && len(memberIDs) >= s.membersLimit {
			return JoinRoomResponse{}, ErrRoomFull
		}

		memberID = uuid.NewString()
		if err := s.addMember(ctx, params.RoomID, memberID); err != nil {
			return JoinRoomResponse{}, err
		}
	}

	role, err := s.resolveRole(ctx, params.RoomID, memberID)
	if err != nil {
		return JoinRoomResponse{}, err
	}

	state, err := s.getState(ctx, params.RoomID)
	if err != nil {
		return JoinRoomResponse{}, err
	}

	authToken, err := s.generateJWT(memberID, params.RoomID)
	if err != nil {
		return JoinRoomResponse{}, fmt.Errorf("failed to generate auth token: %w", err)
	}

	s.logger.InfoContext(ctx, "member joined",
		"room_id", params.RoomID,
		"member_id", memberID,
		"role", role.String(),
		"reconnected", reconnected,
	)

	return JoinRoomResponse{
		MemberID:    memberID,
		Role:        role,
		AuthToken:   authToken,
		State:       state,
		Reconnected: reconnected,
	}, nil
}

func (s service) addMember(ctx context.Context, roomID, memberID string) error {
	if err := s.roomRepo.AddMember(ctx, &room.AddMemberParams{
		MemberID: memberID,
		RoomID:   roomID,
		JoinedAt: s.now().UnixMilli(),
	}); err != nil {
		return fmt.Errorf("failed to add member: %w", err)
	}

	return nil
}

func (s service) resolveRole(ctx context.Context, roomID, memberID string) (domain.Role, error) {
	claimed, err := s.roomRepo.ClaimOwner(ctx, roomID, memberID)
	if err != nil {
		return domain.RoleMember, fmt.Errorf("failed to claim owner: %w", err)
	}
	if claimed {
		return domain.RoleOwner, nil
	}

	ownerID, err := s.roomRepo.GetOwner(ctx, roomID)
	if err != nil && !errors.Is(err, room.ErrOwnerNotFound) {
		return domain.RoleMember, fmt.Errorf("failed to get owner: %w", err)
	}
	if ownerID == memberID {
		return domain.RoleOwner, nil
	}

	return domain.RoleMember, nil
}

type ConnectMemberParams struct {
	Conn     *connection.Conn
	MemberID string
}

// ConnectMember registers the member's connection. A connection the member
// still holds from before a reconnect is closed and replaced.
func (s service) ConnectMember(ctx context.Context, params *ConnectMemberParams) error {
	err := s.connRepo.Add(params.Conn, params.MemberID)
	if !errors.Is(err, connection.ErrAlreadyExists) {
		return err
	}

	s.logger.InfoContext(ctx, "replacing member connection", "member_id", params.MemberID)
	if err := s.connRepo.RemoveByMemberID(params.MemberID, closeReplaced, "replaced"); err != nil && !errors.Is(err, connection.ErrNotFound) {
		return fmt.Errorf("failed to remove old connection: %w", err)
	}

	return s.connRepo.Add(params.Conn, params.MemberID)
}

type DisconnectMemberParams struct {
	Conn   *connection.Conn
	RoomID string
}

type DisconnectMemberResponse struct {
	MemberID         string
	PromotedMemberID string
	IsRoomDeleted    bool
	// Stale is set when the connection had already been replaced; the member
	// is still in the room.
	Stale bool
}

// DisconnectMember removes the member behind conn from the room. If it was
// the owner, the earliest remaining member is promoted.
func (s service) DisconnectMember(ctx context.Context, params *DisconnectMemberParams) (DisconnectMemberResponse, error) {
	memberID, err := s.connRepo.RemoveByConn(params.Conn)
	if errors.Is(err, connection.ErrNotFound) {
		return DisconnectMemberResponse{Stale: true}, nil
	}
	if err != nil {
		return DisconnectMemberResponse{}, fmt.Errorf("failed to remove conn: %w", err)
	}

	if err := s.roomRepo.RemoveMemberFromList(ctx, &room.RemoveMemberFromListParams{
		MemberID: memberID,
		RoomID:   params.RoomID,
	}); err != nil {
		s.logger.InfoContext(ctx, "failed to remove member from list", "error", err)
		return DisconnectMemberResponse{}, err
	}

	resp := DisconnectMemberResponse{MemberID: memberID}

	memberIDs, err := s.roomRepo.GetMemberIDs(ctx, params.RoomID)
	if err != nil {
		return resp, fmt.Errorf("failed to get member ids: %w", err)
	}

	if len(memberIDs) == 0 {
		if err := s.roomRepo.RemoveRoom(ctx, params.RoomID); err != nil {
			return resp, fmt.Errorf("failed to remove room: %w", err)
		}
		resp.IsRoomDeleted = true
		s.logger.InfoContext(ctx, "room deleted", "room_id", params.RoomID)
		return resp, nil
	}

	ownerID, err := s.roomRepo.GetOwner(ctx, params.RoomID)
	if err != nil && !errors.Is(err, room.ErrOwnerNotFound) {
		return resp, fmt.Errorf("failed to get owner: %w", err)
	}

	if ownerID == "" || ownerID == memberID {
		if err := s.roomRepo.SetOwner(ctx, params.RoomID, memberIDs[0]); err != nil {
			return resp, fmt.Errorf("failed to promote member: %w", err)
		}
		resp.PromotedMemberID = memberIDs[0]
		s.logger.InfoContext(ctx, "member promoted", "room_id", params.RoomID, "member_id", memberIDs[0])
	}

	return resp, nil
}

// GetConns returns the connections this process holds for the room's
// members, except exclude.
func (s service) GetConns(ctx context.Context, roomID, exclude string) ([]*connection.Conn, error) {
	memberIDs, err := s.roomRepo.GetMemberIDs(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to get member ids: %w", err)
	}

	conns := make([]*connection.Conn, 0, len(memberIDs))
	for _, memberID := range memberIDs {
		if memberID == exclude {
			continue
		}

		conn, err := s.connRepo.GetConn(memberID)
		if errors.Is(err, connection.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get conn: %w", err)
		}

		conns = append(conns, conn)
	}

	return conns, nil
}
