package controller

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/sharetube/watchsync/internal/protocol"
	"github.com/sharetube/watchsync/internal/repository/connection"
	"github.com/sharetube/watchsync/internal/service/room"
	"github.com/sharetube/watchsync/pkg/ctxlogger"
)

func joinErrorStatus(err error) int {
	switch {
	case errors.Is(err, room.ErrRoomFull):
		return http.StatusForbidden
	case errors.Is(err, room.ErrInvalidAuthToken):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func (c controller) joinRoom(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "room-id")
	if roomID == "" {
		http.Error(w, "empty room id", http.StatusBadRequest)
		return
	}
	ctx := ctxlogger.AppendCtx(r.Context(), slog.String("room_id", roomID))

	joinRoomResponse, err := c.roomService.JoinRoom(ctx, &room.JoinRoomParams{
		RoomID:    roomID,
		AuthToken: r.URL.Query().Get("auth-token"),
	})
	if err != nil {
		c.logger.InfoContext(ctx, "failed to join room", "error", err)
		http.Error(w, err.Error(), joinErrorStatus(err))
		return
	}
	ctx = ctxlogger.AppendCtx(ctx, slog.String("member_id", joinRoomResponse.MemberID))

	ws, upgradeErr := c.upgrader.Upgrade(w, r, nil)
	// registered even when the upgrade failed so the member leaves the list
	// through the ordinary disconnect path
	conn := connection.NewConn(ws)

	if err := c.roomService.ConnectMember(ctx, &room.ConnectMemberParams{
		Conn:     conn,
		MemberID: joinRoomResponse.MemberID,
	}); err != nil {
		c.logger.WarnContext(ctx, "failed to connect member", "error", err)
		conn.Close(websocket.CloseInternalServerErr, "")
		return
	}
	defer c.disconnect(context.WithoutCancel(ctx), conn, roomID)

	if upgradeErr != nil {
		c.logger.WarnContext(ctx, "failed to upgrade to websocket", "error", upgradeErr)
		return
	}

	joined, err := protocol.NewMessage(protocol.TypeJoined, "", protocol.JoinedPayload{
		MemberID:  joinRoomResponse.MemberID,
		Role:      joinRoomResponse.Role.String(),
		AuthToken: joinRoomResponse.AuthToken,
		State:     joinRoomResponse.State,
	})
	if err != nil {
		c.logger.WarnContext(ctx, "failed to build joined message", "error", err)
		return
	}

	if err := conn.WriteJSON(joined); err != nil {
		c.logger.WarnContext(ctx, "failed to write json", "error", err)
		return
	}

	ctx = withMember(ctx, roomID, joinRoomResponse.MemberID)

	if err := c.wsmux.ServeConn(ctx, conn); err != nil {
		c.logger.InfoContext(ctx, "connection closed", "error", err)
	}
}

func (c controller) disconnect(ctx context.Context, conn *connection.Conn, roomID string) {
	disconnectResponse, err := c.roomService.DisconnectMember(ctx, &room.DisconnectMemberParams{
		Conn:   conn,
		RoomID: roomID,
	})
	if err != nil {
		c.logger.WarnContext(ctx, "failed to disconnect member", "error", err)
		return
	}

	if disconnectResponse.Stale {
		c.logger.DebugContext(ctx, "connection already replaced")
		return
	}

	if disconnectResponse.PromotedMemberID == "" {
		return
	}

	msg, err := protocol.NewMessage(protocol.TypeRoleUpdated, "", protocol.RoleUpdatedPayload{
		MemberID: disconnectResponse.PromotedMemberID,
		Role:     "owner",
	})
	if err != nil {
		c.logger.WarnContext(ctx, "failed to build role_updated message", "error", err)
		return
	}

	if err := c.broadcast(ctx, roomID, "", msg); err != nil {
		c.logger.WarnContext(ctx, "failed to broadcast", "error", err)
	}
}
