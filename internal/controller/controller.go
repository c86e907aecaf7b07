package controller

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/sharetube/watchsync/internal/repository/connection"
	"github.com/sharetube/watchsync/internal/service/room"
	"github.com/sharetube/watchsync/internal/transport/redisbus"
	"github.com/sharetube/watchsync/pkg/validator"
	"github.com/sharetube/watchsync/pkg/wsrouter"
)

type iRoomService interface {
	JoinRoom(context.Context, *room.JoinRoomParams) (room.JoinRoomResponse, error)
	ConnectMember(context.Context, *room.ConnectMemberParams) error
	DisconnectMember(context.Context, *room.DisconnectMemberParams) (room.DisconnectMemberResponse, error)
	Publish(context.Context, *room.PublishParams) error
	GetConns(ctx context.Context, roomID, exclude string) ([]*connection.Conn, error)
}

// iBus fans messages out to other relay instances. A controller without a
// bus delivers to its own connections only.
type iBus interface {
	Publish(context.Context, redisbus.Envelope) error
}

type controller struct {
	roomService iRoomService
	bus         iBus
	upgrader    websocket.Upgrader
	validate    *validator.Validator
	logger      *slog.Logger
	wsmux       *wsrouter.WSRouter
}

func NewController(roomService iRoomService, bus iBus, logger *slog.Logger) *controller {
	c := &controller{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		roomService: roomService,
		bus:         bus,
		validate:    validator.NewValidator(),
		logger:      logger,
	}
	c.wsmux = c.newWSMux()

	return c
}
