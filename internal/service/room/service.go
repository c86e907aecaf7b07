package room

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sharetube/watchsync/internal/repository/connection"
	"github.com/sharetube/watchsync/internal/repository/room"
)

var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrRoomFull         = errors.New("room is full")
	ErrInvalidAuthToken = errors.New("invalid auth token")
	ErrNotInRoom        = errors.New("member is not in the room")
)

type iRoomRepo interface {
	// member
	AddMember(context.Context, *room.AddMemberParams) error
	RemoveMemberFromList(context.Context, *room.RemoveMemberFromListParams) error
	GetMember(ctx context.Context, memberID string) (room.Member, error)
	GetMemberIDs(ctx context.Context, roomID string) ([]string, error)
	IsMemberInList(ctx context.Context, roomID, memberID string) (bool, error)
	// owner
	ClaimOwner(ctx context.Context, roomID, memberID string) (bool, error)
	SetOwner(ctx context.Context, roomID, memberID string) error
	GetOwner(ctx context.Context, roomID string) (string, error)
	RemoveRoom(ctx context.Context, roomID string) error
	// state
	SetState(context.Context, *room.SetStateParams) error
	GetState(ctx context.Context, roomID string) (room.State, error)
	UpdatePlayback(context.Context, *room.UpdatePlaybackParams) error
}

type iConnRepo interface {
	Add(*connection.Conn, string) error
	RemoveByConn(*connection.Conn) (string, error)
	RemoveByMemberID(memberID string, code int, reason string) error
	GetConn(string) (*connection.Conn, error)
}

type Config struct {
	Secret       string
	MembersLimit int
	TokenTTL     time.Duration
}

type service struct {
	roomRepo     iRoomRepo
	connRepo     iConnRepo
	logger       *slog.Logger
	secret       []byte
	membersLimit int
	tokenTTL     time.Duration
	now          func() time.Time
}

func NewService(roomRepo iRoomRepo, connRepo iConnRepo, cfg *Config, logger *slog.Logger) *service {
	return &service{
		roomRepo:     roomRepo,
		connRepo:     connRepo,
		logger:       logger,
		secret:       []byte(cfg.Secret),
		membersLimit: cfg.MembersLimit,
		tokenTTL:     cfg.TokenTTL,
		now:          time.Now,
	}
}
