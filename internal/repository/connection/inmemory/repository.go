package inmemory

import (
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/sharetube/watchsync/internal/repository/connection"
)

type repo struct {
	connList map[*connection.Conn]string
	idList   map[string]*connection.Conn
	mu       sync.RWMutex
	logger   *slog.Logger
}

func NewRepo(logger *slog.Logger) *repo {
	return &repo{
		connList: make(map[*connection.Conn]string),
		idList:   make(map[string]*connection.Conn),
		logger:   logger,
	}
}

func (r *repo) Add(conn *connection.Conn, memberID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.logger.Debug("called", "member_id", memberID)
	if r.connList[conn] != "" || r.idList[memberID] != nil {
		r.logger.Debug("returned", "error", connection.ErrAlreadyExists)
		return connection.ErrAlreadyExists
	}

	r.connList[conn] = memberID
	r.idList[memberID] = conn

	return nil
}

// RemoveByConn forgets conn and closes it. It returns the member id conn was
// registered for.
func (r *repo) RemoveByConn(conn *connection.Conn) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	memberID, ok := r.connList[conn]
	if !ok {
		r.logger.Debug("returned", "error", connection.ErrNotFound)
		return "", connection.ErrNotFound
	}
	conn.Close(websocket.CloseNormalClosure, "")

	delete(r.connList, conn)
	delete(r.idList, memberID)

	r.logger.Debug("returned", "member_id", memberID)
	return memberID, nil
}

// RemoveByMemberID forgets the member's conn and closes it with code.
func (r *repo) RemoveByMemberID(memberID string, code int, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.logger.Debug("called", "member_id", memberID)
	conn, ok := r.idList[memberID]
	if !ok {
		r.logger.Debug("returned", "error", connection.ErrNotFound)
		return connection.ErrNotFound
	}
	conn.Close(code, reason)

	delete(r.connList, conn)
	delete(r.idList, memberID)

	return nil
}

func (r *repo) GetMemberID(conn *connection.Conn) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	memberID, ok := r.connList[conn]
	if !ok {
		return "", connection.ErrNotFound
	}

	return memberID, nil
}

func (r *repo) GetConn(memberID string) (*connection.Conn, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.idList[memberID]
	if !ok {
		return nil, connection.ErrNotFound
	}

	return conn, nil
}

// MemberIDs lists every member connected to this process, sorted.
func (r *repo) MemberIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := maps.Keys(r.idList)
	slices.Sort(ids)

	return ids
}
