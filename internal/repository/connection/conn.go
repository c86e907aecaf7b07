package connection

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var (
	ErrNotFound      = errors.New("connection not found")
	ErrAlreadyExists = errors.New("connection already exists")
	ErrClosed        = errors.New("connection closed")
)

const writeWait = 10 * time.Second

// Conn serialises writes to a websocket connection. Reads are left to the
// single goroutine serving the connection.
type Conn struct {
	ws *websocket.Conn

	mu     sync.Mutex
	closed bool
}

func NewConn(ws *websocket.Conn) *Conn {
	return &Conn{ws: ws}
}

func (c *Conn) ReadJSON(v any) error {
	return c.ws.ReadJSON(v)
}

func (c *Conn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.ws == nil {
		return ErrClosed
	}

	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}

	return c.ws.WriteJSON(v)
}

// Close sends a close frame with code and closes the connection.
func (c *Conn) Close(code int, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.ws == nil {
		return nil
	}
	c.closed = true

	_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(writeWait))
	return c.ws.Close()
}
