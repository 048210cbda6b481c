package realtime

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/phrazzld/tasksync/internal/presence"
)

// ErrConnClosed is returned by Send after the connection has been closed.
var ErrConnClosed = errors.New("realtime connection closed")

// Conn adapts a websocket connection to presence.Handle.
// Writes are serialized; a writer waiting for its turn gives up when its
// context is done, so one stuck write never holds other senders past their deadline.
type Conn struct {
	id           string
	ws           *websocket.Conn
	writeTimeout time.Duration

	writeSlot chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

var _ presence.Handle = (*Conn)(nil)

func newConn(ws *websocket.Conn, writeTimeout time.Duration) *Conn {
	return &Conn{
		id:           uuid.NewString(),
		ws:           ws,
		writeTimeout: writeTimeout,
		writeSlot:    make(chan struct{}, 1),
		done:         make(chan struct{}),
	}
}

// ID implements presence.Handle.
func (c *Conn) ID() string {
	return c.id
}

// Send implements presence.Handle. The write deadline is the earlier of
// ctx's deadline and the connection's write timeout.
func (c *Conn) Send(ctx context.Context, msg []byte) error {
	select {
	case c.writeSlot <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrConnClosed
	}
	defer func() { <-c.writeSlot }()

	select {
	case <-c.done:
		return ErrConnClosed
	default:
	}

	deadline := time.Now().Add(c.writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.ws.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, msg)
}

// ping sends a control ping. WriteControl is safe alongside Send.
func (c *Conn) ping() error {
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeTimeout))
}

// Close implements presence.Handle. Only the first call closes the socket.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.ws.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(c.writeTimeout),
		)
		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}
