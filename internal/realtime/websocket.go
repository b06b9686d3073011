package realtime

import (
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// WSConn adapts a gorilla connection to Conn with a per-write deadline
type WSConn struct {
	*websocket.Conn
}

func NewWSConn(c *websocket.Conn) *WSConn {
	return &WSConn{Conn: c}
}

func (c *WSConn) WriteJSON(v any) error {
	if err := c.Conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.Conn.WriteJSON(v)
}

// Close sends a close frame before tearing down the socket
func (c *WSConn) Close() error {
	_ = c.Conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	return c.Conn.Close()
}
