package bridge

import (
	"net"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// wsConn frames a hijacked HTTP connection as the server side of a
// WebSocket.
type wsConn struct {
	conn         net.Conn
	writeTimeout time.Duration
}

// ReadFrame returns the next data frame. Control frames are answered
// internally.
func (c *wsConn) ReadFrame() ([]byte, ws.OpCode, error) {
	return wsutil.ReadClientData(c.conn)
}

func (c *wsConn) WriteFrame(op ws.OpCode, data []byte) error {
	if c.writeTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	return wsutil.WriteServerMessage(c.conn, op, data)
}

// CloseGracefully sends a close frame before closing. Only the writer
// may call it.
func (c *wsConn) CloseGracefully() error {
	_ = c.WriteFrame(ws.OpClose, ws.NewCloseFrameBody(ws.StatusNormalClosure, ""))
	return c.conn.Close()
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}

func (c *wsConn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}
