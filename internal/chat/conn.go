package chat

import (
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// Connection wraps a single WebSocket client with its resolved identity and
// a write mutex serializing outbound frames. A connection belongs to at most
// one room at a time.
type Connection struct {
	ID        string    // connection id (UUID), unique per socket
	ProfileID string    // resolved identity, set by the gate
	MatchID   string    // room membership, set by Registry.Join
	CreatedAt time.Time

	conn    net.Conn
	writeMu sync.Mutex
}

// NewConnection wraps an upgraded network connection.
func NewConnection(id string, conn net.Conn) *Connection {
	return &Connection{ID: id, CreatedAt: time.Now(), conn: conn}
}

// WriteText sends a WebSocket text frame. The write mutex ensures concurrent
// goroutines do not interleave frame bytes.
func (c *Connection) WriteText(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return wsutil.WriteServerMessage(c.conn, ws.OpText, data)
}

// WriteClose sends a close frame with the given status code and reason.
// Write errors are ignored; the peer may already be gone.
func (c *Connection) WriteClose(code ws.StatusCode, reason string) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	frame := ws.NewCloseFrame(ws.NewCloseFrameBody(code, reason))
	_ = ws.WriteFrame(c.conn, frame)
}

// closeGrace bounds how long a closing socket waits for the peer's close
// reply before teardown.
const closeGrace = time.Second

// CloseWithStatus sends a close frame, waits for the peer's close reply or
// the grace deadline, then releases the socket. Tearing the socket down
// right after the frame write would race the peer's read of the status
// code.
func (c *Connection) CloseWithStatus(code ws.StatusCode, reason string) {
	c.WriteClose(code, reason)
	_ = c.conn.SetReadDeadline(time.Now().Add(closeGrace))
	var reply [64]byte
	_, _ = c.conn.Read(reply[:])
	_ = c.conn.Close()
}

// Close closes the underlying network connection.
func (c *Connection) Close() error {
	return c.conn.Close()
}
