package pushgateway

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// sendBufferSize bounds per-observer outbound backpressure (spec.md §5:
// "slow observers are disconnected rather than allowed to grow unbounded
// buffers").
const sendBufferSize = 32

// connection is one observer's WebSocket handle and per-process fan-out
// target.
type connection struct {
	conn      *websocket.Conn
	sessionID string

	heartbeatInterval time.Duration
	missedPongs       int

	send chan []byte

	closeOnce sync.Once
	closed    chan struct{}
}

func newConnection(conn *websocket.Conn, sessionID string, heartbeatInterval time.Duration) *connection {
	return &connection{
		conn:              conn,
		sessionID:         sessionID,
		heartbeatInterval: heartbeatInterval,
		send:              make(chan []byte, sendBufferSize),
		closed:            make(chan struct{}),
	}
}

// enqueue delivers raw to this observer; if its outbound buffer is full
// the observer is disconnected rather than allowed to backlog.
func (c *connection) enqueue(raw []byte) {
	select {
	case c.send <- raw:
	default:
		c.close()
	}
}

func (c *connection) resetReadDeadline() {
	deadline := 2 * c.heartbeatInterval
	if deadline <= 0 {
		deadline = 10 * time.Second
	}
	_ = c.conn.SetReadDeadline(time.Now().Add(deadline))
}

func (c *connection) close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		_ = c.conn.Close()
	})
}

// writePump relays queued messages and pings on heartbeatInterval,
// closing the connection after two consecutive missed pong ticks
// (spec.md §4.4).
func (c *connection) writePump() {
	interval := c.heartbeatInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.closed:
			return
		case raw, ok := <-c.send:
			if !ok {
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(interval))
			if err := c.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(interval))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
