package websocket

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"delivery-dispatch/internal/general/contracts"

	"github.com/gorilla/websocket"
)

// conn is one authenticated client socket. It is the rooms.Member the directory fans out to:
// Send only enqueues, the writer goroutine owns the socket.
type conn struct {
	id   string
	ws   *websocket.Conn
	send chan contracts.Outbound
	done chan struct{}

	once     sync.Once
	doneOnce sync.Once

	// unix nanos of the last location or device frame the router applied
	lastHeartbeat atomic.Int64
}

func newConn(id string, ws *websocket.Conn, buffer int) *conn {
	return &conn{
		id:   id,
		ws:   ws,
		send: make(chan contracts.Outbound, buffer),
		done: make(chan struct{}),
	}
}

func (c *conn) ID() string { return c.id }

// LastHeartbeatAt is zero until the first location or device status update is applied.
func (c *conn) LastHeartbeatAt() time.Time {
	n := c.lastHeartbeat.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

func (c *conn) touch(at time.Time) {
	c.lastHeartbeat.Store(at.UnixNano())
}

func isHeartbeat(t contracts.EventType) bool {
	return t == contracts.EventUpdateLocation || t == contracts.EventUpdateDeviceStatus
}

// Send enqueues ev. It returns false when the connection is closing or its buffer is full.
func (c *conn) Send(ev contracts.Outbound) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- ev:
		return true
	default:
		return false
	}
}

func (c *conn) shutdown() {
	c.doneOnce.Do(func() { close(c.done) })
}

// writeFrame marshals ev and writes a single TextMessage.
func writeFrame(ws *websocket.Conn, ev contracts.Outbound) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_ = ws.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return ws.WriteMessage(websocket.TextMessage, payload)
}

// writeClose sends a close control frame with the given code and reason.
func writeClose(ws *websocket.Conn, code int, reason string) {
	_ = ws.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(wsCloseAckWindow),
	)
}
