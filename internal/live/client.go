package live

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"playviz/internal/metrics"
)

const (
	// DefaultHandshakeTimeout bounds the WebSocket upgrade.
	DefaultHandshakeTimeout = 10 * time.Second

	// writeWait bounds a single outbound write.
	writeWait = 5 * time.Second

	// MaxMessageSize caps one inbound frame; a full snapshot with waypoints
	// for 22 entities is well under this.
	MaxMessageSize = 1 << 20
)

// Handler receives what the connection reads. Both methods run on the
// connection's read goroutine, one call at a time.
type Handler interface {
	HandleMessage(data []byte)
	HandleClose(err error)
}

// Client is one persistent connection to a simulation session. It never
// reconnects: a failed or dropped connection ends the session.
type Client struct {
	url  string
	conn *websocket.Conn

	writeMu sync.Mutex // gorilla allows one concurrent writer
	mu      sync.RWMutex
	closed  bool
	done    chan struct{}
}

// Dial opens the connection and starts the read loop. Messages are handed to
// h in arrival order.
func Dial(ctx context.Context, url string, handshakeTimeout time.Duration, h Handler) (*Client, error) {
	if handshakeTimeout <= 0 {
		handshakeTimeout = DefaultHandshakeTimeout
	}
	log.Printf("🔌 Connecting to simulation session %s...", url)

	dialer := websocket.Dialer{
		HandshakeTimeout: handshakeTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		metrics.RecordTransportError("dial")
		return nil, &TransportError{Op: "dial", Err: err}
	}
	conn.SetReadLimit(MaxMessageSize)

	c := &Client{
		url:  url,
		conn: conn,
		done: make(chan struct{}),
	}
	log.Printf("✅ Connected to simulation session %s", url)

	go c.run(h)
	return c, nil
}

// run is the read loop.
func (c *Client) run(h Handler) {
	defer close(c.done)

	for {
		_, message, err := c.conn.ReadMessage()
		if c.isClosed() {
			// Anything read after Close belongs to a torn-down session
			return
		}
		if err != nil {
			metrics.RecordTransportError("read")
			log.Printf("⚠️ Session read error: %v", err)
			h.HandleClose(&TransportError{Op: "read", Err: err})
			return
		}
		h.HandleMessage(message)
	}
}

// Send writes one command. It fails fast when the connection is closed.
func (c *Client) Send(cmd Command) error {
	if c == nil {
		return ErrNotConnected
	}
	if c.isClosed() {
		return ErrSessionClosed
	}

	data, err := json.Marshal(cmd)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		metrics.RecordTransportError("write")
		return &TransportError{Op: "write", Err: err}
	}
	metrics.RecordCommand(cmd.Type)
	return nil
}

// Close tears the connection down and waits for the read loop to exit. It
// must not be called from inside a Handler method.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.writeMu.Lock()
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()

	c.conn.Close()
	<-c.done
	log.Printf("🔌 Session connection %s closed", c.url)
}

func (c *Client) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}
