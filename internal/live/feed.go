package live

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// DefaultFeedRetry is the fixed delay between management feed reconnects.
const DefaultFeedRetry = 3 * time.Second

// Feed is the long-lived management connection. Unlike a simulation
// session it reconnects forever at a fixed interval until stopped.
type Feed struct {
	url     string
	retry   time.Duration
	handler func(Envelope)

	mu          sync.RWMutex
	conn        *websocket.Conn
	isConnected bool
	attempts    int
}

// NewFeed creates a feed. handler is called for every envelope on the
// feed's goroutine.
func NewFeed(url string, retry time.Duration, handler func(Envelope)) *Feed {
	if retry <= 0 {
		retry = DefaultFeedRetry
	}
	return &Feed{
		url:     url,
		retry:   retry,
		handler: handler,
	}
}

// Run connects and reads until ctx is cancelled. Call in a goroutine.
func (f *Feed) Run(ctx context.Context) {
	defer f.disconnect()

	// Unblock a pending read on cancel
	go func() {
		<-ctx.Done()
		f.disconnect()
	}()

	for {
		if ctx.Err() != nil {
			log.Println("🔌 Management feed shutting down")
			return
		}

		f.mu.RLock()
		conn := f.conn
		f.mu.RUnlock()

		if conn == nil {
			if err := f.connect(ctx); err != nil {
				log.Printf("❌ Management feed connect failed: %v", err)
				if !sleepCtx(ctx, f.retry) {
					return
				}
				continue
			}
			f.mu.RLock()
			conn = f.conn
			f.mu.RUnlock()
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				log.Printf("⚠️ Management feed read error: %v", err)
			}
			f.disconnect()
			if !sleepCtx(ctx, f.retry) {
				return
			}
			continue
		}
		f.handleMessage(message)
	}
}

func (f *Feed) connect(ctx context.Context) error {
	f.mu.Lock()
	f.attempts++
	attempt := f.attempts
	f.mu.Unlock()

	log.Printf("🔄 Connecting management feed (attempt %d)...", attempt)
	dialer := websocket.Dialer{
		HandshakeTimeout: DefaultHandshakeTimeout,
	}
	conn, _, err := dialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return &TransportError{Op: "dial", Err: err}
	}
	conn.SetReadLimit(MaxMessageSize)

	f.mu.Lock()
	f.conn = conn
	f.isConnected = true
	f.attempts = 0
	f.mu.Unlock()
	log.Println("✅ Management feed connected")
	return nil
}

func (f *Feed) handleMessage(data []byte) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Printf("⚠️ Failed to parse management message: %v", err)
		return
	}
	if f.handler != nil {
		f.handler(env)
	}
}

func (f *Feed) disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conn != nil {
		f.conn.Close()
		f.conn = nil
	}
	f.isConnected = false
}

// IsConnected returns connection status.
func (f *Feed) IsConnected() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.isConnected
}

// sleepCtx waits d or until ctx is done. It reports whether the full wait
// elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
