package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"playviz/internal/live"
	"playviz/internal/metrics"
	"playviz/internal/plays"
)

// HubConfig limits viewer sockets.
type HubConfig struct {
	MaxClients int
	MaxPerIP   int
	Origins    []string // nil uses DefaultAllowedOrigins
}

// DefaultHubConfig returns production limits.
func DefaultHubConfig() HubConfig {
	return HubConfig{MaxClients: 100, MaxPerIP: 10}
}

// wsClient is a viewer socket and where it came from.
type wsClient struct {
	conn *websocket.Conn
	ip   string
}

// WebSocketHub fans play updates out to viewer pages.
type WebSocketHub struct {
	clients    map[*websocket.Conn]*wsClient
	broadcast  chan []byte
	register   chan *wsClient
	unregister chan *websocket.Conn
	done       chan struct{}
	mu         sync.RWMutex

	cfg      HubConfig
	perIP    *connLimiter
	upgrader websocket.Upgrader
}

// NewWebSocketHub creates a hub. Nothing runs until Run is called.
func NewWebSocketHub(cfg HubConfig) *WebSocketHub {
	if cfg.MaxClients <= 0 {
		cfg.MaxClients = DefaultHubConfig().MaxClients
	}
	if cfg.MaxPerIP <= 0 {
		cfg.MaxPerIP = DefaultHubConfig().MaxPerIP
	}
	origins := NewOriginChecker(cfg.Origins)

	h := &WebSocketHub{
		clients:    make(map[*websocket.Conn]*wsClient),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *wsClient),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		cfg:        cfg,
		perIP:      newConnLimiter(cfg.MaxPerIP),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origins.Allowed(origin) {
				return true
			}
			log.Printf("⚠️ WebSocket connection rejected from origin: %s", origin)
			metrics.RecordConnectionRejected("origin")
			return false
		},
	}
	return h
}

// Run owns the client set until ctx is cancelled, then closes every socket.
func (h *WebSocketHub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for conn, c := range h.clients {
				conn.Close()
				h.perIP.release(c.ip)
				delete(h.clients, conn)
			}
			h.mu.Unlock()
			metrics.UpdateWSConnections(0)
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c.conn] = c
			count := len(h.clients)
			h.mu.Unlock()
			log.Printf("📱 Viewer connected from %s (%d total)", c.ip, count)
			metrics.UpdateWSConnections(count)

		case conn := <-h.unregister:
			h.remove(conn)

		case msg := <-h.broadcast:
			h.mu.RLock()
			var failed []*websocket.Conn
			for conn := range h.clients {
				conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
				if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
					failed = append(failed, conn)
				}
			}
			h.mu.RUnlock()
			for _, conn := range failed {
				h.remove(conn)
			}
			metrics.IncrementWSMessages()
		}
	}
}

func (h *WebSocketHub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	c, ok := h.clients[conn]
	if ok {
		delete(h.clients, conn)
	}
	count := len(h.clients)
	h.mu.Unlock()
	if !ok {
		return
	}
	conn.Close()
	h.perIP.release(c.ip)
	log.Printf("📱 Viewer disconnected (%d remaining)", count)
	metrics.UpdateWSConnections(count)
}

// Broadcast queues {"event": event, "data": data} for every viewer. A full
// queue drops the message.
func (h *WebSocketHub) Broadcast(event string, data interface{}) {
	b, err := json.Marshal(map[string]interface{}{
		"event": event,
		"data":  data,
	})
	if err != nil {
		log.Printf("⚠️ Broadcast %s not encodable: %v", event, err)
		return
	}
	select {
	case h.broadcast <- b:
	default:
	}
}

// ClientCount returns the number of connected viewers.
func (h *WebSocketHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// StartBroadcastLoop sends every live play's state at the given interval
// while anyone is watching.
func (h *WebSocketHub) StartBroadcastLoop(ctx context.Context, pm PlayManager, every time.Duration) {
	ticker := time.NewTicker(every)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			if h.ClientCount() == 0 {
				continue
			}
			for _, id := range pm.List() {
				if p, ok := pm.Get(id); ok {
					h.Broadcast("session:state", stateOf(p))
				}
			}
		}
	}()
}

// HandlePlayEvent forwards manager events. Pass it to plays.Manager.OnEvent.
func (h *WebSocketHub) HandlePlayEvent(ev plays.Event) {
	switch ev.Kind {
	case plays.EventSignal:
		h.Broadcast("session:signal", map[string]string{"id": ev.PlayID, "signal": ev.Signal.String()})
	case plays.EventSelected:
		h.Broadcast("session:selected", map[string]string{"id": ev.PlayID, "entityId": ev.EntityID})
	case plays.EventReplay:
		h.Broadcast("replay:complete", map[string]string{"id": ev.PlayID})
	case plays.EventClosed:
		h.Broadcast("session:closed", map[string]string{"id": ev.PlayID})
	}
}

// HandleFeedMessage relays a management feed envelope as "feed:<type>".
func (h *WebSocketHub) HandleFeedMessage(env live.Envelope) {
	h.Broadcast("feed:"+env.Type, env.Payload)
}

// HandleWebSocket upgrades a viewer connection. Viewers only listen; inbound
// messages are read to detect close and otherwise ignored.
func (h *WebSocketHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ip := GetClientIP(r)

	if n := h.ClientCount(); n >= h.cfg.MaxClients {
		log.Printf("⚠️ WebSocket connection rejected: total limit reached (%d)", n)
		metrics.RecordConnectionRejected("ws_total_limit")
		writeError(w, "Too many connections", http.StatusServiceUnavailable)
		return
	}
	if !h.perIP.acquire(ip) {
		log.Printf("⚠️ WebSocket connection rejected from %s: per-IP limit reached", ip)
		metrics.RecordConnectionRejected("ws_ip_limit")
		writeError(w, "Too many connections from your IP", http.StatusTooManyRequests)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("⚠️ WebSocket upgrade error: %v", err)
		h.perIP.release(ip)
		return
	}

	select {
	case h.register <- &wsClient{conn: conn, ip: ip}:
	case <-h.done:
		conn.Close()
		h.perIP.release(ip)
		return
	}

	go func() {
		defer func() {
			select {
			case h.unregister <- conn:
			case <-h.done:
			}
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
