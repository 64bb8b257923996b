package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
)

// ServerConfig is what NewServer needs beyond the play manager.
type ServerConfig struct {
	Addr            string
	RateLimit       RateLimitConfig
	Origins         []string
	Hub             HubConfig
	BroadcastPeriod time.Duration // Zero uses 100ms
}

// Server is the HTTP API plus the viewer WebSocket hub.
type Server struct {
	plays       PlayManager
	router      *chi.Mux
	wsHub       *WebSocketHub
	rateLimiter *IPRateLimiter
	cfg         ServerConfig
	http        *http.Server

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewServer builds the router and hub without starting anything.
//
// For testing HTTP endpoints without WebSocket support, use NewRouter() directly.
func NewServer(pm PlayManager, cfg ServerConfig) *Server {
	if cfg.BroadcastPeriod <= 0 {
		cfg.BroadcastPeriod = 100 * time.Millisecond
	}
	if cfg.Hub.Origins == nil {
		cfg.Hub.Origins = cfg.Origins
	}

	s := &Server{
		plays:       pm,
		wsHub:       NewWebSocketHub(cfg.Hub),
		rateLimiter: NewIPRateLimiter(cfg.RateLimit),
		cfg:         cfg,
	}
	s.router = NewRouter(RouterConfig{
		Plays:       pm,
		RateLimiter: s.rateLimiter,
		CORSOrigins: cfg.Origins,
	})
	s.router.Get("/ws", s.wsHub.HandleWebSocket)
	s.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Hub returns the viewer hub so the host can forward play events to it.
func (s *Server) Hub() *WebSocketHub {
	return s.wsHub
}

// Start runs the hub and serves until Stop. It returns nil after a clean
// shutdown.
func (s *Server) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	go s.wsHub.Run(ctx)
	s.wsHub.StartBroadcastLoop(ctx, s.plays, s.cfg.BroadcastPeriod)

	log.Printf("🌐 API server starting on %s", s.cfg.Addr)

	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Router returns the HTTP handler for use with httptest.
func (s *Server) Router() http.Handler {
	return s.router
}

// Stop drains in-flight requests and stops background workers.
func (s *Server) Stop(ctx context.Context) error {
	err := s.http.Shutdown(ctx)
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()
	s.rateLimiter.Stop()
	return err
}
