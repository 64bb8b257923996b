package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"playviz/internal/live"
	"playviz/internal/metrics"
	"playviz/internal/plays"
	"playviz/internal/sim"
)

// PlayManager defines the play methods used by the API.
// This interface enables mocking for tests without a simulation server.
// Keep this minimal - only include methods the API layer actually calls.
type PlayManager interface {
	// Create bootstraps a simulation session and starts drawing it
	Create(ctx context.Context, params live.SessionParams) (*plays.Play, error)
	// Get returns a live play by id
	Get(id string) (*plays.Play, bool)
	// List returns the ids of live plays
	List() []string
	// Close stops a play and closes its session
	Close(id string) error

	// CreateReplay starts a paused local replay
	CreateReplay(frames []sim.PlayFrame) (*plays.Replay, error)
	// ReplayFromPlay seeds a replay from a live play's recorded frames
	ReplayFromPlay(id string) (*plays.Replay, error)
	// GetReplay returns a replay by id
	GetReplay(id string) (*plays.Replay, bool)
	// CloseReplay stops a replay
	CloseReplay(id string) error
}

// RouterConfig contains all dependencies needed to construct the HTTP router.
// This struct is designed for dependency injection and testability.
//
// Example usage in tests:
//
//	cfg := api.RouterConfig{
//	    Plays: mockPlays,
//	    RateLimitConfig: &api.RateLimitConfig{
//	        RequestsPerSecond: 1000, // High limit for tests
//	        Burst:             1000,
//	    },
//	}
//	router := api.NewRouter(cfg)
//	ts := httptest.NewServer(router)
type RouterConfig struct {
	// Plays is the play manager (required)
	Plays PlayManager

	// RateLimiter is an optional pre-configured rate limiter.
	// If nil, a new one will be created using RateLimitConfig.
	RateLimiter *IPRateLimiter

	// RateLimitConfig is optional configuration for the rate limiter.
	// Only used if RateLimiter is nil. If both are nil, uses DefaultRateLimitConfig.
	RateLimitConfig *RateLimitConfig

	// CORSOrigins is an optional list of allowed CORS origins.
	// If nil, uses DefaultAllowedOrigins.
	CORSOrigins []string

	// CreateTimeout bounds session bootstrap, including the WebSocket open.
	// Zero uses 20s.
	CreateTimeout time.Duration

	// DisableLogging disables the request logger middleware (useful for benchmarks).
	DisableLogging bool
}

// routerHandlers holds the handler functions for the router.
type routerHandlers struct {
	plays         PlayManager
	createTimeout time.Duration
}

// NewRouter constructs the HTTP router with all middleware and routes.
//
// IMPORTANT: This function is PURE - it has no side effects:
//   - No goroutines are started beyond the rate limiter's cleanup loop
//   - No network listeners are opened
//
// This makes it safe to use in tests with httptest.NewServer.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Middleware - Order matters!
	if !cfg.DisableLogging {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(requestMetrics)

	// Rate limiting (BEFORE CORS to reject early and save CPU)
	rateLimiter := cfg.RateLimiter
	if rateLimiter == nil {
		rateLimitCfg := DefaultRateLimitConfig
		if cfg.RateLimitConfig != nil {
			rateLimitCfg = *cfg.RateLimitConfig
		}
		rateLimiter = NewIPRateLimiter(rateLimitCfg)
	}
	r.Use(rateLimiter.Middleware)

	// CORS configuration
	corsOrigins := cfg.CORSOrigins
	if corsOrigins == nil {
		corsOrigins = DefaultAllowedOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	h := &routerHandlers{
		plays:         cfg.Plays,
		createTimeout: cfg.CreateTimeout,
	}
	if h.createTimeout <= 0 {
		h.createTimeout = 20 * time.Second
	}

	r.Route("/api", func(r chi.Router) {
		// Live sessions
		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", h.handleCreateSession)
			r.Get("/", h.handleListSessions)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.handleGetSession)
				r.Delete("/", h.handleCloseSession)
				r.Post("/commands/{cmd}", h.handleCommand)
				r.Post("/pacing", h.handlePacing)
				r.Post("/select", h.handleSelect)
				r.Get("/frame.png", h.handleSessionFrame)
				r.Get("/frames", h.handleRecordedFrames)
				r.Post("/replay", h.handleReplayFromSession)
			})
		})

		// Local replays
		r.Route("/replays", func(r chi.Router) {
			r.Post("/", h.handleCreateReplay)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.handleGetReplay)
				r.Delete("/", h.handleCloseReplay)
				r.Post("/play", h.handleReplayPlay)
				r.Post("/pause", h.handleReplayPause)
				r.Post("/seek", h.handleReplaySeek)
				r.Post("/step", h.handleReplayStep)
				r.Post("/speed", h.handleReplaySpeed)
				r.Post("/select", h.handleReplaySelect)
				r.Get("/frame.png", h.handleReplayFrame)
			})
		})
	})

	return r
}

// requestMetrics records latency per route pattern, never per raw path.
func requestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		pattern := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			pattern = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.RecordRequest(r.Method, pattern, status, time.Since(start))
	})
}
