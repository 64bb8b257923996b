package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/time/rate"

	"playviz/internal/api"
	"playviz/internal/config"
	"playviz/internal/live"
	"playviz/internal/plays"
	"playviz/internal/render"
	"playviz/internal/streaming"
)

func main() {
	// Load .env from the working directory, then its parent
	if err := godotenv.Load(".env"); err != nil {
		if err := godotenv.Load("../.env"); err != nil {
			log.Println("💡 No .env file found, using environment variables only")
		}
	} else {
		log.Println("✅ Loaded environment from .env")
	}

	log.Println("🏈 ================================")
	log.Println("🏈  PLAYVIZ - LIVE PLAY VIEWER")
	log.Println("🏈 ================================")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Config: %v", err)
	}

	log.Printf("📡 Simulation: %s (%s dialect)", cfg.Sync.WSBase, cfg.Sync.Dialect)
	log.Printf("🎬 Canvas: %dx%d @ %.0f px/yd, %d FPS", cfg.Canvas.Width, cfg.Canvas.Height, cfg.Canvas.PixelsPerYard, cfg.Canvas.FPS)
	log.Printf("🛡️ Limits: %d sessions, %d replays, %d frames per replay",
		cfg.Limits.MaxSessions, cfg.Limits.MaxReplays, cfg.Limits.MaxReplayFrames)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if os.Getenv("DISABLE_DEBUG_SERVER") != "true" {
		debugCfg := api.DefaultObservabilityConfig()
		if cfg.Server.DebugAddr != "" {
			debugCfg.ListenAddr = cfg.Server.DebugAddr
		}
		if err := api.StartDebugServer(debugCfg); err != nil {
			log.Printf("⚠️ Debug server disabled: %v", err)
		}
	}

	boot := live.NewBootstrapper(cfg.Sync.APIBase, cfg.Sync.WSBase, live.Options{
		Dialect:          live.Dialect(cfg.Sync.Dialect),
		HandshakeTimeout: cfg.Sync.HandshakeTimeout,
		MaxFrames:        cfg.Playback.MaxFrames,
		StepRate:         rate.Limit(cfg.Playback.StepRate),
		StepBurst:        cfg.Playback.StepBurst,
	})

	manager := plays.NewManager(boot, plays.Options{
		Canvas: render.Config{
			Width:          cfg.Canvas.Width,
			Height:         cfg.Canvas.Height,
			PixelsPerYard:  cfg.Canvas.PixelsPerYard,
			LOSFraction:    cfg.Canvas.LOSFraction,
			FirstDownYards: cfg.Canvas.FirstDownYards,
			HitRadius:      cfg.Canvas.HitRadius,
			ArcSamples:     render.DefaultConfig().ArcSamples,
			FontPath:       cfg.Canvas.FontPath,
		},
		Stream: streaming.StreamConfig{
			FPS:       cfg.Canvas.FPS,
			Heartbeat: streaming.DefaultStreamConfig().Heartbeat,
		},
		MaxSessions:     cfg.Limits.MaxSessions,
		MaxReplays:      cfg.Limits.MaxReplays,
		MaxReplayFrames: cfg.Limits.MaxReplayFrames,
		ReplayBaseRate:  cfg.Playback.ReplayBaseRate,
	})

	server := api.NewServer(manager, api.ServerConfig{
		Addr: fmt.Sprintf(":%d", cfg.Server.Port),
		RateLimit: api.RateLimitConfig{
			RequestsPerSecond: cfg.Limits.RequestsPerSecond,
			Burst:             cfg.Limits.Burst,
			CleanupInterval:   api.DefaultRateLimitConfig.CleanupInterval,
		},
		Origins: cfg.Server.AllowedOrigins,
		Hub: api.HubConfig{
			MaxClients: cfg.Limits.MaxWSClients,
			MaxPerIP:   api.DefaultHubConfig().MaxPerIP,
		},
	})
	manager.OnEvent(server.Hub().HandlePlayEvent)

	if cfg.Sync.FeedURL != "" {
		feed := live.NewFeed(cfg.Sync.FeedURL, cfg.Sync.FeedRetry, server.Hub().HandleFeedMessage)
		go feed.Run(ctx)
		log.Printf("📡 Management feed: %s", cfg.Sync.FeedURL)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(ctx)
	}()

	select {
	case <-ctx.Done():
		log.Println("🛑 Shutting down...")
	case err := <-errCh:
		if err != nil {
			log.Printf("❌ Server error: %v", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		log.Printf("⚠️ HTTP shutdown: %v", err)
	}
	manager.Shutdown()
	log.Println("👋 Goodbye")
}
