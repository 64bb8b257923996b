// Package config provides centralized configuration management.
// This is the SINGLE SOURCE OF TRUTH for canvas, sync and server settings.
//
// Values are layered (low -> high precedence):
//  1. Default*() constructors in this file
//  2. YAML file named by PLAYVIZ_CONFIG, if set
//  3. PLAYVIZ_* environment variables, sections split by a double
//     underscore: PLAYVIZ_SYNC__API_BASE -> sync.api_base
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// =============================================================================
// CANVAS CONFIGURATION
// =============================================================================

// CanvasConfig holds render surface settings.
type CanvasConfig struct {
	Width          int     `koanf:"width"`            // Canvas width in pixels
	Height         int     `koanf:"height"`           // Canvas height in pixels
	PixelsPerYard  float64 `koanf:"pixels_per_yard"`  // Uniform scale for both axes
	LOSFraction    float64 `koanf:"los_fraction"`     // LOS height from the top, 0..1
	FirstDownYards float64 `koanf:"first_down_yards"` // 0 hides the line
	HitRadius      float64 `koanf:"hit_radius"`       // Pick radius in pixels
	FPS            int     `koanf:"fps"`              // Frame loop upper bound
	FontPath       string  `koanf:"font_path"`        // Empty searches system fonts
}

// DefaultCanvas returns the default canvas configuration.
func DefaultCanvas() CanvasConfig {
	return CanvasConfig{
		Width:          900,
		Height:         700,
		PixelsPerYard:  15,
		LOSFraction:    0.7,
		FirstDownYards: 10,
		HitRadius:      14,
		FPS:            30,
	}
}

// =============================================================================
// SYNC CONFIGURATION
// =============================================================================

// SyncConfig holds the simulation server endpoints.
type SyncConfig struct {
	APIBase          string        `koanf:"api_base"`          // REST base for session bootstrap
	WSBase           string        `koanf:"ws_base"`           // WebSocket base; session id is appended
	Dialect          string        `koanf:"dialect"`           // coach or visualization
	HandshakeTimeout time.Duration `koanf:"handshake_timeout"` // WebSocket open timeout
	FeedURL          string        `koanf:"feed_url"`          // Management feed, empty disables it
	FeedRetry        time.Duration `koanf:"feed_retry"`        // Fixed delay between feed reconnects
}

// DefaultSync returns the default sync configuration.
func DefaultSync() SyncConfig {
	return SyncConfig{
		APIBase:          "http://localhost:8000/api/v1",
		WSBase:           "ws://localhost:8000/api/v1/ws",
		Dialect:          "coach",
		HandshakeTimeout: 10 * time.Second,
		FeedRetry:        3 * time.Second,
	}
}

// =============================================================================
// PLAYBACK CONFIGURATION
// =============================================================================

// PlaybackConfig holds operator command and replay settings.
type PlaybackConfig struct {
	StepRate       float64       `koanf:"step_rate"`        // Step commands per second
	StepBurst      int           `koanf:"step_burst"`       // Step commands allowed back to back
	MaxFrames      int           `koanf:"max_frames"`       // Recorded frames kept per session
	ReplayBaseRate time.Duration `koanf:"replay_base_rate"` // One tick at 1x replay speed
}

// DefaultPlayback returns the default playback configuration.
func DefaultPlayback() PlaybackConfig {
	return PlaybackConfig{
		StepRate:       10,
		StepBurst:      3,
		MaxFrames:      6000, // 5 minutes of ticks at 20 TPS
		ReplayBaseRate: 50 * time.Millisecond,
	}
}

// =============================================================================
// SERVER CONFIGURATION
// =============================================================================

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port           int      `koanf:"port"`
	DebugAddr      string   `koanf:"debug_addr"` // pprof + metrics, keep on localhost
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// DefaultServer returns the default server configuration.
func DefaultServer() ServerConfig {
	return ServerConfig{
		Port:           3000,
		DebugAddr:      "localhost:6060",
		AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
	}
}

// =============================================================================
// RESOURCE LIMITS
// =============================================================================

// Limits controls DoS protection.
type Limits struct {
	MaxSessions       int     `koanf:"max_sessions"`        // Concurrent live sessions
	MaxReplays        int     `koanf:"max_replays"`         // Concurrent replays
	MaxReplayFrames   int     `koanf:"max_replay_frames"`   // Frames accepted per uploaded replay
	RequestsPerSecond float64 `koanf:"requests_per_second"` // Per-IP API rate
	Burst             int     `koanf:"burst"`               // Per-IP API burst
	MaxWSClients      int     `koanf:"max_ws_clients"`      // Host UI sockets
}

// DefaultLimits returns the default resource limits.
func DefaultLimits() Limits {
	return Limits{
		MaxSessions:       8,
		MaxReplays:        16,
		MaxReplayFrames:   12000,
		RequestsPerSecond: 20,
		Burst:             40,
		MaxWSClients:      100,
	}
}

// =============================================================================
// COMPLETE APP CONFIGURATION
// =============================================================================

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Canvas   CanvasConfig   `koanf:"canvas"`
	Sync     SyncConfig     `koanf:"sync"`
	Playback PlaybackConfig `koanf:"playback"`
	Server   ServerConfig   `koanf:"server"`
	Limits   Limits         `koanf:"limits"`
}

// Default returns the configuration with no overrides applied.
func Default() AppConfig {
	return AppConfig{
		Canvas:   DefaultCanvas(),
		Sync:     DefaultSync(),
		Playback: DefaultPlayback(),
		Server:   DefaultServer(),
		Limits:   DefaultLimits(),
	}
}

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "PLAYVIZ_"

// Load returns the complete configuration with file and environment overrides.
func Load() (AppConfig, error) {
	return LoadFile(os.Getenv(EnvPrefix + "CONFIG"))
}

// LoadFile is Load with an explicit YAML path; an empty path skips the file.
func LoadFile(path string) (AppConfig, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return AppConfig{}, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(s, "__", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return AppConfig{}, fmt.Errorf("load env: %w", err)
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return AppConfig{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

// Validate rejects settings nothing downstream can recover from.
func (c AppConfig) Validate() error {
	if c.Sync.WSBase == "" {
		return errors.New("sync.ws_base must not be empty")
	}
	if c.Sync.Dialect != "coach" && c.Sync.Dialect != "visualization" {
		return fmt.Errorf("sync.dialect must be coach or visualization, got %q", c.Sync.Dialect)
	}
	if c.Canvas.Width <= 0 || c.Canvas.Height <= 0 {
		return fmt.Errorf("canvas size must be positive, got %dx%d", c.Canvas.Width, c.Canvas.Height)
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be positive, got %d", c.Server.Port)
	}
	return nil
}
