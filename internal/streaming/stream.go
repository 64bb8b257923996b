// Package streaming runs the frame loop: it re-renders a SnapshotSource
// whenever it changes, double-buffers the drawing context and keeps the
// latest frame encoded as PNG for the host.
package streaming

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/png"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fogleman/gg"

	"playviz/internal/render"
)

// StreamConfig holds frame loop configuration
type StreamConfig struct {
	FPS       int           // Upper bound on frames rendered per second
	Heartbeat time.Duration // Re-render interval while catch effects animate
}

// DefaultStreamConfig returns the production frame loop settings
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		FPS:       30,
		Heartbeat: 100 * time.Millisecond,
	}
}

// EncodedFrame is one rendered frame ready to serve.
type EncodedFrame struct {
	PNG        []byte
	Tick       int
	Drawn      int
	Skipped    int
	RenderedAt time.Time
}

// DoubleBuffer provides non-blocking frame rendering: the loop draws into
// the back context while the front one holds the last frame.
type DoubleBuffer struct {
	contexts    [2]*gg.Context
	activeIndex int
	mu          sync.Mutex
}

func newDoubleBuffer(w, h int) *DoubleBuffer {
	return &DoubleBuffer{
		contexts: [2]*gg.Context{
			gg.NewContext(w, h),
			gg.NewContext(w, h),
		},
	}
}

func (d *DoubleBuffer) back() *gg.Context {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.contexts[1-d.activeIndex]
}

func (d *DoubleBuffer) swap() {
	d.mu.Lock()
	d.activeIndex = 1 - d.activeIndex
	d.mu.Unlock()
}

// StreamManager renders one source through one pipeline
type StreamManager struct {
	pipeline *render.Pipeline
	source   SnapshotSource
	config   StreamConfig

	mu        sync.RWMutex
	streaming bool
	cancel    context.CancelFunc
	done      chan struct{}

	doubleBuffer *DoubleBuffer
	encoder      png.Encoder
	latest       atomic.Value // *EncodedFrame

	// Stats
	framesRendered int64 // atomic
	framesFailed   int64 // atomic
	startTime      time.Time
	errors         []string

	// Callback after each successful frame
	onFrame func(*EncodedFrame)
}

// NewStreamManager creates a stream manager
func NewStreamManager(pipeline *render.Pipeline, source SnapshotSource, config StreamConfig) *StreamManager {
	def := DefaultStreamConfig()
	if config.FPS <= 0 {
		config.FPS = def.FPS
	}
	if config.Heartbeat <= 0 {
		config.Heartbeat = def.Heartbeat
	}

	cfg := pipeline.Config()
	return &StreamManager{
		pipeline:     pipeline,
		source:       source,
		config:       config,
		doubleBuffer: newDoubleBuffer(cfg.Width, cfg.Height),
		encoder:      png.Encoder{CompressionLevel: png.BestSpeed},
	}
}

// OnFrame registers a callback invoked on the loop goroutine after each frame
func (s *StreamManager) OnFrame(callback func(*EncodedFrame)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onFrame = callback
}

// Start launches the frame loop and the catch effect sweeper
func (s *StreamManager) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.streaming {
		return fmt.Errorf("already streaming")
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.streaming = true
	s.startTime = time.Now()

	go s.pipeline.Run(ctx)
	go s.frameLoop(ctx, s.done)

	cfg := s.pipeline.Config()
	log.Printf("🎬 Frame loop started: %dx%d, up to %d fps", cfg.Width, cfg.Height, s.config.FPS)
	return nil
}

// Stop stops the frame loop and waits for it to exit
func (s *StreamManager) Stop() {
	s.mu.Lock()
	if !s.streaming {
		s.mu.Unlock()
		return
	}
	s.streaming = false
	s.cancel()
	done := s.done
	s.mu.Unlock()

	<-done
	log.Println("✅ Frame loop stopped")
}

// IsStreaming returns whether the loop is running
func (s *StreamManager) IsStreaming() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.streaming
}

// Latest returns the most recent frame, nil before the first one
func (s *StreamManager) Latest() *EncodedFrame {
	if v := s.latest.Load(); v != nil {
		return v.(*EncodedFrame)
	}
	return nil
}

// GetStats returns frame loop statistics
func (s *StreamManager) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	uptime := time.Duration(0)
	actualFPS := float64(0)
	rendered := atomic.LoadInt64(&s.framesRendered)

	if s.streaming && !s.startTime.IsZero() {
		uptime = time.Since(s.startTime)
		if uptime.Seconds() > 0 {
			actualFPS = float64(rendered) / uptime.Seconds()
		}
	}

	cfg := s.pipeline.Config()
	return map[string]interface{}{
		"streaming":      s.streaming,
		"framesRendered": rendered,
		"framesFailed":   atomic.LoadInt64(&s.framesFailed),
		"uptime":         uptime.String(),
		"actualFps":      fmt.Sprintf("%.1f", actualFPS),
		"resolution":     fmt.Sprintf("%dx%d", cfg.Width, cfg.Height),
		"fps":            s.config.FPS,
		"errors":         append([]string(nil), s.errors...),
	}
}

// frameLoop renders at most FPS frames per second, and only when the source
// changed or a catch effect is still animating.
func (s *StreamManager) frameLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(time.Second / time.Duration(s.config.FPS))
	defer ticker.Stop()
	heartbeat := time.NewTicker(s.config.Heartbeat)
	defer heartbeat.Stop()

	dirty := true // First frame draws the empty field
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-s.source.Changes():
			if !ok {
				s.renderAndStoreFrame()
				return
			}
			dirty = true
		case <-heartbeat.C:
			if len(s.pipeline.Catches()) > 0 {
				dirty = true
			}
		case <-ticker.C:
			if dirty {
				s.renderAndStoreFrame()
				dirty = false
			}
		}
	}
}

// renderAndStoreFrame renders into the back buffer, encodes it and swaps.
// A failed frame keeps the previous one visible.
func (s *StreamManager) renderAndStoreFrame() {
	dc := s.doubleBuffer.back()
	f, err := s.pipeline.Draw(dc, s.source.Input())
	if err != nil {
		s.recordError(err)
		return
	}

	var buf bytes.Buffer
	if err := s.encoder.Encode(&buf, dc.Image()); err != nil {
		s.recordError(fmt.Errorf("encode frame: %w", err))
		return
	}
	s.doubleBuffer.swap()

	frame := &EncodedFrame{
		PNG:        buf.Bytes(),
		Tick:       f.Tick,
		Drawn:      f.Drawn,
		Skipped:    f.Skipped,
		RenderedAt: time.Now(),
	}
	s.latest.Store(frame)
	atomic.AddInt64(&s.framesRendered, 1)

	s.mu.RLock()
	cb := s.onFrame
	s.mu.RUnlock()
	if cb != nil {
		cb(frame)
	}
}

func (s *StreamManager) recordError(err error) {
	atomic.AddInt64(&s.framesFailed, 1)

	var rerr *render.RenderError
	if errors.As(err, &rerr) {
		log.Printf("⚠️ Frame skipped, layer %s failed: %v", rerr.Layer, rerr.Err)
	} else {
		log.Printf("❌ Frame failed: %v", err)
	}

	s.mu.Lock()
	s.errors = append(s.errors, err.Error())
	if len(s.errors) > 10 {
		s.errors = s.errors[1:]
	}
	s.mu.Unlock()
}
