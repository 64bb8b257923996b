// Package render turns a session snapshot into a frame. Static field
// geometry is drawn once and cached; every frame then draws the dynamic
// layers over it in a fixed z-order.
package render

import (
	"context"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/fogleman/gg"

	"playviz/internal/field"
	"playviz/internal/metrics"
	"playviz/internal/sim"
	"playviz/internal/visual"
)

// Config fixes the canvas geometry. The transform derived from it is used
// for both drawing and picking.
type Config struct {
	Width          int
	Height         int
	PixelsPerYard  float64
	LOSFraction    float64 // LOS height from the top, as a fraction of the canvas
	FirstDownYards float64 // 0 hides the first-down line
	HitRadius      float64 // px
	ArcSamples     int
	FontPath       string
}

// DefaultConfig returns a canvas that fits the full field width with room
// for ~30 yards downfield.
func DefaultConfig() Config {
	return Config{
		Width:          900,
		Height:         700,
		PixelsPerYard:  15,
		LOSFraction:    0.7,
		FirstDownYards: 10,
		HitRadius:      field.DefaultHitRadius,
		ArcSamples:     visual.DefaultArcSamples,
	}
}

// Input is everything one frame is drawn from.
type Input struct {
	Snapshot *sim.Snapshot // nil draws the empty field
	Trails   map[string][]field.Point
	Selected string
	Pacing   string
	Now      time.Time
}

// Frame is a rendered image plus what went into it.
type Frame struct {
	Image   image.Image
	Tick    int
	Drawn   int // Overlay elements drawn
	Skipped int // Overlay elements skipped for referencing a missing entity
}

// RenderError reports a layer that failed; the host shows its fallback view.
type RenderError struct {
	Layer string
	Err   error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render %s: %v", e.Layer, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// counts accumulates per-frame overlay stats.
type counts struct {
	drawn   int
	skipped map[string]int
}

func (c *counts) skip(layer string) {
	if c.skipped == nil {
		c.skipped = make(map[string]int)
	}
	c.skipped[layer]++
}

func (c *counts) totalSkipped() int {
	n := 0
	for _, v := range c.skipped {
		n += v
	}
	return n
}

// Pipeline renders frames for one canvas. Input goes in through Render; the
// only output to the host besides the frame is the onSelect callback.
type Pipeline struct {
	cfg   Config
	tr    field.Transform
	fonts Fonts

	staticOnce sync.Once
	static     image.Image

	catches  *visual.CatchTracker
	onSelect func(id string)

	drawMu sync.Mutex // Serializes frames; guards yac
	yac    visual.YACTracker

	mu   sync.Mutex
	last *sim.Snapshot // Last snapshot drawn, for picking
}

// NewPipeline creates a pipeline. onSelect is called when the operator picks
// an entity or a catch auto-selects the receiver; it may be nil.
func NewPipeline(cfg Config, onSelect func(id string)) *Pipeline {
	def := DefaultConfig()
	if cfg.Width <= 0 || cfg.Height <= 0 {
		cfg.Width, cfg.Height = def.Width, def.Height
	}
	if cfg.PixelsPerYard <= 0 {
		cfg.PixelsPerYard = def.PixelsPerYard
	}
	if cfg.HitRadius <= 0 {
		cfg.HitRadius = def.HitRadius
	}
	if cfg.ArcSamples < visual.MinArcSamples {
		cfg.ArcSamples = def.ArcSamples
	}

	p := &Pipeline{
		cfg:      cfg,
		tr:       field.ForCanvas(cfg.Width, cfg.Height, cfg.PixelsPerYard, cfg.LOSFraction),
		fonts:    LoadFonts(cfg.FontPath),
		catches:  visual.NewCatchTracker(),
		onSelect: onSelect,
	}
	p.catches.OnSpawn = func(e visual.CatchEffect) {
		metrics.RecordCatchEffect()
		if p.onSelect != nil {
			p.onSelect(e.PlayerID)
		}
	}
	return p
}

// Transform returns the mapping every frame from this pipeline is drawn with.
func (p *Pipeline) Transform() field.Transform { return p.tr }

// Config returns the canvas configuration.
func (p *Pipeline) Config() Config { return p.cfg }

// Run sweeps expired catch effects until ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context) {
	p.catches.RunSweeper(ctx, visual.CatchSweepInterval)
}

// Observe feeds one applied snapshot to catch detection. The source calls it
// for every snapshot in order, whether or not a frame is drawn for it; resync
// marks a jump that cannot be a catch.
func (p *Pipeline) Observe(s *sim.Snapshot, resync bool) {
	if resync {
		p.catches.Rebase(s)
		return
	}
	p.catches.Observe(s)
}

// Catches returns the active catch effects.
func (p *Pipeline) Catches() []visual.CatchEffect {
	return p.catches.Active()
}

// Reset forgets catch and tackle tracking, e.g. when a new play starts.
func (p *Pipeline) Reset() {
	p.catches.Reset()
	p.drawMu.Lock()
	p.yac.Reset()
	p.drawMu.Unlock()
	p.mu.Lock()
	p.last = nil
	p.mu.Unlock()
}

// Render draws one frame into a new image.
func (p *Pipeline) Render(in Input) (*Frame, error) {
	dc := gg.NewContext(p.cfg.Width, p.cfg.Height)
	f, err := p.Draw(dc, in)
	if err != nil {
		return nil, err
	}
	f.Image = dc.Image()
	return f, nil
}

// layer is one z-ordered drawing pass.
type layer struct {
	name string
	draw func(dc Surface, f *frameState)
}

// frameState is the per-frame scratch shared across layers.
type frameState struct {
	in    Input
	snap  *sim.Snapshot
	index map[string]sim.Entity
	c     counts
}

// Draw draws one frame onto dc. A layer that panics aborts the frame with a
// *RenderError instead of taking the caller down.
func (p *Pipeline) Draw(dc Surface, in Input) (*Frame, error) {
	p.drawMu.Lock()
	defer p.drawMu.Unlock()

	start := time.Now()
	if in.Now.IsZero() {
		in.Now = time.Now()
	}

	fs := &frameState{in: in, snap: in.Snapshot}
	if fs.snap != nil {
		fs.index = make(map[string]sim.Entity, len(fs.snap.Players))
		for _, e := range fs.snap.Players {
			fs.index[e.ID] = e
		}
		if fs.snap.Tick == 0 && !fs.snap.IsRunning {
			p.yac.Reset()
		}
	}

	layers := []layer{
		{"field", p.drawStatic},
		{"zones", p.drawZones},
		{"trails", p.drawTrails},
		{"waypoints", p.drawWaypoints},
		{"blocking", p.drawBlocking},
		{"pursuit", p.drawPursuit},
		{"tackle", p.drawTackle},
		{"players", p.drawPlayers},
		{"ball", p.drawBall},
		{"catches", p.drawCatches},
		{"hud", p.drawHUD},
	}
	for _, l := range layers {
		if err := runLayer(dc, l, fs); err != nil {
			return nil, err
		}
	}

	p.mu.Lock()
	p.last = fs.snap
	p.mu.Unlock()

	for name, n := range fs.c.skipped {
		metrics.RecordSkipped(name, n)
	}
	metrics.RecordRender(time.Since(start))

	f := &Frame{Drawn: fs.c.drawn, Skipped: fs.c.totalSkipped()}
	if fs.snap != nil {
		f.Tick = fs.snap.Tick
	}
	return f, nil
}

func runLayer(dc Surface, l layer, fs *frameState) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &RenderError{Layer: l.name, Err: fmt.Errorf("%v", r)}
		}
	}()
	dc.Push()
	defer dc.Pop()
	l.draw(dc, fs)
	return nil
}
