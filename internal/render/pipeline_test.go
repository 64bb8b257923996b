package render

import (
	"errors"
	"image"
	"image/color"
	"testing"
	"time"

	"golang.org/x/image/font"

	"playviz/internal/sim"
)

func newTestPipeline(onSelect func(string)) *Pipeline {
	cfg := DefaultConfig()
	cfg.Width, cfg.Height = 400, 300
	return NewPipeline(cfg, onSelect)
}

func player(id string, team sim.Team, role sim.Role, x, y float64) sim.Entity {
	return sim.Entity{Kinematics: sim.Kinematics{ID: id, Name: id, Team: team, Role: role, X: x, Y: y}}
}

// TestRenderEmptyField checks a nil snapshot still yields a frame
func TestRenderEmptyField(t *testing.T) {
	p := newTestPipeline(nil)
	f, err := p.Render(Input{})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if f.Image == nil {
		t.Fatal("Expected an image")
	}
	if b := f.Image.Bounds(); b.Dx() != 400 || b.Dy() != 300 {
		t.Errorf("Expected 400x300, got %dx%d", b.Dx(), b.Dy())
	}
	if f.Drawn != 0 {
		t.Errorf("Expected no overlays, got %d", f.Drawn)
	}
}

// TestReceiverPursuitFieldsIgnored checks a receiver never gets a pursuit line
func TestReceiverPursuitFieldsIgnored(t *testing.T) {
	raw := []byte(`{"id":"WR1","role":"receiver","team":"offense","x":5,"y":3,
		"pursuitTargetX":10,"pursuitTargetY":12,"pursuitAngle":0.4}`)
	var wr sim.Entity
	if err := wr.UnmarshalJSON(raw); err != nil {
		t.Fatalf("decode: %v", err)
	}

	p := newTestPipeline(nil)
	rec := &recorder{}
	f, err := p.Draw(rec, Input{Snapshot: &sim.Snapshot{Tick: 4, Players: []sim.Entity{wr}}})
	if err != nil {
		t.Fatalf("Draw failed: %v", err)
	}
	if rec.dashedLines != 0 {
		t.Errorf("Expected no pursuit line, got %d dashed lines", rec.dashedLines)
	}
	if f.Drawn != 1 {
		t.Errorf("Expected only the player marker, got %d overlays", f.Drawn)
	}
}

// TestDefenderPursuitDrawn checks a defender with a pursuit target gets its line
func TestDefenderPursuitDrawn(t *testing.T) {
	cb := player("CB1", sim.TeamDefense, sim.RoleDefender, -5, 8)
	cb.Variant = sim.Defender{Coverage: sim.CoverageMan, PursuitTarget: &sim.Vec{X: 0, Y: 4}}

	p := newTestPipeline(nil)
	rec := &recorder{}
	if _, err := p.Draw(rec, Input{Snapshot: &sim.Snapshot{Tick: 4, Players: []sim.Entity{cb}}}); err != nil {
		t.Fatalf("Draw failed: %v", err)
	}
	if rec.dashedLines != 1 {
		t.Errorf("Expected one pursuit line, got %d", rec.dashedLines)
	}
}

// TestStaleReferencesSkipped checks overlays naming missing ids are skipped
func TestStaleReferencesSkipped(t *testing.T) {
	lev := -0.8
	rb := player("RB", sim.TeamOffense, sim.RoleRB, 0, 3)
	rb.Variant = sim.Ballcarrier{}
	rb.Tackle = &sim.TackleTelemetry{Leverage: &lev, PrimaryTacklerID: "GONE", InTackle: true}
	lg := player("LG", sim.TeamOffense, sim.RoleOL, -2, 0)
	lg.Variant = sim.OL{Block: sim.Block{TargetID: "DT9", Engaged: true}}

	snap := &sim.Snapshot{
		Tick:      20,
		Players:   []sim.Entity{rb, lg},
		Ball:      &sim.BallState{State: sim.BallHeld, CarrierID: "RB"},
		Waypoints: map[string][]sim.Waypoint{"WR9": {{X: 1, Y: 1}}},
	}

	p := newTestPipeline(nil)
	f, err := p.Render(Input{Snapshot: snap})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if f.Skipped != 3 {
		t.Errorf("Expected 3 skipped overlays, got %d", f.Skipped)
	}
	// Players and ball still drawn
	if f.Drawn != 3 {
		t.Errorf("Expected 3 drawn overlays, got %d", f.Drawn)
	}
}

// TestTackleOverlayDrawn checks a resolvable tackle draws its bar
func TestTackleOverlayDrawn(t *testing.T) {
	lev := 0.7
	rb := player("RB", sim.TeamOffense, sim.RoleRB, 0, 3)
	rb.Variant = sim.Ballcarrier{}
	rb.Tackle = &sim.TackleTelemetry{Leverage: &lev, PrimaryTacklerID: "LB", InTackle: true, YardsGained: 1.5}
	lb := player("LB", sim.TeamDefense, sim.RoleDefender, 0, 4)
	lb.Variant = sim.Defender{}

	snap := &sim.Snapshot{
		Tick:    30,
		Players: []sim.Entity{rb, lb},
		Ball:    &sim.BallState{State: sim.BallHeld, CarrierID: "RB"},
	}
	p := newTestPipeline(nil)
	f, err := p.Render(Input{Snapshot: snap})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if f.Skipped != 0 {
		t.Errorf("Expected nothing skipped, got %d", f.Skipped)
	}
	// Two players, the ball and the tackle bar
	if f.Drawn != 4 {
		t.Errorf("Expected 4 drawn overlays, got %d", f.Drawn)
	}
}

// TestBallInFlightDrawn checks the flight arc renders at mid-flight
func TestBallInFlightDrawn(t *testing.T) {
	snap := &sim.Snapshot{
		Tick: 12,
		Ball: &sim.BallState{
			State: sim.BallInFlight, OriginX: 0, OriginY: -7, TargetX: 10, TargetY: 20,
			Progress: 0.5, PeakHeight: 8,
		},
	}
	p := newTestPipeline(nil)
	f, err := p.Render(Input{Snapshot: snap})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if f.Drawn != 1 {
		t.Errorf("Expected the ball drawn, got %d overlays", f.Drawn)
	}
}

// TestCatchAutoSelects checks a completed pass fires onSelect with the receiver
func TestCatchAutoSelects(t *testing.T) {
	var selected []string
	p := newTestPipeline(func(id string) { selected = append(selected, id) })

	wr := player("WR7", sim.TeamOffense, sim.RoleReceiver, 8, 17.6)
	wr.Variant = sim.Receiver{CurrentWaypoint: -1}

	flight := &sim.Snapshot{Tick: 40, Players: []sim.Entity{wr}, Ball: &sim.BallState{State: sim.BallInFlight, Progress: 0.9}}
	caught := &sim.Snapshot{Tick: 41, Players: []sim.Entity{wr}, Ball: &sim.BallState{State: sim.BallHeld, CarrierID: "WR7"}}

	now := time.Now()
	p.Observe(flight, true)
	p.Observe(caught, false)
	f, err := p.Render(Input{Snapshot: caught, Now: now})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	if len(selected) != 1 || selected[0] != "WR7" {
		t.Errorf("Expected WR7 selected once, got %v", selected)
	}
	if len(p.Catches()) != 1 {
		t.Errorf("Expected one active catch effect, got %d", len(p.Catches()))
	}
	// Player, ball and catch effect
	if f.Drawn != 3 {
		t.Errorf("Expected 3 drawn overlays, got %d", f.Drawn)
	}

	p.Reset()
	if len(p.Catches()) != 0 {
		t.Error("Reset should drop catch effects")
	}
}

// TestCatchNotSpawnedAcrossResync checks a jump from a throw to a held ball
// is not mistaken for a catch
func TestCatchNotSpawnedAcrossResync(t *testing.T) {
	var selected []string
	p := newTestPipeline(func(id string) { selected = append(selected, id) })

	wr := player("WR7", sim.TeamOffense, sim.RoleReceiver, 8, 17.6)
	wr.Variant = sim.Receiver{CurrentWaypoint: -1}

	p.Observe(&sim.Snapshot{Tick: 40, Players: []sim.Entity{wr}, Ball: &sim.BallState{State: sim.BallInFlight}}, false)
	p.Observe(&sim.Snapshot{Tick: 90, Players: []sim.Entity{wr}, Ball: &sim.BallState{State: sim.BallHeld, CarrierID: "WR7"}}, true)

	if len(selected) != 0 || len(p.Catches()) != 0 {
		t.Errorf("Expected no catch across a resync, got %v and %d effects", selected, len(p.Catches()))
	}
}

// TestLayerPanicReported checks a failing layer aborts with a RenderError
func TestLayerPanicReported(t *testing.T) {
	p := newTestPipeline(nil)
	rec := &recorder{panicOnImage: true}
	_, err := p.Draw(rec, Input{})

	var rerr *RenderError
	if !errors.As(err, &rerr) {
		t.Fatalf("Expected *RenderError, got %v", err)
	}
	if rerr.Layer != "field" {
		t.Errorf("Expected field layer, got %q", rerr.Layer)
	}
	if rec.depth != 0 {
		t.Errorf("Expected balanced Push/Pop, got depth %d", rec.depth)
	}
}

// recorder is a Surface that counts what was drawn instead of rasterizing.
type recorder struct {
	depth        int
	dashed       bool
	dashedLines  int
	panicOnImage bool
	color        RGBA
	fills        []RGBA
}

func (r *recorder) Push() { r.depth++ }
func (r *recorder) Pop() { r.depth--; r.dashed = false }
func (r *recorder) SetColor(color.Color) {}
func (r *recorder) SetRGBA(cr, cg, cb, ca float64) { r.color = RGBA{cr, cg, cb, ca} }
func (r *recorder) SetLineWidth(float64) {}
func (r *recorder) SetDash(d ...float64) { r.dashed = len(d) > 0 }
func (r *recorder) SetFontFace(font.Face) {}
func (r *recorder) MoveTo(_, _ float64) {}
func (r *recorder) LineTo(_, _ float64) {}
func (r *recorder) NewSubPath() {}
func (r *recorder) ClearPath() {}
func (r *recorder) DrawCircle(_, _, _ float64) {}
func (r *recorder) DrawRectangle(_, _, _, _ float64) {}
func (r *recorder) DrawRoundedRectangle(_, _, _, _, _ float64) {}
func (r *recorder) DrawStringAnchored(string, float64, float64, float64, float64) {}
func (r *recorder) Fill() { r.fills = append(r.fills, r.color) }
func (r *recorder) Stroke() {}

func (r *recorder) DrawLine(_, _, _, _ float64) {
	if r.dashed {
		r.dashedLines++
	}
}

func (r *recorder) DrawImage(image.Image, int, int) {
	if r.panicOnImage {
		panic("surface lost")
	}
}

// TestZoneDrawsRegionAndAnchor checks a zone fills its region translucent and
// its anchor in the stronger zone shade
func TestZoneDrawsRegionAndAnchor(t *testing.T) {
	p := newTestPipeline(nil)
	rec := &recorder{}
	fs := &frameState{snap: &sim.Snapshot{Zones: map[string]sim.ZoneBoundary{
		"hook_l": {MinX: -20, MaxX: -5, MinY: 5, MaxY: 15, AnchorX: -12, AnchorY: 10},
	}}}
	p.drawZones(rec, fs)

	if len(rec.fills) != 2 {
		t.Fatalf("Expected region and anchor fills, got %d", len(rec.fills))
	}
	if rec.fills[0] != colorZone || rec.fills[1] != colorZoneAnchor {
		t.Errorf("Expected zone then anchor colors, got %+v", rec.fills)
	}
	if a := colorZoneAnchor.A; a <= colorZone.A || a > 1 {
		t.Errorf("Expected anchor alpha above the region and at most 1, got %f", a)
	}
	if fs.c.drawn != 1 {
		t.Errorf("Expected one zone drawn, got %d", fs.c.drawn)
	}
}
