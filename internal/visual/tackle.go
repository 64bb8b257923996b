package visual

import (
	"fmt"

	"playviz/internal/field"
	"playviz/internal/sim"
)

// EngagementState is the textual state of a contested tackle.
type EngagementState string

const (
	BreakingFree EngagementState = "breaking free"
	GoingDown    EngagementState = "going down"
	Struggle     EngagementState = "struggle"
)

// Thresholds and bar geometry in pixels
const (
	LeverageThreshold = 0.6
	YACLabelMin       = 0.1
	BarWidth          = 60.0
	BarHeight         = 6.0
)

// StateFor maps a leverage value to its engagement state.
func StateFor(leverage float64) EngagementState {
	leverage = sim.ClampLeverage(leverage)
	switch {
	case leverage > LeverageThreshold:
		return BreakingFree
	case leverage < -LeverageThreshold:
		return GoingDown
	}
	return Struggle
}

// BarFill returns the signed fill width for a bar of the given width. The
// fill grows from the center toward the winning side and its magnitude never
// exceeds half the bar.
func BarFill(leverage, width float64) float64 {
	if width <= 0 {
		return 0
	}
	return sim.ClampLeverage(leverage) * width / 2
}

// Engagement is everything the tackle overlay needs for one frame.
type Engagement struct {
	CarrierID string
	TacklerID string
	Leverage  float64
	State     EngagementState
	Center    field.ScreenPoint
	Fill      float64
	YAC       float64
}

// Label returns the "+N.N YAC" text, empty when the gain is too small to show.
func (e Engagement) Label() string {
	if e.YAC <= YACLabelMin {
		return ""
	}
	return fmt.Sprintf("+%.1f YAC", e.YAC)
}

// Engage derives the overlay for a carrier in a tackle. ok is false when there
// is no contested tackle or the tackler id does not resolve in the snapshot;
// the overlay is then skipped for this frame.
func Engage(s *sim.Snapshot, carrier sim.Entity, tr field.Transform) (Engagement, bool) {
	t := carrier.Tackle
	if t == nil || !t.InTackle || t.PrimaryTacklerID == "" {
		return Engagement{}, false
	}
	tackler, ok := s.Find(t.PrimaryTacklerID)
	if !ok {
		return Engagement{}, false
	}

	var lev float64
	if t.Leverage != nil {
		lev = sim.ClampLeverage(*t.Leverage)
	}
	a := tr.ToScreen(carrier.X, carrier.Y)
	b := tr.ToScreen(tackler.X, tackler.Y)
	return Engagement{
		CarrierID: carrier.ID,
		TacklerID: tackler.ID,
		Leverage:  lev,
		State:     StateFor(lev),
		Center:    field.ScreenPoint{X: (a.X + b.X) / 2, Y: (a.Y + b.Y) / 2},
		Fill:      BarFill(lev, BarWidth),
		YAC:       t.YardsGained,
	}, true
}

// YACTracker holds the running yards-after-contact for one engagement. The
// value only grows while InTackle holds and resets once it drops.
type YACTracker struct {
	carrierID string
	max       float64
}

// Observe folds one tick of carrier telemetry in and returns the value to show.
func (y *YACTracker) Observe(carrier sim.Entity, ok bool) float64 {
	if !ok || carrier.Tackle == nil || !carrier.Tackle.InTackle {
		y.Reset()
		return 0
	}
	if carrier.ID != y.carrierID {
		y.carrierID = carrier.ID
		y.max = 0
	}
	if g := carrier.Tackle.YardsGained; g > y.max {
		y.max = g
	}
	return y.max
}

// Reset ends the current engagement.
func (y *YACTracker) Reset() {
	y.carrierID = ""
	y.max = 0
}
