package visual

import (
	"math"

	"playviz/internal/field"
	"playviz/internal/sim"
)

// Arc sampling constants
const (
	MinArcSamples     = 20
	DefaultArcSamples = 24
)

// ArcPoint is one sample of the ball's path: ground position plus height.
type ArcPoint struct {
	field.Point
	Height float64
	T      float64
}

// Flight is the parabolic model of a ball in the air. Peak and progress are
// clamped on construction so every derived height is non-negative.
type Flight struct {
	Origin   field.Point
	Target   field.Point
	Peak     float64
	Progress float64
	Type     string
}

// NewFlight builds a flight model from a ball state. ok is false unless the
// ball is in flight.
func NewFlight(b *sim.BallState) (Flight, bool) {
	if b == nil || b.State != sim.BallInFlight {
		return Flight{}, false
	}
	return Flight{
		Origin:   b.Origin(),
		Target:   b.Target(),
		Peak:     clampPeak(b.PeakHeight),
		Progress: clamp01(b.Progress),
		Type:     b.ThrowType,
	}, true
}

// Height is 4·peak·t·(1−t): zero at both ends, peak at t=0.5.
func Height(peak, t float64) float64 {
	peak = clampPeak(peak)
	t = clamp01(t)
	return 4 * peak * t * (1 - t)
}

// At returns the ground position and height at fraction t of the flight.
func (f Flight) At(t float64) ArcPoint {
	t = clamp01(t)
	return ArcPoint{
		Point: field.Point{
			X: f.Origin.X + (f.Target.X-f.Origin.X)*t,
			Y: f.Origin.Y + (f.Target.Y-f.Origin.Y)*t,
		},
		Height: Height(f.Peak, t),
		T:      t,
	}
}

// Current returns the ball's position at its current progress.
func (f Flight) Current() ArcPoint { return f.At(f.Progress) }

// Arc samples the whole flight at n intervals (n+1 points). n below the
// minimum is raised to it.
func (f Flight) Arc(n int) []ArcPoint {
	if n < MinArcSamples {
		n = MinArcSamples
	}
	pts := make([]ArcPoint, n+1)
	for i := 0; i <= n; i++ {
		pts[i] = f.At(float64(i) / float64(n))
	}
	return pts
}

// Traveled samples the flight from t=0 to the current progress using the
// same spacing as Arc, ending exactly at the ball.
func (f Flight) Traveled(n int) []ArcPoint {
	if n < MinArcSamples {
		n = MinArcSamples
	}
	steps := int(math.Floor(f.Progress * float64(n)))
	pts := make([]ArcPoint, 0, steps+2)
	for i := 0; i <= steps; i++ {
		pts = append(pts, f.At(float64(i)/float64(n)))
	}
	if last := pts[len(pts)-1]; last.T < f.Progress {
		pts = append(pts, f.Current())
	}
	return pts
}

func clampPeak(p float64) float64 {
	if p < 0 || math.IsNaN(p) || math.IsInf(p, 0) {
		return 0
	}
	return p
}

func clamp01(t float64) float64 {
	switch {
	case math.IsNaN(t), t < 0:
		return 0
	case t > 1:
		return 1
	}
	return t
}
