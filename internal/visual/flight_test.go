package visual

import (
	"math"
	"testing"

	"playviz/internal/field"
	"playviz/internal/sim"
)

// TestHeightEndpointsAndPeak checks the parabola is zero at both ends and peaks at 0.5
func TestHeightEndpointsAndPeak(t *testing.T) {
	for _, peak := range []float64{0, 0.5, 3, 12.25, 40} {
		if h := Height(peak, 0); h != 0 {
			t.Errorf("peak %f: expected 0 at t=0, got %f", peak, h)
		}
		if h := Height(peak, 1); h != 0 {
			t.Errorf("peak %f: expected 0 at t=1, got %f", peak, h)
		}
		if h := Height(peak, 0.5); math.Abs(h-peak) > 1e-9 {
			t.Errorf("peak %f: expected peak at t=0.5, got %f", peak, h)
		}
	}
}

// TestHeightNeverNegative checks negative peaks and out-of-range t are clamped
func TestHeightNeverNegative(t *testing.T) {
	for _, tt := range []float64{-0.5, 0, 0.3, 1, 1.5} {
		if h := Height(-5, tt); h < 0 {
			t.Errorf("Height(-5, %f) = %f, should never be negative", tt, h)
		}
		if h := Height(5, tt); h < 0 {
			t.Errorf("Height(5, %f) = %f, should never be negative", tt, h)
		}
	}
}

// TestFlightInterpolatesGround checks linear XY interpolation
func TestFlightInterpolatesGround(t *testing.T) {
	f := Flight{Origin: field.Point{X: 0, Y: -7}, Target: field.Point{X: 10, Y: 13}, Peak: 6, Progress: 0.25}
	p := f.Current()
	if p.X != 2.5 || p.Y != -2 {
		t.Errorf("Expected (2.5,-2), got (%f,%f)", p.X, p.Y)
	}
	if math.Abs(p.Height-4.5) > 1e-9 {
		t.Errorf("Expected height 4.5, got %f", p.Height)
	}
}

// TestArcSampling checks the sample floor and the traveled prefix
func TestArcSampling(t *testing.T) {
	f := Flight{Target: field.Point{Y: 20}, Peak: 5, Progress: 0.43}
	if n := len(f.Arc(4)); n != MinArcSamples+1 {
		t.Errorf("Expected sample count raised to %d points, got %d", MinArcSamples+1, n)
	}
	arc := f.Arc(DefaultArcSamples)
	if arc[0].Height != 0 || arc[len(arc)-1].Height != 0 {
		t.Error("Arc should start and end on the ground")
	}
	tr := f.Traveled(DefaultArcSamples)
	if last := tr[len(tr)-1]; last.T != 0.43 {
		t.Errorf("Traveled arc should end at the ball, got t=%f", last.T)
	}
}

// TestNewFlightOnlyInFlight checks the model ignores held balls and clamps input
func TestNewFlightOnlyInFlight(t *testing.T) {
	if _, ok := NewFlight(&sim.BallState{State: sim.BallHeld}); ok {
		t.Error("Held ball should not produce a flight")
	}
	if _, ok := NewFlight(nil); ok {
		t.Error("Missing ball should not produce a flight")
	}
	f, ok := NewFlight(&sim.BallState{State: sim.BallInFlight, PeakHeight: -3, Progress: 2})
	if !ok {
		t.Fatal("Expected a flight")
	}
	if f.Peak != 0 || f.Progress != 1 {
		t.Errorf("Expected clamped peak 0 and progress 1, got %f/%f", f.Peak, f.Progress)
	}
}
