// Package field maps play-space coordinates (yards relative to the line of
// scrimmage) to canvas pixels and back.
//
// Play-space axes:
//   - x: lateral yards from the center of the field (negative = left)
//   - y: downfield yards from the line of scrimmage (negative = backfield)
//   - h: height above the turf in yards
//
// Downfield is "up" on screen, so the Y axis is inverted.
package field

import "math"

const (
	// WidthYards is the sideline-to-sideline width of the field.
	WidthYards = 53.33

	// HalfWidthYards is the distance from the center line to either sideline.
	HalfWidthYards = WidthYards / 2

	// DefaultHitRadius is the pick radius around an entity marker, in pixels.
	DefaultHitRadius = 14.0
)

// Point is a position in play-space yards.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ScreenPoint is a position in canvas pixels.
type ScreenPoint struct {
	X, Y float64
}

// Transform holds the three per-canvas constants. Every consumer that draws
// or hit-tests against a frame must use the Transform that produced it.
type Transform struct {
	FieldCenterX  float64 // Pixel X of the field's center line
	LosScreenY    float64 // Pixel Y of the line of scrimmage
	PixelsPerYard float64 // Uniform scale for both axes
}

// New returns a Transform. A non-positive scale falls back to 1 px/yd so the
// inverse never divides by zero.
func New(centerX, losY, pixelsPerYard float64) Transform {
	if pixelsPerYard <= 0 || math.IsNaN(pixelsPerYard) {
		pixelsPerYard = 1
	}
	return Transform{
		FieldCenterX:  centerX,
		LosScreenY:    losY,
		PixelsPerYard: pixelsPerYard,
	}
}

// ForCanvas centers the field horizontally on a canvas of the given width and
// places the line of scrimmage at losFraction of the height, measured from the top.
func ForCanvas(width, height int, pixelsPerYard, losFraction float64) Transform {
	if losFraction <= 0 || losFraction >= 1 {
		losFraction = 0.7
	}
	return New(float64(width)/2, float64(height)*losFraction, pixelsPerYard)
}

// ToScreen maps a play-space point to canvas pixels.
func (t Transform) ToScreen(x, y float64) ScreenPoint {
	return ScreenPoint{
		X: t.FieldCenterX + x*t.PixelsPerYard,
		Y: t.LosScreenY - y*t.PixelsPerYard,
	}
}

// ToScreenWithHeight maps a point lifted h yards off the turf. Height is drawn
// as a straight upward screen offset.
func (t Transform) ToScreenWithHeight(x, y, h float64) ScreenPoint {
	p := t.ToScreen(x, y)
	if h > 0 {
		p.Y -= h * t.PixelsPerYard
	}
	return p
}

// ToYards is the inverse of ToScreen.
func (t Transform) ToYards(sx, sy float64) Point {
	return Point{
		X: (sx - t.FieldCenterX) / t.PixelsPerYard,
		Y: (t.LosScreenY - sy) / t.PixelsPerYard,
	}
}

// Yards converts a length in yards to pixels.
func (t Transform) Yards(n float64) float64 {
	return n * t.PixelsPerYard
}

// SidelineX returns the pixel X of the left and right sidelines.
func (t Transform) SidelineX() (left, right float64) {
	return t.ToScreen(-HalfWidthYards, 0).X, t.ToScreen(HalfWidthYards, 0).X
}

// Hit reports whether the screen point (sx, sy) falls within radius pixels of
// the marker drawn for the play-space point p.
func (t Transform) Hit(p Point, sx, sy, radius float64) bool {
	// Compare in yards so hit-testing runs through the inverse mapping.
	q := t.ToYards(sx, sy)
	r := radius / t.PixelsPerYard
	dx, dy := q.X-p.X, q.Y-p.Y
	return dx*dx+dy*dy <= r*r
}

// Distance returns the pixel distance between a screen point and the marker
// for p, for ranking overlapping hits.
func (t Transform) Distance(p Point, sx, sy float64) float64 {
	s := t.ToScreen(p.X, p.Y)
	return math.Hypot(s.X-sx, s.Y-sy)
}
