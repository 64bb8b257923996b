// Package visual derives drawable models from simulation state: motion
// trails, ball flight arcs, tackle leverage bars and catch effects.
package visual

import (
	"playviz/internal/field"
	"playviz/internal/sim"
)

// HistoryCapacity is the number of samples kept per entity.
const HistoryCapacity = 60

// Trail is a fixed-size ring buffer of recent positions for one entity.
type Trail struct {
	points     [HistoryCapacity]field.Point
	writeIndex int
	count      int
}

// Add appends a sample, dropping the oldest past capacity.
func (t *Trail) Add(x, y float64) {
	t.points[t.writeIndex] = field.Point{X: x, Y: y}
	t.writeIndex = (t.writeIndex + 1) % HistoryCapacity
	if t.count < HistoryCapacity {
		t.count++
	}
}

// Len returns the number of valid samples.
func (t *Trail) Len() int { return t.count }

// Points returns all valid samples in order (oldest first).
func (t *Trail) Points() []field.Point {
	if t.count == 0 {
		return nil
	}
	result := make([]field.Point, t.count)
	start := t.writeIndex - t.count
	if start < 0 {
		start += HistoryCapacity
	}
	for i := 0; i < t.count; i++ {
		result[i] = t.points[(start+i)%HistoryCapacity]
	}
	return result
}

// TrailAlpha is the dot opacity for sample i of n; newer samples are brighter.
func TrailAlpha(i, n int) float64 {
	if n <= 0 {
		return 0
	}
	return float64(i) / float64(n) * 0.5
}

// History maps entity id to its trail. Ids that leave the snapshot keep their
// trail but are never drawn again; memory is bounded by ids seen in a session.
// Not safe for concurrent use; the owning session serializes access.
type History struct {
	trails map[string]*Trail
}

// NewHistory creates an empty history.
func NewHistory() *History {
	return &History{trails: make(map[string]*Trail)}
}

// Record appends the current position of every entity, creating trails on
// first sight.
func (h *History) Record(players []sim.Entity) {
	for _, e := range players {
		t, ok := h.trails[e.ID]
		if !ok {
			t = &Trail{}
			h.trails[e.ID] = t
		}
		t.Add(e.X, e.Y)
	}
}

// Clear drops every trail.
func (h *History) Clear() {
	h.trails = make(map[string]*Trail)
}

// Len returns the sample count for id.
func (h *History) Len(id string) int {
	if t, ok := h.trails[id]; ok {
		return t.Len()
	}
	return 0
}

// Points returns the samples for id, oldest first.
func (h *History) Points(id string) []field.Point {
	if t, ok := h.trails[id]; ok {
		return t.Points()
	}
	return nil
}

// Snapshot copies every trail so it can be drawn while recording continues.
func (h *History) Snapshot() map[string][]field.Point {
	out := make(map[string][]field.Point, len(h.trails))
	for id, t := range h.trails {
		out[id] = t.Points()
	}
	return out
}
