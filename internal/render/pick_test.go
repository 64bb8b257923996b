package render

import (
	"testing"

	"playviz/internal/sim"
)

// TestPickNearestWithinRadius checks picking round-trips through the transform
func TestPickNearestWithinRadius(t *testing.T) {
	var selected string
	p := newTestPipeline(func(id string) { selected = id })

	a := player("A", sim.TeamOffense, sim.RoleReceiver, 0, 5)
	b := player("B", sim.TeamDefense, sim.RoleDefender, 0.5, 5)
	if _, err := p.Render(Input{Snapshot: &sim.Snapshot{Tick: 1, Players: []sim.Entity{a, b}}}); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	s := p.Transform().ToScreen(0.45, 5)
	id, ok := p.Select(s.X, s.Y)
	if !ok || id != "B" {
		t.Errorf("Expected B, got %q (ok=%v)", id, ok)
	}
	if selected != "B" {
		t.Errorf("Expected onSelect with B, got %q", selected)
	}
}

// TestPickMiss checks a click away from every marker selects nothing
func TestPickMiss(t *testing.T) {
	p := newTestPipeline(nil)
	a := player("A", sim.TeamOffense, sim.RoleReceiver, 0, 5)
	if _, err := p.Render(Input{Snapshot: &sim.Snapshot{Tick: 1, Players: []sim.Entity{a}}}); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	s := p.Transform().ToScreen(10, 5)
	if id, ok := p.Pick(s.X, s.Y); ok {
		t.Errorf("Expected a miss, got %q", id)
	}
}

// TestPickBeforeFirstFrame checks picking with nothing drawn
func TestPickBeforeFirstFrame(t *testing.T) {
	p := newTestPipeline(nil)
	if _, ok := p.Pick(10, 10); ok {
		t.Error("Expected no pick before a frame is drawn")
	}
}
