package visual

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"playviz/internal/sim"
)

// Catch effect timing and geometry
const (
	CatchEffectDuration = 1500 * time.Millisecond
	CatchSweepInterval  = 100 * time.Millisecond
	CatchRingStart      = 8.0  // px
	CatchRingEnd        = 48.0 // px
	CatchLabelRise      = 30.0 // px the label floats up over the effect
)

// CatchEffect is a short-lived decoration marking a completed catch.
type CatchEffect struct {
	ID         string
	X, Y       float64 // Yards, where the catch happened
	StartTime  time.Time
	AirYards   int
	PlayerName string
	PlayerID   string
}

// Elapsed returns the effect's age clamped to [0, duration] as a fraction.
func (c CatchEffect) Elapsed(now time.Time) float64 {
	f := float64(now.Sub(c.StartTime)) / float64(CatchEffectDuration)
	return clamp01(f)
}

// Expired reports whether the effect has reached its full duration.
func (c CatchEffect) Expired(now time.Time) bool {
	return now.Sub(c.StartTime) >= CatchEffectDuration
}

// RingRadius eases the ring out from its start to end radius.
func (c CatchEffect) RingRadius(now time.Time) float64 {
	p := c.Elapsed(now)
	ease := 1 - (1-p)*(1-p)
	return CatchRingStart + (CatchRingEnd-CatchRingStart)*ease
}

// Opacity fades linearly to zero over the effect's lifetime.
func (c CatchEffect) Opacity(now time.Time) float64 {
	return 1 - c.Elapsed(now)
}

// LabelOffset is how far above the catch point the label has floated.
func (c CatchEffect) LabelOffset(now time.Time) float64 {
	return CatchLabelRise * c.Elapsed(now)
}

// CatchTracker detects in_flight → held transitions and owns the active set
// of catch effects. Observe must see every applied snapshot in order, not
// just the ones that get drawn; Sweep may run on its own goroutine.
type CatchTracker struct {
	mu      sync.Mutex
	effects []CatchEffect
	prev    *sim.BallState
	now     func() time.Time
	OnSpawn func(CatchEffect)
}

// NewCatchTracker creates a tracker using the wall clock.
func NewCatchTracker() *CatchTracker {
	return &CatchTracker{now: time.Now}
}

// Observe compares the ball against the last observed state. When the ball
// went from in flight to held by a pass catcher it spawns one effect at the
// carrier and returns it.
//
// The role filter is a heuristic: a lateral to a lineman after a throw, or
// any trick play that hands a caught ball to a non-catcher, will not spawn
// an effect even though a catch happened.
func (c *CatchTracker) Observe(s *sim.Snapshot) (CatchEffect, bool) {
	var cur *sim.BallState
	if s != nil && s.Ball != nil {
		b := *s.Ball
		cur = &b
	}

	c.mu.Lock()
	prev := c.prev
	c.prev = cur
	c.mu.Unlock()

	if prev == nil || cur == nil || prev.State != sim.BallInFlight || cur.State != sim.BallHeld {
		return CatchEffect{}, false
	}
	carrier, ok := s.Carrier()
	if !ok || !carrier.IsPassCatcher() {
		return CatchEffect{}, false
	}

	e := CatchEffect{
		ID:         uuid.NewString(),
		X:          carrier.X,
		Y:          carrier.Y,
		StartTime:  c.now(),
		AirYards:   int(math.Round(carrier.Y)),
		PlayerName: carrier.Name,
		PlayerID:   carrier.ID,
	}
	c.mu.Lock()
	c.effects = append(c.effects, e)
	c.mu.Unlock()

	if c.OnSpawn != nil {
		c.OnSpawn(e)
	}
	return e, true
}

// Rebase records s as the previous state without looking for a catch. Use it
// after a jump (full resync, seek, rewind) where the two states are not
// consecutive ticks.
func (c *CatchTracker) Rebase(s *sim.Snapshot) {
	var cur *sim.BallState
	if s != nil && s.Ball != nil {
		b := *s.Ball
		cur = &b
	}
	c.mu.Lock()
	c.prev = cur
	c.mu.Unlock()
}

// Active returns a copy of the live effects.
func (c *CatchTracker) Active() []CatchEffect {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]CatchEffect(nil), c.effects...)
}

// Sweep removes every effect that has reached its duration and returns how
// many were removed.
func (c *CatchTracker) Sweep() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()

	kept := c.effects[:0]
	for _, e := range c.effects {
		if !e.Expired(now) {
			kept = append(kept, e)
		}
	}
	removed := len(c.effects) - len(kept)
	c.effects = kept
	return removed
}

// Reset forgets the previous ball state and drops all effects.
func (c *CatchTracker) Reset() {
	c.mu.Lock()
	c.prev = nil
	c.effects = nil
	c.mu.Unlock()
}

// RunSweeper sweeps on the given interval until ctx is cancelled.
func (c *CatchTracker) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = CatchSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Sweep()
		}
	}
}
