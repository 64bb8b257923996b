package playback

import (
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"playviz/internal/field"
	"playviz/internal/sim"
	"playviz/internal/visual"
)

// Replay clock constants
const (
	BaseTickRate = 50 * time.Millisecond // One tick of simulated time
	MinSpeed     = 0.25
	MaxSpeed     = 8.0
)

// PlaybackState is a copy of the replay position.
type PlaybackState struct {
	CurrentTick int     `json:"currentTick"`
	TotalTicks  int     `json:"totalTicks"`
	IsPlaying   bool    `json:"isPlaying"`
	Speed       float64 `json:"speed"`
}

// ReplayOption configures a Replay.
type ReplayOption func(*Replay)

// WithBaseRate overrides the duration of one tick at speed 1.
func WithBaseRate(d time.Duration) ReplayOption {
	return func(r *Replay) {
		if d > 0 {
			r.baseRate = d
		}
	}
}

// WithOnComplete sets the callback fired when playing reaches the last tick.
func WithOnComplete(fn func()) ReplayOption {
	return func(r *Replay) { r.onComplete = fn }
}

// WithOnAdvance sets the callback told about every frame the position moves
// to, in order. resync is false only when the new frame directly follows the
// previous one (clock tick or single step forward). It runs with the replay
// locked and must not call back into it.
func WithOnAdvance(fn func(snap *sim.Snapshot, resync bool)) ReplayOption {
	return func(r *Replay) { r.onAdvance = fn }
}

// Replay plays a pre-computed frame array locally. The current tick is
// always within [0, total-1].
type Replay struct {
	ID string

	mu         sync.Mutex
	frames     []sim.PlayFrame
	current    int
	playing    bool
	speed      float64
	baseRate   time.Duration
	onComplete func()
	onAdvance  func(*sim.Snapshot, bool)
	closed     bool

	gen     uint64 // Bumped whenever the clock is stopped or restarted
	stop    chan struct{}
	wg      sync.WaitGroup
	changes chan struct{}
}

// NewReplay creates a paused replay at tick 0.
func NewReplay(frames []sim.PlayFrame, opts ...ReplayOption) *Replay {
	r := &Replay{
		ID:       uuid.NewString(),
		frames:   frames,
		speed:    1,
		baseRate: BaseTickRate,
		changes:  make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// State returns the current playback state.
func (r *Replay) State() PlaybackState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return PlaybackState{
		CurrentTick: r.current,
		TotalTicks:  len(r.frames),
		IsPlaying:   r.playing,
		Speed:       r.speed,
	}
}

// Snapshot returns the frame at the current tick, nil for an empty replay.
func (r *Replay) Snapshot() *sim.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.frames) == 0 {
		return nil
	}
	return r.frames[r.current].Snapshot()
}

// Trails rebuilds position history from the frames leading up to the
// current tick, so scrubbing backwards shows the trails as they were.
func (r *Replay) Trails() map[string][]field.Point {
	r.mu.Lock()
	defer r.mu.Unlock()
	h := visual.NewHistory()
	if len(r.frames) == 0 {
		return h.Snapshot()
	}
	for i := max(0, r.current-visual.HistoryCapacity+1); i <= r.current; i++ {
		h.Record(r.frames[i].Players)
	}
	return h.Snapshot()
}

// Changes delivers a value after the position or play state changes.
func (r *Replay) Changes() <-chan struct{} {
	return r.changes
}

// Play starts the clock. Playing from the last tick restarts from 0. A
// single frame replay is already at its end, so it completes at once.
func (r *Replay) Play() {
	r.mu.Lock()
	if r.closed || r.playing || len(r.frames) == 0 {
		r.mu.Unlock()
		return
	}
	if len(r.frames) == 1 {
		onComplete := r.onComplete
		r.mu.Unlock()
		if onComplete != nil {
			onComplete()
		}
		return
	}
	if r.current >= len(r.frames)-1 {
		from := r.current
		r.current = 0
		r.advancedLocked(from)
	}
	r.playing = true
	r.startLocked()
	r.notify()
	r.mu.Unlock()
}

// Pause stops the clock and keeps the position.
func (r *Replay) Pause() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.playing {
		return
	}
	r.playing = false
	r.stopLocked()
	r.notify()
}

// Seek jumps to tick, clamped to the valid range.
func (r *Replay) Seek(tick int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	from := r.current
	r.current = r.clamp(tick)
	r.advancedLocked(from)
	r.notify()
}

// StepForward pauses and advances one tick.
func (r *Replay) StepForward() {
	r.step(1)
}

// StepBackward pauses and rewinds one tick.
func (r *Replay) StepBackward() {
	r.step(-1)
}

func (r *Replay) step(delta int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.playing {
		r.playing = false
		r.stopLocked()
	}
	from := r.current
	r.current = r.clamp(r.current + delta)
	r.advancedLocked(from)
	r.notify()
}

// SetSpeed changes the playback multiplier, clamped to [MinSpeed, MaxSpeed].
// A running clock picks up the new rate immediately.
func (r *Replay) SetSpeed(speed float64) float64 {
	if math.IsNaN(speed) || speed < MinSpeed {
		speed = MinSpeed
	} else if speed > MaxSpeed {
		speed = MaxSpeed
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.speed = speed
	if r.playing {
		r.stopLocked()
		r.startLocked()
	}
	r.notify()
	return speed
}

// Close stops the clock, waits for it to exit and closes the Changes
// channel. It must not be called from the onComplete callback.
func (r *Replay) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.playing = false
	r.stopLocked()
	close(r.changes)
	r.mu.Unlock()
	r.wg.Wait()
}

func (r *Replay) clamp(tick int) int {
	if tick < 0 || len(r.frames) == 0 {
		return 0
	}
	if tick > len(r.frames)-1 {
		return len(r.frames) - 1
	}
	return tick
}

func (r *Replay) interval() time.Duration {
	return time.Duration(float64(r.baseRate) / r.speed)
}

// startLocked launches a clock goroutine for the current generation.
func (r *Replay) startLocked() {
	r.gen++
	r.stop = make(chan struct{})
	r.wg.Add(1)
	go r.run(r.gen, r.stop, r.interval())
}

// stopLocked retires the running clock without waiting for it.
func (r *Replay) stopLocked() {
	if r.stop != nil {
		close(r.stop)
		r.stop = nil
	}
	r.gen++
}

func (r *Replay) run(gen uint64, stop <-chan struct{}, every time.Duration) {
	defer r.wg.Done()
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		r.mu.Lock()
		if r.gen != gen {
			r.mu.Unlock()
			return
		}
		from := r.current
		r.current = r.clamp(r.current + 1)
		r.advancedLocked(from)
		done := r.current >= len(r.frames)-1
		if done {
			r.playing = false
			r.stop = nil
			r.gen++
		}
		onComplete := r.onComplete
		r.notify()
		r.mu.Unlock()

		if done {
			if onComplete != nil {
				onComplete()
			}
			return
		}
	}
}

// advancedLocked reports a position change to onAdvance. Caller holds mu.
func (r *Replay) advancedLocked(from int) {
	if r.onAdvance == nil || r.closed || r.current == from {
		return
	}
	r.onAdvance(r.frames[r.current].Snapshot(), r.current != from+1)
}

// notify must be called with mu held.
func (r *Replay) notify() {
	if r.closed {
		return
	}
	select {
	case r.changes <- struct{}{}:
	default:
	}
}
