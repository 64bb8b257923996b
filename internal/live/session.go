package live

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"playviz/internal/field"
	"playviz/internal/metrics"
	"playviz/internal/sim"
	"playviz/internal/visual"
)

// Signal tells an observer what kind of message was just applied.
type Signal int

const (
	SignalSynced Signal = iota
	SignalTick
	SignalComplete
	SignalError
	SignalAutoPlayStarted
	SignalAutoPlayStopped
	SignalDisconnected
)

func (s Signal) String() string {
	switch s {
	case SignalSynced:
		return "synced"
	case SignalTick:
		return "tick"
	case SignalComplete:
		return "complete"
	case SignalError:
		return "error"
	case SignalAutoPlayStarted:
		return "auto_play_started"
	case SignalAutoPlayStopped:
		return "auto_play_stopped"
	case SignalDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Stats counts what the session has done with inbound messages.
type Stats struct {
	Applied   uint64 `json:"applied"`
	Dropped   uint64 `json:"dropped"`
	Stale     uint64 `json:"stale"`
	Gaps      uint64 `json:"gaps"`
	Ignored   uint64 `json:"ignored"`
	LastTick  int    `json:"lastTick"`
	FrameSize int    `json:"frames"`
}

// Options configures a session.
type Options struct {
	Dialect          Dialect
	HandshakeTimeout time.Duration
	MaxFrames        int        // Recorded replay frames kept, oldest dropped
	StepRate         rate.Limit // Step commands per second
	StepBurst        int
}

// DefaultOptions returns production defaults.
func DefaultOptions() Options {
	return Options{
		Dialect:          DialectCoach,
		HandshakeTimeout: DefaultHandshakeTimeout,
		MaxFrames:        6000, // 5 minutes of ticks at 20 TPS
		StepRate:         10,
		StepBurst:        3,
	}
}

// View is a read-only copy of the session state. It is safe to keep and
// read while the session continues to apply messages.
type View struct {
	ID          string
	Snapshot    *sim.Snapshot
	Trails      map[string][]field.Point
	Selected    string
	Connected   bool
	Closed      bool
	LastError   string
	AutoPlaying bool
	Pacing      Pacing
	Stats       Stats
}

// Session owns one simulation run: its connection, the authoritative
// snapshot, the position history and the selected entity. All mutation
// happens on the connection's read goroutine under mu.
type Session struct {
	ID string

	opts   Options
	client *Client

	mu          sync.RWMutex
	snapshot    *sim.Snapshot
	history     *visual.History
	frames      []sim.PlayFrame
	selected    string
	connected   bool
	closed      bool
	lastError   string
	autoPlaying bool
	pacing      Pacing
	stats       Stats

	stepLimiter *rate.Limiter
	changes     chan struct{}

	// OnSignal, when set, is called after each applied message outside the
	// session lock. Set it before Open.
	OnSignal func(Signal)

	// OnSnapshot, when set, gets a copy of every applied snapshot in order,
	// before OnSignal and the change notification. resync is true for a
	// state_sync or a tick 0 reset, where the previous snapshot is not the
	// tick before. Set it before Open.
	OnSnapshot func(snap *sim.Snapshot, resync bool)
}

// NewSession creates a session that is not yet connected.
func NewSession(id string, opts Options) *Session {
	if opts.Dialect == "" {
		opts.Dialect = DialectCoach
	}
	if opts.StepRate <= 0 {
		opts.StepRate = rate.Inf
	}
	if opts.StepBurst <= 0 {
		opts.StepBurst = 1
	}
	return &Session{
		ID:          id,
		opts:        opts,
		history:     visual.NewHistory(),
		pacing:      PacingNormal,
		stepLimiter: rate.NewLimiter(opts.StepRate, opts.StepBurst),
		changes:     make(chan struct{}, 1),
	}
}

// Open dials url and starts applying messages. There is no retry.
func (s *Session) Open(ctx context.Context, url string) error {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return ErrSessionClosed
	}

	c, err := Dial(ctx, url, s.opts.HandshakeTimeout, s)
	if err != nil {
		s.mu.Lock()
		s.lastError = err.Error()
		s.mu.Unlock()
		s.notify()
		return err
	}

	s.mu.Lock()
	s.client = c
	s.connected = true
	s.mu.Unlock()
	metrics.SessionOpened()
	s.notify()
	return nil
}

// HandleMessage implements Handler.
func (s *Session) HandleMessage(data []byte) {
	if err := s.Apply(data); err != nil {
		var perr *ProtocolError
		if errors.As(err, &perr) {
			log.Printf("⚠️ Session %s dropped message: %v", s.ID, err)
		}
	}
}

// HandleClose implements Handler.
func (s *Session) HandleClose(err error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.connected = false
	if err != nil {
		s.lastError = err.Error()
	}
	s.mu.Unlock()

	log.Printf("❌ Session %s disconnected: %v", s.ID, err)
	s.signal(SignalDisconnected)
	s.notify()
}

// Apply classifies one raw envelope and applies it to the snapshot. A
// *ProtocolError means the message was dropped; the session is unaffected.
func (s *Session) Apply(data []byte) error {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		s.drop("malformed")
		return &ProtocolError{Err: err}
	}

	var sig Signal
	var applied, resync bool
	switch env.Type {
	case TypeStateSync, TypeComplete:
		var snap sim.Snapshot
		if err := json.Unmarshal(env.Payload, &snap); err != nil {
			s.drop("malformed")
			return &ProtocolError{Type: env.Type, Err: err}
		}
		snap.Normalize()
		sig = SignalSynced
		if env.Type == TypeComplete {
			snap.IsComplete = true
			sig = SignalComplete
		}
		if !s.replace(&snap, env.Type == TypeStateSync) {
			return nil
		}
		applied, resync = true, env.Type == TypeStateSync

	case TypeTick:
		var d sim.Delta
		if err := json.Unmarshal(env.Payload, &d); err != nil {
			s.drop("malformed")
			return &ProtocolError{Type: env.Type, Err: err}
		}
		ok, err := s.merge(d)
		if err != nil || !ok {
			return err
		}
		applied, resync = true, d.Tick == 0
		sig = SignalTick

	case TypeError:
		text := env.ErrorText()
		if !s.update(func() { s.lastError = text }) {
			return nil
		}
		log.Printf("⚠️ Session %s simulation error: %s", s.ID, text)
		sig = SignalError

	case TypeAutoPlayStarted, TypeAutoPlayStopped:
		var p CommandPayload
		if len(env.Payload) > 0 {
			// Pacing echo is optional; a bad one does not void the state change
			_ = json.Unmarshal(env.Payload, &p)
		}
		started := env.Type == TypeAutoPlayStarted
		if !s.update(func() {
			s.autoPlaying = started
			if p.Pacing != "" {
				s.pacing = ParsePacing(string(p.Pacing))
			}
			if s.snapshot != nil {
				s.snapshot.IsPaused = !started
			}
		}) {
			return nil
		}
		sig = SignalAutoPlayStopped
		if started {
			sig = SignalAutoPlayStarted
		}

	default:
		s.mu.Lock()
		s.stats.Ignored++
		s.mu.Unlock()
		metrics.RecordDropped("unknown")
		return nil
	}

	metrics.RecordApplied(env.Type)
	if applied && s.OnSnapshot != nil {
		s.OnSnapshot(s.Snapshot(), resync)
	}
	s.signal(sig)
	s.notify()
	return nil
}

// replace installs a full snapshot. It returns false if the session is closed.
func (s *Session) replace(snap *sim.Snapshot, selectDefault bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}

	prev := s.snapshot
	if snap.Tick == 0 {
		s.history.Clear()
		s.frames = s.frames[:0]
	}
	if prev == nil || snap.Tick == 0 || snap.Tick != prev.Tick {
		// A resync to an earlier tick rewinds the recorded frames
		for len(s.frames) > 0 && s.frames[len(s.frames)-1].Tick >= snap.Tick {
			s.frames = s.frames[:len(s.frames)-1]
		}
		s.record(snap)
	}
	s.snapshot = snap

	if selectDefault && s.selected == "" && len(snap.Players) > 0 {
		s.selected = snap.Players[0].ID
	}
	s.stats.Applied++
	s.stats.LastTick = snap.Tick
	return true
}

// merge applies a tick delta. Ticks at or behind the current one are
// dropped as stale; a jump forward is applied and counted as a gap.
func (s *Session) merge(d sim.Delta) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, nil
	}

	cur := s.snapshot
	if cur == nil {
		cur = &sim.Snapshot{IsRunning: true}
	} else if d.Tick != 0 && d.Tick <= cur.Tick {
		s.stats.Stale++
		s.stats.Dropped++
		metrics.RecordDropped("stale")
		return false, nil
	} else if d.Tick > cur.Tick+1 {
		s.stats.Gaps++
		metrics.RecordGap()
	}

	if d.Tick == 0 {
		s.history.Clear()
		s.frames = s.frames[:0]
	}
	cur.Merge(d)
	s.snapshot = cur
	s.record(cur)
	s.stats.Applied++
	s.stats.LastTick = cur.Tick
	return true, nil
}

// record appends history and a replay frame. Caller holds mu.
func (s *Session) record(snap *sim.Snapshot) {
	s.history.Record(snap.Players)
	s.frames = append(s.frames, sim.FrameOf(snap))
	if limit := s.opts.MaxFrames; limit > 0 && len(s.frames) > limit {
		s.frames = append(s.frames[:0], s.frames[len(s.frames)-limit:]...)
	}
	s.stats.FrameSize = len(s.frames)
}

// update runs fn under the lock unless the session is closed.
func (s *Session) update(fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	fn()
	s.stats.Applied++
	return true
}

func (s *Session) drop(reason string) {
	s.mu.Lock()
	s.stats.Dropped++
	s.mu.Unlock()
	metrics.RecordDropped(reason)
}

func (s *Session) signal(sig Signal) {
	if s.OnSignal != nil {
		s.OnSignal(sig)
	}
}

// notify wakes the change listener without blocking. Bursts coalesce.
func (s *Session) notify() {
	select {
	case s.changes <- struct{}{}:
	default:
	}
}

// Changes delivers a value after any state change. Multiple changes between
// reads collapse into one.
func (s *Session) Changes() <-chan struct{} {
	return s.changes
}

// Send translates cmd into the session's dialect and writes it. Step
// commands are rate limited.
func (s *Session) Send(cmd Command) error {
	s.mu.RLock()
	c, closed := s.client, s.closed
	s.mu.RUnlock()

	if closed {
		return ErrSessionClosed
	}
	if c == nil {
		return ErrNotConnected
	}
	if cmd.Type == CmdStep && !s.stepLimiter.Allow() {
		return ErrThrottled
	}
	out, err := s.opts.Dialect.Translate(cmd)
	if err != nil {
		return err
	}
	return c.Send(out)
}

// Select marks id as the selected entity. An empty id clears the selection.
func (s *Session) Select(id string) {
	s.mu.Lock()
	s.selected = id
	s.mu.Unlock()
	s.notify()
}

// Selected returns the selected entity id.
func (s *Session) Selected() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected
}

// Dialect returns the command vocabulary of the session.
func (s *Session) Dialect() Dialect { return s.opts.Dialect }

// Snapshot returns a copy of the current snapshot, nil before the first sync.
func (s *Session) Snapshot() *sim.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot.Clone()
}

// HistoryLen returns the trail length for id.
func (s *Session) HistoryLen(id string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.history.Len(id)
}

// Frames returns the recorded replay frames.
func (s *Session) Frames() []sim.PlayFrame {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]sim.PlayFrame(nil), s.frames...)
}

// View copies the full session state.
func (s *Session) View() View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return View{
		ID:          s.ID,
		Snapshot:    s.snapshot.Clone(),
		Trails:      s.history.Snapshot(),
		Selected:    s.selected,
		Connected:   s.connected,
		Closed:      s.closed,
		LastError:   s.lastError,
		AutoPlaying: s.autoPlaying,
		Pacing:      s.pacing,
		Stats:       s.stats,
	}
}

// Connected reports whether the connection is up.
func (s *Session) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// Close synchronously closes the connection. Messages already queued on the
// read goroutine are not applied once Close has started.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.connected = false
	c := s.client
	s.mu.Unlock()

	if c != nil {
		c.Close()
		metrics.SessionClosed()
	}
	s.notify()
	log.Printf("🔌 Session %s closed", s.ID)
}
