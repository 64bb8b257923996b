// Package plays owns every running play: live sessions with their playback
// controller, render pipeline and frame loop, and local replays.
package plays

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"playviz/internal/live"
	"playviz/internal/playback"
	"playviz/internal/render"
	"playviz/internal/sim"
	"playviz/internal/streaming"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrLimitReached = errors.New("limit reached")
	ErrNoFrames     = errors.New("no frames")
)

// Options configures what every play is drawn and limited with.
type Options struct {
	Canvas          render.Config
	Stream          streaming.StreamConfig
	MaxSessions     int
	MaxReplays      int
	MaxReplayFrames int
	ReplayBaseRate  time.Duration
}

// Play is one live session and everything that drives and draws it.
type Play struct {
	ID         string
	Info       live.SessionInfo
	Session    *live.Session
	Controller *playback.Controller
	Pipeline   *render.Pipeline
	Stream     *streaming.StreamManager
}

// Attach wires a controller, pipeline and frame loop to s. The session's
// signals drive the controller; picks and catches select on the session.
// onEvent, if non-nil, is told about each applied signal and selection.
func Attach(s *live.Session, opts Options, onEvent func(Event)) *Play {
	emit := func(ev Event) {
		if onEvent != nil {
			onEvent(ev)
		}
	}

	ctrl := playback.NewController(s)
	s.OnSignal = func(sig live.Signal) {
		ctrl.HandleSignal(sig)
		emit(Event{Kind: EventSignal, PlayID: s.ID, Signal: sig})
	}
	pipe := render.NewPipeline(opts.Canvas, func(id string) {
		s.Select(id)
		emit(Event{Kind: EventSelected, PlayID: s.ID, EntityID: id})
	})
	s.OnSnapshot = pipe.Observe
	return &Play{
		ID:         s.ID,
		Session:    s,
		Controller: ctrl,
		Pipeline:   pipe,
		Stream:     streaming.NewStreamManager(pipe, streaming.NewSessionSource(s), opts.Stream),
	}
}

// Replay is a local replay and the frame loop that draws it.
type Replay struct {
	ID       string
	Replay   *playback.Replay
	Source   *streaming.ReplaySource
	Pipeline *render.Pipeline
	Stream   *streaming.StreamManager
}

// EventKind discriminates Event.
type EventKind string

const (
	EventSignal   EventKind = "signal"
	EventSelected EventKind = "selected"
	EventReplay   EventKind = "replay"
	EventClosed   EventKind = "closed"
)

// Event tells the host something changed in a play.
type Event struct {
	Kind     EventKind
	PlayID   string
	Signal   live.Signal
	EntityID string
}

// Manager keeps the plays and replays of this process.
type Manager struct {
	boot *live.Bootstrapper
	opts Options

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.RWMutex
	plays   map[string]*Play
	replays map[string]*Replay
	onEvent func(Event)
}

// NewManager creates a manager that bootstraps sessions through boot.
func NewManager(boot *live.Bootstrapper, opts Options) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		boot:    boot,
		opts:    opts,
		ctx:     ctx,
		cancel:  cancel,
		plays:   make(map[string]*Play),
		replays: make(map[string]*Replay),
	}
}

// OnEvent registers the host callback. Set it before creating plays.
func (m *Manager) OnEvent(fn func(Event)) {
	m.mu.Lock()
	m.onEvent = fn
	m.mu.Unlock()
}

func (m *Manager) emit(ev Event) {
	m.mu.RLock()
	fn := m.onEvent
	m.mu.RUnlock()
	if fn != nil {
		fn(ev)
	}
}

// Create bootstraps a simulation session, connects to it and starts drawing.
func (m *Manager) Create(ctx context.Context, params live.SessionParams) (*Play, error) {
	if err := m.checkLimit(func() bool { return len(m.plays) < m.opts.MaxSessions || m.opts.MaxSessions <= 0 }); err != nil {
		return nil, err
	}

	var p *Play
	s, info, err := m.boot.Connect(ctx, params, func(s *live.Session) {
		p = Attach(s, m.opts, m.emit)
		p.Controller.Connect()
	})
	if err != nil {
		if s != nil {
			s.Close()
		}
		return nil, err
	}
	p.Info = info

	if err := p.Stream.Start(m.ctx); err != nil {
		s.Close()
		return nil, err
	}

	m.mu.Lock()
	m.plays[p.ID] = p
	m.mu.Unlock()
	log.Printf("✅ Play %s live (%d total)", p.ID, m.count())
	return p, nil
}

// Get returns a live play.
func (m *Manager) Get(id string) (*Play, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.plays[id]
	return p, ok
}

// List returns the ids of live plays, sorted.
func (m *Manager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.plays))
	for id := range m.plays {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Close stops drawing a play and closes its session.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	p, ok := m.plays[id]
	delete(m.plays, id)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("play %s: %w", id, ErrNotFound)
	}

	p.Stream.Stop()
	p.Session.Close()
	m.emit(Event{Kind: EventClosed, PlayID: id})
	return nil
}

// CreateReplay starts a paused replay over frames.
func (m *Manager) CreateReplay(frames []sim.PlayFrame) (*Replay, error) {
	if len(frames) == 0 {
		return nil, ErrNoFrames
	}
	if limit := m.opts.MaxReplayFrames; limit > 0 && len(frames) > limit {
		return nil, fmt.Errorf("%d frames, max %d: %w", len(frames), limit, ErrLimitReached)
	}
	if err := m.checkLimit(func() bool { return len(m.replays) < m.opts.MaxReplays || m.opts.MaxReplays <= 0 }); err != nil {
		return nil, err
	}

	rp := &Replay{}
	rp.Replay = playback.NewReplay(frames,
		playback.WithBaseRate(m.opts.ReplayBaseRate),
		playback.WithOnComplete(func() {
			m.emit(Event{Kind: EventReplay, PlayID: rp.ID})
		}),
		playback.WithOnAdvance(func(snap *sim.Snapshot, resync bool) {
			rp.Pipeline.Observe(snap, resync)
		}),
	)
	rp.ID = rp.Replay.ID
	rp.Source = streaming.NewReplaySource(rp.Replay)
	rp.Pipeline = render.NewPipeline(m.opts.Canvas, func(id string) {
		rp.Source.Select(id)
		m.emit(Event{Kind: EventSelected, PlayID: rp.ID, EntityID: id})
	})
	rp.Pipeline.Observe(rp.Replay.Snapshot(), true)
	rp.Stream = streaming.NewStreamManager(rp.Pipeline, rp.Source, m.opts.Stream)
	if err := rp.Stream.Start(m.ctx); err != nil {
		rp.Replay.Close()
		return nil, err
	}

	m.mu.Lock()
	m.replays[rp.ID] = rp
	m.mu.Unlock()
	log.Printf("🎬 Replay %s ready with %d frames", rp.ID, len(frames))
	return rp, nil
}

// ReplayFromPlay seeds a replay with the frames a live play has recorded.
func (m *Manager) ReplayFromPlay(id string) (*Replay, error) {
	p, ok := m.Get(id)
	if !ok {
		return nil, fmt.Errorf("play %s: %w", id, ErrNotFound)
	}
	return m.CreateReplay(p.Session.Frames())
}

// GetReplay returns a replay.
func (m *Manager) GetReplay(id string) (*Replay, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.replays[id]
	return r, ok
}

// CloseReplay stops a replay and its frame loop.
func (m *Manager) CloseReplay(id string) error {
	m.mu.Lock()
	r, ok := m.replays[id]
	delete(m.replays, id)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("replay %s: %w", id, ErrNotFound)
	}

	r.Replay.Close()
	r.Stream.Stop()
	m.emit(Event{Kind: EventClosed, PlayID: id})
	return nil
}

// Shutdown closes every play and replay.
func (m *Manager) Shutdown() {
	for _, id := range m.List() {
		m.Close(id)
	}
	m.mu.RLock()
	ids := make([]string, 0, len(m.replays))
	for id := range m.replays {
		ids = append(ids, id)
	}
	m.mu.RUnlock()
	for _, id := range ids {
		m.CloseReplay(id)
	}
	m.cancel()
}

func (m *Manager) checkLimit(ok func() bool) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !ok() {
		return ErrLimitReached
	}
	return nil
}

func (m *Manager) count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.plays)
}
