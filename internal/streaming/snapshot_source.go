package streaming

import (
	"fmt"
	"sync"
	"sync/atomic"

	"playviz/internal/live"
	"playviz/internal/playback"
	"playviz/internal/render"
)

// SnapshotSource is what the frame loop renders from. This allows the
// StreamManager to work with either a live session or a local replay.
type SnapshotSource interface {
	// Input copies the current state for one frame
	Input() render.Input
	// Changes wakes the frame loop; bursts coalesce
	Changes() <-chan struct{}
}

// SessionSource wraps a live session as a SnapshotSource
type SessionSource struct {
	session *live.Session
}

// NewSessionSource creates a SnapshotSource from a live session
func NewSessionSource(session *live.Session) *SessionSource {
	return &SessionSource{session: session}
}

// Input returns the session's snapshot, trails and selection
func (s *SessionSource) Input() render.Input {
	v := s.session.View()
	return render.Input{
		Snapshot: v.Snapshot,
		Trails:   v.Trails,
		Selected: v.Selected,
		Pacing:   string(v.Pacing),
	}
}

// Changes returns the session's change channel
func (s *SessionSource) Changes() <-chan struct{} {
	return s.session.Changes()
}

// ReplaySource wraps a local replay as a SnapshotSource. Replays have no
// server-side selection, so it is kept here.
type ReplaySource struct {
	replay   *playback.Replay
	selected atomic.Value // string

	mu      sync.Mutex
	closed  bool
	changes chan struct{}
}

// NewReplaySource creates a SnapshotSource from a replay
func NewReplaySource(replay *playback.Replay) *ReplaySource {
	src := &ReplaySource{
		replay:  replay,
		changes: make(chan struct{}, 1),
	}
	src.selected.Store("")

	// Fan the replay's notifications and selection changes into one
	// channel, closed once the replay is
	go func() {
		for range replay.Changes() {
			src.notify()
		}
		src.mu.Lock()
		src.closed = true
		close(src.changes)
		src.mu.Unlock()
	}()
	return src
}

// Input returns the replay's current frame with trails rebuilt up to it
func (s *ReplaySource) Input() render.Input {
	st := s.replay.State()
	return render.Input{
		Snapshot: s.replay.Snapshot(),
		Trails:   s.replay.Trails(),
		Selected: s.Selected(),
		Pacing:   fmt.Sprintf("replay %.2gx", st.Speed),
	}
}

// Changes returns the merged change channel
func (s *ReplaySource) Changes() <-chan struct{} {
	return s.changes
}

// Select marks id as selected in the replay view
func (s *ReplaySource) Select(id string) {
	s.selected.Store(id)
	s.notify()
}

// Selected returns the selected entity id
func (s *ReplaySource) Selected() string {
	return s.selected.Load().(string)
}

func (s *ReplaySource) notify() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.changes <- struct{}{}:
	default:
	}
}
