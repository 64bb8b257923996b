package sim

import "playviz/internal/field"

// PlayFrame is one pre-computed tick of a recorded play, used by the local
// replay flow instead of a live stream.
type PlayFrame struct {
	Tick        int        `json:"tick"`
	Time        float64    `json:"time"`
	Players     []Entity   `json:"players"`
	Ball        *BallState `json:"ball,omitempty"`
	Events      []Event    `json:"events,omitempty"`
	PlayOutcome Outcome    `json:"playOutcome,omitempty"`

	Waypoints      map[string][]Waypoint   `json:"waypoints,omitempty"`
	Zones          map[string]ZoneBoundary `json:"zoneBoundaries,omitempty"`
	BallCarrierID  string                  `json:"ballCarrierId,omitempty"`
	TacklePosition *field.Point            `json:"tacklePosition,omitempty"`
}

// Snapshot expands the frame into a renderable snapshot. The frame's events
// are the ones that happened on this tick only.
func (f PlayFrame) Snapshot() *Snapshot {
	s := &Snapshot{
		Tick:        f.Tick,
		Time:        f.Time,
		Players:     f.Players,
		Events:      f.Events,
		PlayOutcome: f.PlayOutcome,

		Waypoints:     f.Waypoints,
		Zones:         f.Zones,
		BallCarrierID: f.BallCarrierID,
	}
	if f.TacklePosition != nil {
		p := *f.TacklePosition
		s.TacklePosition = &p
	}
	if f.Ball != nil {
		b := *f.Ball
		s.Ball = &b
		if s.BallCarrierID == "" && b.State == BallHeld {
			s.BallCarrierID = b.CarrierID
		}
	}
	s.Normalize()
	return s
}

// FrameOf captures the snapshot as a replay frame. Events are limited to the
// ones stamped with the snapshot's tick. Route and zone overlays are shared
// with the snapshot; they are replaced, never mutated, on sync.
func FrameOf(s *Snapshot) PlayFrame {
	f := PlayFrame{
		Tick:          s.Tick,
		Time:          s.Time,
		Players:       append([]Entity(nil), s.Players...),
		PlayOutcome:   s.PlayOutcome,
		Waypoints:     s.Waypoints,
		Zones:         s.Zones,
		BallCarrierID: s.BallCarrierID,
	}
	if s.TacklePosition != nil {
		p := *s.TacklePosition
		f.TacklePosition = &p
	}
	if s.Ball != nil {
		b := *s.Ball
		f.Ball = &b
	}
	for _, e := range s.Events {
		if e.Tick == s.Tick {
			f.Events = append(f.Events, e)
		}
	}
	return f
}
