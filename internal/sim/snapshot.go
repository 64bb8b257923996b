// Package sim holds the client-side model of the remote simulation: the
// authoritative snapshot at a tick, its entities, the ball, and the event log.
//
// Types here are plain values decoded from the sync stream. Nothing in this
// package talks to the network or draws anything.
package sim

import (
	"encoding/json"
	"math"

	"playviz/internal/field"
)

// Outcome is the result of the play so far.
type Outcome string

const (
	OutcomeInProgress   Outcome = "in_progress"
	OutcomeComplete     Outcome = "complete"
	OutcomeIncomplete   Outcome = "incomplete"
	OutcomeInterception Outcome = "interception"
	OutcomeTackled      Outcome = "tackled"
)

// ParseOutcome clamps unknown values to in_progress.
func ParseOutcome(s string) Outcome {
	switch o := Outcome(s); o {
	case OutcomeComplete, OutcomeIncomplete, OutcomeInterception, OutcomeTackled:
		return o
	}
	return OutcomeInProgress
}

// UnmarshalJSON implements json.Unmarshaler.
func (o *Outcome) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*o = ParseOutcome(s)
	return nil
}

// BallPhase discriminates BallState.
type BallPhase string

const (
	BallDead     BallPhase = "dead"
	BallHeld     BallPhase = "held"
	BallInFlight BallPhase = "in_flight"
	BallLoose    BallPhase = "loose"
)

// BallState is where the ball is and what it is doing. X/Y/Height are always
// valid; the flight fields are meaningful only while in flight.
type BallState struct {
	State     BallPhase `json:"state"`
	CarrierID string    `json:"carrierId,omitempty"`

	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Height float64 `json:"height"`

	OriginX    float64 `json:"originX,omitempty"`
	OriginY    float64 `json:"originY,omitempty"`
	TargetX    float64 `json:"targetX,omitempty"`
	TargetY    float64 `json:"targetY,omitempty"`
	Progress   float64 `json:"progress,omitempty"`
	PeakHeight float64 `json:"peakHeight,omitempty"`
	ThrowType  string  `json:"throwType,omitempty"`
}

// Origin returns the throw origin.
func (b BallState) Origin() field.Point { return field.Point{X: b.OriginX, Y: b.OriginY} }

// Target returns the throw target.
func (b BallState) Target() field.Point { return field.Point{X: b.TargetX, Y: b.TargetY} }

// Waypoint is a planned route point; IsBreak marks a directional cut.
type Waypoint struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	IsBreak bool    `json:"isBreak,omitempty"`
}

// ZoneBoundary is an axis-aligned coverage region with an anchor point.
type ZoneBoundary struct {
	ID         string  `json:"id,omitempty"`
	MinX       float64 `json:"minX"`
	MaxX       float64 `json:"maxX"`
	MinY       float64 `json:"minY"`
	MaxY       float64 `json:"maxY"`
	AnchorX    float64 `json:"anchorX"`
	AnchorY    float64 `json:"anchorY"`
	DefenderID string  `json:"defenderId,omitempty"`
}

// Snapshot is the authoritative simulation state at one tick.
type Snapshot struct {
	Tick        int     `json:"tick"`
	Time        float64 `json:"time"`
	IsRunning   bool    `json:"isRunning"`
	IsPaused    bool    `json:"isPaused"`
	IsComplete  bool    `json:"isComplete"`
	PlayOutcome Outcome `json:"playOutcome"`

	Players   []Entity                `json:"players"`
	Ball      *BallState              `json:"ball,omitempty"`
	Waypoints map[string][]Waypoint   `json:"waypoints,omitempty"`
	Zones     map[string]ZoneBoundary `json:"zoneBoundaries,omitempty"`
	Events    []Event                 `json:"events,omitempty"`

	BallCarrierID  string       `json:"ballCarrierId,omitempty"`
	TacklePosition *field.Point `json:"tacklePosition,omitempty"`
}

// Delta is the payload of an incremental tick message.
type Delta struct {
	Tick           int          `json:"tick"`
	Time           float64      `json:"time"`
	Players        []Entity     `json:"players"`
	Ball           *BallState   `json:"ball,omitempty"`
	PlayOutcome    Outcome      `json:"playOutcome"`
	BallCarrierID  string       `json:"ballCarrierId,omitempty"`
	TacklePosition *field.Point `json:"tacklePosition,omitempty"`
	Events         []Event      `json:"events,omitempty"`
}

// Normalize clamps domain values that must never be out of range: negative
// heights and flight progress outside [0,1].
func (s *Snapshot) Normalize() {
	if s.PlayOutcome == "" {
		s.PlayOutcome = OutcomeInProgress
	}
	if s.Ball != nil {
		s.Ball.normalize()
	}
}

func (b *BallState) normalize() {
	if b.Height < 0 || math.IsNaN(b.Height) {
		b.Height = 0
	}
	if b.PeakHeight < 0 || math.IsNaN(b.PeakHeight) {
		b.PeakHeight = 0
	}
	if b.Progress < 0 || math.IsNaN(b.Progress) {
		b.Progress = 0
	} else if b.Progress > 1 {
		b.Progress = 1
	}
}

// Merge applies an incremental tick. Tick, time, players, ball, outcome,
// carrier and tackle position are replaced; events are appended.
func (s *Snapshot) Merge(d Delta) {
	s.Tick = d.Tick
	s.Time = d.Time
	s.Players = d.Players
	s.Ball = d.Ball
	s.PlayOutcome = d.PlayOutcome
	s.BallCarrierID = d.BallCarrierID
	s.TacklePosition = d.TacklePosition
	if len(d.Events) > 0 {
		events := make([]Event, 0, len(s.Events)+len(d.Events))
		events = append(events, s.Events...)
		s.Events = append(events, d.Events...)
	}
	s.Normalize()
}

// Find returns the entity with the given id.
func (s *Snapshot) Find(id string) (Entity, bool) {
	if s == nil || id == "" {
		return Entity{}, false
	}
	for _, e := range s.Players {
		if e.ID == id {
			return e, true
		}
	}
	return Entity{}, false
}

// Carrier returns the entity currently holding the ball.
func (s *Snapshot) Carrier() (Entity, bool) {
	if s == nil {
		return Entity{}, false
	}
	id := s.BallCarrierID
	if s.Ball != nil && s.Ball.State == BallHeld && s.Ball.CarrierID != "" {
		id = s.Ball.CarrierID
	}
	return s.Find(id)
}

// Clone returns a copy whose slices and maps can be read while the original
// keeps being merged. Entities are shared by value.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	c := *s
	c.Players = append([]Entity(nil), s.Players...)
	c.Events = append([]Event(nil), s.Events...)
	if s.Ball != nil {
		b := *s.Ball
		c.Ball = &b
	}
	if s.TacklePosition != nil {
		p := *s.TacklePosition
		c.TacklePosition = &p
	}
	if s.Waypoints != nil {
		c.Waypoints = make(map[string][]Waypoint, len(s.Waypoints))
		for k, v := range s.Waypoints {
			c.Waypoints[k] = append([]Waypoint(nil), v...)
		}
	}
	if s.Zones != nil {
		c.Zones = make(map[string]ZoneBoundary, len(s.Zones))
		for k, v := range s.Zones {
			c.Zones[k] = v
		}
	}
	return &c
}
