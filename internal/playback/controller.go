// Package playback drives what tick is on screen: the live controller maps
// operator intent onto commands for the remote simulation, and Replay plays
// recorded frames locally.
package playback

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"playviz/internal/live"
)

// State is the live playback state.
type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateLive       State = "live"
	StatePaused     State = "paused"
	StateCompleted  State = "completed"
)

// Event drives a state transition.
type Event string

const (
	EventConnect    Event = "connect"
	EventSynced     Event = "synced"
	EventPause      Event = "pause"
	EventResume     Event = "resume"
	EventComplete   Event = "complete"
	EventReset      Event = "reset"
	EventDisconnect Event = "disconnect"
)

// transitions is the complete set of legal moves. Anything absent is rejected.
var transitions = map[State]map[Event]State{
	StateIdle: {
		EventConnect: StateConnecting,
	},
	StateConnecting: {
		EventSynced:     StateLive,
		EventComplete:   StateCompleted,
		EventDisconnect: StateIdle,
	},
	StateLive: {
		EventSynced:     StateLive,
		EventPause:      StatePaused,
		EventResume:     StateLive,
		EventComplete:   StateCompleted,
		EventReset:      StateLive,
		EventDisconnect: StateIdle,
	},
	StatePaused: {
		EventSynced:     StatePaused,
		EventPause:      StatePaused,
		EventResume:     StateLive,
		EventComplete:   StateCompleted,
		EventReset:      StatePaused,
		EventDisconnect: StateIdle,
	},
	StateCompleted: {
		EventSynced:     StateCompleted,
		EventComplete:   StateCompleted,
		EventReset:      StatePaused,
		EventDisconnect: StateIdle,
	},
}

// ErrInvalidTransition is returned for an event the current state does not accept.
var ErrInvalidTransition = errors.New("invalid playback transition")

// Next returns the state ev leads to from s.
func Next(s State, ev Event) (State, error) {
	if to, ok := transitions[s][ev]; ok {
		return to, nil
	}
	return s, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, ev, s)
}

// Commander sends commands to the simulation. *live.Session satisfies it.
type Commander interface {
	Send(cmd live.Command) error
}

// Status is a copy of the controller state.
type Status struct {
	State  State       `json:"state"`
	Pacing live.Pacing `json:"pacing"`
	Paused bool        `json:"paused"`
}

// Controller is the live playback state machine with its orthogonal pacing
// axis. Local state changes as soon as a command is sent; the server's
// confirmation arrives later through HandleSignal.
type Controller struct {
	mu     sync.Mutex
	cmd    Commander
	state  State
	pacing live.Pacing
	paused bool

	// pacing changed while paused; sent with the next start or resume
	pendingPacing bool
}

// NewController creates an idle controller at normal pacing.
func NewController(cmd Commander) *Controller {
	return &Controller{
		cmd:    cmd,
		state:  StateIdle,
		pacing: live.PacingNormal,
		paused: true,
	}
}

// Status returns the current state.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{State: c.state, Pacing: c.pacing, Paused: c.paused}
}

// Fire applies ev to the state machine.
func (c *Controller) Fire(ev Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fireLocked(ev)
}

func (c *Controller) fireLocked(ev Event) error {
	to, err := Next(c.state, ev)
	if err != nil {
		return err
	}
	if to != c.state {
		log.Printf("🎬 Playback %s → %s (%s)", c.state, to, ev)
	}
	c.state = to
	switch to {
	case StateLive:
		c.paused = false
	case StatePaused, StateCompleted, StateIdle:
		c.paused = true
	}
	return nil
}

// connected reports whether commands can reach the server. Caller holds mu.
func (c *Controller) connected() bool {
	switch c.state {
	case StateLive, StatePaused, StateCompleted:
		return true
	}
	return false
}

// Connect marks the controller as waiting for the first sync.
func (c *Controller) Connect() error {
	return c.Fire(EventConnect)
}

// Start begins server-side play from the current tick.
func (c *Controller) Start() error {
	return c.send(live.Bare(live.CmdStart), EventResume)
}

// Pause stops server-side play.
func (c *Controller) Pause() error {
	return c.send(live.Bare(live.CmdPause), EventPause)
}

// Resume continues server-side play.
func (c *Controller) Resume() error {
	return c.send(live.Bare(live.CmdResume), EventResume)
}

// Reset rewinds the simulation; the new tick 0 arrives as a state_sync.
func (c *Controller) Reset() error {
	return c.send(live.Bare(live.CmdReset), EventReset)
}

// Step asks the server for exactly one advance. The result arrives as a tick.
func (c *Controller) Step() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected() || c.state == StateCompleted {
		return fmt.Errorf("%w: step on %s", ErrInvalidTransition, c.state)
	}
	return c.cmd.Send(live.Bare(live.CmdStep))
}

func (c *Controller) send(cmd live.Command, ev Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := Next(c.state, ev); err != nil {
		return err
	}
	if err := c.cmd.Send(cmd); err != nil {
		return err
	}
	if ev == EventResume && c.pendingPacing {
		c.flushPacingLocked()
	}
	return c.fireLocked(ev)
}

// flushPacingLocked sends a pacing change held back while paused. The play
// command already went out, so a failure here is logged, not returned.
func (c *Controller) flushPacingLocked() {
	err := c.cmd.Send(live.WithPacing(live.CmdSetPacing, c.pacing))
	if err != nil && !errors.Is(err, live.ErrUnsupported) {
		log.Printf("⚠️ Pacing %s not sent on resume: %v", c.pacing, err)
		return
	}
	c.pendingPacing = false
}

// SetPacing changes pacing. Unknown values clamp to normal.
//
//   - into step while playing: stop auto-play and mark paused now
//   - out of step: start auto-play at the new pacing and mark playing
//   - between continuous pacings: send set_pacing, play state unchanged
//   - between continuous pacings while paused: store it and send set_pacing
//     with the next start or resume
//
// Before the first sync only the local pacing changes.
func (c *Controller) SetPacing(value string) (live.Pacing, error) {
	next := live.ParsePacing(value)

	c.mu.Lock()
	defer c.mu.Unlock()

	prev := c.pacing
	if next == prev {
		return next, nil
	}
	if !c.connected() {
		c.pacing = next
		return next, nil
	}

	switch {
	case next == live.PacingStep:
		if !c.paused && c.state == StateLive {
			if err := c.cmd.Send(live.Bare(live.CmdStopAutoPlay)); err != nil {
				return prev, err
			}
			c.fireLocked(EventPause)
		}
		c.pendingPacing = false

	case prev == live.PacingStep:
		if c.state == StateCompleted {
			break
		}
		if err := c.cmd.Send(live.WithPacing(live.CmdStartAutoPlay, next)); err != nil {
			return prev, err
		}
		c.pendingPacing = false
		c.fireLocked(EventResume)

	case c.paused || c.state != StateLive:
		c.pendingPacing = true

	default:
		if err := c.cmd.Send(live.WithPacing(live.CmdSetPacing, next)); err != nil && !errors.Is(err, live.ErrUnsupported) {
			return prev, err
		}
	}

	c.pacing = next
	return next, nil
}

// HandleSignal folds a server message into the state machine. It is safe
// to use as live.Session.OnSignal.
func (c *Controller) HandleSignal(sig live.Signal) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var ev Event
	switch sig {
	case live.SignalSynced:
		ev = EventSynced
		if c.state == StateCompleted {
			// A fresh sync after completion is a reset play waiting for start
			ev = EventReset
		}
	case live.SignalTick:
		if c.state == StateConnecting {
			ev = EventSynced
		} else {
			return
		}
	case live.SignalComplete:
		ev = EventComplete
	case live.SignalAutoPlayStarted:
		ev = EventResume
	case live.SignalAutoPlayStopped:
		ev = EventPause
	case live.SignalDisconnected:
		ev = EventDisconnect
	default:
		return
	}
	if err := c.fireLocked(ev); err != nil {
		log.Printf("⚠️ Playback ignored %s: %v", sig, err)
	}
}
