package live

import (
	"encoding/json"
	"strings"
)

// Inbound message types
const (
	TypeStateSync       = "state_sync"
	TypeTick            = "tick"
	TypeComplete        = "complete"
	TypeError           = "error"
	TypeAutoPlayStarted = "auto_play_started"
	TypeAutoPlayStopped = "auto_play_stopped"
)

// Outbound command types
const (
	CmdStart         = "start"
	CmdPause         = "pause"
	CmdResume        = "resume"
	CmdReset         = "reset"
	CmdStep          = "step"
	CmdSetPacing     = "set_pacing"
	CmdStartAutoPlay = "start_auto_play"
	CmdStopAutoPlay  = "stop_auto_play"
)

// Envelope is the tagged record every inbound message arrives in.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Message string          `json:"message,omitempty"`
}

// ErrorText extracts a human-readable message from an error envelope. The
// text may come as "message", as a string payload, or as {"message": ...}.
func (e Envelope) ErrorText() string {
	if e.Message != "" {
		return e.Message
	}
	if len(e.Payload) == 0 {
		return "unknown error"
	}
	var s string
	if err := json.Unmarshal(e.Payload, &s); err == nil && s != "" {
		return s
	}
	var obj struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(e.Payload, &obj); err == nil {
		if obj.Message != "" {
			return obj.Message
		}
		if obj.Error != "" {
			return obj.Error
		}
	}
	return strings.TrimSpace(string(e.Payload))
}

// Pacing is the auto-advance speed, or manual stepping.
type Pacing string

const (
	PacingSlow   Pacing = "slow"
	PacingNormal Pacing = "normal"
	PacingFast   Pacing = "fast"
	PacingStep   Pacing = "step"
)

// ParsePacing clamps unknown values to normal.
func ParsePacing(s string) Pacing {
	switch p := Pacing(strings.ToLower(strings.TrimSpace(s))); p {
	case PacingSlow, PacingNormal, PacingFast, PacingStep:
		return p
	}
	return PacingNormal
}

// Valid reports whether p is one of the four pacing modes.
func (p Pacing) Valid() bool {
	return ParsePacing(string(p)) == p
}

// CommandPayload carries command arguments.
type CommandPayload struct {
	Pacing Pacing `json:"pacing,omitempty"`
}

// Command is an outbound fire-and-forget instruction. Resulting state always
// arrives later through the inbound stream.
type Command struct {
	Type    string          `json:"type"`
	Payload *CommandPayload `json:"payload,omitempty"`
}

// Bare returns a command without payload.
func Bare(cmdType string) Command {
	return Command{Type: cmdType}
}

// WithPacing returns a command carrying a pacing argument.
func WithPacing(cmdType string, p Pacing) Command {
	return Command{Type: cmdType, Payload: &CommandPayload{Pacing: p}}
}

// IsBasic reports whether cmdType is one of the bare playback commands.
func IsBasic(cmdType string) bool {
	switch cmdType {
	case CmdStart, CmdPause, CmdResume, CmdReset, CmdStep:
		return true
	}
	return false
}

// Dialect selects the command vocabulary the remote side understands.
type Dialect string

const (
	// DialectCoach understands pacing and server-side auto-play.
	DialectCoach Dialect = "coach"
	// DialectVisualization only understands the bare playback commands.
	DialectVisualization Dialect = "visualization"
)

// Translate rewrites a command into this dialect. Auto-play maps onto
// resume/pause for the visualization dialect; set_pacing has no equivalent
// there and is reported as unsupported.
func (d Dialect) Translate(c Command) (Command, error) {
	if d != DialectVisualization {
		return c, nil
	}
	switch c.Type {
	case CmdStartAutoPlay:
		return Bare(CmdResume), nil
	case CmdStopAutoPlay:
		return Bare(CmdPause), nil
	case CmdSetPacing:
		return Command{}, ErrUnsupported
	}
	return Bare(c.Type), nil
}
