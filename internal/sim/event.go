package sim

// Event types the engine is known to emit. The log is open-ended, so any
// other string is kept as-is and shown verbatim.
const (
	EventSnap       = "snap"
	EventThrow      = "throw"
	EventCatch      = "catch"
	EventTackle     = "tackle"
	EventIncomplete = "incomplete"
	EventIntercept  = "interception"
)

// Event is one entry in the play's append-only event log.
type Event struct {
	Tick        int     `json:"tick"`
	Time        float64 `json:"time"`
	Type        string  `json:"type"`
	Description string  `json:"description,omitempty"`
	EntityID    string  `json:"entityId,omitempty"`
}

// String returns the description, falling back to the type.
func (e Event) String() string {
	if e.Description != "" {
		return e.Description
	}
	return e.Type
}

// LastEvent returns the most recent event in the log.
func (s *Snapshot) LastEvent() (Event, bool) {
	if s == nil || len(s.Events) == 0 {
		return Event{}, false
	}
	return s.Events[len(s.Events)-1], true
}
