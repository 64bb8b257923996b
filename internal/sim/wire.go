package sim

import (
	"encoding/json"
	"errors"
	"math"
)

// ErrMissingID is returned when an entity arrives without an id.
var ErrMissingID = errors.New("entity missing id")

// wireEntity is the flat record the engine sends. Every role-specific field
// is optional; decoding routes them into the matching Variant and drops the
// ones that do not belong to the entity's role.
type wireEntity struct {
	ID       string   `json:"id"`
	Name     string   `json:"name,omitempty"`
	Team     string   `json:"team,omitempty"`
	Role     string   `json:"role"`
	Position string   `json:"position,omitempty"`
	X        float64  `json:"x"`
	Y        float64  `json:"y"`
	VX       float64  `json:"vx"`
	VY       float64  `json:"vy"`
	Speed    float64  `json:"speed"`
	FacingX  *float64 `json:"facingX,omitempty"`
	FacingY  *float64 `json:"facingY,omitempty"`

	// Receiver
	RouteName       string   `json:"routeName,omitempty"`
	CurrentWaypoint *int     `json:"currentWaypoint,omitempty"`
	Separation      *float64 `json:"separation,omitempty"`
	IsTarget        bool     `json:"isTarget,omitempty"`

	// Defender
	CoverageType   string   `json:"coverageType,omitempty"`
	ZoneID         string   `json:"zoneId,omitempty"`
	ManTargetID    string   `json:"manTargetId,omitempty"`
	PursuitTargetX *float64 `json:"pursuitTargetX,omitempty"`
	PursuitTargetY *float64 `json:"pursuitTargetY,omitempty"`
	PursuitAngle   *float64 `json:"pursuitAngle,omitempty"`

	// QB
	DropbackPhase string   `json:"dropbackPhase,omitempty"`
	PocketTime    *float64 `json:"pocketTime,omitempty"`
	ThrowReady    bool     `json:"throwReady,omitempty"`

	// OL / DL
	BlockTargetID string   `json:"blockTargetId,omitempty"`
	IsEngaged     bool     `json:"isEngaged,omitempty"`
	BlockLeverage *float64 `json:"blockLeverage,omitempty"`

	// RB / FB
	VisionTargetX *float64 `json:"visionTargetX,omitempty"`
	VisionTargetY *float64 `json:"visionTargetY,omitempty"`
	IsJuking      bool     `json:"isJuking,omitempty"`

	// Ball carrier in a contested tackle
	TackleLeverage    *float64 `json:"tackleLeverage,omitempty"`
	PrimaryTacklerID  string   `json:"primaryTacklerId,omitempty"`
	TackleYardsGained *float64 `json:"tackleYardsGained,omitempty"`
	InTackle          bool     `json:"inTackle,omitempty"`
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *Entity) UnmarshalJSON(b []byte) error {
	var w wireEntity
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	if w.ID == "" {
		return ErrMissingID
	}

	e.Kinematics = Kinematics{
		ID:       w.ID,
		Name:     w.Name,
		Team:     Team(w.Team),
		Role:     ParseRole(w.Role),
		Position: w.Position,
		X:        finite(w.X),
		Y:        finite(w.Y),
		VX:       finite(w.VX),
		VY:       finite(w.VY),
		Speed:    finite(w.Speed),
		Facing:   vec(w.FacingX, w.FacingY),
	}
	if e.Name == "" {
		e.Name = w.ID
	}

	if w.TackleLeverage != nil || w.PrimaryTacklerID != "" || w.TackleYardsGained != nil || w.InTackle {
		t := &TackleTelemetry{
			PrimaryTacklerID: w.PrimaryTacklerID,
			InTackle:         w.InTackle,
		}
		if w.TackleLeverage != nil {
			l := ClampLeverage(*w.TackleLeverage)
			t.Leverage = &l
		}
		if w.TackleYardsGained != nil {
			t.YardsGained = finite(*w.TackleYardsGained)
		}
		e.Tackle = t
	}

	e.Variant = w.variant(e.Role)
	return nil
}

func (w wireEntity) variant(role Role) Variant {
	switch role {
	case RoleReceiver:
		r := Receiver{
			RouteName:       w.RouteName,
			CurrentWaypoint: -1,
			IsTarget:        w.IsTarget,
		}
		if w.CurrentWaypoint != nil {
			r.CurrentWaypoint = *w.CurrentWaypoint
		}
		r.Separation = deref(w.Separation)
		return r
	case RoleDefender:
		return Defender{
			Coverage:      CoverageType(w.CoverageType),
			ZoneID:        w.ZoneID,
			ManTargetID:   w.ManTargetID,
			PursuitTarget: vec(w.PursuitTargetX, w.PursuitTargetY),
			PursuitAngle:  deref(w.PursuitAngle),
		}
	case RoleQB:
		return QB{
			DropbackPhase: w.DropbackPhase,
			PocketTime:    deref(w.PocketTime),
			ThrowReady:    w.ThrowReady,
		}
	case RoleOL:
		return OL{Block: w.block()}
	case RoleDL:
		return DL{Block: w.block()}
	case RoleRB, RoleFB:
		return Ballcarrier{
			VisionTarget: vec(w.VisionTargetX, w.VisionTargetY),
			Juking:       w.IsJuking,
		}
	}
	return nil
}

func (w wireEntity) block() Block {
	return Block{
		TargetID: w.BlockTargetID,
		Engaged:  w.IsEngaged,
		Leverage: ClampLeverage(deref(w.BlockLeverage)),
	}
}

// MarshalJSON flattens the entity back into the wire record.
func (e Entity) MarshalJSON() ([]byte, error) {
	w := wireEntity{
		ID:       e.ID,
		Name:     e.Name,
		Team:     string(e.Team),
		Role:     string(e.Role),
		Position: e.Position,
		X:        e.X,
		Y:        e.Y,
		VX:       e.VX,
		VY:       e.VY,
		Speed:    e.Speed,
	}
	if e.Facing != nil {
		w.FacingX, w.FacingY = ptr(e.Facing.X), ptr(e.Facing.Y)
	}
	if t := e.Tackle; t != nil {
		w.TackleLeverage = t.Leverage
		w.PrimaryTacklerID = t.PrimaryTacklerID
		w.TackleYardsGained = ptr(t.YardsGained)
		w.InTackle = t.InTackle
	}

	switch v := e.Variant.(type) {
	case Receiver:
		w.RouteName = v.RouteName
		w.CurrentWaypoint = &v.CurrentWaypoint
		w.Separation = ptr(v.Separation)
		w.IsTarget = v.IsTarget
	case Defender:
		w.CoverageType = string(v.Coverage)
		w.ZoneID = v.ZoneID
		w.ManTargetID = v.ManTargetID
		if v.PursuitTarget != nil {
			w.PursuitTargetX, w.PursuitTargetY = ptr(v.PursuitTarget.X), ptr(v.PursuitTarget.Y)
		}
		w.PursuitAngle = ptr(v.PursuitAngle)
	case QB:
		w.DropbackPhase = v.DropbackPhase
		w.PocketTime = ptr(v.PocketTime)
		w.ThrowReady = v.ThrowReady
	case OL:
		w.setBlock(v.Block)
	case DL:
		w.setBlock(v.Block)
	case Ballcarrier:
		if v.VisionTarget != nil {
			w.VisionTargetX, w.VisionTargetY = ptr(v.VisionTarget.X), ptr(v.VisionTarget.Y)
		}
		w.IsJuking = v.Juking
	}
	return json.Marshal(w)
}

func (w *wireEntity) setBlock(b Block) {
	w.BlockTargetID = b.TargetID
	w.IsEngaged = b.Engaged
	w.BlockLeverage = ptr(b.Leverage)
}

// ClampLeverage forces a leverage value into [-1,1]. NaN becomes 0.
func ClampLeverage(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v > 1:
		return 1
	case v < -1:
		return -1
	}
	return v
}

func vec(x, y *float64) *Vec {
	if x == nil || y == nil {
		return nil
	}
	return &Vec{X: finite(*x), Y: finite(*y)}
}

func deref(p *float64) float64 {
	if p == nil {
		return 0
	}
	return finite(*p)
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func ptr(v float64) *float64 { return &v }
