package sim

// Role is the discriminant carried on the wire for every entity.
type Role string

const (
	RoleReceiver Role = "receiver"
	RoleDefender Role = "defender"
	RoleQB       Role = "qb"
	RoleOL       Role = "ol"
	RoleDL       Role = "dl"
	RoleRB       Role = "rb"
	RoleFB       Role = "fb"
	RoleUnknown  Role = ""
)

// ParseRole maps a wire string to a Role. Unrecognized values become
// RoleUnknown; the entity is still drawn, just without role overlays.
func ParseRole(s string) Role {
	switch r := Role(s); r {
	case RoleReceiver, RoleDefender, RoleQB, RoleOL, RoleDL, RoleRB, RoleFB:
		return r
	}
	return RoleUnknown
}

// IsPassCatcher reports whether a catch by this entity counts as a reception.
// A tight end lined up as a blocker keeps position "TE", so the label is
// checked as well as the role.
func (e Entity) IsPassCatcher() bool {
	switch e.Role {
	case RoleReceiver, RoleRB, RoleFB:
		return true
	}
	return e.Position == "TE"
}

// Team is which side an entity plays for.
type Team string

const (
	TeamOffense Team = "offense"
	TeamDefense Team = "defense"
)

// Vec is a 2D vector in yards (or yards/second for velocities).
type Vec struct {
	X, Y float64
}

// TackleTelemetry is present on whoever is carrying the ball while a tackle
// is being contested. Any role can carry the ball, so it sits on the base.
type TackleTelemetry struct {
	Leverage         *float64 // [-1,1]; positive means the carrier is winning
	PrimaryTacklerID string
	YardsGained      float64 // Yards after contact, monotonic within one engagement
	InTackle         bool
}

// Kinematics is the common base shared by every entity variant.
type Kinematics struct {
	ID       string
	Name     string
	Team     Team
	Role     Role
	Position string // Display label, e.g. "WR", "TE", "CB"

	X, Y   float64
	VX, VY float64
	Speed  float64
	Facing *Vec

	Tackle *TackleTelemetry
}

// VariantKind enumerates the role-specific telemetry shapes.
type VariantKind uint8

const (
	KindNone VariantKind = iota
	KindReceiver
	KindDefender
	KindQB
	KindOL
	KindDL
	KindBallcarrier
)

// Variant is the tagged union of role-specific telemetry. Exactly one concrete
// type exists per kind; overlay code type-switches on it.
type Variant interface {
	Kind() VariantKind
}

// Receiver carries route-running telemetry.
type Receiver struct {
	RouteName       string
	CurrentWaypoint int // Index into the entity's waypoint list, -1 if unknown
	Separation      float64
	IsTarget        bool
}

// CoverageType is how a defender is assigned.
type CoverageType string

const (
	CoverageMan  CoverageType = "man"
	CoverageZone CoverageType = "zone"
)

// Defender carries coverage and pursuit telemetry.
type Defender struct {
	Coverage      CoverageType
	ZoneID        string
	ManTargetID   string
	PursuitTarget *Vec
	PursuitAngle  float64
}

// QB carries passer telemetry.
type QB struct {
	DropbackPhase string
	PocketTime    float64
	ThrowReady    bool
}

// Block is shared blocking telemetry for both lines.
type Block struct {
	TargetID string
	Engaged  bool
	Leverage float64
}

// OL is an offensive lineman.
type OL struct {
	Block Block
}

// DL is a defensive lineman.
type DL struct {
	Block Block
}

// Ballcarrier is a running back or fullback.
type Ballcarrier struct {
	VisionTarget *Vec
	Juking       bool
}

func (Receiver) Kind() VariantKind    { return KindReceiver }
func (Defender) Kind() VariantKind    { return KindDefender }
func (QB) Kind() VariantKind          { return KindQB }
func (OL) Kind() VariantKind          { return KindOL }
func (DL) Kind() VariantKind          { return KindDL }
func (Ballcarrier) Kind() VariantKind { return KindBallcarrier }

// Entity is one player on the field at a given tick. Entities are values and
// are never mutated after decoding; each tick replaces the whole slice.
type Entity struct {
	Kinematics
	Variant Variant // nil for RoleUnknown
}

// Pos returns the entity's ground position.
func (e Entity) Pos() Vec {
	return Vec{X: e.X, Y: e.Y}
}

// AsDefender returns the defender telemetry if this entity is a defender.
func (e Entity) AsDefender() (Defender, bool) {
	d, ok := e.Variant.(Defender)
	return d, ok
}

// AsReceiver returns the route telemetry if this entity is a receiver.
func (e Entity) AsReceiver() (Receiver, bool) {
	r, ok := e.Variant.(Receiver)
	return r, ok
}

// BlockInfo returns blocking telemetry for either line.
func (e Entity) BlockInfo() (Block, bool) {
	switch v := e.Variant.(type) {
	case OL:
		return v.Block, true
	case DL:
		return v.Block, true
	}
	return Block{}, false
}

// Kind returns the variant kind, KindNone when the role is unknown.
func (e Entity) Kind() VariantKind {
	if e.Variant == nil {
		return KindNone
	}
	return e.Variant.Kind()
}
