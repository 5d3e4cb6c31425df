// pkg/core/events.go
package core

// Variant is the kind of enemy a spawn was rolled as.
type Variant string

const (
	VariantNormal   Variant = "normal"
	VariantSprinter Variant = "sprinter"
	VariantBreaker  Variant = "breaker"
	VariantTank     Variant = "tank"
)

// Special reports whether v counts towards special kills.
func (v Variant) Special() bool {
	return v != "" && v != VariantNormal
}

// StatProfile holds the host's global behaviour stats. Zero means "leave unchanged".
type StatProfile struct {
	Speed     int
	Strength  int
	Toughness int
	Cognition int
}

// Merge returns p with every non-zero field of o applied.
func (p StatProfile) Merge(o StatProfile) StatProfile {
	if o.Speed != 0 {
		p.Speed = o.Speed
	}
	if o.Strength != 0 {
		p.Strength = o.Strength
	}
	if o.Toughness != 0 {
		p.Toughness = o.Toughness
	}
	if o.Cognition != 0 {
		p.Cognition = o.Cognition
	}
	return p
}

// ProfileFor returns the stat overrides that realise a variant.
func ProfileFor(v Variant) StatProfile {
	switch v {
	case VariantSprinter:
		return StatProfile{Speed: 1}
	case VariantBreaker:
		return StatProfile{Strength: 1}
	case VariantTank:
		return StatProfile{Strength: 1, Toughness: 1}
	default:
		return StatProfile{}
	}
}

// KillEvent is reported by the host whenever a hostile dies.
type KillEvent struct {
	EntityID string
	Position Vec2
	KillerID string
	Melee    bool
	Time     GameTime
}
