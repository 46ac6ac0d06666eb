package core

// EventKind tags a decoded domain event.
type EventKind uint8

const (
	KindWorldChange EventKind = iota + 1
	KindOwnerMapping
	KindDamage
	KindPartyMember
	KindMazeEnd
)

func (k EventKind) String() string {
	switch k {
	case KindWorldChange:
		return "world_change"
	case KindOwnerMapping:
		return "owner_mapping"
	case KindDamage:
		return "damage"
	case KindPartyMember:
		return "party_member"
	case KindMazeEnd:
		return "maze_end"
	default:
		return "unknown"
	}
}

// Event is a semantic message produced by the protocol decoder.
type Event interface {
	Kind() EventKind
}

// EventSink receives decoded events in stream order.
type EventSink func(Event)

// WorldChange reports that ActorID (the local player) entered WorldID.
type WorldChange struct {
	ActorID uint32
	WorldID uint16
}

// OwnerMapping attributes EntityID (summon, projectile, pet) to OwnerID.
type OwnerMapping struct {
	EntityID uint32
	OwnerID  uint32
}

// Damage is one hit from SourceID on TargetID.
type Damage struct {
	SourceID      uint32
	Combo         uint16
	TargetID      uint32
	TotalDamage   uint32
	SpecialDamage uint32 // soulstone portion
	Miss          bool
	Crit          bool
}

// PartyMember is one roster entry.
type PartyMember struct {
	PlayerID uint32
	Nickname string
	Class    uint8
}

// MazeEnd marks the end of an instanced encounter.
type MazeEnd struct{}

func (WorldChange) Kind() EventKind  { return KindWorldChange }
func (OwnerMapping) Kind() EventKind { return KindOwnerMapping }
func (Damage) Kind() EventKind       { return KindDamage }
func (PartyMember) Kind() EventKind  { return KindPartyMember }
func (MazeEnd) Kind() EventKind      { return KindMazeEnd }
