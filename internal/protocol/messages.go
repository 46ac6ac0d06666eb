package protocol

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding/unicode"

	"firestige.xyz/dpsmeter/internal/core"
)

// Payload layouts, in bytes following the opcode.
const (
	worldChangeLen   = 89
	objectCreateLen  = 100
	akasicLen        = 8
	damageMonsterLen = 40
	damagePlayerLen  = 34
	partyHeaderLen   = 19
	partyEntryLen    = 6
	partyTrailerLen  = 32
)

// Damage type bits.
const (
	damageMiss uint8 = 0x01
	damageCrit uint8 = 0x04
)

// decodeWorldChange: actorId u32 @0, worldId u16 @24.
func decodeWorldChange(p []byte) (core.WorldChange, error) {
	if len(p) < worldChangeLen {
		return core.WorldChange{}, fmt.Errorf("world change %d bytes: %w", len(p), core.ErrShortPayload)
	}
	r := newReader(p)
	ev := core.WorldChange{ActorID: r.u32()}
	r.skip(20)
	ev.WorldID = r.u16()
	return ev, r.err
}

// decodeObjectCreate: entityId u32 @1, ownerId u32 @38.
func decodeObjectCreate(p []byte) (core.OwnerMapping, error) {
	if len(p) < objectCreateLen {
		return core.OwnerMapping{}, fmt.Errorf("object create %d bytes: %w", len(p), core.ErrShortPayload)
	}
	r := newReader(p)
	r.skip(1)
	ev := core.OwnerMapping{EntityID: r.u32()}
	r.skip(33)
	ev.OwnerID = r.u32()
	return ev, r.err
}

// decodeAkasic: ownerId u32 @0, entityId u32 @4.
func decodeAkasic(p []byte) (core.OwnerMapping, error) {
	if len(p) < akasicLen {
		return core.OwnerMapping{}, fmt.Errorf("akasic %d bytes: %w", len(p), core.ErrShortPayload)
	}
	r := newReader(p)
	owner := r.u32()
	entity := r.u32()
	return core.OwnerMapping{EntityID: entity, OwnerID: owner}, r.err
}

// decodeDamage decodes a batch: count u8, count monster entries, then one
// player entry shared by every hit in the batch.
func decodeDamage(p []byte) ([]core.Damage, error) {
	r := newReader(p)
	n := int(r.u8())
	if r.err != nil {
		return nil, fmt.Errorf("damage count: %w", r.err)
	}
	if r.remaining() < n*damageMonsterLen+damagePlayerLen {
		return nil, fmt.Errorf("damage batch of %d needs %d bytes, have %d: %w",
			n, n*damageMonsterLen+damagePlayerLen, r.remaining(), core.ErrShortPayload)
	}

	monsters := r.bytes(n * damageMonsterLen)

	// player entry: playerId u32 @0, skillId u32 @24, maxCombo u16 @30
	pr := newReader(r.bytes(damagePlayerLen))
	playerID := pr.u32()
	pr.skip(26)
	combo := pr.u16()

	out := make([]core.Damage, 0, n)
	for i := 0; i < n; i++ {
		// monster entry: monsterId u32 @0, damageType u8 @5, totalDmg u32 @6,
		// soulstoneDmg u32 @10, remainHp u32 @14
		mr := newReader(monsters[i*damageMonsterLen : (i+1)*damageMonsterLen])
		target := mr.u32()
		mr.skip(1)
		dmgType := mr.u8()
		total := mr.u32()
		special := mr.u32()
		out = append(out, core.Damage{
			SourceID:      playerID,
			Combo:         combo,
			TargetID:      target,
			TotalDamage:   total,
			SpecialDamage: special,
			Miss:          dmgType&damageMiss != 0,
			Crit:          dmgType&damageCrit != 0,
		})
	}
	return out, nil
}

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// decodeRoster decodes a party/force roster. Entries decoded before a
// failed length check are returned together with the error.
func decodeRoster(p []byte) ([]core.PartyMember, error) {
	if len(p) < partyHeaderLen {
		return nil, fmt.Errorf("roster header %d bytes: %w", len(p), core.ErrShortPayload)
	}
	r := newReader(p)
	r.skip(18) // unknown u32, hostId u32 @4, unknown[10]
	count := int(r.u8())

	out := make([]core.PartyMember, 0, count)
	for i := 0; i < count; i++ {
		if r.remaining() < partyEntryLen {
			return out, fmt.Errorf("roster entry %d: %w", i, core.ErrShortPayload)
		}
		id := r.u32()
		nickSize := int(r.u16())
		if r.remaining() < nickSize {
			return out, fmt.Errorf("roster entry %d nickname: %w", i, core.ErrShortPayload)
		}
		nick := decodeNickname(r.bytes(nickSize))

		// trailer: class id at byte 1; the rest is unknown
		if r.remaining() < 2 {
			return out, fmt.Errorf("roster entry %d trailer: %w", i, core.ErrShortPayload)
		}
		rest := r.remaining()
		trailer := r.bytes(min(partyTrailerLen, rest))
		out = append(out, core.PartyMember{PlayerID: id, Nickname: nick, Class: trailer[1]})

		if rest < partyTrailerLen && i+1 < count {
			return out, fmt.Errorf("roster entry %d trailer truncated: %w", i, core.ErrShortPayload)
		}
	}
	return out, nil
}

// decodeNickname converts UTF-16LE code units to a string. An odd
// trailing byte is ignored.
func decodeNickname(b []byte) string {
	b = b[:len(b)&^1]
	s, err := utf16le.NewDecoder().Bytes(b)
	if err != nil {
		return ""
	}
	return strings.TrimRight(string(s), "\x00")
}
