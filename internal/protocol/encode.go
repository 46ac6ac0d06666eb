package protocol

import (
	"encoding/binary"

	"firestige.xyz/dpsmeter/internal/core"
)

// AppendMessage appends a complete type-1 message carrying op and payload,
// obfuscated the way the server sends it.
func AppendMessage(dst []byte, op Opcode, payload []byte) []byte {
	dst = AppendHeader(dst, TypeMessage, opcodeLen+len(payload))
	start := len(dst)
	dst = binary.BigEndian.AppendUint16(dst, uint16(op))
	dst = append(dst, payload...)
	XOR(dst[start:])
	return dst
}

// The Encode functions build payloads in the layouts the decoder reads.
// Unknown fields are zero.

func EncodeWorldChange(ev core.WorldChange) []byte {
	p := make([]byte, worldChangeLen)
	binary.LittleEndian.PutUint32(p[0:], ev.ActorID)
	binary.LittleEndian.PutUint16(p[24:], ev.WorldID)
	return p
}

func EncodeObjectCreate(ev core.OwnerMapping) []byte {
	p := make([]byte, objectCreateLen)
	binary.LittleEndian.PutUint32(p[1:], ev.EntityID)
	binary.LittleEndian.PutUint32(p[38:], ev.OwnerID)
	return p
}

func EncodeAkasic(ev core.OwnerMapping) []byte {
	p := make([]byte, akasicLen)
	binary.LittleEndian.PutUint32(p[0:], ev.OwnerID)
	binary.LittleEndian.PutUint32(p[4:], ev.EntityID)
	return p
}

// EncodeDamage builds a batch. Source and combo are taken from the first
// hit since the wire format carries one player entry per batch.
func EncodeDamage(hits []core.Damage) []byte {
	p := make([]byte, 1+len(hits)*damageMonsterLen+damagePlayerLen)
	p[0] = uint8(len(hits))
	for i, h := range hits {
		m := p[1+i*damageMonsterLen:]
		binary.LittleEndian.PutUint32(m[0:], h.TargetID)
		var t uint8
		if h.Miss {
			t |= damageMiss
		}
		if h.Crit {
			t |= damageCrit
		}
		m[5] = t
		binary.LittleEndian.PutUint32(m[6:], h.TotalDamage)
		binary.LittleEndian.PutUint32(m[10:], h.SpecialDamage)
	}
	if len(hits) > 0 {
		pl := p[1+len(hits)*damageMonsterLen:]
		binary.LittleEndian.PutUint32(pl[0:], hits[0].SourceID)
		binary.LittleEndian.PutUint16(pl[30:], hits[0].Combo)
	}
	return p
}

// EncodeRoster builds a party roster with full 32-byte trailers.
func EncodeRoster(hostID uint32, members []core.PartyMember) []byte {
	p := make([]byte, partyHeaderLen)
	binary.LittleEndian.PutUint32(p[4:], hostID)
	p[18] = uint8(len(members))
	for _, m := range members {
		nick, _ := utf16le.NewEncoder().Bytes([]byte(m.Nickname))
		p = binary.LittleEndian.AppendUint32(p, m.PlayerID)
		p = binary.LittleEndian.AppendUint16(p, uint16(len(nick)))
		p = append(p, nick...)
		trailer := make([]byte, partyTrailerLen)
		trailer[1] = m.Class
		p = append(p, trailer...)
	}
	return p
}
