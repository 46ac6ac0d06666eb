package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/dpsmeter/internal/core"
)

// Payloads below are written byte by byte, independent of the Encode helpers.

func TestWorldChangeWireLayout(t *testing.T) {
	p := make([]byte, 89)
	p[0], p[1], p[2], p[3] = 0x4D, 0x00, 0x00, 0x00 // actorId = 77
	p[4] = 0xEE                                     // unknown
	p[24], p[25] = 0x85, 0x4E                       // worldId = 20101
	p[26] = 0xEE                                    // unknown

	ev, err := decodeWorldChange(p)
	require.NoError(t, err)
	assert.Equal(t, core.WorldChange{ActorID: 77, WorldID: 20101}, ev)
}

func TestObjectCreateWireLayout(t *testing.T) {
	p := make([]byte, 100)
	p[0] = 0xEE                                         // unknown
	p[1], p[2], p[3], p[4] = 0x78, 0x56, 0x34, 0x12     // entityId = 0x12345678
	p[37] = 0xEE                                        // unknown
	p[38], p[39], p[40], p[41] = 0xE9, 0x03, 0x00, 0x00 // ownerId = 1001

	ev, err := decodeObjectCreate(p)
	require.NoError(t, err)
	assert.Equal(t, core.OwnerMapping{EntityID: 0x12345678, OwnerID: 1001}, ev)
}

func TestDamageWireLayout(t *testing.T) {
	p := make([]byte, 1+40+34)
	p[0] = 0x01 // count = 1

	// monster entry at 1
	p[1], p[2], p[3], p[4] = 0x10, 0x00, 0x00, 0x40     // monsterId = 0x40000010
	p[5] = 0xEE                                         // unknown
	p[6] = 0x04                                         // damageType: crit
	p[7], p[8], p[9], p[10] = 0xDC, 0x05, 0x00, 0x00    // totalDmg = 1500
	p[11], p[12], p[13], p[14] = 0xC8, 0x00, 0x00, 0x00 // soulstoneDmg = 200
	p[15], p[16], p[17], p[18] = 0xFF, 0xFF, 0x00, 0x00 // remainHp

	// player entry at 41
	p[41], p[42], p[43], p[44] = 0x09, 0x00, 0x00, 0x00 // playerId = 9
	p[65], p[66], p[67], p[68] = 0x39, 0x30, 0x00, 0x00 // skillId = 12345
	p[71], p[72] = 0x0C, 0x00                           // maxCombo = 12

	hits, err := decodeDamage(p)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, core.Damage{
		SourceID:      9,
		Combo:         12,
		TargetID:      0x40000010,
		TotalDamage:   1500,
		SpecialDamage: 200,
		Crit:          true,
	}, hits[0])
}

func TestRosterWireLayout(t *testing.T) {
	p := []byte{
		0xEE, 0xEE, 0xEE, 0xEE, // unknown
		0x65, 0x00, 0x00, 0x00, // hostId = 101
		0, 0, 0, 0, 0, 0, 0, 0, 0, 0, // unknown
		0x01,                   // playerCount = 1
		0x65, 0x00, 0x00, 0x00, // playerId = 101
		0x04, 0x00, // nickSize = 4
		0x48, 0x00, 0x69, 0x00, // "Hi" UTF-16LE
		0xEE, 0x03, // trailer: unknown, class = 3
	}
	p = append(p, make([]byte, 30)...) // rest of the 32-byte trailer

	got, err := decodeRoster(p)
	require.NoError(t, err)
	assert.Equal(t, []core.PartyMember{{PlayerID: 101, Nickname: "Hi", Class: 3}}, got)
}

func TestAkasicFrameOnTheWire(t *testing.T) {
	d, rec := newTestDecoder()

	frame := []byte{
		0x02, 0x00, // magic = 2
		0x0F, 0x00, // size = 15
		0x01, // type = message
		// XOR with 60 3B 0B of: 06 7B | E9 03 00 00 | 05 00 00 40
		0x66, 0x40, // opcode 0x067b
		0xE2, 0x63, 0x3B, 0x0B, // ownerId = 1001
		0x65, 0x3B, 0x0B, 0x20, // entityId = 0x40000005
	}
	_, err := d.Write(frame)
	require.NoError(t, err)

	require.Len(t, rec.events, 1)
	assert.Equal(t, core.OwnerMapping{EntityID: 0x40000005, OwnerID: 1001}, rec.events[0])
}

func TestMazeEndFrameOnTheWire(t *testing.T) {
	d, rec := newTestDecoder()

	// magic 2, size 7, type 1, opcode 0x1175 XOR 60 3B
	_, err := d.Write([]byte{0x02, 0x00, 0x07, 0x00, 0x01, 0x71, 0x4E})
	require.NoError(t, err)

	require.Len(t, rec.events, 1)
	assert.Equal(t, core.MazeEnd{}, rec.events[0])
}
