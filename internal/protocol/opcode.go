package protocol

import "fmt"

// Opcode selects the payload layout of a decrypted message. It is read
// big-endian from the first two body bytes.
type Opcode uint16

const (
	OpWorldChange  Opcode = 0x0402
	OpObjectCreate Opcode = 0x0415
	OpDamage       Opcode = 0x0613
	OpAkasic       Opcode = 0x067b
	OpMazeEnd      Opcode = 0x1175
	OpParty        Opcode = 0x1209
	OpForce        Opcode = 0x2e09
)

func (o Opcode) String() string {
	switch o {
	case OpWorldChange:
		return "world_change"
	case OpObjectCreate:
		return "object_create"
	case OpDamage:
		return "damage"
	case OpAkasic:
		return "akasic"
	case OpMazeEnd:
		return "maze_end"
	case OpParty:
		return "party"
	case OpForce:
		return "force"
	default:
		return o.Hex()
	}
}

// Hex renders the opcode as 0xNNNN.
func (o Opcode) Hex() string {
	return fmt.Sprintf("0x%04x", uint16(o))
}

// Known reports whether the decoder handles o.
func (o Opcode) Known() bool {
	switch o {
	case OpWorldChange, OpObjectCreate, OpDamage, OpAkasic, OpMazeEnd, OpParty, OpForce:
		return true
	}
	return false
}
