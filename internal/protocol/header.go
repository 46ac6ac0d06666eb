package protocol

import "encoding/binary"

// Wire header: magic u16 LE, size u16 LE (header included), type u8.
const (
	HeaderLen = 5

	Magic       uint16 = 2
	TypeMessage uint8  = 1

	opcodeLen = 2
)

type header struct {
	magic uint16
	size  uint16
	typ   uint8
}

// parseHeader reads the header from the first HeaderLen bytes of b.
func parseHeader(b []byte) header {
	return header{
		magic: binary.LittleEndian.Uint16(b[0:2]),
		size:  binary.LittleEndian.Uint16(b[2:4]),
		typ:   b[4],
	}
}

// messageLen is the number of bytes a message occupies. Sizes smaller than
// the header are treated as header-only messages.
func (h header) messageLen() int {
	if int(h.size) < HeaderLen {
		return HeaderLen
	}
	return int(h.size)
}

// AppendHeader appends a header for a body of bodyLen bytes.
func AppendHeader(dst []byte, typ uint8, bodyLen int) []byte {
	dst = binary.LittleEndian.AppendUint16(dst, Magic)
	dst = binary.LittleEndian.AppendUint16(dst, uint16(HeaderLen+bodyLen))
	return append(dst, typ)
}
