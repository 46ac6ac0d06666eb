package stream

import (
	"encoding/binary"

	"firestige.xyz/dpsmeter/internal/core"
)

const tcpHeaderMinLen = 20

// decodeTCP decodes a TCP header.
// Returns TransportHeader and the segment payload.
func decodeTCP(data []byte) (core.TransportHeader, []byte, error) {
	if len(data) < tcpHeaderMinLen {
		return core.TransportHeader{}, nil, core.ErrPacketTooShort
	}

	transport := core.TransportHeader{
		Protocol: protocolTCP,
		SrcPort:  binary.BigEndian.Uint16(data[0:2]),
		DstPort:  binary.BigEndian.Uint16(data[2:4]),
		SeqNum:   binary.BigEndian.Uint32(data[4:8]),
		AckNum:   binary.BigEndian.Uint32(data[8:12]),
	}

	// Data Offset (upper 4 bits of byte 12), in 32-bit words
	headerLen := int(data[12]>>4) * 4
	if headerLen < tcpHeaderMinLen || len(data) < headerLen {
		return transport, nil, core.ErrPacketTooShort
	}

	// Byte 13: | CWR | ECE | URG | ACK | PSH | RST | SYN | FIN |
	transport.TCPFlags = data[13] & 0x3F

	return transport, data[headerLen:], nil
}
