// Package core defines core types with zero external dependencies.
package core

import "net/netip"

// IPHeader represents the L3 IPv4 header fields the reassembler needs.
type IPHeader struct {
	Version  uint8
	SrcIP    netip.Addr
	DstIP    netip.Addr
	Protocol uint8 // TCP=6
	TTL      uint8
	TotalLen uint16
}

// TCP flag bits as found in byte 13 of the TCP header.
const (
	TCPFlagFIN uint8 = 0x01
	TCPFlagSYN uint8 = 0x02
	TCPFlagRST uint8 = 0x04
	TCPFlagPSH uint8 = 0x08
	TCPFlagACK uint8 = 0x10
	TCPFlagURG uint8 = 0x20
)

// TransportHeader represents the L4 TCP header.
type TransportHeader struct {
	SrcPort  uint16
	DstPort  uint16
	Protocol uint8
	TCPFlags uint8
	SeqNum   uint32
	AckNum   uint32
}

// Has reports whether all bits in flag are set.
func (t TransportHeader) Has(flag uint8) bool {
	return t.TCPFlags&flag == flag
}
