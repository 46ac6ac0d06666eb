// Package stream rebuilds the ordered server-to-client byte stream of one
// TCP connection from captured IPv4 packets.
package stream

import (
	"encoding/binary"
	"net/netip"

	"firestige.xyz/dpsmeter/internal/core"
)

const (
	ipv4HeaderMinLen = 20
	protocolTCP      = 6
)

// decodeIPv4 decodes an IPv4 header.
// Returns IPHeader and the payload bounded by Total Length when it is sane.
func decodeIPv4(data []byte) (core.IPHeader, []byte, error) {
	if len(data) < ipv4HeaderMinLen {
		return core.IPHeader{}, nil, core.ErrPacketTooShort
	}

	version := data[0] >> 4
	if version != 4 {
		return core.IPHeader{Version: version}, nil, core.ErrUnsupportedProto
	}

	// IHL (Internet Header Length) - lower 4 bits of first byte, in 32-bit words
	headerLen := int(data[0]&0x0F) * 4
	if headerLen < ipv4HeaderMinLen || len(data) < headerLen {
		return core.IPHeader{}, nil, core.ErrPacketTooShort
	}

	ip := core.IPHeader{
		Version:  4,
		TotalLen: binary.BigEndian.Uint16(data[2:4]),
		TTL:      data[8],
		Protocol: data[9],
		SrcIP:    netip.AddrFrom4([4]byte(data[12:16])),
		DstIP:    netip.AddrFrom4([4]byte(data[16:20])),
	}

	// Trailing link-layer padding is cut off when Total Length is plausible.
	// A zero Total Length (segmentation offload) keeps the captured length.
	end := len(data)
	if tl := int(ip.TotalLen); tl >= headerLen && tl < end {
		end = tl
	}
	return ip, data[headerLen:end], nil
}
