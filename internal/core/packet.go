// Package core defines core data structures with zero external dependencies.
package core

import (
	"time"
)

// LinkType identifies the encapsulation of Frame.Data.
type LinkType uint8

const (
	// LinkRawIPv4 frames begin directly at the IPv4 header.
	LinkRawIPv4 LinkType = iota
	// LinkLinuxSLL frames carry a 16-byte Linux cooked capture header.
	LinkLinuxSLL
	// LinkEthernet frames carry a 14-byte Ethernet II header.
	LinkEthernet
)

func (l LinkType) String() string {
	switch l {
	case LinkRawIPv4:
		return "raw"
	case LinkLinuxSLL:
		return "linux_sll"
	case LinkEthernet:
		return "ethernet"
	default:
		return "unknown"
	}
}

// Frame is one captured unit handed from a packet source to the pipeline.
// Data is owned by the receiver once sent.
type Frame struct {
	Data       []byte    // IP packet after link-layer stripping
	Timestamp  time.Time // Capture timestamp
	CaptureLen uint32    // Bytes captured on the wire, before stripping
	Link       LinkType  // Encapsulation the frame arrived with
}
