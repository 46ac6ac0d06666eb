package capture

import (
	"encoding/binary"
	"fmt"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"firestige.xyz/dpsmeter/internal/core"
)

const sllHeaderLen = 16

// Drop reasons reported by Decapsulate callers.
const (
	dropLinkHeader = "link_header"
	dropNotHost    = "not_host"
	dropNotIPv4    = "not_ipv4"
	dropLinkType   = "link_type"
	dropForeign    = "foreign_port"
)

// linkError carries the drop reason alongside the sentinel error.
type linkError struct {
	reason string
	err    error
}

func (e *linkError) Error() string { return e.err.Error() }
func (e *linkError) Unwrap() error { return e.err }

func dropReason(err error) string {
	if le, ok := err.(*linkError); ok {
		return le.reason
	}
	return dropLinkHeader
}

// Decapsulate strips the link-layer header of a captured frame and returns
// the IPv4 packet it carries.
//
// Linux cooked captures must be addressed to this host, carry a 6-byte
// hardware address and an IPv4 protocol. Ethernet frames must carry IPv4.
// Raw IP captures are passed through.
func Decapsulate(lt layers.LinkType, data []byte) ([]byte, core.LinkType, error) {
	switch lt {
	case layers.LinkTypeLinuxSLL:
		// LinuxSLL trusts the address length field when slicing the address.
		if len(data) >= sllHeaderLen && binary.BigEndian.Uint16(data[4:6]) > 8 {
			return nil, core.LinkLinuxSLL, &linkError{dropLinkHeader, fmt.Errorf("%w: address length %d", core.ErrBadLinkHeader, binary.BigEndian.Uint16(data[4:6]))}
		}
		var sll layers.LinuxSLL
		if err := sll.DecodeFromBytes(data, gopacket.NilDecodeFeedback); err != nil {
			return nil, core.LinkLinuxSLL, &linkError{dropLinkHeader, fmt.Errorf("%w: %v", core.ErrBadLinkHeader, err)}
		}
		if sll.PacketType != layers.LinuxSLLPacketTypeHost {
			return nil, core.LinkLinuxSLL, &linkError{dropNotHost, fmt.Errorf("%w: packet type %d", core.ErrBadLinkHeader, uint16(sll.PacketType))}
		}
		if sll.AddrLen != 6 {
			return nil, core.LinkLinuxSLL, &linkError{dropLinkHeader, fmt.Errorf("%w: address length %d", core.ErrBadLinkHeader, sll.AddrLen)}
		}
		if sll.EthernetType != layers.EthernetTypeIPv4 {
			return nil, core.LinkLinuxSLL, &linkError{dropNotIPv4, fmt.Errorf("%w: protocol %s", core.ErrUnsupportedProto, sll.EthernetType)}
		}
		return sll.Payload, core.LinkLinuxSLL, nil

	case layers.LinkTypeEthernet:
		var eth layers.Ethernet
		if err := eth.DecodeFromBytes(data, gopacket.NilDecodeFeedback); err != nil {
			return nil, core.LinkEthernet, &linkError{dropLinkHeader, fmt.Errorf("%w: %v", core.ErrBadLinkHeader, err)}
		}
		if eth.EthernetType != layers.EthernetTypeIPv4 {
			return nil, core.LinkEthernet, &linkError{dropNotIPv4, fmt.Errorf("%w: ethertype %s", core.ErrUnsupportedProto, eth.EthernetType)}
		}
		return eth.Payload, core.LinkEthernet, nil

	case layers.LinkTypeRaw, layers.LinkTypeIPv4:
		if len(data) == 0 {
			return nil, core.LinkRawIPv4, &linkError{dropLinkHeader, core.ErrPacketTooShort}
		}
		return data, core.LinkRawIPv4, nil
	}
	return nil, core.LinkRawIPv4, &linkError{dropLinkType, fmt.Errorf("%w: link type %s", core.ErrUnsupportedProto, lt)}
}

// fromPort reports whether ip is a TCP segment sent from port. Packets
// that do not decode are reported as matching and left to the reassembler.
func fromPort(ip []byte, port uint16) bool {
	var (
		v4  layers.IPv4
		tcp layers.TCP
	)
	if err := v4.DecodeFromBytes(ip, gopacket.NilDecodeFeedback); err != nil {
		return true
	}
	if v4.Protocol != layers.IPProtocolTCP {
		return false
	}
	if err := tcp.DecodeFromBytes(v4.Payload, gopacket.NilDecodeFeedback); err != nil {
		return true
	}
	return uint16(tcp.SrcPort) == port
}
