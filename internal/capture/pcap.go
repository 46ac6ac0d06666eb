package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"

	"firestige.xyz/dpsmeter/internal/core"
)

// pcapSource captures live traffic through libpcap.
type pcapSource struct {
	opts   Options
	out    *sender
	handle *pcap.Handle
	link   layers.LinkType
	filter string
}

func newPcapSource(opts Options, out *sender) *pcapSource {
	return &pcapSource{opts: opts, out: out}
}

func (s *pcapSource) Type() Type {
	return TypePCAP
}

// Open activates the device and installs the port filter. Cooked captures
// see both directions and rely on the packet type to keep inbound frames;
// other link types filter on the source port.
func (s *pcapSource) Open(port uint16) error {
	inactive, err := pcap.NewInactiveHandle(s.opts.Device)
	if err != nil {
		return fmt.Errorf("pcap inactive handle %s: %w", s.opts.Device, err)
	}
	defer inactive.CleanUp()

	if err := inactive.SetSnapLen(s.opts.SnapLen); err != nil {
		return fmt.Errorf("pcap set snaplen: %w", err)
	}
	if err := inactive.SetPromisc(s.opts.Promiscuous); err != nil {
		return fmt.Errorf("pcap set promisc: %w", err)
	}
	if err := inactive.SetTimeout(pollTimeout(s.opts)); err != nil {
		return fmt.Errorf("pcap set timeout: %w", err)
	}

	handle, err := inactive.Activate()
	if err != nil {
		return fmt.Errorf("pcap activate %s: %w", s.opts.Device, err)
	}

	link := handle.LinkType()
	filter := fmt.Sprintf("tcp port %d", port)
	if link != layers.LinkTypeLinuxSLL {
		filter = fmt.Sprintf("tcp src port %d", port)
	}
	if err := handle.SetBPFFilter(filter); err != nil {
		handle.Close()
		return fmt.Errorf("pcap set filter %q: %w", filter, err)
	}

	s.handle = handle
	s.link = link
	s.filter = filter
	s.out.logger.WithFields(map[string]interface{}{
		"device":    s.opts.Device,
		"link_type": link.String(),
		"filter":    filter,
		"snap_len":  s.opts.SnapLen,
	}).Info("pcap handle opened")
	return nil
}

// Serve polls the handle. The read timeout bounds how long cancellation
// takes to be observed.
func (s *pcapSource) Serve(ctx context.Context, out chan<- core.Frame) error {
	if s.handle == nil {
		return core.ErrCaptureNotOpen
	}
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		data, ci, err := s.handle.ReadPacketData()
		switch {
		case err == nil:
		case errors.Is(err, pcap.NextErrorTimeoutExpired):
			continue
		case errors.Is(err, io.EOF):
			return nil
		default:
			return fmt.Errorf("pcap read: %w", err)
		}

		payload, lt, err := Decapsulate(s.link, data)
		if err != nil {
			s.out.drop(dropReason(err), err)
			continue
		}
		f := core.Frame{
			Data:       payload,
			Timestamp:  ci.Timestamp,
			CaptureLen: uint32(ci.CaptureLength),
			Link:       lt,
		}
		if err := s.out.send(ctx, out, f); err != nil {
			return nil
		}
	}
}

func (s *pcapSource) Close() error {
	if s.handle != nil {
		s.handle.Close()
		s.handle = nil
	}
	s.out.close()
	return nil
}

// Device describes a capture device.
type Device struct {
	Name        string
	Description string
	Addresses   []string
}

// ListDevices returns the devices libpcap can open.
func ListDevices() ([]Device, error) {
	ifs, err := pcap.FindAllDevs()
	if err != nil {
		return nil, fmt.Errorf("find devices: %w", err)
	}
	devs := make([]Device, 0, len(ifs))
	for _, i := range ifs {
		d := Device{Name: i.Name, Description: i.Description}
		for _, a := range i.Addresses {
			d.Addresses = append(d.Addresses, a.IP.String())
		}
		devs = append(devs, d)
	}
	return devs, nil
}

// readTimeout is the poll interval used when Options.Timeout is unset.
const readTimeout = 100 * time.Millisecond

func pollTimeout(opts Options) time.Duration {
	if opts.Timeout > 0 {
		return opts.Timeout
	}
	return readTimeout
}
