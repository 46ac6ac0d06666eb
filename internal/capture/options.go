package capture

import (
	"fmt"
	"strings"
	"time"
)

// Type names a packet source backend.
type Type string

const (
	TypePCAP     Type = "pcap"
	TypeAFPacket Type = "afpacket"
	TypeFile     Type = "file"
)

// Options configures every backend; each backend reads the fields it needs.
type Options struct {
	Backend      Type          `mapstructure:"backend" yaml:"backend"`               // pcap, afpacket or file
	Device       string        `mapstructure:"device" yaml:"device"`                 // pcap device, "any" for all
	Interface    string        `mapstructure:"interface" yaml:"interface"`           // afpacket interface, empty for all
	Port         uint16        `mapstructure:"port" yaml:"port"`                     // game server TCP port
	SnapLen      int           `mapstructure:"snap_len" yaml:"snap_len"`             // capture length
	Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout"`               // read timeout
	Promiscuous  bool          `mapstructure:"promiscuous" yaml:"promiscuous"`       // pcap promiscuous mode
	BufferSizeMB int           `mapstructure:"buffer_size_mb" yaml:"buffer_size_mb"` // afpacket ring size
	File         string        `mapstructure:"file" yaml:"file"`                     // pcap file for replay
	DumpFile     string        `mapstructure:"dump_file" yaml:"dump_file"`           // optional pcap copy of accepted frames
}

// DefaultOptions returns options for live capture on the default port.
func DefaultOptions() Options {
	return Options{
		Backend:      TypePCAP,
		Device:       "any",
		Port:         DefaultPort,
		SnapLen:      65535,
		Timeout:      100 * time.Millisecond,
		Promiscuous:  false,
		BufferSizeMB: 8,
	}
}

// DefaultPort is the game server port observed by default.
const DefaultPort uint16 = 15011

// ParseType converts a string to Type (case-insensitive, trimmed).
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pcap", "libpcap", "":
		return TypePCAP, nil
	case "afpacket", "af_packet", "af-packet":
		return TypeAFPacket, nil
	case "file", "offline", "replay":
		return TypeFile, nil
	default:
		return "", fmt.Errorf("unknown capture backend: %q", s)
	}
}

// UnmarshalText implements encoding.TextUnmarshaler for mapstructure and yaml.
func (t *Type) UnmarshalText(text []byte) error {
	v, err := ParseType(string(text))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Validate checks the options for the selected backend.
func (o *Options) Validate() error {
	if _, err := ParseType(string(o.Backend)); err != nil {
		return err
	}
	if o.Port == 0 {
		return fmt.Errorf("capture.port must be non-zero")
	}
	if o.SnapLen <= 0 {
		return fmt.Errorf("capture.snap_len must be positive, got %d", o.SnapLen)
	}
	if o.Backend == TypeFile && o.File == "" {
		return fmt.Errorf("capture.file is required for the file backend")
	}
	if o.Backend == TypeAFPacket && o.BufferSizeMB <= 0 {
		return fmt.Errorf("capture.buffer_size_mb must be positive, got %d", o.BufferSizeMB)
	}
	return nil
}
