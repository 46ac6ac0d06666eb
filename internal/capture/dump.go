package capture

import (
	"bufio"
	"fmt"
	"os"
	"sync"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"firestige.xyz/dpsmeter/internal/core"
)

// Dumper writes forwarded IP packets to a raw-IP pcap file that the file
// backend can replay.
type Dumper struct {
	mu     sync.Mutex
	file   *os.File
	buf    *bufio.Writer
	writer *pcapgo.Writer
}

// NewDumper creates path and writes the pcap file header.
func NewDumper(path string, snapLen int) (*Dumper, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create dump file: %w", err)
	}
	buf := bufio.NewWriter(f)
	w := pcapgo.NewWriter(buf)
	if err := w.WriteFileHeader(uint32(snapLen), layers.LinkTypeRaw); err != nil {
		f.Close()
		return nil, fmt.Errorf("write dump header: %w", err)
	}
	return &Dumper{file: f, buf: buf, writer: w}, nil
}

// Write appends one frame.
func (d *Dumper) Write(f core.Frame) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.writer == nil {
		return os.ErrClosed
	}
	ci := gopacket.CaptureInfo{
		Timestamp:     f.Timestamp,
		CaptureLength: len(f.Data),
		Length:        len(f.Data),
	}
	return d.writer.WritePacket(ci, f.Data)
}

// Close flushes and closes the file.
func (d *Dumper) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.file == nil {
		return nil
	}
	ferr := d.buf.Flush()
	cerr := d.file.Close()
	d.file, d.buf, d.writer = nil, nil, nil
	if ferr != nil {
		return ferr
	}
	return cerr
}
