package capture

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"firestige.xyz/dpsmeter/internal/core"
)

// packetReader is satisfied by both pcapgo readers.
type packetReader interface {
	gopacket.PacketDataSource
	LinkType() layers.LinkType
}

// fileSource replays a pcap or pcapng file.
type fileSource struct {
	opts   Options
	out    *sender
	file   *os.File
	reader packetReader
	port   uint16
}

func newFileSource(opts Options, out *sender) *fileSource {
	return &fileSource{opts: opts, out: out}
}

func (s *fileSource) Type() Type {
	return TypeFile
}

func (s *fileSource) Open(port uint16) error {
	f, err := os.Open(s.opts.File)
	if err != nil {
		return fmt.Errorf("open capture file: %w", err)
	}

	r, err := newPacketReader(f)
	if err != nil {
		f.Close()
		return fmt.Errorf("read capture file %s: %w", s.opts.File, err)
	}

	s.file = f
	s.reader = r
	s.port = port
	s.out.logger.WithFields(map[string]interface{}{
		"file":      s.opts.File,
		"link_type": r.LinkType().String(),
		"port":      port,
	}).Info("capture file opened")
	return nil
}

func newPacketReader(f *os.File) (packetReader, error) {
	r, err := pcapgo.NewReader(bufio.NewReader(f))
	if err == nil {
		return r, nil
	}
	if _, serr := f.Seek(0, io.SeekStart); serr != nil {
		return nil, serr
	}
	ng, ngErr := pcapgo.NewNgReader(bufio.NewReader(f), pcapgo.DefaultNgReaderOptions)
	if ngErr != nil {
		return nil, errors.Join(err, ngErr)
	}
	return ng, nil
}

// Serve replays every frame sent from the server port, then returns nil.
func (s *fileSource) Serve(ctx context.Context, out chan<- core.Frame) error {
	if s.reader == nil {
		return core.ErrCaptureNotOpen
	}
	link := s.reader.LinkType()
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		data, ci, err := s.reader.ReadPacketData()
		if errors.Is(err, io.EOF) {
			s.out.logger.Info("capture file exhausted")
			return nil
		}
		if err != nil {
			return fmt.Errorf("read capture file: %w", err)
		}

		payload, lt, err := Decapsulate(link, data)
		if err != nil {
			s.out.drop(dropReason(err), err)
			continue
		}
		if !fromPort(payload, s.port) {
			s.out.drop(dropForeign, nil)
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

func (s *fileSource) Close() error {
	var err error
	if s.file != nil {
		err = s.file.Close()
		s.file = nil
		s.reader = nil
	}
	s.out.close()
	return err
}
