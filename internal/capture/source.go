// Package capture provides the packet sources feeding the pipeline. Every
// backend hands frames over an unbuffered channel so that arrival order is
// preserved and nothing is dropped between capture and reassembly.
package capture

import (
	"context"
	"fmt"

	"firestige.xyz/dpsmeter/internal/core"
	"firestige.xyz/dpsmeter/internal/log"
	"firestige.xyz/dpsmeter/internal/metrics"
)

// Source is a packet source for one server port.
type Source interface {
	// Type returns the backend type.
	Type() Type

	// Open initializes the backend to observe traffic of the given port.
	Open(port uint16) error

	// Serve reads frames and sends each IP packet on out until ctx is done
	// or the source is exhausted. It blocks on every send.
	Serve(ctx context.Context, out chan<- core.Frame) error

	// Close releases the backend.
	Close() error
}

// New creates the backend selected by opts.Backend. When opts.DumpFile is
// set every forwarded frame is also written to that pcap file.
func New(opts Options) (Source, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	var dump *Dumper
	if opts.DumpFile != "" {
		d, err := NewDumper(opts.DumpFile, opts.SnapLen)
		if err != nil {
			return nil, err
		}
		dump = d
	}
	out := newSender(opts.Backend, dump)

	switch opts.Backend {
	case TypePCAP:
		return newPcapSource(opts, out), nil
	case TypeAFPacket:
		return newAFPacketSource(opts, out)
	case TypeFile:
		return newFileSource(opts, out), nil
	}
	out.close()
	return nil, fmt.Errorf("%w: %s", core.ErrUnsupportedBackend, opts.Backend)
}

// sender forwards frames to the pipeline and keeps the per-backend
// counters and the optional dump.
type sender struct {
	backend Type
	dump    *Dumper
	logger  log.Logger
}

func newSender(backend Type, dump *Dumper) *sender {
	return &sender{
		backend: backend,
		dump:    dump,
		logger:  log.GetLogger().WithField("backend", string(backend)),
	}
}

// send blocks until the frame is received or ctx is done.
func (s *sender) send(ctx context.Context, out chan<- core.Frame, f core.Frame) error {
	if s.dump != nil {
		if err := s.dump.Write(f); err != nil {
			s.logger.WithError(err).Warn("frame dump failed, disabling dump")
			s.closeDump()
		}
	}
	select {
	case out <- f:
		metrics.CaptureFramesTotal.WithLabelValues(string(s.backend)).Inc()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *sender) drop(reason string, err error) {
	metrics.CaptureDroppedFramesTotal.WithLabelValues(reason).Inc()
	if s.logger.IsDebugEnabled() {
		s.logger.WithError(err).WithField("reason", reason).Debug("frame dropped")
	}
}

func (s *sender) closeDump() {
	if s.dump == nil {
		return
	}
	if err := s.dump.Close(); err != nil {
		s.logger.WithError(err).Warn("failed to close frame dump")
	}
	s.dump = nil
}

func (s *sender) close() {
	s.closeDump()
}
