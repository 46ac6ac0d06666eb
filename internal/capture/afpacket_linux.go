//go:build linux

package capture

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/google/gopacket/afpacket"
	"github.com/google/gopacket/layers"

	"firestige.xyz/dpsmeter/internal/core"
)

// afpacketSource reads inbound server traffic from a datagram AF_PACKET
// socket, so frames start at the IP header.
type afpacketSource struct {
	opts    Options
	out     *sender
	tpacket *afpacket.TPacket
}

func newAFPacketSource(opts Options, out *sender) (Source, error) {
	return &afpacketSource{opts: opts, out: out}, nil
}

func (s *afpacketSource) Type() Type {
	return TypeAFPacket
}

func (s *afpacketSource) Open(port uint16) error {
	frameSize, blockSize, numBlocks, err := computeFrameSizeAndBlocks(s.opts.SnapLen, s.opts.BufferSizeMB<<20)
	if err != nil {
		return fmt.Errorf("failed to compute frame size and blocks: %w", err)
	}

	opts := []interface{}{
		afpacket.OptFrameSize(frameSize),
		afpacket.OptBlockSize(blockSize),
		afpacket.OptNumBlocks(numBlocks),
		afpacket.OptPollTimeout(pollTimeout(s.opts)),
		afpacket.SocketDgram,
		afpacket.TPacketVersion3,
	}
	if s.opts.Interface != "" {
		opts = append(opts, afpacket.OptInterface(s.opts.Interface))
	}

	tpacket, err := afpacket.NewTPacket(opts...)
	if err != nil {
		return fmt.Errorf("failed to create TPacket: %w", err)
	}

	filter := fmt.Sprintf("tcp src port %d", port)
	rawBpf, err := CompileBPF(layers.LinkTypeRaw, s.opts.SnapLen, filter)
	if err != nil {
		tpacket.Close()
		return err
	}
	if err := tpacket.SetBPF(rawBpf); err != nil {
		tpacket.Close()
		return fmt.Errorf("failed to set BPF filter: %w", err)
	}

	s.tpacket = tpacket
	s.out.logger.WithFields(map[string]interface{}{
		"interface":  s.opts.Interface,
		"filter":     filter,
		"frame_size": frameSize,
		"block_size": blockSize,
		"num_blocks": numBlocks,
	}).Info("afpacket socket opened")
	return nil
}

// Serve blocks on the socket in the calling goroutine, handing frames over
// one at a time.
func (s *afpacketSource) Serve(ctx context.Context, out chan<- core.Frame) error {
	if s.tpacket == nil {
		return core.ErrCaptureNotOpen
	}
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		data, ci, err := s.tpacket.ReadPacketData()
		switch {
		case err == nil:
		case errors.Is(err, afpacket.ErrTimeout), errors.Is(err, afpacket.ErrPoll):
			continue
		default:
			return fmt.Errorf("afpacket read: %w", err)
		}

		payload, lt, err := Decapsulate(layers.LinkTypeRaw, data)
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

func (s *afpacketSource) Close() error {
	if s.tpacket != nil {
		s.tpacket.Close()
		s.tpacket = nil
	}
	s.out.close()
	return nil
}

func computeFrameSizeAndBlocks(snapLen, bufferSize int) (frameSize int, blockSize int, numBlocks int, err error) {
	pageSize := os.Getpagesize()
	if snapLen < pageSize {
		frameSize = pageSize / (pageSize / snapLen)
	} else {
		frameSize = (snapLen/pageSize + 1) * pageSize
	}
	blockSize = frameSize * 128
	numBlocks = bufferSize / blockSize

	if numBlocks < 1 {
		return 0, 0, 0, fmt.Errorf("buffer size too small for frame size %d", frameSize)
	}
	return frameSize, blockSize, numBlocks, nil
}
