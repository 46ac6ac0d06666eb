package stream

import (
	"cmp"
	"fmt"
	"net/netip"
	"slices"

	"firestige.xyz/dpsmeter/internal/core"
	"firestige.xyz/dpsmeter/internal/log"
	"firestige.xyz/dpsmeter/internal/metrics"
)

// Sink receives in-order stream bytes. p is only valid during the call.
type Sink func(p []byte)

// Stats are cumulative reassembler counters.
type Stats struct {
	DeliveredBytes   uint64
	DeliveredChunks  uint64
	BufferedSegments int
	IgnoredSegments  uint64
	Resets           uint64
}

// flow identifies the tracked connection: server address, client address
// and the client-side port.
type flow struct {
	srcIP   netip.Addr
	dstIP   netip.Addr
	dstPort uint16
}

func (f flow) String() string {
	return fmt.Sprintf("%s -> %s:%d", f.srcIP, f.dstIP, f.dstPort)
}

// segment is an out-of-order payload kept until the cursor reaches it.
type segment struct {
	seq     uint32
	payload []byte
}

// Reassembler tracks a single TCP connection and emits its payload in
// sequence order. It is not safe for concurrent use.
//
// Sequence numbers are compared without wraparound handling: a connection
// whose sequence space crosses 2^32 stalls until the next SYN or reset.
type Reassembler struct {
	sink   Sink
	logger log.Logger

	tracking bool
	flow     flow
	cursor   uint32
	pending  []segment

	stats Stats
}

// NewReassembler creates a reassembler delivering to sink.
func NewReassembler(sink Sink, logger log.Logger) *Reassembler {
	if logger == nil {
		logger = log.GetLogger()
	}
	return &Reassembler{
		sink:   sink,
		logger: logger.WithField("stage", "stream"),
	}
}

// Feed processes one IPv4 packet. Packets that are not IPv4/TCP or are
// truncated return an error and leave the state unchanged.
func (r *Reassembler) Feed(packet []byte) error {
	ip, l4, err := decodeIPv4(packet)
	if err != nil {
		return fmt.Errorf("decode ipv4: %w", err)
	}
	if ip.Protocol != protocolTCP {
		return fmt.Errorf("ip protocol %d: %w", ip.Protocol, core.ErrUnsupportedProto)
	}
	tcp, payload, err := decodeTCP(l4)
	if err != nil {
		return fmt.Errorf("decode tcp: %w", err)
	}

	syn := tcp.Has(core.TCPFlagSYN)
	if !r.tracking || syn {
		r.adopt(flow{srcIP: ip.SrcIP, dstIP: ip.DstIP, dstPort: tcp.DstPort}, tcp.SeqNum, syn)
	}

	if ip.SrcIP != r.flow.srcIP || ip.DstIP != r.flow.dstIP {
		r.ignore("foreign_host")
		return nil
	}
	if tcp.DstPort != r.flow.dstPort {
		r.ignore("foreign_port")
		return nil
	}

	if tcp.Has(core.TCPFlagFIN) || tcp.Has(core.TCPFlagRST) {
		r.logger.WithField("flow", r.flow.String()).Debug("connection finished")
		r.reset("fin_rst")
		return nil
	}

	if !tcp.Has(core.TCPFlagPSH) && isPadding(payload) {
		r.ignore("padding")
		return nil
	}
	if len(payload) == 0 {
		return nil
	}

	if !r.deliver(tcp.SeqNum, payload) {
		if tcp.SeqNum > r.cursor {
			r.pending = append(r.pending, segment{
				seq:     tcp.SeqNum,
				payload: append([]byte(nil), payload...),
			})
			metrics.StreamBufferedSegments.Set(float64(len(r.pending)))
			if r.logger.IsTraceEnabled() {
				r.logger.WithFields(map[string]interface{}{
					"seq":    tcp.SeqNum,
					"cursor": r.cursor,
					"len":    len(payload),
				}).Trace("segment buffered")
			}
		} else {
			r.ignore("stale")
		}
		return nil
	}

	if len(r.pending) > 0 {
		r.drain()
	}
	return nil
}

// drain delivers buffered segments in sequence order after the cursor
// moved. Segments now behind the cursor are dropped; segments still ahead
// of a gap stay buffered.
func (r *Reassembler) drain() {
	slices.SortStableFunc(r.pending, func(a, b segment) int {
		return cmp.Compare(a.seq, b.seq)
	})
	kept := r.pending[:0]
	for _, s := range r.pending {
		if r.deliver(s.seq, s.payload) {
			continue
		}
		if s.seq > r.cursor {
			kept = append(kept, s)
		}
	}
	clear(r.pending[len(kept):])
	r.pending = kept
	metrics.StreamBufferedSegments.Set(float64(len(r.pending)))
}

// Reset forgets the tracked connection and every buffered segment.
func (r *Reassembler) Reset() {
	r.reset("manual")
}

// Stats returns a copy of the reassembler counters.
func (r *Reassembler) Stats() Stats {
	s := r.stats
	s.BufferedSegments = len(r.pending)
	return s
}

// Tracking reports whether a connection is currently tracked.
func (r *Reassembler) Tracking() bool {
	return r.tracking
}

// Cursor returns the next expected sequence number.
func (r *Reassembler) Cursor() uint32 {
	return r.cursor
}

func (r *Reassembler) adopt(f flow, seq uint32, syn bool) {
	r.tracking = true
	r.flow = f
	r.cursor = seq
	if syn {
		r.cursor++
	}
	r.pending = r.pending[:0]
	metrics.StreamBufferedSegments.Set(0)
	r.logger.WithFields(map[string]interface{}{
		"flow": f.String(),
		"seq":  r.cursor,
		"syn":  syn,
	}).Info("tracking connection")
}

func (r *Reassembler) reset(cause string) {
	r.tracking = false
	r.flow = flow{}
	r.cursor = 0
	r.pending = nil
	r.stats.Resets++
	metrics.StreamBufferedSegments.Set(0)
	metrics.StreamResetsTotal.WithLabelValues(cause).Inc()
}

// deliver emits the part of payload at and after the cursor when the
// segment [seq, seq+len) contains the cursor.
func (r *Reassembler) deliver(seq uint32, payload []byte) bool {
	end := uint64(seq) + uint64(len(payload))
	if r.cursor < seq || uint64(r.cursor) >= end {
		return false
	}

	out := payload[r.cursor-seq:]
	r.sink(out)
	r.cursor += uint32(len(out))

	r.stats.DeliveredBytes += uint64(len(out))
	r.stats.DeliveredChunks++
	metrics.StreamBytesTotal.Add(float64(len(out)))
	return true
}

func (r *Reassembler) ignore(reason string) {
	r.stats.IgnoredSegments++
	metrics.StreamIgnoredSegmentsTotal.WithLabelValues(reason).Inc()
}

// isPadding matches the six zero bytes Ethernet pads a bare ACK with.
func isPadding(p []byte) bool {
	if len(p) != 6 {
		return false
	}
	for _, b := range p {
		if b != 0 {
			return false
		}
	}
	return true
}
