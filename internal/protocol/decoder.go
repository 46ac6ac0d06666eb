// Package protocol frames, deobfuscates and decodes game messages carried
// on the reassembled server stream.
//
// A message is a 5-byte header followed by a body. Bodies of type 1 are
// XOR-obfuscated and start with a big-endian opcode; every other field is
// little-endian.
package protocol

import (
	"encoding/binary"
	"errors"

	"firestige.xyz/dpsmeter/internal/core"
	"firestige.xyz/dpsmeter/internal/log"
	"firestige.xyz/dpsmeter/internal/metrics"
)

// Stats are cumulative decoder counters.
type Stats struct {
	Messages uint64 // type-1 messages dispatched
	Dropped  uint64 // messages or partial buffers discarded
	Events   uint64 // events emitted
}

// Decoder turns ordered stream bytes into core events. It is not safe for
// concurrent use.
type Decoder struct {
	sink   core.EventSink
	logger log.Logger
	buf    []byte
	stats  Stats
}

// NewDecoder creates a decoder emitting to sink.
func NewDecoder(sink core.EventSink, logger log.Logger) *Decoder {
	if logger == nil {
		logger = log.GetLogger()
	}
	return &Decoder{
		sink:   sink,
		logger: logger.WithField("stage", "protocol"),
		buf:    make([]byte, 0, 4096),
	}
}

// Write consumes the next chunk of the stream. It never fails; malformed
// input is dropped and counted.
func (d *Decoder) Write(p []byte) (int, error) {
	n := len(p)
	for len(p) > 0 {
		if len(d.buf) < HeaderLen {
			k := min(HeaderLen-len(d.buf), len(p))
			d.buf = append(d.buf, p[:k]...)
			p = p[k:]
		}
		if len(d.buf) < HeaderLen {
			break
		}

		h := parseHeader(d.buf)
		if h.magic != Magic {
			// no resynchronization: the rest of this chunk is discarded
			d.drop("bad_magic", core.ErrBadMagic)
			break
		}

		need := h.messageLen()
		if k := min(need-len(d.buf), len(p)); k > 0 {
			d.buf = append(d.buf, p[:k]...)
			p = p[k:]
		}
		if len(d.buf) < need {
			break
		}

		if h.typ != TypeMessage {
			d.drop("message_type", nil)
			continue
		}

		body := d.buf[HeaderLen:need]
		if len(body) < opcodeLen {
			d.drop("short_body", core.ErrShortPayload)
			break
		}

		XOR(body)
		d.dispatch(Opcode(binary.BigEndian.Uint16(body)), body[opcodeLen:])
		d.buf = d.buf[:0]
	}
	return n, nil
}

// Reset discards any partially accumulated message.
func (d *Decoder) Reset() {
	d.buf = d.buf[:0]
}

// Pending returns the number of buffered bytes of an incomplete message.
func (d *Decoder) Pending() int {
	return len(d.buf)
}

// Stats returns a copy of the decoder counters.
func (d *Decoder) Stats() Stats {
	return d.stats
}

func (d *Decoder) drop(reason string, err error) {
	if d.logger.IsDebugEnabled() {
		l := d.logger.WithFields(map[string]interface{}{
			"reason":   reason,
			"buffered": len(d.buf),
		})
		if err != nil {
			l = l.WithError(err)
		}
		l.Debug("message dropped")
	}
	d.buf = d.buf[:0]
	d.stats.Dropped++
	metrics.ProtocolDroppedMessagesTotal.WithLabelValues(reason).Inc()
}

func (d *Decoder) dispatch(op Opcode, payload []byte) {
	d.stats.Messages++
	if !op.Known() {
		metrics.ProtocolMessagesTotal.WithLabelValues("unknown").Inc()
		if d.logger.IsTraceEnabled() {
			d.logger.WithFields(map[string]interface{}{
				"opcode": op.Hex(),
				"size":   len(payload),
			}).Trace("unhandled opcode")
		}
		return
	}
	metrics.ProtocolMessagesTotal.WithLabelValues(op.String()).Inc()

	var err error
	switch op {
	case OpWorldChange:
		var ev core.WorldChange
		if ev, err = decodeWorldChange(payload); err == nil {
			d.emit(ev)
		}
	case OpObjectCreate:
		var ev core.OwnerMapping
		if ev, err = decodeObjectCreate(payload); err == nil {
			d.emit(ev)
		}
	case OpAkasic:
		var ev core.OwnerMapping
		if ev, err = decodeAkasic(payload); err == nil {
			d.emit(ev)
		}
	case OpDamage:
		var evs []core.Damage
		evs, err = decodeDamage(payload)
		for _, ev := range evs {
			d.emit(ev)
		}
	case OpMazeEnd:
		d.emit(core.MazeEnd{})
	case OpParty, OpForce:
		var members []core.PartyMember
		members, err = decodeRoster(payload)
		for _, m := range members {
			d.emit(m)
		}
	}

	if err != nil {
		reason := "decode"
		if errors.Is(err, core.ErrShortPayload) {
			reason = "short_payload"
		}
		metrics.ProtocolDroppedMessagesTotal.WithLabelValues(reason).Inc()
		d.logger.WithFields(map[string]interface{}{
			"opcode": op.String(),
			"size":   len(payload),
		}).WithError(err).Debug("payload rejected")
	}
}

func (d *Decoder) emit(ev core.Event) {
	d.stats.Events++
	d.sink(ev)
}
