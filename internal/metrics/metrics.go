// Package metrics implements Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CaptureFramesTotal counts frames handed to the pipeline by backend
	CaptureFramesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dpsmeter_capture_frames_total",
			Help: "Total number of frames accepted from the packet source",
		},
		[]string{"backend"},
	)

	// CaptureDroppedFramesTotal counts frames rejected before reassembly
	CaptureDroppedFramesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dpsmeter_capture_dropped_frames_total",
			Help: "Total number of frames dropped at link-layer validation",
		},
		[]string{"reason"},
	)

	// StreamBytesTotal counts in-order payload bytes delivered to the decoder
	StreamBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dpsmeter_stream_bytes_total",
			Help: "Total number of reassembled stream bytes delivered",
		},
	)

	// StreamIgnoredSegmentsTotal counts TCP segments that did not advance the stream
	StreamIgnoredSegmentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dpsmeter_stream_ignored_segments_total",
			Help: "Total number of TCP segments ignored by the reassembler",
		},
		[]string{"reason"},
	)

	// StreamBufferedSegments tracks out-of-order segments awaiting the cursor
	StreamBufferedSegments = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dpsmeter_stream_buffered_segments",
			Help: "Number of out-of-order segments held by the reassembler",
		},
	)

	// StreamResetsTotal counts connection resets (SYN, FIN, RST or manual)
	StreamResetsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dpsmeter_stream_resets_total",
			Help: "Total number of reassembler resets",
		},
		[]string{"cause"},
	)

	// ProtocolMessagesTotal counts dispatched messages by opcode
	ProtocolMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dpsmeter_protocol_messages_total",
			Help: "Total number of decrypted messages by opcode",
		},
		[]string{"opcode"},
	)

	// ProtocolDroppedMessagesTotal counts malformed or skipped messages
	ProtocolDroppedMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dpsmeter_protocol_dropped_messages_total",
			Help: "Total number of messages dropped by the framer or decoder",
		},
		[]string{"reason"},
	)

	// MeterPlayers tracks players with statistics
	MeterPlayers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dpsmeter_meter_players",
			Help: "Number of players with recorded statistics",
		},
	)

	// MeterState tracks the aggregator state
	MeterState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dpsmeter_meter_state",
			Help: "Current aggregator state (0=idle, 1=running, 2=suspended auto, 3=suspended manual)",
		},
	)

	// ReporterErrorsTotal counts reporter errors by reporter
	ReporterErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dpsmeter_reporter_errors_total",
			Help: "Total number of reporter errors",
		},
		[]string{"reporter"},
	)
)
