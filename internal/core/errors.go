// Package core defines sentinel errors.
package core

import "errors"

// Sentinel errors shared by the capture, stream and protocol stages.
var (
	// Capture errors
	ErrCaptureNotOpen     = errors.New("dpsmeter: capture not open")
	ErrUnsupportedBackend = errors.New("dpsmeter: unsupported capture backend")
	ErrBadLinkHeader      = errors.New("dpsmeter: bad link-layer header")

	// Packet decoding errors
	ErrPacketTooShort   = errors.New("dpsmeter: packet too short")
	ErrUnsupportedProto = errors.New("dpsmeter: unsupported protocol")

	// Message framing errors
	ErrBadMagic     = errors.New("dpsmeter: bad message magic")
	ErrShortPayload = errors.New("dpsmeter: message payload too short")

	// Configuration errors
	ErrConfigInvalid = errors.New("dpsmeter: invalid configuration")

	// Engine errors
	ErrEngineStopped = errors.New("dpsmeter: engine stopped")
)
