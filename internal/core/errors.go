package core

import "errors"

// Error taxonomy of the signaling core. Handlers wrap these with %w so the
// router can map a failure to a wire error kind with errors.Is.
var (
	// ErrNotFound reports an unknown room or participant id.
	ErrNotFound = errors.New("not found")
	// ErrNegotiation reports a description applied out of sequence, or glare.
	ErrNegotiation = errors.New("negotiation conflict")
	// ErrEngine reports a call rejected by the external media engine.
	ErrEngine = errors.New("engine rejected")
	// ErrProtocol reports a malformed inbound payload.
	ErrProtocol = errors.New("protocol violation")
)
