package core

import (
	"context"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
)

// RemoteTrack is the inbound side of one forwarded media track.
type RemoteTrack interface {
	ID() string
	StreamID() string
	Kind() webrtc.RTPCodecType
	Codec() webrtc.RTPCodecParameters
	ReadRTP() (*rtp.Packet, error)
}

type EventKind int

const (
	EventTrack EventKind = iota
	EventICECandidate
	EventNegotiationNeeded
	EventStateChange
)

// ConnEvent is one entry of a connection's ordered event stream. Exactly one
// of the payload fields is meaningful, selected by Kind.
type ConnEvent struct {
	Kind      EventKind
	Track     RemoteTrack
	Candidate webrtc.ICECandidateInit
	State     webrtc.PeerConnectionState
}

// MediaConnection wraps one external engine connection.
type MediaConnection interface {
	// Start installs the engine callbacks and binds the connection lifetime to ctx.
	Start(ctx context.Context) error
	// Close releases the underlying media resources. Idempotent.
	Close()
	IsClosed() bool

	CreateOffer() (webrtc.SessionDescription, error)
	CreateAnswer() (webrtc.SessionDescription, error)
	SetLocalDescription(webrtc.SessionDescription) error
	SetRemoteDescription(webrtc.SessionDescription) error
	// AddICECandidate applies a remote candidate. A nil candidate is the
	// end-of-candidates signal and must be a no-op, never an error.
	AddICECandidate(*webrtc.ICECandidateInit) error
	// AddLocalTrack attaches an outbound track; the engine will ask for
	// renegotiation through the event stream.
	AddLocalTrack(*webrtc.TrackLocalStaticRTP) error

	ConnectionState() webrtc.PeerConnectionState
	// Events returns the connection's ordered event stream. The stream is
	// produced in engine callback order and consumed by the owning coordinator.
	Events() <-chan ConnEvent
}

// MediaFactory allocates engine connections; implemented by the rtc adapter.
type MediaFactory interface {
	NewConnection(sid SessionID) (MediaConnection, error)
}
