package rtc

import (
	"context"
	"sync"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/akorchak/callhub/internal/core"
)

// Factory builds engine connections with a shared ICE configuration.
type Factory struct {
	cfg webrtc.Configuration
}

func NewFactory(stunURLs []string) *Factory {
	if len(stunURLs) == 0 {
		stunURLs = []string{"stun:stun.l.google.com:19302"}
	}
	return &Factory{cfg: webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{{URLs: stunURLs}},
	}}
}

func (f *Factory) NewConnection(sid core.SessionID) (core.MediaConnection, error) {
	pc, err := webrtc.NewPeerConnection(f.cfg)
	if err != nil {
		return nil, err
	}
	return &WebRTCConnection{
		pc:     pc,
		sid:    sid,
		events: make(chan core.ConnEvent, 64),
		done:   make(chan struct{}),
	}, nil
}

// WebRTCConnection wraps one pion PeerConnection and republishes its
// callbacks as an ordered event stream.
type WebRTCConnection struct {
	pc  *webrtc.PeerConnection
	sid core.SessionID

	events chan core.ConnEvent
	done   chan struct{}
	once   sync.Once

	mu     sync.RWMutex
	closed bool
}

func (c *WebRTCConnection) Start(ctx context.Context) error {
	c.pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		// nil marks the end of gathering; the stream carries real candidates only.
		if cand != nil {
			c.push(core.ConnEvent{Kind: core.EventICECandidate, Candidate: cand.ToJSON()})
		}
	})

	c.pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		log.Info().
			Str("module", "rtc").
			Str("sid", string(c.sid)).
			Str("kind", track.Kind().String()).
			Str("track_id", track.ID()).
			Str("stream_id", track.StreamID()).
			Msg("remote track")
		c.push(core.ConnEvent{Kind: core.EventTrack, Track: remoteTrack{tr: track}})
	})

	c.pc.OnNegotiationNeeded(func() {
		c.push(core.ConnEvent{Kind: core.EventNegotiationNeeded})
	})

	c.pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		log.Info().Str("module", "rtc").Str("sid", string(c.sid)).Str("peer_state", s.String()).Msg("peer state")
		c.push(core.ConnEvent{Kind: core.EventStateChange, State: s})
	})

	go func() {
		<-ctx.Done()
		c.Close()
	}()
	return nil
}

// push keeps callback order: events queue up and block the engine callback
// rather than being dropped or reordered. Unblocks on close.
func (c *WebRTCConnection) push(ev core.ConnEvent) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

func (c *WebRTCConnection) Events() <-chan core.ConnEvent { return c.events }

func (c *WebRTCConnection) Close() {
	c.once.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		if err := c.pc.Close(); err != nil {
			log.Error().Err(err).Str("module", "rtc").Str("sid", string(c.sid)).Msg("close error")
		} else {
			log.Info().Str("module", "rtc").Str("sid", string(c.sid)).Msg("closed")
		}
		close(c.done)
	})
}

func (c *WebRTCConnection) IsClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

func (c *WebRTCConnection) CreateOffer() (webrtc.SessionDescription, error) {
	return c.pc.CreateOffer(nil)
}

func (c *WebRTCConnection) CreateAnswer() (webrtc.SessionDescription, error) {
	return c.pc.CreateAnswer(nil)
}

func (c *WebRTCConnection) SetLocalDescription(desc webrtc.SessionDescription) error {
	return c.pc.SetLocalDescription(desc)
}

func (c *WebRTCConnection) SetRemoteDescription(desc webrtc.SessionDescription) error {
	return c.pc.SetRemoteDescription(desc)
}

func (c *WebRTCConnection) AddICECandidate(ci *webrtc.ICECandidateInit) error {
	if ci == nil {
		return nil
	}
	return c.pc.AddICECandidate(*ci)
}

func (c *WebRTCConnection) AddLocalTrack(track *webrtc.TrackLocalStaticRTP) error {
	_, err := c.pc.AddTrack(track)
	return err
}

func (c *WebRTCConnection) ConnectionState() webrtc.PeerConnectionState {
	return c.pc.ConnectionState()
}

// remoteTrack adapts pion's TrackRemote to the core inbound-track contract.
type remoteTrack struct {
	tr *webrtc.TrackRemote
}

func (t remoteTrack) ID() string                       { return t.tr.ID() }
func (t remoteTrack) StreamID() string                 { return t.tr.StreamID() }
func (t remoteTrack) Kind() webrtc.RTPCodecType        { return t.tr.Kind() }
func (t remoteTrack) Codec() webrtc.RTPCodecParameters { return t.tr.Codec() }

func (t remoteTrack) ReadRTP() (*rtp.Packet, error) {
	pkt, _, err := t.tr.ReadRTP()
	return pkt, err
}
