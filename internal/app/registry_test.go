package app

import (
	"context"
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akorchak/callhub/internal/core"
	"github.com/akorchak/callhub/internal/domain"
)

type stubMedia struct {
	closed int
	events chan core.ConnEvent
}

func newStubMedia() *stubMedia {
	return &stubMedia{events: make(chan core.ConnEvent)}
}

func (m *stubMedia) Start(context.Context) error { return nil }
func (m *stubMedia) Close()                      { m.closed++ }
func (m *stubMedia) IsClosed() bool              { return m.closed > 0 }
func (m *stubMedia) CreateOffer() (webrtc.SessionDescription, error) {
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "o"}, nil
}
func (m *stubMedia) CreateAnswer() (webrtc.SessionDescription, error) {
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "a"}, nil
}
func (m *stubMedia) SetLocalDescription(webrtc.SessionDescription) error  { return nil }
func (m *stubMedia) SetRemoteDescription(webrtc.SessionDescription) error { return nil }
func (m *stubMedia) AddICECandidate(*webrtc.ICECandidateInit) error       { return nil }
func (m *stubMedia) AddLocalTrack(*webrtc.TrackLocalStaticRTP) error      { return nil }
func (m *stubMedia) ConnectionState() webrtc.PeerConnectionState {
	return webrtc.PeerConnectionStateNew
}
func (m *stubMedia) Events() <-chan core.ConnEvent { return m.events }

type stubSignal struct{ frames []core.Frame }

func (s *stubSignal) TrySend(f core.Frame) error { s.frames = append(s.frames, f); return nil }
func (s *stubSignal) Close()                     {}

func bindTestParticipant(t *testing.T, reg *ParticipantRegistry, sid core.SessionID) *stubMedia {
	t.Helper()
	p, err := domain.NewParticipant(domain.ParticipantID(sid), "nick-"+string(sid), "R1")
	require.NoError(t, err)
	mc := newStubMedia()
	reg.BindSignal(sid, &stubSignal{})
	reg.BindParticipant(sid, p, mc, func() {})
	return mc
}

func TestParticipantRegistryLookup(t *testing.T) {
	reg := NewParticipantRegistry()
	bindTestParticipant(t, reg, "P1")

	p, err := reg.Get("P1")
	require.NoError(t, err)
	assert.Equal(t, "nick-P1", p.Nickname)

	_, err = reg.Get("P2")
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = reg.Media("P2")
	assert.ErrorIs(t, err, core.ErrNotFound)

	roomID, ok := reg.RoomOf("P1")
	assert.True(t, ok)
	assert.Equal(t, domain.RoomID("R1"), roomID)
}

func TestParticipantRegistryReleaseIdempotent(t *testing.T) {
	reg := NewParticipantRegistry()
	mc := bindTestParticipant(t, reg, "P1")

	assert.True(t, reg.Release("P1"))
	assert.Equal(t, 1, mc.closed)

	// A second release has no observable effect.
	assert.False(t, reg.Release("P1"))
	assert.Equal(t, 1, mc.closed)

	_, err := reg.Get("P1")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestNegotiationGuardGlare(t *testing.T) {
	reg := NewParticipantRegistry()
	bindTestParticipant(t, reg, "P1")

	token, err := reg.BeginNegotiation("P1")
	require.NoError(t, err)

	_, err = reg.BeginNegotiation("P1")
	assert.ErrorIs(t, err, core.ErrNegotiation)

	reg.EndNegotiation("P1", token)
	token, err = reg.BeginNegotiation("P1")
	require.NoError(t, err)
	reg.EndNegotiation("P1", token)
}

func TestNegotiationGuardOwnerChecked(t *testing.T) {
	reg := NewParticipantRegistry()
	bindTestParticipant(t, reg, "P1")

	token, err := reg.BeginNegotiation("P1")
	require.NoError(t, err)

	// A stale or zero token never releases someone else's guard.
	assert.False(t, reg.EndNegotiation("P1", token+1))
	assert.False(t, reg.EndNegotiation("P1", 0))
	_, err = reg.BeginNegotiation("P1")
	assert.ErrorIs(t, err, core.ErrNegotiation)

	reg.EndNegotiation("P1", token)
	_, err = reg.BeginNegotiation("P1")
	require.NoError(t, err)
}

func TestNegotiationGuardDeferred(t *testing.T) {
	reg := NewParticipantRegistry()
	bindTestParticipant(t, reg, "P1")

	token, err := reg.BeginNegotiation("P1")
	require.NoError(t, err)
	reg.DeferRenegotiation("P1")
	assert.True(t, reg.EndNegotiation("P1", token))

	// The pending flag is consumed.
	token, err = reg.BeginNegotiation("P1")
	require.NoError(t, err)
	assert.False(t, reg.EndNegotiation("P1", token))
}

func TestServerOfferToken(t *testing.T) {
	reg := NewParticipantRegistry()
	bindTestParticipant(t, reg, "P1")

	_, ok := reg.TakeServerOffer("P1")
	assert.False(t, ok)

	token, err := reg.BeginNegotiation("P1")
	require.NoError(t, err)
	reg.MarkServerOffer("P1", token)

	got, ok := reg.TakeServerOffer("P1")
	require.True(t, ok)
	assert.Equal(t, token, got)

	// Consumed: a second take finds nothing.
	_, ok = reg.TakeServerOffer("P1")
	assert.False(t, ok)
	reg.EndNegotiation("P1", token)

	// A mark with a token that does not hold the guard is ignored.
	reg.MarkServerOffer("P1", token+100)
	_, ok = reg.TakeServerOffer("P1")
	assert.False(t, ok)
}

func TestBindSignalDisplacement(t *testing.T) {
	reg := NewParticipantRegistry()
	first := &stubSignal{}
	second := &stubSignal{}

	assert.Nil(t, reg.BindSignal("P1", first))
	assert.True(t, reg.SignalIs("P1", first))

	displaced := reg.BindSignal("P1", second)
	assert.Same(t, first, displaced)
	assert.False(t, reg.SignalIs("P1", first))
	assert.True(t, reg.SignalIs("P1", second))

	sc, err := reg.Signal("P1")
	require.NoError(t, err)
	assert.Same(t, second, sc)
}

func TestTrackMutators(t *testing.T) {
	reg := NewParticipantRegistry()
	bindTestParticipant(t, reg, "P1")

	assert.True(t, reg.AddTrack("P1", "T1"))
	assert.False(t, reg.AddTrack("P1", "T1"))
	assert.True(t, reg.RemoveTrack("P1", "T1"))
	assert.False(t, reg.RemoveTrack("P1", "T1"))
	assert.False(t, reg.AddTrack("P2", "T1"))
}

func TestResolveScreenCast(t *testing.T) {
	reg := NewParticipantRegistry()
	bindTestParticipant(t, reg, "P1")

	// No declared marker: stays clear.
	assert.Equal(t, "", reg.ResolveScreenCast("P1", "S1"))

	require.NoError(t, reg.SetScreenCast("P1", "S1"))
	assert.Equal(t, "S1", reg.ResolveScreenCast("P1", "S1"))

	// A different stream clears the marker.
	assert.Equal(t, "", reg.ResolveScreenCast("P1", "S2"))
	p, err := reg.Get("P1")
	require.NoError(t, err)
	assert.Equal(t, "", p.ScreenCastStreamID)
}

func TestSummaryOmitsHandle(t *testing.T) {
	reg := NewParticipantRegistry()
	bindTestParticipant(t, reg, "P1")
	reg.AddTrack("P1", "T1")
	reg.SetState("P1", domain.StateConnected)

	s, err := reg.Summary("P1")
	require.NoError(t, err)
	assert.Equal(t, domain.ParticipantID("P1"), s.ID)
	assert.Equal(t, []string{"T1"}, s.Tracks)
	assert.Equal(t, "connected", s.ConnectionState)
}
