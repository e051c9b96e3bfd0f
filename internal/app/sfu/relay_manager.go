package sfu

import (
	"context"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/akorchak/callhub/internal/core"
)

// RelayManager tracks one Relay per published track id, with an index by the
// owning session for catch-up and teardown.
type RelayManager struct {
	mu      sync.RWMutex
	relays  map[string]*Relay
	byOwner map[core.SessionID]map[string]*Relay
}

func NewRelayManager() *RelayManager {
	return &RelayManager{
		relays:  make(map[string]*Relay),
		byOwner: make(map[core.SessionID]map[string]*Relay),
	}
}

// StartRelay creates a Relay for one of owner's tracks and starts its loop.
func (m *RelayManager) StartRelay(ctx context.Context, owner core.SessionID, track core.RemoteTrack) {
	relayCtx, cancel := context.WithCancel(ctx)
	relay := NewRelay(owner, track, cancel)

	ref := relay.Ref()
	logger := log.With().
		Str("module", "sfu").
		Str("sid", string(owner)).
		Str("track_id", ref.ID).
		Str("stream_id", ref.StreamID).
		Str("kind", ref.Kind).
		Logger()

	m.mu.Lock()
	if old, ok := m.relays[track.ID()]; ok {
		logger.Info().Msg("replacing existing relay for track")
		old.markAllStale()
		if old.cancel != nil {
			old.cancel()
		}
	}
	m.relays[track.ID()] = relay
	owned, ok := m.byOwner[owner]
	if !ok {
		owned = make(map[string]*Relay)
		m.byOwner[owner] = owned
	}
	owned[track.ID()] = relay
	m.mu.Unlock()

	logger.Info().Msg("starting relay loop")

	go relay.loop(relayCtx, &logger)
}

// Subscribe feeds dst's local track from the relay of trackID.
func (m *RelayManager) Subscribe(trackID string, dst core.SessionID, localTrack *webrtc.TrackLocalStaticRTP) bool {
	m.mu.RLock()
	relay, ok := m.relays[trackID]
	m.mu.RUnlock()
	if !ok {
		return false
	}
	relay.AddSubscriber(dst, localTrack)
	return true
}

// TracksOf returns the source tracks currently relayed for one owner.
func (m *RelayManager) TracksOf(owner core.SessionID) []core.RemoteTrack {
	m.mu.RLock()
	defer m.mu.RUnlock()
	owned := m.byOwner[owner]
	out := make([]core.RemoteTrack, 0, len(owned))
	for _, relay := range owned {
		out = append(out, relay.Src())
	}
	return out
}

// StopTrack stops the relay of a single track.
func (m *RelayManager) StopTrack(trackID string) {
	m.mu.Lock()
	relay, ok := m.relays[trackID]
	if ok {
		delete(m.relays, trackID)
		if owned, has := m.byOwner[relay.Owner()]; has {
			delete(owned, trackID)
			if len(owned) == 0 {
				delete(m.byOwner, relay.Owner())
			}
		}
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	relay.markAllStale()
	if relay.cancel != nil {
		relay.cancel()
	}
}

// StopOwner stops every relay the owner publishes.
func (m *RelayManager) StopOwner(owner core.SessionID) {
	m.mu.Lock()
	owned := m.byOwner[owner]
	delete(m.byOwner, owner)
	stopped := make([]*Relay, 0, len(owned))
	for trackID, relay := range owned {
		delete(m.relays, trackID)
		stopped = append(stopped, relay)
	}
	m.mu.Unlock()
	for _, relay := range stopped {
		relay.markAllStale()
		if relay.cancel != nil {
			relay.cancel()
		}
	}
}

// DropSubscriber detaches dst from every relay it is subscribed to.
func (m *RelayManager) DropSubscriber(dst core.SessionID) {
	m.mu.RLock()
	relays := make([]*Relay, 0, len(m.relays))
	for _, relay := range m.relays {
		relays = append(relays, relay)
	}
	m.mu.RUnlock()
	for _, relay := range relays {
		relay.MarkSubscriberStale(dst)
	}
}

// HasRelay reports whether a relay exists for the given track id.
func (m *RelayManager) HasRelay(trackID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.relays[trackID]
	return ok
}
