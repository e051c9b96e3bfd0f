package sfu

import (
	"context"
	"maps"
	"sync"
	"sync/atomic"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"

	"github.com/akorchak/callhub/internal/core"
	"github.com/akorchak/callhub/internal/domain"
)

// subscriber couples one destination's local track with its delivery state.
// A stale subscriber stops receiving packets immediately and is swept out of
// the map on a later forward pass.
type subscriber struct {
	track *webrtc.TrackLocalStaticRTP
	stale atomic.Bool
}

// Relay pumps RTP from one inbound remote track to every subscriber's
// local track. One relay per published track.
type Relay struct {
	src   core.RemoteTrack
	owner core.SessionID
	ref   domain.TrackRef

	mu   sync.RWMutex
	subs map[core.SessionID]*subscriber

	cancel context.CancelFunc
}

func NewRelay(owner core.SessionID, src core.RemoteTrack, cancel context.CancelFunc) *Relay {
	return &Relay{
		src:   src,
		owner: owner,
		ref: domain.TrackRef{
			ID:       src.ID(),
			Kind:     src.Kind().String(),
			Owner:    domain.ParticipantID(owner),
			StreamID: src.StreamID(),
		},
		subs:   make(map[core.SessionID]*subscriber),
		cancel: cancel,
	}
}

func (r *Relay) Src() core.RemoteTrack { return r.src }
func (r *Relay) Owner() core.SessionID { return r.owner }

// Ref describes the relayed track without exposing the engine handle.
func (r *Relay) Ref() domain.TrackRef { return r.ref }

// loop reads RTP packets from the source track and forwards them to all subscribers.
func (r *Relay) loop(ctx context.Context, logger *zerolog.Logger) {
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("relay ctx done, detaching subscribers")
			r.markAllStale()
			return
		default:
		}
		pkt, err := r.src.ReadRTP()
		if err != nil {
			logger.Error().Err(err).Msg("relay read RTP error, stopping")
			r.markAllStale()
			return
		}
		r.forward(pkt, logger)
	}
}

func (r *Relay) forward(pkt *rtp.Packet, logger *zerolog.Logger) {
	r.mu.RLock()
	snapshot := make(map[core.SessionID]*subscriber, len(r.subs))
	maps.Copy(snapshot, r.subs)
	r.mu.RUnlock()

	dirty := make([]core.SessionID, 0, len(snapshot))
	for dst, sub := range snapshot {
		if sub.stale.Load() {
			dirty = append(dirty, dst)
			continue
		}
		if err := sub.track.WriteRTP(pkt); err != nil {
			logger.Error().
				Err(err).
				Str("dst_sid", string(dst)).
				Msg("relay write RTP error, detaching subscriber")
			sub.stale.Store(true)
			dirty = append(dirty, dst)
		}
	}

	// Sweep is done outside the RLock.
	if len(dirty) > 0 {
		r.sweepStale(dirty)
	}
}

func (r *Relay) sweepStale(dirty []core.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, sid := range dirty {
		delete(r.subs, sid)
	}
}

func (r *Relay) markAllStale() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, sub := range r.subs {
		sub.stale.Store(true)
	}
}

// AddSubscriber attaches a destination's local track to the forward loop.
func (r *Relay) AddSubscriber(dst core.SessionID, local *webrtc.TrackLocalStaticRTP) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs[dst] = &subscriber{track: local}
}

// MarkSubscriberStale detaches dst; delivery stops at once, sweep follows.
func (r *Relay) MarkSubscriberStale(dst core.SessionID) {
	r.mu.RLock()
	sub, ok := r.subs[dst]
	r.mu.RUnlock()
	if ok {
		sub.stale.Store(true)
	}
}

// SubscriberCount reports the live (non-stale) subscribers.
func (r *Relay) SubscriberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, sub := range r.subs {
		if !sub.stale.Load() {
			n++
		}
	}
	return n
}
