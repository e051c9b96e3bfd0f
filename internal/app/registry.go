package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/akorchak/callhub/internal/core"
	"github.com/akorchak/callhub/internal/domain"
)

// participantEntry binds a participant record to its exclusively-owned media
// handle and its signal transport. The guard channel serializes negotiations
// on the handle; pending remembers a deferred server-side renegotiation.
type participantEntry struct {
	p      *domain.Participant
	media  core.MediaConnection
	signal core.SignalConnection
	cancel context.CancelFunc

	guard      chan struct{}
	negSeq     uint64
	negToken   uint64 // current guard holder, 0 when free
	offerToken uint64 // server offer awaiting the client's answer, 0 when none
	pending    bool
}

// ParticipantRegistry owns participant records keyed by session id. Locks are
// held only across synchronous mutation, never across engine calls.
type ParticipantRegistry struct {
	mu      sync.RWMutex
	entries map[core.SessionID]*participantEntry
}

func NewParticipantRegistry() *ParticipantRegistry {
	return &ParticipantRegistry{entries: make(map[core.SessionID]*participantEntry)}
}

// BindSignal registers the transport of a session before any room activity.
// A previous binding for the same session is displaced and returned so the
// caller can close it.
func (r *ParticipantRegistry) BindSignal(sid core.SessionID, sc core.SignalConnection) core.SignalConnection {
	r.mu.Lock()
	e, ok := r.entries[sid]
	if !ok {
		e = &participantEntry{guard: make(chan struct{}, 1)}
		r.entries[sid] = e
	}
	old := e.signal
	e.signal = sc
	r.mu.Unlock()
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("signal bound")
	if old == sc {
		return nil
	}
	return old
}

// SignalIs reports whether sc is still the session's bound transport. A
// displaced connection uses this to avoid tearing down the live participant.
func (r *ParticipantRegistry) SignalIs(sid core.SessionID, sc core.SignalConnection) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[sid]
	return ok && e.signal == sc
}

// BindParticipant attaches the participant record and its media handle.
// cancel tears down the event-stream consumer on release.
func (r *ParticipantRegistry) BindParticipant(
	sid core.SessionID,
	p *domain.Participant,
	mc core.MediaConnection,
	cancel context.CancelFunc,
) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[sid]
	if !ok {
		e = &participantEntry{guard: make(chan struct{}, 1)}
		r.entries[sid] = e
	}
	e.p = p
	e.media = mc
	e.cancel = cancel
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("room", string(p.RoomID)).Msg("participant bound")
}

// Get returns a snapshot of the participant record.
func (r *ParticipantRegistry) Get(sid core.SessionID) (domain.Participant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[sid]
	if !ok || e.p == nil {
		return domain.Participant{}, fmt.Errorf("participant %s: %w", sid, core.ErrNotFound)
	}
	return snapshotParticipant(e.p), nil
}

func (r *ParticipantRegistry) Media(sid core.SessionID) (core.MediaConnection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[sid]
	if !ok || e.media == nil {
		return nil, fmt.Errorf("participant %s: %w", sid, core.ErrNotFound)
	}
	return e.media, nil
}

func (r *ParticipantRegistry) Signal(sid core.SessionID) (core.SignalConnection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[sid]
	if !ok || e.signal == nil {
		return nil, fmt.Errorf("participant %s: %w", sid, core.ErrNotFound)
	}
	return e.signal, nil
}

func (r *ParticipantRegistry) RoomOf(sid core.SessionID) (domain.RoomID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[sid]
	if !ok || e.p == nil || e.p.RoomID == "" {
		return "", false
	}
	return e.p.RoomID, true
}

// Summary builds the wire view of a participant.
func (r *ParticipantRegistry) Summary(sid core.SessionID) (core.ParticipantSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[sid]
	if !ok || e.p == nil {
		return core.ParticipantSummary{}, fmt.Errorf("participant %s: %w", sid, core.ErrNotFound)
	}
	return core.NewParticipantSummary(e.p), nil
}

func (r *ParticipantRegistry) SetState(sid core.SessionID, state domain.ConnState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[sid]; ok && e.p != nil {
		e.p.State = state
	}
}

// AddTrack records a published track id, reporting false on duplicates.
func (r *ParticipantRegistry) AddTrack(sid core.SessionID, trackID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[sid]
	if !ok || e.p == nil {
		return false
	}
	return e.p.AddTrack(trackID)
}

// RemoveTrack reports whether the id was actually published.
func (r *ParticipantRegistry) RemoveTrack(sid core.SessionID, trackID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[sid]
	if !ok || e.p == nil {
		return false
	}
	return e.p.RemoveTrack(trackID)
}

// SetScreenCast declares which of the participant's streams is a screen share.
func (r *ParticipantRegistry) SetScreenCast(sid core.SessionID, streamID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[sid]
	if !ok || e.p == nil {
		return fmt.Errorf("participant %s: %w", sid, core.ErrNotFound)
	}
	e.p.ScreenCastStreamID = streamID
	return nil
}

// ResolveScreenCast reconciles the declared marker against an incoming stream
// id: the marker survives only when they match, otherwise it is cleared.
// Returns the marker that remains in effect.
func (r *ParticipantRegistry) ResolveScreenCast(sid core.SessionID, streamID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[sid]
	if !ok || e.p == nil {
		return ""
	}
	if e.p.ScreenCastStreamID != "" && e.p.ScreenCastStreamID == streamID {
		return e.p.ScreenCastStreamID
	}
	e.p.ScreenCastStreamID = ""
	return ""
}

// BeginNegotiation acquires the per-handle negotiation guard and returns the
// holder token. A second negotiation while one is in flight fails with
// ErrNegotiation (glare).
func (r *ParticipantRegistry) BeginNegotiation(sid core.SessionID) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[sid]
	if !ok {
		return 0, fmt.Errorf("participant %s: %w", sid, core.ErrNotFound)
	}
	select {
	case e.guard <- struct{}{}:
		e.negSeq++
		e.negToken = e.negSeq
		return e.negToken, nil
	default:
		return 0, fmt.Errorf("negotiation in flight for %s: %w", sid, core.ErrNegotiation)
	}
}

// EndNegotiation releases the guard, but only for the negotiation that holds
// it: a stale token leaves the guard in place. Reports whether a deferred
// renegotiation was queued while the guard was held.
func (r *ParticipantRegistry) EndNegotiation(sid core.SessionID, token uint64) (pending bool) {
	r.mu.Lock()
	e, ok := r.entries[sid]
	if !ok || token == 0 || e.negToken != token {
		r.mu.Unlock()
		return false
	}
	e.negToken = 0
	pending = e.pending
	e.pending = false
	r.mu.Unlock()
	select {
	case <-e.guard:
	default:
	}
	return pending
}

// MarkServerOffer records that the negotiation holding the guard sent a
// server-initiated offer and is waiting for the client's answer.
func (r *ParticipantRegistry) MarkServerOffer(sid core.SessionID, token uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[sid]; ok && e.negToken == token {
		e.offerToken = token
	}
}

// TakeServerOffer consumes the pending server-offer token. Reports false when
// no server offer is awaiting an answer, so stray accepts can be rejected.
func (r *ParticipantRegistry) TakeServerOffer(sid core.SessionID) (uint64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[sid]
	if !ok || e.offerToken == 0 {
		return 0, false
	}
	token := e.offerToken
	e.offerToken = 0
	return token, true
}

// DeferRenegotiation queues a server-side re-offer to run once the current
// negotiation finishes.
func (r *ParticipantRegistry) DeferRenegotiation(sid core.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[sid]; ok {
		e.pending = true
	}
}

// Release removes the entry and closes the media handle exactly once.
// Safe to call repeatedly; later calls report false and do nothing.
func (r *ParticipantRegistry) Release(sid core.SessionID) bool {
	r.mu.Lock()
	e, ok := r.entries[sid]
	if ok {
		delete(r.entries, sid)
	}
	r.mu.Unlock()
	if !ok {
		return false
	}
	if e.cancel != nil {
		e.cancel()
	}
	if e.media != nil {
		e.media.Close()
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("participant released")
	return true
}

func snapshotParticipant(p *domain.Participant) domain.Participant {
	tracks := make([]string, len(p.Tracks))
	copy(tracks, p.Tracks)
	out := *p
	out.Tracks = tracks
	return out
}
