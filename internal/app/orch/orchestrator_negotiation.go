package orch

import (
	"fmt"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/akorchak/callhub/internal/core"
	"github.com/akorchak/callhub/internal/domain"
)

// Negotiate answers a client-initiated renegotiation offer on the
// participant's existing handle. A second offer arriving while another
// negotiation is in flight is rejected with ErrNegotiation.
func (o *Orchestrator) Negotiate(sid core.SessionID, offer webrtc.SessionDescription) (webrtc.SessionDescription, error) {
	mc, err := o.Registry.Media(sid)
	if err != nil {
		return webrtc.SessionDescription{}, err
	}
	return o.answerHandshake(sid, mc, offer)
}

// AcceptAnswer completes a server-initiated renegotiation: the client's
// answer is applied to the pending local offer and the guard is released.
// An accept with no server offer in flight is rejected without touching the
// guard, so it can never release someone else's negotiation.
func (o *Orchestrator) AcceptAnswer(sid core.SessionID, answer webrtc.SessionDescription) error {
	mc, err := o.Registry.Media(sid)
	if err != nil {
		return err
	}
	token, ok := o.Registry.TakeServerOffer(sid)
	if !ok {
		return fmt.Errorf("no offer awaiting answer for %s: %w", sid, core.ErrNegotiation)
	}
	applyErr := mc.SetRemoteDescription(answer)
	o.finishNegotiation(sid, token)
	if applyErr != nil {
		return fmt.Errorf("%w: %v", core.ErrNegotiation, applyErr)
	}
	return nil
}

// answerHandshake runs one remote-offer/local-answer exchange under the
// per-handle negotiation guard. The guard is never held across anything but
// this one exchange.
func (o *Orchestrator) answerHandshake(
	sid core.SessionID,
	mc core.MediaConnection,
	offer webrtc.SessionDescription,
) (webrtc.SessionDescription, error) {
	token, err := o.Registry.BeginNegotiation(sid)
	if err != nil {
		return webrtc.SessionDescription{}, err
	}
	defer o.finishNegotiation(sid, token)

	o.Registry.SetState(sid, domain.StateNegotiating)

	if err := mc.SetRemoteDescription(offer); err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("%w: %v", core.ErrNegotiation, err)
	}
	answer, err := mc.CreateAnswer()
	if err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("%w: %v", core.ErrEngine, err)
	}
	if err := mc.SetLocalDescription(answer); err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("%w: %v", core.ErrNegotiation, err)
	}
	return answer, nil
}

// renegotiate runs a server-initiated re-offer, triggered by the engine's
// negotiation-needed event (e.g. after the hub attached a forwarded track).
// If another negotiation holds the guard, the re-offer is queued and runs
// when the guard is released. The guard stays held until the client's
// negotiation-accept arrives.
func (o *Orchestrator) renegotiate(sid core.SessionID) {
	mc, err := o.Registry.Media(sid)
	if err != nil {
		return
	}
	token, err := o.Registry.BeginNegotiation(sid)
	if err != nil {
		o.Registry.DeferRenegotiation(sid)
		log.Debug().Str("module", "orch").Str("sid", string(sid)).Msg("renegotiation deferred, one in flight")
		return
	}

	o.Registry.SetState(sid, domain.StateNegotiating)

	offer, err := mc.CreateOffer()
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Str("sid", string(sid)).Msg("re-offer create failed")
		o.finishNegotiation(sid, token)
		return
	}
	if err := mc.SetLocalDescription(offer); err != nil {
		log.Error().Err(err).Str("module", "orch").Str("sid", string(sid)).Msg("re-offer apply failed")
		o.finishNegotiation(sid, token)
		return
	}

	o.Registry.MarkServerOffer(sid, token)
	o.emit(sid, "negotiation-need", map[string]webrtc.SessionDescription{"offer": offer})
}

// finishNegotiation releases the guard and runs a queued re-offer, if any.
func (o *Orchestrator) finishNegotiation(sid core.SessionID, token uint64) {
	if o.Registry.EndNegotiation(sid, token) {
		o.renegotiate(sid)
	}
}

// AddICECandidate applies a remote candidate to the sender's own handle.
// Nil (or empty) is the end-of-candidates signal and is accepted silently.
func (o *Orchestrator) AddICECandidate(sid core.SessionID, cand *webrtc.ICECandidateInit) error {
	if cand == nil || cand.Candidate == "" {
		return nil
	}
	mc, err := o.Registry.Media(sid)
	if err != nil {
		return err
	}
	if err := mc.AddICECandidate(cand); err != nil {
		return fmt.Errorf("%w: %v", core.ErrEngine, err)
	}
	return nil
}

// relayCandidate emits a server-discovered candidate to the owning client.
func (o *Orchestrator) relayCandidate(sid core.SessionID, cand webrtc.ICECandidateInit) {
	roomID, _ := o.Registry.RoomOf(sid)
	o.emit(sid, "ice-candidate", map[string]any{
		"roomId":       string(roomID),
		"iceCandidate": cand,
	})
}

func (o *Orchestrator) handleStateChange(sid core.SessionID, state webrtc.PeerConnectionState) {
	log.Info().Str("module", "orch").Str("sid", string(sid)).Str("state", state.String()).Msg("peer state")
	switch state {
	case webrtc.PeerConnectionStateConnected:
		o.Registry.SetState(sid, domain.StateConnected)
	case webrtc.PeerConnectionStateDisconnected:
		o.Registry.SetState(sid, domain.StateDisconnected)
		o.Disconnect(sid)
	case webrtc.PeerConnectionStateFailed:
		o.Registry.SetState(sid, domain.StateFailed)
		o.Disconnect(sid)
	case webrtc.PeerConnectionStateClosed:
		o.Registry.SetState(sid, domain.StateClosed)
	}
}
