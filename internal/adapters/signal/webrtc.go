package signal

import (
	"encoding/json"
	"fmt"

	"github.com/pion/webrtc/v4"

	"github.com/akorchak/callhub/internal/core"
)

func (ctl *Controller) handleNegotiation(
	sid core.SessionID,
	conn core.SignalConnection,
	data []byte,
) error {
	var p struct {
		Offer webrtc.SessionDescription `json:"offer"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("%w: %v", core.ErrProtocol, err)
	}

	answer, err := ctl.Orch.Negotiate(sid, p.Offer)
	if err != nil {
		return err
	}

	resp := struct {
		Answer webrtc.SessionDescription `json:"answer"`
	}{answer}
	ctl.sendEvent(conn, "negotiation", resp)
	return nil
}

func (ctl *Controller) handleNegotiationAccept(sid core.SessionID, data []byte) error {
	var p struct {
		Answer webrtc.SessionDescription `json:"answer"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("%w: %v", core.ErrProtocol, err)
	}
	return ctl.Orch.AcceptAnswer(sid, p.Answer)
}

func (ctl *Controller) handleIceCandidate(sid core.SessionID, data []byte) error {
	var p struct {
		RoomID       string                   `json:"roomId"`
		IceCandidate *webrtc.ICECandidateInit `json:"iceCandidate"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("%w: %v", core.ErrProtocol, err)
	}
	// A null candidate is end-of-candidates; the orchestrator treats it as a no-op.
	return ctl.Orch.AddICECandidate(sid, p.IceCandidate)
}
