package signal

import (
	"encoding/json"
	"fmt"

	"github.com/akorchak/callhub/internal/core"
)

func (ctl *Controller) handleScreenCast(sid core.SessionID, data []byte) error {
	var p struct {
		Stream string `json:"stream"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("%w: %v", core.ErrProtocol, err)
	}
	return ctl.Orch.ScreenCast(sid, p.Stream)
}

func (ctl *Controller) handleRemoveTrack(sid core.SessionID, data []byte) error {
	var p struct {
		Track string `json:"track"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("%w: %v", core.ErrProtocol, err)
	}
	return ctl.Orch.RemoveTrack(sid, p.Track)
}

// relayToMember passes a control payload through to the member it names.
// The payload is forwarded untouched, userId and all.
func (ctl *Controller) relayToMember(event string, data []byte) error {
	var p struct {
		UserID string `json:"userId"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("%w: %v", core.ErrProtocol, err)
	}
	if p.UserID == "" {
		return fmt.Errorf("%w: missing userId", core.ErrProtocol)
	}
	sc, err := ctl.Orch.Registry.Signal(core.SessionID(p.UserID))
	if err != nil {
		return err
	}
	ctl.sendEvent(sc, event, json.RawMessage(data))
	return nil
}
