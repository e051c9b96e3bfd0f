package signal

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/akorchak/callhub/internal/core"
	"github.com/akorchak/callhub/internal/domain"
)

func (ctl *Controller) handleCreateRoom(
	ctx context.Context,
	sid core.SessionID,
	conn core.SignalConnection,
	data []byte,
) error {
	var p struct {
		Offer    webrtc.SessionDescription `json:"offer"`
		Nickname string                    `json:"nickname"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("%w: %v", core.ErrProtocol, err)
	}

	roomID, answer, err := ctl.Orch.CreateRoom(ctx, sid, p.Nickname, p.Offer)
	if err != nil {
		return err
	}

	resp := struct {
		RoomID domain.RoomID             `json:"roomId"`
		Answer webrtc.SessionDescription `json:"answer"`
	}{roomID, answer}
	ctl.sendEvent(conn, "room-created", resp)

	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("room", string(roomID)).Msg("room created")
	return nil
}

func (ctl *Controller) handleConnectRoom(
	ctx context.Context,
	sid core.SessionID,
	conn core.SignalConnection,
	data []byte,
) error {
	var p struct {
		RoomID   domain.RoomID             `json:"roomId"`
		Offer    webrtc.SessionDescription `json:"offer"`
		Nickname string                    `json:"nickname"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("%w: %v", core.ErrProtocol, err)
	}

	answer, err := ctl.Orch.ConnectRoom(ctx, sid, p.RoomID, p.Nickname, p.Offer)
	if err != nil {
		return err
	}

	resp := struct {
		RoomID domain.RoomID             `json:"roomId"`
		Answer webrtc.SessionDescription `json:"answer"`
	}{p.RoomID, answer}
	ctl.sendEvent(conn, "room-connect--accepted", resp)

	// Reply first so the joiner is never blocked on slow peers, then catch
	// it up with the tracks already published in the room.
	ctl.Orch.SyncNewMember(sid)

	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("room", string(p.RoomID)).Msg("joined room")
	return nil
}

func (ctl *Controller) handleUserList(sid core.SessionID, conn core.SignalConnection) error {
	users, err := ctl.Orch.UserList(sid)
	if err != nil {
		return err
	}
	ctl.sendEvent(conn, "update-user-list", users)
	return nil
}
