package orch

import (
	"context"
	"fmt"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/akorchak/callhub/internal/core"
	"github.com/akorchak/callhub/internal/domain"
)

// CreateRoom allocates a room plus the creator's participant and media
// handle, completes the offer/answer handshake and returns the new room id
// with the answer.
func (o *Orchestrator) CreateRoom(
	ctx context.Context,
	sid core.SessionID,
	nickname string,
	offer webrtc.SessionDescription,
) (domain.RoomID, webrtc.SessionDescription, error) {
	p, err := domain.NewParticipant(domain.ParticipantID(sid), nickname, "")
	if err != nil {
		return "", webrtc.SessionDescription{}, fmt.Errorf("%w: %v", core.ErrProtocol, err)
	}

	room := o.Rooms.Create(domain.ParticipantID(sid))
	p.RoomID = room.ID

	answer, err := o.attachParticipant(ctx, sid, p, offer)
	if err != nil {
		o.Rooms.RemoveMember(room.ID, domain.ParticipantID(sid))
		return "", webrtc.SessionDescription{}, err
	}

	o.persistRoom(room)
	o.persistParticipant(*p)
	log.Info().Str("module", "orch").Str("sid", string(sid)).Str("room", string(room.ID)).Msg("room created")
	return room.ID, answer, nil
}

// ConnectRoom joins an existing room: allocates the participant and handle
// the same way and completes the handshake. The reply goes out before the
// track catch-up; callers run SyncNewMember after delivering the answer.
func (o *Orchestrator) ConnectRoom(
	ctx context.Context,
	sid core.SessionID,
	roomID domain.RoomID,
	nickname string,
	offer webrtc.SessionDescription,
) (webrtc.SessionDescription, error) {
	if _, err := o.Rooms.Get(roomID); err != nil {
		return webrtc.SessionDescription{}, err
	}

	p, err := domain.NewParticipant(domain.ParticipantID(sid), nickname, roomID)
	if err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("%w: %v", core.ErrProtocol, err)
	}

	answer, err := o.attachParticipant(ctx, sid, p, offer)
	if err != nil {
		return webrtc.SessionDescription{}, err
	}

	if err := o.Rooms.AddMember(roomID, domain.ParticipantID(sid)); err != nil {
		// Room vanished between lookup and join; roll the participant back.
		o.Registry.Release(sid)
		return webrtc.SessionDescription{}, err
	}

	o.persistParticipant(*p)
	log.Info().Str("module", "orch").Str("sid", string(sid)).Str("room", string(roomID)).Msg("joined room")
	return answer, nil
}

// attachParticipant binds a new participant with a fresh engine connection
// and answers its offer. On failure nothing is left registered.
func (o *Orchestrator) attachParticipant(
	ctx context.Context,
	sid core.SessionID,
	p *domain.Participant,
	offer webrtc.SessionDescription,
) (webrtc.SessionDescription, error) {
	mc, err := o.Engine.NewConnection(sid)
	if err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("%w: %v", core.ErrEngine, err)
	}

	connCtx, cancel := context.WithCancel(ctx)
	o.Registry.BindParticipant(sid, p, mc, cancel)

	if err := mc.Start(connCtx); err != nil {
		o.Registry.Release(sid)
		return webrtc.SessionDescription{}, fmt.Errorf("%w: %v", core.ErrEngine, err)
	}
	go o.consumeEvents(connCtx, sid, mc)

	answer, err := o.answerHandshake(sid, mc, offer)
	if err != nil {
		o.Registry.Release(sid)
		return webrtc.SessionDescription{}, err
	}
	return answer, nil
}

// SyncNewMember catches a fresh joiner up with the tracks already published
// in its room, and tells each publisher about the joiner. Members that join
// later are not served by this path.
func (o *Orchestrator) SyncNewMember(sid core.SessionID) {
	roomID, ok := o.Registry.RoomOf(sid)
	if !ok {
		return
	}
	mc, err := o.Registry.Media(sid)
	if err != nil {
		return
	}
	members, err := o.Rooms.Members(roomID)
	if err != nil {
		return
	}
	joiner, err := o.Registry.Summary(sid)
	if err != nil {
		return
	}

	for _, m := range members {
		src := core.SessionID(m)
		if src == sid {
			continue
		}
		tracks := o.Relays.TracksOf(src)
		if len(tracks) == 0 {
			continue
		}
		for _, tr := range tracks {
			local, err := webrtc.NewTrackLocalStaticRTP(tr.Codec().RTPCodecCapability, tr.ID(), tr.StreamID())
			if err != nil {
				log.Error().Err(err).Str("module", "orch").Str("track_id", tr.ID()).Msg("local track alloc failed")
				continue
			}
			if err := mc.AddLocalTrack(local); err != nil {
				log.Error().Err(err).Str("module", "orch").Str("sid", string(sid)).Str("track_id", tr.ID()).Msg("catch-up add track failed")
				continue
			}
			o.Relays.Subscribe(tr.ID(), sid, local)
		}
		o.emit(src, "user-update", joiner)
	}
}

// Disconnect tears a participant down: membership removal first, then relay
// teardown and handle release, then the member-removed broadcast. Calling it
// again for the same id has no observable effect.
func (o *Orchestrator) Disconnect(sid core.SessionID) {
	roomID, inRoom := o.Registry.RoomOf(sid)

	var remaining []domain.ParticipantID
	emptied := false
	if inRoom {
		emptied = o.Rooms.RemoveMember(roomID, domain.ParticipantID(sid))
		if !emptied {
			if members, err := o.Rooms.Members(roomID); err == nil {
				remaining = members
			}
		}
	}

	o.Relays.StopOwner(sid)
	o.Relays.DropSubscriber(sid)

	if !o.Registry.Release(sid) {
		return
	}

	for _, m := range remaining {
		o.emit(core.SessionID(m), "remove-user", map[string]string{"socketId": string(sid)})
	}

	o.forgetParticipant(domain.ParticipantID(sid))
	if emptied {
		o.forgetRoom(roomID)
	}
	log.Info().Str("module", "orch").Str("sid", string(sid)).Str("room", string(roomID)).Msg("participant disconnected")
}
