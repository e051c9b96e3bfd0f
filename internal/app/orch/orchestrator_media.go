package orch

import (
	"context"
	"fmt"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/akorchak/callhub/internal/core"
)

// handleTrack forwards a newly published track to every member present in
// the room at forward time. Members joining later are caught up by
// SyncNewMember, never retroactively here.
func (o *Orchestrator) handleTrack(ctx context.Context, sid core.SessionID, track core.RemoteTrack) {
	roomID, ok := o.Registry.RoomOf(sid)
	if !ok {
		// Publisher vanished while the event was in flight.
		log.Debug().Str("module", "orch").Str("sid", string(sid)).Msg("track for unknown participant dropped")
		return
	}

	o.Registry.AddTrack(sid, track.ID())
	o.Registry.ResolveScreenCast(sid, track.StreamID())
	o.Relays.StartRelay(ctx, sid, track)

	members, err := o.Rooms.Members(roomID)
	if err != nil {
		return
	}
	summary, err := o.Registry.Summary(sid)
	if err != nil {
		return
	}

	log.Info().
		Str("module", "orch").
		Str("sid", string(sid)).
		Str("track_id", track.ID()).
		Str("stream_id", track.StreamID()).
		Str("kind", track.Kind().String()).
		Msg("forwarding track")

	for _, m := range members {
		dst := core.SessionID(m)
		if dst == sid {
			continue
		}
		dstMC, err := o.Registry.Media(dst)
		if err != nil {
			continue
		}
		local, err := webrtc.NewTrackLocalStaticRTP(track.Codec().RTPCodecCapability, track.ID(), track.StreamID())
		if err != nil {
			log.Error().Err(err).Str("module", "orch").Str("track_id", track.ID()).Msg("local track alloc failed")
			continue
		}
		if err := dstMC.AddLocalTrack(local); err != nil {
			log.Error().Err(err).Str("module", "orch").Str("dst_sid", string(dst)).Str("track_id", track.ID()).Msg("add track failed")
			continue
		}
		o.Relays.Subscribe(track.ID(), dst, local)
		o.emit(dst, "user-update", summary)
	}
}

// RemoveTrack handles an explicit track withdrawal. Removing an id that is
// not currently published is a no-op and triggers no broadcast.
func (o *Orchestrator) RemoveTrack(sid core.SessionID, trackID string) error {
	if _, err := o.Registry.Get(sid); err != nil {
		return err
	}
	if !o.Registry.RemoveTrack(sid, trackID) {
		return nil
	}
	o.Relays.StopTrack(trackID)
	o.broadcastUpdate(sid)
	return nil
}

// ScreenCast records which of the participant's streams is a screen share
// and tells the rest of the room.
func (o *Orchestrator) ScreenCast(sid core.SessionID, streamID string) error {
	if err := o.Registry.SetScreenCast(sid, streamID); err != nil {
		return err
	}
	o.broadcastUpdate(sid)
	return nil
}

// UserList returns summaries of the other members of the caller's room.
func (o *Orchestrator) UserList(sid core.SessionID) ([]core.ParticipantSummary, error) {
	roomID, ok := o.Registry.RoomOf(sid)
	if !ok {
		return nil, fmt.Errorf("session %s has no room: %w", sid, core.ErrNotFound)
	}
	members, err := o.Rooms.Members(roomID)
	if err != nil {
		return nil, err
	}
	out := make([]core.ParticipantSummary, 0, len(members))
	for _, m := range members {
		if core.SessionID(m) == sid {
			continue
		}
		s, err := o.Registry.Summary(core.SessionID(m))
		if err != nil {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

// broadcastUpdate sends the participant's current summary to every other
// member of its room.
func (o *Orchestrator) broadcastUpdate(sid core.SessionID) {
	roomID, ok := o.Registry.RoomOf(sid)
	if !ok {
		return
	}
	members, err := o.Rooms.Members(roomID)
	if err != nil {
		return
	}
	summary, err := o.Registry.Summary(sid)
	if err != nil {
		return
	}
	for _, m := range members {
		if core.SessionID(m) == sid {
			continue
		}
		o.emit(core.SessionID(m), "user-update", summary)
	}
}
