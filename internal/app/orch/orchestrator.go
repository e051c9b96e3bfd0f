// Package orch coordinates the signaling lifecycle: it drives offer/answer
// exchange per participant, fans published tracks out across the room, and
// tears state down when a connection ends.
package orch

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/akorchak/callhub/internal/app"
	"github.com/akorchak/callhub/internal/app/sfu"
	"github.com/akorchak/callhub/internal/core"
	"github.com/akorchak/callhub/internal/domain"
	"github.com/akorchak/callhub/internal/storage"
)

type Orchestrator struct {
	Rooms    *app.RoomRegistry
	Registry *app.ParticipantRegistry
	Relays   *sfu.RelayManager
	Engine   core.MediaFactory
	Emitter  core.Emitter
	Store    storage.Store // nil disables the write-through
}

// consumeEvents drains one connection's ordered event stream. One goroutine
// per participant; exits when the participant's context is canceled.
func (o *Orchestrator) consumeEvents(ctx context.Context, sid core.SessionID, mc core.MediaConnection) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-mc.Events():
			if !ok {
				return
			}
			switch ev.Kind {
			case core.EventTrack:
				o.handleTrack(ctx, sid, ev.Track)
			case core.EventICECandidate:
				o.relayCandidate(sid, ev.Candidate)
			case core.EventNegotiationNeeded:
				o.renegotiate(sid)
			case core.EventStateChange:
				o.handleStateChange(sid, ev.State)
			}
		}
	}
}

func (o *Orchestrator) emit(sid core.SessionID, event string, payload any) {
	if o.Emitter == nil {
		return
	}
	o.Emitter.Emit(sid, event, payload)
}

func (o *Orchestrator) persistRoom(room domain.Room) {
	if o.Store == nil {
		return
	}
	if err := o.Store.SaveRoom(room); err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("room", string(room.ID)).Msg("room write-through failed")
	}
}

func (o *Orchestrator) forgetRoom(id domain.RoomID) {
	if o.Store == nil {
		return
	}
	if err := o.Store.DeleteRoom(id); err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("room", string(id)).Msg("room delete write-through failed")
	}
}

func (o *Orchestrator) persistParticipant(p domain.Participant) {
	if o.Store == nil {
		return
	}
	if err := o.Store.SaveParticipant(p); err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("sid", string(p.ID)).Msg("participant write-through failed")
	}
}

func (o *Orchestrator) forgetParticipant(id domain.ParticipantID) {
	if o.Store == nil {
		return
	}
	if err := o.Store.RemoveParticipant(id); err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("sid", string(id)).Msg("participant delete write-through failed")
	}
}
