package core

import "github.com/akorchak/callhub/internal/domain"

// ParticipantSummary is the wire view of a participant. The media handle and
// transport are always omitted.
type ParticipantSummary struct {
	ID              domain.ParticipantID `json:"id"`
	Nickname        string               `json:"nickname"`
	RoomID          domain.RoomID        `json:"roomId"`
	Tracks          []string             `json:"tracks"`
	ScreenCast      string               `json:"screenCast"`
	ConnectionState string               `json:"connectionState"`
}

func NewParticipantSummary(p *domain.Participant) ParticipantSummary {
	tracks := make([]string, len(p.Tracks))
	copy(tracks, p.Tracks)
	return ParticipantSummary{
		ID:              p.ID,
		Nickname:        p.Nickname,
		RoomID:          p.RoomID,
		Tracks:          tracks,
		ScreenCast:      p.ScreenCastStreamID,
		ConnectionState: p.State.String(),
	}
}
