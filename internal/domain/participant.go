// Package domain contains entities without transport or lifecycle logic.
package domain

import "errors"

const MaxNicknameLen = 36

var (
	ErrNicknameEmpty   = errors.New("nickname empty")
	ErrNicknameTooLong = errors.New("nickname too long")
)

// ParticipantID equals the transport session id.
type ParticipantID string

type ConnState int

const (
	StateNew ConnState = iota
	StateNegotiating
	StateConnected
	StateDisconnected
	StateFailed
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateNegotiating:
		return "negotiating"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Participant is one call member: identity, room binding and published media
// metadata. The media handle itself lives in the registry, not here.
type Participant struct {
	ID                 ParticipantID
	Nickname           string
	RoomID             RoomID
	Tracks             []string
	ScreenCastStreamID string
	State              ConnState
}

func NewParticipant(id ParticipantID, nickname string, roomID RoomID) (*Participant, error) {
	if len(nickname) == 0 {
		return nil, ErrNicknameEmpty
	}
	if len([]rune(nickname)) > MaxNicknameLen {
		return nil, ErrNicknameTooLong
	}
	return &Participant{ID: id, Nickname: nickname, RoomID: roomID, Tracks: []string{}}, nil
}

// AddTrack records a published track id, reporting false on duplicates.
func (p *Participant) AddTrack(trackID string) bool {
	if p.HasTrack(trackID) {
		return false
	}
	p.Tracks = append(p.Tracks, trackID)
	return true
}

// RemoveTrack reports whether the id was actually published.
func (p *Participant) RemoveTrack(trackID string) bool {
	for i, id := range p.Tracks {
		if id == trackID {
			p.Tracks = append(p.Tracks[:i], p.Tracks[i+1:]...)
			return true
		}
	}
	return false
}

func (p *Participant) HasTrack(trackID string) bool {
	for _, id := range p.Tracks {
		if id == trackID {
			return true
		}
	}
	return false
}
