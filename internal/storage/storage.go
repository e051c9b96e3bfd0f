// Package storage is the optional write-through of room/participant identity
// to a document store. It exists for audit only and is never required for
// correctness of live signaling: every caller treats failures as soft.
package storage

import "github.com/akorchak/callhub/internal/domain"

type Store interface {
	SaveRoom(room domain.Room) error
	DeleteRoom(id domain.RoomID) error
	SaveParticipant(p domain.Participant) error
	RemoveParticipant(id domain.ParticipantID) error
	Close() error
}
