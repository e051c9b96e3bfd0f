package domain

import (
	"strconv"
	"time"
)

type RoomID string

// NewRoomID derives a room id from the wall clock, base-10 milliseconds.
// Room ids on the wire are creation timestamps.
func NewRoomID(now time.Time) RoomID {
	return RoomID(strconv.FormatInt(now.UnixMilli(), 10))
}

// Room holds identity plus the ordered membership list.
// Insertion order is join order; the slice never contains duplicates.
type Room struct {
	ID      RoomID
	OwnerID ParticipantID
	Members []ParticipantID
}

func NewRoom(id RoomID, owner ParticipantID) *Room {
	return &Room{ID: id, OwnerID: owner, Members: []ParticipantID{owner}}
}

// AddMember appends id, reporting false if it is already present.
func (r *Room) AddMember(id ParticipantID) bool {
	if r.HasMember(id) {
		return false
	}
	r.Members = append(r.Members, id)
	return true
}

// RemoveMember deletes id preserving join order, reporting whether it was present.
func (r *Room) RemoveMember(id ParticipantID) bool {
	for i, m := range r.Members {
		if m == id {
			r.Members = append(r.Members[:i], r.Members[i+1:]...)
			return true
		}
	}
	return false
}

func (r *Room) HasMember(id ParticipantID) bool {
	for _, m := range r.Members {
		if m == id {
			return true
		}
	}
	return false
}

func (r *Room) Empty() bool { return len(r.Members) == 0 }
