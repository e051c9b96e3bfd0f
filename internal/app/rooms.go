package app

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/akorchak/callhub/internal/core"
	"github.com/akorchak/callhub/internal/domain"
)

// RoomRegistry owns all live rooms. Mutation goes through its methods only;
// callers get snapshots, never the internal structs. A room exists iff it has
// at least one member: RemoveMember deletes the room the moment it empties.
type RoomRegistry struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]*domain.Room
}

func NewRoomRegistry() *RoomRegistry {
	return &RoomRegistry{rooms: make(map[domain.RoomID]*domain.Room)}
}

// Create allocates a room with a time-derived id and the owner as sole member.
func (r *RoomRegistry) Create(owner domain.ParticipantID) domain.Room {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	id := domain.NewRoomID(now)
	for _, taken := r.rooms[id]; taken; _, taken = r.rooms[id] {
		now = now.Add(time.Millisecond)
		id = domain.NewRoomID(now)
	}

	room := domain.NewRoom(id, owner)
	r.rooms[id] = room
	log.Info().Str("module", "app.rooms").Str("room", string(id)).Str("owner", string(owner)).Msg("room created")
	return snapshotRoom(room)
}

func (r *RoomRegistry) Get(id domain.RoomID) (domain.Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[id]
	if !ok {
		return domain.Room{}, fmt.Errorf("room %s: %w", id, core.ErrNotFound)
	}
	return snapshotRoom(room), nil
}

// Members returns the membership list in join order.
func (r *RoomRegistry) Members(id domain.RoomID) ([]domain.ParticipantID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[id]
	if !ok {
		return nil, fmt.Errorf("room %s: %w", id, core.ErrNotFound)
	}
	out := make([]domain.ParticipantID, len(room.Members))
	copy(out, room.Members)
	return out, nil
}

func (r *RoomRegistry) AddMember(id domain.RoomID, pid domain.ParticipantID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[id]
	if !ok {
		return fmt.Errorf("room %s: %w", id, core.ErrNotFound)
	}
	if room.AddMember(pid) {
		log.Info().Str("module", "app.rooms").Str("room", string(id)).Str("sid", string(pid)).Msg("member added")
	}
	return nil
}

// RemoveMember drops pid from the room and reports whether the room emptied
// (and was therefore deleted). Unknown rooms and absent members are no-ops.
func (r *RoomRegistry) RemoveMember(id domain.RoomID, pid domain.ParticipantID) (emptied bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[id]
	if !ok {
		return false
	}
	if !room.RemoveMember(pid) {
		return false
	}
	log.Info().Str("module", "app.rooms").Str("room", string(id)).Str("sid", string(pid)).Msg("member removed")
	if room.Empty() {
		delete(r.rooms, id)
		log.Info().Str("module", "app.rooms").Str("room", string(id)).Msg("room deleted (empty)")
		return true
	}
	return false
}

func (r *RoomRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

func snapshotRoom(room *domain.Room) domain.Room {
	members := make([]domain.ParticipantID, len(room.Members))
	copy(members, room.Members)
	return domain.Room{ID: room.ID, OwnerID: room.OwnerID, Members: members}
}
