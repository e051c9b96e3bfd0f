package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akorchak/callhub/internal/core"
	"github.com/akorchak/callhub/internal/domain"
)

func TestRoomRegistryCreateAndGet(t *testing.T) {
	reg := NewRoomRegistry()
	room := reg.Create("P1")
	assert.NotEmpty(t, room.ID)
	assert.Equal(t, domain.ParticipantID("P1"), room.OwnerID)
	assert.Equal(t, []domain.ParticipantID{"P1"}, room.Members)

	got, err := reg.Get(room.ID)
	require.NoError(t, err)
	assert.Equal(t, room.ID, got.ID)

	_, err = reg.Get("nope")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestRoomRegistryUniqueIDs(t *testing.T) {
	reg := NewRoomRegistry()
	seen := make(map[domain.RoomID]struct{})
	for i := 0; i < 50; i++ {
		room := reg.Create("P1")
		_, dup := seen[room.ID]
		require.False(t, dup, "duplicate room id %s", room.ID)
		seen[room.ID] = struct{}{}
	}
}

func TestRoomRegistryMembership(t *testing.T) {
	reg := NewRoomRegistry()
	room := reg.Create("P1")

	require.NoError(t, reg.AddMember(room.ID, "P2"))
	// Duplicate joins do not grow the list.
	require.NoError(t, reg.AddMember(room.ID, "P2"))

	members, err := reg.Members(room.ID)
	require.NoError(t, err)
	assert.Equal(t, []domain.ParticipantID{"P1", "P2"}, members)

	assert.ErrorIs(t, reg.AddMember("nope", "P3"), core.ErrNotFound)
}

func TestRoomRegistryDeleteOnEmpty(t *testing.T) {
	reg := NewRoomRegistry()
	room := reg.Create("P1")
	require.NoError(t, reg.AddMember(room.ID, "P2"))

	assert.False(t, reg.RemoveMember(room.ID, "P2"))
	assert.Equal(t, 1, reg.Count())

	assert.True(t, reg.RemoveMember(room.ID, "P1"))
	assert.Equal(t, 0, reg.Count())

	_, err := reg.Get(room.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)

	// Removing from a deleted room is a no-op.
	assert.False(t, reg.RemoveMember(room.ID, "P1"))
}

func TestRoomRegistrySnapshotIsolation(t *testing.T) {
	reg := NewRoomRegistry()
	room := reg.Create("P1")

	members, err := reg.Members(room.ID)
	require.NoError(t, err)
	members[0] = "mutated"

	again, err := reg.Members(room.ID)
	require.NoError(t, err)
	assert.Equal(t, []domain.ParticipantID{"P1"}, again)
}
