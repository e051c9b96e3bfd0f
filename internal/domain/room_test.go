package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewRoomID(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	assert.Equal(t, RoomID("1700000000000"), NewRoomID(now))
}

func TestRoomMembershipOrder(t *testing.T) {
	r := NewRoom("R1", "P1")
	assert.Equal(t, []ParticipantID{"P1"}, r.Members)

	assert.True(t, r.AddMember("P2"))
	assert.True(t, r.AddMember("P3"))
	assert.Equal(t, []ParticipantID{"P1", "P2", "P3"}, r.Members)
}

func TestRoomNoDuplicateMembers(t *testing.T) {
	r := NewRoom("R1", "P1")
	assert.False(t, r.AddMember("P1"))
	r.AddMember("P2")
	assert.False(t, r.AddMember("P2"))
	assert.Equal(t, []ParticipantID{"P1", "P2"}, r.Members)
}

func TestRoomRemoveMember(t *testing.T) {
	r := NewRoom("R1", "P1")
	r.AddMember("P2")
	r.AddMember("P3")

	assert.True(t, r.RemoveMember("P2"))
	assert.Equal(t, []ParticipantID{"P1", "P3"}, r.Members)
	assert.False(t, r.RemoveMember("P2"))

	r.RemoveMember("P1")
	r.RemoveMember("P3")
	assert.True(t, r.Empty())
}
