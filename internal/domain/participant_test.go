package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewParticipantValidation(t *testing.T) {
	_, err := NewParticipant("P1", "", "R1")
	assert.ErrorIs(t, err, ErrNicknameEmpty)

	_, err = NewParticipant("P1", strings.Repeat("x", MaxNicknameLen+1), "R1")
	assert.ErrorIs(t, err, ErrNicknameTooLong)

	p, err := NewParticipant("P1", "alice", "R1")
	require.NoError(t, err)
	assert.Equal(t, ParticipantID("P1"), p.ID)
	assert.Equal(t, StateNew, p.State)
	assert.Empty(t, p.Tracks)
}

func TestParticipantTrackSet(t *testing.T) {
	p, err := NewParticipant("P1", "alice", "R1")
	require.NoError(t, err)

	assert.True(t, p.AddTrack("T1"))
	assert.False(t, p.AddTrack("T1"))
	assert.True(t, p.AddTrack("T2"))
	assert.Equal(t, []string{"T1", "T2"}, p.Tracks)

	assert.True(t, p.RemoveTrack("T1"))
	assert.False(t, p.RemoveTrack("T1"))
	assert.Equal(t, []string{"T2"}, p.Tracks)
}

func TestConnStateString(t *testing.T) {
	assert.Equal(t, "new", StateNew.String())
	assert.Equal(t, "negotiating", StateNegotiating.String())
	assert.Equal(t, "connected", StateConnected.String())
	assert.Equal(t, "disconnected", StateDisconnected.String())
	assert.Equal(t, "failed", StateFailed.String())
	assert.Equal(t, "closed", StateClosed.String())
}
