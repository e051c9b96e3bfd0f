package storage

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akorchak/callhub/internal/domain"
)

type recordStore struct {
	mu     sync.Mutex
	ops    []string
	err    error
	closed bool
}

func (s *recordStore) record(op string) error {
	s.mu.Lock()
	s.ops = append(s.ops, op)
	s.mu.Unlock()
	return s.err
}

func (s *recordStore) SaveRoom(room domain.Room) error { return s.record("save_room:" + string(room.ID)) }
func (s *recordStore) DeleteRoom(id domain.RoomID) error {
	return s.record("delete_room:" + string(id))
}
func (s *recordStore) SaveParticipant(p domain.Participant) error {
	return s.record("save_participant:" + string(p.ID))
}
func (s *recordStore) RemoveParticipant(id domain.ParticipantID) error {
	return s.record("remove_participant:" + string(id))
}
func (s *recordStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func TestAsyncStoreOrderPreserved(t *testing.T) {
	inner := &recordStore{}
	s := NewAsyncStore(inner)

	require.NoError(t, s.SaveRoom(domain.Room{ID: "R1"}))
	require.NoError(t, s.SaveParticipant(domain.Participant{ID: "P1"}))
	require.NoError(t, s.RemoveParticipant("P1"))
	require.NoError(t, s.DeleteRoom("R1"))

	// Close drains the queue before closing the inner store.
	require.NoError(t, s.Close())

	assert.Equal(t, []string{
		"save_room:R1",
		"save_participant:P1",
		"remove_participant:P1",
		"delete_room:R1",
	}, inner.ops)
	assert.True(t, inner.closed)
}

func TestAsyncStoreSwallowsErrors(t *testing.T) {
	inner := &recordStore{err: errors.New("redis down")}
	s := NewAsyncStore(inner)

	assert.NoError(t, s.SaveRoom(domain.Room{ID: "R1"}))
	require.NoError(t, s.Close())
	assert.Len(t, inner.ops, 1)
}
