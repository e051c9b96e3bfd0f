package storage

import (
	"github.com/gammazero/workerpool"
	"github.com/rs/zerolog/log"

	"github.com/akorchak/callhub/internal/domain"
)

// asyncStore decouples persistence from the dispatch path: writes are queued
// on a single-worker pool, so ordering per call site is preserved and a slow
// store never blocks signaling. Errors are logged, never surfaced.
type asyncStore struct {
	inner Store
	wp    *workerpool.WorkerPool
}

func NewAsyncStore(inner Store) Store {
	return &asyncStore{inner: inner, wp: workerpool.New(1)}
}

func (s *asyncStore) submit(op string, fn func() error) {
	s.wp.Submit(func() {
		if err := fn(); err != nil {
			log.Warn().Err(err).Str("module", "storage").Str("op", op).Msg("write-through failed")
		}
	})
}

func (s *asyncStore) SaveRoom(room domain.Room) error {
	s.submit("save_room", func() error { return s.inner.SaveRoom(room) })
	return nil
}

func (s *asyncStore) DeleteRoom(id domain.RoomID) error {
	s.submit("delete_room", func() error { return s.inner.DeleteRoom(id) })
	return nil
}

func (s *asyncStore) SaveParticipant(p domain.Participant) error {
	s.submit("save_participant", func() error { return s.inner.SaveParticipant(p) })
	return nil
}

func (s *asyncStore) RemoveParticipant(id domain.ParticipantID) error {
	s.submit("remove_participant", func() error { return s.inner.RemoveParticipant(id) })
	return nil
}

func (s *asyncStore) Close() error {
	s.wp.StopWait()
	return s.inner.Close()
}
