package storage

import (
	"fmt"
	"strings"

	"github.com/go-redis/redis/v7"

	"github.com/akorchak/callhub/internal/domain"
)

// redisStore keeps one hash per room and one per participant.
type redisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) Store {
	return &redisStore{rdb: rdb}
}

func roomKey(id domain.RoomID) string               { return "room:" + string(id) }
func participantKey(id domain.ParticipantID) string { return "participant:" + string(id) }

func (s *redisStore) SaveRoom(room domain.Room) error {
	members := make([]string, len(room.Members))
	for i, m := range room.Members {
		members[i] = string(m)
	}
	data := map[string]interface{}{
		"id":      string(room.ID),
		"owner":   string(room.OwnerID),
		"members": strings.Join(members, ","),
	}
	if err := s.rdb.HSet(roomKey(room.ID), data).Err(); err != nil {
		return fmt.Errorf("save room %s: %w", room.ID, err)
	}
	return nil
}

func (s *redisStore) DeleteRoom(id domain.RoomID) error {
	if err := s.rdb.Del(roomKey(id)).Err(); err != nil {
		return fmt.Errorf("delete room %s: %w", id, err)
	}
	return nil
}

func (s *redisStore) SaveParticipant(p domain.Participant) error {
	data := map[string]interface{}{
		"id":       string(p.ID),
		"nickname": p.Nickname,
		"room":     string(p.RoomID),
	}
	if err := s.rdb.HSet(participantKey(p.ID), data).Err(); err != nil {
		return fmt.Errorf("save participant %s: %w", p.ID, err)
	}
	return nil
}

func (s *redisStore) RemoveParticipant(id domain.ParticipantID) error {
	if err := s.rdb.Del(participantKey(id)).Err(); err != nil {
		return fmt.Errorf("remove participant %s: %w", id, err)
	}
	return nil
}

func (s *redisStore) Close() error {
	return s.rdb.Close()
}
