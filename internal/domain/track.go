package domain

// TrackRef is a transient reference to one published media track,
// used while forwarding. It is never persisted on its own.
type TrackRef struct {
	ID       string
	Kind     string
	Owner    ParticipantID
	StreamID string
}
