package core

// Frame is a raw serialized signaling message.
type Frame []byte

type SessionID string

// SignalConnection abstracts the messaging transport of one participant.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

// Emitter delivers a named event to one participant's signal connection.
// Implemented by the signaling adapter, consumed by the orchestrator for
// fan-outs that originate from engine events rather than inbound messages.
type Emitter interface {
	Emit(sid SessionID, event string, payload any)
}
