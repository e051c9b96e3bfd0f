package signal

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/akorchak/callhub/internal/app/orch"
	"github.com/akorchak/callhub/internal/core"
)

var ErrBackpressure = errors.New("backpressure")

// Controller is the signaling router: it maps inbound named messages to
// orchestrator operations and emits outbound messages through the websocket.
type Controller struct {
	Orch       *orch.Orchestrator
	readLimit  int64
	pingPeriod time.Duration
}

func NewController(o *orch.Orchestrator, readLimit int64, pingPeriod time.Duration) *Controller {
	return &Controller{Orch: o, readLimit: readLimit, pingPeriod: pingPeriod}
}

// Emit delivers a named event to one participant. Implements core.Emitter
// for orchestrator fan-outs that originate from engine events.
func (ctl *Controller) Emit(sid core.SessionID, event string, payload any) {
	sc, err := ctl.Orch.Registry.Signal(sid)
	if err != nil {
		return
	}
	ctl.sendEvent(sc, event, payload)
}

// wsConn is one participant's transport endpoint: a bounded send queue in
// front of the websocket. TrySend never blocks the caller.
type wsConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *wsConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *wsConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}
