package signal

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/akorchak/callhub/internal/core"
)

// envelope is the wire shape of every signaling message, in and out.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleSignal upgrades the connection and serves it until disconnect.
func (ctl *Controller) HandleSignal(ctx context.Context, c *gin.Context) {
	sid := core.SessionID(c.GetString("client_token"))
	log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Msg("ws upgrade")
		return
	}
	if ctl.readLimit > 0 {
		ws.SetReadLimit(ctl.readLimit)
	}

	conn := &wsConn{
		conn: ws,
		send: make(chan core.Frame, 32),
	}

	// A second connection with the same token (second tab) displaces the old
	// one; the displaced socket is closed and must not tear the session down.
	if old := ctl.Orch.Registry.BindSignal(sid, conn); old != nil {
		log.Warn().Str("module", "signal").Str("sid", string(sid)).Msg("displacing previous connection")
		old.Close()
	}

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, cancel, conn)
	go ctl.readPump(ctx, cancel, sid, conn)
}

func (ctl *Controller) writePump(ctx context.Context, cancel context.CancelFunc, c *wsConn) {
	defer cancel()
	ticker := time.NewTicker(ctl.pingInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				log.Warn().Err(err).Str("module", "signal").Msg("writePump ping error")
				return
			}
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

func (ctl *Controller) readPump(ctx context.Context, cancel context.CancelFunc, sid core.SessionID, c *wsConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump closing")
		cancel()
		if ctl.Orch.Registry.SignalIs(sid, c) {
			ctl.Orch.Disconnect(sid)
		}
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				log.Info().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("readPump read end")
				return
			}
			ctl.dispatch(ctx, sid, c, data)
		}
	}
}

// dispatch maps one inbound named message to exactly one handler. Handler
// failures are acknowledged to the caller and never abort the loop.
func (ctl *Controller) dispatch(ctx context.Context, sid core.SessionID, conn core.SignalConnection, data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad envelope")
		ctl.sendError(conn, "", errors.Join(core.ErrProtocol, err))
		return
	}

	var err error
	switch env.Event {
	case "create-room":
		err = ctl.handleCreateRoom(ctx, sid, conn, env.Data)
	case "room-connect":
		err = ctl.handleConnectRoom(ctx, sid, conn, env.Data)
	case "negotiation":
		err = ctl.handleNegotiation(sid, conn, env.Data)
	case "negotiation-accept":
		err = ctl.handleNegotiationAccept(sid, env.Data)
	case "ice-candidate":
		err = ctl.handleIceCandidate(sid, env.Data)
	case "user-list":
		err = ctl.handleUserList(sid, conn)
	case "screen-cast":
		err = ctl.handleScreenCast(sid, env.Data)
	case "remove-track":
		err = ctl.handleRemoveTrack(sid, env.Data)
	case "click":
		err = ctl.relayToMember("click", env.Data)
	case "keyToggle":
		// The outbound event name is lowercased on the wire.
		err = ctl.relayToMember("keytoggle", env.Data)
	case "ping":
		ctl.handlePing(conn)
	default:
		log.Warn().Str("module", "signal").Str("event", env.Event).Msg("unknown signal")
		err = core.ErrProtocol
	}

	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("sid", string(sid)).Str("event", env.Event).Msg("handler failed")
		ctl.sendError(conn, env.Event, err)
	}
}

func (ctl *Controller) sendEvent(c core.SignalConnection, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("event", event).Msg("sendEvent marshal")
		return
	}
	frame, err := json.Marshal(envelope{Event: event, Data: data})
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("event", event).Msg("sendEvent marshal envelope")
		return
	}
	_ = c.TrySend(frame)
}

// errorAck is the explicit failure acknowledgment of one inbound message.
type errorAck struct {
	Event   string `json:"event,omitempty"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (ctl *Controller) sendError(c core.SignalConnection, event string, err error) {
	ctl.sendEvent(c, "error", errorAck{
		Event:   event,
		Kind:    errorKind(err),
		Message: err.Error(),
	})
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, core.ErrNotFound):
		return "not_found"
	case errors.Is(err, core.ErrNegotiation):
		return "negotiation"
	case errors.Is(err, core.ErrEngine):
		return "engine"
	case errors.Is(err, core.ErrProtocol):
		return "protocol"
	}
	return "internal"
}

const defaultPingPeriod = 54 * time.Second

func (ctl *Controller) pingInterval() time.Duration {
	if ctl.pingPeriod > 0 {
		return ctl.pingPeriod
	}
	return defaultPingPeriod
}
