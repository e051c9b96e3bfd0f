package signal

import "github.com/akorchak/callhub/internal/core"

func (ctl *Controller) handlePing(conn core.SignalConnection) {
	ctl.sendEvent(conn, "pong", struct{}{})
}
