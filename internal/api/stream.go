package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/otiai10/firesession/internal/session"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPingPeriod = 30 * time.Second
)

// StreamSession handles GET /api/session/stream.
//
// The connection is upgraded to a websocket and receives one JSON
// SessionResponse per snapshot, starting with the current one. A client that
// reads slower than snapshots change skips to the newest snapshot.
func (h *Handler) StreamSession(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already answered with an HTTP error
		h.logger.Warn("failed to upgrade session stream", zap.Error(err))
		return
	}
	defer conn.Close()

	updates := make(chan session.Snapshot, 1)
	cancel := h.tracker.Subscribe(func(s session.Snapshot) {
		select {
		case updates <- s:
			return
		default:
		}
		// Replace the unsent snapshot with the newer one
		select {
		case <-updates:
		default:
		}
		select {
		case updates <- s:
		default:
		}
	})
	defer cancel()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(streamPingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			return
		case <-h.done:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(streamWriteWait))
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait)); err != nil {
				return
			}
		case s := <-updates:
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteJSON(toSessionResponse(s)); err != nil {
				h.logger.Debug("session stream closed", zap.Error(err))
				return
			}
		}
	}
}

// checkOrigin applies the same origin rules as the CORS middleware
func (h *Handler) checkOrigin(r *http.Request) bool {
	return originAllowed(r, h.allowedOrigins)
}
