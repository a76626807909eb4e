package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"bindery/internal/api"
	"bindery/internal/logging"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The daemon binds to loopback by default; anything fronting it for
	// remote access owns origin policy.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWebsocket bridges a hub subscription onto a websocket. The client
// receives a full active-queue snapshot immediately, then one full job
// snapshot per change. Slow readers lose intermediate snapshots, never the
// latest one.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", logging.Error(err))
		return
	}

	sub := s.hub.Subscribe()
	defer sub.Close()
	defer conn.Close()

	// Reader goroutine: the client sends nothing meaningful, but reading is
	// what surfaces close frames and connection loss.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case evt, ok := <-sub.Events():
			if !ok {
				return
			}
			frame := api.Event{
				Sequence:  evt.Sequence,
				Timestamp: evt.Timestamp.UTC().Format(time.RFC3339Nano),
				Job:       api.FromJob(evt.Job, time.Now()),
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(frame); err != nil {
				return
			}
		}
	}
}
