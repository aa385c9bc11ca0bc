package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const streamWriteTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Local overlays and phones on the same network connect from arbitrary origins.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleStream pushes every snapshot to a websocket client until it disconnects.
func (h *TelemetryHandler) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("Telemetry: websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ch := h.subscribe()
	defer h.unsubscribe(ch)

	// Reader: detects client close; incoming messages are ignored.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if latest, ok := h.Latest(); ok {
		if err := writeStream(conn, latest); err != nil {
			return
		}
	}

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case msg := <-ch:
			if err := writeStream(conn, msg); err != nil {
				slog.Debug("Telemetry: websocket write failed", "error", err)
				return
			}
		}
	}
}

func writeStream(conn *websocket.Conn, msg TelemetryResponse) error {
	if err := conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout)); err != nil {
		return err
	}
	return conn.WriteJSON(msg)
}
