package realtime

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/Raleighawesome/family-movies/internal/utils"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Upgrader builds the websocket upgrader. An empty allowed list or "*" admits
// any origin; requests without an Origin header come from non-browser clients
// that already passed the credential gate.
func Upgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		HandshakeTimeout: 10 * time.Second,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || len(allowedOrigins) == 0 {
				return true
			}
			for _, allowed := range allowedOrigins {
				if allowed == "*" || allowed == origin {
					return true
				}
			}
			return false
		},
	}
}

// ServeWebsocket streams a household's events over a websocket until either
// side goes away.
func (h *Hub) ServeWebsocket(upgrader websocket.Upgrader, w http.ResponseWriter, r *http.Request, householdID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()

	sub := h.Subscribe(householdID)
	defer sub.Close()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-sub.Events():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "lagging"))
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			return
		case <-r.Context().Done():
			return
		}
	}
}

// ServeSSE streams a household's events as server-sent events.
func (h *Hub) ServeSSE(w http.ResponseWriter, r *http.Request, householdID string) {
	sse := utils.NewSSEWriter(w)
	sub := h.Subscribe(householdID)
	defer sub.Close()

	if err := sse.Write("ready", `{"householdId":"`+householdID+`"}`); err != nil {
		return
	}

	heartbeat := time.NewTicker(pingPeriod)
	defer heartbeat.Stop()

	for {
		select {
		case event, ok := <-sub.Events():
			if !ok {
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				h.log.WithError(err).Error("failed to encode invalidation event")
				continue
			}
			if err := sse.Write(event.Type, string(data)); err != nil {
				return
			}
		case <-heartbeat.C:
			if err := sse.Comment("heartbeat"); err != nil {
				return
			}
		case <-r.Context().Done():
			return
		}
	}
}
