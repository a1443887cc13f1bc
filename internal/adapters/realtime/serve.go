package realtime

import (
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Upgrader builds the websocket upgrader. Requests whose Origin host is not
// in allowedHosts are refused; an empty list only accepts same-host origins.
func Upgrader(allowedHosts []string) *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			u, err := url.Parse(origin)
			if err != nil {
				return false
			}
			if u.Host == r.Host {
				return true
			}
			for _, h := range allowedHosts {
				if u.Host == h {
					return true
				}
			}
			return false
		},
	}
}

// Serve upgrades the request and streams hub messages for profileID until
// the connection drops.
// PRE: the caller has authenticated profileID
// POST: the client is unregistered when Serve returns
func Serve(w http.ResponseWriter, r *http.Request, up *websocket.Upgrader, hub *Hub, profileID string) {
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		slog.Info("realtime_event", "event", "upgrade_failed", "profile_id", profileID, "error", err)
		return
	}
	client := NewClient(profileID)
	hub.Register(client)
	slog.Info("realtime_event", "event", "client_connected", "profile_id", profileID)

	go writePump(client, conn)
	readPump(conn)

	client.Close()
	slog.Info("realtime_event", "event", "client_disconnected", "profile_id", profileID)
}

// writePump copies messages from client.Send to the connection and keeps it
// alive with pings.
func writePump(c *Client, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.Send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards client frames; it only exists to process control
// frames and notice the disconnect.
func readPump(conn *websocket.Conn) {
	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
