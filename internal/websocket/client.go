package websocket

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 50 * time.Second
	sendBuffer = 16
)

type Client struct {
	conn *websocket.Conn
	send chan []byte
}

// NewUpgrader accepts the comma separated origins list used for CORS; "*"
// or an empty list allows any origin.
func NewUpgrader(allowedOrigins string) websocket.Upgrader {
	allowed := map[string]bool{}
	for _, origin := range strings.Split(allowedOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			allowed[origin] = true
		}
	}
	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || len(allowed) == 0 || allowed["*"] || allowed[origin]
		},
	}
}

func ServeWS(w http.ResponseWriter, r *http.Request, upgrader websocket.Upgrader, hub *Hub, userID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.log.WithError(err).WithField("user_id", userID).Debug("websocket: upgrade failed")
		return
	}
	client := &Client{
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}
	hub.Register(userID, client)
	go client.writePump(hub, userID)
	client.readPump(hub, userID)
}

func (c *Client) readPump(hub *Hub, userID string) {
	defer func() {
		hub.Unregister(userID, c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (c *Client) writePump(hub *Hub, userID string) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		hub.Unregister(userID, c)
		_ = c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
