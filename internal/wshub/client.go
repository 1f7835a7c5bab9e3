package wshub

import (
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/devanshjainms/exitengine/pkg/applog"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 65536

	clientSendBufferSize = 512
)

// OriginChecker does an O(1) lookup against an allowlist built once at
// startup from the WS_ALLOWED_ORIGINS env var, falling back to the
// default local dev origins when unset.
type OriginChecker struct {
	allowed map[string]bool
}

var devOrigins = []string{
	"http://localhost:3000",
	"http://localhost:5173",
	"http://127.0.0.1:3000",
}

// NewOriginChecker builds an OriginChecker from the WS_ALLOWED_ORIGINS env
// var (comma-separated), falling back to devOrigins when unset.
func NewOriginChecker() *OriginChecker {
	allowed := make(map[string]bool)
	raw := os.Getenv("WS_ALLOWED_ORIGINS")
	if raw == "" {
		for _, o := range devOrigins {
			allowed[o] = true
		}
	} else {
		for _, o := range strings.Split(raw, ",") {
			o = strings.TrimSpace(o)
			if o != "" {
				allowed[o] = true
			}
		}
	}
	return &OriginChecker{allowed: allowed}
}

func (c *OriginChecker) check(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return c.allowed[origin]
}

// Client is one connected websocket subscriber.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// ServeWS upgrades r into a websocket connection, registers it with hub,
// and spawns its read/write pumps. Intended to be wired directly as the
// handler for /ws/stream.
func ServeWS(hub *Hub, checker *OriginChecker, w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     checker.check,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		applog.L().Warn("websocket upgrade failed", applog.Err(err))
		return
	}

	client := &Client{hub: hub, conn: conn, send: make(chan []byte, clientSendBufferSize)}
	hub.register <- client

	go client.writePump()
	go client.readPump()
}

// readPump discards any inbound client traffic (the UI only consumes this
// stream) but still drives the pong-deadline keepalive, so a dead
// connection is detected and unregistered promptly.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
