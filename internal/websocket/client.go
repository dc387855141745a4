package websocket

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/showcaselive/showtime/internal/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Frames carry public event state; origin checks stay at the proxy.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Client is one websocket connection subscribed to a showcase.
type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	showcaseID string

	// Operator consoles connect too but do not count toward the audience.
	countsAsViewer bool

	closeOnce sync.Once
	log       logger.Logger
}

func (c *Client) closeSend() {
	c.closeOnce.Do(func() { close(c.send) })
}

// readPump consumes (and discards) inbound frames, keeping the connection's
// read deadline fresh via pongs.
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
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug("websocket read error", "showcase_id", c.showcaseID, "error", err)
			}
			return
		}
	}
}

// writePump forwards hub frames to the connection and keeps it alive with
// pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
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

// ServeWS upgrades an HTTP request to a websocket subscribed to showcaseID.
// asViewer controls whether the connection counts toward the audience.
func ServeWS(hub *Hub, log logger.Logger, showcaseID string, asViewer bool, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("websocket upgrade failed", "error", err)
		return
	}
	c := &Client{
		hub:            hub,
		conn:           conn,
		send:           make(chan []byte, 16),
		showcaseID:     showcaseID,
		countsAsViewer: asViewer,
		log:            log,
	}
	hub.register <- c
	go c.writePump()
	go c.readPump()
}
