// Package websocket pushes live timeline updates to viewers and the operator
// console, and hosts the ticker that drives time-based phase transitions.
package websocket

import (
	"context"
	"encoding/json"
	"time"

	"github.com/showcaselive/showtime/internal/logger"
	"github.com/showcaselive/showtime/internal/metrics"
	"github.com/showcaselive/showtime/internal/models"
)

// ViewerTracker records audience joins and leaves.
type ViewerTracker interface {
	TrackViewers(showcaseID string, delta int) error
}

// Poller runs one resolution pass over all live timelines.
type Poller interface {
	Poll(ctx context.Context)
}

// Hub maintains the set of connected clients and fans out messages. Clients
// subscribe to a single showcase; frames carry the showcase they belong to
// and only reach its subscribers.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan models.WSMessage

	log     logger.Logger
	metrics *metrics.Metrics
	viewers ViewerTracker
}

// NewHub creates a hub. viewers may be nil when audience counting is off.
func NewHub(log logger.Logger, m *metrics.Metrics, viewers ViewerTracker) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan models.WSMessage, 64),
		log:        log,
		metrics:    m,
		viewers:    viewers,
	}
}

// Broadcast implements services.Notifier. Never blocks the caller: when the
// hub is saturated the frame is dropped, since clients re-sync from the
// status endpoint anyway.
func (h *Hub) Broadcast(showcaseID string, msg models.WSMessage) {
	msg.ShowcaseID = showcaseID
	select {
	case h.broadcast <- msg:
	default:
		h.log.Warn("broadcast queue full, dropping frame", "showcase_id", showcaseID, "type", msg.Type)
	}
}

// Run processes registration and broadcast events until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				c.closeSend()
			}
			return

		case c := <-h.register:
			h.clients[c] = true
			if h.metrics != nil {
				h.metrics.WSConnections.Inc()
			}
			h.trackViewer(c, 1)
			h.log.Debug("websocket client connected", "showcase_id", c.showcaseID, "clients", len(h.clients))

		case c := <-h.unregister:
			if _, ok := h.clients[c]; !ok {
				continue
			}
			delete(h.clients, c)
			c.closeSend()
			if h.metrics != nil {
				h.metrics.WSConnections.Dec()
			}
			h.trackViewer(c, -1)
			h.log.Debug("websocket client disconnected", "showcase_id", c.showcaseID, "clients", len(h.clients))

		case msg := <-h.broadcast:
			data, err := json.Marshal(msg)
			if err != nil {
				h.log.Error("marshalling websocket frame", "error", err)
				continue
			}
			for c := range h.clients {
				if msg.ShowcaseID != "" && c.showcaseID != msg.ShowcaseID {
					continue
				}
				select {
				case c.send <- data:
				default:
					// Slow consumer; drop it rather than stall the hub.
					delete(h.clients, c)
					c.closeSend()
					if h.metrics != nil {
						h.metrics.WSConnections.Dec()
					}
					h.trackViewer(c, -1)
				}
			}
		}
	}
}

func (h *Hub) trackViewer(c *Client, delta int) {
	if h.viewers == nil || !c.countsAsViewer {
		return
	}
	if err := h.viewers.TrackViewers(c.showcaseID, delta); err != nil {
		h.log.Error("tracking viewer", "showcase_id", c.showcaseID, "error", err)
	}
}

// RunTicker polls live timelines on an interval until ctx is cancelled. The
// interval is a freshness knob, not a correctness one: transitions are
// detected by comparing the clock to stored windows, so a missed tick is
// caught up on the next one.
func RunTicker(ctx context.Context, poller Poller, interval time.Duration, log logger.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Info("timeline ticker started", "interval", interval.String())
	for {
		select {
		case <-ctx.Done():
			log.Info("timeline ticker stopped")
			return
		case <-ticker.C:
			poller.Poll(ctx)
		}
	}
}
