package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/showcaselive/showtime/internal/models"
	"github.com/showcaselive/showtime/internal/testutil"
)

type countingTracker struct {
	mu     sync.Mutex
	counts map[string]int
}

func (c *countingTracker) TrackViewers(showcaseID string, delta int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts == nil {
		c.counts = make(map[string]int)
	}
	c.counts[showcaseID] += delta
	return nil
}

func (c *countingTracker) count(showcaseID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[showcaseID]
}

func newTestClient(hub *Hub, showcaseID string, asViewer bool) *Client {
	return &Client{
		hub:            hub,
		send:           make(chan []byte, 4),
		showcaseID:     showcaseID,
		countsAsViewer: asViewer,
		log:            testutil.SilentLogger{},
	}
}

func recvFrame(t *testing.T, c *Client) models.WSMessage {
	t.Helper()
	select {
	case data := <-c.send:
		var msg models.WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("decoding frame: %v", err)
		}
		return msg
	case <-time.After(time.Second):
		t.Fatal("no frame within 1s")
		return models.WSMessage{}
	}
}

func expectNoFrame(t *testing.T, c *Client) {
	t.Helper()
	select {
	case data := <-c.send:
		t.Fatalf("unexpected frame: %s", data)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubBroadcastScopedToShowcase(t *testing.T) {
	tracker := &countingTracker{}
	hub := NewHub(testutil.SilentLogger{}, nil, tracker)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	a := newTestClient(hub, "show-a", true)
	b := newTestClient(hub, "show-b", true)
	hub.register <- a
	hub.register <- b

	hub.Broadcast("show-a", models.WSMessage{Type: "timeline_update", Payload: "hello"})

	msg := recvFrame(t, a)
	if msg.Type != "timeline_update" || msg.ShowcaseID != "show-a" {
		t.Errorf("frame = %+v", msg)
	}
	expectNoFrame(t, b)
}

func TestHubTracksViewers(t *testing.T) {
	tracker := &countingTracker{}
	hub := NewHub(testutil.SilentLogger{}, nil, tracker)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	viewer := newTestClient(hub, "show-a", true)
	operator := newTestClient(hub, "show-a", false)
	hub.register <- viewer
	hub.register <- operator

	// Synchronize on a broadcast so the registrations are processed. Drain the
	// operator's copy too so the next recvFrame waits for the next broadcast.
	hub.Broadcast("show-a", models.WSMessage{Type: "timeline_update"})
	recvFrame(t, viewer)
	recvFrame(t, operator)

	if got := tracker.count("show-a"); got != 1 {
		t.Errorf("viewer count = %d, want 1 (operator connections excluded)", got)
	}

	hub.unregister <- viewer
	hub.Broadcast("show-a", models.WSMessage{Type: "timeline_update"})
	recvFrame(t, operator)

	if got := tracker.count("show-a"); got != 0 {
		t.Errorf("viewer count after leave = %d, want 0", got)
	}
}

func TestHubDropsSlowConsumer(t *testing.T) {
	hub := NewHub(testutil.SilentLogger{}, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	slow := &Client{
		hub:        hub,
		send:       make(chan []byte), // unbuffered and never read
		showcaseID: "show-a",
		log:        testutil.SilentLogger{},
	}
	healthy := newTestClient(hub, "show-a", false)
	hub.register <- slow
	hub.register <- healthy

	for i := 0; i < 3; i++ {
		hub.Broadcast("show-a", models.WSMessage{Type: "timeline_update"})
	}
	// The healthy client keeps receiving; the slow one is evicted without
	// stalling the hub.
	recvFrame(t, healthy)
}

type pollCounter struct {
	mu sync.Mutex
	n  int
}

func (p *pollCounter) Poll(context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.n++
}

func (p *pollCounter) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.n
}

func TestRunTickerPollsUntilCancelled(t *testing.T) {
	counter := &pollCounter{}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		RunTicker(ctx, counter, 5*time.Millisecond, testutil.SilentLogger{})
		close(done)
	}()

	deadline := time.After(time.Second)
	for counter.count() < 3 {
		select {
		case <-deadline:
			t.Fatal("ticker did not poll 3 times within 1s")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("ticker did not stop after cancel")
	}
}
