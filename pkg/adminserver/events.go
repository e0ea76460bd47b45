package adminserver

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mnohosten/pagecache/pkg/pagestore"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Event is broadcast to every connected websocket client whenever the
// buffer pool notices a fetch miss, an eviction, or a flush, plus a
// periodic heartbeat. EventHub, not Event, implements
// buffer.EventListener.
type Event struct {
	Type      string          `json:"type"` // "fetch_miss", "evict", "flush", "heartbeat"
	PageID    pagestore.PageID `json:"page_id,omitempty"`
	WasDirty  bool            `json:"was_dirty,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// EventHub fans out buffer pool events to every connected websocket
// client. Each connection gets its own buffered outbound queue so one
// slow reader cannot block the others; a connection whose queue fills
// up is dropped rather than allowed to backpressure the pool.
type EventHub struct {
	mu      sync.Mutex
	clients map[string]chan Event
}

// NewEventHub creates an empty hub.
func NewEventHub() *EventHub {
	return &EventHub{clients: make(map[string]chan Event)}
}

func (h *EventHub) broadcast(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.clients {
		select {
		case ch <- ev:
		default:
			delete(h.clients, id)
			close(ch)
		}
	}
}

// OnFetchMiss implements buffer.EventListener.
func (h *EventHub) OnFetchMiss(pageID pagestore.PageID) {
	h.broadcast(Event{Type: "fetch_miss", PageID: pageID, Timestamp: time.Now()})
}

// OnEvict implements buffer.EventListener.
func (h *EventHub) OnEvict(pageID pagestore.PageID, wasDirty bool) {
	h.broadcast(Event{Type: "evict", PageID: pageID, WasDirty: wasDirty, Timestamp: time.Now()})
}

// OnFlush implements buffer.EventListener.
func (h *EventHub) OnFlush(pageID pagestore.PageID) {
	h.broadcast(Event{Type: "flush", PageID: pageID, Timestamp: time.Now()})
}

// ServeWS upgrades the request to a websocket connection and streams
// events to it until the client disconnects.
func (h *EventHub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	id := fmt.Sprintf("ws-%d", time.Now().UnixNano())
	ch := make(chan Event, 64)

	h.mu.Lock()
	h.clients[id] = ch
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, id)
		h.mu.Unlock()
	}()

	// A reader goroutine is required so gorilla/websocket processes
	// control frames (ping/close) even though this connection is
	// write-only from the server's side.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				conn.Close()
				return
			}
		}
	}()

	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-heartbeat.C:
			if err := conn.WriteJSON(Event{Type: "heartbeat", Timestamp: time.Now()}); err != nil {
				return
			}
		}
	}
}
