package server

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/darthnorse/dockmon-sub004/pkg/cache"
	"github.com/darthnorse/dockmon-sub004/pkg/config"
)

// client is one dashboard WebSocket connection and the scope it asked for.
type client struct {
	conn  *websocket.Conn
	scope cache.Scope
}

// Hub fans cache change events out to dashboard WebSocket clients. Each
// client registers with a scope; events for host A are never written to a
// client scoped to host B, preserving the cache's render-scoping end to
// end.
type Hub struct {
	clients    map[*client]bool
	register   chan *client
	unregister chan *client
	events     chan cache.Event
	mu         sync.RWMutex
}

// NewHub creates a hub. Call Run to start its loop and wire Publish into
// a fleet-wide cache subscription.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*client]bool),
		register:   make(chan *client, config.WSChannelBuffer),
		unregister: make(chan *client, config.WSChannelBuffer),
		events:     make(chan cache.Event, config.WSBroadcastBuffer),
	}
}

// Publish enqueues one cache event for delivery. Non-blocking: when the
// buffer is full the event is dropped, since a dashboard that misses one
// notification catches up on the next read anyway.
func (h *Hub) Publish(ev cache.Event) {
	select {
	case h.events <- ev:
	default:
		log.Printf("hub: event buffer full, dropping notification for %s", ev.HostID)
	}
}

// Run delivers events until ctx is cancelled, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				c.conn.Close()
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			count := len(h.clients)
			h.mu.Unlock()
			log.Printf("hub: client connected (scope %q, total %d)", c.scope.HostID, count)

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				c.conn.Close()
			}
			count := len(h.clients)
			h.mu.Unlock()
			log.Printf("hub: client disconnected (total %d)", count)

		case ev := <-h.events:
			h.deliver(ev)
		}
	}
}

// HasClients reports whether any dashboard is connected.
func (h *Hub) HasClients() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients) > 0
}

func (h *Hub) deliver(ev cache.Event) {
	message, err := json.Marshal(ev)
	if err != nil {
		log.Printf("hub: marshal event: %v", err)
		return
	}

	h.mu.RLock()
	var failed []*client
	for c := range h.clients {
		if !scopeMatches(c.scope, ev.HostID) {
			continue
		}
		c.conn.SetWriteDeadline(time.Now().Add(config.WSWriteDeadline))
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			failed = append(failed, c)
		}
	}
	h.mu.RUnlock()

	// Unregister broken connections without holding the lock.
	for _, c := range failed {
		h.unregister <- c
	}
}

func scopeMatches(s cache.Scope, hostID string) bool {
	return s.HostID == "" || s.HostID == hostID
}
