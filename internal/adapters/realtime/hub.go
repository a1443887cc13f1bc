// Package realtime pushes JSON notifications to connected browser sessions
// over WebSockets.
package realtime

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// SendBuffer is the number of queued messages per connection. Messages for a
// connection whose buffer is full are dropped.
const SendBuffer = 32

// Client is one WebSocket connection of a profile.
type Client struct {
	ProfileID string
	Send      chan []byte

	hub    *Hub
	mu     sync.Mutex
	closed bool
}

// NewClient creates an unregistered client with a buffered send queue.
func NewClient(profileID string) *Client {
	return &Client{ProfileID: profileID, Send: make(chan []byte, SendBuffer)}
}

// Close unregisters the client and closes its queue. Safe to call twice.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	hub := c.hub
	c.mu.Unlock()

	if hub != nil {
		hub.unregister(c)
	}
	c.mu.Lock()
	close(c.Send)
	c.mu.Unlock()
}

// offer queues data without blocking.
func (c *Client) offer(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

// Hub tracks live clients per profile. One profile may hold several
// connections (tabs, devices).
type Hub struct {
	mu        sync.RWMutex
	byProfile map[string]map[*Client]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{byProfile: make(map[string]map[*Client]struct{})}
}

// Register adds c to the hub.
// PRE: c was created with NewClient and is not closed
// POST: Publish to c.ProfileID reaches c until c.Close
func (h *Hub) Register(c *Client) {
	c.mu.Lock()
	c.hub = h
	c.mu.Unlock()

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.byProfile[c.ProfileID] == nil {
		h.byProfile[c.ProfileID] = make(map[*Client]struct{})
	}
	h.byProfile[c.ProfileID][c] = struct{}{}
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if m := h.byProfile[c.ProfileID]; m != nil {
		delete(m, c)
		if len(m) == 0 {
			delete(h.byProfile, c.ProfileID)
		}
	}
}

// Publish sends payload as JSON to every connection of profileID.
// POST: Returns how many connections accepted the message
func (h *Hub) Publish(profileID string, payload any) int {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("realtime_event", "event", "marshal_failed", "profile_id", profileID, "error", err)
		return 0
	}

	h.mu.RLock()
	clients := make([]*Client, 0, len(h.byProfile[profileID]))
	for c := range h.byProfile[profileID] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, c := range clients {
		if c.offer(data) {
			delivered++
		} else {
			slog.Warn("realtime_event", "event", "message_dropped", "profile_id", profileID)
		}
	}
	return delivered
}

// ClientCount returns the number of live connections.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, m := range h.byProfile {
		n += len(m)
	}
	return n
}

// CloseAll disconnects every client.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	var clients []*Client
	for _, m := range h.byProfile {
		for c := range m {
			clients = append(clients, c)
		}
	}
	h.mu.RUnlock()
	for _, c := range clients {
		c.Close()
	}
}
