package http

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/gorilla/websocket"
)

const sendBufferSize = 64

// envelope is the wire frame for every outbound event.
type envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// client is one registered connection. Writes go through the send channel so
// only the write pump touches the websocket.
type client struct {
	id   string
	send chan []byte
}

// writePump drains the send channel into the websocket until the channel is
// closed by Unregister.
func (c *client) writePump(conn *websocket.Conn) {
	for msg := range c.send {
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			// Drain remaining messages so senders never observe a stuck channel.
			for range c.send {
			}
			return
		}
	}
}

// Hub tracks live connections and named room groups, and implements the
// three addressing primitives the state machines fan out through: one
// connection, a room, or everyone.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*client
	rooms   map[string]map[string]struct{}
	joined  map[string]map[string]struct{} // connID -> rooms, for cleanup
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*client),
		rooms:   make(map[string]map[string]struct{}),
		joined:  make(map[string]map[string]struct{}),
	}
}

// Register adds a connection to the hub and returns its client record.
func (h *Hub) Register(connID string) *client {
	c := &client{id: connID, send: make(chan []byte, sendBufferSize)}
	h.mu.Lock()
	h.clients[connID] = c
	h.mu.Unlock()
	return c
}

// Unregister removes a connection from every group and closes its send
// channel, stopping the write pump.
func (h *Hub) Unregister(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[connID]
	if !ok {
		return
	}
	for room := range h.joined[connID] {
		delete(h.rooms[room], connID)
		if len(h.rooms[room]) == 0 {
			delete(h.rooms, room)
		}
	}
	delete(h.joined, connID)
	delete(h.clients, connID)
	close(c.send)
}

// Join adds a connection to a named group.
func (h *Hub) Join(room, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[connID]; !ok {
		return
	}
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[string]struct{})
	}
	h.rooms[room][connID] = struct{}{}
	if h.joined[connID] == nil {
		h.joined[connID] = make(map[string]struct{})
	}
	h.joined[connID][room] = struct{}{}
}

// DropRoom forgets a group without touching its members' other memberships.
func (h *Hub) DropRoom(room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for connID := range h.rooms[room] {
		delete(h.joined[connID], room)
	}
	delete(h.rooms, room)
}

// ToConn sends an event to one connection.
func (h *Hub) ToConn(connID, event string, payload any) {
	data, ok := marshal(event, payload)
	if !ok {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if c, ok := h.clients[connID]; ok {
		c.deliver(data)
	}
}

// ToRoom sends an event to every member of a group.
func (h *Hub) ToRoom(room, event string, payload any) {
	data, ok := marshal(event, payload)
	if !ok {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for connID := range h.rooms[room] {
		if c, ok := h.clients[connID]; ok {
			c.deliver(data)
		}
	}
}

// ToAll sends an event to every live connection.
func (h *Hub) ToAll(event string, payload any) {
	data, ok := marshal(event, payload)
	if !ok {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		c.deliver(data)
	}
}

// ConnCount reports the number of registered connections.
func (h *Hub) ConnCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// deliver is non-blocking: a slow client drops messages rather than stalling
// the event loop.
func (c *client) deliver(data []byte) {
	select {
	case c.send <- data:
	default:
		log.Printf("send buffer full, dropping message for %s", c.id)
	}
}

func marshal(event string, payload any) ([]byte, bool) {
	data, err := json.Marshal(envelope{Type: event, Payload: payload})
	if err != nil {
		log.Printf("marshal %s: %v", event, err)
		return nil, false
	}
	return data, true
}
