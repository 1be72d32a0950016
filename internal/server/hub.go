// Package server hosts the reconciliation side of the command channel: the
// connection hub, the websocket endpoint, and the story service that owns
// the canonical chunk sequence.
package server

import (
	"log"
	"sync"

	"github.com/gorilla/websocket"
)

// Connection represents an active editor session on the channel.
type Connection struct {
	conn      *websocket.Conn
	sessionID string
	send      chan []byte
	hub       *Hub
}

// Hub manages all active editor connections
type Hub struct {
	connections map[*Connection]bool
	broadcast   chan []byte
	register    chan *Connection
	unregister  chan *Connection
	mu          sync.RWMutex
}

// NewHub creates a new connection hub
func NewHub() *Hub {
	return &Hub{
		connections: make(map[*Connection]bool),
		broadcast:   make(chan []byte, 256),
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case conn := <-h.register:
			h.mu.Lock()
			h.connections[conn] = true
			h.mu.Unlock()
			log.Printf("[Hub] Connection registered: session=%s", conn.sessionID)

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.connections[conn]; ok {
				delete(h.connections, conn)
				close(conn.send)
			}
			h.mu.Unlock()
			log.Printf("[Hub] Connection unregistered: session=%s", conn.sessionID)

		case message := <-h.broadcast:
			h.mu.Lock()
			for conn := range h.connections {
				select {
				case conn.send <- message:
				default:
					close(conn.send)
					delete(h.connections, conn)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast sends a message to all connected editors
func (h *Hub) Broadcast(message []byte) {
	h.broadcast <- message
}
