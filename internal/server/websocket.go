package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/storyloom/server/internal/auth"
	"github.com/storyloom/server/internal/config"
	"github.com/storyloom/server/internal/protocol"
)

const (
	// Default ping interval (30 seconds)
	defaultPingInterval = 30 * time.Second

	// Pong wait timeout (60 seconds)
	pongWait = 60 * time.Second

	// Write timeout (10 seconds)
	writeTimeout = 10 * time.Second
)

// WebSocketHandlers handles websocket connections from editor sessions
type WebSocketHandlers struct {
	hub        *Hub
	config     *config.Config
	jwtService *auth.JWTService
	service    *StoryService
	upgrader   websocket.Upgrader
}

// NewWebSocketHandlers creates a new websocket handlers instance
func NewWebSocketHandlers(cfg *config.Config, jwtService *auth.JWTService, hub *Hub, service *StoryService) *WebSocketHandlers {
	return &WebSocketHandlers{
		hub:        hub,
		config:     cfg,
		jwtService: jwtService,
		service:    service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// The channel is token-authenticated; origin checks add
				// nothing for headless editor clients.
				return true
			},
		},
	}
}

// HandleWebSocket handles websocket connection upgrades
func (h *WebSocketHandlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token, err := auth.ExtractToken(r)
	if err != nil {
		log.Printf("[Hub] WebSocket authentication failed: %v", err)
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	claims, err := h.jwtService.ValidateSessionToken(token)
	if err != nil {
		log.Printf("[Hub] WebSocket token validation failed: %v", err)
		http.Error(w, "Invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[Hub] WebSocket upgrade failed: %v", err)
		return
	}

	wsConn := &Connection{
		conn:      conn,
		sessionID: claims.SessionID,
		send:      make(chan []byte, 256),
		hub:       h.hub,
	}

	h.hub.register <- wsConn

	go wsConn.writePump()
	go wsConn.readPump(h)

	// Replay the canonical sequence so the new session starts in sync.
	h.sendSnapshot(wsConn)
}

func (h *WebSocketHandlers) sendSnapshot(conn *Connection) {
	commands, err := h.service.Snapshot()
	if err != nil {
		log.Printf("[Hub] Failed to build snapshot for session %s: %v", conn.sessionID, err)
		return
	}
	for _, cmd := range commands {
		bytes, err := protocol.Marshal(cmd)
		if err != nil {
			log.Printf("[Hub] Failed to marshal snapshot command: %v", err)
			return
		}
		select {
		case conn.send <- bytes:
		default:
			log.Printf("[Hub] Snapshot dropped for session %s: send queue full", conn.sessionID)
			return
		}
	}
}

// handleCommand routes inbound commands to the story service
func (h *WebSocketHandlers) handleCommand(conn *Connection, cmd protocol.Command) {
	switch cmd.Type {
	case protocol.CmdEditChunk:
		payload, err := protocol.DecodeEditChunk(cmd)
		if err != nil {
			conn.sendError(cmd.ID, err.Error(), "InvalidPayload")
			return
		}
		if err := h.service.ApplyEdit(payload.Chunk, payload.Data); err != nil {
			conn.sendError(cmd.ID, err.Error(), "EditRejected")
		}

	case protocol.CmdDeleteChunk:
		payload, err := protocol.DecodeDeleteChunk(cmd)
		if err != nil {
			conn.sendError(cmd.ID, err.Error(), "InvalidPayload")
			return
		}
		if err := h.service.ApplyDelete(payload.Data); err != nil {
			conn.sendError(cmd.ID, err.Error(), "DeleteRejected")
		}

	case protocol.CmdGenerate:
		// Generation can take a while; keep the read pump draining.
		go func() {
			if _, err := h.service.GenerateContinuation(context.Background()); err != nil {
				code := "GenerationFailed"
				if errors.Is(err, ErrNoGenerator) {
					code = "GenerationUnavailable"
				}
				conn.sendError(cmd.ID, err.Error(), code)
			}
		}()

	case protocol.CmdPing:
		pong := protocol.Command{Type: protocol.CmdPong, ID: cmd.ID}
		bytes, err := protocol.Marshal(pong)
		if err != nil {
			log.Printf("[Hub] Failed to marshal pong: %v", err)
			return
		}
		select {
		case conn.send <- bytes:
		default:
		}

	default:
		conn.sendError(cmd.ID, "unknown command type: "+cmd.Type, "UnknownCommand")
	}
}

// readPump handles incoming messages from the websocket connection
func (c *Connection) readPump(handlers *WebSocketHandlers) {
	defer func() {
		c.hub.unregister <- c
		if err := c.conn.Close(); err != nil {
			log.Printf("[Hub] Failed to close connection: %v", err)
		}
	}()

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		log.Printf("[Hub] Failed to set read deadline: %v", err)
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, messageBytes, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[Hub] WebSocket error: %v", err)
			}
			break
		}

		cmd, err := protocol.Unmarshal(messageBytes)
		if err != nil {
			c.sendError("", "Invalid command format", "InvalidCommandFormat")
			continue
		}

		handlers.handleCommand(c, cmd)
	}
}

// writePump handles outgoing messages to the websocket connection
func (c *Connection) writePump() {
	ticker := time.NewTicker(defaultPingInterval)
	defer func() {
		ticker.Stop()
		if err := c.conn.Close(); err != nil {
			log.Printf("[Hub] Failed to close connection: %v", err)
		}
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				log.Printf("[Hub] Failed to set write deadline: %v", err)
				return
			}
			if !ok {
				if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil &&
					err != websocket.ErrCloseSent {
					log.Printf("[Hub] Failed to write close message: %v", err)
				}
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				log.Printf("[Hub] Failed to set write deadline for ping: %v", err)
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// sendError sends an error command to the session
func (c *Connection) sendError(id, message, code string) {
	payload, err := json.Marshal(protocol.ErrorPayload{
		Error:   code,
		Message: message,
		Code:    code,
	})
	if err != nil {
		log.Printf("[Hub] Failed to marshal error payload: %v", err)
		return
	}

	bytes, err := protocol.Marshal(protocol.Command{
		Type: protocol.CmdError,
		ID:   id,
		Data: payload,
	})
	if err != nil {
		log.Printf("[Hub] Failed to marshal error command: %v", err)
		return
	}

	select {
	case c.send <- bytes:
	default:
		log.Printf("[Hub] Failed to send error command: queue full")
	}
}
