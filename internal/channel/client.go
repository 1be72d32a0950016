// Package channel maintains the editor side of the websocket command
// channel: a dialed connection with read/write pumps, a connected flag the
// engine gates edits on, and delivery of inbound commands to a handler.
package channel

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/storyloom/server/internal/config"
	"github.com/storyloom/server/internal/protocol"
)

const (
	// Pong wait timeout is double the ping interval so one lost pong
	// does not drop the connection.
	pongWaitFactor = 2

	sendQueueSize = 256
)

// ErrClosed is returned by Send after the channel has shut down.
var ErrClosed = errors.New("channel is closed")

// Handler receives commands arriving from the server. It is invoked from
// the read pump goroutine, one command at a time.
type Handler func(cmd protocol.Command)

// Client is a websocket command channel to the reconciliation server. It
// satisfies the engine's Channel interface.
type Client struct {
	conn    *websocket.Conn
	send    chan []byte
	handler Handler

	pingInterval time.Duration
	writeTimeout time.Duration

	mu        sync.RWMutex
	connected bool

	closeOnce sync.Once
	done      chan struct{}
}

// Dial connects to the server's websocket endpoint, authenticating with the
// session token, and starts the connection pumps. The handler receives every
// inbound command until the connection drops.
func Dial(ctx context.Context, cfg *config.Config, token string, handler Handler) (*Client, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, cfg.Editor.ServerURL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to dial %s (status %d): %w", cfg.Editor.ServerURL, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("failed to dial %s: %w", cfg.Editor.ServerURL, err)
	}

	c := &Client{
		conn:         conn,
		send:         make(chan []byte, sendQueueSize),
		handler:      handler,
		pingInterval: cfg.Editor.PingInterval,
		writeTimeout: cfg.Editor.WriteTimeout,
		connected:    true,
		done:         make(chan struct{}),
	}

	go c.writePump()
	go c.readPump()

	return c, nil
}

// Connected reports whether the channel is usable for sending commands.
func (c *Client) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// Send queues a command for delivery to the server.
func (c *Client) Send(cmd protocol.Command) error {
	bytes, err := protocol.Marshal(cmd)
	if err != nil {
		return err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.connected {
		return ErrClosed
	}

	select {
	case c.send <- bytes:
		return nil
	default:
		return fmt.Errorf("send queue full for %s command", cmd.Type)
	}
}

// Close shuts the channel down. Safe to call more than once.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.connected = false
		c.mu.Unlock()
		close(c.done)
		if err := c.conn.Close(); err != nil {
			log.Printf("[Channel] Failed to close connection: %v", err)
		}
	})
	return nil
}

// Done is closed once the connection has shut down.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) readPump() {
	defer func() {
		if err := c.Close(); err != nil {
			log.Printf("[Channel] Failed to close after read pump exit: %v", err)
		}
	}()

	pongWait := c.pingInterval * pongWaitFactor
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		log.Printf("[Channel] Failed to set read deadline: %v", err)
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, messageBytes, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[Channel] Read error: %v", err)
			}
			return
		}

		cmd, err := protocol.Unmarshal(messageBytes)
		if err != nil {
			log.Printf("[Channel] Dropping malformed command: %v", err)
			continue
		}

		if c.handler != nil {
			c.handler(cmd)
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.pingInterval)
	defer func() {
		ticker.Stop()
		if err := c.Close(); err != nil {
			log.Printf("[Channel] Failed to close after write pump exit: %v", err)
		}
	}()

	for {
		select {
		case message := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
				log.Printf("[Channel] Failed to set write deadline: %v", err)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("[Channel] Write error: %v", err)
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
				log.Printf("[Channel] Failed to set write deadline for ping: %v", err)
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")); err != nil &&
				!errors.Is(err, websocket.ErrCloseSent) {
				log.Printf("[Channel] Failed to write close message: %v", err)
			}
			return
		}
	}
}
