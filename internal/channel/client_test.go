package channel

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/storyloom/server/internal/config"
	"github.com/storyloom/server/internal/protocol"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// echoServer upgrades connections and echoes every command back.
func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		defer conn.Close()
		for {
			mt, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(mt, raw); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testClientConfig(srv *httptest.Server) *config.Config {
	return &config.Config{
		Editor: config.EditorConfig{
			ServerURL:    "ws" + strings.TrimPrefix(srv.URL, "http"),
			PingInterval: time.Second,
			WriteTimeout: time.Second,
		},
	}
}

func TestDialSendAndReceive(t *testing.T) {
	srv := echoServer(t)
	received := make(chan protocol.Command, 16)

	client, err := Dial(context.Background(), testClientConfig(srv), "token", func(cmd protocol.Command) {
		received <- cmd
	})
	if err != nil {
		t.Fatalf("dialing: %v", err)
	}
	defer client.Close()

	if !client.Connected() {
		t.Fatalf("client should report connected after dial")
	}

	cmd, err := protocol.NewCommand(protocol.CmdEditChunk, protocol.EditChunk{Chunk: 2, Data: "hello"})
	if err != nil {
		t.Fatalf("building command: %v", err)
	}
	if err := client.Send(cmd); err != nil {
		t.Fatalf("sending: %v", err)
	}

	select {
	case echoed := <-received:
		payload, err := protocol.DecodeEditChunk(echoed)
		if err != nil {
			t.Fatalf("decoding echo: %v", err)
		}
		if payload.Chunk != 2 || payload.Data != "hello" {
			t.Fatalf("echo payload %+v", payload)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for echo")
	}
}

func TestSendAfterCloseFails(t *testing.T) {
	srv := echoServer(t)

	client, err := Dial(context.Background(), testClientConfig(srv), "token", nil)
	if err != nil {
		t.Fatalf("dialing: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("closing: %v", err)
	}
	if client.Connected() {
		t.Fatalf("client should report disconnected after close")
	}

	cmd, err := protocol.NewCommand(protocol.CmdPing, struct{}{})
	if err != nil {
		t.Fatalf("building command: %v", err)
	}
	if err := client.Send(cmd); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestDoneClosesWhenServerDrops(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.Close()
	}))
	t.Cleanup(srv.Close)

	client, err := Dial(context.Background(), testClientConfig(srv), "token", nil)
	if err != nil {
		t.Fatalf("dialing: %v", err)
	}
	defer client.Close()

	select {
	case <-client.Done():
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for shutdown")
	}
	if client.Connected() {
		t.Fatalf("client should report disconnected after the server drops")
	}
}

func TestDialFailsAgainstPlainHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no websocket here", http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	if _, err := Dial(context.Background(), testClientConfig(srv), "token", nil); err == nil {
		t.Fatalf("expected dial failure")
	}
}
