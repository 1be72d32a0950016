package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/storyloom/server/internal/channel"
	"github.com/storyloom/server/internal/config"
	"github.com/storyloom/server/internal/document"
	"github.com/storyloom/server/internal/editor"
	"github.com/storyloom/server/internal/protocol"
)

// main runs the headless edit driver: it logs in, dials the command
// channel, and feeds stdin edit commands through the engine. Engine and
// document are confined to the event loop goroutine; the channel handler
// only forwards inbound commands into it.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	password := os.Getenv("EDITOR_ACCESS_PASSWORD")
	if password == "" {
		log.Fatalf("EDITOR_ACCESS_PASSWORD is required")
	}

	token, err := login(cfg, password)
	if err != nil {
		log.Fatalf("Login failed: %v", err)
	}

	inbound := make(chan protocol.Command, 256)
	client, err := channel.Dial(context.Background(), cfg, token, func(cmd protocol.Command) {
		inbound <- cmd
	})
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer client.Close()

	doc := document.New()
	engine := editor.New(doc, client)

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		select {
		case cmd := <-inbound:
			if err := engine.HandleCommand(cmd); err != nil {
				log.Printf("[Edit] Command %s failed: %v", cmd.Type, err)
			}
			engine.Settle()

		case line, ok := <-lines:
			if !ok {
				engine.Apply(editor.LoseFocus{Left: true})
				engine.Settle()
				return
			}
			if err := runLine(engine, client, line); err != nil {
				log.Printf("[Edit] %v", err)
			}
			engine.Settle()

		case <-client.Done():
			log.Printf("[Edit] Connection closed")
			return
		}
	}
}

// login posts the access password and returns a session token.
func login(cfg *config.Config, password string) (string, error) {
	loginURL := strings.Replace(cfg.Editor.ServerURL, "ws://", "http://", 1)
	loginURL = strings.Replace(loginURL, "wss://", "https://", 1)
	loginURL = strings.TrimSuffix(loginURL, "/ws") + "/api/login"

	body, err := json.Marshal(map[string]string{"password": password})
	if err != nil {
		return "", err
	}

	resp, err := http.Post(loginURL, "application/json", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to reach %s: %w", loginURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("login rejected with status %d", resp.StatusCode)
	}

	var result struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode login response: %w", err)
	}
	return result.Token, nil
}

// runLine parses one stdin line into an edit intent.
//
//	type <text>     insert text at the caret
//	enter           insert a line break
//	paste <text>    paste text (\n escapes become line breaks)
//	backspace       delete backward
//	caret <n> <off> place the caret in chunk n at rune offset
//	select <n> <a> <m> <b>  select from chunk n offset a to chunk m offset b
//	blur            flush without leaving the editor
//	leave           flush and clean up empty chunks
//	key <chord>     send a key chord (ctrl+b, escape, ...)
//	generate        ask the server for a story continuation
func runLine(engine *editor.Engine, client *channel.Client, line string) error {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return nil
	}
	verb, rest, _ := strings.Cut(trimmed, " ")
	switch verb {
	case "type":
		return engine.Apply(editor.TypeText{Text: rest})
	case "enter":
		return engine.Apply(editor.LineBreak{})
	case "paste":
		return engine.Apply(editor.PasteText{Text: strings.ReplaceAll(rest, `\n`, "\n")})
	case "backspace":
		return engine.Apply(editor.DeleteText{})
	case "caret":
		fields := strings.Fields(rest)
		if len(fields) != 2 {
			return fmt.Errorf("usage: caret <chunk> <offset>")
		}
		chunk, err := strconv.Atoi(fields[0])
		if err != nil {
			return fmt.Errorf("invalid chunk: %q", fields[0])
		}
		offset, err := strconv.Atoi(fields[1])
		if err != nil {
			return fmt.Errorf("invalid offset: %q", fields[1])
		}
		pos := document.Position{Chunk: document.ChunkID(chunk), Offset: offset}
		return engine.Apply(editor.MoveSelection{Selection: document.Caret(pos)})
	case "select":
		fields := strings.Fields(rest)
		if len(fields) != 4 {
			return fmt.Errorf("usage: select <chunk> <offset> <chunk> <offset>")
		}
		nums := make([]int, 4)
		for i, f := range fields {
			n, err := strconv.Atoi(f)
			if err != nil {
				return fmt.Errorf("invalid number: %q", f)
			}
			nums[i] = n
		}
		sel := document.Selection{
			Anchor: document.Position{Chunk: document.ChunkID(nums[0]), Offset: nums[1]},
			Focus:  document.Position{Chunk: document.ChunkID(nums[2]), Offset: nums[3]},
		}
		return engine.Apply(editor.MoveSelection{Selection: sel})
	case "blur":
		return engine.Apply(editor.LoseFocus{})
	case "leave":
		return engine.Apply(editor.LoseFocus{Left: true})
	case "key":
		return engine.Apply(editor.PressKey{Chord: rest})
	case "generate":
		return client.Send(protocol.Command{Type: protocol.CmdGenerate})
	default:
		return fmt.Errorf("unknown command %q", verb)
	}
}
