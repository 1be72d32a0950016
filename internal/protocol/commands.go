package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Command types exchanged over the editor channel.
//
// Client -> server: CmdEditChunk, CmdDeleteChunk, CmdGenerate.
// Server -> client: CmdReplaceOrAppendChunk, CmdRemoveChunk.
// Either direction may carry CmdError.
const (
	CmdEditChunk            = "edit-chunk"
	CmdDeleteChunk          = "delete-chunk"
	CmdGenerate             = "generate"
	CmdReplaceOrAppendChunk = "replace-or-append-chunk"
	CmdRemoveChunk          = "remove-chunk"
	CmdError                = "error"
	CmdPing                 = "ping"
	CmdPong                 = "pong"
)

// Command is the tagged envelope carried on the channel.
type Command struct {
	Type string          `json:"type" validate:"required"`
	ID   string          `json:"id,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// EditChunk notifies the server that a chunk's content was replaced or cleared.
type EditChunk struct {
	Chunk int    `json:"chunk" validate:"min=0"`
	Data  string `json:"data"`
}

// DeleteChunk notifies the server that a chunk was removed entirely.
// Chunk 0 is never deleted, so identity 0 fails validation.
type DeleteChunk struct {
	Data int `json:"data" validate:"min=1"`
}

// ReplaceOrAppendChunk instructs the editor to upsert a chunk. HTML carries
// the chunk markup produced by RenderChunkMarkup.
type ReplaceOrAppendChunk struct {
	Index int    `json:"index" validate:"min=0"`
	HTML  string `json:"html" validate:"required"`
}

// RemoveChunk instructs the editor to drop a chunk.
type RemoveChunk struct {
	Data int `json:"data" validate:"min=1"`
}

// ErrorPayload reports a failed command back to its sender.
type ErrorPayload struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

var validate = validator.New()

// NewCommand wraps a payload in a Command envelope.
func NewCommand(cmdType string, payload any) (Command, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Command{}, fmt.Errorf("failed to marshal %s payload: %w", cmdType, err)
	}
	return Command{Type: cmdType, Data: data}, nil
}

// Marshal encodes a Command for the wire.
func Marshal(cmd Command) ([]byte, error) {
	bytes, err := json.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s command: %w", cmd.Type, err)
	}
	return bytes, nil
}

// Unmarshal decodes and validates a Command envelope from the wire.
func Unmarshal(raw []byte) (Command, error) {
	var cmd Command
	if err := json.Unmarshal(raw, &cmd); err != nil {
		return Command{}, fmt.Errorf("invalid command envelope: %w", err)
	}
	if err := validate.Struct(cmd); err != nil {
		return Command{}, fmt.Errorf("invalid command envelope: %w", err)
	}
	return cmd, nil
}

// DecodeEditChunk extracts and validates an EditChunk payload.
func DecodeEditChunk(cmd Command) (EditChunk, error) {
	var payload EditChunk
	if err := decodePayload(cmd, CmdEditChunk, &payload); err != nil {
		return EditChunk{}, err
	}
	return payload, nil
}

// DecodeDeleteChunk extracts and validates a DeleteChunk payload.
func DecodeDeleteChunk(cmd Command) (DeleteChunk, error) {
	var payload DeleteChunk
	if err := decodePayload(cmd, CmdDeleteChunk, &payload); err != nil {
		return DeleteChunk{}, err
	}
	return payload, nil
}

// DecodeReplaceOrAppendChunk extracts and validates an upsert payload.
func DecodeReplaceOrAppendChunk(cmd Command) (ReplaceOrAppendChunk, error) {
	var payload ReplaceOrAppendChunk
	if err := decodePayload(cmd, CmdReplaceOrAppendChunk, &payload); err != nil {
		return ReplaceOrAppendChunk{}, err
	}
	return payload, nil
}

// DecodeRemoveChunk extracts and validates a RemoveChunk payload.
func DecodeRemoveChunk(cmd Command) (RemoveChunk, error) {
	var payload RemoveChunk
	if err := decodePayload(cmd, CmdRemoveChunk, &payload); err != nil {
		return RemoveChunk{}, err
	}
	return payload, nil
}

func decodePayload(cmd Command, wantType string, out any) error {
	if cmd.Type != wantType {
		return fmt.Errorf("expected %s command, got %s", wantType, cmd.Type)
	}
	if err := json.Unmarshal(cmd.Data, out); err != nil {
		return fmt.Errorf("invalid %s payload: %w", wantType, err)
	}
	if err := validate.Struct(out); err != nil {
		return fmt.Errorf("invalid %s payload: %w", wantType, err)
	}
	return nil
}
