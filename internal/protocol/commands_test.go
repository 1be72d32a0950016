package protocol

import (
	"strings"
	"testing"
)

func TestCommandRoundTrip(t *testing.T) {
	cmd, err := NewCommand(CmdEditChunk, EditChunk{Chunk: 3, Data: "Hello\nWorld"})
	if err != nil {
		t.Fatalf("building command: %v", err)
	}
	raw, err := Marshal(cmd)
	if err != nil {
		t.Fatalf("marshaling: %v", err)
	}

	decoded, err := Unmarshal(raw)
	if err != nil {
		t.Fatalf("unmarshaling: %v", err)
	}
	if decoded.Type != CmdEditChunk {
		t.Fatalf("type %q", decoded.Type)
	}
	payload, err := DecodeEditChunk(decoded)
	if err != nil {
		t.Fatalf("decoding payload: %v", err)
	}
	if payload.Chunk != 3 || payload.Data != "Hello\nWorld" {
		t.Fatalf("payload %+v", payload)
	}
}

func TestUnmarshalRejectsMissingType(t *testing.T) {
	if _, err := Unmarshal([]byte(`{"data":{}}`)); err == nil {
		t.Fatalf("expected validation error for missing type")
	}
	if _, err := Unmarshal([]byte(`not json`)); err == nil {
		t.Fatalf("expected error for malformed JSON")
	}
}

func TestDecodeRejectsWrongCommandType(t *testing.T) {
	cmd, err := NewCommand(CmdEditChunk, EditChunk{Chunk: 1, Data: "x"})
	if err != nil {
		t.Fatalf("building command: %v", err)
	}
	if _, err := DecodeDeleteChunk(cmd); err == nil {
		t.Fatalf("expected type mismatch error")
	}
}

func TestDeleteChunkRejectsPromptIdentity(t *testing.T) {
	cmd, err := NewCommand(CmdDeleteChunk, struct {
		Data int `json:"data"`
	}{Data: 0})
	if err != nil {
		t.Fatalf("building command: %v", err)
	}
	if _, err := DecodeDeleteChunk(cmd); err == nil {
		t.Fatalf("chunk 0 must not be deletable")
	}
	if _, err := DecodeRemoveChunk(Command{Type: CmdRemoveChunk, Data: []byte(`{"data":0}`)}); err == nil {
		t.Fatalf("chunk 0 must not be removable")
	}
}

func TestDecodeReplaceOrAppendRequiresHTML(t *testing.T) {
	cmd := Command{Type: CmdReplaceOrAppendChunk, Data: []byte(`{"index":2}`)}
	if _, err := DecodeReplaceOrAppendChunk(cmd); err == nil {
		t.Fatalf("expected validation error for missing html")
	}
	if _, err := DecodeReplaceOrAppendChunk(Command{
		Type: CmdReplaceOrAppendChunk,
		Data: []byte(`{"index":2,"html":"<chunk n=\"2\">ok</chunk>"}`),
	}); err != nil {
		t.Fatalf("valid payload rejected: %v", err)
	}
}

func TestErrorPayloadCarriesCode(t *testing.T) {
	cmd, err := NewCommand(CmdError, ErrorPayload{Error: "EditRejected", Message: "bad chunk", Code: "EditRejected"})
	if err != nil {
		t.Fatalf("building command: %v", err)
	}
	raw, err := Marshal(cmd)
	if err != nil {
		t.Fatalf("marshaling: %v", err)
	}
	if !strings.Contains(string(raw), `"EditRejected"`) {
		t.Fatalf("error code missing from wire form: %s", raw)
	}
}
