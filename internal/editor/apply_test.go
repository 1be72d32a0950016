package editor

import (
	"testing"

	"github.com/storyloom/server/internal/document"
	"github.com/storyloom/server/internal/protocol"
)

func upsert(t *testing.T, id int, content string) protocol.Command {
	t.Helper()
	cmd, err := protocol.NewCommand(protocol.CmdReplaceOrAppendChunk, protocol.ReplaceOrAppendChunk{
		Index: id,
		HTML:  protocol.RenderChunkMarkup(id, content),
	})
	if err != nil {
		t.Fatalf("building upsert: %v", err)
	}
	return cmd
}

func remove(t *testing.T, id int) protocol.Command {
	t.Helper()
	cmd, err := protocol.NewCommand(protocol.CmdRemoveChunk, protocol.RemoveChunk{Data: id})
	if err != nil {
		t.Fatalf("building remove: %v", err)
	}
	return cmd
}

func TestReplaceOrAppendAppendsUnknownChunk(t *testing.T) {
	engine, ch := newTestEngine(t, "Once")
	doc := engine.Document()

	if err := engine.HandleCommand(upsert(t, 1, "and then\nmore")); err != nil {
		t.Fatalf("handling upsert: %v", err)
	}
	engine.Settle()

	if content, _ := doc.Content(1); content != "and then\nmore" {
		t.Fatalf("unexpected appended content: %q", content)
	}
	if content, _ := doc.Content(0); content != "Once" {
		t.Fatalf("existing chunk disturbed by append: %q", content)
	}
	if !doc.IsLast(1) {
		t.Fatalf("appended chunk should be last")
	}
	if len(engine.Dirty()) != 0 || len(ch.sent) != 0 {
		t.Fatalf("server-driven append must not loop back as a user edit")
	}
}

func TestReplaceOrAppendReplacesInPlace(t *testing.T) {
	engine, ch := newTestEngine(t, "Once", "upon")
	doc := engine.Document()

	if err := engine.HandleCommand(upsert(t, 0, "Twice")); err != nil {
		t.Fatalf("handling upsert: %v", err)
	}
	engine.Settle()

	if content, _ := doc.Content(0); content != "Twice" {
		t.Fatalf("unexpected replaced content: %q", content)
	}
	if got := doc.Chunks(); len(got) != 2 || got[0] != 0 || got[1] != 1 {
		t.Fatalf("replace must not reorder chunks: %v", got)
	}
	if len(ch.sent) != 0 {
		t.Fatalf("server-driven replace must not flush: %v", ch.sent)
	}
}

func TestReplaceOrAppendRejectsMismatchedIdentity(t *testing.T) {
	engine, _ := newTestEngine(t, "Once")

	cmd, err := protocol.NewCommand(protocol.CmdReplaceOrAppendChunk, protocol.ReplaceOrAppendChunk{
		Index: 2,
		HTML:  protocol.RenderChunkMarkup(1, "mismatch"),
	})
	if err != nil {
		t.Fatalf("building command: %v", err)
	}
	if err := engine.HandleCommand(cmd); err == nil {
		t.Fatalf("expected identity mismatch error")
	}
}

func TestStaleUpsertForEmptiedChunkIsDropped(t *testing.T) {
	engine, _ := newTestEngine(t, "Once upon", "a time")
	doc := engine.Document()

	// Empty chunk 1 locally; it now waits for deletion at the next blur.
	engine.Apply(MoveSelection{Selection: document.Selection{
		Anchor: document.Position{Chunk: 1, Offset: 0},
		Focus:  document.Position{Chunk: 1, Offset: 7},
	}})
	engine.Settle()
	if err := engine.Apply(DeleteText{}); err != nil {
		t.Fatalf("deleting: %v", err)
	}
	engine.Settle()
	doc.WithSuspended(func() {
		if err := doc.RemoveChunk(1); err != nil {
			t.Fatalf("removing chunk: %v", err)
		}
	})

	if err := engine.HandleCommand(upsert(t, 1, "a time")); err != nil {
		t.Fatalf("handling stale upsert: %v", err)
	}
	if doc.Has(1) {
		t.Fatalf("stale upsert for a pending deletion must be dropped")
	}
}

func TestRemoveChunkDiscardsLocalBookkeeping(t *testing.T) {
	engine, ch := newTestEngine(t, "Once", "upon", "a time")
	doc := engine.Document()
	doc.SetCaret(document.Position{Chunk: 1, Offset: 4})

	if err := engine.Apply(TypeText{Text: "!"}); err != nil {
		t.Fatalf("typing: %v", err)
	}
	if err := engine.HandleCommand(remove(t, 1)); err != nil {
		t.Fatalf("handling remove: %v", err)
	}
	engine.Settle()

	if doc.Has(1) {
		t.Fatalf("removed chunk still present")
	}
	if len(engine.Dirty()) != 0 {
		t.Fatalf("bookkeeping for a removed chunk should be discarded: %v", engine.Dirty())
	}
	if len(ch.sent) != 0 {
		t.Fatalf("removing a dirty chunk must not flush it: %v", ch.sent)
	}
	if content, _ := doc.Content(2); content != "a time" {
		t.Fatalf("surviving chunk disturbed: %q", content)
	}
}

func TestRemoveUnknownChunkIsHarmless(t *testing.T) {
	engine, _ := newTestEngine(t, "Once")
	if err := engine.HandleCommand(remove(t, 7)); err != nil {
		t.Fatalf("removing unknown chunk should be a no-op: %v", err)
	}
}

func TestUnknownCommandIsIgnored(t *testing.T) {
	engine, _ := newTestEngine(t, "Once")
	if err := engine.HandleCommand(protocol.Command{Type: "mystery"}); err != nil {
		t.Fatalf("unknown commands must not fail the engine: %v", err)
	}
}
