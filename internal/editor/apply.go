package editor

import (
	"fmt"
	"log"

	"github.com/storyloom/server/internal/document"
	"github.com/storyloom/server/internal/protocol"
)

// HandleCommand applies one server-originated command to the document. All
// structural changes run under suspended observation so they are never
// mistaken for user edits. Structural inconsistencies (the server naming a
// chunk this editor no longer has, or vice versa) resolve as best-effort
// no-ops, never as failures surfaced to the user.
func (e *Engine) HandleCommand(cmd protocol.Command) error {
	switch cmd.Type {
	case protocol.CmdReplaceOrAppendChunk:
		payload, err := protocol.DecodeReplaceOrAppendChunk(cmd)
		if err != nil {
			return err
		}
		return e.applyReplaceOrAppend(payload)
	case protocol.CmdRemoveChunk:
		payload, err := protocol.DecodeRemoveChunk(cmd)
		if err != nil {
			return err
		}
		e.applyRemove(document.ChunkID(payload.Data))
		return nil
	case protocol.CmdPong:
		return nil
	case protocol.CmdError:
		log.Printf("[Editor] Server reported error: %s", cmd.Data)
		return nil
	default:
		log.Printf("[Editor] Ignoring unknown command %q", cmd.Type)
		return nil
	}
}

// applyReplaceOrAppend upserts a chunk: replace in place when present,
// append at the end when unknown. An identity known to be intentionally
// empty means the update is stale, and it is dropped.
func (e *Engine) applyReplaceOrAppend(payload protocol.ReplaceOrAppendChunk) error {
	id, content, err := protocol.ParseChunkMarkup(payload.HTML)
	if err != nil {
		return fmt.Errorf("bad chunk markup for index %d: %w", payload.Index, err)
	}
	if id != payload.Index {
		return fmt.Errorf("chunk markup identity %d does not match index %d", id, payload.Index)
	}
	chunk := document.ChunkID(id)

	if chunk == document.PromptChunk && content != "" {
		e.savedPrompt = content
	}

	if e.doc.Has(chunk) {
		e.doc.WithSuspended(func() {
			_ = e.doc.ReplaceChunk(chunk, content)
		})
		return nil
	}
	if _, intentionallyEmpty := e.empty[chunk]; intentionallyEmpty {
		log.Printf("[Editor] Dropping upsert for chunk %d pending local deletion", chunk)
		return nil
	}
	e.doc.WithSuspended(func() {
		_ = e.doc.AppendChunk(chunk, content)
	})
	return nil
}

// applyRemove drops a chunk the server deleted, discarding any local
// bookkeeping for it.
func (e *Engine) applyRemove(id document.ChunkID) {
	delete(e.dirty, id)
	delete(e.empty, id)
	if !e.doc.Has(id) {
		return
	}
	e.doc.WithSuspended(func() {
		_ = e.doc.RemoveChunk(id)
	})
}
