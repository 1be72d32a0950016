package editor

import "github.com/storyloom/server/internal/document"

// Flush scheduling. All flush work is deferred through the settle queue so
// that every mutation in the current intent batch is delivered before the
// engine reacts to it; rapid triggers coalesce because the dirty and empty
// sets are idempotent membership structures.

// afterSettle queues a continuation to run once the current edit-intent
// batch has settled.
func (e *Engine) afterSettle(fn func()) {
	e.settle = append(e.settle, fn)
}

// Settle drains the deferred continuations, including any queued while
// draining. The engine's driver calls it after delivering each batch of
// intents or inbound commands; mutation delivery therefore always precedes
// reconciliation.
func (e *Engine) Settle() {
	for len(e.settle) > 0 {
		queued := e.settle
		e.settle = nil
		for _, fn := range queued {
			fn()
		}
	}
}

// SetSelection moves the caret or selection. Dirty chunks that fall outside
// the new selection flush; the editing indicator is then recomputed to cover
// exactly the chunks the selection intersects.
func (e *Engine) SetSelection(sel document.Selection) {
	e.doc.SetSelection(sel)
	e.doc.SetFocused(true)
	e.afterSettle(func() {
		e.flushOutsideSelection()
		e.refreshEditingIndicators()
	})
}

// Blur handles focus leaving the editor surface. All dirty chunks flush
// unconditionally, selection being moot once unfocused. When focus truly
// left the editor (rather than moving within it), emptied chunks are
// deleted, except the prompt chunk, which is restored instead, and the
// editing indicators are cleared.
func (e *Engine) Blur(left bool) {
	e.doc.SetFocused(false)
	e.afterSettle(func() {
		if left && e.promptNeedsRestore() {
			// Restoration wins over a pending flush of the prompt chunk.
			e.restorePrompt()
		}
		e.flushAll()
		if left {
			e.deleteEmptyChunks()
		}
		e.clearEditingIndicators()
	})
}

func (e *Engine) flushOutsideSelection() {
	for _, id := range sortedIDs(e.dirty) {
		if e.doc.SelectionContains(id) {
			continue
		}
		e.flushChunk(id)
	}
}

func (e *Engine) flushAll() {
	for _, id := range sortedIDs(e.dirty) {
		e.flushChunk(id)
	}
}

// deleteEmptyChunks removes every chunk in the empty set from the document
// and notifies the server. The prompt chunk is exempt; entries the server
// already removed are discarded silently.
func (e *Engine) deleteEmptyChunks() {
	for _, id := range sortedIDs(e.empty) {
		if id == document.PromptChunk {
			continue
		}
		delete(e.empty, id)
		delete(e.dirty, id)
		if !e.doc.Has(id) {
			continue
		}
		e.doc.WithSuspended(func() {
			_ = e.doc.RemoveChunk(id)
		})
		e.sendDeleteChunk(id)
	}
}

// refreshEditingIndicators applies the editing indicator to exactly the
// chunks intersecting the current selection.
func (e *Engine) refreshEditingIndicators() {
	selected := make(map[document.ChunkID]struct{})
	for _, id := range e.doc.SelectedChunks() {
		selected[id] = struct{}{}
		e.doc.SetEditing(id, true)
	}
	for _, id := range e.doc.EditingChunks() {
		if _, ok := selected[id]; !ok {
			e.doc.SetEditing(id, false)
		}
	}
}

func (e *Engine) clearEditingIndicators() {
	for _, id := range e.doc.EditingChunks() {
		e.doc.SetEditing(id, false)
	}
}
