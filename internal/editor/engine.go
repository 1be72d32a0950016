// Package editor keeps the editable story document and the server's
// canonical chunk sequence consistent. It consumes normalized edit intents,
// tracks dirty and emptied chunks, and flushes them over the command channel
// at selection and focus boundaries.
package editor

import (
	"errors"
	"log"
	"sort"

	"github.com/storyloom/server/internal/document"
	"github.com/storyloom/server/internal/protocol"
)

// ErrDisconnected rejects edit intents while the channel is down. Edits are
// refused rather than buffered so the local document never silently diverges
// from the server's canonical state.
var ErrDisconnected = errors.New("editor channel is not connected")

// Channel is the outbound half of the command channel. Sends are
// fire-and-forget; ordering is the channel's responsibility.
type Channel interface {
	Connected() bool
	Send(cmd protocol.Command) error
}

// Engine is the reconciliation engine. It is single-threaded: intents,
// inbound commands, and Settle must all be called from one goroutine.
type Engine struct {
	doc *document.Document
	out Channel

	dirty map[document.ChunkID]struct{}
	empty map[document.ChunkID]struct{}

	settle          []func()
	reconcileQueued bool
	savedPrompt     string
}

// New wires an engine to a document and an outbound channel. The engine
// registers itself as the document's mutation observer.
func New(doc *document.Document, out Channel) *Engine {
	e := &Engine{
		doc:   doc,
		out:   out,
		dirty: make(map[document.ChunkID]struct{}),
		empty: make(map[document.ChunkID]struct{}),
	}
	doc.Observe(e.observeMutations)
	return e
}

// Document exposes the engine's document.
func (e *Engine) Document() *document.Document { return e.doc }

// Dirty returns the chunks with local edits not yet flushed, sorted.
func (e *Engine) Dirty() []document.ChunkID { return sortedIDs(e.dirty) }

// Empty returns the chunks whose derived content is empty, sorted.
func (e *Engine) Empty() []document.ChunkID { return sortedIDs(e.empty) }

// observeMutations is the document's mutation callback. It only fires while
// observation is bound, so server-driven rewrites never land here.
func (e *Engine) observeMutations(nodes []*document.Node) {
	e.markDirtyNodes(nodes)
}

// markDirtyNodes resolves nodes to their owning chunks and registers them as
// dirty. Nodes with no chunk ancestor are ignored.
func (e *Engine) markDirtyNodes(nodes []*document.Node) {
	marked := false
	for _, n := range nodes {
		if id, ok := e.doc.OwnerChunk(n); ok {
			e.dirty[id] = struct{}{}
			marked = true
		}
	}
	if marked {
		e.queueReconcile()
	}
}

// markChunk registers a chunk as dirty ahead of the mutation that touches
// it, so a flush sees the dirty state even if the mutation is reverted.
func (e *Engine) markChunk(id document.ChunkID) {
	e.dirty[id] = struct{}{}
	e.queueReconcile()
}

func (e *Engine) queueReconcile() {
	if e.reconcileQueued {
		return
	}
	e.reconcileQueued = true
	e.afterSettle(e.reconcileDirty)
}

// reconcileDirty re-derives each dirty chunk's content once the current
// batch has settled. Non-empty chunks outside the active selection flush
// immediately; emptied chunks move to the empty set and wait for a focus
// boundary, since they may be mid-retype.
func (e *Engine) reconcileDirty() {
	e.reconcileQueued = false
	for _, id := range sortedIDs(e.dirty) {
		if !e.doc.Has(id) {
			// Removed by the server concurrently; discard.
			delete(e.dirty, id)
			delete(e.empty, id)
			continue
		}
		content, _ := e.doc.Content(id)
		if content == "" {
			e.empty[id] = struct{}{}
			continue
		}
		delete(e.empty, id)
		if e.doc.Focused() && e.doc.SelectionContains(id) {
			continue
		}
		e.flushChunk(id)
	}
}

// flushChunk derives a chunk's content fresh from the document and sends it
// to the server, clearing its dirty status. Flushing a chunk that is not
// dirty is a no-op; emptied chunks are left for the empty-deletion pass so a
// delete is never preceded by a spurious edit.
func (e *Engine) flushChunk(id document.ChunkID) {
	if _, isDirty := e.dirty[id]; !isDirty {
		return
	}
	if !e.doc.Has(id) {
		delete(e.dirty, id)
		delete(e.empty, id)
		return
	}
	content, _ := e.doc.Content(id)
	if content == "" {
		e.empty[id] = struct{}{}
		delete(e.dirty, id)
		return
	}
	delete(e.dirty, id)
	delete(e.empty, id)
	if id == document.PromptChunk {
		e.savedPrompt = content
	}
	e.sendEditChunk(id, content)
}

func (e *Engine) sendEditChunk(id document.ChunkID, content string) {
	cmd, err := protocol.NewCommand(protocol.CmdEditChunk, protocol.EditChunk{
		Chunk: int(id),
		Data:  content,
	})
	if err != nil {
		log.Printf("[Editor] Failed to encode edit-chunk %d: %v", id, err)
		return
	}
	if err := e.out.Send(cmd); err != nil {
		log.Printf("[Editor] Failed to send edit-chunk %d: %v", id, err)
	}
}

func (e *Engine) sendDeleteChunk(id document.ChunkID) {
	cmd, err := protocol.NewCommand(protocol.CmdDeleteChunk, protocol.DeleteChunk{Data: int(id)})
	if err != nil {
		log.Printf("[Editor] Failed to encode delete-chunk %d: %v", id, err)
		return
	}
	if err := e.out.Send(cmd); err != nil {
		log.Printf("[Editor] Failed to send delete-chunk %d: %v", id, err)
	}
}

// editable gates every edit intent on channel connectivity.
func (e *Engine) editable() error {
	if !e.out.Connected() {
		return ErrDisconnected
	}
	return nil
}

func sortedIDs(set map[document.ChunkID]struct{}) []document.ChunkID {
	ids := make([]document.ChunkID, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
