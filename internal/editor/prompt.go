package editor

import (
	"log"

	"github.com/storyloom/server/internal/document"
)

// Prompt chunk safety net: the document must always hold a non-empty prompt
// chunk. Instead of deleting an emptied prompt, the engine rescues whatever
// text remains in the document, rebuilds a canonical prompt chunk from it
// under suspended observation, and notifies the server.

// promptNeedsRestore reports whether the prompt chunk is missing or emptied
// while the editor still has content to protect.
func (e *Engine) promptNeedsRestore() bool {
	if !e.doc.Has(document.PromptChunk) {
		return len(e.doc.Chunks()) > 0 || e.savedPrompt != ""
	}
	if !e.doc.IsEmpty(document.PromptChunk) {
		return false
	}
	_, emptied := e.empty[document.PromptChunk]
	_, edited := e.dirty[document.PromptChunk]
	return emptied || edited
}

// restorePrompt rescues the first text still present in the document,
// captured before the chunk structure is rebuilt, falling back to the last
// known prompt content. It then clears the document and rebuilds chunk 0.
func (e *Engine) restorePrompt() {
	text := e.doc.FirstText()
	if text == "" {
		text = e.savedPrompt
	}
	if text == "" {
		log.Printf("[Editor] No prompt text left to restore")
		return
	}
	e.savedPrompt = text

	e.doc.WithSuspended(func() {
		e.doc.Clear()
		if err := e.doc.AppendChunk(document.PromptChunk, text); err != nil {
			log.Printf("[Editor] Failed to rebuild prompt chunk: %v", err)
		}
	})
	e.doc.SetCaret(document.Position{Chunk: document.PromptChunk, Offset: len([]rune(text))})

	delete(e.dirty, document.PromptChunk)
	delete(e.empty, document.PromptChunk)
	e.sendEditChunk(document.PromptChunk, text)
}
