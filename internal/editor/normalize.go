package editor

import (
	"fmt"
	"strings"

	"github.com/storyloom/server/internal/document"
)

// Input normalization: every raw edit becomes a canonical document mutation
// regardless of where it originated. Each handler registers the affected
// chunks as dirty before mutating, deletes any active selection first, and
// leaves the caret collapsed after the inserted content.

// InsertText types plain text at the caret. Embedded newlines are routed
// through the synthetic line-break path so the document never holds raw
// newline characters inside text runs.
func (e *Engine) InsertText(text string) error {
	if err := e.editable(); err != nil {
		return err
	}
	e.deleteActiveSelection()
	return e.insertSegments(text)
}

// InsertLineBreak cancels whatever native newline handling produced the
// intent and synthesizes an explicit break node at the caret, restoring the
// caret immediately after it.
func (e *Engine) InsertLineBreak() error {
	if err := e.editable(); err != nil {
		return err
	}
	e.deleteActiveSelection()
	return e.insertBreakAtCaret()
}

// Paste coerces pasted content to plain text: markup is never interpreted,
// carriage returns are normalized, and embedded line breaks become the same
// synthetic break representation used everywhere else. The caret collapses
// to the end of the inserted content.
func (e *Engine) Paste(text string) error {
	if err := e.editable(); err != nil {
		return err
	}
	e.deleteActiveSelection()
	return e.insertSegments(normalizePastedText(text))
}

// DeleteSelection removes the currently selected text. Chunk nodes under the
// selection survive, possibly emptied; emptied chunks are picked up by the
// empty-deletion pass at the next focus boundary.
func (e *Engine) DeleteSelection() error {
	if err := e.editable(); err != nil {
		return err
	}
	e.deleteActiveSelection()
	return nil
}

// DeleteBackward removes the rune before the caret. At a chunk start it is a
// no-op; chunk joins only ever come from the server.
func (e *Engine) DeleteBackward() error {
	if err := e.editable(); err != nil {
		return err
	}
	sel := e.doc.Selection()
	if !sel.Collapsed() {
		e.deleteActiveSelection()
		return nil
	}
	caret := sel.Focus
	if caret.Offset == 0 {
		return nil
	}
	e.markChunk(caret.Chunk)
	if err := e.doc.DeleteRange(document.Selection{
		Anchor: document.Position{Chunk: caret.Chunk, Offset: caret.Offset - 1},
		Focus:  caret,
	}); err != nil {
		return err
	}
	e.doc.SetCaret(document.Position{Chunk: caret.Chunk, Offset: caret.Offset - 1})
	return nil
}

// HandleKey intercepts editing chords. Formatting shortcuts are swallowed,
// Escape commits pending edits and defocuses, everything else passes
// through. The boolean reports whether the chord was consumed.
func (e *Engine) HandleKey(chord string) (bool, error) {
	switch strings.ToLower(chord) {
	case "ctrl+b", "ctrl+i", "ctrl+u":
		return true, nil
	case "escape":
		e.Blur(true)
		return true, nil
	}
	return false, nil
}

// deleteActiveSelection collapses a non-empty selection by deleting its
// content, marking every intersected chunk dirty first.
func (e *Engine) deleteActiveSelection() {
	sel := e.doc.Selection()
	if sel.Collapsed() {
		return
	}
	for _, id := range e.doc.SelectedChunks() {
		e.markChunk(id)
	}
	start := e.doc.SelectionStart()
	if err := e.doc.DeleteRange(sel); err != nil {
		return
	}
	e.doc.SetCaret(start)
}

// insertSegments inserts text at the caret, alternating text runs and
// synthetic breaks for each embedded newline.
func (e *Engine) insertSegments(text string) error {
	for i, seg := range strings.Split(text, "\n") {
		if i > 0 {
			if err := e.insertBreakAtCaret(); err != nil {
				return err
			}
		}
		if seg == "" {
			continue
		}
		caret := e.doc.Caret()
		e.markChunk(caret.Chunk)
		pos, err := e.doc.InsertText(caret, seg)
		if err != nil {
			return fmt.Errorf("text insertion failed: %w", err)
		}
		e.doc.SetCaret(pos)
	}
	return nil
}

// insertBreakAtCaret synthesizes a break node and runs the compensation
// pass: breaks that land outside the caret's chunk (quirky insertion
// primitives) are re-parented into it before the caret is restored.
func (e *Engine) insertBreakAtCaret() error {
	caret := e.doc.Caret()
	e.markChunk(caret.Chunk)
	br, err := e.doc.InsertBreak(caret)
	if err != nil {
		return fmt.Errorf("line break insertion failed: %w", err)
	}
	if owner, ok := e.doc.OwnerChunk(br); !ok || owner != caret.Chunk {
		if _, err := e.doc.ReparentBreak(br, caret); err != nil {
			return fmt.Errorf("line break compensation failed: %w", err)
		}
	}
	e.doc.SetCaret(document.Position{Chunk: caret.Chunk, Offset: caret.Offset + 1})
	return nil
}

// normalizePastedText flattens platform line endings to the single newline
// representation the break synthesis understands.
func normalizePastedText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n")
}
