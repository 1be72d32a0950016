package editor

import (
	"fmt"

	"github.com/storyloom/server/internal/document"
)

// Intent is one normalized edit event. Drivers translate whatever capture
// layer they sit on into intents and feed them to Apply on the engine's
// goroutine, which isolates capture quirks from the reconciliation logic.
type Intent interface {
	intent()
}

// TypeText inserts text at the caret.
type TypeText struct{ Text string }

// LineBreak inserts a synthetic line break at the caret.
type LineBreak struct{}

// PasteText pastes content at the caret or over the selection.
type PasteText struct{ Text string }

// DeleteText removes the active selection, or the rune before the caret
// when the selection is collapsed.
type DeleteText struct{}

// MoveSelection moves the caret or selection.
type MoveSelection struct{ Selection document.Selection }

// LoseFocus reports the editor blurring; Left is true when focus moved
// outside the editor entirely.
type LoseFocus struct{ Left bool }

// PressKey reports an editing chord such as "ctrl+b" or "escape".
type PressKey struct{ Chord string }

func (TypeText) intent()      {}
func (LineBreak) intent()     {}
func (PasteText) intent()     {}
func (DeleteText) intent()    {}
func (MoveSelection) intent() {}
func (LoseFocus) intent()     {}
func (PressKey) intent()      {}

// Apply dispatches a single intent.
func (e *Engine) Apply(intent Intent) error {
	switch in := intent.(type) {
	case TypeText:
		return e.InsertText(in.Text)
	case LineBreak:
		return e.InsertLineBreak()
	case PasteText:
		return e.Paste(in.Text)
	case DeleteText:
		return e.DeleteBackward()
	case MoveSelection:
		e.SetSelection(in.Selection)
		return nil
	case LoseFocus:
		e.Blur(in.Left)
		return nil
	case PressKey:
		_, err := e.HandleKey(in.Chord)
		return err
	default:
		return fmt.Errorf("unknown intent %T", intent)
	}
}
