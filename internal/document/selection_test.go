package document

import "testing"

func TestSelectedChunksInDocumentOrder(t *testing.T) {
	d := seedDocument(t, "a", "b", "c")
	d.SetSelection(Selection{
		Anchor: Position{Chunk: 2, Offset: 0},
		Focus:  Position{Chunk: 0, Offset: 1},
	})

	got := d.SelectedChunks()
	if len(got) != 3 || got[0] != 0 || got[1] != 1 || got[2] != 2 {
		t.Fatalf("selected chunks %v", got)
	}
	if !d.SelectionContains(1) {
		t.Fatalf("middle chunk should be under the selection")
	}
}

func TestCaretSelectsSingleChunk(t *testing.T) {
	d := seedDocument(t, "a", "b")
	d.SetCaret(Position{Chunk: 1, Offset: 0})

	if !d.Selection().Collapsed() {
		t.Fatalf("caret should be collapsed")
	}
	if got := d.SelectedChunks(); len(got) != 1 || got[0] != 1 {
		t.Fatalf("selected chunks %v", got)
	}
	if d.SelectionContains(0) {
		t.Fatalf("caret must not cover other chunks")
	}
}

func TestSelectionStartOrdersEndpoints(t *testing.T) {
	d := seedDocument(t, "aaaa", "bbbb")

	d.SetSelection(Selection{
		Anchor: Position{Chunk: 1, Offset: 2},
		Focus:  Position{Chunk: 0, Offset: 1},
	})
	if start := d.SelectionStart(); start.Chunk != 0 || start.Offset != 1 {
		t.Fatalf("selection start %+v", start)
	}

	d.SetSelection(Selection{
		Anchor: Position{Chunk: 0, Offset: 3},
		Focus:  Position{Chunk: 0, Offset: 1},
	})
	if start := d.SelectionStart(); start.Offset != 1 {
		t.Fatalf("within-chunk start %+v", start)
	}
}

func TestSelectionToleratesRemovedChunks(t *testing.T) {
	d := seedDocument(t, "a", "b")
	d.SetSelection(Selection{
		Anchor: Position{Chunk: 0, Offset: 0},
		Focus:  Position{Chunk: 1, Offset: 1},
	})
	if err := d.RemoveChunk(1); err != nil {
		t.Fatalf("removing: %v", err)
	}

	if got := d.SelectedChunks(); len(got) != 1 || got[0] != 0 {
		t.Fatalf("selection over a removed chunk should cover the survivors: %v", got)
	}
}
