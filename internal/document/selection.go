package document

// Position addresses a point inside a chunk: a rune offset into the chunk's
// full text, with breaks counted as one.
type Position struct {
	Chunk  ChunkID
	Offset int
}

// Selection is the anchor/focus pair of the current selection. A collapsed
// selection is the caret.
type Selection struct {
	Anchor Position
	Focus  Position
}

// Collapsed reports whether the selection is a bare caret.
func (s Selection) Collapsed() bool {
	return s.Anchor == s.Focus
}

// Caret returns a collapsed selection at the position.
func Caret(pos Position) Selection {
	return Selection{Anchor: pos, Focus: pos}
}

// Selection returns the current selection.
func (d *Document) Selection() Selection { return d.sel }

// SetSelection moves the selection.
func (d *Document) SetSelection(sel Selection) { d.sel = sel }

// Caret returns the focus end of the current selection.
func (d *Document) Caret() Position { return d.sel.Focus }

// SetCaret collapses the selection to a position.
func (d *Document) SetCaret(pos Position) { d.sel = Caret(pos) }

// Focused reports whether the editor surface holds focus.
func (d *Document) Focused() bool { return d.focused }

// SetFocused records focus entering or leaving the editor surface.
func (d *Document) SetFocused(focused bool) { d.focused = focused }

// SelectedChunks returns the chunks the current selection intersects, in
// document order. Selections referencing chunks the server has since removed
// contribute nothing.
func (d *Document) SelectedChunks() []ChunkID {
	return d.chunksBetween(d.sel.Anchor.Chunk, d.sel.Focus.Chunk)
}

// SelectionContains reports whether the current selection intersects the
// chunk.
func (d *Document) SelectionContains(id ChunkID) bool {
	for _, sel := range d.SelectedChunks() {
		if sel == id {
			return true
		}
	}
	return false
}

// SelectionStart returns the document-order start of the current selection.
func (d *Document) SelectionStart() Position {
	start, _ := d.orderPositions(d.sel)
	return start
}

// orderPositions returns the selection endpoints in document order.
func (d *Document) orderPositions(sel Selection) (Position, Position) {
	ai, fi := d.chunkIndex(sel.Anchor.Chunk), d.chunkIndex(sel.Focus.Chunk)
	if ai < fi {
		return sel.Anchor, sel.Focus
	}
	if fi < ai {
		return sel.Focus, sel.Anchor
	}
	if sel.Anchor.Offset <= sel.Focus.Offset {
		return sel.Anchor, sel.Focus
	}
	return sel.Focus, sel.Anchor
}

func (d *Document) chunkIndex(id ChunkID) int {
	for i, n := range d.top {
		if n.kind == ChunkNode && n.id == id {
			return i
		}
	}
	return -1
}

// chunksBetween returns the present chunks between two identities inclusive,
// in document order.
func (d *Document) chunksBetween(a, b ChunkID) []ChunkID {
	ai, bi := d.chunkIndex(a), d.chunkIndex(b)
	if ai < 0 && bi < 0 {
		return nil
	}
	if ai < 0 {
		ai = bi
	}
	if bi < 0 {
		bi = ai
	}
	if ai > bi {
		ai, bi = bi, ai
	}
	var ids []ChunkID
	for _, n := range d.top[ai : bi+1] {
		if n.kind == ChunkNode {
			ids = append(ids, n.id)
		}
	}
	return ids
}
