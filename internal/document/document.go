// Package document models the editable story surface: an ordered sequence of
// chunk nodes holding text runs and synthetic line breaks, an identity-keyed
// lookup from chunk id to node, and a mutation observer that reports
// user-originated structural changes while it is bound.
package document

import (
	"fmt"
	"strings"
)

// ChunkID is the server-assigned identity of one story chunk. Identity 0 is
// the prompt chunk and exists for as long as the story has content.
type ChunkID int

// PromptChunk is the reserved identity of the story's opening chunk. It is
// never deleted; emptying it triggers restoration instead.
const PromptChunk ChunkID = 0

// NodeKind discriminates the node types in the document tree.
type NodeKind int

const (
	ChunkNode NodeKind = iota
	TextNode
	BreakNode
)

// Node is one element of the document tree. Chunk nodes sit at the top level
// and contain text and break nodes; text or break nodes found at the top
// level are strays left behind by destructive edits and are cleaned up by
// the reconciliation passes.
type Node struct {
	kind     NodeKind
	parent   *Node
	id       ChunkID
	text     string
	children []*Node
	editing  bool
}

// Kind reports the node type.
func (n *Node) Kind() NodeKind { return n.kind }

// Parent returns the enclosing chunk node, or nil for top-level nodes.
func (n *Node) Parent() *Node { return n.parent }

// ID returns the chunk identity for chunk nodes.
func (n *Node) ID() ChunkID { return n.id }

// Text returns the run content for text nodes.
func (n *Node) Text() string { return n.text }

// NewBreakNode constructs a detached line-break node for break inserters to
// place.
func NewBreakNode() *Node {
	return &Node{kind: BreakNode}
}

// BreakInserter is the primitive used to materialize a synthetic line break
// at a position. The document falls back to direct node construction when no
// inserter is configured. Engines with quirky insertion behavior are modeled
// by inserters that place the break outside the target chunk; the editor's
// compensation pass re-parents those.
type BreakInserter func(d *Document, pos Position) (*Node, error)

// Document is the live editable surface.
type Document struct {
	guard    Guard
	observer func(nodes []*Node)

	top  []*Node
	byID map[ChunkID]*Node

	sel     Selection
	focused bool

	breakInserter BreakInserter
}

// New returns an empty document with observation bound.
func New() *Document {
	return &Document{byID: make(map[ChunkID]*Node)}
}

// Observe registers the callback invoked with the affected nodes whenever a
// structural mutation happens while observation is bound.
func (d *Document) Observe(fn func(nodes []*Node)) {
	d.observer = fn
}

// SetBreakInserter overrides the line-break insertion primitive.
func (d *Document) SetBreakInserter(fn BreakInserter) {
	d.breakInserter = fn
}

func (d *Document) notify(nodes ...*Node) {
	if d.observer != nil && d.guard.Observing() {
		d.observer(nodes)
	}
}

// Chunks returns the chunk identities in document order.
func (d *Document) Chunks() []ChunkID {
	var ids []ChunkID
	for _, n := range d.top {
		if n.kind == ChunkNode {
			ids = append(ids, n.id)
		}
	}
	return ids
}

// Node returns the chunk node for an identity.
func (d *Document) Node(id ChunkID) (*Node, bool) {
	n, ok := d.byID[id]
	return n, ok
}

// Has reports whether a chunk identity is present.
func (d *Document) Has(id ChunkID) bool {
	_, ok := d.byID[id]
	return ok
}

// Len reports the number of chunks in the document.
func (d *Document) Len() int {
	return len(d.Chunks())
}

// IsLast reports whether the identity names the final chunk.
func (d *Document) IsLast(id ChunkID) bool {
	last := d.lastChunk()
	return last != nil && last.id == id
}

func (d *Document) lastChunk() *Node {
	for i := len(d.top) - 1; i >= 0; i-- {
		if d.top[i].kind == ChunkNode {
			return d.top[i]
		}
	}
	return nil
}

// Content derives a chunk's current text: text runs concatenated with breaks
// as newlines, with exactly one trailing synthetic newline stripped when no
// sibling chunk follows. This derivation is the single source of truth for
// what a flush sends and for whether a chunk is empty.
func (d *Document) Content(id ChunkID) (string, bool) {
	n, ok := d.byID[id]
	if !ok {
		return "", false
	}
	text := chunkFullText(n)
	if d.IsLast(id) {
		text = strings.TrimSuffix(text, "\n")
	}
	return text, true
}

// IsEmpty reports whether a chunk's derived content has zero length.
func (d *Document) IsEmpty(id ChunkID) bool {
	content, ok := d.Content(id)
	return ok && content == ""
}

func chunkFullText(n *Node) string {
	var b strings.Builder
	for _, c := range n.children {
		switch c.kind {
		case TextNode:
			b.WriteString(c.text)
		case BreakNode:
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// chunkLen is the length of the chunk's full text in runes, breaks counted
// as one.
func chunkLen(n *Node) int {
	total := 0
	for _, c := range n.children {
		switch c.kind {
		case TextNode:
			total += len([]rune(c.text))
		case BreakNode:
			total++
		}
	}
	return total
}

func contentToNodes(parent *Node, content string) []*Node {
	var nodes []*Node
	for i, seg := range strings.Split(content, "\n") {
		if i > 0 {
			nodes = append(nodes, &Node{kind: BreakNode, parent: parent})
		}
		if seg != "" {
			nodes = append(nodes, &Node{kind: TextNode, parent: parent, text: seg})
		}
	}
	return nodes
}

func setChunkFullText(n *Node, content string) {
	n.children = contentToNodes(n, content)
}

func endsWithBreak(n *Node) bool {
	if len(n.children) == 0 {
		return false
	}
	return n.children[len(n.children)-1].kind == BreakNode
}

// AppendChunk adds a new chunk at the end of the document. The previous last
// chunk gives up its trailing synthetic break; the new chunk takes it over,
// so every chunk's derived content is unchanged by the append.
func (d *Document) AppendChunk(id ChunkID, content string) error {
	if _, exists := d.byID[id]; exists {
		return fmt.Errorf("chunk %d already present", id)
	}
	if prev := d.lastChunk(); prev != nil && endsWithBreak(prev) {
		prev.children = prev.children[:len(prev.children)-1]
	}
	n := &Node{kind: ChunkNode, id: id}
	setChunkFullText(n, content+"\n")
	d.top = append(d.top, n)
	d.byID[id] = n
	d.notify(n)
	return nil
}

// ReplaceChunk swaps a chunk's content in place, keeping the trailing break
// when the chunk is the last one.
func (d *Document) ReplaceChunk(id ChunkID, content string) error {
	n, ok := d.byID[id]
	if !ok {
		return fmt.Errorf("chunk %d not present", id)
	}
	if d.IsLast(id) {
		content += "\n"
	}
	setChunkFullText(n, content)
	d.notify(n)
	return nil
}

// RemoveChunk deletes a chunk node and re-establishes the trailing break on
// whatever chunk becomes the new last chunk.
func (d *Document) RemoveChunk(id ChunkID) error {
	n, ok := d.byID[id]
	if !ok {
		return fmt.Errorf("chunk %d not present", id)
	}
	wasLast := d.IsLast(id)
	for i, t := range d.top {
		if t == n {
			d.top = append(d.top[:i], d.top[i+1:]...)
			break
		}
	}
	delete(d.byID, id)
	if wasLast {
		if last := d.lastChunk(); last != nil && !endsWithBreak(last) {
			last.children = append(last.children, &Node{kind: BreakNode, parent: last})
		}
	}
	d.notify(n)
	return nil
}

// Clear drops every node in the document.
func (d *Document) Clear() {
	removed := d.top
	d.top = nil
	d.byID = make(map[ChunkID]*Node)
	d.notify(removed...)
}

// InsertText splices plain text (no newlines) into a chunk at the given
// offset and returns the position just after the inserted text.
func (d *Document) InsertText(pos Position, text string) (Position, error) {
	if strings.Contains(text, "\n") {
		return Position{}, fmt.Errorf("text insertion cannot carry line breaks")
	}
	n, ok := d.byID[pos.Chunk]
	if !ok {
		return Position{}, fmt.Errorf("chunk %d not present", pos.Chunk)
	}
	full := []rune(chunkFullText(n))
	off := clamp(pos.Offset, 0, len(full))
	updated := string(full[:off]) + text + string(full[off:])
	setChunkFullText(n, updated)
	d.notify(n)
	return Position{Chunk: pos.Chunk, Offset: off + len([]rune(text))}, nil
}

// InsertBreak materializes a synthetic line break at the position, using the
// configured insertion primitive when one is available and direct node
// construction otherwise. It returns the break node; callers must verify the
// node landed inside the intended chunk.
func (d *Document) InsertBreak(pos Position) (*Node, error) {
	if d.breakInserter != nil {
		return d.breakInserter(d, pos)
	}
	return d.insertBreakNode(pos)
}

func (d *Document) insertBreakNode(pos Position) (*Node, error) {
	n, ok := d.byID[pos.Chunk]
	if !ok {
		return nil, fmt.Errorf("chunk %d not present", pos.Chunk)
	}
	br := &Node{kind: BreakNode, parent: n}
	idx, innerOff := locateChild(n, pos.Offset)
	if idx < len(n.children) && n.children[idx].kind == TextNode && innerOff > 0 {
		runs := []rune(n.children[idx].text)
		if innerOff < len(runs) {
			before := &Node{kind: TextNode, parent: n, text: string(runs[:innerOff])}
			after := &Node{kind: TextNode, parent: n, text: string(runs[innerOff:])}
			n.children = spliceNodes(n.children, idx, 1, before, br, after)
			d.notify(n)
			return br, nil
		}
		idx++
	}
	n.children = spliceNodes(n.children, idx, 0, br)
	d.notify(n)
	return br, nil
}

// AppendStray places a node at the top level of the document, outside any
// chunk. Quirky break inserters use it to model breaks that escape their
// chunk.
func (d *Document) AppendStray(n *Node) {
	n.parent = nil
	d.top = append(d.top, n)
	d.notify(n)
}

// ReparentBreak moves a stray break node into the chunk at the position,
// discarding the stray. Used by the compensation pass after a quirky break
// insertion.
func (d *Document) ReparentBreak(br *Node, pos Position) (*Node, error) {
	if br.kind != BreakNode {
		return nil, fmt.Errorf("node is not a line break")
	}
	for i, t := range d.top {
		if t == br {
			d.top = append(d.top[:i], d.top[i+1:]...)
			break
		}
	}
	return d.insertBreakNode(pos)
}

// OwnerChunk resolves a node to its enclosing chunk identity by walking
// parents. The second return is false for strays with no chunk ancestor.
func (d *Document) OwnerChunk(n *Node) (ChunkID, bool) {
	for cur := n; cur != nil; cur = cur.parent {
		if cur.kind == ChunkNode {
			if _, present := d.byID[cur.id]; present {
				return cur.id, true
			}
			return 0, false
		}
	}
	return 0, false
}

// DeleteRange removes the selected span of text. Chunks intersected by the
// range keep their nodes (possibly emptied); the range never removes chunk
// nodes themselves.
func (d *Document) DeleteRange(sel Selection) error {
	start, end := d.orderPositions(sel)
	ids := d.chunksBetween(start.Chunk, end.Chunk)
	if len(ids) == 0 {
		return fmt.Errorf("selection references no present chunk")
	}
	var affected []*Node
	for _, id := range ids {
		n := d.byID[id]
		full := []rune(chunkFullText(n))
		from, to := 0, len(full)
		if id == start.Chunk {
			from = clamp(start.Offset, 0, len(full))
		}
		if id == end.Chunk {
			to = clamp(end.Offset, 0, len(full))
		}
		if from >= to {
			continue
		}
		setChunkFullText(n, string(full[:from])+string(full[to:]))
		affected = append(affected, n)
	}
	if len(affected) > 0 {
		d.notify(affected...)
	}
	return nil
}

// FirstText scans the document in order and returns the first non-empty text
// run, looking at strays and chunk contents alike. Used to rescue prompt
// text before the chunk structure is rebuilt.
func (d *Document) FirstText() string {
	for _, n := range d.top {
		switch n.kind {
		case TextNode:
			if n.text != "" {
				return n.text
			}
		case ChunkNode:
			for _, c := range n.children {
				if c.kind == TextNode && c.text != "" {
					return c.text
				}
			}
		}
	}
	return ""
}

// SetEditing toggles the editing indicator on a chunk.
func (d *Document) SetEditing(id ChunkID, editing bool) {
	if n, ok := d.byID[id]; ok {
		n.editing = editing
	}
}

// Editing reports whether a chunk carries the editing indicator.
func (d *Document) Editing(id ChunkID) bool {
	n, ok := d.byID[id]
	return ok && n.editing
}

// EditingChunks returns the chunks currently carrying the editing indicator.
func (d *Document) EditingChunks() []ChunkID {
	var ids []ChunkID
	for _, n := range d.top {
		if n.kind == ChunkNode && n.editing {
			ids = append(ids, n.id)
		}
	}
	return ids
}

func locateChild(n *Node, offset int) (idx int, innerOff int) {
	remaining := offset
	for i, c := range n.children {
		var l int
		switch c.kind {
		case TextNode:
			l = len([]rune(c.text))
		case BreakNode:
			l = 1
		}
		if remaining < l || (remaining == l && c.kind == TextNode) {
			return i, remaining
		}
		remaining -= l
	}
	return len(n.children), 0
}

func spliceNodes(nodes []*Node, idx, drop int, insert ...*Node) []*Node {
	out := make([]*Node, 0, len(nodes)-drop+len(insert))
	out = append(out, nodes[:idx]...)
	out = append(out, insert...)
	out = append(out, nodes[idx+drop:]...)
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
