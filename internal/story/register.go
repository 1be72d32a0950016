// Package story holds the canonical chunk sequence for a story and the text
// hygiene applied to generated continuations before they join it.
package story

// Register is the canonical ordered sequence of story chunks. Identities are
// assigned by Append and increase monotonically; chunk 0 is the prompt.
type Register struct {
	order  []int
	chunks map[int]string
	nextID int
}

// Entry pairs a chunk identity with its content.
type Entry struct {
	ID      int
	Content string
}

// NewRegister builds a register from an ordered chunk sequence. The next
// assignable identity starts past the highest identity seen so far.
func NewRegister(entries []Entry) *Register {
	r := &Register{chunks: make(map[int]string, len(entries))}
	for _, e := range entries {
		if _, exists := r.chunks[e.ID]; exists {
			continue
		}
		r.order = append(r.order, e.ID)
		r.chunks[e.ID] = e.Content
		if e.ID >= r.nextID {
			r.nextID = e.ID + 1
		}
	}
	return r
}

// Append adds content under the next identity and returns that identity.
func (r *Register) Append(content string) int {
	id := r.nextID
	r.order = append(r.order, id)
	r.chunks[id] = content
	r.nextID++
	return id
}

// Pop removes and returns the content of the last chunk.
func (r *Register) Pop() (string, bool) {
	if len(r.order) == 0 {
		return "", false
	}
	id := r.order[len(r.order)-1]
	content := r.chunks[id]
	r.order = r.order[:len(r.order)-1]
	delete(r.chunks, id)
	return content, true
}

// Get returns the content stored under an identity.
func (r *Register) Get(id int) (string, bool) {
	content, ok := r.chunks[id]
	return content, ok
}

// Put replaces the content of an existing chunk, or records a new chunk at
// the end of the sequence when the identity is unknown.
func (r *Register) Put(id int, content string) {
	if _, exists := r.chunks[id]; !exists {
		r.order = append(r.order, id)
		if id >= r.nextID {
			r.nextID = id + 1
		}
	}
	r.chunks[id] = content
}

// Delete removes a chunk from the sequence.
func (r *Register) Delete(id int) bool {
	if _, exists := r.chunks[id]; !exists {
		return false
	}
	delete(r.chunks, id)
	for i, ordered := range r.order {
		if ordered == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// FirstID returns the identity of the first chunk, or -1 when empty.
func (r *Register) FirstID() int {
	if len(r.order) == 0 {
		return -1
	}
	return r.order[0]
}

// LastID returns the identity of the last chunk, or -1 when empty.
func (r *Register) LastID() int {
	if len(r.order) == 0 {
		return -1
	}
	return r.order[len(r.order)-1]
}

// NextID returns the identity the next Append will assign.
func (r *Register) NextID() int { return r.nextID }

// SetNextID overrides the next assignable identity, used when loading a
// saved story whose counter outran its surviving chunks.
func (r *Register) SetNextID(id int) { r.nextID = id }

// Len reports the number of chunks.
func (r *Register) Len() int { return len(r.order) }

// Entries returns the chunk sequence in order.
func (r *Register) Entries() []Entry {
	entries := make([]Entry, 0, len(r.order))
	for _, id := range r.order {
		entries = append(entries, Entry{ID: id, Content: r.chunks[id]})
	}
	return entries
}
