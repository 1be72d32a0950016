package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/storyloom/server/internal/protocol"
	"github.com/storyloom/server/internal/story"
)

// How long after the last mutation before the sequence is written out.
const defaultSaveDelay = 2 * time.Second

// StoryStore persists the canonical chunk sequence.
// *database.StoryStorage satisfies it.
type StoryStore interface {
	SaveStory(name string, reg *story.Register) (int64, error)
}

// Generator produces a story continuation for an assembled prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ErrNoGenerator is returned when a continuation is requested but no
// generation backend has been configured.
var ErrNoGenerator = errors.New("no generation backend configured")

// StoryService owns the canonical chunk sequence. Incoming edit-chunk and
// delete-chunk commands mutate the register; every accepted mutation is
// broadcast back to connected editors as replace-or-append-chunk or
// remove-chunk so all sessions converge on the same sequence. Mutations
// also arm a debounced autosave so a burst of edits lands as one write.
type StoryService struct {
	mu        sync.Mutex
	register  *story.Register
	hub       *Hub
	storage   StoryStore
	name      string
	generator Generator
	saveDelay time.Duration
	saveTimer *time.Timer
}

// NewStoryService creates a story service around an existing register.
// storage may be nil when persistence is disabled.
func NewStoryService(reg *story.Register, hub *Hub, storage StoryStore, name string) *StoryService {
	return &StoryService{
		register:  reg,
		hub:       hub,
		storage:   storage,
		name:      name,
		saveDelay: defaultSaveDelay,
	}
}

// SetGenerator configures the generation backend used for continuations.
func (s *StoryService) SetGenerator(g Generator) {
	s.mu.Lock()
	s.generator = g
	s.mu.Unlock()
}

// ApplyEdit records new content for a chunk. Unknown identities are
// appended to the end of the sequence, which lets an editor that raced a
// concurrent append still land its edit.
func (s *StoryService) ApplyEdit(id int, content string) error {
	if id < 0 {
		return fmt.Errorf("invalid chunk identity %d", id)
	}

	s.mu.Lock()
	s.register.Put(id, content)
	s.mu.Unlock()

	s.scheduleSave()
	return s.broadcastUpsert(id, content)
}

// ApplyDelete removes a chunk from the sequence. The prompt chunk is never
// deleted. Deleting an unknown chunk is a no-op so repeated deletes from a
// retrying editor stay harmless.
func (s *StoryService) ApplyDelete(id int) error {
	if id <= 0 {
		return fmt.Errorf("chunk %d cannot be deleted", id)
	}

	s.mu.Lock()
	removed := s.register.Delete(id)
	s.mu.Unlock()

	if !removed {
		return nil
	}
	s.scheduleSave()
	return s.broadcastRemove(id)
}

// AppendGenerated cleans a generated continuation and appends it as a new
// chunk. Returns the assigned identity, or -1 when the text cleans to
// nothing.
func (s *StoryService) AppendGenerated(text string) (int, error) {
	s.mu.Lock()
	var preceding string
	if last := s.register.LastID(); last >= 0 {
		preceding, _ = s.register.Get(last)
	}
	cleaned := story.CleanGenerated(text, preceding)
	if strings.TrimSpace(cleaned) == "" {
		s.mu.Unlock()
		return -1, nil
	}
	id := s.register.Append(cleaned)
	s.mu.Unlock()

	s.scheduleSave()
	if err := s.broadcastUpsert(id, cleaned); err != nil {
		return id, err
	}
	return id, nil
}

// GenerateContinuation assembles a prompt from the current sequence, asks
// the configured backend for a continuation, and appends the cleaned
// result. Returns the new chunk's identity, or -1 when nothing was added.
func (s *StoryService) GenerateContinuation(ctx context.Context) (int, error) {
	s.mu.Lock()
	g := s.generator
	entries := s.register.Entries()
	s.mu.Unlock()

	if g == nil {
		return -1, ErrNoGenerator
	}

	parts := make([]string, 0, len(entries))
	for _, entry := range entries {
		parts = append(parts, entry.Content)
	}
	prompt := strings.Join(parts, "\n")

	text, err := g.Generate(ctx, prompt)
	if err != nil {
		return -1, fmt.Errorf("generation failed: %w", err)
	}
	return s.AppendGenerated(text)
}

// Snapshot renders the current sequence as upsert commands, used to bring a
// newly connected editor up to date.
func (s *StoryService) Snapshot() ([]protocol.Command, error) {
	s.mu.Lock()
	entries := s.register.Entries()
	s.mu.Unlock()

	commands := make([]protocol.Command, 0, len(entries))
	for _, entry := range entries {
		cmd, err := upsertCommand(entry.ID, entry.Content)
		if err != nil {
			return nil, err
		}
		commands = append(commands, cmd)
	}
	return commands, nil
}

// scheduleSave arms the debounced autosave. Repeated mutations inside the
// delay window collapse into a single write.
func (s *StoryService) scheduleSave() {
	if s.storage == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveTimer != nil {
		s.saveTimer.Reset(s.saveDelay)
		return
	}
	s.saveTimer = time.AfterFunc(s.saveDelay, func() {
		s.mu.Lock()
		s.saveTimer = nil
		s.mu.Unlock()
		if err := s.Save(); err != nil {
			log.Printf("[Story] Autosave failed: %v", err)
		}
	})
}

// Close cancels any pending autosave and writes the sequence out once.
// Called on server shutdown so the last edits are not lost to the
// debounce window.
func (s *StoryService) Close() error {
	s.mu.Lock()
	if s.saveTimer != nil {
		s.saveTimer.Stop()
		s.saveTimer = nil
	}
	s.mu.Unlock()
	return s.Save()
}

// Save persists the current sequence when storage is configured.
func (s *StoryService) Save() error {
	if s.storage == nil {
		return nil
	}

	s.mu.Lock()
	reg := story.NewRegister(s.register.Entries())
	reg.SetNextID(s.register.NextID())
	s.mu.Unlock()

	if _, err := s.storage.SaveStory(s.name, reg); err != nil {
		return fmt.Errorf("failed to save story: %w", err)
	}
	log.Printf("[Story] Saved story %q (%d chunks)", s.name, reg.Len())
	return nil
}

func upsertCommand(id int, content string) (protocol.Command, error) {
	return protocol.NewCommand(protocol.CmdReplaceOrAppendChunk, protocol.ReplaceOrAppendChunk{
		Index: id,
		HTML:  protocol.RenderChunkMarkup(id, content),
	})
}

func (s *StoryService) broadcastUpsert(id int, content string) error {
	cmd, err := upsertCommand(id, content)
	if err != nil {
		return err
	}
	bytes, err := protocol.Marshal(cmd)
	if err != nil {
		return err
	}
	s.hub.Broadcast(bytes)
	return nil
}

func (s *StoryService) broadcastRemove(id int) error {
	cmd, err := protocol.NewCommand(protocol.CmdRemoveChunk, protocol.RemoveChunk{Data: id})
	if err != nil {
		return err
	}
	bytes, err := protocol.Marshal(cmd)
	if err != nil {
		return err
	}
	s.hub.Broadcast(bytes)
	return nil
}
