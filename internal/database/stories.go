// Package database persists stories and their chunk sequences to Postgres.
package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/storyloom/server/internal/story"
)

// StoryStorage handles story storage and retrieval from the database
type StoryStorage struct {
	db *sql.DB
}

// NewStoryStorage creates a new story storage instance
func NewStoryStorage(db *sql.DB) *StoryStorage {
	return &StoryStorage{db: db}
}

// StoredStory represents story metadata stored in the database
type StoredStory struct {
	ID        int64
	Name      string
	NextID    int
	CreatedAt time.Time
	UpdatedAt time.Time
}

const storySchema = `
CREATE TABLE IF NOT EXISTS stories (
	id         BIGSERIAL PRIMARY KEY,
	name       TEXT NOT NULL UNIQUE,
	next_id    INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS story_chunks (
	story_id  BIGINT NOT NULL REFERENCES stories(id) ON DELETE CASCADE,
	chunk_id  INTEGER NOT NULL,
	position  INTEGER NOT NULL,
	content   TEXT NOT NULL,
	PRIMARY KEY (story_id, chunk_id)
);

CREATE INDEX IF NOT EXISTS idx_story_chunks_position
	ON story_chunks (story_id, position);
`

// EnsureSchema creates the story tables if they do not exist.
func (s *StoryStorage) EnsureSchema() error {
	if _, err := s.db.Exec(storySchema); err != nil {
		return fmt.Errorf("failed to create story schema: %w", err)
	}
	return nil
}

// SaveStory writes a story's register under the given name, replacing any
// previously saved chunk sequence in a single transaction.
func (s *StoryStorage) SaveStory(name string, reg *story.Register) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin save transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil {
			// Ignore rollback error if transaction was already committed
		}
	}()

	var storyID int64
	err = tx.QueryRow(`
		INSERT INTO stories (name, next_id, updated_at)
		VALUES ($1, $2, CURRENT_TIMESTAMP)
		ON CONFLICT (name)
		DO UPDATE SET next_id = $2, updated_at = CURRENT_TIMESTAMP
		RETURNING id
	`, name, reg.NextID()).Scan(&storyID)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return 0, fmt.Errorf("story name %q already exists: %w", name, err)
		}
		return 0, fmt.Errorf("failed to upsert story %q: %w", name, err)
	}

	if _, err := tx.Exec(`DELETE FROM story_chunks WHERE story_id = $1`, storyID); err != nil {
		return 0, fmt.Errorf("failed to clear chunks for story %d: %w", storyID, err)
	}

	stmt, err := tx.Prepare(pq.CopyIn("story_chunks", "story_id", "chunk_id", "position", "content"))
	if err != nil {
		return 0, fmt.Errorf("failed to prepare chunk copy: %w", err)
	}

	for position, entry := range reg.Entries() {
		if _, err := stmt.Exec(storyID, entry.ID, position, entry.Content); err != nil {
			return 0, fmt.Errorf("failed to copy chunk %d: %w", entry.ID, err)
		}
	}
	if _, err := stmt.Exec(); err != nil {
		return 0, fmt.Errorf("failed to flush chunk copy: %w", err)
	}
	if err := stmt.Close(); err != nil {
		return 0, fmt.Errorf("failed to close chunk copy: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit save transaction: %w", err)
	}
	return storyID, nil
}

// LoadStory reads a saved story's chunk sequence into a fresh register.
// Returns nil with no error when the story does not exist.
func (s *StoryStorage) LoadStory(name string) (*story.Register, error) {
	var storyID int64
	var nextID int
	err := s.db.QueryRow(`
		SELECT id, next_id FROM stories WHERE name = $1
	`, name).Scan(&storyID, &nextID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query story %q: %w", name, err)
	}

	rows, err := s.db.Query(`
		SELECT chunk_id, content
		FROM story_chunks
		WHERE story_id = $1
		ORDER BY position
	`, storyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks for story %d: %w", storyID, err)
	}
	defer rows.Close()

	var entries []story.Entry
	for rows.Next() {
		var entry story.Entry
		if err := rows.Scan(&entry.ID, &entry.Content); err != nil {
			return nil, fmt.Errorf("failed to scan chunk row: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read chunk rows: %w", err)
	}

	reg := story.NewRegister(entries)
	if nextID > reg.NextID() {
		reg.SetNextID(nextID)
	}
	return reg, nil
}

// ListStories returns saved story metadata ordered by most recent update.
func (s *StoryStorage) ListStories() ([]StoredStory, error) {
	rows, err := s.db.Query(`
		SELECT id, name, next_id, created_at, updated_at
		FROM stories
		ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query stories: %w", err)
	}
	defer rows.Close()

	var stories []StoredStory
	for rows.Next() {
		var st StoredStory
		if err := rows.Scan(&st.ID, &st.Name, &st.NextID, &st.CreatedAt, &st.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan story row: %w", err)
		}
		stories = append(stories, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read story rows: %w", err)
	}
	return stories, nil
}

// DeleteStory removes a saved story and its chunks. Returns false when no
// story with that name exists.
func (s *StoryStorage) DeleteStory(name string) (bool, error) {
	result, err := s.db.Exec(`DELETE FROM stories WHERE name = $1`, name)
	if err != nil {
		return false, fmt.Errorf("failed to delete story %q: %w", name, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read delete result: %w", err)
	}
	return affected > 0, nil
}
