package server

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/storyloom/server/internal/auth"
	"github.com/storyloom/server/internal/database"
)

// StoryHandlers exposes saved-story management over HTTP: listing the
// stories the database holds and deleting ones no longer wanted. Both
// operations require a valid session token.
type StoryHandlers struct {
	storage    *database.StoryStorage
	jwtService *auth.JWTService
}

// NewStoryHandlers creates a new story handlers instance
func NewStoryHandlers(storage *database.StoryStorage, jwtService *auth.JWTService) *StoryHandlers {
	return &StoryHandlers{
		storage:    storage,
		jwtService: jwtService,
	}
}

// StoryInfo is the JSON shape for one saved story.
type StoryInfo struct {
	Name      string    `json:"name"`
	NextID    int       `json:"next_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HandleStories routes story management requests.
// GET /api/stories lists saved stories.
// DELETE /api/stories?name=<name> removes one.
func (h *StoryHandlers) HandleStories(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r) {
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.listStories(w)
	case http.MethodDelete:
		h.deleteStory(w, r)
	default:
		h.sendError(w, http.StatusMethodNotAllowed, "MethodNotAllowed", "Use GET or DELETE")
	}
}

func (h *StoryHandlers) authorize(w http.ResponseWriter, r *http.Request) bool {
	token, err := auth.ExtractToken(r)
	if err != nil {
		h.sendError(w, http.StatusUnauthorized, "AuthenticationRequired", "A session token is required")
		return false
	}
	if _, err := h.jwtService.ValidateSessionToken(token); err != nil {
		h.sendError(w, http.StatusUnauthorized, "InvalidToken", "Session token is invalid or expired")
		return false
	}
	return true
}

func (h *StoryHandlers) listStories(w http.ResponseWriter) {
	stories, err := h.storage.ListStories()
	if err != nil {
		log.Printf("[Story] Failed to list stories: %v", err)
		h.sendError(w, http.StatusInternalServerError, "StorageError", "Failed to list stories")
		return
	}

	infos := make([]StoryInfo, 0, len(stories))
	for _, s := range stories {
		infos = append(infos, StoryInfo{
			Name:      s.Name,
			NextID:    s.NextID,
			CreatedAt: s.CreatedAt,
			UpdatedAt: s.UpdatedAt,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string][]StoryInfo{"stories": infos}); err != nil {
		log.Printf("[Story] Failed to encode story list: %v", err)
	}
}

func (h *StoryHandlers) deleteStory(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		h.sendError(w, http.StatusBadRequest, "MissingName", "Query parameter name is required")
		return
	}

	deleted, err := h.storage.DeleteStory(name)
	if err != nil {
		log.Printf("[Story] Failed to delete story %q: %v", name, err)
		h.sendError(w, http.StatusInternalServerError, "StorageError", "Failed to delete story")
		return
	}
	if !deleted {
		h.sendError(w, http.StatusNotFound, "StoryNotFound", "No story with that name")
		return
	}

	log.Printf("[Story] Deleted story %q", name)
	w.WriteHeader(http.StatusNoContent)
}

func (h *StoryHandlers) sendError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(auth.ErrorResponse{
		Error:   code,
		Message: message,
		Code:    code,
	}); err != nil {
		log.Printf("[Story] Failed to encode error response: %v", err)
	}
}
