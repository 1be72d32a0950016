package server

import (
	"net/http"
	"testing"
	"time"

	"github.com/storyloom/server/internal/auth"
	"github.com/storyloom/server/internal/config"
	"github.com/storyloom/server/internal/database"
	"github.com/storyloom/server/internal/story"
	"github.com/storyloom/server/internal/testutil"
)

func newStoryJWTService() *auth.JWTService {
	return auth.NewJWTService(&config.Config{
		Auth: config.AuthConfig{JWTSecret: "test-secret-key", JWTExpiration: time.Hour},
	})
}

func TestStoryHandlersRequireSessionToken(t *testing.T) {
	handlers := NewStoryHandlers(database.NewStoryStorage(nil), newStoryJWTService())
	helper := testutil.NewHTTPTestHelper(http.HandlerFunc(handlers.HandleStories))

	resp := helper.MakeRequest(http.MethodGet, "/api/stories", nil)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.Code)
	}

	resp = helper.MakeRequest(http.MethodGet, "/api/stories?token=not-a-token", nil)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for invalid token, got %d", resp.Code)
	}
}

func TestStoryHandlersListAndDelete(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	storage := database.NewStoryStorage(db)
	if err := storage.EnsureSchema(); err != nil {
		t.Fatalf("preparing schema: %v", err)
	}

	reg := story.NewRegister([]story.Entry{{ID: 0, Content: "Once upon a time"}})
	if _, err := storage.SaveStory("handlers-test", reg); err != nil {
		t.Fatalf("saving story: %v", err)
	}

	jwtService := newStoryJWTService()
	token, _, err := jwtService.GenerateSessionToken()
	if err != nil {
		t.Fatalf("generating token: %v", err)
	}

	handlers := NewStoryHandlers(storage, jwtService)
	helper := testutil.NewHTTPTestHelper(http.HandlerFunc(handlers.HandleStories))

	resp := helper.MakeRequest(http.MethodGet, "/api/stories?token="+token, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("listing stories: status %d, body %s", resp.Code, resp.Body.String())
	}
	var listing struct {
		Stories []StoryInfo `json:"stories"`
	}
	if err := testutil.ParseJSONResponse(&listing, resp.Body); err != nil {
		t.Fatalf("decoding listing: %v", err)
	}
	found := false
	for _, info := range listing.Stories {
		if info.Name == "handlers-test" {
			found = true
			if info.NextID != 1 {
				t.Fatalf("listed next_id %d", info.NextID)
			}
		}
	}
	if !found {
		t.Fatalf("saved story missing from listing: %+v", listing.Stories)
	}

	resp = helper.MakeRequest(http.MethodDelete, "/api/stories?token="+token+"&name=handlers-test", nil)
	if resp.Code != http.StatusNoContent {
		t.Fatalf("deleting story: status %d, body %s", resp.Code, resp.Body.String())
	}

	resp = helper.MakeRequest(http.MethodDelete, "/api/stories?token="+token+"&name=handlers-test", nil)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for repeated delete, got %d", resp.Code)
	}
}
