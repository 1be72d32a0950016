package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/storyloom/server/internal/auth"
	"github.com/storyloom/server/internal/config"
	"github.com/storyloom/server/internal/database"
	"github.com/storyloom/server/internal/server"
	"github.com/storyloom/server/internal/story"
)

// main starts the StoryLoom reconciliation server: it loads configuration,
// opens the story database, restores the canonical chunk sequence, and
// serves the login endpoint and the websocket command channel.
func main() {
	hashPassword := flag.String("hash-password", "", "print the bcrypt hash of the given access password and exit")
	flag.Parse()

	if *hashPassword != "" {
		// Runs before configuration is loaded so a fresh deployment can
		// produce ACCESS_PASSWORD_HASH in the first place.
		passwordService := auth.NewPasswordService(&config.Config{})
		hash, err := passwordService.HashPassword(*hashPassword)
		if err != nil {
			log.Fatalf("Failed to hash password: %v", err)
		}
		fmt.Println(hash)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := sql.Open("postgres", cfg.Database.DatabaseURL())
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxConnections)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	var storage *database.StoryStorage
	if err := db.Ping(); err != nil {
		log.Printf("Warning: database unreachable, running without persistence: %v", err)
	} else {
		storage = database.NewStoryStorage(db)
		if err := storage.EnsureSchema(); err != nil {
			log.Fatalf("Failed to prepare database schema: %v", err)
		}
	}

	storyName := "default"
	reg := story.NewRegister(nil)
	if storage != nil {
		loaded, err := storage.LoadStory(storyName)
		if err != nil {
			log.Fatalf("Failed to load story %q: %v", storyName, err)
		}
		if loaded != nil {
			reg = loaded
			log.Printf("[Story] Loaded story %q (%d chunks)", storyName, reg.Len())
		}
	}

	hub := server.NewHub()
	go hub.Run()

	// A typed nil *StoryStorage must not reach the interface field.
	var store server.StoryStore
	if storage != nil {
		store = storage
	}
	service := server.NewStoryService(reg, hub, store, storyName)
	log.Printf("[Story] No generation backend configured; generate commands will be rejected")

	jwtService := auth.NewJWTService(cfg)
	passwordService := auth.NewPasswordService(cfg)
	authHandlers := auth.NewAuthHandlers(jwtService, passwordService)
	wsHandlers := server.NewWebSocketHandlers(cfg, jwtService, hub, service)

	loginLimiter := server.RateLimitMiddleware(5, time.Minute)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.Handle("/api/login", loginLimiter(http.HandlerFunc(authHandlers.Login)))
	mux.HandleFunc("/ws", wsHandlers.HandleWebSocket)
	if storage != nil {
		storyHandlers := server.NewStoryHandlers(storage, jwtService)
		mux.HandleFunc("/api/stories", storyHandlers.HandleStories)
	}

	addr := cfg.Server.Host + ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Printf("StoryLoom server starting on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Printf("[Server] Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("[Server] Shutdown error: %v", err)
	}
	if err := service.Close(); err != nil {
		log.Printf("[Story] Final save failed: %v", err)
	}
}

// healthHandler responds to health check requests.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"ok","service":"storyloom-server"}`)
}
