// Package server provides HTTP server initialization and lifecycle management
// for the Parley API.
package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/parleyhq/parley/internal/config"
	"github.com/parleyhq/parley/internal/storage"
	"github.com/parleyhq/parley/web/handlers"
)

// Dependencies carries the services the HTTP surface is built on.
type Dependencies struct {
	Knowledge   handlers.KnowledgeService
	Retriever   handlers.ContextRetriever
	Preferences handlers.PreferenceService
	Chats       storage.ChatStore
	Responder   handlers.BotResponder
}

// securityHeadersMiddleware adds security headers to all HTTP responses.
func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// Start initializes and starts the HTTP server.
// Returns the actual address being listened on (useful for testing with port 0)
// and the WebSocketHub for wiring chat event broadcasts. The server shuts
// down gracefully when ctx is cancelled.
func Start(ctx context.Context, cfg *config.Config, deps Dependencies) (string, *handlers.WebSocketHub, error) {
	mux := http.NewServeMux()

	// Websocket hub for chat events. Browsers connecting from the served
	// host are accepted; everything else is rejected on Origin.
	wsHub := handlers.NewWebSocketHub(
		fmt.Sprintf("http://localhost:%d", cfg.Server.Port),
		fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port),
	)
	go wsHub.Run()

	// Rate limiter (10 req/sec, burst of 20)
	rateLimiter := handlers.NewRateLimiter(10.0, 20)

	knowledgeHandlers := handlers.NewKnowledgeHandlers(deps.Knowledge)
	retrieveHandlers := handlers.NewRetrieveHandlers(deps.Retriever)
	preferenceHandlers := handlers.NewPreferenceHandlers(deps.Preferences)
	chatHandlers := handlers.NewChatHandlers(deps.Chats, deps.Responder, wsHub)

	// API routes (require auth in production mode)
	apiMux := http.NewServeMux()
	apiMux.HandleFunc("/api/knowledge", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			knowledgeHandlers.ListKnowledge(w, r)
		case http.MethodPost:
			knowledgeHandlers.CreateKnowledge(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	apiMux.HandleFunc("/api/knowledge/{id}", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			knowledgeHandlers.GetKnowledge(w, r)
		case http.MethodPut:
			knowledgeHandlers.UpdateKnowledge(w, r)
		case http.MethodDelete:
			knowledgeHandlers.DeleteKnowledge(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})

	apiMux.HandleFunc("/api/retrieve", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			retrieveHandlers.Retrieve(w, r)
		} else {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})

	// GET takes a user id, DELETE a preference id, so the patterns differ.
	apiMux.HandleFunc("GET /api/preferences/{userId}", preferenceHandlers.ListPreferences)
	apiMux.HandleFunc("DELETE /api/preferences/{id}", preferenceHandlers.DeletePreference)

	apiMux.HandleFunc("/api/chat/sessions", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			chatHandlers.ListSessions(w, r)
		case http.MethodPost:
			chatHandlers.CreateSession(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	apiMux.HandleFunc("/api/chat/messages", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			chatHandlers.ListMessages(w, r)
		} else {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	apiMux.HandleFunc("/api/chat/message", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			chatHandlers.PostMessage(w, r)
		} else {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	apiMux.HandleFunc("/api/chat/ai", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			chatHandlers.PostAIResponse(w, r)
		} else {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})

	// Health endpoint — no auth required, used by monitoring
	mux.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","version":"1.0.0"}`))
	})

	// Wrap API routes with auth middleware
	mux.Handle("/api/", handlers.RequireAuth(apiMux, cfg))

	// WebSocket endpoint (no auth required, origin validation handles security)
	mux.Handle("/ws", wsHub)

	// Wrap entire server with rate limiting, then security headers
	handler := handlers.RateLimitMiddleware(mux, rateLimiter)
	handler = securityHeadersMiddleware(handler)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		wsHub.Stop()
		return "", nil, fmt.Errorf("server: failed to listen on %s: %w", addr, err)
	}

	actualAddr := listener.Addr().String()

	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Printf("Server error: %v", err)
		}
	}()

	// Graceful shutdown on context cancellation
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
		wsHub.Stop()
	}()

	return actualAddr, wsHub, nil
}
