package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/parleyhq/parley/internal/chat"
	"github.com/parleyhq/parley/internal/storage"
	"github.com/parleyhq/parley/pkg/types"
)

// BotResponder is the slice of the chat responder the handlers use.
type BotResponder interface {
	Respond(ctx context.Context, sessionID string) (*types.ChatMessage, error)
}

// Broadcaster pushes events to connected websocket clients. A nil
// broadcaster disables event fan-out.
type Broadcaster interface {
	Broadcast(event interface{})
}

// ChatHandlers contains HTTP handlers for chat sessions and messages.
type ChatHandlers struct {
	chats     storage.ChatStore
	responder BotResponder
	hub       Broadcaster
}

// NewChatHandlers creates a new ChatHandlers instance.
func NewChatHandlers(chats storage.ChatStore, responder BotResponder, hub Broadcaster) *ChatHandlers {
	return &ChatHandlers{chats: chats, responder: responder, hub: hub}
}

// CreateSessionRequest represents the request body for creating a session.
type CreateSessionRequest struct {
	UserID string `json:"userId"`
	BotID  string `json:"botId"`
	IsAI   bool   `json:"isAI"`
}

// CreateSession handles POST /api/chat/sessions.
func (h *ChatHandlers) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.UserID == "" {
		respondError(w, http.StatusBadRequest, "userId is required", nil)
		return
	}
	if req.IsAI && req.BotID == "" {
		respondError(w, http.StatusBadRequest, "botId is required for AI sessions", nil)
		return
	}

	now := time.Now()
	session := &types.ChatSession{
		ID:        uuid.NewString(),
		UserID:    req.UserID,
		BotID:     req.BotID,
		IsAI:      req.IsAI,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := h.chats.CreateSession(r.Context(), session); err != nil {
		respondStorageError(w, "failed to create session", err)
		return
	}

	respondJSON(w, http.StatusCreated, session)
}

// ListSessions handles GET /api/chat/sessions - a user's sessions, most
// recently active first.
func (h *ChatHandlers) ListSessions(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		respondError(w, http.StatusBadRequest, "user_id is required", nil)
		return
	}

	sessions, err := h.chats.ListSessions(r.Context(), userID)
	if err != nil {
		respondStorageError(w, "failed to list sessions", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": sessions,
		"total":    len(sessions),
	})
}

// ListMessages handles GET /api/chat/messages - a session's messages in
// chronological order, optionally capped to the most recent N.
func (h *ChatHandlers) ListMessages(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "session_id is required", nil)
		return
	}
	limit := parseInt(r.URL.Query().Get("limit"), 0)

	messages, err := h.chats.ListMessages(r.Context(), sessionID, limit)
	if err != nil {
		respondStorageError(w, "failed to list messages", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"messages": messages,
		"total":    len(messages),
	})
}

// PostMessageRequest represents the request body for posting a user message.
type PostMessageRequest struct {
	SessionID  string `json:"sessionId"`
	SenderID   string `json:"senderId"`
	SenderName string `json:"senderName"`
	Content    string `json:"content"`
}

// PostMessage handles POST /api/chat/message - persist a user message and
// broadcast it to websocket clients.
func (h *ChatHandlers) PostMessage(w http.ResponseWriter, r *http.Request) {
	var req PostMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.SessionID == "" || req.SenderID == "" || req.Content == "" {
		respondError(w, http.StatusBadRequest, "sessionId, senderId and content are required", nil)
		return
	}

	// The session must exist; SaveMessage would otherwise fail on the
	// foreign key with an opaque error.
	if _, err := h.chats.GetSession(r.Context(), req.SessionID); err != nil {
		respondStorageError(w, "failed to load session", err)
		return
	}

	msg := &types.ChatMessage{
		ID:          uuid.NewString(),
		SessionID:   req.SessionID,
		SenderID:    req.SenderID,
		SenderName:  req.SenderName,
		Content:     req.Content,
		IsDelivered: true,
		CreatedAt:   time.Now(),
	}

	if err := h.chats.SaveMessage(r.Context(), msg); err != nil {
		respondStorageError(w, "failed to save message", err)
		return
	}

	if h.hub != nil {
		h.hub.Broadcast(NewMessageEvent(msg))
	}

	respondJSON(w, http.StatusCreated, msg)
}

// AIResponseRequest represents the request body for requesting a bot reply.
type AIResponseRequest struct {
	SessionID string `json:"sessionId"`
}

// PostAIResponse handles POST /api/chat/ai - generate, persist and broadcast
// the bot's reply to the session's latest user message.
func (h *ChatHandlers) PostAIResponse(w http.ResponseWriter, r *http.Request) {
	var req AIResponseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.SessionID == "" {
		respondError(w, http.StatusBadRequest, "sessionId is required", nil)
		return
	}

	msg, err := h.responder.Respond(r.Context(), req.SessionID)
	if err != nil {
		switch {
		case errors.Is(err, chat.ErrNotAISession), errors.Is(err, chat.ErrNoUserMessage):
			respondError(w, http.StatusBadRequest, "cannot generate response", err)
		case errors.Is(err, chat.ErrBotNotFound):
			respondError(w, http.StatusNotFound, "bot not found", err)
		case errors.Is(err, storage.ErrNotFound):
			respondError(w, http.StatusNotFound, "session not found", err)
		default:
			respondError(w, http.StatusInternalServerError, "failed to generate response", err)
		}
		return
	}

	if h.hub != nil {
		h.hub.Broadcast(NewMessageEvent(msg))
	}

	respondJSON(w, http.StatusCreated, msg)
}
