package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/parleyhq/parley/internal/storage"
	"github.com/parleyhq/parley/pkg/types"
)

// KnowledgeService is the slice of the knowledge service the handlers use.
type KnowledgeService interface {
	Create(ctx context.Context, entry *types.KnowledgeEntry) (*types.KnowledgeEntry, error)
	Get(ctx context.Context, botID, id string) (*types.KnowledgeEntry, error)
	Update(ctx context.Context, botID, id string, update types.KnowledgeUpdate) (*types.KnowledgeEntry, error)
	Delete(ctx context.Context, botID, id string) error
	List(ctx context.Context, botID string, category types.KnowledgeCategory) ([]types.KnowledgeEntry, error)
}

// KnowledgeHandlers contains HTTP handlers for the knowledge base CRUD API.
type KnowledgeHandlers struct {
	service KnowledgeService
}

// NewKnowledgeHandlers creates a new KnowledgeHandlers instance.
func NewKnowledgeHandlers(service KnowledgeService) *KnowledgeHandlers {
	return &KnowledgeHandlers{service: service}
}

// botID resolves the bot scope from the "bot_id" query parameter or the
// X-Bot-ID header. Every knowledge operation is scoped to a single bot.
func botID(r *http.Request) string {
	if id := r.URL.Query().Get("bot_id"); id != "" {
		return id
	}
	return r.Header.Get("X-Bot-ID")
}

// CreateKnowledgeRequest represents the request body for creating an entry.
type CreateKnowledgeRequest struct {
	BotID    string                 `json:"botId"`
	Category string                 `json:"category"`
	Title    string                 `json:"title"`
	Content  string                 `json:"content"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// ListKnowledge handles GET /api/knowledge - list entries for a bot,
// optionally filtered by category.
func (h *KnowledgeHandlers) ListKnowledge(w http.ResponseWriter, r *http.Request) {
	bot := botID(r)
	if bot == "" {
		respondError(w, http.StatusBadRequest, "bot_id is required", nil)
		return
	}

	category := types.KnowledgeCategory(r.URL.Query().Get("category"))
	if category != "" && !category.Valid() {
		respondError(w, http.StatusBadRequest, "invalid category", nil)
		return
	}

	entries, err := h.service.List(r.Context(), bot, category)
	if err != nil {
		respondStorageError(w, "failed to list knowledge entries", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"total":   len(entries),
	})
}

// CreateKnowledge handles POST /api/knowledge - create a new entry.
func (h *KnowledgeHandlers) CreateKnowledge(w http.ResponseWriter, r *http.Request) {
	var req CreateKnowledgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	entry := &types.KnowledgeEntry{
		BotID:    req.BotID,
		Category: types.KnowledgeCategory(req.Category),
		Title:    req.Title,
		Content:  req.Content,
		Metadata: req.Metadata,
	}

	created, err := h.service.Create(r.Context(), entry)
	if err != nil {
		respondStorageError(w, "failed to create knowledge entry", err)
		return
	}

	respondJSON(w, http.StatusCreated, created)
}

// GetKnowledge handles GET /api/knowledge/{id} - get a single entry.
func (h *KnowledgeHandlers) GetKnowledge(w http.ResponseWriter, r *http.Request) {
	id := extractID(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "entry ID is required", nil)
		return
	}
	bot := botID(r)
	if bot == "" {
		respondError(w, http.StatusBadRequest, "bot_id is required", nil)
		return
	}

	entry, err := h.service.Get(r.Context(), bot, id)
	if err != nil {
		respondStorageError(w, "failed to get knowledge entry", err)
		return
	}

	respondJSON(w, http.StatusOK, entry)
}

// UpdateKnowledge handles PUT /api/knowledge/{id} - partial update of an entry.
func (h *KnowledgeHandlers) UpdateKnowledge(w http.ResponseWriter, r *http.Request) {
	id := extractID(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "entry ID is required", nil)
		return
	}
	bot := botID(r)
	if bot == "" {
		respondError(w, http.StatusBadRequest, "bot_id is required", nil)
		return
	}

	var update types.KnowledgeUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	entry, err := h.service.Update(r.Context(), bot, id, update)
	if err != nil {
		respondStorageError(w, "failed to update knowledge entry", err)
		return
	}

	respondJSON(w, http.StatusOK, entry)
}

// DeleteKnowledge handles DELETE /api/knowledge/{id}.
func (h *KnowledgeHandlers) DeleteKnowledge(w http.ResponseWriter, r *http.Request) {
	id := extractID(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "entry ID is required", nil)
		return
	}
	bot := botID(r)
	if bot == "" {
		respondError(w, http.StatusBadRequest, "bot_id is required", nil)
		return
	}

	if err := h.service.Delete(r.Context(), bot, id); err != nil {
		respondStorageError(w, "failed to delete knowledge entry", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// respondStorageError maps storage sentinel errors onto HTTP status codes.
func respondStorageError(w http.ResponseWriter, message string, err error) {
	switch {
	case errors.Is(err, storage.ErrInvalidInput):
		respondError(w, http.StatusBadRequest, message, err)
	case errors.Is(err, storage.ErrNotFound):
		respondError(w, http.StatusNotFound, message, err)
	case errors.Is(err, storage.ErrForbidden):
		respondError(w, http.StatusForbidden, message, err)
	default:
		respondError(w, http.StatusInternalServerError, message, err)
	}
}
