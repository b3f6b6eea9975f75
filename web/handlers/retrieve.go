package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/parleyhq/parley/internal/retrieval"
	"github.com/parleyhq/parley/pkg/types"
)

// ContextRetriever is the slice of the retrieval engine the handler uses.
type ContextRetriever interface {
	Retrieve(ctx context.Context, botID, userID, query string, opts retrieval.Options) *types.RAGContext
}

// RetrieveHandlers contains the HTTP handler for context retrieval.
type RetrieveHandlers struct {
	engine ContextRetriever
}

// NewRetrieveHandlers creates a new RetrieveHandlers instance.
func NewRetrieveHandlers(engine ContextRetriever) *RetrieveHandlers {
	return &RetrieveHandlers{engine: engine}
}

// RetrieveRequest represents the request body for POST /api/retrieve.
// MinSimilarity is a pointer so that an explicit zero can be told apart
// from an absent field.
type RetrieveRequest struct {
	Query             string   `json:"query"`
	UserID            string   `json:"userId"`
	BotID             string   `json:"botId"`
	TopK              int      `json:"topK,omitempty"`
	MinSimilarity     *float64 `json:"minSimilarity,omitempty"`
	IncludeCategories []string `json:"includeCategories,omitempty"`
}

// Retrieve handles POST /api/retrieve - assemble a RAG context for a query.
// Retrieval never fails outward; provider or store trouble degrades to the
// empty context in the response body.
func (h *RetrieveHandlers) Retrieve(w http.ResponseWriter, r *http.Request) {
	var req RetrieveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	if req.Query == "" {
		respondError(w, http.StatusBadRequest, "query is required", nil)
		return
	}
	if req.BotID == "" {
		respondError(w, http.StatusBadRequest, "botId is required", nil)
		return
	}
	if req.UserID == "" {
		respondError(w, http.StatusBadRequest, "userId is required", nil)
		return
	}

	opts := retrieval.Options{
		TopK:              req.TopK,
		IncludeCategories: req.IncludeCategories,
	}
	if req.MinSimilarity != nil {
		opts.MinSimilarity = *req.MinSimilarity
		opts.MinSimilaritySet = true
	}

	ragContext := h.engine.Retrieve(r.Context(), req.BotID, req.UserID, req.Query, opts)
	respondJSON(w, http.StatusOK, ragContext)
}
