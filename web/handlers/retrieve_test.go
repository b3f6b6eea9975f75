package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parleyhq/parley/internal/retrieval"
	"github.com/parleyhq/parley/pkg/types"
)

type stubRetriever struct {
	gotBotID  string
	gotUserID string
	gotQuery  string
	gotOpts   retrieval.Options
	result    *types.RAGContext
}

func (s *stubRetriever) Retrieve(ctx context.Context, botID, userID, query string, opts retrieval.Options) *types.RAGContext {
	s.gotBotID = botID
	s.gotUserID = userID
	s.gotQuery = query
	s.gotOpts = opts
	return s.result
}

func postRetrieve(t *testing.T, h *RetrieveHandlers, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/retrieve", bytes.NewReader(data))
	rec := httptest.NewRecorder()
	h.Retrieve(rec, req)
	return rec
}

func TestRetrieve(t *testing.T) {
	stub := &stubRetriever{result: &types.RAGContext{
		FormattedContext: "PRODUCT INFORMATION:\n1. Pricing (90% relevant)\n   $20/month.",
		TotalResults:     1,
	}}
	h := NewRetrieveHandlers(stub)

	minSim := 0.5
	rec := postRetrieve(t, h, RetrieveRequest{
		Query:             "how much is the pro plan",
		UserID:            "user-1",
		BotID:             "bot-1",
		TopK:              5,
		MinSimilarity:     &minSim,
		IncludeCategories: []string{"product_info"},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "bot-1", stub.gotBotID)
	assert.Equal(t, "user-1", stub.gotUserID)
	assert.Equal(t, "how much is the pro plan", stub.gotQuery)
	assert.Equal(t, 5, stub.gotOpts.TopK)
	assert.True(t, stub.gotOpts.MinSimilaritySet)
	assert.InDelta(t, 0.5, stub.gotOpts.MinSimilarity, 1e-9)
	assert.Equal(t, []string{"product_info"}, stub.gotOpts.IncludeCategories)

	var got types.RAGContext
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 1, got.TotalResults)
}

func TestRetrieve_ExplicitZeroFloor(t *testing.T) {
	stub := &stubRetriever{result: &types.RAGContext{}}
	h := NewRetrieveHandlers(stub)

	zero := 0.0
	rec := postRetrieve(t, h, RetrieveRequest{Query: "q", UserID: "u", BotID: "b", MinSimilarity: &zero})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, stub.gotOpts.MinSimilaritySet)
	assert.Zero(t, stub.gotOpts.MinSimilarity)
}

func TestRetrieve_AbsentFloorUsesDefault(t *testing.T) {
	stub := &stubRetriever{result: &types.RAGContext{}}
	h := NewRetrieveHandlers(stub)

	rec := postRetrieve(t, h, RetrieveRequest{Query: "q", UserID: "u", BotID: "b"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, stub.gotOpts.MinSimilaritySet)
}

func TestRetrieve_MissingFields(t *testing.T) {
	tests := []struct {
		name string
		req  RetrieveRequest
	}{
		{"no query", RetrieveRequest{UserID: "u", BotID: "b"}},
		{"no bot", RetrieveRequest{Query: "q", UserID: "u"}},
		{"no user", RetrieveRequest{Query: "q", BotID: "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubRetriever{result: &types.RAGContext{}}
			rec := postRetrieve(t, NewRetrieveHandlers(stub), tt.req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Empty(t, stub.gotQuery)
		})
	}
}

func TestRetrieve_BadBody(t *testing.T) {
	h := NewRetrieveHandlers(&stubRetriever{result: &types.RAGContext{}})
	req := httptest.NewRequest(http.MethodPost, "/api/retrieve", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	h.Retrieve(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
