package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/parleyhq/parley/internal/storage"
	"github.com/parleyhq/parley/pkg/types"
)

// MockKnowledgeService is a mock implementation of KnowledgeService.
type MockKnowledgeService struct {
	mock.Mock
}

func (m *MockKnowledgeService) Create(ctx context.Context, entry *types.KnowledgeEntry) (*types.KnowledgeEntry, error) {
	args := m.Called(ctx, entry)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.KnowledgeEntry), args.Error(1)
}

func (m *MockKnowledgeService) Get(ctx context.Context, botID, id string) (*types.KnowledgeEntry, error) {
	args := m.Called(ctx, botID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.KnowledgeEntry), args.Error(1)
}

func (m *MockKnowledgeService) Update(ctx context.Context, botID, id string, update types.KnowledgeUpdate) (*types.KnowledgeEntry, error) {
	args := m.Called(ctx, botID, id, update)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.KnowledgeEntry), args.Error(1)
}

func (m *MockKnowledgeService) Delete(ctx context.Context, botID, id string) error {
	args := m.Called(ctx, botID, id)
	return args.Error(0)
}

func (m *MockKnowledgeService) List(ctx context.Context, botID string, category types.KnowledgeCategory) ([]types.KnowledgeEntry, error) {
	args := m.Called(ctx, botID, category)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.KnowledgeEntry), args.Error(1)
}

func newKnowledgeMux(h *KnowledgeHandlers) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/knowledge", h.ListKnowledge)
	mux.HandleFunc("POST /api/knowledge", h.CreateKnowledge)
	mux.HandleFunc("GET /api/knowledge/{id}", h.GetKnowledge)
	mux.HandleFunc("PUT /api/knowledge/{id}", h.UpdateKnowledge)
	mux.HandleFunc("DELETE /api/knowledge/{id}", h.DeleteKnowledge)
	return mux
}

func TestCreateKnowledge(t *testing.T) {
	svc := new(MockKnowledgeService)
	created := &types.KnowledgeEntry{ID: "k1", BotID: "bot-1", Category: types.CategoryProductInfo, Title: "Pricing", Content: "The pro plan costs $20."}
	svc.On("Create", mock.Anything, mock.MatchedBy(func(e *types.KnowledgeEntry) bool {
		return e.BotID == "bot-1" && e.Category == types.CategoryProductInfo && e.Title == "Pricing"
	})).Return(created, nil)

	body, _ := json.Marshal(CreateKnowledgeRequest{
		BotID: "bot-1", Category: "product_info", Title: "Pricing", Content: "The pro plan costs $20.",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/knowledge", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	newKnowledgeMux(NewKnowledgeHandlers(svc)).ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var got types.KnowledgeEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "k1", got.ID)
	svc.AssertExpectations(t)
}

func TestCreateKnowledge_ValidationError(t *testing.T) {
	svc := new(MockKnowledgeService)
	svc.On("Create", mock.Anything, mock.Anything).Return(nil, storage.ErrInvalidInput)

	body, _ := json.Marshal(CreateKnowledgeRequest{BotID: "bot-1", Category: "nonsense", Title: "x", Content: "y"})
	req := httptest.NewRequest(http.MethodPost, "/api/knowledge", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	newKnowledgeMux(NewKnowledgeHandlers(svc)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetKnowledge_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", storage.ErrNotFound, http.StatusNotFound},
		{"forbidden", storage.ErrForbidden, http.StatusForbidden},
		{"internal", assert.AnError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockKnowledgeService)
			svc.On("Get", mock.Anything, "bot-1", "k1").Return(nil, tt.err)

			req := httptest.NewRequest(http.MethodGet, "/api/knowledge/k1?bot_id=bot-1", nil)
			rec := httptest.NewRecorder()
			newKnowledgeMux(NewKnowledgeHandlers(svc)).ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestGetKnowledge_RequiresBotID(t *testing.T) {
	svc := new(MockKnowledgeService)
	req := httptest.NewRequest(http.MethodGet, "/api/knowledge/k1", nil)
	rec := httptest.NewRecorder()
	newKnowledgeMux(NewKnowledgeHandlers(svc)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNotCalled(t, "Get")
}

func TestGetKnowledge_BotIDFromHeader(t *testing.T) {
	svc := new(MockKnowledgeService)
	entry := &types.KnowledgeEntry{ID: "k1", BotID: "bot-1"}
	svc.On("Get", mock.Anything, "bot-1", "k1").Return(entry, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/knowledge/k1", nil)
	req.Header.Set("X-Bot-ID", "bot-1")
	rec := httptest.NewRecorder()
	newKnowledgeMux(NewKnowledgeHandlers(svc)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	svc.AssertExpectations(t)
}

func TestListKnowledge(t *testing.T) {
	svc := new(MockKnowledgeService)
	entries := []types.KnowledgeEntry{{ID: "k1"}, {ID: "k2"}}
	svc.On("List", mock.Anything, "bot-1", types.CategoryInstructions).Return(entries, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/knowledge?bot_id=bot-1&category=instructions", nil)
	rec := httptest.NewRecorder()
	newKnowledgeMux(NewKnowledgeHandlers(svc)).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Entries []types.KnowledgeEntry `json:"entries"`
		Total   int                    `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Total)
}

func TestListKnowledge_RejectsUnknownCategory(t *testing.T) {
	svc := new(MockKnowledgeService)
	req := httptest.NewRequest(http.MethodGet, "/api/knowledge?bot_id=bot-1&category=gossip", nil)
	rec := httptest.NewRecorder()
	newKnowledgeMux(NewKnowledgeHandlers(svc)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNotCalled(t, "List")
}

func TestUpdateKnowledge(t *testing.T) {
	svc := new(MockKnowledgeService)
	updated := &types.KnowledgeEntry{ID: "k1", Title: "New title"}
	svc.On("Update", mock.Anything, "bot-1", "k1", mock.MatchedBy(func(u types.KnowledgeUpdate) bool {
		return u.Title != nil && *u.Title == "New title" && u.Content == nil
	})).Return(updated, nil)

	body := []byte(`{"title":"New title"}`)
	req := httptest.NewRequest(http.MethodPut, "/api/knowledge/k1?bot_id=bot-1", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	newKnowledgeMux(NewKnowledgeHandlers(svc)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	svc.AssertExpectations(t)
}

func TestDeleteKnowledge(t *testing.T) {
	svc := new(MockKnowledgeService)
	svc.On("Delete", mock.Anything, "bot-1", "k1").Return(nil)

	req := httptest.NewRequest(http.MethodDelete, "/api/knowledge/k1?bot_id=bot-1", nil)
	rec := httptest.NewRecorder()
	newKnowledgeMux(NewKnowledgeHandlers(svc)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	svc.AssertExpectations(t)
}

func TestDeleteKnowledge_Forbidden(t *testing.T) {
	svc := new(MockKnowledgeService)
	svc.On("Delete", mock.Anything, "bot-2", "k1").Return(storage.ErrForbidden)

	req := httptest.NewRequest(http.MethodDelete, "/api/knowledge/k1?bot_id=bot-2", nil)
	rec := httptest.NewRecorder()
	newKnowledgeMux(NewKnowledgeHandlers(svc)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}
