package handlers

import (
	"context"
	"net/http"

	"github.com/parleyhq/parley/internal/preferences"
)

// PreferenceService is the slice of the preference service the handlers use.
type PreferenceService interface {
	List(ctx context.Context, userID string) (*preferences.GroupedPreferences, error)
	Delete(ctx context.Context, id string) error
}

// PreferenceHandlers contains HTTP handlers for the user preference API.
type PreferenceHandlers struct {
	service PreferenceService
}

// NewPreferenceHandlers creates a new PreferenceHandlers instance.
func NewPreferenceHandlers(service PreferenceService) *PreferenceHandlers {
	return &PreferenceHandlers{service: service}
}

// ListPreferences handles GET /api/preferences/{userId} - list a user's
// preferences grouped by source, with summary statistics.
func (h *PreferenceHandlers) ListPreferences(w http.ResponseWriter, r *http.Request) {
	userID := extractID(r, "userId")
	if userID == "" {
		respondError(w, http.StatusBadRequest, "user ID is required", nil)
		return
	}

	grouped, err := h.service.List(r.Context(), userID)
	if err != nil {
		respondStorageError(w, "failed to list preferences", err)
		return
	}

	respondJSON(w, http.StatusOK, grouped)
}

// DeletePreference handles DELETE /api/preferences/{id}.
func (h *PreferenceHandlers) DeletePreference(w http.ResponseWriter, r *http.Request) {
	id := extractID(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "preference ID is required", nil)
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		respondStorageError(w, "failed to delete preference", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
