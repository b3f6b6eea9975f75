package types

import "time"

// PreferenceSource records how a user preference was obtained.
type PreferenceSource string

const (
	// SourceExplicit marks preferences stated directly by the user
	// ("I prefer short answers").
	SourceExplicit PreferenceSource = "explicit"

	// SourcePatternAnalysis marks preferences inferred from conversation
	// behavior (message length, question frequency, formality).
	SourcePatternAnalysis PreferenceSource = "pattern_analysis"
)

// UserPreferenceEntry is a learned preference scoped to a single user.
// Preferences are immutable once stored; refinement happens by inserting
// new entries, with duplicate suppression at the extraction layer.
type UserPreferenceEntry struct {
	// ID is the unique identifier (UUID).
	ID string `json:"id"`

	// UserID scopes the preference to a single user.
	UserID string `json:"userId"`

	// Preference is the normalized preference statement
	// (e.g. "prefers brief, concise responses").
	Preference string `json:"preference"`

	// Source is explicit or pattern_analysis.
	Source PreferenceSource `json:"source"`

	// Confidence is in [0, 1]. Explicit statements carry 1.0 (0.9 for
	// want/need forms); inferred patterns carry 0.6-0.75.
	Confidence float64 `json:"confidence"`

	// Embedding is the preference text's vector representation.
	Embedding []float32 `json:"-"`

	CreatedAt time.Time `json:"createdAt"`
}
