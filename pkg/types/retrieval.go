package types

// PreferenceResultTitle is the fixed Title carried by search results that
// originate from the preference store. The retrieval layer uses it to tell
// preference hits apart from knowledge hits, since preference results reuse
// the Category field for their source.
const PreferenceResultTitle = "User Preference"

// SearchResult is a single similarity-search hit, from either the knowledge
// store or the preference store.
//
// For knowledge hits, Category is the knowledge category and Title/Content
// come from the entry. For preference hits, Category carries the preference
// source ("explicit" or "pattern_analysis"), Title is PreferenceResultTitle,
// Content is the preference text, and Metadata carries the confidence.
type SearchResult struct {
	ID         string                 `json:"id"`
	Category   string                 `json:"category"`
	Title      string                 `json:"title"`
	Content    string                 `json:"content"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	Similarity float64                `json:"similarity"`
}

// IsPreference reports whether the result came from the preference store.
func (r *SearchResult) IsPreference() bool {
	return r.Title == PreferenceResultTitle
}

// CategoryCounts breaks down a retrieval result set by partition.
type CategoryCounts struct {
	ProductInfo     int `json:"product_info"`
	BusinessRules   int `json:"business_rules"`
	Instructions    int `json:"instructions"`
	UserPreferences int `json:"user_preferences"`
}

// RAGContext is the assembled retrieval output handed to the completion
// layer. It is always well-formed: on any retrieval failure the engine
// returns an empty context rather than an error.
type RAGContext struct {
	Results          []SearchResult `json:"results"`
	FormattedContext string         `json:"formattedContext"`
	TotalResults     int            `json:"totalResults"`
	Categories       CategoryCounts `json:"categories"`
}
