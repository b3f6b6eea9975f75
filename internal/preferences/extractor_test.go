package preferences

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func extractTexts(message string) []string {
	var out []string
	for _, p := range ExtractExplicit(message) {
		out = append(out, p.Text)
	}
	return out
}

func TestExtractExplicit_Statements(t *testing.T) {
	tests := []struct {
		message        string
		wantText       string
		wantConfidence float64
	}{
		{"I prefer dark roast coffee.", "prefers dark roast coffee", 1.0},
		{"I'd prefer the window seat!", "prefers the window seat", 1.0},
		{"I would prefer email over phone calls.", "prefers email over phone calls", 1.0},
		{"I like hiking on weekends.", "likes hiking on weekends", 1.0},
		{"I love italian food", "likes italian food", 1.0},
		{"I enjoy reading mystery novels.", "likes reading mystery novels", 1.0},
		{"I don't like spicy food.", "doesn't like spicy food", 1.0},
		{"I hate waiting in lines.", "doesn't like waiting in lines", 1.0},
		{"I dislike loud music.", "doesn't like loud music", 1.0},
		{"I want faster shipping.", "wants faster shipping", 0.9},
		{"I need a bigger size.", "wants a bigger size", 0.9},
		{"I always order the same thing.", "typically order the same thing", 0.85},
		{"I usually shop in the evening.", "typically shop in the evening", 0.85},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			prefs := ExtractExplicit(tt.message)
			require.Len(t, prefs, 1)
			assert.Equal(t, tt.wantText, prefs[0].Text)
			assert.Equal(t, tt.wantConfidence, prefs[0].Confidence)
		})
	}
}

func TestExtractExplicit_CaseInsensitive(t *testing.T) {
	assert.Equal(t, []string{"prefers DARK roast"}, extractTexts("I PREFER DARK roast."))
}

func TestExtractExplicit_MultipleStatements(t *testing.T) {
	texts := extractTexts("I like hiking. I don't like crowds.")
	assert.Contains(t, texts, "likes hiking")
	assert.Contains(t, texts, "doesn't like crowds")
}

func TestExtractExplicit_CaptureStopsAtSentenceEnd(t *testing.T) {
	texts := extractTexts("I prefer tea in the morning. The weather is nice today.")
	assert.Equal(t, []string{"prefers tea in the morning"}, texts)
}

func TestExtractExplicit_NoMatch(t *testing.T) {
	for _, message := range []string{
		"The weather is nice today.",
		"Can you help me with my order?",
		"She prefers window seats.",
		"",
	} {
		assert.Empty(t, ExtractExplicit(message), "message: %q", message)
	}
}

func TestCleanPreference_StripsTrailingConjunction(t *testing.T) {
	texts := extractTexts("I like long walks and")
	assert.Equal(t, []string{"likes long walks"}, texts)
}

func TestCleanPreference_RejectsTooShort(t *testing.T) {
	assert.Empty(t, ExtractExplicit("I like it."))
}

func TestCleanPreference_RejectsTooLong(t *testing.T) {
	long := "I prefer " + strings.Repeat("very ", 50) + "long descriptions"
	assert.Empty(t, ExtractExplicit(long))
}

func TestCleanPreference_RejectsQuestionOpeners(t *testing.T) {
	// "I like how..." reads like commentary, not a preference.
	assert.Empty(t, ExtractExplicit("I like how this works"))
	assert.Empty(t, ExtractExplicit("I want what she ordered"))
}

func TestCleanPreference_CollapsesWhitespace(t *testing.T) {
	texts := extractTexts("I prefer   dark \t roast   coffee.")
	assert.Equal(t, []string{"prefers dark roast coffee"}, texts)
}
