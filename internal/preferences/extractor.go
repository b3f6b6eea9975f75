// Package preferences learns user preferences from chat traffic, two ways:
// explicit statements pulled out of individual messages, and style patterns
// inferred from recent conversation history.
package preferences

import (
	"fmt"
	"regexp"
	"strings"
)

// ExtractedPreference is a candidate preference before persistence.
type ExtractedPreference struct {
	Text       string
	Confidence float64
}

// extractionPatterns match first-person preference statements. The capture
// runs to the end of the sentence. Direct statements carry full confidence;
// wants and habits are weaker signals.
var extractionPatterns = []struct {
	re         *regexp.Regexp
	format     string
	confidence float64
}{
	{regexp.MustCompile(`(?i)\bi(?:'d| would)? prefer ([^.!?]+)`), "prefers %s", 1.0},
	{regexp.MustCompile(`(?i)\bi (?:like|love|enjoy) ([^.!?]+)`), "likes %s", 1.0},
	{regexp.MustCompile(`(?i)\bi (?:don't like|do not like|hate|dislike) ([^.!?]+)`), "doesn't like %s", 1.0},
	{regexp.MustCompile(`(?i)\bi (?:want|need) ([^.!?]+)`), "wants %s", 0.9},
	{regexp.MustCompile(`(?i)\bi (?:always|usually|typically) ([^.!?]+)`), "typically %s", 0.85},
}

// trailingConjunction strips a dangling connective left behind when the
// capture swallowed the start of a dependent clause.
var trailingConjunction = regexp.MustCompile(`(?i)\s+(and|but|or|so|because|that|when|where)\s*$`)

// questionOpener rejects captures that are actually questions or greetings
// rather than statements about the user.
var questionOpener = regexp.MustCompile(`(?i)^(what|how|why|when|where|who|hello|hi|hey)\b`)

// ExtractExplicit finds explicit preference statements in a single message.
// Multiple statements in one message all get extracted.
func ExtractExplicit(message string) []ExtractedPreference {
	var out []ExtractedPreference

	for _, p := range extractionPatterns {
		for _, match := range p.re.FindAllStringSubmatch(message, -1) {
			cleaned, ok := cleanPreference(match[1])
			if !ok {
				continue
			}
			out = append(out, ExtractedPreference{
				Text:       fmt.Sprintf(p.format, cleaned),
				Confidence: p.confidence,
			})
		}
	}

	return out
}

// cleanPreference normalises a captured phrase and rejects captures too
// short, too long, or not actually about the user.
func cleanPreference(raw string) (string, bool) {
	cleaned := strings.Join(strings.Fields(raw), " ")
	cleaned = trailingConjunction.ReplaceAllString(cleaned, "")

	if len(cleaned) < 5 || len(cleaned) > 200 {
		return "", false
	}
	if questionOpener.MatchString(cleaned) {
		return "", false
	}

	return cleaned, true
}
