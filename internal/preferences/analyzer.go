package preferences

import (
	"regexp"
	"strings"
	"time"

	"github.com/parleyhq/parley/pkg/types"
)

const (
	// analysisWindow is how many recent messages feed a pattern analysis.
	analysisWindow = 30

	// minMessages and minUserMessages gate the analysis: with less history
	// the ratios below are noise.
	minMessages     = 10
	minUserMessages = 5
)

// questionStart matches messages phrased as questions without a question mark.
var questionStart = regexp.MustCompile(`(?i)^(what|how|why|when|where|who|can|could|would|should)\b`)

// casualWords are markers of an informal register.
var casualWords = []string{"yeah", "yep", "yup", "gonna", "wanna", "kinda", "lol", "haha"}

// AnalyzePatterns infers style preferences from a user's recent messages.
// The input is the recent message window in chronological order; only
// messages sent by userID are analysed. Inferred preferences carry lower
// confidence than explicit statements since they rest on ratios, not words.
func AnalyzePatterns(messages []types.ChatMessage, userID string) []ExtractedPreference {
	if len(messages) > analysisWindow {
		messages = messages[len(messages)-analysisWindow:]
	}

	var userMsgs []types.ChatMessage
	for _, m := range messages {
		if m.SenderID == userID {
			userMsgs = append(userMsgs, m)
		}
	}

	if len(messages) < minMessages || len(userMsgs) < minUserMessages {
		return nil
	}

	var out []ExtractedPreference

	// Message length says brief vs detailed.
	var totalLen int
	for _, m := range userMsgs {
		totalLen += len(m.Content)
	}
	avgLen := float64(totalLen) / float64(len(userMsgs))

	if avgLen < 50 {
		out = append(out, ExtractedPreference{"prefers brief, concise responses", 0.7})
	} else if avgLen > 150 {
		out = append(out, ExtractedPreference{"prefers detailed, comprehensive responses", 0.7})
	}

	// Question ratio says curious vs directive.
	questions := 0
	for _, m := range userMsgs {
		if strings.Contains(m.Content, "?") || questionStart.MatchString(strings.TrimSpace(m.Content)) {
			questions++
		}
	}
	if float64(questions)/float64(len(userMsgs)) > 0.7 {
		out = append(out, ExtractedPreference{"likes to ask many questions and learn details", 0.75})
	}

	// Register: casual markers vs their absence in longer messages.
	casual := 0
	for _, m := range userMsgs {
		lower := strings.ToLower(m.Content)
		for _, w := range casualWords {
			if strings.Contains(lower, w) {
				casual++
				break
			}
		}
	}
	casualRatio := float64(casual) / float64(len(userMsgs))

	if casualRatio > 0.4 {
		out = append(out, ExtractedPreference{"prefers casual, friendly conversation style", 0.65})
	} else if casualRatio < 0.1 && avgLen > 80 {
		out = append(out, ExtractedPreference{"prefers formal, professional communication", 0.65})
	}

	// Rapid-fire messaging says the user values speed.
	if len(userMsgs) >= 2 {
		var totalGap time.Duration
		for i := 1; i < len(userMsgs); i++ {
			totalGap += userMsgs[i].CreatedAt.Sub(userMsgs[i-1].CreatedAt)
		}
		avgGap := totalGap / time.Duration(len(userMsgs)-1)
		if avgGap < 30*time.Second {
			out = append(out, ExtractedPreference{"expects quick responses, values speed", 0.6})
		}
	}

	return out
}
