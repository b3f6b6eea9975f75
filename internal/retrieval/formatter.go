package retrieval

import (
	"fmt"
	"math"
	"strings"

	"github.com/parleyhq/parley/pkg/types"
)

// EmptyContext is the formatted output when retrieval produced nothing
// usable. Callers inject it into prompts verbatim, so it reads as an
// instruction to the model rather than an error.
const EmptyContext = "No relevant context found."

// section pairs a context header with the category whose results fill it.
type section struct {
	header   string
	category string
}

// sections fixes both the headers and their order. Output order is stable
// regardless of result similarity, so prompts keep a predictable shape.
var sections = []section{
	{"PRODUCT INFORMATION:\n", string(types.CategoryProductInfo)},
	{"BUSINESS RULES:\n", string(types.CategoryBusinessRules)},
	{"INSTRUCTIONS:\n", string(types.CategoryInstructions)},
}

// FormatContext renders ranked results into the text block injected into
// the bot's system prompt. Knowledge sections come first in fixed order,
// then user preferences. Item numbering restarts in each section.
func FormatContext(results []types.SearchResult) string {
	if len(results) == 0 {
		return EmptyContext
	}

	var sb strings.Builder

	for _, sec := range sections {
		n := 0
		for _, r := range results {
			if r.IsPreference() || r.Category != sec.category {
				continue
			}
			if n == 0 {
				sb.WriteString(sec.header)
			}
			n++
			percent := int(math.Round(r.Similarity * 100))
			sb.WriteString(fmt.Sprintf("%d. %s (%d%% relevant)\n   %s\n\n", n, r.Title, percent, r.Content))
		}
	}

	n := 0
	for _, r := range results {
		if !r.IsPreference() {
			continue
		}
		if n == 0 {
			sb.WriteString("USER PREFERENCES:\n")
		}
		n++
		sb.WriteString(fmt.Sprintf("%d. %s [%s]\n", n, r.Content, sourceLabel(r.Category)))
	}
	if n > 0 {
		sb.WriteString("\n")
	}

	formatted := strings.TrimSpace(sb.String())
	if formatted == "" {
		return EmptyContext
	}
	return formatted
}

// sourceLabel maps a preference source to its prompt label: preferences the
// user stated outright read "stated", everything else "inferred".
func sourceLabel(source string) string {
	if source == string(types.SourceExplicit) {
		return "stated"
	}
	return "inferred"
}
