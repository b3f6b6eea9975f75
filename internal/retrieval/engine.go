// Package retrieval implements the RAG pipeline: embed the query, fan out
// similarity searches across knowledge categories and user preferences,
// merge and rank the results, and format them for prompt injection.
package retrieval

import (
	"context"
	"log"
	"sort"
	"sync"

	"github.com/parleyhq/parley/internal/storage"
	"github.com/parleyhq/parley/pkg/types"
)

const (
	// PreferenceCategory is the pseudo-category callers use to include
	// user preferences alongside the knowledge categories.
	PreferenceCategory = "user_preferences"

	// DefaultTopK is the overall result cap after merging.
	DefaultTopK = 7

	// DefaultMinSimilarity filters out weak matches after merging.
	DefaultMinSimilarity = 0.3
)

// Embedder is the slice of the embedding API the engine needs.
type Embedder interface {
	EmbedWithRetry(ctx context.Context, text string) ([]float32, error)
}

// Options tune a single retrieval. Zero values take the defaults.
type Options struct {
	// TopK caps the merged result count (default 7).
	TopK int

	// MinSimilarity drops results scoring below it (default 0.3).
	MinSimilarity float64

	// MinSimilaritySet distinguishes an explicit 0 from an unset value.
	MinSimilaritySet bool

	// IncludeCategories names the partitions to search: knowledge
	// categories and/or PreferenceCategory. Empty means all of them.
	IncludeCategories []string
}

// DefaultCategories returns the full partition list searched when the
// caller doesn't restrict categories.
func DefaultCategories() []string {
	cats := make([]string, 0, 4)
	for _, c := range types.KnowledgeCategories() {
		cats = append(cats, string(c))
	}
	return append(cats, PreferenceCategory)
}

func (o *Options) normalize() {
	if o.TopK <= 0 {
		o.TopK = DefaultTopK
	}
	if !o.MinSimilaritySet && o.MinSimilarity == 0 {
		o.MinSimilarity = DefaultMinSimilarity
	}
	if len(o.IncludeCategories) == 0 {
		o.IncludeCategories = DefaultCategories()
	}
}

// Engine runs retrievals against the knowledge and preference stores.
type Engine struct {
	embedder    Embedder
	knowledge   storage.KnowledgeStore
	preferences storage.PreferenceStore
	logger      *log.Logger
}

// NewEngine creates a retrieval engine. A nil logger falls back to the
// standard logger.
func NewEngine(embedder Embedder, knowledge storage.KnowledgeStore, preferences storage.PreferenceStore, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{
		embedder:    embedder,
		knowledge:   knowledge,
		preferences: preferences,
		logger:      logger,
	}
}

// Retrieve assembles the RAG context for one user message. It never returns
// an error: retrieval failures degrade to the safe empty context so the
// chat pipeline keeps working without a knowledge base, without embeddings,
// or mid-outage. Failures are logged.
func (e *Engine) Retrieve(ctx context.Context, botID, userID, query string, opts Options) *types.RAGContext {
	opts.normalize()

	queryVec, err := e.embedder.EmbedWithRetry(ctx, query)
	if err != nil {
		e.logger.Printf("retrieval: query embedding failed for bot %s: %v", botID, err)
		return emptyContext()
	}

	// Per-partition quota: searching ceil(topK/partitions) in each keeps a
	// strong category from crowding out the others before the merge.
	quota := (opts.TopK + len(opts.IncludeCategories) - 1) / len(opts.IncludeCategories)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		merged  []types.SearchResult
		partErr error
	)

	for _, category := range opts.IncludeCategories {
		wg.Add(1)
		go func(category string) {
			defer wg.Done()

			var (
				results []types.SearchResult
				err     error
			)
			if category == PreferenceCategory {
				results, err = e.preferences.Search(ctx, userID, queryVec, quota)
			} else {
				results, err = e.knowledge.Search(ctx, botID, queryVec, storage.SearchOptions{
					Category: category,
					Limit:    quota,
				})
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if partErr == nil {
					partErr = err
				}
				return
			}
			merged = append(merged, results...)
		}(category)
	}
	wg.Wait()

	if partErr != nil {
		e.logger.Printf("retrieval: search failed for bot %s: %v", botID, partErr)
		return emptyContext()
	}

	// Filter, rank, truncate.
	filtered := merged[:0]
	for _, r := range merged {
		if r.Similarity >= opts.MinSimilarity {
			filtered = append(filtered, r)
		}
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		if filtered[i].Similarity != filtered[j].Similarity {
			return filtered[i].Similarity > filtered[j].Similarity
		}
		return filtered[i].ID < filtered[j].ID
	})

	if len(filtered) > opts.TopK {
		filtered = filtered[:opts.TopK]
	}

	return &types.RAGContext{
		Results:          filtered,
		FormattedContext: FormatContext(filtered),
		TotalResults:     len(filtered),
		Categories:       countCategories(filtered),
	}
}

// emptyContext is the graceful degradation result: no items, zero counts,
// and the safe formatted placeholder.
func emptyContext() *types.RAGContext {
	return &types.RAGContext{
		Results:          []types.SearchResult{},
		FormattedContext: EmptyContext,
		TotalResults:     0,
		Categories:       types.CategoryCounts{},
	}
}

func countCategories(results []types.SearchResult) types.CategoryCounts {
	var counts types.CategoryCounts
	for _, r := range results {
		switch {
		case r.IsPreference():
			counts.UserPreferences++
		case r.Category == string(types.CategoryProductInfo):
			counts.ProductInfo++
		case r.Category == string(types.CategoryBusinessRules):
			counts.BusinessRules++
		case r.Category == string(types.CategoryInstructions):
			counts.Instructions++
		}
	}
	return counts
}
