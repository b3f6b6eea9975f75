// Package types defines the core domain types shared across the Parley system.
package types

import (
	"fmt"
	"time"
)

// KnowledgeCategory classifies a knowledge entry. The set is closed:
// entries outside these three categories are rejected at the boundary.
type KnowledgeCategory string

const (
	// CategoryProductInfo holds product descriptions, pricing, and feature facts.
	CategoryProductInfo KnowledgeCategory = "product_info"

	// CategoryBusinessRules holds policies the bot must follow when answering.
	CategoryBusinessRules KnowledgeCategory = "business_rules"

	// CategoryInstructions holds tone and behavior guidelines for the bot.
	CategoryInstructions KnowledgeCategory = "instructions"
)

// KnowledgeCategories returns the closed set of valid categories in their
// canonical order. The order matters: it is the presentation order used when
// retrieval results are formatted into context.
func KnowledgeCategories() []KnowledgeCategory {
	return []KnowledgeCategory{
		CategoryProductInfo,
		CategoryBusinessRules,
		CategoryInstructions,
	}
}

// Valid reports whether c is one of the three known categories.
func (c KnowledgeCategory) Valid() bool {
	switch c {
	case CategoryProductInfo, CategoryBusinessRules, CategoryInstructions:
		return true
	}
	return false
}

// KnowledgeEntry is a single unit of bot knowledge. Entries are scoped to a
// bot: all reads and writes carry a bot ID and never cross it.
type KnowledgeEntry struct {
	// ID is the unique identifier (UUID).
	ID string `json:"id"`

	// BotID scopes the entry to a single bot.
	BotID string `json:"botId"`

	// Category is one of the closed KnowledgeCategory values.
	Category KnowledgeCategory `json:"category"`

	// Title is a short human-readable label (3-200 characters).
	Title string `json:"title"`

	// Content is the knowledge text itself (at least 10 characters).
	Content string `json:"content"`

	// Embedding is the content's vector representation. It is nil until
	// computed; entries with a nil embedding are invisible to vector search.
	Embedding []float32 `json:"-"`

	// Metadata is an opaque bag the system stores and returns verbatim.
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

const (
	minTitleLen   = 3
	maxTitleLen   = 200
	minContentLen = 10
)

// Validate checks the boundary constraints for a knowledge entry.
// It returns a descriptive error for the first violated constraint.
func (e *KnowledgeEntry) Validate() error {
	if e.BotID == "" {
		return fmt.Errorf("bot ID is required")
	}
	if !e.Category.Valid() {
		return fmt.Errorf("invalid category %q: must be product_info, business_rules, or instructions", e.Category)
	}
	if len(e.Title) < minTitleLen || len(e.Title) > maxTitleLen {
		return fmt.Errorf("title must be between %d and %d characters", minTitleLen, maxTitleLen)
	}
	if len(e.Content) < minContentLen {
		return fmt.Errorf("content must be at least %d characters", minContentLen)
	}
	return nil
}

// KnowledgeUpdate carries a partial update for an existing entry.
// Nil fields are left untouched.
type KnowledgeUpdate struct {
	Title    *string                 `json:"title,omitempty"`
	Content  *string                 `json:"content,omitempty"`
	Metadata *map[string]interface{} `json:"metadata,omitempty"`
}

// Empty reports whether the update changes nothing.
func (u *KnowledgeUpdate) Empty() bool {
	return u.Title == nil && u.Content == nil && u.Metadata == nil
}
