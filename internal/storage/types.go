package storage

import "errors"

var (
	// ErrNotFound indicates that the requested resource was not found.
	ErrNotFound = errors.New("resource not found")

	// ErrForbidden indicates that the resource exists but belongs to a
	// different owner. Callers must check existence first so that this is
	// only returned for entries the caller could otherwise see exist.
	ErrForbidden = errors.New("resource belongs to a different owner")

	// ErrInvalidInput indicates that the input parameters are invalid.
	ErrInvalidInput = errors.New("invalid input")
)

const (
	// DefaultSearchLimit is the result cap applied when a caller passes a
	// non-positive limit.
	DefaultSearchLimit = 5

	// MaxSearchLimit bounds a single similarity search.
	MaxSearchLimit = 100
)

// SearchOptions configures a knowledge similarity search.
type SearchOptions struct {
	// Category restricts the search to one knowledge category.
	// Empty string searches all categories.
	Category string

	// Limit is the maximum number of results (default: 5, max: 100).
	Limit int
}

// Normalize applies defaults and bounds to the SearchOptions.
func (o *SearchOptions) Normalize() {
	if o.Limit < 1 {
		o.Limit = DefaultSearchLimit
	}
	if o.Limit > MaxSearchLimit {
		o.Limit = MaxSearchLimit
	}
}
