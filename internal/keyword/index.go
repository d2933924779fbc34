// Package keyword suggests catalog titles for partial or misspelled queries.
package keyword

import "context"

// Suggester finds catalog titles close to a free-text query.
// Suggestions are hints only; recommendation lookup stays exact.
type Suggester interface {
	Suggest(ctx context.Context, query string, limit int) ([]Suggestion, error)
	Close() error
}

// Suggestion is a candidate title for a query.
type Suggestion struct {
	Index int     `json:"id"`
	Title string  `json:"title"`
	Score float64 `json:"score"`
	// Distance is the edit distance between the normalized query and title.
	Distance int `json:"distance"`
}
