package models

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// MaxTitleLength bounds the query title accepted from callers.
const MaxTitleLength = 512

var validate = validator.New()

// RecommendRequest is the inbound body for a recommendation request.
type RecommendRequest struct {
	Movie string `json:"movie" validate:"max=512"`
}

// Validate trims the title and checks field constraints.
// An empty title is valid here; it resolves to "not found" like any unknown title.
func (r *RecommendRequest) Validate() error {
	r.Movie = strings.TrimSpace(r.Movie)
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("invalid recommend request: %w", err)
	}
	return nil
}

// Recommendation is one enriched, ranked result.
type Recommendation struct {
	Title     string `json:"title"`
	Poster    string `json:"poster"`
	SearchURL string `json:"search_url"`
}

// NotFoundResponse is returned when the query title is not in the catalog.
type NotFoundResponse struct {
	Error       string           `json:"error"`
	Results     []Recommendation `json:"results"`
	Suggestions []string         `json:"suggestions,omitempty"`
}
