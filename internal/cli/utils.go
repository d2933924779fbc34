// Package cli provides CLI utilities for Osusume.
package cli

import (
	"fmt"
	"io"

	"github.com/goccy/go-json"

	"github.com/hyperjump/osusume/internal/keyword"
	"github.com/hyperjump/osusume/internal/models"
	"github.com/hyperjump/osusume/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputCompact is one result per line, tab separated.
	OutputCompact OutputFormat = "compact"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// compactTitleWidth bounds titles in compact output so columns stay aligned.
const compactTitleWidth = 60

// ParseOutputFormat validates a user-supplied format name.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(s); f {
	case OutputText, OutputCompact, OutputJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text, compact, or json", s)
	}
}

// recommendationsOutput is the JSON shape of WriteRecommendations.
type recommendationsOutput struct {
	Query   string                  `json:"query"`
	Results []models.Recommendation `json:"results"`
}

// WriteRecommendations writes recs for query to w in the given format.
func WriteRecommendations(w io.Writer, query string, recs []models.Recommendation, format OutputFormat) error {
	switch format {
	case OutputJSON:
		if recs == nil {
			recs = []models.Recommendation{}
		}
		return writeJSON(w, recommendationsOutput{Query: query, Results: recs})
	case OutputCompact:
		for i, r := range recs {
			fmt.Fprintf(w, "%d\t%s\t%s\n", i+1, utils.Truncate(r.Title, compactTitleWidth), r.Poster)
		}
		return nil
	default:
		fmt.Fprintf(w, "\nBecause you liked %q (%d recommendations)\n\n", query, len(recs))
		for i, r := range recs {
			fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
			fmt.Fprintf(w, "%d. %s\n", i+1, r.Title)
			fmt.Fprintf(w, "   Poster: %s\n", r.Poster)
			fmt.Fprintf(w, "   Search: %s\n", r.SearchURL)
		}
		fmt.Fprintln(w)
		return nil
	}
}

// WriteNotFound reports an unknown query title with optional suggestions.
func WriteNotFound(w io.Writer, query string, suggestions []string, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, models.NotFoundResponse{
			Error:       "Movie not found",
			Results:     []models.Recommendation{},
			Suggestions: suggestions,
		})
	}
	fmt.Fprintf(w, "Movie not found: %q\n", query)
	if len(suggestions) > 0 {
		fmt.Fprintln(w, "Did you mean:")
		for _, s := range suggestions {
			fmt.Fprintf(w, "  - %s\n", s)
		}
	}
	return nil
}

// WriteSuggestions writes title suggestions for query.
func WriteSuggestions(w io.Writer, query string, suggestions []keyword.Suggestion, format OutputFormat) error {
	switch format {
	case OutputJSON:
		if suggestions == nil {
			suggestions = []keyword.Suggestion{}
		}
		return writeJSON(w, map[string]interface{}{"query": query, "suggestions": suggestions})
	case OutputCompact:
		for _, s := range suggestions {
			fmt.Fprintln(w, s.Title)
		}
		return nil
	default:
		if len(suggestions) == 0 {
			fmt.Fprintf(w, "No titles match %q\n", query)
			return nil
		}
		for i, s := range suggestions {
			fmt.Fprintf(w, "%d. %s (edit distance %d)\n", i+1, s.Title, s.Distance)
		}
		return nil
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
