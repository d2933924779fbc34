package keyword

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/hyperjump/osusume/internal/catalog"
)

const (
	// candidateFactor controls how many Bleve hits are re-ranked per requested suggestion.
	candidateFactor = 4
	// minFuzzyTermLength keeps short terms from fuzzy-matching most of the catalog.
	minFuzzyTermLength = 4
	indexBatchSize     = 500
)

// titleDoc is the indexed form of a catalog item.
type titleDoc struct {
	Title string `json:"title"`
	// Key is the normalized title, indexed verbatim for whole-title prefix matches.
	Key string `json:"key"`
}

// TitleIndex implements Suggester with an in-memory Bleve index.
type TitleIndex struct {
	index     bleve.Index
	fuzziness int
}

// TitleIndexOption configures a TitleIndex.
type TitleIndexOption func(*TitleIndex)

// WithFuzziness sets the maximum edit distance for fuzzy term matches (1 or 2).
func WithFuzziness(n int) TitleIndexOption {
	return func(t *TitleIndex) {
		if n >= 1 && n <= 2 {
			t.fuzziness = n
		}
	}
}

// NewTitleIndex indexes titles, where titles[i] is the title of catalog index i.
func NewTitleIndex(titles []string, opts ...TitleIndexOption) (*TitleIndex, error) {
	im := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()
	// Standard analyzer (lowercase + tokenize, no stemming) so "avenger" does not match "avenge".
	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("title", textFieldMapping)
	keyFieldMapping := bleve.NewKeywordFieldMapping()
	keyFieldMapping.Store = false
	docMapping.AddFieldMappingsAt("key", keyFieldMapping)
	im.AddDocumentMapping("item", docMapping)
	im.DefaultType = "item"
	im.DefaultMapping = docMapping

	index, err := bleve.NewMemOnly(im)
	if err != nil {
		return nil, fmt.Errorf("failed to create title index: %w", err)
	}
	t := &TitleIndex{index: index, fuzziness: 2}
	for _, opt := range opts {
		opt(t)
	}

	batch := index.NewBatch()
	for i, title := range titles {
		doc := titleDoc{Title: title, Key: catalog.Normalize(title)}
		if err := batch.Index(strconv.Itoa(i), doc); err != nil {
			_ = index.Close()
			return nil, fmt.Errorf("failed to index title %q: %w", title, err)
		}
		if batch.Size() >= indexBatchSize {
			if err := index.Batch(batch); err != nil {
				_ = index.Close()
				return nil, fmt.Errorf("failed to index titles: %w", err)
			}
			batch.Reset()
		}
	}
	if batch.Size() > 0 {
		if err := index.Batch(batch); err != nil {
			_ = index.Close()
			return nil, fmt.Errorf("failed to index titles: %w", err)
		}
	}
	return t, nil
}

// Suggest returns up to limit titles for query. Titles that start with the query come
// first, then the rest by edit distance, Bleve score and index.
// Titles that normalize to the same key are reported once.
func (t *TitleIndex) Suggest(ctx context.Context, query string, limit int) ([]Suggestion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key := catalog.Normalize(query)
	if key == "" || limit <= 0 {
		return []Suggestion{}, nil
	}

	req := bleve.NewSearchRequest(t.buildQuery(key))
	req.Size = limit * candidateFactor
	req.Fields = []string{"title"}
	results, err := t.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("title search failed: %w", err)
	}

	type ranked struct {
		Suggestion
		prefix bool
	}
	seen := make(map[string]struct{}, len(results.Hits))
	candidates := make([]ranked, 0, len(results.Hits))
	for _, hit := range results.Hits {
		title, _ := hit.Fields["title"].(string)
		norm := catalog.Normalize(title)
		if _, dup := seen[norm]; dup {
			continue
		}
		seen[norm] = struct{}{}
		index, err := strconv.Atoi(hit.ID)
		if err != nil {
			continue
		}
		candidates = append(candidates, ranked{
			Suggestion: Suggestion{
				Index:    index,
				Title:    title,
				Score:    hit.Score,
				Distance: LevenshteinDistance(key, norm),
			},
			prefix: strings.HasPrefix(norm, key),
		})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.prefix != b.prefix {
			return a.prefix
		}
		if a.Distance != b.Distance {
			return a.Distance < b.Distance
		}
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return a.Index < b.Index
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	out := make([]Suggestion, len(candidates))
	for i, c := range candidates {
		out[i] = c.Suggestion
	}
	return out, nil
}

// buildQuery matches the whole normalized title by prefix, and each query term
// by prefix and (for longer terms) fuzzily against the analyzed title.
func (t *TitleIndex) buildQuery(key string) blevequery.Query {
	whole := bleve.NewPrefixQuery(key)
	whole.SetField("key")
	whole.SetBoost(5)
	queries := []blevequery.Query{whole}
	for _, term := range tokenizeQuery(key) {
		pq := bleve.NewPrefixQuery(term)
		pq.SetField("title")
		pq.SetBoost(2)
		queries = append(queries, pq)
		if utf8.RuneCountInString(term) >= minFuzzyTermLength {
			fq := bleve.NewFuzzyQuery(term)
			fq.SetFuzziness(t.fuzziness)
			fq.SetField("title")
			queries = append(queries, fq)
		}
	}
	return bleve.NewDisjunctionQuery(queries...)
}

// tokenizeQuery splits a normalized query into letter/digit terms.
func tokenizeQuery(query string) []string {
	return strings.FieldsFunc(query, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// DocCount returns the number of indexed titles.
func (t *TitleIndex) DocCount() (uint64, error) {
	return t.index.DocCount()
}

// Close closes the Bleve index.
func (t *TitleIndex) Close() error {
	return t.index.Close()
}
