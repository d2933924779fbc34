// Package recommend turns a query title into ranked, enriched recommendations.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/osusume/internal/catalog"
	"github.com/hyperjump/osusume/internal/config"
	"github.com/hyperjump/osusume/internal/metrics"
	"github.com/hyperjump/osusume/internal/models"
	"github.com/hyperjump/osusume/internal/similarity"
)

var (
	// ErrNotFound means the query title is not in the catalog.
	ErrNotFound = errors.New("title not found")
	// ErrInternal means the catalog and similarity data disagree or a step panicked.
	ErrInternal = errors.New("internal recommendation error")
	// ErrDimensionMismatch is returned by NewEngine when the matrix size differs from the catalog size.
	ErrDimensionMismatch = errors.New("similarity matrix does not match catalog")
)

// Enricher resolves titles to poster URLs, one per title in the same order.
type Enricher interface {
	Enrich(ctx context.Context, titles []string) []string
}

// Engine answers recommendation queries against an immutable catalog and similarity store.
type Engine struct {
	catalog  *catalog.Index
	store    *similarity.Store
	enricher Enricher
	config   *config.RecommendConfig
	logger   *zap.Logger
}

// NewEngine creates an engine. The store must be N x N where N is the catalog size.
func NewEngine(
	idx *catalog.Index,
	store *similarity.Store,
	enricher Enricher,
	cfg *config.RecommendConfig,
	logger *zap.Logger,
) (*Engine, error) {
	if store.Len() != idx.Len() {
		return nil, fmt.Errorf("%w: matrix is %dx%d, catalog has %d items",
			ErrDimensionMismatch, store.Len(), store.Len(), idx.Len())
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		catalog:  idx,
		store:    store,
		enricher: enricher,
		config:   cfg,
		logger:   logger,
	}, nil
}

// Recommend returns up to K recommendations for title, best match first.
// Unknown or empty titles yield ErrNotFound. Any inconsistency between catalog and
// store yields ErrInternal and no partial results.
func (e *Engine) Recommend(ctx context.Context, title string) (recs []models.Recommendation, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("recommendation panicked",
				zap.String("title", title),
				zap.Any("panic", r),
			)
			recs, err = nil, fmt.Errorf("%w: panic: %v", ErrInternal, r)
		}
		metrics.RecommendDuration.Observe(time.Since(start).Seconds())
		metrics.RecommendRequests.WithLabelValues(outcome(err)).Inc()
	}()

	if catalog.Normalize(title) == "" {
		return nil, ErrNotFound
	}
	index, ok := e.catalog.Lookup(title)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, title)
	}

	neighbors, err := similarity.TopK(e.store, index, e.config.K)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	titles := make([]string, len(neighbors))
	for i, n := range neighbors {
		t, err := e.catalog.TitleOf(n.Index)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInternal, err)
		}
		titles[i] = t
	}

	posters := e.enricher.Enrich(ctx, titles)
	if len(posters) != len(titles) {
		return nil, fmt.Errorf("%w: enrichment returned %d posters for %d titles",
			ErrInternal, len(posters), len(titles))
	}

	recs = make([]models.Recommendation, len(titles))
	for i, t := range titles {
		recs[i] = models.Recommendation{
			Title:     t,
			Poster:    posters[i],
			SearchURL: e.SearchURL(t),
		}
	}
	e.logger.Debug("recommendations ready",
		zap.String("title", title),
		zap.Int("count", len(recs)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return recs, nil
}

// SearchURL returns the web search link for title.
func (e *Engine) SearchURL(title string) string {
	return e.config.SearchURLPrefix + url.QueryEscape(title+e.config.SearchSuffix)
}

// Catalog returns the engine's catalog index.
func (e *Engine) Catalog() *catalog.Index {
	return e.catalog
}

// Store returns the engine's similarity store.
func (e *Engine) Store() *similarity.Store {
	return e.store
}

// K returns the configured number of recommendations per query.
func (e *Engine) K() int {
	return e.config.K
}

func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.Is(err, ErrNotFound):
		return metrics.OutcomeNotFound
	default:
		return metrics.OutcomeInternal
	}
}
