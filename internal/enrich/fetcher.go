package enrich

import (
	"context"
	"errors"
	"net"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/hyperjump/osusume/internal/metrics"
)

// Fetcher resolves batches of titles concurrently. Results are keyed by input position,
// and any failure yields the fallback URL, so Enrich never fails.
type Fetcher struct {
	lookup   PosterLookup
	fallback string
	slots    *semaphore.Weighted
	logger   *zap.Logger
}

// NewFetcher creates a fetcher. maxInFlight caps lookups across all concurrent batches.
func NewFetcher(lookup PosterLookup, fallbackURL string, maxInFlight int, logger *zap.Logger) *Fetcher {
	if maxInFlight <= 0 {
		maxInFlight = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		lookup:   lookup,
		fallback: fallbackURL,
		slots:    semaphore.NewWeighted(int64(maxInFlight)),
		logger:   logger,
	}
}

// FallbackURL returns the placeholder used for failed lookups.
func (f *Fetcher) FallbackURL() string {
	return f.fallback
}

// Enrich returns one poster URL per title, in the same order as titles.
// It returns once every lookup has finished, timed out or been cancelled via ctx.
func (f *Fetcher) Enrich(ctx context.Context, titles []string) []string {
	posters := make([]string, len(titles))
	var g errgroup.Group
	for i, title := range titles {
		i, title := i, title
		g.Go(func() error {
			posters[i] = f.resolve(ctx, title)
			return nil
		})
	}
	_ = g.Wait()
	return posters
}

func (f *Fetcher) resolve(ctx context.Context, title string) string {
	if err := f.slots.Acquire(ctx, 1); err != nil {
		metrics.EnrichmentLookups.WithLabelValues("cancelled").Inc()
		return f.fallback
	}
	metrics.EnrichmentInFlight.Inc()
	defer func() {
		metrics.EnrichmentInFlight.Dec()
		f.slots.Release(1)
	}()

	start := time.Now()
	poster, err := f.lookup.Poster(ctx, title)
	metrics.EnrichmentDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		outcome := classify(err)
		metrics.EnrichmentLookups.WithLabelValues(outcome).Inc()
		f.logger.Debug("poster lookup failed, using fallback",
			zap.String("title", title),
			zap.String("outcome", outcome),
			zap.Error(err),
		)
		return f.fallback
	}
	if poster == "" {
		metrics.EnrichmentLookups.WithLabelValues("no_image").Inc()
		return f.fallback
	}
	metrics.EnrichmentLookups.WithLabelValues("success").Inc()
	return poster
}

// classify maps a lookup error to a metrics outcome label.
func classify(err error) string {
	var netErr net.Error
	switch {
	case errors.Is(err, ErrNoImage):
		return "no_image"
	case errors.Is(err, ErrBadStatus):
		return "bad_status"
	case errors.Is(err, ErrMalformed):
		return "malformed"
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "circuit_open"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.As(err, &netErr) && netErr.Timeout():
		return "timeout"
	default:
		return "error"
	}
}
