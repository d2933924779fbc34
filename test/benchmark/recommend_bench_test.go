package benchmark

import (
	"context"
	"math/rand"
	"strconv"
	"testing"

	"github.com/hyperjump/osusume/internal/catalog"
	"github.com/hyperjump/osusume/internal/config"
	"github.com/hyperjump/osusume/internal/enrich"
	"github.com/hyperjump/osusume/internal/keyword"
	"github.com/hyperjump/osusume/internal/models"
	"github.com/hyperjump/osusume/internal/recommend"
	"github.com/hyperjump/osusume/internal/similarity"
)

func randomStore(b *testing.B, n int) *similarity.Store {
	b.Helper()
	rng := rand.New(rand.NewSource(42))
	values := make([]float32, n*n)
	for i := range values {
		values[i] = rng.Float32()
	}
	for i := 0; i < n; i++ {
		values[i*n+i] = 1
	}
	s, err := similarity.NewHalfStore(n, values)
	if err != nil {
		b.Fatal(err)
	}
	return s
}

// BenchmarkTopK_Sort measures the full-sort path (catalog at or below the heap threshold).
func BenchmarkTopK_Sort(b *testing.B) {
	s := randomStore(b, 4096)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = similarity.TopK(s, i%4096, 5)
	}
}

// BenchmarkTopK_Heap measures the bounded min-heap path.
func BenchmarkTopK_Heap(b *testing.B) {
	s := randomStore(b, 5000)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = similarity.TopK(s, i%5000, 5)
	}
}

type posterFunc func(ctx context.Context, title string) (string, error)

func (f posterFunc) Poster(ctx context.Context, title string) (string, error) { return f(ctx, title) }

func BenchmarkFetcher_Enrich(b *testing.B) {
	f := enrich.NewFetcher(posterFunc(func(ctx context.Context, title string) (string, error) {
		return "https://img.example/" + title + ".jpg", nil
	}), config.DefaultFallbackURL, 32, nil)
	titles := []string{"A", "B", "C", "D", "E"}
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = f.Enrich(ctx, titles)
	}
}

type staticEnricher struct{}

func (staticEnricher) Enrich(ctx context.Context, titles []string) []string {
	return make([]string, len(titles))
}

func BenchmarkEngine_Recommend(b *testing.B) {
	const n = 4800
	items := make([]models.Item, n)
	for i := range items {
		items[i] = models.Item{Index: i, Title: "Movie " + strconv.Itoa(i)}
	}
	idx, err := catalog.Build(items)
	if err != nil {
		b.Fatal(err)
	}
	cfg := &config.RecommendConfig{K: 5, SearchURLPrefix: "https://www.google.com/search?q=", SearchSuffix: " movie"}
	e, err := recommend.NewEngine(idx, randomStore(b, n), staticEnricher{}, cfg, nil)
	if err != nil {
		b.Fatal(err)
	}
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = e.Recommend(ctx, "movie "+strconv.Itoa(i%n))
	}
}

func BenchmarkTitleIndex_Suggest(b *testing.B) {
	titles := make([]string, 5000)
	for i := range titles {
		titles[i] = "Movie Title Number " + strconv.Itoa(i)
	}
	idx, err := keyword.NewTitleIndex(titles)
	if err != nil {
		b.Fatal(err)
	}
	defer idx.Close()
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = idx.Suggest(ctx, "movie titel", 10)
	}
}
