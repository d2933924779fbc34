package e2e

import (
	"bytes"
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/hyperjump/osusume/internal/catalog"
	"github.com/hyperjump/osusume/internal/config"
	"github.com/hyperjump/osusume/internal/enrich"
	"github.com/hyperjump/osusume/internal/keyword"
	"github.com/hyperjump/osusume/internal/models"
	"github.com/hyperjump/osusume/internal/recommend"
	"github.com/hyperjump/osusume/internal/server"
	"github.com/hyperjump/osusume/internal/similarity"
	"github.com/hyperjump/osusume/internal/storage"
)

const (
	// e2eItems is above the TopK heap threshold so the heap path is exercised end to end.
	e2eItems    = 4100
	e2eClusters = 16
	e2eClients  = 24
)

func posterFor(title string) string {
	return "https://img.example/" + url.PathEscape(title) + ".jpg"
}

func TestE2E_ConcurrentRecommendationsMatchReference(t *testing.T) {
	if testing.Short() {
		t.Skip("large catalog e2e test")
	}
	dir := t.TempDir()
	corpus := GenerateCorpus(e2eItems, e2eClusters)
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Data.CatalogPath = filepath.Join(dir, "movies.json")
	cfg.Data.MatrixPath = filepath.Join(dir, "similarity.npy")
	if err := WriteCatalogJSON(cfg.Data.CatalogPath, corpus.Titles); err != nil {
		t.Fatal(err)
	}
	if err := WriteMatrix(cfg.Data.MatrixPath, corpus); err != nil {
		t.Fatal(err)
	}

	// Metadata API with random latency so lookups finish out of order.
	var mu sync.Mutex
	rng := rand.New(rand.NewSource(1))
	metadata := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		delay := time.Duration(rng.Intn(20)) * time.Millisecond
		mu.Unlock()
		time.Sleep(delay)
		title := r.URL.Query().Get("t")
		_ = json.NewEncoder(w).Encode(map[string]string{"Poster": posterFor(title), "Response": "True"})
	}))
	defer metadata.Close()
	cfg.Enrichment.BaseURL = metadata.URL
	cfg.Enrichment.MaxInFlight = 8
	cfg.Server.RateLimitRequests = 10000

	ctx := context.Background()
	items, err := storage.LoadItems(ctx, cfg.Data.CatalogPath)
	if err != nil {
		t.Fatal(err)
	}
	idx, err := catalog.Build(items)
	if err != nil {
		t.Fatal(err)
	}
	store, err := similarity.LoadNPY(cfg.Data.MatrixPath)
	if err != nil {
		t.Fatal(err)
	}
	logger := zap.NewNop()
	fetcher := enrich.NewFetcher(enrich.NewClient(&cfg.Enrichment), cfg.Enrichment.FallbackURL, cfg.Enrichment.MaxInFlight, logger)
	engine, err := recommend.NewEngine(idx, store, fetcher, &cfg.Recommend, logger)
	if err != nil {
		t.Fatal(err)
	}
	titles, err := keyword.NewTitleIndex(idx.Titles())
	if err != nil {
		t.Fatal(err)
	}
	defer titles.Close()
	svc := httptest.NewServer(server.NewServer(engine, titles, cfg, logger).Handler())
	defer svc.Close()

	var wg sync.WaitGroup
	errs := make(chan error, e2eClients)
	for c := 0; c < e2eClients; c++ {
		query := (c * 173) % e2eItems
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := checkRecommendation(svc.URL, corpus, query, cfg.Recommend.K); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func checkRecommendation(baseURL string, corpus *Corpus, query, k int) error {
	body, _ := json.Marshal(models.RecommendRequest{Movie: corpus.Titles[query]})
	resp, err := http.Post(baseURL+"/api/v1/recommend", "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("query %d: status %d", query, resp.StatusCode)
	}
	var recs []models.Recommendation
	if err := json.NewDecoder(resp.Body).Decode(&recs); err != nil {
		return fmt.Errorf("query %d: %w", query, err)
	}
	want := corpus.ExpectedTopK(query, k)
	if len(recs) != len(want) {
		return fmt.Errorf("query %d: got %d results, want %d", query, len(recs), len(want))
	}
	for i, r := range recs {
		if r.Title != want[i] {
			return fmt.Errorf("query %d: rank %d = %q, want %q", query, i, r.Title, want[i])
		}
		if r.Poster != posterFor(r.Title) {
			return fmt.Errorf("query %d: poster for %q = %q (posters out of position)", query, r.Title, r.Poster)
		}
	}
	return nil
}
