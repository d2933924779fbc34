// Package main is the Osusume CLI entry point.
package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/hyperjump/osusume/internal/catalog"
	"github.com/hyperjump/osusume/internal/cli"
	"github.com/hyperjump/osusume/internal/config"
	"github.com/hyperjump/osusume/internal/enrich"
	"github.com/hyperjump/osusume/internal/keyword"
	"github.com/hyperjump/osusume/internal/metrics"
	"github.com/hyperjump/osusume/internal/models"
	"github.com/hyperjump/osusume/internal/recommend"
	"github.com/hyperjump/osusume/internal/server"
	"github.com/hyperjump/osusume/internal/similarity"
	"github.com/hyperjump/osusume/internal/storage"
	"github.com/hyperjump/osusume/pkg/utils"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/osusume/config.yaml"
	defaultServerURL  = "http://localhost:8080"
)

// httpClient is used by the CLI subcommands that talk to a running server.
var httpClient = &http.Client{Timeout: 30 * time.Second}

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used.
// Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "recommend":
		runRecommend()
	case "suggest":
		runSuggest()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("osusume version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (per-lookup enrichment failures, request details)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)
	if cfg.Enrichment.APIKey == "" {
		logger.Warn("no metadata API key configured; every poster will use the fallback image",
			zap.String("env", config.APIKeyEnv),
		)
	}

	components, err := initializeComponents(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	srv := server.NewServer(components.Engine, components.Titles, cfg, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// buildQuery joins all positional args with spaces so multi-word titles
// work the same with or without shell quoting.
func buildQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// argsReorder moves any flags (and their values) that appear after the title
// to the front of the slice so that flag.Parse() sees them. Go's flag package
// stops at the first non-flag argument.
func argsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func parseFormat(s string) cli.OutputFormat {
	format, err := cli.ParseOutputFormat(s)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	return format
}

func runRecommend() {
	fs := flag.NewFlagSet("recommend", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = load data files directly)")
	outputFormat := fs.String("output", "text", "output format: text, compact, or json")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: osusume recommend [flags] <title>\n\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(argsReorder(os.Args[2:]))

	title := buildQuery(fs.Args())
	if title == "" {
		fs.Usage()
		os.Exit(1)
	}
	format := parseFormat(*outputFormat)

	var (
		recs     []models.Recommendation
		notFound *models.NotFoundResponse
		err      error
	)
	if *serverURL != "" {
		recs, notFound, err = recommendViaHTTP(*serverURL, title)
	} else {
		recs, notFound, err = recommendDirect(*configPath, title)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Recommend failed: %v\n", err)
		os.Exit(1)
	}
	if notFound != nil {
		_ = cli.WriteNotFound(os.Stdout, title, notFound.Suggestions, format)
		os.Exit(2)
	}
	if err := cli.WriteRecommendations(os.Stdout, title, recs, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func recommendDirect(configPath, title string) ([]models.Recommendation, *models.NotFoundResponse, error) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	ctx := context.Background()
	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	defer components.Close()

	recs, err := components.Engine.Recommend(ctx, title)
	if errors.Is(err, recommend.ErrNotFound) {
		resp := &models.NotFoundResponse{Error: "Movie not found", Results: []models.Recommendation{}}
		if found, sErr := components.Titles.Suggest(ctx, title, cfg.Recommend.SuggestLimit); sErr == nil {
			for _, s := range found {
				resp.Suggestions = append(resp.Suggestions, s.Title)
			}
		}
		return nil, resp, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return recs, nil, nil
}

// recommendViaHTTP posts title to a running server. A 404 is reported through the
// NotFoundResponse, not as an error.
func recommendViaHTTP(serverURL, title string) ([]models.Recommendation, *models.NotFoundResponse, error) {
	body, err := json.Marshal(models.RecommendRequest{Movie: title})
	if err != nil {
		return nil, nil, err
	}
	resp, err := httpClient.Post(strings.TrimRight(serverURL, "/")+"/api/v1/recommend", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK:
		var recs []models.Recommendation
		if err := json.NewDecoder(resp.Body).Decode(&recs); err != nil {
			return nil, nil, fmt.Errorf("decode response: %w", err)
		}
		return recs, nil, nil
	case http.StatusNotFound:
		var nf models.NotFoundResponse
		if err := json.NewDecoder(resp.Body).Decode(&nf); err != nil {
			return nil, nil, fmt.Errorf("decode response: %w", err)
		}
		return nil, &nf, nil
	default:
		b, _ := io.ReadAll(resp.Body)
		return nil, nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
}

func runSuggest() {
	fs := flag.NewFlagSet("suggest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = load the catalog directly)")
	limit := fs.Int("limit", 10, "maximum number of suggestions")
	outputFormat := fs.String("output", "text", "output format: text, compact, or json")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: osusume suggest [flags] <partial title>\n\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(argsReorder(os.Args[2:]))

	query := buildQuery(fs.Args())
	if query == "" {
		fs.Usage()
		os.Exit(1)
	}
	format := parseFormat(*outputFormat)

	var (
		found []keyword.Suggestion
		err   error
	)
	if *serverURL != "" {
		found, err = suggestViaHTTP(*serverURL, query, *limit)
	} else {
		found, err = suggestDirect(*configPath, query, *limit)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Suggest failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteSuggestions(os.Stdout, query, found, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

// suggestDirect loads only the catalog; the similarity matrix is not needed for suggestions.
func suggestDirect(configPath, query string, limit int) ([]keyword.Suggestion, error) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	ctx := context.Background()
	idx, err := loadCatalog(ctx, cfg.Data.CatalogPath)
	if err != nil {
		return nil, err
	}
	titles, err := keyword.NewTitleIndex(idx.Titles())
	if err != nil {
		return nil, err
	}
	defer titles.Close()
	return titles.Suggest(ctx, query, limit)
}

func suggestViaHTTP(serverURL, query string, limit int) ([]keyword.Suggestion, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("limit", strconv.Itoa(limit))
	resp, err := httpClient.Get(strings.TrimRight(serverURL, "/") + "/api/v1/suggest?" + q.Encode())
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var out struct {
		Suggestions []keyword.Suggestion `json:"suggestions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return out.Suggestions, nil
}

// statusResponse is the shape of GET /api/v1/status response.
type statusResponse struct {
	Items          int    `json:"items"`
	MatrixDType    string `json:"matrix_dtype"`
	MatrixBytes    int64  `json:"matrix_bytes"`
	K              int    `json:"k"`
	DiskUsageBytes *int64 `json:"disk_usage_bytes,omitempty"`
	Config         *struct {
		CatalogPath       string `json:"catalog_path"`
		MatrixPath        string `json:"matrix_path"`
		EnrichmentBaseURL string `json:"enrichment_base_url"`
		EnrichmentTimeout string `json:"enrichment_timeout"`
		MaxInFlight       int    `json:"enrichment_max_in_flight"`
		APIKeyConfigured  bool   `json:"api_key_configured"`
	} `json:"config,omitempty"`
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = load data files directly)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	var status *statusResponse
	var err error
	if *serverURL != "" {
		status, err = statusViaHTTP(*serverURL)
	} else {
		status, err = statusDirect(*configPath)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		writeStatusText(os.Stdout, status)
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

func writeStatusText(w io.Writer, status *statusResponse) {
	fmt.Fprintf(w, "items:              %d   # catalog entries\n", status.Items)
	fmt.Fprintf(w, "matrix_dtype:       %s\n", status.MatrixDType)
	fmt.Fprintf(w, "matrix_bytes:       %d   # similarity values in memory\n", status.MatrixBytes)
	fmt.Fprintf(w, "k:                  %d   # recommendations per query\n", status.K)
	if status.DiskUsageBytes != nil {
		fmt.Fprintf(w, "disk_usage_bytes:   %d   # catalog + matrix on disk\n", *status.DiskUsageBytes)
	}
	if status.Config != nil {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "# configuration")
		fmt.Fprintf(w, "catalog_path:       %s\n", status.Config.CatalogPath)
		fmt.Fprintf(w, "matrix_path:        %s\n", status.Config.MatrixPath)
		fmt.Fprintf(w, "enrichment_url:     %s\n", status.Config.EnrichmentBaseURL)
		fmt.Fprintf(w, "enrichment_timeout: %s\n", status.Config.EnrichmentTimeout)
		fmt.Fprintf(w, "max_in_flight:      %d\n", status.Config.MaxInFlight)
		fmt.Fprintf(w, "api_key_configured: %t\n", status.Config.APIKeyConfigured)
	}
}

func statusDirect(configPath string) (*statusResponse, error) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	ctx := context.Background()
	idx, err := loadCatalog(ctx, cfg.Data.CatalogPath)
	if err != nil {
		return nil, err
	}
	store, err := similarity.LoadNPY(cfg.Data.MatrixPath)
	if err != nil {
		return nil, &storage.LoadError{Path: cfg.Data.MatrixPath, Err: err}
	}
	status := &statusResponse{
		Items:       idx.Len(),
		MatrixDType: string(store.DType()),
		MatrixBytes: store.SizeBytes(),
		K:           cfg.Recommend.K,
	}
	if diskBytes, err := storage.DiskUsageBytes(cfg.Data.CatalogPath, cfg.Data.MatrixPath); err == nil {
		status.DiskUsageBytes = &diskBytes
	}
	return status, nil
}

func statusViaHTTP(serverURL string) (*statusResponse, error) {
	resp, err := httpClient.Get(strings.TrimRight(serverURL, "/") + "/api/v1/status")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var s statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &s, nil
}

// Components holds initialized services.
type Components struct {
	Catalog *catalog.Index
	Store   *similarity.Store
	Fetcher *enrich.Fetcher
	Engine  *recommend.Engine
	Titles  *keyword.TitleIndex
}

func (c *Components) Close() {
	if c.Titles != nil {
		_ = c.Titles.Close()
	}
}

func loadCatalog(ctx context.Context, path string) (*catalog.Index, error) {
	items, err := storage.LoadItems(ctx, path)
	if err != nil {
		return nil, err
	}
	idx, err := catalog.Build(items)
	if err != nil {
		return nil, &storage.LoadError{Path: path, Err: err}
	}
	return idx, nil
}

// initializeComponents loads the catalog and matrix, checks they agree, and wires
// the enrichment client, recommendation engine and title suggestions.
func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	start := time.Now()
	idx, err := loadCatalog(ctx, cfg.Data.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	store, err := similarity.LoadNPY(cfg.Data.MatrixPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load similarity matrix: %w", &storage.LoadError{Path: cfg.Data.MatrixPath, Err: err})
	}

	client := enrich.NewClient(&cfg.Enrichment, enrich.WithLogger(logger))
	fetcher := enrich.NewFetcher(client, cfg.Enrichment.FallbackURL, cfg.Enrichment.MaxInFlight, logger)
	engine, err := recommend.NewEngine(idx, store, fetcher, &cfg.Recommend, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize recommendation engine: %w", err)
	}

	titles, err := keyword.NewTitleIndex(idx.Titles())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize title index: %w", err)
	}

	metrics.CatalogItems.Set(float64(idx.Len()))
	logger.Info("data loaded",
		zap.Int("items", idx.Len()),
		zap.String("matrix_dtype", string(store.DType())),
		zap.Int64("matrix_bytes", store.SizeBytes()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return &Components{
		Catalog: idx,
		Store:   store,
		Fetcher: fetcher,
		Engine:  engine,
		Titles:  titles,
	}, nil
}

func printUsage() {
	fmt.Println(`osusume - Content-based movie recommendation service

Usage:
  osusume server [flags]              Start the HTTP server
  osusume recommend [flags] <title>   Recommend titles similar to <title>
  osusume suggest [flags] <partial>   Suggest catalog titles for a partial or misspelled title
  osusume status [flags]              Show catalog/matrix status
  osusume version                     Show version
  osusume help                        Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/osusume/config.yaml)
  --debug            Enable debug logging

Recommend Flags:
  --config string    Config file path (for direct mode)
  --server string    Server URL (default: http://localhost:8080). Use empty (--server "") to load data files directly.
  --output string    Output format: text, compact, or json (default: text)

Suggest Flags:
  --server string    Server URL (default: http://localhost:8080). Use empty (--server "") to load the catalog directly.
  --limit int        Maximum number of suggestions (default: 10)
  --output string    Output format: text, compact, or json (default: text)

Status Flags:
  --config string    Config file path (for direct mode)
  --server string    Server URL (default: http://localhost:8080). Use empty (--server "") for direct mode.
  --output string    Output format: text or json (default: text)

Environment:
  OSUSUME_OMDB_API_KEY   Metadata API key (overrides enrichment.api_key)

Examples:
  osusume server
  osusume recommend Avatar
  osusume recommend "The Dark Knight" --output json
  osusume suggest avatr
  osusume status --output json`)
}
