package config

import "time"

// DefaultFallbackURL is the placeholder poster used whenever a lookup cannot produce one.
const DefaultFallbackURL = "https://via.placeholder.com/500x750/111111/333333?text=No+Preview"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 30 * time.Second
	}
	if cfg.Server.RateLimitRequests == 0 {
		cfg.Server.RateLimitRequests = 100
	}
	if cfg.Server.RateLimitWindow == 0 {
		cfg.Server.RateLimitWindow = time.Minute
	}
	if cfg.Data.CatalogPath == "" {
		cfg.Data.CatalogPath = "/usr/local/var/osusume/data/movies.json"
	}
	if cfg.Data.MatrixPath == "" {
		cfg.Data.MatrixPath = "/usr/local/var/osusume/data/similarity.npy"
	}
	if cfg.Enrichment.BaseURL == "" {
		cfg.Enrichment.BaseURL = "http://www.omdbapi.com/"
	}
	if cfg.Enrichment.Timeout == 0 {
		cfg.Enrichment.Timeout = 3 * time.Second
	}
	if cfg.Enrichment.FallbackURL == "" {
		cfg.Enrichment.FallbackURL = DefaultFallbackURL
	}
	if cfg.Enrichment.MaxInFlight == 0 {
		cfg.Enrichment.MaxInFlight = 32
	}
	if cfg.Enrichment.BreakerFailures == 0 {
		cfg.Enrichment.BreakerFailures = 5
	}
	if cfg.Enrichment.BreakerOpenTimeout == 0 {
		cfg.Enrichment.BreakerOpenTimeout = 30 * time.Second
	}
	if cfg.Recommend.K == 0 {
		cfg.Recommend.K = 5
	}
	if cfg.Recommend.SearchURLPrefix == "" {
		cfg.Recommend.SearchURLPrefix = "https://www.google.com/search?q="
	}
	// An explicitly empty suffix cannot be told apart from unset; " movie" is always applied then.
	if cfg.Recommend.SearchSuffix == "" {
		cfg.Recommend.SearchSuffix = " movie"
	}
	if cfg.Recommend.SuggestLimit == 0 {
		cfg.Recommend.SuggestLimit = 10
	}
}
