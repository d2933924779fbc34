package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
  request_timeout: 10s
data:
  catalog_path: "/srv/movies.json"
  matrix_path: "/srv/similarity.npy"
enrichment:
  timeout: 1500ms
  max_in_flight: 8
recommend:
  k: 7
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Server.RequestTimeout != 10*time.Second {
		t.Errorf("request_timeout = %v", cfg.Server.RequestTimeout)
	}
	if cfg.Enrichment.Timeout != 1500*time.Millisecond || cfg.Enrichment.MaxInFlight != 8 {
		t.Errorf("unexpected enrichment config: %+v", cfg.Enrichment)
	}
	if cfg.Recommend.K != 7 {
		t.Errorf("k = %d", cfg.Recommend.K)
	}
	if cfg.Data.CatalogPath != "/srv/movies.json" {
		t.Errorf("catalog_path = %s", cfg.Data.CatalogPath)
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
}

func TestLoad_expandPathDotSlashRelativeToConfigDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
data:
  catalog_path: "./data/movies.json"
  matrix_path: "./data/similarity.npy"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(dir, "data", "movies.json"); cfg.Data.CatalogPath != want {
		t.Errorf("catalog_path = %s, want %s", cfg.Data.CatalogPath, want)
	}
	if want := filepath.Join(dir, "data", "similarity.npy"); cfg.Data.MatrixPath != want {
		t.Errorf("matrix_path = %s, want %s", cfg.Data.MatrixPath, want)
	}
}

func TestLoad_APIKeyFromEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("enrichment:\n  api_key: from-file\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(APIKeyEnv, "from-env")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Enrichment.APIKey != "from-env" {
		t.Errorf("api_key = %q, want from-env", cfg.Enrichment.APIKey)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"negative k", "recommend:\n  k: -1\n", "K"},
		{"bad base url", "enrichment:\n  base_url: \"not a url\"\n", "BaseURL"},
		{"negative timeout", "enrichment:\n  timeout: -1s\n", "enrichment.timeout"},
		{"bad port", "server:\n  port: 70000\n", "Port"},
		{"not yaml", "server: [", "parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0600); err != nil {
				t.Fatal(err)
			}
			_, err := Load(path)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q should mention %q", err, tt.want)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Server.Host != "localhost" {
		t.Errorf("default host: got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("default port: got %d", cfg.Server.Port)
	}
	if cfg.Recommend.K != 5 {
		t.Errorf("default k: got %d", cfg.Recommend.K)
	}
	if cfg.Enrichment.Timeout != 3*time.Second {
		t.Errorf("default enrichment timeout: got %v", cfg.Enrichment.Timeout)
	}
	if cfg.Enrichment.FallbackURL != DefaultFallbackURL {
		t.Errorf("default fallback: got %s", cfg.Enrichment.FallbackURL)
	}
	if cfg.Recommend.SearchSuffix != " movie" {
		t.Errorf("default search suffix: got %q", cfg.Recommend.SearchSuffix)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}
