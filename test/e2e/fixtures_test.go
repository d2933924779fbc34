package e2e

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/hyperjump/osusume/internal/similarity"
	"github.com/hyperjump/osusume/internal/storage"
)

func TestGenerateCorpus(t *testing.T) {
	c := GenerateCorpus(40, 4)
	seen := make(map[string]bool)
	for i, title := range c.Titles {
		if seen[title] {
			t.Errorf("duplicate title %q", title)
		}
		seen[title] = true
		for j := 0; j < c.N; j++ {
			v := c.Matrix[i*c.N+j]
			if v != c.Matrix[j*c.N+i] {
				t.Fatalf("matrix not symmetric at (%d,%d)", i, j)
			}
			switch {
			case i == j && v != 1:
				t.Errorf("diagonal (%d) = %v", i, v)
			case i != j && c.ClusterOf(i) == c.ClusterOf(j) && (v < 0.6 || v >= 0.9):
				t.Errorf("same-cluster score (%d,%d) = %v", i, j, v)
			case i != j && c.ClusterOf(i) != c.ClusterOf(j) && (v < 0 || v >= 0.3):
				t.Errorf("cross-cluster score (%d,%d) = %v", i, j, v)
			}
		}
	}
}

func TestExpectedTopK_SameCluster(t *testing.T) {
	c := GenerateCorpus(40, 4)
	want := c.ClusterOf(7)
	for _, title := range c.ExpectedTopK(7, 5) {
		for i, tt := range c.Titles {
			if tt == title && c.ClusterOf(i) != want {
				t.Errorf("%q is in cluster %d, want %d", title, c.ClusterOf(i), want)
			}
		}
	}
}

func TestFixturesLoad(t *testing.T) {
	dir := t.TempDir()
	c := GenerateCorpus(12, 3)
	catalogPath := filepath.Join(dir, "movies.json")
	matrixPath := filepath.Join(dir, "similarity.npy")
	if err := WriteCatalogJSON(catalogPath, c.Titles); err != nil {
		t.Fatal(err)
	}
	if err := WriteMatrix(matrixPath, c); err != nil {
		t.Fatal(err)
	}
	items, err := storage.LoadItems(context.Background(), catalogPath)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 12 || items[5].Title != c.Titles[5] {
		t.Errorf("items = %v", items)
	}
	store, err := similarity.LoadNPY(matrixPath)
	if err != nil {
		t.Fatal(err)
	}
	if store.DType() != similarity.DTypeFloat32 || store.Score(2, 5) != c.Matrix[2*12+5] {
		t.Errorf("store dtype %s, score %v", store.DType(), store.Score(2, 5))
	}
}
