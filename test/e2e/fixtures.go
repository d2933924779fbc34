package e2e

import (
	"os"

	"github.com/goccy/go-json"

	"github.com/hyperjump/osusume/internal/similarity"
)

type catalogEntry struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
}

// WriteCatalogJSON writes titles as the JSON item list read by storage.JSONCatalog.
func WriteCatalogJSON(path string, titles []string) error {
	entries := make([]catalogEntry, len(titles))
	for i, t := range titles {
		entries[i] = catalogEntry{ID: i, Title: t}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// WriteMatrix writes the corpus matrix as a float32 .npy file.
func WriteMatrix(path string, c *Corpus) error {
	store, err := similarity.NewStore(c.N, c.Matrix)
	if err != nil {
		return err
	}
	return similarity.SaveNPY(path, store)
}
