package storage

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/goccy/go-json"

	"github.com/hyperjump/osusume/internal/models"
)

// JSONCatalog reads a JSON array of {"id": n, "title": "..."} objects.
type JSONCatalog struct {
	path string
}

// NewJSONCatalog returns a catalog source backed by the JSON file at path.
func NewJSONCatalog(path string) *JSONCatalog {
	return &JSONCatalog{path: path}
}

type jsonItem struct {
	ID    *int    `json:"id"`
	Title *string `json:"title"`
}

// Items reads and decodes the whole file. Entries missing id or title are rejected.
func (c *JSONCatalog) Items(ctx context.Context) ([]models.Item, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return nil, &LoadError{Path: c.path, Err: err}
	}
	var raw []jsonItem
	if err := json.UnmarshalContext(ctx, data, &raw); err != nil {
		return nil, &LoadError{Path: c.path, Err: fmt.Errorf("decode catalog: %w", err)}
	}
	items := make([]models.Item, 0, len(raw))
	for i, r := range raw {
		if r.ID == nil || r.Title == nil {
			return nil, &LoadError{Path: c.path, Err: fmt.Errorf("entry %d: missing id or title", i)}
		}
		items = append(items, models.Item{Index: *r.ID, Title: *r.Title})
	}
	if len(items) == 0 {
		return nil, &LoadError{Path: c.path, Err: errors.New("catalog is empty")}
	}
	return items, nil
}

// Close is a no-op for JSONCatalog.
func (c *JSONCatalog) Close() error {
	return nil
}
