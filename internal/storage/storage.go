// Package storage reads the persisted catalog written by the offline pipeline.
package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/hyperjump/osusume/internal/models"
)

// CatalogSource yields the id/title pairs that key the similarity matrix.
type CatalogSource interface {
	Items(ctx context.Context) ([]models.Item, error)
	Close() error
}

// LoadError reports missing or corrupt persisted state. It is always fatal at startup.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// OpenCatalog opens a catalog source chosen by file extension:
// ".json" for a JSON item list, ".db", ".sqlite" or ".sqlite3" for a SQLite items table.
func OpenCatalog(path string) (CatalogSource, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return NewJSONCatalog(path), nil
	case ".db", ".sqlite", ".sqlite3":
		return OpenSQLiteCatalog(path)
	default:
		return nil, &LoadError{Path: path, Err: fmt.Errorf("unsupported catalog format %q (supported: .json, .db, .sqlite)", filepath.Ext(path))}
	}
}

// LoadItems opens path, reads all items and closes the source.
func LoadItems(ctx context.Context, path string) ([]models.Item, error) {
	src, err := OpenCatalog(path)
	if err != nil {
		return nil, err
	}
	defer src.Close()
	return src.Items(ctx)
}
