package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/osusume/internal/models"
)

// SQLiteCatalog reads items from an "items" table in a SQLite database.
type SQLiteCatalog struct {
	path string
	db   *sql.DB
}

// OpenSQLiteCatalog opens or creates a SQLite database at dbPath and ensures the schema exists.
// Parent directories are created if they do not exist.
func OpenSQLiteCatalog(dbPath string) (*SQLiteCatalog, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, &LoadError{Path: dbPath, Err: fmt.Errorf("failed to create database directory: %w", err)}
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, &LoadError{Path: dbPath, Err: fmt.Errorf("failed to open database: %w", err)}
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, &LoadError{Path: dbPath, Err: fmt.Errorf("failed to initialize schema: %w", err)}
	}
	return &SQLiteCatalog{path: dbPath, db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS items (
		id INTEGER PRIMARY KEY,
		title TEXT NOT NULL
	);
	`
	_, err := db.Exec(schema)
	return err
}

// PutItems inserts or replaces items in a single transaction.
func (s *SQLiteCatalog) PutItems(ctx context.Context, items []models.Item) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO items (id, title) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()
	for _, it := range items {
		if _, err := stmt.ExecContext(ctx, it.Index, it.Title); err != nil {
			return fmt.Errorf("insert item %d: %w", it.Index, err)
		}
	}
	return tx.Commit()
}

// Items returns all items ordered by id.
func (s *SQLiteCatalog) Items(ctx context.Context) ([]models.Item, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, title FROM items ORDER BY id`)
	if err != nil {
		return nil, &LoadError{Path: s.path, Err: fmt.Errorf("query items: %w", err)}
	}
	defer rows.Close()

	var items []models.Item
	for rows.Next() {
		var it models.Item
		if err := rows.Scan(&it.Index, &it.Title); err != nil {
			return nil, &LoadError{Path: s.path, Err: fmt.Errorf("scan item: %w", err)}
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, &LoadError{Path: s.path, Err: err}
	}
	if len(items) == 0 {
		return nil, &LoadError{Path: s.path, Err: errors.New("catalog is empty")}
	}
	return items, nil
}

// Close closes the database.
func (s *SQLiteCatalog) Close() error {
	return s.db.Close()
}
