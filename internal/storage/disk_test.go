package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDiskUsageBytes(t *testing.T) {
	dir := t.TempDir()

	catalog := filepath.Join(dir, "movies.json")
	if err := os.WriteFile(catalog, []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}
	got, err := DiskUsageBytes(catalog)
	if err != nil {
		t.Fatal(err)
	}
	if got != 5 {
		t.Errorf("single file: got %d bytes, want 5", got)
	}

	db := filepath.Join(dir, "movies.db")
	if err := os.WriteFile(db, []byte("abc"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(db+"-wal", []byte("de"), 0644); err != nil {
		t.Fatal(err)
	}
	got, err = DiskUsageBytes(catalog, db, filepath.Join(dir, "missing.npy"), "")
	if err != nil {
		t.Fatal(err)
	}
	if got != 10 {
		t.Errorf("with sidecar: got %d bytes, want 10", got)
	}

	sub := filepath.Join(dir, "sub")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(sub, "a"), []byte("ab"), 0644); err != nil {
		t.Fatal(err)
	}
	got, err = DiskUsageBytes(sub)
	if err != nil {
		t.Fatal(err)
	}
	if got != 2 {
		t.Errorf("directory: got %d bytes, want 2", got)
	}
}
