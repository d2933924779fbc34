// Package catalog maps item titles to similarity matrix indices and back.
package catalog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hyperjump/osusume/internal/models"
)

// ErrIndexOutOfRange is returned by TitleOf for indices outside [0, Len()).
var ErrIndexOutOfRange = errors.New("catalog index out of range")

// Index is a read-only bidirectional title/index mapping. It is safe for concurrent use
// because nothing mutates it after Build returns.
type Index struct {
	byTitle map[string]int
	titles  []string
}

// Normalize returns the lookup key for a title: surrounding whitespace trimmed, lower-cased.
func Normalize(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}

// Build creates an index from items. Items must cover the contiguous range [0, len(items))
// with each index exactly once. When two titles normalize to the same key the later item
// wins the title lookup; both indices keep their own title for TitleOf.
func Build(items []models.Item) (*Index, error) {
	idx := &Index{
		byTitle: make(map[string]int, len(items)),
		titles:  make([]string, len(items)),
	}
	seen := make([]bool, len(items))
	for _, it := range items {
		if it.Index < 0 || it.Index >= len(items) {
			return nil, fmt.Errorf("item %q has index %d outside [0, %d)", it.Title, it.Index, len(items))
		}
		if seen[it.Index] {
			return nil, fmt.Errorf("duplicate item index %d", it.Index)
		}
		seen[it.Index] = true
		idx.titles[it.Index] = it.Title
	}
	// Second pass in index order so last-write-wins is defined by index, not file order.
	for i, title := range idx.titles {
		idx.byTitle[Normalize(title)] = i
	}
	return idx, nil
}

// Lookup returns the index for title using exact normalized matching.
func (x *Index) Lookup(title string) (int, bool) {
	i, ok := x.byTitle[Normalize(title)]
	return i, ok
}

// TitleOf returns the display title stored for index.
func (x *Index) TitleOf(index int) (string, error) {
	if index < 0 || index >= len(x.titles) {
		return "", fmt.Errorf("%w: %d (items: %d)", ErrIndexOutOfRange, index, len(x.titles))
	}
	return x.titles[index], nil
}

// Len returns the number of items.
func (x *Index) Len() int {
	return len(x.titles)
}

// Titles returns a copy of all titles in index order.
func (x *Index) Titles() []string {
	return append([]string(nil), x.titles...)
}
