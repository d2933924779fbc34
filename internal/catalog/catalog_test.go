package catalog

import (
	"errors"
	"reflect"
	"testing"

	"github.com/hyperjump/osusume/internal/models"
)

func sampleItems() []models.Item {
	return []models.Item{
		{Index: 0, Title: "Avatar"},
		{Index: 1, Title: "Pirates of the Caribbean: At World's End"},
		{Index: 2, Title: "Spectre"},
	}
}

func TestBuild_LookupCaseInsensitive(t *testing.T) {
	idx, err := Build(sampleItems())
	if err != nil {
		t.Fatal(err)
	}
	for _, q := range []string{"Avatar", "avatar", "AVATAR", "  aVaTaR  "} {
		i, ok := idx.Lookup(q)
		if !ok || i != 0 {
			t.Errorf("Lookup(%q) = %d, %v; want 0, true", q, i, ok)
		}
	}
	if _, ok := idx.Lookup("Avat"); ok {
		t.Error("substring lookup should not match")
	}
	if _, ok := idx.Lookup("Unknown Title"); ok {
		t.Error("unknown title should not match")
	}
}

func TestIndex_TitleOf(t *testing.T) {
	idx, err := Build(sampleItems())
	if err != nil {
		t.Fatal(err)
	}
	got, err := idx.TitleOf(2)
	if err != nil || got != "Spectre" {
		t.Errorf("TitleOf(2) = %q, %v", got, err)
	}
	for _, bad := range []int{-1, 3} {
		if _, err := idx.TitleOf(bad); !errors.Is(err, ErrIndexOutOfRange) {
			t.Errorf("TitleOf(%d) error = %v, want ErrIndexOutOfRange", bad, err)
		}
	}
	if idx.Len() != 3 {
		t.Errorf("Len = %d", idx.Len())
	}
	want := []string{"Avatar", "Pirates of the Caribbean: At World's End", "Spectre"}
	if !reflect.DeepEqual(idx.Titles(), want) {
		t.Errorf("Titles = %v", idx.Titles())
	}
}

func TestBuild_DuplicateTitleLastWriteWins(t *testing.T) {
	idx, err := Build([]models.Item{
		{Index: 1, Title: "the host"},
		{Index: 0, Title: "The Host"},
	})
	if err != nil {
		t.Fatal(err)
	}
	i, ok := idx.Lookup("THE HOST")
	if !ok || i != 1 {
		t.Errorf("Lookup = %d, %v; want 1 (highest index wins)", i, ok)
	}
	if title, _ := idx.TitleOf(0); title != "The Host" {
		t.Errorf("TitleOf(0) = %q", title)
	}
}

func TestBuild_RejectsBadIndices(t *testing.T) {
	tests := []struct {
		name  string
		items []models.Item
	}{
		{"gap", []models.Item{{Index: 0, Title: "a"}, {Index: 2, Title: "b"}}},
		{"duplicate", []models.Item{{Index: 0, Title: "a"}, {Index: 0, Title: "b"}}},
		{"negative", []models.Item{{Index: -1, Title: "a"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Build(tt.items); err == nil {
				t.Error("expected error")
			}
		})
	}
}
