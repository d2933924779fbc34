// Package models defines core data structures for catalog items, neighbors, and recommendations.
package models

// Item is one catalog entry. Index is the item's fixed row/column in the similarity matrix.
type Item struct {
	Index int    `json:"id" db:"id"`
	Title string `json:"title" db:"title"`
}

// Neighbor is a ranked similarity hit for a query item.
type Neighbor struct {
	Index int     `json:"index"`
	Score float32 `json:"score"`
}
