// Package e2e provides end-to-end tests with a large synthetic catalog and concurrent clients.
package e2e

import (
	"fmt"
	"sort"
)

var (
	adjectives = []string{"Silent", "Crimson", "Broken", "Eternal", "Hidden", "Last", "Golden", "Frozen"}
	nouns      = []string{"Harbor", "Empire", "Signal", "Garden", "Frontier", "Promise", "Machine", "River"}
)

// Corpus is a generated catalog with a clustered similarity matrix. Items in the same
// cluster score in [0.6, 0.9); items in different clusters score in [0, 0.3).
type Corpus struct {
	N        int
	Clusters int
	Titles   []string
	Matrix   []float32
}

// GenerateCorpus builds a deterministic corpus of n items spread over clusters.
func GenerateCorpus(n, clusters int) *Corpus {
	c := &Corpus{
		N:        n,
		Clusters: clusters,
		Titles:   make([]string, n),
		Matrix:   make([]float32, n*n),
	}
	for i := 0; i < n; i++ {
		cl := c.ClusterOf(i)
		c.Titles[i] = fmt.Sprintf("The %s %s %d",
			adjectives[cl%len(adjectives)], nouns[(cl/len(adjectives))%len(nouns)], i)
	}
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := float32(1)
			if i != j {
				v = 0.3 * noise(i, j)
				if c.ClusterOf(i) == c.ClusterOf(j) {
					v += 0.6
				}
			}
			c.Matrix[i*n+j] = v
			c.Matrix[j*n+i] = v
		}
	}
	return c
}

// ClusterOf returns the cluster of item i.
func (c *Corpus) ClusterOf(i int) int {
	return i % c.Clusters
}

// ExpectedTopK is a brute-force reference: all peers of index ordered by score
// descending then index ascending, cut to k.
func (c *Corpus) ExpectedTopK(index, k int) []string {
	peers := make([]int, 0, c.N-1)
	for j := 0; j < c.N; j++ {
		if j != index {
			peers = append(peers, j)
		}
	}
	row := c.Matrix[index*c.N : (index+1)*c.N]
	sort.SliceStable(peers, func(a, b int) bool {
		return row[peers[a]] > row[peers[b]]
	})
	if k > len(peers) {
		k = len(peers)
	}
	out := make([]string, k)
	for i := 0; i < k; i++ {
		out[i] = c.Titles[peers[i]]
	}
	return out
}

// noise is a deterministic value in [0, 1) for an unordered pair.
func noise(i, j int) float32 {
	h := uint32(i)*2654435761 ^ uint32(j)*40503
	h ^= h >> 13
	h *= 0x5bd1e995
	h ^= h >> 15
	return float32(h%10000) / 10000
}
