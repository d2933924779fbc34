package similarity

import (
	"container/heap"
	"fmt"
	"sort"

	"github.com/hyperjump/osusume/internal/models"
)

// heapThreshold is the catalog size above which TopK switches from a full sort of the row
// to a bounded heap of size k. Both paths produce the same ordering.
const heapThreshold = 4096

// ranksBefore reports whether a should be listed before b: higher score first,
// ascending peer index on equal scores.
func ranksBefore(a, b models.Neighbor) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.Index < b.Index
}

// TopK returns the k most similar peers of index, excluding index itself, ordered by
// score descending and then by ascending peer index. The result has min(k, N-1) entries.
func TopK(s *Store, index, k int) ([]models.Neighbor, error) {
	if index < 0 || index >= s.n {
		return nil, fmt.Errorf("%w: %d (items: %d)", ErrIndexOutOfRange, index, s.n)
	}
	if k <= 0 || s.n < 2 {
		return []models.Neighbor{}, nil
	}
	if k > s.n-1 {
		k = s.n - 1
	}
	if s.n > heapThreshold {
		return topKHeap(s, index, k), nil
	}
	return topKSort(s, index, k), nil
}

func topKSort(s *Store, index, k int) []models.Neighbor {
	row, _ := s.RowOf(index)
	sort.Slice(row, func(i, j int) bool { return ranksBefore(row[i], row[j]) })
	out := make([]models.Neighbor, k)
	copy(out, row[:k])
	return out
}

// worstFirst keeps the lowest-ranked candidate at the root so it can be replaced.
type worstFirst []models.Neighbor

func (h worstFirst) Len() int           { return len(h) }
func (h worstFirst) Less(i, j int) bool { return ranksBefore(h[j], h[i]) }
func (h worstFirst) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *worstFirst) Push(x any)        { *h = append(*h, x.(models.Neighbor)) }
func (h *worstFirst) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

func topKHeap(s *Store, index, k int) []models.Neighbor {
	h := make(worstFirst, 0, k)
	for j := 0; j < s.n; j++ {
		if j == index {
			continue
		}
		cand := models.Neighbor{Index: j, Score: s.Score(index, j)}
		if len(h) < k {
			heap.Push(&h, cand)
			continue
		}
		if ranksBefore(cand, h[0]) {
			h[0] = cand
			heap.Fix(&h, 0)
		}
	}
	out := make([]models.Neighbor, len(h))
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(&h).(models.Neighbor)
	}
	return out
}
