// Package similarity holds the precomputed item-item similarity matrix and top-k selection over it.
package similarity

import (
	"errors"
	"fmt"
	"math"

	"github.com/x448/float16"

	"github.com/hyperjump/osusume/internal/models"
)

// DType is the element type a Store keeps in memory.
type DType string

const (
	// DTypeFloat16 stores IEEE 754 half precision values (2 bytes each).
	// Quantization can turn distinct similarities into ties; TopK breaks them by index.
	DTypeFloat16 DType = "float16"
	// DTypeFloat32 stores single precision values (4 bytes each).
	DTypeFloat32 DType = "float32"
)

// maxAbsScore bounds accepted similarity values. Cosine similarity lies in [-1, 1];
// the slack absorbs rounding in the offline job.
const maxAbsScore = 1.01

// ErrIndexOutOfRange is returned for row indices outside [0, Len()).
var ErrIndexOutOfRange = errors.New("similarity index out of range")

// Store is an immutable N x N similarity matrix in row-major order.
// Row i, column j holds similarity(item i, item j). There are no mutating methods,
// so a Store may be shared by any number of goroutines.
type Store struct {
	n     int
	dtype DType
	half  []float16.Float16
	full  []float32
}

// NewStore builds a float32 store from n*n row-major values.
func NewStore(n int, values []float32) (*Store, error) {
	if err := checkValues(n, values); err != nil {
		return nil, err
	}
	full := make([]float32, len(values))
	copy(full, values)
	return &Store{n: n, dtype: DTypeFloat32, full: full}, nil
}

// NewHalfStore builds a float16 store, quantizing n*n row-major values.
func NewHalfStore(n int, values []float32) (*Store, error) {
	if err := checkValues(n, values); err != nil {
		return nil, err
	}
	half := make([]float16.Float16, len(values))
	for i, v := range values {
		half[i] = float16.Fromfloat32(v)
	}
	return &Store{n: n, dtype: DTypeFloat16, half: half}, nil
}

func newHalfStoreFromBits(n int, half []float16.Float16) (*Store, error) {
	if n <= 0 || len(half) != n*n {
		return nil, fmt.Errorf("matrix must be square and non-empty: n=%d, values=%d", n, len(half))
	}
	for i, h := range half {
		if err := checkScore(h.Float32()); err != nil {
			return nil, fmt.Errorf("value at row %d col %d: %w", i/n, i%n, err)
		}
	}
	return &Store{n: n, dtype: DTypeFloat16, half: half}, nil
}

func checkValues(n int, values []float32) error {
	if n <= 0 || len(values) != n*n {
		return fmt.Errorf("matrix must be square and non-empty: n=%d, values=%d", n, len(values))
	}
	for i, v := range values {
		if err := checkScore(v); err != nil {
			return fmt.Errorf("value at row %d col %d: %w", i/n, i%n, err)
		}
	}
	return nil
}

func checkScore(v float32) error {
	f := float64(v)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("non-finite similarity %v", v)
	}
	if math.Abs(f) > maxAbsScore {
		return fmt.Errorf("similarity %v outside [-1, 1]", v)
	}
	return nil
}

// Len returns N, the number of items (rows and columns).
func (s *Store) Len() int {
	return s.n
}

// DType returns the in-memory element type.
func (s *Store) DType() DType {
	return s.dtype
}

// SizeBytes returns the memory held by matrix values.
func (s *Store) SizeBytes() int64 {
	if s.dtype == DTypeFloat16 {
		return int64(len(s.half)) * 2
	}
	return int64(len(s.full)) * 4
}

// Score returns similarity(i, j). Callers must pass indices in [0, Len()).
func (s *Store) Score(i, j int) float32 {
	if s.dtype == DTypeFloat16 {
		return s.half[i*s.n+j].Float32()
	}
	return s.full[i*s.n+j]
}

// RowOf returns every (peer, score) pair for index except the self entry, in peer order.
func (s *Store) RowOf(index int) ([]models.Neighbor, error) {
	if index < 0 || index >= s.n {
		return nil, fmt.Errorf("%w: %d (items: %d)", ErrIndexOutOfRange, index, s.n)
	}
	row := make([]models.Neighbor, 0, s.n-1)
	for j := 0; j < s.n; j++ {
		if j == index {
			continue
		}
		row = append(row, models.Neighbor{Index: j, Score: s.Score(index, j)})
	}
	return row, nil
}
