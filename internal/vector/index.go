// Package vector provides an exact nearest-neighbor index over fixed-dimension
// vectors with positional record ids and binary persistence.
package vector

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
)

// ErrDimensionMismatch is returned when a vector's length does not match the
// index dimension. The operation fails without modifying existing records.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Match is a single nearest-neighbor hit. ID is the positional record id
// assigned at insertion; it is the caller's join key into its own metadata
// sequence. Distance is squared Euclidean distance.
type Match struct {
	ID       int
	Distance float64
}

// FlatIndex stores vectors append-only and answers exact k-NN queries by
// squared Euclidean distance. Both stored and query vectors are expected to be
// L2-normalized by the caller, which makes the ranking equivalent to cosine
// similarity. FlatIndex is not safe for concurrent use; callers serialize
// access.
type FlatIndex struct {
	dimension int
	vectors   [][]float32
}

// NewFlatIndex creates an empty index for vectors of the given dimension.
func NewFlatIndex(dimension int) (*FlatIndex, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("dimension must be positive, got %d", dimension)
	}
	return &FlatIndex{dimension: dimension}, nil
}

// Dimension returns the configured vector dimension.
func (x *FlatIndex) Dimension() int {
	return x.dimension
}

// Size returns the number of stored vectors.
func (x *FlatIndex) Size() int {
	return len(x.vectors)
}

// Add appends vectors in input order, assigning consecutive record ids.
// Every vector is validated before any is appended, so a dimension mismatch
// leaves the index unchanged.
func (x *FlatIndex) Add(vectors [][]float32) error {
	for i, v := range vectors {
		if len(v) != x.dimension {
			return fmt.Errorf("%w: vector %d has length %d, index expects %d",
				ErrDimensionMismatch, i, len(v), x.dimension)
		}
	}
	for _, v := range vectors {
		stored := make([]float32, x.dimension)
		copy(stored, v)
		x.vectors = append(x.vectors, stored)
	}
	return nil
}

// Search returns the min(k, Size()) records nearest to query, ascending by
// distance. Ties keep insertion order. An empty index yields an empty result,
// not an error.
func (x *FlatIndex) Search(query []float32, k int) ([]Match, error) {
	if len(query) != x.dimension {
		return nil, fmt.Errorf("%w: query has length %d, index expects %d",
			ErrDimensionMismatch, len(query), x.dimension)
	}
	if k <= 0 || len(x.vectors) == 0 {
		return []Match{}, nil
	}
	matches := make([]Match, len(x.vectors))
	for i, v := range x.vectors {
		matches[i] = Match{ID: i, Distance: SquaredDistance(query, v)}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Distance < matches[j].Distance })
	if k > len(matches) {
		k = len(matches)
	}
	return matches[:k], nil
}

// Reset discards all stored vectors. The dimension is unchanged.
func (x *FlatIndex) Reset() {
	x.vectors = nil
}

// Save writes the index to path, creating parent directories if needed.
// Format: dimension (uint32), count (uint32), then count*dimension float32
// values in insertion order, all little-endian.
func (x *FlatIndex) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	defer f.Close()
	if err := x.write(f); err != nil {
		return err
	}
	return f.Close()
}

func (x *FlatIndex) write(w io.Writer) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(x.dimension)); err != nil {
		return fmt.Errorf("write dimension: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(x.vectors))); err != nil {
		return fmt.Errorf("write count: %w", err)
	}
	buf := make([]byte, x.dimension*4)
	for _, v := range x.vectors {
		for i, f := range v {
			binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
		}
		if _, err := w.Write(buf); err != nil {
			return fmt.Errorf("write vector: %w", err)
		}
	}
	return nil
}

// LoadFlatIndex reads an index previously written by Save. The round-trip is
// exact: same vectors, same order, same count.
func LoadFlatIndex(path string) (*FlatIndex, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open index file: %w", err)
	}
	defer f.Close()
	return readFlatIndex(f)
}

func readFlatIndex(r io.Reader) (*FlatIndex, error) {
	var dim, count uint32
	if err := binary.Read(r, binary.LittleEndian, &dim); err != nil {
		return nil, fmt.Errorf("read dimension: %w", err)
	}
	if dim == 0 {
		return nil, fmt.Errorf("invalid index file: zero dimension")
	}
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("read count: %w", err)
	}
	x := &FlatIndex{dimension: int(dim)}
	buf := make([]byte, int(dim)*4)
	for i := uint32(0); i < count; i++ {
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, fmt.Errorf("read vector %d: %w", i, err)
		}
		v := make([]float32, dim)
		for j := range v {
			v[j] = math.Float32frombits(binary.LittleEndian.Uint32(buf[j*4:]))
		}
		x.vectors = append(x.vectors, v)
	}
	return x, nil
}
