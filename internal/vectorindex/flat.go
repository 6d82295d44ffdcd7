// Package vectorindex provides an exact nearest-neighbour index over a dense
// float32 matrix using squared L2 distance.
package vectorindex

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
)

var (
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	ErrInvalidFormat     = errors.New("invalid index format")
)

const (
	formatMagic   = "AKFL"
	formatVersion = uint32(1)
)

// Hit is one search result: a row position and its squared L2 distance.
type Hit struct {
	Position int
	Distance float32
}

// Flat scans every stored vector on each query. Positions follow insertion
// order of the matrix it was built from.
type Flat struct {
	dim  int
	data []float32
}

// Build copies matrix into a new index. All rows must share one width.
func Build(matrix [][]float32) (*Flat, error) {
	idx := &Flat{}
	if len(matrix) == 0 {
		return idx, nil
	}
	idx.dim = len(matrix[0])
	if idx.dim == 0 {
		return nil, fmt.Errorf("%w: zero-width vectors", ErrDimensionMismatch)
	}
	idx.data = make([]float32, 0, len(matrix)*idx.dim)
	for i, row := range matrix {
		if len(row) != idx.dim {
			return nil, fmt.Errorf("%w: row %d has %d, expected %d", ErrDimensionMismatch, i, len(row), idx.dim)
		}
		idx.data = append(idx.data, row...)
	}
	return idx, nil
}

// Len returns the number of stored vectors.
func (f *Flat) Len() int {
	if f == nil || f.dim == 0 {
		return 0
	}
	return len(f.data) / f.dim
}

// Dimension returns the vector width, or 0 when empty.
func (f *Flat) Dimension() int {
	if f == nil {
		return 0
	}
	return f.dim
}

// Search returns up to k nearest rows by ascending distance. Equal distances
// keep the lower position first.
func (f *Flat) Search(query []float32, k int) ([]Hit, error) {
	n := f.Len()
	if k <= 0 || n == 0 {
		return []Hit{}, nil
	}
	if len(query) != f.dim {
		return nil, fmt.Errorf("%w: query has %d, index has %d", ErrDimensionMismatch, len(query), f.dim)
	}
	if k > n {
		k = n
	}

	hits := make([]Hit, n)
	for i := 0; i < n; i++ {
		hits[i] = Hit{Position: i, Distance: squaredL2(query, f.data[i*f.dim:(i+1)*f.dim])}
	}
	sort.SliceStable(hits, func(a, b int) bool {
		return hits[a].Distance < hits[b].Distance
	})
	return hits[:k], nil
}

func squaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// MarshalBinary encodes the index as magic, version, dim, count and the
// row-major float32 data, all little-endian.
func (f *Flat) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(16 + 4*len(f.data))
	buf.WriteString(formatMagic)

	header := []uint32{formatVersion, uint32(f.dim), uint32(f.Len())}
	if err := binary.Write(&buf, binary.LittleEndian, header); err != nil {
		return nil, fmt.Errorf("failed to write index header: %w", err)
	}
	raw := make([]byte, 4)
	for _, v := range f.data {
		binary.LittleEndian.PutUint32(raw, math.Float32bits(v))
		buf.Write(raw)
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary replaces the index with the encoded data.
func (f *Flat) UnmarshalBinary(data []byte) error {
	r := bytes.NewReader(data)

	magic := make([]byte, len(formatMagic))
	if _, err := io.ReadFull(r, magic); err != nil || string(magic) != formatMagic {
		return fmt.Errorf("%w: bad magic", ErrInvalidFormat)
	}
	var header [3]uint32
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return fmt.Errorf("%w: short header", ErrInvalidFormat)
	}
	version, dim, count := header[0], int(header[1]), int(header[2])
	if version != formatVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrInvalidFormat, version)
	}
	if (dim == 0) != (count == 0) {
		return fmt.Errorf("%w: dim %d with count %d", ErrInvalidFormat, dim, count)
	}
	// Compare by division so a corrupt header cannot overflow the size.
	payload := r.Len()
	if payload%4 != 0 || (dim == 0 && payload != 0) || (dim > 0 && (payload/4%dim != 0 || payload/4/dim != count)) {
		return fmt.Errorf("%w: %d data bytes do not hold %d vectors of dim %d", ErrInvalidFormat, payload, count, dim)
	}

	values := make([]float32, dim*count)
	raw := data[len(data)-r.Len():]
	for i := range values {
		values[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[4*i:]))
	}
	f.dim = dim
	f.data = values
	if count == 0 {
		f.data = nil
	}
	return nil
}
