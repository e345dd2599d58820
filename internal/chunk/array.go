package chunk

import (
	"encoding/binary"
	"fmt"
	"math"
)

const (
	// Side is the edge length of one grid tile.
	Side = 150
	// GridSize is the number of samples in one tile.
	GridSize = Side * Side

	float32Size = 4
)

// Array is a decoded chunk: a single Side×Side grid, or Depth stacked grids.
// Data is row-major with the stack axis outermost.
type Array struct {
	Depth int
	Data  []float32
}

// Shape is (150,150) for a single grid and (N,150,150) for a stack.
func (a *Array) Shape() []int {
	if a.Depth == 1 {
		return []int{Side, Side}
	}
	return []int{a.Depth, Side, Side}
}

// Stacked reports whether the chunk holds more than one grid.
func (a *Array) Stacked() bool { return a.Depth > 1 }

// At returns the value of grid k at (row, col).
func (a *Array) At(k, row, col int) float32 {
	return a.Data[k*GridSize+row*Side+col]
}

// Column returns the value at (row, col) for every grid in the stack.
func (a *Array) Column(row, col int) []float32 {
	out := make([]float32, a.Depth)
	for k := range out {
		out[k] = a.At(k, row, col)
	}
	return out
}

// Decode decompresses a chunk file and reshapes its little-endian float32
// payload.
func Decode(raw []byte) (*Array, error) {
	buf, err := Decompress(raw)
	if err != nil {
		return nil, err
	}
	return Reshape(buf)
}

// Reshape interprets buf as little-endian float32 samples and checks that
// they form a whole number of grids.
func Reshape(buf []byte) (*Array, error) {
	if len(buf)%float32Size != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a whole number of float32 values", ErrCorrupt, len(buf))
	}
	n := len(buf) / float32Size
	if n == 0 || n%GridSize != 0 {
		return nil, fmt.Errorf("%w: %d values is not a multiple of %d", ErrCorrupt, n, GridSize)
	}

	data := make([]float32, n)
	for i := range data {
		data[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*float32Size:]))
	}
	return &Array{Depth: n / GridSize, Data: data}, nil
}

// Encode is the inverse of Reshape.
func Encode(data []float32) []byte {
	buf := make([]byte, len(data)*float32Size)
	for i, v := range data {
		binary.LittleEndian.PutUint32(buf[i*float32Size:], math.Float32bits(v))
	}
	return buf
}
