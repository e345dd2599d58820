package testutil

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/i474232898/weather-chunk-server/internal/chunk"
	"github.com/i474232898/weather-chunk-server/internal/dataset"
	"github.com/i474232898/weather-chunk-server/internal/grid"
)

// Grids builds depth stacked 150×150 grids filled by fn.
func Grids(depth int, fn func(k, row, col int) float32) []float32 {
	out := make([]float32, depth*chunk.GridSize)
	for k := 0; k < depth; k++ {
		for r := 0; r < chunk.Side; r++ {
			for c := 0; c < chunk.Side; c++ {
				out[k*chunk.GridSize+r*chunk.Side+c] = fn(k, r, c)
			}
		}
	}
	return out
}

// Kelvin fills grids with plausible 2 m temperatures that differ per cell.
func Kelvin(k, row, col int) float32 {
	return 260 + float32(row)*0.1 + float32(col)*0.01 + float32(k)
}

// MakeSnapshot creates root/name and stamps it with mod.
func MakeSnapshot(t testing.TB, fs afero.Fs, root, name string, mod time.Time) string {
	t.Helper()
	path := filepath.Join(root, name)
	if err := fs.MkdirAll(path, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", path, err)
	}
	Touch(t, fs, path, mod)
	return path
}

// Touch sets the modification time of path.
func Touch(t testing.TB, fs afero.Fs, path string, mod time.Time) {
	t.Helper()
	if err := fs.Chtimes(path, mod, mod); err != nil {
		t.Fatalf("chtimes %s: %v", path, err)
	}
}

// WriteChunk compresses values and stores them where the chunk store
// expects to find them.
func WriteChunk(t testing.TB, fs afero.Fs, snapshot, field string, chunkID int, values []float32) {
	t.Helper()
	frame, err := chunk.Compress(chunk.Encode(values), chunk.DefaultOptions())
	if err != nil {
		t.Fatalf("compress chunk: %v", err)
	}
	WriteRaw(t, fs, snapshot, field, chunkID, frame)
}

// WriteRaw stores data verbatim as a chunk file.
func WriteRaw(t testing.TB, fs afero.Fs, snapshot, field string, chunkID int, data []byte) {
	t.Helper()
	path := dataset.ChunkPath(snapshot, field, chunkID)
	if err := afero.WriteFile(fs, path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// RegularEntries lays out an nx×ny index with the given spacing starting at
// (x0, y0), chunked into side×side tiles numbered row-major.
func RegularEntries(x0, y0 float64, nx, ny int, spacing float64, side int) []grid.Entry {
	chunksPerRow := (nx + side - 1) / side
	entries := make([]grid.Entry, 0, nx*ny)
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			entries = append(entries, grid.Entry{
				X:       x0 + float64(i)*spacing,
				Y:       y0 + float64(j)*spacing,
				ChunkID: (j/side)*chunksPerRow + i/side,
				Row:     j % side,
				Col:     i % side,
			})
		}
	}
	return entries
}

// DenverLocator indexes a 3 km, 300×300 grid whose chunks are 150 wide,
// placed so Denver (39.74, -104.99) falls in chunk 0 at row 11, col 10.
func DenverLocator(t testing.TB) *grid.Locator {
	t.Helper()
	p, err := grid.NewLambertProjector()
	if err != nil {
		t.Fatalf("projector: %v", err)
	}
	idx, err := grid.NewRTreeIndex(RegularEntries(-670000, 130000, 300, 300, 3000, chunk.Side))
	if err != nil {
		t.Fatalf("index: %v", err)
	}
	return grid.NewLocator(p, idx, 0)
}

// Denver coordinates and where DenverLocator places them.
const (
	DenverLat   = 39.74
	DenverLon   = -104.99
	DenverChunk = 0
	DenverRow   = 11
	DenverCol   = 10
)
