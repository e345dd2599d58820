package grid

import (
	"context"
	"errors"
	"math"
	"testing"
)

func TestProjectorLambert(t *testing.T) {
	p, err := NewLambertProjector()
	if err != nil {
		t.Fatalf("NewLambertProjector() error = %v", err)
	}

	// Reference values from the closed-form spherical tangent-cone equations.
	tests := []struct {
		name     string
		lat, lon float64
		x, y     float64
	}{
		{name: "projection origin", lat: 38.5, lon: -97.5, x: 0, y: 0},
		{name: "denver", lat: 39.74, lon: -104.99, x: -639889.95, y: 163948.44},
		{name: "new york", lat: 40.71, lon: -74.01, x: 1960045.36, y: 497296.25},
		{name: "grid south-west corner", lat: 21.138, lon: -122.72, x: -2697573.22, y: -1587306.07},
		{name: "east-positive longitude", lat: 39.74, lon: 255.01, x: -639889.95, y: 163948.44},
	}

	const tolerance = 5.0 // metres
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, y, err := p.Project(tt.lat, tt.lon)
			if err != nil {
				t.Fatalf("Project() error = %v", err)
			}
			if math.Abs(x-tt.x) > tolerance || math.Abs(y-tt.y) > tolerance {
				t.Errorf("Project(%v, %v) = (%.2f, %.2f), want (%.2f, %.2f)", tt.lat, tt.lon, x, y, tt.x, tt.y)
			}
		})
	}
}

// regularEntries lays out an nx×ny grid with the given spacing, chunked
// into tiles of side entries.
func regularEntries(nx, ny int, spacing float64, side int) []Entry {
	chunksPerRow := (nx + side - 1) / side
	entries := make([]Entry, 0, nx*ny)
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			entries = append(entries, Entry{
				X:       float64(i) * spacing,
				Y:       float64(j) * spacing,
				ChunkID: (j/side)*chunksPerRow + i/side,
				Row:     j % side,
				Col:     i % side,
			})
		}
	}
	return entries
}

func TestRTreeIndexNearest(t *testing.T) {
	idx, err := NewRTreeIndex(regularEntries(40, 30, 3000, 10))
	if err != nil {
		t.Fatalf("NewRTreeIndex() error = %v", err)
	}
	if idx.Len() != 1200 {
		t.Fatalf("Len() = %d, want 1200", idx.Len())
	}

	tests := []struct {
		name      string
		x, y      float64
		wantChunk int
		wantRow   int
		wantCol   int
	}{
		{name: "exact cell", x: 0, y: 0, wantChunk: 0, wantRow: 0, wantCol: 0},
		{name: "rounds down", x: 31400, y: 1200, wantChunk: 1, wantRow: 0, wantCol: 0},
		{name: "rounds up", x: 31600, y: 1600, wantChunk: 1, wantRow: 1, wantCol: 1},
		{name: "second chunk row", x: 44800, y: 60100, wantChunk: 9, wantRow: 0, wantCol: 5},
		{name: "clamps outside", x: -50000, y: -50000, wantChunk: 0, wantRow: 0, wantCol: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, ok := idx.Nearest(tt.x, tt.y)
			if !ok {
				t.Fatal("Nearest() found nothing")
			}
			if e.ChunkID != tt.wantChunk || e.Row != tt.wantRow || e.Col != tt.wantCol {
				t.Errorf("Nearest(%v, %v) = chunk %d (%d,%d), want chunk %d (%d,%d)",
					tt.x, tt.y, e.ChunkID, e.Row, e.Col, tt.wantChunk, tt.wantRow, tt.wantCol)
			}
		})
	}
}

func TestRTreeIndexEmpty(t *testing.T) {
	if _, err := NewRTreeIndex(nil); !errors.Is(err, ErrIndexUnavailable) {
		t.Fatalf("NewRTreeIndex(nil) error = %v, want ErrIndexUnavailable", err)
	}
}

func TestLocatorDeterministic(t *testing.T) {
	p, err := NewLambertProjector()
	if err != nil {
		t.Fatalf("NewLambertProjector() error = %v", err)
	}
	// A 3 km grid around Denver's projected position.
	entries := regularEntries(20, 20, 3000, 10)
	for i := range entries {
		entries[i].X -= 670000
		entries[i].Y += 130000
	}
	idx, err := NewRTreeIndex(entries)
	if err != nil {
		t.Fatalf("NewRTreeIndex() error = %v", err)
	}
	loc := NewLocator(p, idx, 0)

	first, err := loc.Locate(39.74, -104.99)
	if err != nil {
		t.Fatalf("Locate() error = %v", err)
	}
	for i := 0; i < 50; i++ {
		again, err := loc.Locate(39.74, -104.99)
		if err != nil {
			t.Fatalf("Locate() error = %v", err)
		}
		if again != first {
			t.Fatalf("Locate() = %+v on call %d, want %+v", again, i, first)
		}
	}
	// x: -639890 → column 10 of the grid, y: 163948 → row 11.
	if first.ChunkID != 3 || first.Row != 1 || first.Col != 0 {
		t.Errorf("Locate(denver) = %+v, want chunk 3 row 1 col 0", first)
	}
}

func TestLocatorMaxDistance(t *testing.T) {
	p, err := NewLambertProjector()
	if err != nil {
		t.Fatalf("NewLambertProjector() error = %v", err)
	}
	idx, err := NewRTreeIndex(regularEntries(5, 5, 3000, 5))
	if err != nil {
		t.Fatalf("NewRTreeIndex() error = %v", err)
	}
	loc := NewLocator(p, idx, 5000)

	if _, err := loc.Locate(38.5, -97.5); err != nil {
		t.Errorf("Locate(origin) error = %v", err)
	}
	if _, err := loc.Locate(39.74, -104.99); !errors.Is(err, ErrOutsideGrid) {
		t.Errorf("Locate(denver) error = %v, want ErrOutsideGrid", err)
	}
}

type staticSource struct {
	entries []Entry
	err     error
}

func (s staticSource) Name() string { return "static" }

func (s staticSource) Load(ctx context.Context) ([]Entry, error) { return s.entries, s.err }

func TestLoad(t *testing.T) {
	finder, err := Load(context.Background(), staticSource{entries: regularEntries(3, 3, 1, 3)})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if finder.Len() != 9 {
		t.Errorf("Len() = %d, want 9", finder.Len())
	}

	_, err = Load(context.Background(), staticSource{err: errors.New("boom")})
	if !errors.Is(err, ErrIndexUnavailable) {
		t.Errorf("Load() error = %v, want ErrIndexUnavailable", err)
	}
}
