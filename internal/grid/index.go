package grid

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrIndexUnavailable means the bootstrap index could not be loaded.
	// The service must not accept traffic without it.
	ErrIndexUnavailable = errors.New("chunk index unavailable")

	// ErrOutsideGrid is returned when the nearest index cell is farther
	// than the configured maximum distance.
	ErrOutsideGrid = errors.New("coordinate outside forecast grid")
)

// Entry is one cell of the chunk index: a projected position, the chunk
// holding it and its offset inside that chunk.
type Entry struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	ChunkID int     `json:"chunkId"`
	Row     int     `json:"row"`
	Col     int     `json:"col"`
}

// Finder resolves a projected coordinate to its nearest index entry.
// Implementations are immutable once built and safe for concurrent use.
type Finder interface {
	Nearest(x, y float64) (Entry, bool)
	Len() int
}

// Source supplies the raw entries of the bootstrap index.
type Source interface {
	Name() string
	Load(ctx context.Context) ([]Entry, error)
}

// Load pulls every entry from src and builds the production finder.
// Any failure is reported as ErrIndexUnavailable.
func Load(ctx context.Context, src Source) (Finder, error) {
	entries, err := src.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrIndexUnavailable, src.Name(), err)
	}
	idx, err := NewRTreeIndex(entries)
	if err != nil {
		return nil, err
	}
	return idx, nil
}
