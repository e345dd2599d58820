package dataset

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strconv"

	"github.com/spf13/afero"
)

// ErrChunkNotFound is the expected absence of a chunk for a field, e.g. a
// forecast hour with no data. It is not an I/O failure.
var ErrChunkNotFound = errors.New("chunk not found")

// chunkGroup is the array group directory every snapshot stores fields under.
const chunkGroup = "1"

// ChunkStore reads raw chunk files out of a snapshot.
type ChunkStore struct {
	fs afero.Fs
}

func NewChunkStore(fsys afero.Fs) *ChunkStore {
	return &ChunkStore{fs: fsys}
}

// ChunkPath is <snapshot>/1/<field>/<chunk id>.
func ChunkPath(snapshot, field string, chunkID int) string {
	return filepath.Join(snapshot, chunkGroup, field, strconv.Itoa(chunkID))
}

// Read loads the whole compressed chunk file into memory.
func (s *ChunkStore) Read(snapshot, field string, chunkID int) ([]byte, error) {
	path := ChunkPath(snapshot, field, chunkID)
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrChunkNotFound, path)
		}
		return nil, fmt.Errorf("%w: read %s: %v", ErrStoreIO, path, err)
	}
	return data, nil
}
