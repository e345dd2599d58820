package sources

import (
	"context"
	"fmt"

	"github.com/spf13/afero"

	"github.com/i474232898/weather-chunk-server/internal/grid"
)

// FileSource reads the index from a local (or mounted) file.
type FileSource struct {
	fs   afero.Fs
	path string
}

func NewFileSource(fs afero.Fs, path string) *FileSource {
	return &FileSource{fs: fs, path: path}
}

func (s *FileSource) Name() string { return "file:" + s.path }

func (s *FileSource) Load(ctx context.Context) ([]grid.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := s.fs.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open index file: %w", err)
	}
	defer f.Close()
	return ParseIndex(f)
}
