package dataset

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/afero"
)

var (
	// ErrNoSnapshot means the snapshot root holds no snapshot yet. Ingestion
	// runs asynchronously, so callers should treat it as retryable.
	ErrNoSnapshot = errors.New("no snapshot available")

	// ErrStoreIO wraps unexpected filesystem failures.
	ErrStoreIO = errors.New("dataset i/o error")
)

// Snapshot is one immutable dataset refresh on disk.
type Snapshot struct {
	Name    string
	Path    string
	ModTime time.Time
}

// LatestSnapshot returns the immediate subdirectory of root with the most
// recent modification time. Equal times fall back to the greater name so the
// choice is stable.
func LatestSnapshot(fsys afero.Fs, root string) (Snapshot, error) {
	infos, err := afero.ReadDir(fsys, root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Snapshot{}, fmt.Errorf("%w: %s does not exist", ErrNoSnapshot, root)
		}
		return Snapshot{}, fmt.Errorf("%w: scan %s: %v", ErrStoreIO, root, err)
	}

	var (
		best  Snapshot
		found bool
	)
	for _, info := range infos {
		if !info.IsDir() {
			continue
		}
		mod := info.ModTime()
		if !found || mod.After(best.ModTime) || (mod.Equal(best.ModTime) && info.Name() > best.Name) {
			best = Snapshot{Name: info.Name(), Path: filepath.Join(root, info.Name()), ModTime: mod}
			found = true
		}
	}
	if !found {
		return Snapshot{}, fmt.Errorf("%w: %s is empty", ErrNoSnapshot, root)
	}
	return best, nil
}

// DirResolver scans the snapshot root on every call.
type DirResolver struct {
	fs   afero.Fs
	root string
}

func NewDirResolver(fsys afero.Fs, root string) *DirResolver {
	return &DirResolver{fs: fsys, root: root}
}

func (r *DirResolver) Latest(ctx context.Context) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	return LatestSnapshot(r.fs, r.root)
}

// CachedResolver remembers the last snapshot observed by Refresh. It scans
// the root itself only while nothing has been observed yet, so a fresh
// process still answers before the first scheduled refresh.
type CachedResolver struct {
	live *DirResolver

	mu      sync.RWMutex
	current Snapshot
	ok      bool
}

func NewCachedResolver(live *DirResolver) *CachedResolver {
	return &CachedResolver{live: live}
}

func (r *CachedResolver) Latest(ctx context.Context) (Snapshot, error) {
	r.mu.RLock()
	snap, ok := r.current, r.ok
	r.mu.RUnlock()
	if ok {
		return snap, nil
	}
	return r.Refresh(ctx)
}

// Refresh rescans the root. A failed scan keeps the previous answer.
func (r *CachedResolver) Refresh(ctx context.Context) (Snapshot, error) {
	snap, err := r.live.Latest(ctx)
	if err != nil {
		return Snapshot{}, err
	}

	r.mu.Lock()
	r.current, r.ok = snap, true
	r.mu.Unlock()
	return snap, nil
}
