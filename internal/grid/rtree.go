package grid

import (
	"fmt"

	"github.com/dhconnelly/rtreego"
)

const pointTolerance = 1e-3

type cell struct {
	entry Entry
	rect  rtreego.Rect
}

func (c *cell) Bounds() rtreego.Rect { return c.rect }

// RTreeIndex answers nearest-neighbour queries over index entries with an
// R-tree bulk loaded once at startup.
type RTreeIndex struct {
	tree *rtreego.Rtree
	size int
}

// NewRTreeIndex builds the index. An empty entry set is ErrIndexUnavailable.
func NewRTreeIndex(entries []Entry) (*RTreeIndex, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: no entries", ErrIndexUnavailable)
	}
	objs := make([]rtreego.Spatial, len(entries))
	for i, e := range entries {
		objs[i] = &cell{entry: e, rect: rtreego.Point{e.X, e.Y}.ToRect(pointTolerance)}
	}
	return &RTreeIndex{
		tree: rtreego.NewTree(2, 25, 50, objs...),
		size: len(entries),
	}, nil
}

// Nearest returns the entry closest to (x, y) under Euclidean distance.
func (r *RTreeIndex) Nearest(x, y float64) (Entry, bool) {
	obj := r.tree.NearestNeighbor(rtreego.Point{x, y})
	if obj == nil {
		return Entry{}, false
	}
	return obj.(*cell).entry, true
}

// Len is the number of entries in the index.
func (r *RTreeIndex) Len() int { return r.size }
