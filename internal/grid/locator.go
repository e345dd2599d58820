package grid

import (
	"fmt"
	"math"
)

// Locator chains the projector and the finder: (lat, lon) in, index entry out.
type Locator struct {
	projector   *Projector
	finder      Finder
	maxDistance float64
}

// NewLocator wires a projector to a finder. maxDistance (metres) of zero
// disables the outside-grid check.
func NewLocator(projector *Projector, finder Finder, maxDistance float64) *Locator {
	return &Locator{projector: projector, finder: finder, maxDistance: maxDistance}
}

// Locate resolves a geographic coordinate to its chunk and in-chunk offset.
func (l *Locator) Locate(lat, lon float64) (Entry, error) {
	x, y, err := l.projector.Project(lat, lon)
	if err != nil {
		return Entry{}, err
	}
	e, ok := l.finder.Nearest(x, y)
	if !ok {
		return Entry{}, ErrIndexUnavailable
	}
	if l.maxDistance > 0 {
		if d := math.Hypot(e.X-x, e.Y-y); d > l.maxDistance {
			return Entry{}, fmt.Errorf("%w: nearest cell is %.0f m away", ErrOutsideGrid, d)
		}
	}
	return e, nil
}

// Size reports how many entries back the locator.
func (l *Locator) Size() int { return l.finder.Len() }
