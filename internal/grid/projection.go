package grid

import (
	"fmt"

	"github.com/ctessum/geom/proj"
)

// LambertConformal is the native projection of the forecast grid: a
// tangent Lambert Conformal Conic on a sphere of radius 6,371,229 m.
const LambertConformal = "+proj=lcc +lat_0=38.5 +lon_0=262.5 +lat_1=38.5 +lat_2=38.5 +a=6371229 +b=6371229 +units=m +no_defs"

const geographic = "+proj=longlat +a=6371229 +b=6371229 +no_defs"

// Projector converts geographic coordinates to planar grid coordinates.
type Projector struct {
	forward proj.Transformer
}

// NewProjector builds a projector for the given proj4 definition.
func NewProjector(definition string) (*Projector, error) {
	src, err := proj.Parse(geographic)
	if err != nil {
		return nil, fmt.Errorf("parse geographic definition: %w", err)
	}
	dst, err := proj.Parse(definition)
	if err != nil {
		return nil, fmt.Errorf("parse grid projection: %w", err)
	}
	forward, err := src.NewTransform(dst)
	if err != nil {
		return nil, fmt.Errorf("build grid transform: %w", err)
	}
	return &Projector{forward: forward}, nil
}

// NewLambertProjector returns the projector for the forecast grid.
func NewLambertProjector() (*Projector, error) {
	return NewProjector(LambertConformal)
}

// Project maps (lat, lon) in degrees to (x, y) in metres.
func (p *Projector) Project(lat, lon float64) (x, y float64, err error) {
	x, y, err = p.forward(lon, lat)
	if err != nil {
		return 0, 0, fmt.Errorf("project (%f, %f): %w", lat, lon, err)
	}
	return x, y, nil
}
