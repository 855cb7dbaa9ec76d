package boundaries

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"osmextract/osmprocessing"
)

// region cells are coarser than the default, admin areas are large
const regionCellSize = 0.1

// Regions answers which boundary a point lies in. Only boundaries with at
// least one closed ring take part.
type Regions struct {
	index      *osmprocessing.SpatialIndex
	boundaries []Boundary
}

func NewRegions(boundaries []Boundary) *Regions {
	r := &Regions{index: osmprocessing.NewSpatialIndex(regionCellSize)}
	for _, b := range boundaries {
		if len(b.Geometry) == 0 {
			continue
		}
		r.index.Insert(len(r.boundaries), b.Geometry.Bound())
		r.boundaries = append(r.boundaries, b)
	}
	return r
}

func (r *Regions) Len() int {
	return r.index.Len()
}

// Locate returns the boundary whose polygons contain p. When several do, the
// one listed first wins.
func (r *Regions) Locate(p orb.Point) (*Boundary, bool) {
	for _, i := range r.index.QueryPoint(p) {
		if planar.MultiPolygonContains(r.boundaries[i].Geometry, p) {
			return &r.boundaries[i], true
		}
	}
	return nil, false
}
