package osmprocessing

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/planar"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
)

// Bounds is the east/north/south/west form of a bounding box used in
// object records.
type Bounds struct {
	E float64 `json:"e"`
	N float64 `json:"n"`
	S float64 `json:"s"`
	W float64 `json:"w"`
}

func BoundsOf(b orb.Bound) Bounds {
	return Bounds{
		E: b.Max.Lon(),
		N: b.Max.Lat(),
		S: b.Min.Lat(),
		W: b.Min.Lon(),
	}
}

// BoundOf returns the smallest bound holding every point. The second result
// is false when points is empty.
func BoundOf(points []orb.Point) (orb.Bound, bool) {
	if len(points) == 0 {
		return orb.Bound{}, false
	}

	// a zero orb.Bound already holds (0, 0), so start from the first point
	b := points[0].Bound()
	for _, p := range points[1:] {
		b = b.Extend(p)
	}
	return b, true
}

// Bound returns the extent of every node in the index.
func (idx *Index) Bound() (orb.Bound, bool) {
	var (
		b     orb.Bound
		found bool
	)
	for _, n := range idx.nodes {
		if !found {
			b, found = n.Point.Bound(), true
			continue
		}
		b = b.Extend(n.Point)
	}
	return b, found
}

// LineCentroid is the area centroid for a closed line and the length
// weighted centroid otherwise.
func LineCentroid(ls orb.LineString) orb.Point {
	switch {
	case len(ls) == 0:
		return orb.Point{}
	case len(ls) == 1:
		return ls[0]
	case len(ls) >= 4 && orb.Ring(ls).Closed():
		c, _ := planar.CentroidArea(orb.Polygon{orb.Ring(ls)})
		return c
	}
	c, _ := planar.CentroidArea(ls)
	return c
}

// ConvexHull returns the closed, counter clockwise hull of points. Collinear
// points give the two extremes, a single distinct point itself.
func ConvexHull(points []orb.Point) orb.Ring {
	if len(points) == 0 {
		return nil
	}

	flat := make([]float64, 0, 2*len(points))
	for _, p := range points {
		flat = append(flat, p.Lon(), p.Lat())
	}

	switch h := xy.ConvexHullFlat(geom.XY, flat).(type) {
	case *geom.Polygon:
		ring := toRing(h.LinearRing(0).Coords())
		if ring.Orientation() != orb.CCW {
			ring.Reverse()
		}
		return ring
	case *geom.LineString:
		return toRing(h.Coords())
	case *geom.Point:
		return orb.Ring{{h.X(), h.Y()}}
	}
	return nil
}

func toRing(coords []geom.Coord) orb.Ring {
	r := make(orb.Ring, len(coords))
	for i, c := range coords {
		r[i] = orb.Point{c.X(), c.Y()}
	}
	return r
}

// HullCentroid is the area centroid of the convex hull of points, so densely
// digitized parts weigh no more than sparse ones. Collinear points give the
// middle of the segment they span.
func HullCentroid(points []orb.Point) orb.Point {
	return LineCentroid(orb.LineString(ConvexHull(points)))
}

// Midpoint returns the point half way along the line.
func Midpoint(ls orb.LineString) orb.Point {
	if len(ls) == 0 {
		return orb.Point{}
	}
	p, _ := geo.PointAtDistanceAlongLine(ls, geo.LengthHaversine(ls)/2)
	return p
}

// ClosestPoint returns the vertex of mls nearest to target.
func ClosestPoint(mls orb.MultiLineString, target orb.Point) (orb.Point, bool) {
	var (
		best  orb.Point
		found bool
	)
	minDist := math.Inf(1)

	for _, ls := range mls {
		for _, p := range ls {
			d := geo.Distance(p, target)
			if d < minDist {
				minDist = d
				best = p
				found = true
			}
		}
	}

	return best, found
}

// Length returns the length of all parts in meters.
func Length(mls orb.MultiLineString) float64 {
	total := 0.0
	for _, ls := range mls {
		total += geo.Length(ls)
	}
	return total
}
