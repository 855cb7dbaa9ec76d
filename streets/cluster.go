package streets

import (
	"slices"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/quadtree"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"osmextract/osmprocessing"
)

type endpoint struct {
	p   orb.Point
	seg int
}

func (e endpoint) Point() orb.Point {
	return e.p
}

// connectedSegments groups segment indexes whose lines touch end to end
// within tolerance. Components and their members are in ascending order.
func connectedSegments(segments []segment, tolerance float64) [][]int {
	if len(segments) == 0 {
		return nil
	}

	ends := make([]endpoint, 0, 2*len(segments))
	for i, s := range segments {
		ends = append(ends,
			endpoint{p: s.line[0], seg: i},
			endpoint{p: s.line[len(s.line)-1], seg: i},
		)
	}

	points := make([]orb.Point, len(ends))
	for i, e := range ends {
		points[i] = e.p
	}
	bound, _ := osmprocessing.BoundOf(points)

	qt := quadtree.New(bound)
	for _, e := range ends {
		// cannot fail, the bound holds every endpoint
		_ = qt.Add(e)
	}

	g := simple.NewUndirectedGraph()
	for i := range segments {
		g.AddNode(simple.Node(i))
	}

	var buf []orb.Pointer
	for _, e := range ends {
		buf = qt.InBound(buf[:0], geo.BoundPad(e.p.Bound(), tolerance))
		for _, c := range buf {
			other := c.(endpoint)
			if other.seg == e.seg || !osmprocessing.Near(e.p, other.p, tolerance) {
				continue
			}
			g.SetEdge(g.NewEdge(simple.Node(e.seg), simple.Node(other.seg)))
		}
	}

	var components [][]int
	for _, cc := range topo.ConnectedComponents(g) {
		comp := make([]int, len(cc))
		for i, n := range cc {
			comp[i] = int(n.ID())
		}
		slices.Sort(comp)
		components = append(components, comp)
	}
	slices.SortFunc(components, func(a, b []int) int {
		return a[0] - b[0]
	})

	return components
}
