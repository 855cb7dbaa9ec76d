// Package streets merges named road segments into streets. Segments with
// the same name whose endpoints lie within a tolerance of each other end up
// in the same street.
package streets

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/osm"

	"osmextract/boundaries"
	"osmextract/ctxlog"
	"osmextract/osmprocessing"
	"osmextract/tagquery"
)

type Options struct {
	// Query selects candidate ways. Ways without a name never qualify.
	Query     tagquery.Query
	// meters between endpoints that still connect
	Tolerance float64
	Workers   int
	// Regions splits streets by the boundary containing each segment's
	// midpoint. Nil disables splitting.
	Regions   *boundaries.Regions
}

type Street struct {
	// XOR of the way ids
	ID         int64
	Name       string
	Boundary   string
	BoundaryID osm.RelationID
	WayIDs     []osm.WayID
	Geometry   orb.MultiLineString
	// meters
	Length     float64
	// vertex closest to the centroid of the geometry
	Loc        orb.Point
}

// DefaultQuery selects the given highway classes, restricted to ways named
// name when name is not empty.
func DefaultQuery(highways []string, name string) tagquery.Query {
	clauses := make([]tagquery.Clause, 0, len(highways))
	for _, hw := range highways {
		clauses = append(clauses, tagquery.And(tagquery.Equals(osmprocessing.TagHighway, hw), namePredicate(name)))
	}
	return tagquery.Or(clauses...)
}

// WithName narrows every clause of q to named ways, or to ways named name
// when it is not empty.
func WithName(q tagquery.Query, name string) tagquery.Query {
	if q.MatchAll() {
		return tagquery.Or(tagquery.And(namePredicate(name)))
	}

	clauses := make([]tagquery.Clause, 0, len(q.Clauses()))
	for _, c := range q.Clauses() {
		clauses = append(clauses, append(slices.Clone(c), namePredicate(name)))
	}
	return tagquery.Or(clauses...)
}

func namePredicate(name string) tagquery.Predicate {
	if name == "" {
		return tagquery.Has(osmprocessing.TagName)
	}
	return tagquery.Equals(osmprocessing.TagName, name)
}

type segment struct {
	way  osm.WayID
	line orb.LineString
}

type groupKey struct {
	name     string
	boundary osm.RelationID
}

type group struct {
	key          groupKey
	boundaryName string
	segments     []segment
}

// Cluster returns the streets of the index, ordered by name, boundary and
// smallest way id.
func Cluster(ctx context.Context, idx *osmprocessing.Index, opts Options) ([]Street, error) {
	logger := ctxlog.FromContext(ctx)

	groups, err := collect(idx, opts)
	if err != nil {
		return nil, err
	}

	results := make([][]Street, len(groups))
	err = osmprocessing.ForEach(ctx, opts.Workers, len(groups), func(ctx context.Context, i int) error {
		results[i] = groups[i].streets(opts.Tolerance)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("cluster streets: %w", err)
	}

	var out []Street
	for _, r := range results {
		out = append(out, r...)
	}

	logger.Info("Streets clustered.", "groups", len(groups), "streets", len(out))
	return out, nil
}

func collect(idx *osmprocessing.Index, opts Options) ([]*group, error) {
	byKey := make(map[groupKey]*group)

	for _, id := range idx.WayIDs() {
		w, _ := idx.Way(id)
		name := w.Tags.Find(osmprocessing.TagName)
		if name == "" || !opts.Query.Match(w.Tags) {
			continue
		}

		ls, err := idx.WayLine(id)
		if errors.Is(err, osmprocessing.ErrDanglingReference) {
			idx.Diagnostics.DanglingWays.Add(1)
			continue
		} else if err != nil {
			return nil, err
		}
		if len(ls) < 2 {
			idx.Diagnostics.Degenerate.Add(1)
			continue
		}

		key := groupKey{name: name}
		var boundaryName string
		if opts.Regions != nil {
			if b, ok := opts.Regions.Locate(osmprocessing.Midpoint(ls)); ok {
				key.boundary = b.RelationID
				boundaryName = b.Name
			}
		}

		g, ok := byKey[key]
		if !ok {
			g = &group{key: key, boundaryName: boundaryName}
			byKey[key] = g
		}
		g.segments = append(g.segments, segment{way: id, line: ls})
	}

	groups := make([]*group, 0, len(byKey))
	for _, g := range byKey {
		groups = append(groups, g)
	}
	slices.SortFunc(groups, func(a, b *group) int {
		return cmp.Or(
			cmp.Compare(a.key.name, b.key.name),
			cmp.Compare(a.key.boundary, b.key.boundary),
		)
	})
	return groups, nil
}

func (g *group) streets(tolerance float64) []Street {
	components := connectedSegments(g.segments, tolerance)

	out := make([]Street, 0, len(components))
	for _, comp := range components {
		s := Street{
			Name:       g.key.name,
			Boundary:   g.boundaryName,
			BoundaryID: g.key.boundary,
		}

		lines := make([]orb.LineString, 0, len(comp))
		for _, i := range comp {
			seg := g.segments[i]
			s.WayIDs = append(s.WayIDs, seg.way)
			s.ID ^= int64(seg.way)
			lines = append(lines, seg.line)
		}

		for _, ls := range osmprocessing.ChainLines(lines, tolerance) {
			s.Geometry = append(s.Geometry, ls)
		}
		s.Length = osmprocessing.Length(s.Geometry)

		centroid, _ := planar.CentroidArea(s.Geometry)
		s.Loc, _ = osmprocessing.ClosestPoint(s.Geometry, centroid)

		out = append(out, s)
	}

	return out
}
