// Package boundaries assembles administrative boundary relations into rings
// and bounding boxes.
package boundaries

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/osm"

	"osmextract/ctxlog"
	"osmextract/osmprocessing"
	"osmextract/tagquery"
)

// ErrIncompleteRing means some member ways of a boundary were missing or
// could not be chained into closed rings. The boundary still carries its
// bounding box.
var ErrIncompleteRing = errors.New("incomplete ring")

type Options struct {
	AdminLevels []int
	// meters between fragment endpoints that still connect
	Tolerance   float64
	Workers     int
}

type Boundary struct {
	RelationID osm.RelationID
	Name       string
	AdminLevel int
	Bound      orb.Bound
	// closed rings only; empty when nothing closed
	Geometry   orb.MultiPolygon
	Incomplete bool
}

// Query selects administrative boundaries at the given levels.
func Query(levels []int) tagquery.Query {
	clauses := make([]tagquery.Clause, 0, len(levels))
	for _, l := range levels {
		clauses = append(clauses, tagquery.And(
			tagquery.Equals(osmprocessing.TagBoundary, "administrative"),
			tagquery.Equals(osmprocessing.TagAdminLevel, strconv.Itoa(l)),
		))
	}
	if len(clauses) == 0 {
		return tagquery.Query{}
	}
	return tagquery.Or(clauses...)
}

// Assemble builds every qualifying boundary of the index, ordered by
// relation id. Relations without any resolvable coordinate are skipped.
func Assemble(ctx context.Context, idx *osmprocessing.Index, opts Options) ([]Boundary, error) {
	logger := ctxlog.FromContext(ctx)
	q := Query(opts.AdminLevels)

	var candidates []*osm.Relation
	for _, id := range idx.RelationIDs() {
		rel, _ := idx.Relation(id)
		if q.Match(rel.Tags) {
			candidates = append(candidates, rel)
		}
	}

	results := make([]*Boundary, len(candidates))
	err := osmprocessing.ForEach(ctx, opts.Workers, len(candidates), func(ctx context.Context, i int) error {
		rel := candidates[i]
		b, err := AssembleRelation(idx, rel, opts.Tolerance)
		switch {
		case errors.Is(err, ErrIncompleteRing):
			idx.Diagnostics.IncompleteRings.Add(1)
			logger.Debug("Boundary is incomplete.", "relation", rel.ID, "name", b.Name, "error", err)
		case errors.Is(err, osmprocessing.ErrDegenerateGeometry):
			idx.Diagnostics.Degenerate.Add(1)
			logger.Debug("Skipping boundary without coordinates.", "relation", rel.ID)
			return nil
		case err != nil:
			return err
		}
		results[i] = &b
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("assemble boundaries: %w", err)
	}

	out := make([]Boundary, 0, len(results))
	for _, b := range results {
		if b != nil {
			out = append(out, *b)
		}
	}

	logger.Info("Boundaries assembled.", "candidates", len(candidates), "boundaries", len(out))
	return out, nil
}

// AssembleRelation chains the way members of rel per role. The returned
// boundary is usable whenever the error is nil or wraps ErrIncompleteRing.
// Member ways that are missing or dangling are counted in the index
// diagnostics; their resolvable points still widen the bounding box.
func AssembleRelation(idx *osmprocessing.Index, rel *osm.Relation, tolerance float64) (Boundary, error) {
	b := Boundary{
		RelationID: rel.ID,
		Name:       rel.Tags.Find(osmprocessing.TagName),
	}
	b.AdminLevel, _ = strconv.Atoi(rel.Tags.Find(osmprocessing.TagAdminLevel))

	var (
		outer, inner []orb.LineString
		points       []orb.Point
		missing      int
	)

	for _, m := range rel.Members {
		if m.Type != osm.TypeWay {
			continue
		}
		ls, err := idx.WayLine(osm.WayID(m.Ref))
		points = append(points, ls...)
		if err != nil {
			idx.Diagnostics.DanglingWays.Add(1)
			missing++
			continue
		}
		if len(ls) < 2 {
			idx.Diagnostics.Degenerate.Add(1)
			continue
		}

		if m.Role == osmprocessing.RoleInner {
			inner = append(inner, ls)
		} else {
			outer = append(outer, ls)
		}
	}

	bound, ok := osmprocessing.BoundOf(points)
	if !ok {
		return b, fmt.Errorf("relation %d: %w", rel.ID, osmprocessing.ErrDegenerateGeometry)
	}
	b.Bound = bound

	outerRings, openOuter := closeRings(outer, tolerance)
	innerRings, openInner := closeRings(inner, tolerance)
	b.Geometry = buildPolygons(outerRings, innerRings)

	if missing > 0 || openOuter+openInner > 0 {
		b.Incomplete = true
		return b, fmt.Errorf("relation %d: %d missing ways, %d open chains: %w",
			rel.ID, missing, openOuter+openInner, ErrIncompleteRing)
	}
	return b, nil
}

func closeRings(lines []orb.LineString, tolerance float64) ([]orb.Ring, int) {
	var (
		rings []orb.Ring
		open  int
	)
	for _, c := range osmprocessing.ChainLines(lines, tolerance) {
		if osmprocessing.IsClosedChain(c, tolerance) {
			rings = append(rings, orb.Ring(c))
		} else {
			open++
		}
	}
	return rings, open
}

// buildPolygons makes one polygon per outer ring, wound counter clockwise,
// with every inner ring it contains as a clockwise hole. Inner rings outside
// every outer ring are dropped.
func buildPolygons(outer, inner []orb.Ring) orb.MultiPolygon {
	if len(outer) == 0 {
		return nil
	}

	mp := make(orb.MultiPolygon, len(outer))
	for i, r := range outer {
		mp[i] = orb.Polygon{orient(r, orb.CCW)}
	}

	for _, r := range inner {
		for i := range mp {
			if planar.RingContains(mp[i][0], r[0]) {
				mp[i] = append(mp[i], orient(r, orb.CW))
				break
			}
		}
	}

	return mp
}

func orient(r orb.Ring, o orb.Orientation) orb.Ring {
	if r.Orientation() == o {
		return r
	}
	r = slices.Clone(r)
	r.Reverse()
	return r
}
