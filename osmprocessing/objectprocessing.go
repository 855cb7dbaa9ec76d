package osmprocessing

import (
	"context"
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/osm"

	"osmextract/ctxlog"
)

const objectChunkSize = 1024

// BuildIndex drains scanner into a new Index. It is the only writer of the
// index; a failing scanner aborts the run with a *DecodeError.
func BuildIndex(ctx context.Context, scanner osm.Scanner) (*Index, error) {
	logger := ctxlog.FromContext(ctx)
	idx := newIndex()

	for scanner.Scan() {
		switch o := scanner.Object().(type) {
		case *osm.Node:
			idx.nodes[o.ID] = nodeEntry{
				Point: orb.Point{o.Lon, o.Lat},
				Tags:  o.Tags,
			}
		case *osm.Way:
			idx.ways[o.ID] = o
		case *osm.Relation:
			idx.relations[o.ID] = o
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, &DecodeError{Err: err}
	}

	if err := idx.countRelationCycles(); err != nil {
		return nil, err
	}

	extent, _ := idx.Bound()
	logger.Info("Index built.",
		"nodes", idx.NumNodes(),
		"ways", idx.NumWays(),
		"relations", idx.NumRelations(),
		"relation_cycles", idx.Diagnostics.RelationCycles.Load(),
		"extent", BoundsOf(extent),
	)
	return idx, nil
}

// TagMatcher selects primitives by their tags.
type TagMatcher interface {
	Match(tags osm.Tags) bool
}

type Object struct {
	ID          int64
	Type        string
	Tags        map[string]string
	Centroid    orb.Point
	Bound       orb.Bound
	Coordinates []orb.Point
}

type ObjectOptions struct {
	RetainCoordinates bool
	Workers           int
}

type objectRef struct {
	typ osm.Type
	id  int64
}

// Objects returns every primitive accepted by matcher, nodes first, then
// ways, then relations, each in id order. A match-all matcher takes untagged
// primitives too. Ways and relations that cannot be resolved are skipped and
// counted in the index diagnostics.
func Objects(ctx context.Context, idx *Index, matcher TagMatcher, opts ObjectOptions) ([]Object, error) {
	logger := ctxlog.FromContext(ctx)

	var refs []objectRef
	for _, id := range idx.NodeIDs() {
		if matcher.Match(idx.nodes[id].Tags) {
			refs = append(refs, objectRef{typ: osm.TypeNode, id: int64(id)})
		}
	}
	for _, id := range idx.WayIDs() {
		if matcher.Match(idx.ways[id].Tags) {
			refs = append(refs, objectRef{typ: osm.TypeWay, id: int64(id)})
		}
	}
	for _, id := range idx.RelationIDs() {
		if matcher.Match(idx.relations[id].Tags) {
			refs = append(refs, objectRef{typ: osm.TypeRelation, id: int64(id)})
		}
	}

	chunks := (len(refs) + objectChunkSize - 1) / objectChunkSize
	results := make([][]Object, chunks)

	err := ForEach(ctx, opts.Workers, chunks, func(ctx context.Context, c int) error {
		end := min((c+1)*objectChunkSize, len(refs))
		for _, ref := range refs[c*objectChunkSize : end] {
			obj, err := idx.resolveObject(ref, opts.RetainCoordinates)
			if err != nil {
				logger.Debug("Skipping object.", "type", ref.typ, "id", ref.id, "error", err)
				continue
			}
			results[c] = append(results[c], obj)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("extract objects: %w", err)
	}

	var out []Object
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}

// resolveObject computes the record of a primitive. Relations are summarized
// by the convex hull of their coordinates, which is also what they retain.
func (idx *Index) resolveObject(ref objectRef, retain bool) (Object, error) {
	var (
		tags   osm.Tags
		points []orb.Point
		center orb.Point
	)

	switch ref.typ {
	case osm.TypeNode:
		n := idx.nodes[osm.NodeID(ref.id)]
		tags = n.Tags
		points = []orb.Point{n.Point}
		center = n.Point

	case osm.TypeWay:
		tags = idx.ways[osm.WayID(ref.id)].Tags
		ls, err := idx.WayLine(osm.WayID(ref.id))
		if err != nil {
			idx.Diagnostics.DanglingWays.Add(1)
			return Object{}, err
		}
		if len(ls) == 0 {
			idx.Diagnostics.Degenerate.Add(1)
			return Object{}, fmt.Errorf("way %d: %w", ref.id, ErrDegenerateGeometry)
		}
		points = ls
		center = LineCentroid(ls)

	case osm.TypeRelation:
		tags = idx.relations[osm.RelationID(ref.id)].Tags
		pts, err := idx.RelationPoints(osm.RelationID(ref.id))
		if err != nil {
			idx.Diagnostics.DanglingRelations.Add(1)
			return Object{}, err
		}
		if len(pts) == 0 {
			idx.Diagnostics.Degenerate.Add(1)
			return Object{}, fmt.Errorf("relation %d: %w", ref.id, ErrDegenerateGeometry)
		}
		hull := ConvexHull(pts)
		points = hull
		center = HullCentroid(hull)

	default:
		return Object{}, errors.New("unknown object type " + string(ref.typ))
	}

	bound, _ := BoundOf(points)
	obj := Object{
		ID:       ref.id,
		Type:     string(ref.typ),
		Tags:     tags.Map(),
		Centroid: center,
		Bound:    bound,
	}
	if retain {
		obj.Coordinates = points
	}
	return obj, nil
}

// GenerateMap lays out a grid of (row+1)*(column+1) nodes spaced blockSize
// meters apart, north and east of origin. Ways between horizontal neighbours
// are named "Street <row>", ways between vertical neighbours "Avenue <col>".
// The grid maps "row,col" to the node id.
func GenerateMap(row, column int, blockSize float64, origin orb.Point) ([]osm.Object, map[string]osm.NodeID) {
	var objects []osm.Object
	grid := make(map[string]osm.NodeID)
	var nodeID osm.NodeID = 1

	for r := 0; r <= row; r++ {
		north := geo.PointAtBearingAndDistance(origin, 0, blockSize*float64(r))
		for c := 0; c <= column; c++ {
			p := geo.PointAtBearingAndDistance(north, 90, blockSize*float64(c))

			objects = append(objects, &osm.Node{
				ID:      nodeID,
				Lat:     p.Lat(),
				Lon:     p.Lon(),
				Visible: true,
			})

			grid[fmt.Sprintf("%d,%d", r, c)] = nodeID
			nodeID++
		}
	}

	var wayID osm.WayID = 1

	for r := 0; r <= row; r++ {
		for c := 0; c < column; c++ {
			objects = append(objects, gridWay(wayID, fmt.Sprintf("Street %d", r),
				grid[fmt.Sprintf("%d,%d", r, c)],
				grid[fmt.Sprintf("%d,%d", r, c+1)]))
			wayID++
		}
	}

	for c := 0; c <= column; c++ {
		for r := 0; r < row; r++ {
			objects = append(objects, gridWay(wayID, fmt.Sprintf("Avenue %d", c),
				grid[fmt.Sprintf("%d,%d", r, c)],
				grid[fmt.Sprintf("%d,%d", r+1, c)]))
			wayID++
		}
	}

	return objects, grid
}

func gridWay(id osm.WayID, name string, from, to osm.NodeID) *osm.Way {
	return &osm.Way{
		ID:      id,
		Visible: true,
		Tags: osm.Tags{
			{Key: TagHighway, Value: "residential"},
			{Key: TagName, Value: name},
		},
		Nodes: osm.WayNodes{
			{ID: from},
			{ID: to},
		},
	}
}
