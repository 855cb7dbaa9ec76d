package osmprocessing

import (
	"errors"
	"fmt"
	"slices"

	"github.com/dominikbraun/graph"
	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
)

type nodeEntry struct {
	Point orb.Point
	Tags  osm.Tags
}

// Index owns every decoded primitive of a run. It is written by BuildIndex
// only and is read-only afterwards, so workers share it without locking.
type Index struct {
	nodes     map[osm.NodeID]nodeEntry
	ways      map[osm.WayID]*osm.Way
	relations map[osm.RelationID]*osm.Relation

	Diagnostics *Diagnostics
}

func newIndex() *Index {
	return &Index{
		nodes:       make(map[osm.NodeID]nodeEntry),
		ways:        make(map[osm.WayID]*osm.Way),
		relations:   make(map[osm.RelationID]*osm.Relation),
		Diagnostics: &Diagnostics{},
	}
}

func relationHash(id osm.RelationID) osm.RelationID {
	return id
}

type relationEdge struct {
	parent, child osm.RelationID
}

// countRelationCycles adds relation to relation memberships to a directed
// graph that refuses cycles and counts every membership it refuses. Only
// relations taking part in such memberships become vertices. Resolution
// itself breaks cycles per call, see RelationPoints.
func (idx *Index) countRelationCycles() error {
	var edges []relationEdge
	for _, id := range idx.RelationIDs() {
		for _, m := range idx.relations[id].Members {
			if m.Type != osm.TypeRelation {
				continue
			}
			child := osm.RelationID(m.Ref)
			if _, ok := idx.relations[child]; ok {
				edges = append(edges, relationEdge{parent: id, child: child})
			}
		}
	}
	if len(edges) == 0 {
		return nil
	}

	g := graph.New(relationHash, graph.Directed(), graph.PreventCycles())
	for _, e := range edges {
		for _, v := range []osm.RelationID{e.parent, e.child} {
			err := g.AddVertex(v)
			if err != nil && !errors.Is(err, graph.ErrVertexAlreadyExists) {
				return fmt.Errorf("relation hierarchy: %w", err)
			}
		}
	}

	for _, e := range edges {
		err := g.AddEdge(e.parent, e.child)
		switch {
		case err == nil:
		case errors.Is(err, graph.ErrEdgeCreatesCycle):
			idx.Diagnostics.RelationCycles.Add(1)
		case errors.Is(err, graph.ErrEdgeAlreadyExists):
		default:
			return fmt.Errorf("relation hierarchy %d -> %d: %w", e.parent, e.child, err)
		}
	}

	return nil
}

func (idx *Index) Node(id osm.NodeID) (orb.Point, osm.Tags, bool) {
	n, ok := idx.nodes[id]
	return n.Point, n.Tags, ok
}

func (idx *Index) Way(id osm.WayID) (*osm.Way, bool) {
	w, ok := idx.ways[id]
	return w, ok
}

func (idx *Index) Relation(id osm.RelationID) (*osm.Relation, bool) {
	r, ok := idx.relations[id]
	return r, ok
}

func (idx *Index) NumNodes() int     { return len(idx.nodes) }
func (idx *Index) NumWays() int      { return len(idx.ways) }
func (idx *Index) NumRelations() int { return len(idx.relations) }

func (idx *Index) NodeIDs() []osm.NodeID {
	ids := make([]osm.NodeID, 0, len(idx.nodes))
	for id := range idx.nodes {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (idx *Index) WayIDs() []osm.WayID {
	ids := make([]osm.WayID, 0, len(idx.ways))
	for id := range idx.ways {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (idx *Index) RelationIDs() []osm.RelationID {
	ids := make([]osm.RelationID, 0, len(idx.relations))
	for id := range idx.relations {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// WayLine resolves the coordinates of a way. When some node references cannot
// be resolved the resolved part is still returned together with an error
// wrapping ErrDanglingReference.
func (idx *Index) WayLine(id osm.WayID) (orb.LineString, error) {
	w, ok := idx.ways[id]
	if !ok {
		return nil, fmt.Errorf("way %d: %w", id, ErrNotFound)
	}

	ls := make(orb.LineString, 0, len(w.Nodes))
	missing := 0
	var first osm.NodeID
	for _, wn := range w.Nodes {
		n, ok := idx.nodes[wn.ID]
		if !ok {
			if missing == 0 {
				first = wn.ID
			}
			missing++
			continue
		}
		ls = append(ls, n.Point)
	}

	if missing > 0 {
		return ls, fmt.Errorf("way %d: node %d (%d of %d unresolved): %w",
			id, first, missing, len(w.Nodes), ErrDanglingReference)
	}
	return ls, nil
}

// RelationPoints resolves every coordinate reachable from a relation through
// its node, way and relation members. Each relation is walked at most once
// per call, so every member of a cycle reaches all the others.
func (idx *Index) RelationPoints(id osm.RelationID) ([]orb.Point, error) {
	var points []orb.Point
	visited := make(map[osm.RelationID]bool)
	if err := idx.collectRelation(id, visited, &points); err != nil {
		return points, err
	}
	return points, nil
}

func (idx *Index) collectRelation(id osm.RelationID, visited map[osm.RelationID]bool, points *[]orb.Point) error {
	if visited[id] {
		return nil
	}
	visited[id] = true

	r, ok := idx.relations[id]
	if !ok {
		return fmt.Errorf("relation %d: %w", id, ErrNotFound)
	}

	for _, m := range r.Members {
		switch m.Type {
		case osm.TypeNode:
			n, ok := idx.nodes[osm.NodeID(m.Ref)]
			if !ok {
				return fmt.Errorf("relation %d: node %d: %w", id, m.Ref, ErrNotFound)
			}
			*points = append(*points, n.Point)
		case osm.TypeWay:
			ls, err := idx.WayLine(osm.WayID(m.Ref))
			if err != nil {
				return fmt.Errorf("relation %d: %w", id, err)
			}
			*points = append(*points, ls...)
		case osm.TypeRelation:
			child := osm.RelationID(m.Ref)
			if _, ok := idx.relations[child]; !ok {
				return fmt.Errorf("relation %d: relation %d: %w", id, child, ErrNotFound)
			}
			if err := idx.collectRelation(child, visited, points); err != nil {
				return err
			}
		}
	}

	return nil
}
