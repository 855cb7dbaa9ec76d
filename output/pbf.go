package output

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"slices"

	"github.com/grab/gosm"
	"github.com/paulmach/osm"

	"osmextract/ctxlog"
	"osmextract/osmprocessing"
)

const gosmWriteElementsMax = 8000

// nopWriteCloser adapts an io.Writer to the io.WriteCloser gosm expects;
// closing the caller's writer is left to the caller.
type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

func toGosmNode(id osm.NodeID, idx *osmprocessing.Index) (*gosm.Node, bool) {
	p, tags, ok := idx.Node(id)
	if !ok {
		return nil, false
	}
	return &gosm.Node{
		ID:        int64(id),
		Latitude:  p.Lat(),
		Longitude: p.Lon(),
		Tags:      tags.Map(),
	}, true
}

func toGosmWay(w *osm.Way) *gosm.Way {
	nodeIDs := make([]int64, len(w.Nodes))
	for i, n := range w.Nodes {
		nodeIDs[i] = int64(n.ID)
	}
	return &gosm.Way{
		ID:      int64(w.ID),
		Tags:    w.TagMap(),
		NodeIDs: nodeIDs,
	}
}

// WritePBF writes the matched nodes and ways as an OSM PBF file, together
// with every node the ways reference. Relations are not written; they are
// counted in the log.
func WritePBF(ctx context.Context, w io.Writer, idx *osmprocessing.Index, objects []osmprocessing.Object) error {
	nodeSet := make(map[osm.NodeID]bool)
	var (
		ways      []*osm.Way
		relations int
	)

	for _, o := range objects {
		switch o.Type {
		case osmprocessing.TypeNode:
			nodeSet[osm.NodeID(o.ID)] = true
		case osmprocessing.TypeWay:
			way, ok := idx.Way(osm.WayID(o.ID))
			if !ok {
				continue
			}
			ways = append(ways, way)
			for _, n := range way.Nodes {
				nodeSet[n.ID] = true
			}
		case osmprocessing.TypeRelation:
			relations++
		}
	}
	if relations > 0 {
		ctxlog.FromContext(ctx).Warn("Relations are not written to PBF.", "relations", relations)
	}

	nodeIDs := make([]osm.NodeID, 0, len(nodeSet))
	for id := range nodeSet {
		nodeIDs = append(nodeIDs, id)
	}
	slices.Sort(nodeIDs)
	slices.SortFunc(ways, func(a, b *osm.Way) int {
		return cmp.Compare(a.ID, b.ID)
	})

	encoder := gosm.NewEncoder(&gosm.NewEncoderRequiredInput{
		RequiredFeatures: []string{"OsmSchema-V0.6", "DenseNodes"},
		Writer:           nopWriteCloser{w},
	},
		gosm.WithWritingProgram("osmextract"),
		gosm.WithZlipEnabled(true),
	)

	errChan, err := encoder.Start()
	if err != nil {
		return fmt.Errorf("failed to start pbf encoder: %w", err)
	}

	// errChan is closed by encoder.Close
	var errs []error
	done := make(chan struct{})
	go func() {
		defer close(done)
		for e := range errChan {
			errs = append(errs, e)
		}
	}()

	nodes := make([]*gosm.Node, 0, gosmWriteElementsMax)
	for _, id := range nodeIDs {
		n, ok := toGosmNode(id, idx)
		if !ok {
			continue
		}
		nodes = append(nodes, n)
		if len(nodes) == gosmWriteElementsMax {
			encoder.AppendNodes(nodes)
			nodes = make([]*gosm.Node, 0, gosmWriteElementsMax)
		}
	}
	if len(nodes) > 0 {
		encoder.AppendNodes(nodes)
	}
	encoder.Flush(gosm.NodeType)

	batch := make([]*gosm.Way, 0, gosmWriteElementsMax)
	for _, way := range ways {
		batch = append(batch, toGosmWay(way))
		if len(batch) == gosmWriteElementsMax {
			encoder.AppendWays(batch)
			batch = make([]*gosm.Way, 0, gosmWriteElementsMax)
		}
	}
	if len(batch) > 0 {
		encoder.AppendWays(batch)
	}
	encoder.Flush(gosm.WayType)

	encoder.Close()
	<-done

	if len(errs) > 0 {
		return fmt.Errorf("failed to encode pbf: %w", errs[0])
	}
	return nil
}
