package streets

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"osmextract/boundaries"
	"osmextract/osmprocessing"
	"osmextract/tagquery"
)

type fixture struct {
	objects []osm.Object
}

func (f *fixture) node(id osm.NodeID, lon, lat float64) osm.NodeID {
	f.objects = append(f.objects, &osm.Node{ID: id, Lon: lon, Lat: lat, Visible: true})
	return id
}

func (f *fixture) street(id osm.WayID, name, highway string, nodes ...osm.NodeID) {
	w := &osm.Way{ID: id, Visible: true, Tags: osm.Tags{{Key: "highway", Value: highway}}}
	if name != "" {
		w.Tags = append(w.Tags, osm.Tag{Key: "name", Value: name})
	}
	for _, n := range nodes {
		w.Nodes = append(w.Nodes, osm.WayNode{ID: n})
	}
	f.objects = append(f.objects, w)
}

func (f *fixture) index(t *testing.T) *osmprocessing.Index {
	t.Helper()

	idx, err := osmprocessing.BuildIndex(context.Background(), osmprocessing.NewObjectScanner(f.objects))
	require.NoError(t, err)
	return idx
}

func residential() tagquery.Query {
	return DefaultQuery([]string{"residential"}, "")
}

func cluster(t *testing.T, idx *osmprocessing.Index, opts Options) []Street {
	t.Helper()

	streets, err := Cluster(context.Background(), idx, opts)
	require.NoError(t, err)
	return streets
}

// Scenario A: two ways sharing an endpoint become one line.
func TestSharedEndpoint(t *testing.T) {
	var f fixture
	f.node(1, 0, 0)
	f.node(2, 0, 1)
	f.node(3, 0, 2)
	f.street(1, "X", "residential", 1, 2)
	f.street(2, "X", "residential", 2, 3)
	idx := f.index(t)

	for _, tol := range []float64{0, 50} {
		got := cluster(t, idx, Options{Query: residential(), Tolerance: tol})
		require.Len(t, got, 1)

		s := got[0]
		assert.Equal(t, "X", s.Name)
		assert.Equal(t, []osm.WayID{1, 2}, s.WayIDs)
		assert.Equal(t, int64(1^2), s.ID)
		assert.Equal(t, orb.MultiLineString{{{0, 0}, {0, 1}, {0, 2}}}, s.Geometry)
		assert.Equal(t, orb.Point{0, 1}, s.Loc)
		assert.InDelta(t, 2*111195.0, s.Length, 500)
	}
}

func TestTolerance(t *testing.T) {
	var f fixture
	f.node(1, 7.000, 46.0)
	f.node(2, 7.001, 46.0)
	// about 10m east of node 2
	f.node(3, 7.00113, 46.0)
	f.node(4, 7.002, 46.0)
	f.street(10, "Main", "residential", 1, 2)
	f.street(11, "Main", "residential", 3, 4)
	idx := f.index(t)

	tests := []struct {
		name      string
		tolerance float64
		want      [][]osm.WayID
	}{
		{"within tolerance", 15, [][]osm.WayID{{10, 11}}},
		{"beyond tolerance", 5, [][]osm.WayID{{10}, {11}}},
		{"zero tolerance", 0, [][]osm.WayID{{10}, {11}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got [][]osm.WayID
			for _, s := range cluster(t, idx, Options{Query: residential(), Tolerance: tt.tolerance}) {
				got = append(got, s.WayIDs)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNamesAndFilters(t *testing.T) {
	var f fixture
	f.node(1, 7.000, 46.0)
	f.node(2, 7.001, 46.0)
	f.node(3, 7.002, 46.0)
	f.node(4, 7.003, 46.0)
	f.node(5, 8.000, 46.0)
	f.street(10, "Main", "residential", 1, 2)
	f.street(11, "Side", "residential", 2, 3)
	f.street(12, "Main", "motorway", 3, 4)
	f.street(13, "", "residential", 3, 4)
	f.street(14, "Main", "residential", 4, 99)
	f.street(15, "Main", "residential", 5)
	idx := f.index(t)

	got := cluster(t, idx, Options{Query: residential(), Tolerance: 10})

	var names []string
	for _, s := range got {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"Main", "Side"}, names)
	assert.EqualValues(t, 1, idx.Diagnostics.DanglingWays.Load())
	assert.EqualValues(t, 1, idx.Diagnostics.Degenerate.Load())

	t.Run("name filter", func(t *testing.T) {
		got := cluster(t, idx, Options{Query: DefaultQuery([]string{"residential"}, "Side"), Tolerance: 10})
		require.Len(t, got, 1)
		assert.Equal(t, "Side", got[0].Name)
	})

	t.Run("user query replaces highway classes", func(t *testing.T) {
		got := cluster(t, idx, Options{Query: WithName(tagquery.MustParse("highway~motorway"), ""), Tolerance: 10})
		require.Len(t, got, 1)
		assert.Equal(t, []osm.WayID{12}, got[0].WayIDs)
	})
}

func TestBranchingJunction(t *testing.T) {
	var f fixture
	f.node(1, 7.000, 46.000)
	f.node(2, 7.001, 46.000)
	f.node(3, 7.002, 46.000)
	f.node(4, 7.001, 46.001)
	f.street(10, "Fork", "residential", 1, 2)
	f.street(11, "Fork", "residential", 2, 3)
	f.street(12, "Fork", "residential", 2, 4)
	idx := f.index(t)

	got := cluster(t, idx, Options{Query: residential(), Tolerance: 1})
	require.Len(t, got, 1)
	assert.Equal(t, []osm.WayID{10, 11, 12}, got[0].WayIDs)
	assert.Len(t, got[0].Geometry, 2)
}

func TestGrid(t *testing.T) {
	objects, _ := osmprocessing.GenerateMap(2, 3, 100, orb.Point{7, 46})
	idx, err := osmprocessing.BuildIndex(context.Background(), osmprocessing.NewObjectScanner(objects))
	require.NoError(t, err)

	opts := Options{Query: residential(), Tolerance: 1, Workers: 3}
	first := cluster(t, idx, opts)
	require.Len(t, first, 7)

	lengths := make(map[string]float64)
	for _, s := range first {
		assert.Len(t, s.Geometry, 1, s.Name)
		lengths[s.Name] = s.Length
	}
	assert.InDelta(t, 300, lengths["Street 0"], 1)
	assert.InDelta(t, 200, lengths["Avenue 3"], 1)

	again := cluster(t, idx, opts)
	if diff := cmp.Diff(first, again); diff != "" {
		t.Errorf("clustering is not idempotent (-first +again):\n%s", diff)
	}
}

func TestBoundarySplit(t *testing.T) {
	var f fixture
	corners := []osm.NodeID{
		f.node(101, 7.00, 46.00),
		f.node(102, 7.01, 46.00),
		f.node(103, 7.02, 46.00),
		f.node(104, 7.02, 46.01),
		f.node(105, 7.01, 46.01),
		f.node(106, 7.00, 46.01),
	}
	ring := func(id osm.WayID, ids ...int) {
		w := &osm.Way{ID: id, Visible: true}
		for _, i := range ids {
			w.Nodes = append(w.Nodes, osm.WayNode{ID: corners[i]})
		}
		f.objects = append(f.objects, w)
	}
	ring(1001, 0, 1, 4, 5, 0)
	ring(1002, 1, 2, 3, 4, 1)
	for i, name := range []string{"West", "East"} {
		f.objects = append(f.objects, &osm.Relation{
			ID:   osm.RelationID(2001 + i),
			Tags: osm.Tags{{Key: "boundary", Value: "administrative"}, {Key: "admin_level", Value: "9"}, {Key: "name", Value: name}},
			Members: osm.Members{
				{Type: osm.TypeWay, Ref: int64(1001 + i), Role: "outer"},
			},
		})
	}

	f.node(1, 7.002, 46.005)
	f.node(2, 7.008, 46.005)
	f.node(3, 7.012, 46.005)
	f.node(4, 7.018, 46.005)
	f.node(5, 7.030, 46.005)
	f.node(6, 7.040, 46.005)
	f.street(10, "Main", "residential", 1, 2)
	f.street(11, "Main", "residential", 2, 3, 4)
	f.street(12, "Main", "residential", 4, 5, 6)
	idx := f.index(t)

	bs, err := boundaries.Assemble(context.Background(), idx, boundaries.Options{AdminLevels: []int{9}, Tolerance: 1})
	require.NoError(t, err)
	regions := boundaries.NewRegions(bs)
	require.Equal(t, 2, regions.Len())

	got := cluster(t, idx, Options{Query: residential(), Tolerance: 1, Regions: regions})

	type summary struct {
		Boundary string
		Ways     []osm.WayID
	}
	var sums []summary
	for _, s := range got {
		sums = append(sums, summary{Boundary: s.Boundary, Ways: s.WayIDs})
	}

	want := []summary{
		{Boundary: "", Ways: []osm.WayID{12}},
		{Boundary: "West", Ways: []osm.WayID{10}},
		{Boundary: "East", Ways: []osm.WayID{11}},
	}
	if diff := cmp.Diff(want, sums); diff != "" {
		t.Errorf("split mismatch (-want +got):\n%s", diff)
	}
}

func TestQueries(t *testing.T) {
	assert.Equal(t, "highway~primary+name,highway~service+name",
		DefaultQuery([]string{"primary", "service"}, "").String())
	assert.Equal(t, "highway~primary+name~Main",
		DefaultQuery([]string{"primary"}, "Main").String())
	assert.Equal(t, "name", WithName(tagquery.All(), "").String())
	assert.Equal(t, "a+name~X,b~c+name~X", WithName(tagquery.MustParse("a,b~c"), "X").String())
}
