package output

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"osmextract/boundaries"
	"osmextract/ctxlog"
	"osmextract/osmprocessing"
	"osmextract/streets"
)

var (
	sampleObject = osmprocessing.Object{
		ID:          42,
		Type:        "way",
		Tags:        map[string]string{"amenity": "fountain"},
		Centroid:    orb.Point{7.5, 46.5},
		Bound:       orb.Bound{Min: orb.Point{7, 46}, Max: orb.Point{8, 47}},
		Coordinates: []orb.Point{{7, 46}, {8, 47}},
	}

	sampleStreet = streets.Street{
		ID:       3,
		Name:     "Main",
		Boundary: "West",
		WayIDs:   []osm.WayID{1, 2},
		Geometry: orb.MultiLineString{{{7, 46}, {7.001, 46}, {7.002, 46}}},
		Length:   154.5,
		Loc:      orb.Point{7.001, 46},
	}

	square = orb.Ring{{7, 46}, {8, 46}, {8, 47}, {7, 47}, {7, 46}}

	sampleBoundaries = []boundaries.Boundary{
		{
			RelationID: 100,
			Name:       "Closed",
			AdminLevel: 8,
			Bound:      orb.Bound{Min: orb.Point{7, 46}, Max: orb.Point{8, 47}},
			Geometry:   orb.MultiPolygon{{square}},
		},
		{
			RelationID: 101,
			Name:       "Open",
			AdminLevel: 9,
			Bound:      orb.Bound{Min: orb.Point{7, 46}, Max: orb.Point{7.5, 46.5}},
			Incomplete: true,
		},
	}
)

func decodeLines(t *testing.T, data string) []map[string]any {
	t.Helper()

	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(data), "\n") {
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec), line)
		out = append(out, rec)
	}
	return out
}

func TestWriteObjectLines(t *testing.T) {
	var buf bytes.Buffer
	noCoords := sampleObject
	noCoords.Coordinates = nil
	require.NoError(t, WriteObjectLines(&buf, []osmprocessing.Object{sampleObject, noCoords}))

	assert.JSONEq(t, `{
		"id": 42,
		"type": "way",
		"tags": {"amenity": "fountain"},
		"centroid": {"lat": 46.5, "lon": 7.5},
		"bounds": {"e": 8, "n": 47, "s": 46, "w": 7},
		"coordinates": [[7, 46], [8, 47]]
	}`, strings.Split(buf.String(), "\n")[0])

	recs := decodeLines(t, buf.String())
	require.Len(t, recs, 2)
	assert.NotContains(t, recs[1], "coordinates")
}

func TestWriteStreetLines(t *testing.T) {
	var buf bytes.Buffer
	unbounded := sampleStreet
	unbounded.Boundary = ""
	require.NoError(t, WriteStreetLines(&buf, []streets.Street{sampleStreet, unbounded}))

	recs := decodeLines(t, buf.String())
	require.Len(t, recs, 2)
	assert.Equal(t, "West", recs[0]["boundary"])
	assert.Equal(t, []any{7.001, 46.0}, recs[0]["loc"])
	assert.Equal(t, 154.5, recs[0]["length"])
	assert.Len(t, recs[0]["coordinates"], 1)
	assert.NotContains(t, recs[1], "boundary")
}

func TestWriteBoundaryLines(t *testing.T) {
	t.Run("bbox only", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WriteBoundaryLines(&buf, sampleBoundaries, false))

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		require.Len(t, lines, 2)
		assert.JSONEq(t, `{"name":"Closed","admin_level":8,"bbox":{"sw":[7,46],"ne":[8,47]}}`, lines[0])
		assert.JSONEq(t, `{"name":"Open","admin_level":9,"bbox":{"sw":[7,46],"ne":[7.5,46.5]},"incomplete":true}`, lines[1])
	})

	t.Run("with geometry", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WriteBoundaryLines(&buf, sampleBoundaries, true))

		recs := decodeLines(t, buf.String())
		geom, ok := recs[0]["geometry"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "MultiPolygon", geom["type"])
		assert.NotContains(t, recs[1], "geometry")
	})
}

func TestGeoJSON(t *testing.T) {
	t.Run("streets", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WriteStreetGeoJSON(&buf, []streets.Street{sampleStreet, {Name: "Empty"}}))

		fc, err := geojson.UnmarshalFeatureCollection(buf.Bytes())
		require.NoError(t, err)
		require.Len(t, fc.Features, 1)
		assert.Equal(t, "MultiLineString", fc.Features[0].Geometry.GeoJSONType())
		assert.Equal(t, "Main", fc.Features[0].Properties.MustString("name"))
		assert.Equal(t, "West", fc.Features[0].Properties.MustString("boundary"))
	})

	t.Run("boundaries", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WriteBoundaryGeoJSON(&buf, sampleBoundaries))

		fc, err := geojson.UnmarshalFeatureCollection(buf.Bytes())
		require.NoError(t, err)
		require.Len(t, fc.Features, 2)

		closed, open := fc.Features[0], fc.Features[1]
		assert.Equal(t, "MultiPolygon", closed.Geometry.GeoJSONType())
		assert.Equal(t, 8, closed.Properties.MustInt("admin_level"))
		assert.False(t, closed.Properties.MustBool("incomplete", false))

		assert.Equal(t, "Polygon", open.Geometry.GeoJSONType())
		assert.True(t, open.Properties.MustBool("incomplete"))
		assert.Equal(t, sampleBoundaries[1].Bound, open.Geometry.Bound())
	})
}

func TestDocuments(t *testing.T) {
	roundTrip := func(t *testing.T, doc any) bson.M {
		t.Helper()

		data, err := bson.Marshal(doc)
		require.NoError(t, err)
		var out bson.M
		require.NoError(t, bson.Unmarshal(data, &out))
		return out
	}

	t.Run("objects", func(t *testing.T) {
		docs := ObjectDocuments([]osmprocessing.Object{sampleObject})
		require.Len(t, docs, 1)

		got := roundTrip(t, docs[0])
		assert.Equal(t, int64(42), got["osm_id"])
		centroid := got["centroid"].(bson.M)
		assert.Equal(t, "Point", centroid["type"])
	})

	t.Run("streets", func(t *testing.T) {
		got := roundTrip(t, StreetDocuments([]streets.Street{sampleStreet})[0])
		assert.Equal(t, "Main", got["name"])
		assert.Equal(t, "MultiLineString", got["geometry"].(bson.M)["type"])
	})

	t.Run("boundaries", func(t *testing.T) {
		docs := BoundaryDocuments(sampleBoundaries)
		closed := roundTrip(t, docs[0])
		open := roundTrip(t, docs[1])

		assert.Equal(t, "MultiPolygon", closed["geometry"].(bson.M)["type"])
		assert.Equal(t, "Polygon", open["bbox"].(bson.M)["type"])
		assert.NotContains(t, open, "geometry")
		assert.Equal(t, true, open["incomplete"])
	})
}

func TestWritePBF(t *testing.T) {
	objects, _ := osmprocessing.GenerateMap(1, 2, 100, orb.Point{7, 46})
	objects = append(objects, &osm.Node{
		ID: 500, Lat: 46.01, Lon: 7.01, Visible: true,
		Tags: osm.Tags{{Key: "amenity", Value: "fountain"}},
	})
	idx, err := osmprocessing.BuildIndex(context.Background(), osmprocessing.NewObjectScanner(objects))
	require.NoError(t, err)

	selected := []osmprocessing.Object{
		{ID: 500, Type: osmprocessing.TypeNode},
		{ID: 1, Type: osmprocessing.TypeWay},
		{ID: 2, Type: osmprocessing.TypeWay},
		{ID: 9, Type: osmprocessing.TypeRelation},
	}

	var logs, buf bytes.Buffer
	ctx := ctxlog.WithLogger(context.Background(), slog.New(slog.NewTextHandler(&logs, nil)))
	require.NoError(t, WritePBF(ctx, &buf, idx, selected))
	assert.Contains(t, logs.String(), "relations=1")

	scanner := osmpbf.New(context.Background(), bytes.NewReader(buf.Bytes()), 1)
	defer scanner.Close()

	var nodes, ways int
	for scanner.Scan() {
		switch o := scanner.Object().(type) {
		case *osm.Node:
			nodes++
			if o.ID == 500 {
				assert.Equal(t, "fountain", o.Tags.Find("amenity"))
			}
		case *osm.Way:
			ways++
			assert.Equal(t, "Street 0", o.Tags.Find("name"))
		}
	}
	require.NoError(t, scanner.Err())

	// the fountain plus the three nodes of row 0
	assert.Equal(t, 4, nodes)
	assert.Equal(t, 2, ways)
}
