// Package output writes extraction results as JSON lines, GeoJSON, OSM PBF
// or MongoDB documents.
package output

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"osmextract/boundaries"
	"osmextract/osmprocessing"
	"osmextract/streets"
)

type latLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type objectRecord struct {
	ID          int64                `json:"id"`
	Type        string               `json:"type"`
	Tags        map[string]string    `json:"tags"`
	Centroid    latLon               `json:"centroid"`
	Bounds      osmprocessing.Bounds `json:"bounds"`
	Coordinates []orb.Point          `json:"coordinates,omitempty"`
}

func newObjectRecord(o osmprocessing.Object) objectRecord {
	return objectRecord{
		ID:          o.ID,
		Type:        o.Type,
		Tags:        o.Tags,
		Centroid:    latLon{Lat: o.Centroid.Lat(), Lon: o.Centroid.Lon()},
		Bounds:      osmprocessing.BoundsOf(o.Bound),
		Coordinates: o.Coordinates,
	}
}

type streetRecord struct {
	ID          int64               `json:"id"`
	Name        string              `json:"name"`
	Boundary    string              `json:"boundary,omitempty"`
	Length      float64             `json:"length"`
	Loc         orb.Point           `json:"loc"`
	Coordinates orb.MultiLineString `json:"coordinates"`
}

func newStreetRecord(s streets.Street) streetRecord {
	return streetRecord{
		ID:          s.ID,
		Name:        s.Name,
		Boundary:    s.Boundary,
		Length:      s.Length,
		Loc:         s.Loc,
		Coordinates: s.Geometry,
	}
}

type bbox struct {
	SW orb.Point `json:"sw"`
	NE orb.Point `json:"ne"`
}

type boundaryRecord struct {
	Name       string            `json:"name"`
	AdminLevel int               `json:"admin_level"`
	BBox       bbox              `json:"bbox"`
	Incomplete bool              `json:"incomplete,omitempty"`
	Geometry   *geojson.Geometry `json:"geometry,omitempty"`
}

func newBoundaryRecord(b boundaries.Boundary, withGeometry bool) boundaryRecord {
	rec := boundaryRecord{
		Name:       b.Name,
		AdminLevel: b.AdminLevel,
		BBox:       bbox{SW: b.Bound.Min, NE: b.Bound.Max},
		Incomplete: b.Incomplete,
	}
	if withGeometry && len(b.Geometry) > 0 {
		rec.Geometry = geojson.NewGeometry(b.Geometry)
	}
	return rec
}

func writeLines[T, R any](w io.Writer, items []T, record func(T) R) error {
	enc := json.NewEncoder(w)
	for _, it := range items {
		if err := enc.Encode(record(it)); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
	}
	return nil
}

// WriteObjectLines writes one JSON object per line.
func WriteObjectLines(w io.Writer, objects []osmprocessing.Object) error {
	return writeLines(w, objects, newObjectRecord)
}

func WriteStreetLines(w io.Writer, ss []streets.Street) error {
	return writeLines(w, ss, newStreetRecord)
}

// WriteBoundaryLines writes one boundary per line. With withGeometry the
// closed rings are added as a GeoJSON MultiPolygon.
func WriteBoundaryLines(w io.Writer, bs []boundaries.Boundary, withGeometry bool) error {
	return writeLines(w, bs, func(b boundaries.Boundary) boundaryRecord {
		return newBoundaryRecord(b, withGeometry)
	})
}
