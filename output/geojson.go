package output

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/paulmach/orb/geojson"

	"osmextract/boundaries"
	"osmextract/streets"
)

func StreetFeatures(ss []streets.Street) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, s := range ss {
		if len(s.Geometry) == 0 {
			continue
		}
		f := geojson.NewFeature(s.Geometry)
		f.Properties["name"] = s.Name
		if s.Boundary != "" {
			f.Properties["boundary"] = s.Boundary
		}
		fc.Append(f)
	}
	return fc
}

// BoundaryFeatures uses the closed rings of each boundary, or its bounding
// box flagged as incomplete when no ring closed.
func BoundaryFeatures(bs []boundaries.Boundary) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, b := range bs {
		var f *geojson.Feature
		if len(b.Geometry) > 0 {
			f = geojson.NewFeature(b.Geometry)
		} else {
			f = geojson.NewFeature(b.Bound.ToPolygon())
		}
		f.Properties["name"] = b.Name
		f.Properties["admin_level"] = b.AdminLevel
		if b.Incomplete {
			f.Properties["incomplete"] = true
		}
		fc.Append(f)
	}
	return fc
}

func writeCollection(w io.Writer, fc *geojson.FeatureCollection) error {
	data, err := json.Marshal(fc)
	if err != nil {
		return fmt.Errorf("failed to marshal feature collection: %w", err)
	}
	if _, err := fmt.Fprintf(w, "%s\n", data); err != nil {
		return fmt.Errorf("failed to write feature collection: %w", err)
	}
	return nil
}

func WriteStreetGeoJSON(w io.Writer, ss []streets.Street) error {
	return writeCollection(w, StreetFeatures(ss))
}

func WriteBoundaryGeoJSON(w io.Writer, bs []boundaries.Boundary) error {
	return writeCollection(w, BoundaryFeatures(bs))
}
