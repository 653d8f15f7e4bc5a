package transform

import (
	"fmt"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/raphaelgruber/bikepaths/internal/models"
)

// SourceName identifies the publisher in exported metadata.
const SourceName = "Quebec Open Data Portal"

// FeatureCollection renders accepted records as a GeoJSON FeatureCollection
// with a metadata member and the bounding box of all features.
func FeatureCollection(paths []models.BikePath, extractionTime time.Time, sourceURL string) (*geojson.FeatureCollection, error) {
	fc := geojson.NewFeatureCollection()

	var bound orb.Bound
	for i, p := range paths {
		geom, err := OrbGeometry(p.Geometry)
		if err != nil {
			return nil, fmt.Errorf("feature %s: %w", p.ID, err)
		}

		f := geojson.NewFeature(geom)
		f.ID = p.ID
		f.Properties["id"] = p.ID
		f.Properties["name"] = p.Name
		f.Properties["type"] = p.Type
		f.Properties["surface"] = p.Surface
		f.Properties["length_km"] = p.LengthKm
		f.Properties["source_url"] = p.SourceURL
		f.Properties["extraction_timestamp"] = p.ExtractionTimestamp.UTC().Format(time.RFC3339)
		// Pass-through attributes are applied last and win over the
		// normalized fields of the same name.
		for k, v := range p.Properties {
			f.Properties[k] = v
		}
		fc.Append(f)

		if i == 0 {
			bound = geom.Bound()
		} else {
			bound = bound.Union(geom.Bound())
		}
	}

	if len(paths) > 0 {
		fc.BBox = geojson.NewBBox(bound)
	}
	fc.ExtraMembers = geojson.Properties{
		"metadata": map[string]any{
			"total_features":       len(fc.Features),
			"extraction_timestamp": extractionTime.UTC().Format(time.RFC3339),
			"source":               SourceName,
			"source_url":           sourceURL,
		},
	}
	return fc, nil
}

// OrbGeometry converts a canonical geometry to its orb equivalent.
func OrbGeometry(g models.Geometry) (orb.Geometry, error) {
	switch g.Type {
	case models.GeometryPoint:
		c, ok := g.Coordinates.([]float64)
		if !ok || len(c) != 2 {
			return nil, fmt.Errorf("point coordinates: unexpected %T", g.Coordinates)
		}
		return orb.Point{c[0], c[1]}, nil
	case models.GeometryLineString:
		c, ok := g.Coordinates.([][]float64)
		if !ok {
			return nil, fmt.Errorf("linestring coordinates: unexpected %T", g.Coordinates)
		}
		return lineString(c), nil
	case models.GeometryMultiLineString:
		c, ok := g.Coordinates.([][][]float64)
		if !ok {
			return nil, fmt.Errorf("multilinestring coordinates: unexpected %T", g.Coordinates)
		}
		mls := make(orb.MultiLineString, 0, len(c))
		for _, line := range c {
			mls = append(mls, lineString(line))
		}
		return mls, nil
	case models.GeometryPolygon:
		c, ok := g.Coordinates.([][][]float64)
		if !ok {
			return nil, fmt.Errorf("polygon coordinates: unexpected %T", g.Coordinates)
		}
		poly := make(orb.Polygon, 0, len(c))
		for _, ring := range c {
			poly = append(poly, orb.Ring(lineString(ring)))
		}
		return poly, nil
	}
	return nil, fmt.Errorf("unsupported geometry type %q", g.Type)
}

func lineString(c [][]float64) orb.LineString {
	ls := make(orb.LineString, 0, len(c))
	for _, p := range c {
		ls = append(ls, orb.Point{p[0], p[1]})
	}
	return ls
}
