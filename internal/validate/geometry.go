package validate

import (
	"encoding/json"
	"fmt"

	"github.com/raphaelgruber/bikepaths/internal/models"
)

// ResolveGeometry finds the record's geometry, either as a GeoJSON object under
// one of GeometryFields (JSON strings are decoded) or as a Point built from
// latitude/longitude fields. It returns the canonical geometry and any
// validation errors; the geometry is only meaningful when errs is empty.
func ResolveGeometry(raw models.RawRecord) (models.Geometry, []string) {
	for _, key := range GeometryFields {
		obj, ok := geometryObject(raw[key])
		if ok {
			return ParseGeometry(obj)
		}
	}

	latRaw, hasLat := lookupValue(raw, LatFields)
	lonRaw, hasLon := lookupValue(raw, LonFields)
	if hasLat && hasLon {
		lat, latOK := Number(latRaw)
		lon, lonOK := Number(lonRaw)
		if !latOK || !lonOK {
			return models.Geometry{}, []string{ErrInvalidCoordinates}
		}
		geom := models.Geometry{Type: models.GeometryPoint, Coordinates: []float64{lon, lat}}
		if !inRange(lon, lat) {
			return geom, []string{ErrCoordinateRange}
		}
		return geom, nil
	}

	return models.Geometry{}, []string{ErrMissingGeometry}
}

// geometryObject returns v as a JSON object, decoding it first when it is a string.
func geometryObject(v any) (map[string]any, bool) {
	switch val := v.(type) {
	case map[string]any:
		return val, true
	case models.RawRecord:
		return val, true
	case string:
		var obj map[string]any
		if err := json.Unmarshal([]byte(val), &obj); err != nil || obj == nil {
			return nil, false
		}
		return obj, true
	default:
		return nil, false
	}
}

// ParseGeometry checks a GeoJSON geometry object and converts its coordinates
// to nested float slices. Shape errors and the range check are reported
// independently so a record can carry both.
func ParseGeometry(obj map[string]any) (models.Geometry, []string) {
	geomType := CleanText(obj["type"])
	coords, hasCoords := obj["coordinates"]

	var errs []string
	geom := models.Geometry{Type: geomType}

	switch {
	case !supportedTypes[geomType]:
		errs = append(errs, ErrUnsupportedGeometry)
	case !hasCoords || coords == nil:
		errs = append(errs, ErrInvalidCoordinates)
	default:
		parsed, err := parseCoordinates(geomType, coords)
		if err != nil {
			errs = append(errs, ErrInvalidCoordinates)
		} else {
			geom.Coordinates = parsed
		}
	}

	if hasCoords && !positionsInRange(coords) {
		errs = append(errs, ErrCoordinateRange)
	}
	return geom, errs
}

var supportedTypes = map[string]bool{
	models.GeometryPoint:           true,
	models.GeometryLineString:      true,
	models.GeometryMultiLineString: true,
	models.GeometryPolygon:         true,
}

func parseCoordinates(geomType string, v any) (any, error) {
	switch geomType {
	case models.GeometryPoint:
		return position(v)
	case models.GeometryLineString:
		return lineString(v)
	case models.GeometryMultiLineString:
		lines, ok := v.([]any)
		if !ok || len(lines) == 0 {
			return nil, fmt.Errorf("multilinestring needs at least one line")
		}
		out := make([][][]float64, 0, len(lines))
		for _, l := range lines {
			line, err := lineString(l)
			if err != nil {
				return nil, err
			}
			out = append(out, line)
		}
		return out, nil
	case models.GeometryPolygon:
		rings, ok := v.([]any)
		if !ok || len(rings) == 0 {
			return nil, fmt.Errorf("polygon needs at least one ring")
		}
		out := make([][][]float64, 0, len(rings))
		for _, r := range rings {
			ring, err := linearRing(r)
			if err != nil {
				return nil, err
			}
			out = append(out, ring)
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported geometry type %q", geomType)
}

// position parses exactly one [lon, lat] pair.
func position(v any) ([]float64, error) {
	arr, ok := v.([]any)
	if !ok || len(arr) != 2 {
		return nil, fmt.Errorf("position must have exactly 2 numbers")
	}
	lon, lonOK := Number(arr[0])
	lat, latOK := Number(arr[1])
	if !lonOK || !latOK {
		return nil, fmt.Errorf("position must be numeric")
	}
	return []float64{lon, lat}, nil
}

func lineString(v any) ([][]float64, error) {
	arr, ok := v.([]any)
	if !ok || len(arr) < 2 {
		return nil, fmt.Errorf("linestring needs at least 2 positions")
	}
	out := make([][]float64, 0, len(arr))
	for _, p := range arr {
		pos, err := position(p)
		if err != nil {
			return nil, err
		}
		out = append(out, pos)
	}
	return out, nil
}

// linearRing is a closed linestring of at least 4 positions.
func linearRing(v any) ([][]float64, error) {
	ring, err := lineString(v)
	if err != nil {
		return nil, err
	}
	if len(ring) < 4 {
		return nil, fmt.Errorf("ring needs at least 4 positions")
	}
	first, last := ring[0], ring[len(ring)-1]
	if first[0] != last[0] || first[1] != last[1] {
		return nil, fmt.Errorf("ring is not closed")
	}
	return ring, nil
}

// positionsInRange walks nested arrays and checks every numeric pair found.
// Arrays that are not coordinate pairs are skipped, not reported.
func positionsInRange(v any) bool {
	arr, ok := v.([]any)
	if !ok {
		return true
	}

	if len(arr) >= 2 {
		lon, lonOK := Number(arr[0])
		lat, latOK := Number(arr[1])
		if lonOK && latOK {
			return inRange(lon, lat)
		}
	}

	for _, item := range arr {
		if !positionsInRange(item) {
			return false
		}
	}
	return true
}

func inRange(lon, lat float64) bool {
	return lon >= -180 && lon <= 180 && lat >= -90 && lat <= 90
}
