// Package transform turns raw API records into normalized bike paths.
package transform

import (
	"maps"
	"strings"
	"time"

	"github.com/raphaelgruber/bikepaths/internal/models"
	"github.com/raphaelgruber/bikepaths/internal/validate"
)

// DefaultSurface is used when a record carries no surface value.
const DefaultSurface = "unknown"

var consumed = validate.ConsumedFields()

// TransformOne validates raw and, when it passes, builds the normalized record.
// A nil rejection means the record was accepted. Output depends only on the
// inputs, so the same raw record always yields the same BikePath.
func TransformOne(raw models.RawRecord, extractionTime time.Time, sourceURL string) (models.BikePath, *models.Rejection) {
	res := validate.Record(raw)
	if !res.Valid {
		return models.BikePath{}, &models.Rejection{
			Raw:    raw,
			Reason: strings.Join(res.Errors, "; "),
			Errors: res.Errors,
		}
	}

	// Validation already resolved these, the second lookups cannot fail.
	id, _ := validate.Lookup(raw, validate.IDFields)
	length, _ := validate.Length(raw)
	geom, _ := validate.ResolveGeometry(raw)

	name, _ := validate.Lookup(raw, validate.NameFields)
	pathType, _ := validate.Lookup(raw, validate.TypeFields)
	surface, _ := validate.Lookup(raw, validate.SurfaceFields)
	if surface == "" {
		surface = DefaultSurface
	}

	return models.BikePath{
		ID:                  id,
		Name:                name,
		Type:                pathType,
		Surface:             surface,
		LengthKm:            length,
		Geometry:            geom,
		Properties:          properties(raw),
		SourceURL:           sourceURL,
		ExtractionTimestamp: extractionTime.UTC(),
	}, nil
}

// properties copies a nested properties object verbatim, or collects every
// key not read by a normalized field.
func properties(raw models.RawRecord) map[string]any {
	if nested, ok := raw["properties"].(map[string]any); ok && nested != nil {
		return maps.Clone(nested)
	}

	props := make(map[string]any)
	for k, v := range raw {
		if consumed[k] {
			continue
		}
		props[k] = v
	}
	return props
}
