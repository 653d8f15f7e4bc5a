package transform

import (
	"encoding/json"
	"testing"

	"github.com/paulmach/orb"
	"github.com/raphaelgruber/bikepaths/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeatureCollection(t *testing.T) {
	raws := []models.RawRecord{
		rawPath("p1", 2.5),
		{
			"id":        "p2",
			"length_km": 1.2,
			"quartier":  "Limoilou",
			"geometry": map[string]any{
				"type":        "LineString",
				"coordinates": []any{[]any{-71.3, 46.7}, []any{-71.1, 46.9}},
			},
		},
	}
	accepted, _, _ := Clean(raws, testExtraction, testSourceURL)
	require.Len(t, accepted, 2)

	fc, err := FeatureCollection(accepted, testExtraction, testSourceURL)
	require.NoError(t, err)
	require.Len(t, fc.Features, 2)

	f := fc.Features[1]
	assert.Equal(t, "p2", f.ID)
	assert.Equal(t, "Limoilou", f.Properties["quartier"])
	assert.Equal(t, "unknown", f.Properties["surface"])
	assert.Equal(t, "2024-01-15T10:30:00Z", f.Properties["extraction_timestamp"])
	assert.IsType(t, orb.LineString{}, f.Geometry)
	assert.Equal(t, "p2", f.Properties["id"])

	assert.Equal(t, []float64{-71.3, 46.7, -71.1, 46.9}, []float64(fc.BBox))

	data, err := json.Marshal(fc)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "FeatureCollection", doc["type"])
	assert.Equal(t, map[string]any{
		"total_features":       2.0,
		"extraction_timestamp": "2024-01-15T10:30:00Z",
		"source":               SourceName,
		"source_url":           testSourceURL,
	}, doc["metadata"])
}

func TestFeatureCollection_PassThroughWins(t *testing.T) {
	path := models.BikePath{
		ID:         "p1",
		Name:       "Corridor du Littoral",
		Surface:    "unknown",
		Geometry:   models.Geometry{Type: models.GeometryPoint, Coordinates: []float64{-71.2, 46.8}},
		Properties: map[string]any{"name": "Littoral (segment est)", "surface": "Asphalte", "statut": "ouvert"},
	}

	fc, err := FeatureCollection([]models.BikePath{path}, testExtraction, testSourceURL)
	require.NoError(t, err)
	require.Len(t, fc.Features, 1)

	props := fc.Features[0].Properties
	assert.Equal(t, "p1", props["id"])
	assert.Equal(t, "Littoral (segment est)", props["name"])
	assert.Equal(t, "Asphalte", props["surface"])
	assert.Equal(t, "ouvert", props["statut"])
}

func TestFeatureCollection_Empty(t *testing.T) {
	fc, err := FeatureCollection(nil, testExtraction, testSourceURL)
	require.NoError(t, err)
	assert.Empty(t, fc.Features)
	assert.Nil(t, fc.BBox)
}

func TestOrbGeometry_Polygon(t *testing.T) {
	g, err := OrbGeometry(models.Geometry{
		Type:        models.GeometryPolygon,
		Coordinates: [][][]float64{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}},
	})
	require.NoError(t, err)
	poly, ok := g.(orb.Polygon)
	require.True(t, ok)
	assert.Len(t, poly[0], 4)
}

func TestOrbGeometry_Mismatch(t *testing.T) {
	_, err := OrbGeometry(models.Geometry{Type: models.GeometryPoint, Coordinates: [][]float64{{1, 2}}})
	assert.Error(t, err)
}
