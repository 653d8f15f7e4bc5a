package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
	"github.com/surrealdb/surrealdb.go/surrealcbor"
)

func TestRecordKey(t *testing.T) {
	key, err := RecordKey(surrealmodels.RecordID{Table: "bike_path", ID: "p1"})
	require.NoError(t, err)
	assert.Equal(t, "p1", key)

	_, err = RecordKey(surrealmodels.RecordID{Table: "bike_path", ID: 42})
	assert.Error(t, err)
}

func TestPipelineRunID(t *testing.T) {
	run := PipelineRun{ID: surrealmodels.RecordID{Table: "pipeline_run", ID: "abc"}}
	assert.Equal(t, "abc", run.RunID())

	run = PipelineRun{ID: surrealmodels.RecordID{Table: "pipeline_run", ID: 7}}
	assert.Equal(t, "7", run.RunID())
}

func TestBikePathDocument(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.FixedZone("EST", -5*3600))
	path := BikePath{
		ID:                  "p1",
		Name:                "Corridor du Littoral",
		Type:                "Piste cyclable",
		Surface:             "unknown",
		LengthKm:            2.5,
		Geometry:            Geometry{Type: GeometryPoint, Coordinates: []float64{-71.208, 46.8139}},
		SourceURL:           "https://example.test/api",
		ExtractionTimestamp: ts,
	}

	doc, err := path.Document()
	require.NoError(t, err)

	assert.NotContains(t, doc, "id", "record key carries the id")
	assert.Equal(t, map[string]any{}, doc["properties"], "nil properties stored as empty object")
	assert.Equal(t, ts.UTC(), doc["extraction_timestamp"])
	assert.Equal(t, surrealmodels.GeometryPoint{Longitude: -71.208, Latitude: 46.8139}, doc["geometry"])
}

func TestBikePathDocument_GeometryTags(t *testing.T) {
	line := [][]float64{{-71.208, 46.8139}, {-71.2075, 46.8145}}
	ring := [][]float64{{-71.2, 46.8}, {-71.1, 46.8}, {-71.1, 46.9}, {-71.2, 46.8}}

	tests := []struct {
		name string
		geom Geometry
		tag  byte
	}{
		{"point", Geometry{Type: GeometryPoint, Coordinates: []float64{-71.208, 46.8139}}, 88},
		{"line", Geometry{Type: GeometryLineString, Coordinates: line}, 89},
		{"polygon", Geometry{Type: GeometryPolygon, Coordinates: [][][]float64{ring}}, 90},
		{"multiline", Geometry{Type: GeometryMultiLineString, Coordinates: [][][]float64{line, line}}, 92},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := BikePath{ID: "p1", Geometry: tt.geom}.Document()
			require.NoError(t, err)

			data, err := surrealcbor.Marshal(doc["geometry"])
			require.NoError(t, err)
			require.GreaterOrEqual(t, len(data), 2)
			// 0xd8: CBOR tag with a one-byte number
			assert.Equal(t, []byte{0xd8, tt.tag}, data[:2])
		})
	}
}

func TestGeometrySurreal_Malformed(t *testing.T) {
	tests := []Geometry{
		{Type: "Circle", Coordinates: []float64{1, 2}},
		{Type: GeometryPoint, Coordinates: []float64{1, 2, 3}},
		{Type: GeometryLineString, Coordinates: [][]float64{{1, 2}, {3}}},
		{Type: GeometryPolygon, Coordinates: [][]float64{{1, 2}}},
	}
	for _, g := range tests {
		_, err := g.Surreal()
		assert.Error(t, err, "%s %v", g.Type, g.Coordinates)
	}
}
