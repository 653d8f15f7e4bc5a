package transform

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/raphaelgruber/bikepaths/internal/models"
	"github.com/raphaelgruber/bikepaths/internal/validate"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSourceURL = "https://www.donneesquebec.ca/recherche/api/3/action"

var testExtraction = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

func rawPath(id string, length any) models.RawRecord {
	return models.RawRecord{
		"id":        id,
		"name":      "Piste " + id,
		"type":      "Piste cyclable",
		"length_km": length,
		"geometry": map[string]any{
			"type":        "Point",
			"coordinates": []any{-71.208, 46.8139},
		},
	}
}

func TestTransformOne_Defaults(t *testing.T) {
	raw := models.RawRecord{
		"id":        "p1",
		"length_km": 2.5,
		"geometry":  map[string]any{"type": "Point", "coordinates": []any{-73.5, 45.5}},
	}

	rec, rej := TransformOne(raw, testExtraction, testSourceURL)
	require.Nil(t, rej)

	assert.Equal(t, "p1", rec.ID)
	assert.InDelta(t, 2.5, rec.LengthKm, 1e-9)
	assert.Equal(t, "unknown", rec.Surface)
	assert.Equal(t, "", rec.Name)
	assert.Equal(t, models.Geometry{Type: "Point", Coordinates: []float64{-73.5, 45.5}}, rec.Geometry)
	assert.Equal(t, testSourceURL, rec.SourceURL)
	assert.True(t, rec.ExtractionTimestamp.Equal(testExtraction))
	assert.NotNil(t, rec.Properties)
	assert.Empty(t, rec.Properties)
}

func TestTransformOne_Golden(t *testing.T) {
	raw := models.RawRecord{
		"id":          "p1",
		"name":        "  Piste   Berri ",
		"type":        "Piste cyclable",
		"length_km":   "2.5",
		"description": "Le long du canal",
		"status":      "Active",
		"geometry": map[string]any{
			"type":        "LineString",
			"coordinates": []any{[]any{-73.56, 45.5}, []any{"-73.55", "45.51"}},
		},
	}

	rec, rej := TransformOne(raw, testExtraction, testSourceURL)
	require.Nil(t, rej)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.AssertJson(t, "bike_path_normalized", rec)
}

func TestTransformOne_NestedPropertiesVerbatim(t *testing.T) {
	raw := rawPath("p2", 1.0)
	raw["properties"] = map[string]any{"arrondissement": "  Ville-Marie ", "saisons": 4.0}
	raw["status"] = "Active"

	rec, rej := TransformOne(raw, testExtraction, testSourceURL)
	require.Nil(t, rej)
	assert.Equal(t, map[string]any{"arrondissement": "  Ville-Marie ", "saisons": 4.0}, rec.Properties)
}

func TestTransformOne_Aliases(t *testing.T) {
	raw := models.RawRecord{
		"_id":         42,
		"nom":         "Route Verte",
		"type_piste":  "Chaussee  designee",
		"revetement":  "Beton",
		"longueur_km": 12.8,
		"latitude":    46.8229,
		"longitude":   -71.2167,
	}

	rec, rej := TransformOne(raw, testExtraction, testSourceURL)
	require.Nil(t, rej)
	assert.Equal(t, "42", rec.ID)
	assert.Equal(t, "Route Verte", rec.Name)
	assert.Equal(t, "Chaussee designee", rec.Type)
	assert.Equal(t, "Beton", rec.Surface)
	assert.Equal(t, models.Geometry{Type: "Point", Coordinates: []float64{-71.2167, 46.8229}}, rec.Geometry)
}

func TestTransformOne_Rejected(t *testing.T) {
	raw := models.RawRecord{"length_km": -5.0}

	_, rej := TransformOne(raw, testExtraction, testSourceURL)
	require.NotNil(t, rej)
	assert.Equal(t, "missing id; invalid length; missing geometry", rej.Reason)
	assert.Equal(t, []string{validate.ErrMissingID, validate.ErrInvalidLength, validate.ErrMissingGeometry}, rej.Errors)
}

func TestTransformOne_Deterministic(t *testing.T) {
	raw := rawPath("p3", 3.3)
	a, _ := TransformOne(raw, testExtraction, testSourceURL)
	b, _ := TransformOne(raw, testExtraction, testSourceURL)

	ja, err := json.Marshal(a)
	require.NoError(t, err)
	jb, err := json.Marshal(b)
	require.NoError(t, err)
	assert.JSONEq(t, string(ja), string(jb))
}

func TestClean_IsolatesBadRecord(t *testing.T) {
	var raws []models.RawRecord
	for i := range 10 {
		length := any(float64(i) + 0.5)
		if i == 4 {
			length = -5.0
		}
		raws = append(raws, rawPath(fmt.Sprintf("p%d", i), length))
	}

	accepted, rejected, stats := Clean(raws, testExtraction, testSourceURL)

	require.Len(t, accepted, 9)
	require.Len(t, rejected, 1)
	assert.Equal(t, 4, rejected[0].Index)
	assert.Equal(t, "p4", rejected[0].Raw["id"])
	assert.Contains(t, rejected[0].Reason, "length")

	assert.Equal(t, models.BatchStats{
		Total:            10,
		Accepted:         9,
		Rejected:         1,
		RejectionReasons: map[string]int{validate.ErrInvalidLength: 1},
	}, stats)

	// Input order is kept.
	for i, rec := range accepted {
		want := i
		if i >= 4 {
			want = i + 1
		}
		assert.Equal(t, fmt.Sprintf("p%d", want), rec.ID)
	}
}

func TestClean_CountsEachError(t *testing.T) {
	raws := []models.RawRecord{
		{"length_km": -1.0},
		{"id": "x", "length_km": 1.0},
		rawPath("ok", 1.0),
	}

	accepted, rejected, stats := Clean(raws, testExtraction, testSourceURL)
	assert.Len(t, accepted, 1)
	assert.Len(t, rejected, 2)
	assert.Equal(t, map[string]int{
		validate.ErrMissingID:       1,
		validate.ErrInvalidLength:   1,
		validate.ErrMissingGeometry: 2,
	}, stats.RejectionReasons)
	assert.Equal(t, stats.Total, stats.Accepted+stats.Rejected)
}

func TestClean_Empty(t *testing.T) {
	accepted, rejected, stats := Clean(nil, testExtraction, testSourceURL)
	assert.Empty(t, accepted)
	assert.Empty(t, rejected)
	assert.Equal(t, 0, stats.Total)
	assert.Equal(t, 0, stats.Accepted)
	assert.Equal(t, 0, stats.Rejected)
}
