package validate

import (
	"testing"

	"github.com/raphaelgruber/bikepaths/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func point(lon, lat any) map[string]any {
	return map[string]any{"type": "Point", "coordinates": []any{lon, lat}}
}

func validRaw() models.RawRecord {
	return models.RawRecord{
		"id":        "p1",
		"name":      "Piste Berri",
		"length_km": 2.5,
		"geometry": map[string]any{
			"type":        "LineString",
			"coordinates": []any{[]any{-73.56, 45.50}, []any{-73.55, 45.51}},
		},
	}
}

func TestRecord_Valid(t *testing.T) {
	res := Record(validRaw())
	assert.True(t, res.Valid)
	assert.Empty(t, res.Errors)
}

func TestRecord_Errors(t *testing.T) {
	tests := []struct {
		name string
		raw  models.RawRecord
		want []string
	}{
		{
			name: "missing id",
			raw:  models.RawRecord{"length_km": 1.0, "geometry": point(-73.5, 45.5)},
			want: []string{ErrMissingID},
		},
		{
			name: "null-like id",
			raw:  models.RawRecord{"id": " N/A ", "length_km": 1.0, "geometry": point(-73.5, 45.5)},
			want: []string{ErrMissingID},
		},
		{
			name: "negative length",
			raw:  models.RawRecord{"id": "p1", "length_km": -5.0, "geometry": point(-73.5, 45.5)},
			want: []string{ErrInvalidLength},
		},
		{
			name: "missing length",
			raw:  models.RawRecord{"id": "p1", "geometry": point(-73.5, 45.5)},
			want: []string{ErrInvalidLength},
		},
		{
			name: "non-numeric length",
			raw:  models.RawRecord{"id": "p1", "length_km": "long", "geometry": point(-73.5, 45.5)},
			want: []string{ErrInvalidLength},
		},
		{
			name: "missing geometry",
			raw:  models.RawRecord{"id": "p1", "length_km": 1.0},
			want: []string{ErrMissingGeometry},
		},
		{
			name: "unsupported geometry type",
			raw: models.RawRecord{"id": "p1", "length_km": 1.0, "geometry": map[string]any{
				"type": "Circle", "coordinates": []any{1.0, 2.0},
			}},
			want: []string{ErrUnsupportedGeometry},
		},
		{
			name: "point with three numbers",
			raw: models.RawRecord{"id": "p1", "length_km": 1.0, "geometry": map[string]any{
				"type": "Point", "coordinates": []any{1.0, 2.0, 3.0},
			}},
			want: []string{ErrInvalidCoordinates},
		},
		{
			name: "linestring with one position",
			raw: models.RawRecord{"id": "p1", "length_km": 1.0, "geometry": map[string]any{
				"type": "LineString", "coordinates": []any{[]any{1.0, 2.0}},
			}},
			want: []string{ErrInvalidCoordinates},
		},
		{
			name: "polygon ring not closed",
			raw: models.RawRecord{"id": "p1", "length_km": 1.0, "geometry": map[string]any{
				"type": "Polygon",
				"coordinates": []any{[]any{
					[]any{0.0, 0.0}, []any{1.0, 0.0}, []any{1.0, 1.0}, []any{0.0, 1.0},
				}},
			}},
			want: []string{ErrInvalidCoordinates},
		},
		{
			name: "latitude out of range",
			raw:  models.RawRecord{"id": "p1", "length_km": 1.0, "geometry": point(-73.5, 95.0)},
			want: []string{ErrCoordinateRange},
		},
		{
			name: "nested out of range",
			raw: models.RawRecord{"id": "p1", "length_km": 1.0, "geometry": map[string]any{
				"type": "MultiLineString",
				"coordinates": []any{
					[]any{[]any{-73.5, 45.5}, []any{-73.4, 45.6}},
					[]any{[]any{-73.5, 45.5}, []any{-190.0, 45.6}},
				},
			}},
			want: []string{ErrCoordinateRange},
		},
		{
			name: "all errors reported in order",
			raw:  models.RawRecord{"length_km": -1.0, "geometry": point(200.0, 45.0)},
			want: []string{ErrMissingID, ErrInvalidLength, ErrCoordinateRange},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Record(tt.raw)
			assert.False(t, res.Valid)
			assert.Equal(t, tt.want, res.Errors)
		})
	}
}

func TestResolveGeometry_Sources(t *testing.T) {
	tests := []struct {
		name string
		raw  models.RawRecord
		want models.Geometry
	}{
		{
			name: "geometry as json string",
			raw:  models.RawRecord{"geom": `{"type":"Point","coordinates":[-73.5,45.5]}`},
			want: models.Geometry{Type: "Point", Coordinates: []float64{-73.5, 45.5}},
		},
		{
			name: "numeric string coordinates",
			raw:  models.RawRecord{"shape": point("-73.5", " 45.5 ")},
			want: models.Geometry{Type: "Point", Coordinates: []float64{-73.5, 45.5}},
		},
		{
			name: "lat lon fallback",
			raw:  models.RawRecord{"lat": 45.5, "lng": "-73.6"},
			want: models.Geometry{Type: "Point", Coordinates: []float64{-73.6, 45.5}},
		},
		{
			name: "multilinestring",
			raw: models.RawRecord{"geometry": map[string]any{
				"type":        "MultiLineString",
				"coordinates": []any{[]any{[]any{1.0, 2.0}, []any{3.0, 4.0}}},
			}},
			want: models.Geometry{Type: "MultiLineString", Coordinates: [][][]float64{{{1, 2}, {3, 4}}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, errs := ResolveGeometry(tt.raw)
			require.Empty(t, errs)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveGeometry_LatLonOutOfRange(t *testing.T) {
	_, errs := ResolveGeometry(models.RawRecord{"latitude": 91.0, "longitude": 0.0})
	assert.Equal(t, []string{ErrCoordinateRange}, errs)
}

func TestCleanText(t *testing.T) {
	assert.Equal(t, "Piste Berri", CleanText("  Piste \t Berri\n"))
	assert.Equal(t, "Asphalte", CleanText("Asphalte"))
	assert.Equal(t, "", CleanText("None"))
	assert.Equal(t, "", CleanText(nil))
	assert.Equal(t, "42", CleanText(42.0))
	assert.Equal(t, "", CleanText([]any{"x"}))
}

func TestNumber(t *testing.T) {
	f, ok := Number(" 2.5 ")
	require.True(t, ok)
	assert.InDelta(t, 2.5, f, 1e-9)

	_, ok = Number("null")
	assert.False(t, ok)
	_, ok = Number(true)
	assert.False(t, ok)
}

func TestLength_Aliases(t *testing.T) {
	l, ok := Length(models.RawRecord{"longueur_km": "3.2"})
	require.True(t, ok)
	assert.InDelta(t, 3.2, l, 1e-9)

	l, ok = Length(models.RawRecord{"length_km": nil, "length": 0})
	require.True(t, ok)
	assert.Zero(t, l)
}
