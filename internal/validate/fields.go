package validate

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/raphaelgruber/bikepaths/internal/models"
)

// Source field aliases, in lookup order. The first alias holding a
// non-empty value wins.
var (
	IDFields       = []string{"id", "_id"}
	NameFields     = []string{"name", "nom", "title"}
	TypeFields     = []string{"type", "type_piste", "category"}
	SurfaceFields  = []string{"surface", "revetement", "material"}
	LengthFields   = []string{"length_km", "longueur_km", "length"}
	GeometryFields = []string{"geometry", "geom", "shape", "coordinates"}
	LatFields      = []string{"latitude", "lat", "y", "coord_y"}
	LonFields      = []string{"longitude", "lon", "lng", "x", "coord_x"}
)

// nullLike values are treated as absent after trimming.
var nullLike = map[string]bool{
	"":     true,
	"n/a":  true,
	"null": true,
	"none": true,
}

// CleanText converts a raw value to a trimmed string with internal whitespace
// collapsed to single spaces. Casing is preserved. Null-like values return "".
func CleanText(v any) string {
	var s string
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		s = val
	case json.Number:
		s = val.String()
	case float64:
		s = strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		s = strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		s = strconv.Itoa(val)
	case int64:
		s = strconv.FormatInt(val, 10)
	case bool:
		s = strconv.FormatBool(val)
	default:
		return ""
	}

	s = strings.Join(strings.Fields(s), " ")
	if nullLike[strings.ToLower(s)] {
		return ""
	}
	return s
}

// Number coerces a raw value to a finite float64. Numeric strings are
// accepted. The second return is false when the value is absent or not numeric.
func Number(v any) (float64, bool) {
	var f float64
	switch val := v.(type) {
	case float64:
		f = val
	case float32:
		f = float64(val)
	case int:
		f = float64(val)
	case int64:
		f = float64(val)
	case json.Number:
		parsed, err := val.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		s := strings.TrimSpace(val)
		if nullLike[strings.ToLower(s)] {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Lookup returns the first alias of raw whose value is non-empty text,
// and the key it was found under.
func Lookup(raw models.RawRecord, aliases []string) (string, string) {
	for _, key := range aliases {
		if s := CleanText(raw[key]); s != "" {
			return s, key
		}
	}
	return "", ""
}

// lookupValue returns the first alias of raw holding a non-null value.
func lookupValue(raw models.RawRecord, aliases []string) (any, bool) {
	for _, key := range aliases {
		v, ok := raw[key]
		if !ok || v == nil {
			continue
		}
		if s, isStr := v.(string); isStr && nullLike[strings.ToLower(strings.TrimSpace(s))] {
			continue
		}
		return v, true
	}
	return nil, false
}

// Length resolves and coerces the record's length in kilometres.
// The second return is false when the length is absent, not numeric or negative.
func Length(raw models.RawRecord) (float64, bool) {
	v, ok := lookupValue(raw, LengthFields)
	if !ok {
		return 0, false
	}
	f, ok := Number(v)
	if !ok || f < 0 {
		return 0, false
	}
	return f, true
}

// ConsumedFields is every source key read by a normalized field.
// Keys outside this set are carried over as pass-through properties.
func ConsumedFields() map[string]bool {
	consumed := make(map[string]bool)
	for _, group := range [][]string{
		IDFields, NameFields, TypeFields, SurfaceFields, LengthFields,
		GeometryFields, LatFields, LonFields,
	} {
		for _, key := range group {
			consumed[key] = true
		}
	}
	return consumed
}
