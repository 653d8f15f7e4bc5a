// Package validate checks raw bike path records before transformation.
// Validation is pure and collects every error instead of stopping at the first.
package validate

import "github.com/raphaelgruber/bikepaths/internal/models"

// Validation error messages. They double as rejection reason keys in BatchStats.
const (
	ErrMissingID           = "missing id"
	ErrInvalidLength       = "invalid length"
	ErrMissingGeometry     = "missing geometry"
	ErrUnsupportedGeometry = "unsupported geometry type"
	ErrInvalidCoordinates  = "invalid coordinates"
	ErrCoordinateRange     = "coordinate out of range"
)

// Result is the outcome of validating one record.
type Result struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// Record validates a raw record. Errors are reported in a fixed order:
// id, length, geometry shape, coordinate range.
func Record(raw models.RawRecord) Result {
	errs := []string{}

	if id, _ := Lookup(raw, IDFields); id == "" {
		errs = append(errs, ErrMissingID)
	}
	if _, ok := Length(raw); !ok {
		errs = append(errs, ErrInvalidLength)
	}

	_, geomErrs := ResolveGeometry(raw)
	errs = append(errs, geomErrs...)

	return Result{Valid: len(errs) == 0, Errors: errs}
}
