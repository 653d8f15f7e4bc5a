package models

import (
	"fmt"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// RecordKey extracts the string key from a SurrealDB RecordID,
// e.g. "p1" from bike_path:p1.
func RecordKey(id surrealmodels.RecordID) (string, error) {
	s, ok := id.ID.(string)
	if !ok {
		return "", fmt.Errorf("unexpected record key type: %T (expected string)", id.ID)
	}
	return s, nil
}

// RunID returns the run's uuid, or the raw record id when the key is not a string.
func (r PipelineRun) RunID() string {
	if key, err := RecordKey(r.ID); err == nil {
		return key
	}
	return fmt.Sprintf("%v", r.ID.ID)
}
