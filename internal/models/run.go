package models

import (
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// Run statuses persisted in pipeline_run.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// RunSummary is the accounting of one pipeline run.
type RunSummary struct {
	RunID            string        `json:"run_id"`
	ExtractionTime   time.Time     `json:"extraction_time"`
	RecordsFetched   int           `json:"records_fetched"`
	RecordsProcessed int           `json:"records_processed"`
	RecordsRejected  int           `json:"records_rejected"`
	RecordsInserted  int           `json:"records_inserted"`
	RecordsUpdated   int           `json:"records_updated"`
	RecordsFailed    int           `json:"records_failed"`
	GeoJSONSaved     bool          `json:"geojson_saved"`
	Duration         time.Duration `json:"duration"`
	Error            string        `json:"error,omitempty"`

	Batch BatchStats `json:"batch"`
	Load  LoadStats  `json:"load"`
}

// PipelineRun is a persisted run history entry.
type PipelineRun struct {
	ID          surrealmodels.RecordID `json:"id"`
	Status      string                 `json:"status"`
	Limit       int                    `json:"record_limit"`
	SourceURL   string                 `json:"source_url"`
	Result      map[string]any         `json:"result,omitempty"`
	Error       *string                `json:"error,omitempty"`
	StartedAt   time.Time              `json:"started_at"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
}
