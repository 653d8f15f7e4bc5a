// Package service runs the bike path pipeline: extract, clean, load.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/raphaelgruber/bikepaths/internal/db"
	"github.com/raphaelgruber/bikepaths/internal/extract"
	"github.com/raphaelgruber/bikepaths/internal/metrics"
	"github.com/raphaelgruber/bikepaths/internal/models"
	"github.com/raphaelgruber/bikepaths/internal/transform"
)

// Extractor fetches raw records from the source.
type Extractor interface {
	Fetch(ctx context.Context, limit int) ([]models.RawRecord, error)
	SourceURL() string
}

// PipelineStore is everything a full run needs from the database.
type PipelineStore interface {
	Store
	CollectionStats(ctx context.Context) (*db.CollectionStats, error)
	SaveSnapshot(ctx context.Context, collection []byte, features int, extractionTime time.Time) error
	CreateRun(ctx context.Context, id string, limit int, sourceURL string, startedAt time.Time) error
	FinishRun(ctx context.Context, id string, result map[string]any, errMsg string) error
}

// PipelineOptions configures a Pipeline.
type PipelineOptions struct {
	// DryRun extracts and cleans but writes nothing.
	DryRun bool
	// WriteConcurrency bounds parallel upserts.
	WriteConcurrency int
	// GeoJSON, when set, also receives the accepted records as a
	// FeatureCollection, dry runs included.
	GeoJSON io.Writer
}

// Pipeline orchestrates one extraction, cleaning and load.
type Pipeline struct {
	extractor Extractor
	store     PipelineStore
	loader    *Loader
	opts      PipelineOptions
	metrics   *metrics.Collector
	logger    *slog.Logger
	now       func() time.Time
}

// NewPipeline wires a pipeline. store may be nil for dry runs.
func NewPipeline(extractor Extractor, store PipelineStore, opts PipelineOptions, mc *metrics.Collector, logger *slog.Logger) *Pipeline {
	if mc == nil {
		mc = metrics.NewCollector()
	}
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pipeline{
		extractor: extractor,
		store:     store,
		opts:      opts,
		metrics:   mc,
		logger:    logger,
		now:       time.Now,
	}
	if store != nil {
		p.loader = NewLoader(store, opts.WriteConcurrency, mc, logger)
	}
	return p
}

// Metrics returns the collector phase timings are recorded in.
func (p *Pipeline) Metrics() *metrics.Collector {
	return p.metrics
}

// Run extracts up to limit records (zero means all), cleans and loads them.
// On a fatal error the summary still reports what completed.
func (p *Pipeline) Run(ctx context.Context, limit int) (models.RunSummary, error) {
	return p.run(ctx, limit, p.extractor.SourceURL(), func(ctx context.Context) ([]models.RawRecord, error) {
		return p.extractor.Fetch(ctx, limit)
	})
}

// RunRecords runs the pipeline over records already in hand, such as a
// saved API response, instead of fetching them.
func (p *Pipeline) RunRecords(ctx context.Context, raws []models.RawRecord, sourceURL string) (models.RunSummary, error) {
	return p.run(ctx, 0, sourceURL, func(context.Context) ([]models.RawRecord, error) {
		return raws, nil
	})
}

func (p *Pipeline) run(ctx context.Context, limit int, sourceURL string, fetch func(context.Context) ([]models.RawRecord, error)) (models.RunSummary, error) {
	started := p.now()
	extractionTime := started.UTC()
	summary := models.RunSummary{
		RunID:          uuid.New().String(),
		ExtractionTime: extractionTime,
	}
	log := p.logger.With("run_id", summary.RunID)

	writes := !p.opts.DryRun && p.store != nil
	if writes {
		if err := p.store.CreateRun(ctx, summary.RunID, limit, sourceURL, started); err != nil {
			log.Warn("failed to record run start", "error", err)
		}
	}

	err := p.execute(ctx, log, &summary, sourceURL, writes, fetch)
	summary.Duration = p.now().Sub(started)
	if err != nil {
		summary.Error = err.Error()
	}

	if writes {
		// Use a fresh context so a cancelled run still gets its history written.
		histCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if herr := p.store.FinishRun(histCtx, summary.RunID, summaryResult(summary), summary.Error); herr != nil {
			log.Warn("failed to record run result", "error", herr)
		}
	}

	if err != nil {
		log.Error("pipeline run failed", "error", err, "processed", summary.RecordsProcessed)
		return summary, err
	}
	log.Info("pipeline run complete",
		"fetched", summary.RecordsFetched,
		"processed", summary.RecordsProcessed,
		"rejected", summary.RecordsRejected,
		"inserted", summary.RecordsInserted,
		"updated", summary.RecordsUpdated,
		"failed", summary.RecordsFailed,
		"duration", summary.Duration)
	return summary, nil
}

func (p *Pipeline) execute(
	ctx context.Context,
	log *slog.Logger,
	summary *models.RunSummary,
	sourceURL string,
	writes bool,
	fetch func(context.Context) ([]models.RawRecord, error),
) error {
	// Extract
	reportProgress(ctx, PhaseExtract, 0, 0)
	start := time.Now()
	raws, err := fetch(ctx)
	p.metrics.RecordBatch(metrics.OpExtract, time.Since(start), len(raws))
	summary.RecordsFetched = len(raws)
	if err != nil {
		return fmt.Errorf("extract: %w", err)
	}

	// Transform
	reportProgress(ctx, PhaseTransform, 0, 0)
	start = time.Now()
	accepted, rejected, batch := transform.Clean(raws, summary.ExtractionTime, sourceURL)
	p.metrics.RecordBatch(metrics.OpTransform, time.Since(start), len(raws))
	summary.Batch = batch
	summary.RecordsProcessed = batch.Accepted
	summary.RecordsRejected = batch.Rejected
	for _, r := range rejected {
		log.Debug("record rejected", "index", r.Index, "id", r.Raw["id"], "reason", r.Reason)
	}
	if batch.Rejected > 0 {
		log.Warn("records rejected", "count", batch.Rejected, "reasons", batch.RejectionReasons)
	}

	if p.opts.GeoJSON != nil {
		if err := p.exportGeoJSON(accepted, summary.ExtractionTime, sourceURL); err != nil {
			return fmt.Errorf("export geojson: %w", err)
		}
	}

	if !writes {
		log.Info("dry run, skipping load", "accepted", batch.Accepted)
		return nil
	}

	// Load
	loadStats, loadErr := p.loader.Load(ctx, accepted)
	summary.Load = loadStats
	summary.RecordsInserted = loadStats.Inserted
	summary.RecordsUpdated = loadStats.Updated
	summary.RecordsFailed = loadStats.Failed
	if loadErr != nil {
		return fmt.Errorf("load: %w", loadErr)
	}

	// Snapshot. Losing it does not undo the load, so it only warns.
	reportProgress(ctx, PhaseSnapshot, 0, 0)
	if err := p.saveSnapshot(ctx, accepted, summary.ExtractionTime, sourceURL); err != nil {
		log.Warn("failed to save geojson snapshot", "error", err)
	} else {
		summary.GeoJSONSaved = true
	}
	return nil
}

func (p *Pipeline) saveSnapshot(ctx context.Context, paths []models.BikePath, extractionTime time.Time, sourceURL string) error {
	data, err := encodeCollection(paths, extractionTime, sourceURL)
	if err != nil {
		return err
	}
	return p.store.SaveSnapshot(ctx, data, len(paths), extractionTime)
}

func (p *Pipeline) exportGeoJSON(paths []models.BikePath, extractionTime time.Time, sourceURL string) error {
	data, err := encodeCollection(paths, extractionTime, sourceURL)
	if err != nil {
		return err
	}
	_, err = p.opts.GeoJSON.Write(data)
	return err
}

func encodeCollection(paths []models.BikePath, extractionTime time.Time, sourceURL string) ([]byte, error) {
	fc, err := transform.FeatureCollection(paths, extractionTime, sourceURL)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(fc)
	if err != nil {
		return nil, fmt.Errorf("encode feature collection: %w", err)
	}
	return data, nil
}

// summaryResult is the run summary as stored in run history.
func summaryResult(s models.RunSummary) map[string]any {
	return map[string]any{
		"records_fetched":   s.RecordsFetched,
		"records_processed": s.RecordsProcessed,
		"records_rejected":  s.RecordsRejected,
		"records_inserted":  s.RecordsInserted,
		"records_updated":   s.RecordsUpdated,
		"records_failed":    s.RecordsFailed,
		"geojson_saved":     s.GeoJSONSaved,
		"duration_ms":       s.Duration.Milliseconds(),
		"rejection_reasons": s.Batch.RejectionReasons,
	}
}

// Health statuses.
const (
	HealthHealthy   = "healthy"
	HealthDegraded  = "degraded"
	HealthUnhealthy = "unhealthy"
)

// HealthReport is the result of probing the source and the store.
type HealthReport struct {
	Status    string              `json:"status"`
	Source    string              `json:"source"`
	Store     string              `json:"store"`
	Errors    map[string]string   `json:"errors,omitempty"`
	Stats     *db.CollectionStats `json:"stats,omitempty"`
	CheckedAt time.Time           `json:"checked_at"`
}

// HealthCheck fetches a single record and pings the store.
// A source outage degrades the service; a store outage makes it unhealthy.
func (p *Pipeline) HealthCheck(ctx context.Context) HealthReport {
	report := HealthReport{
		Status:    HealthHealthy,
		Source:    "ok",
		Store:     "ok",
		CheckedAt: p.now().UTC(),
	}
	fail := func(component string, err error) {
		if report.Errors == nil {
			report.Errors = make(map[string]string)
		}
		report.Errors[component] = err.Error()
	}

	if _, err := p.extractor.Fetch(ctx, 1); err != nil {
		report.Source = "error"
		report.Status = HealthDegraded
		fail("source", err)
	}

	switch {
	case p.store == nil:
		report.Store = "not configured"
	default:
		err := p.store.Ping(ctx)
		if err == nil {
			var stats *db.CollectionStats
			stats, err = p.store.CollectionStats(ctx)
			if err == nil {
				report.Stats = stats
			}
		}
		if err != nil {
			report.Store = "error"
			report.Status = HealthUnhealthy
			fail("store", err)
		}
	}

	return report
}

// IsConnectivity reports whether err means the source or store could not be
// reached, as opposed to bad data.
func IsConnectivity(err error) bool {
	return errors.Is(err, db.ErrConnection) || errors.Is(err, extract.ErrSourceUnavailable)
}
