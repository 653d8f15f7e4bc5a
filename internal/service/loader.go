package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/raphaelgruber/bikepaths/internal/db"
	"github.com/raphaelgruber/bikepaths/internal/metrics"
	"github.com/raphaelgruber/bikepaths/internal/models"
	"golang.org/x/sync/errgroup"
)

// DefaultWriteConcurrency bounds parallel upserts when none is configured.
const DefaultWriteConcurrency = 8

// Store is the persistence the Loader writes through. *db.Client implements it.
type Store interface {
	EnsureIndexes(ctx context.Context) error
	UpsertBikePath(ctx context.Context, p models.BikePath) (bool, error)
	Ping(ctx context.Context) error
}

// pingTimeout bounds the reachability check after a connection-class write error.
const pingTimeout = 5 * time.Second

// Loader upserts normalized bike paths keyed on their id.
type Loader struct {
	store       Store
	concurrency int
	metrics     *metrics.Collector
	logger      *slog.Logger
}

// NewLoader creates a loader writing at most concurrency records at a time.
func NewLoader(store Store, concurrency int, mc *metrics.Collector, logger *slog.Logger) *Loader {
	if concurrency <= 0 {
		concurrency = DefaultWriteConcurrency
	}
	if mc == nil {
		mc = metrics.NewCollector()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{store: store, concurrency: concurrency, metrics: mc, logger: logger}
}

// writeOutcome is the result of one upsert, stored in the slot of its input index.
type writeOutcome struct {
	attempted bool
	created   bool
	err       error
}

// Load writes paths and reports inserted, updated and failed counts.
//
// Indexes are ensured before the first write; failing that is fatal. A write
// failing with db.ErrConnection is followed by a ping: if the store still
// answers, the failure is recorded like any other and the batch continues.
// Otherwise further writes stop and Load returns the stats of what completed
// together with the error. Other write failures are recorded in
// LoadStats.Errors.
func (l *Loader) Load(ctx context.Context, paths []models.BikePath) (models.LoadStats, error) {
	start := time.Now()
	stats := models.LoadStats{Errors: []models.WriteError{}}

	if err := l.store.EnsureIndexes(ctx); err != nil {
		return stats, fmt.Errorf("ensure indexes: %w", err)
	}

	outcomes := make([]writeOutcome, len(paths))
	var done atomic.Int64
	reportProgress(ctx, PhaseLoad, 0, len(paths))
	var fatal error
	for _, wave := range writeWaves(paths) {
		if fatal = l.writeWave(ctx, paths, wave, outcomes, &done); fatal != nil {
			break
		}
		if ctx.Err() != nil {
			break
		}
	}

	for i, o := range outcomes {
		if !o.attempted {
			continue
		}
		switch {
		case o.err != nil:
			stats.Failed++
			stats.Errors = append(stats.Errors, models.WriteError{ID: paths[i].ID, Message: o.err.Error()})
		case o.created:
			stats.Inserted++
		default:
			stats.Updated++
		}
	}
	l.metrics.RecordBatch(metrics.OpLoad, time.Since(start), len(paths))

	l.logger.Info("load complete",
		"records", len(paths),
		"inserted", stats.Inserted,
		"updated", stats.Updated,
		"failed", stats.Failed,
		"duration", time.Since(start))

	if fatal != nil {
		return stats, fmt.Errorf("load aborted: %w", fatal)
	}
	if err := ctx.Err(); err != nil {
		return stats, err
	}
	return stats, nil
}

// writeWave upserts the paths at the given indexes in parallel.
// Returns the first connection error confirmed by a failed ping.
func (l *Loader) writeWave(ctx context.Context, paths []models.BikePath, wave []int, outcomes []writeOutcome, done *atomic.Int64) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)

	for _, i := range wave {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			started := time.Now()
			created, err := l.store.UpsertBikePath(gctx, paths[i])
			l.metrics.RecordBatch(metrics.OpUpsert, time.Since(started), 1)

			// A write cut short by cancellation did not happen as far as the stats go.
			if err != nil && !errors.Is(err, db.ErrConnection) && gctx.Err() != nil {
				return nil
			}
			outcomes[i] = writeOutcome{attempted: true, created: created, err: err}
			reportProgress(gctx, PhaseLoad, int(done.Add(1)), len(paths))

			if err == nil {
				return nil
			}
			if errors.Is(err, db.ErrConnection) {
				if perr := l.ping(gctx); perr != nil {
					return fmt.Errorf("%w (store unreachable: %v)", err, perr)
				}
			}
			l.logger.Warn("upsert failed", "id", paths[i].ID, "error", err)
			return nil
		})
	}
	return g.Wait()
}

func (l *Loader) ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return l.store.Ping(ctx)
}

// writeWaves splits indexes so no id appears twice in the same wave.
// Repeated ids are written in input order, one wave apart, so the last
// occurrence wins as it would in a sequential load.
func writeWaves(paths []models.BikePath) [][]int {
	seen := make(map[string]int, len(paths))
	var waves [][]int
	for i, p := range paths {
		n := seen[p.ID]
		seen[p.ID] = n + 1
		if n == len(waves) {
			waves = append(waves, nil)
		}
		waves[n] = append(waves[n], i)
	}
	return waves
}
