package db

import (
	"context"
	"fmt"
	"time"

	"github.com/raphaelgruber/bikepaths/internal/models"
	"github.com/surrealdb/surrealdb.go"
)

// TypeCount is a bike path type with its document count.
type TypeCount struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// SurfaceCount is a surface with its document count.
type SurfaceCount struct {
	Surface string `json:"surface"`
	Count   int    `json:"count"`
}

// CollectionStats describes the stored bike paths.
type CollectionStats struct {
	Table            string         `json:"table"`
	Documents        int            `json:"documents"`
	LatestExtraction *time.Time     `json:"latest_extraction,omitempty"`
	ByType           []TypeCount    `json:"by_type"`
	BySurface        []SurfaceCount `json:"by_surface"`
}

type countRow struct {
	Count int `json:"count"`
}

// UpsertBikePath writes p keyed on its id, replacing any previous document.
// Returns true when the record did not exist before.
func (c *Client) UpsertBikePath(ctx context.Context, p models.BikePath) (bool, error) {
	vars := map[string]any{"table": c.table, "id": p.ID}

	// Check if the path exists to tell inserts from updates
	existsSQL := `SELECT count() AS count FROM type::record($table, $id)`
	existsResult, err := surrealdb.Query[[]countRow](ctx, c.db, existsSQL, vars)
	if err != nil {
		return false, fmt.Errorf("check bike path exists: %w", wrapQueryError(err))
	}

	wasCreated := true
	if existsResult != nil && len(*existsResult) > 0 && len((*existsResult)[0].Result) > 0 {
		wasCreated = (*existsResult)[0].Result[0].Count == 0
	}

	doc, err := p.Document()
	if err != nil {
		return false, err
	}
	vars["doc"] = doc
	_, err = surrealdb.Query[any](ctx, c.db, `
		UPSERT type::record($table, $id) CONTENT $doc RETURN NONE
	`, vars)
	if err != nil {
		return false, fmt.Errorf("upsert bike path: %w", wrapQueryError(err))
	}
	return wasCreated, nil
}

// GetBikePath reads the stored document for id. Returns nil if not found.
// Geometry comes back in the driver's representation.
func (c *Client) GetBikePath(ctx context.Context, id string) (map[string]any, error) {
	results, err := surrealdb.Query[[]map[string]any](ctx, c.db, `
		SELECT * FROM type::record($table, $id)
	`, map[string]any{"table": c.table, "id": id})
	if err != nil {
		return nil, fmt.Errorf("get bike path: %w", wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, nil
	}
	return (*results)[0].Result[0], nil
}

// SaveSnapshot replaces the stored GeoJSON export with collection,
// the encoded FeatureCollection.
func (c *Client) SaveSnapshot(ctx context.Context, collection []byte, features int, extractionTime time.Time) error {
	_, err := surrealdb.Query[any](ctx, c.db, `
		UPSERT type::record($table, "latest") CONTENT {
			geojson: $geojson,
			total_features: $total,
			extraction_timestamp: $extraction,
			updated_at: time::now()
		} RETURN NONE
	`, map[string]any{
		"table":      snapshotTable(c.table),
		"geojson":    string(collection),
		"total":      features,
		"extraction": extractionTime.UTC(),
	})
	if err != nil {
		return fmt.Errorf("save snapshot: %w", wrapQueryError(err))
	}
	return nil
}

// LatestSnapshot returns the last saved FeatureCollection, or nil if none.
func (c *Client) LatestSnapshot(ctx context.Context) ([]byte, error) {
	results, err := surrealdb.Query[[]struct {
		GeoJSON string `json:"geojson"`
	}](ctx, c.db, `SELECT geojson FROM type::record($table, "latest")`, map[string]any{
		"table": snapshotTable(c.table),
	})
	if err != nil {
		return nil, fmt.Errorf("latest snapshot: %w", wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, nil
	}
	return []byte((*results)[0].Result[0].GeoJSON), nil
}

// CollectionStats counts stored paths and groups them by type and surface.
func (c *Client) CollectionStats(ctx context.Context) (*CollectionStats, error) {
	vars := map[string]any{"table": c.table}
	stats := &CollectionStats{
		Table:     c.table,
		ByType:    []TypeCount{},
		BySurface: []SurfaceCount{},
	}

	counts, err := surrealdb.Query[[]countRow](ctx, c.db, `
		SELECT count() AS count FROM type::table($table) GROUP ALL
	`, vars)
	if err != nil {
		return nil, fmt.Errorf("count bike paths: %w", wrapQueryError(err))
	}
	if counts != nil && len(*counts) > 0 && len((*counts)[0].Result) > 0 {
		stats.Documents = (*counts)[0].Result[0].Count
	}

	latest, err := surrealdb.Query[[]struct {
		ExtractionTimestamp time.Time `json:"extraction_timestamp"`
	}](ctx, c.db, `
		SELECT extraction_timestamp FROM type::table($table)
		ORDER BY extraction_timestamp DESC LIMIT 1
	`, vars)
	if err != nil {
		return nil, fmt.Errorf("latest extraction: %w", wrapQueryError(err))
	}
	if latest != nil && len(*latest) > 0 && len((*latest)[0].Result) > 0 {
		ts := (*latest)[0].Result[0].ExtractionTimestamp.UTC()
		stats.LatestExtraction = &ts
	}

	byType, err := surrealdb.Query[[]TypeCount](ctx, c.db, `
		SELECT type, count() AS count FROM type::table($table) GROUP BY type ORDER BY count DESC
	`, vars)
	if err != nil {
		return nil, fmt.Errorf("count by type: %w", wrapQueryError(err))
	}
	if byType != nil && len(*byType) > 0 {
		stats.ByType = (*byType)[0].Result
	}

	bySurface, err := surrealdb.Query[[]SurfaceCount](ctx, c.db, `
		SELECT surface, count() AS count FROM type::table($table) GROUP BY surface ORDER BY count DESC
	`, vars)
	if err != nil {
		return nil, fmt.Errorf("count by surface: %w", wrapQueryError(err))
	}
	if bySurface != nil && len(*bySurface) > 0 {
		stats.BySurface = (*bySurface)[0].Result
	}

	return stats, nil
}

// PruneBefore deletes paths extracted before cutoff and returns how many
// were removed. Loads never delete; this is only run on request.
func (c *Client) PruneBefore(ctx context.Context, cutoff time.Time) (int, error) {
	vars := map[string]any{"table": c.table, "cutoff": cutoff.UTC()}

	// Step 1: count what will go, for reporting
	counts, err := surrealdb.Query[[]countRow](ctx, c.db, `
		SELECT count() AS count FROM type::table($table)
		WHERE extraction_timestamp < $cutoff GROUP ALL
	`, vars)
	if err != nil {
		return 0, fmt.Errorf("prune count: %w", wrapQueryError(err))
	}
	n := 0
	if counts != nil && len(*counts) > 0 && len((*counts)[0].Result) > 0 {
		n = (*counts)[0].Result[0].Count
	}
	if n == 0 {
		return 0, nil
	}

	// Step 2: delete
	_, err = surrealdb.Query[any](ctx, c.db, `
		DELETE type::table($table) WHERE extraction_timestamp < $cutoff
	`, vars)
	if err != nil {
		return 0, fmt.Errorf("prune: %w", wrapQueryError(err))
	}

	c.logger.Info("pruned bike paths", "table", c.table, "deleted", n, "cutoff", cutoff)
	return n, nil
}
