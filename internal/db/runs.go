package db

import (
	"context"
	"fmt"
	"time"

	"github.com/raphaelgruber/bikepaths/internal/models"
	"github.com/surrealdb/surrealdb.go"
)

// CreateRun records the start of a pipeline run.
func (c *Client) CreateRun(ctx context.Context, id string, limit int, sourceURL string, startedAt time.Time) error {
	_, err := surrealdb.Query[any](ctx, c.db, `
		CREATE type::record("pipeline_run", $id) CONTENT {
			status: "running",
			record_limit: $limit,
			source_url: $source_url,
			started_at: $started_at
		} RETURN NONE
	`, map[string]any{
		"id":         id,
		"limit":      limit,
		"source_url": sourceURL,
		"started_at": startedAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("create run: %w", wrapQueryError(err))
	}
	return nil
}

// FinishRun marks a run completed, or failed when errMsg is non-empty,
// and stores its result counters.
func (c *Client) FinishRun(ctx context.Context, id string, result map[string]any, errMsg string) error {
	status := models.RunStatusCompleted
	errClause := ""
	vars := map[string]any{
		"id":     id,
		"result": result,
	}
	if errMsg != "" {
		status = models.RunStatusFailed
		errClause = ", error = $error"
		vars["error"] = errMsg
	}
	vars["status"] = status

	sql := fmt.Sprintf(`
		UPDATE type::record("pipeline_run", $id) SET
			status = $status,
			result = $result,
			completed_at = time::now()%s
		RETURN NONE
	`, errClause)

	if _, err := surrealdb.Query[any](ctx, c.db, sql, vars); err != nil {
		return fmt.Errorf("finish run: %w", wrapQueryError(err))
	}
	return nil
}

// ListRuns returns the most recent runs first.
func (c *Client) ListRuns(ctx context.Context, limit int) ([]models.PipelineRun, error) {
	if limit <= 0 {
		limit = 20
	}
	results, err := surrealdb.Query[[]models.PipelineRun](ctx, c.db, `
		SELECT * FROM pipeline_run ORDER BY started_at DESC LIMIT $limit
	`, map[string]any{"limit": limit})
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 {
		return []models.PipelineRun{}, nil
	}
	return (*results)[0].Result, nil
}
