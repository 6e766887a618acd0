package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cloo-solutions/agentkb/internal/service"
)

// SearchLogRepository stores search logs for retrieval quality review.
type SearchLogRepository struct {
	pool *pgxpool.Pool
}

func NewSearchLogRepository(pool *pgxpool.Pool) *SearchLogRepository {
	return &SearchLogRepository{pool: pool}
}

func (r *SearchLogRepository) CreateSearchLog(ctx context.Context, entry service.SearchLogEntry) (string, error) {
	filters := map[string]any{}
	filters["query_length"] = len(entry.Query)
	filters["threshold"] = entry.Threshold
	filters["limit"] = entry.Limit
	if entry.Kind != "" {
		filters["kind"] = entry.Kind
	}

	filtersJSON, _ := json.Marshal(filters)
	resultsJSON, _ := json.Marshal(entry.Results)

	var id string
	err := r.pool.QueryRow(ctx,
		`INSERT INTO search_logs (org_id, agent_id, query, filters, results, result_count, duration_ms)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		entry.OrgID,
		entry.AgentID,
		entry.Query,
		filtersJSON,
		resultsJSON,
		len(entry.Results),
		entry.DurationMs,
	).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}
