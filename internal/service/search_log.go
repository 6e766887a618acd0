package service

import (
	"context"

	"github.com/cloo-solutions/agentkb/internal/domain"
)

// SearchLogResult captures a single result entry for logging.
type SearchLogResult struct {
	SegmentID  string             `json:"segment_id"`
	Kind       domain.SegmentKind `json:"kind"`
	Similarity float64            `json:"similarity"`
}

// SearchLogEntry captures a search request and its results.
type SearchLogEntry struct {
	OrgID      string
	AgentID    string
	Query      string
	Threshold  float64
	Kind       domain.SegmentKind
	Limit      int
	DurationMs int
	Results    []SearchLogResult
}

// SearchLogRepository persists search logs.
type SearchLogRepository interface {
	CreateSearchLog(ctx context.Context, entry SearchLogEntry) (string, error)
}
