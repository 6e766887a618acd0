package repository

import (
	"context"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/cloo-solutions/agentkb/internal/service"
)

// HNSW candidate list bounds (pgvector defaults to 40, accepts up to 1000).
const (
	minEFSearch = 40
	maxEFSearch = 1000
)

// SearchRepository runs cosine similarity queries over segment embeddings.
type SearchRepository struct {
	pool *pgxpool.Pool
}

func NewSearchRepository(pool *pgxpool.Pool) *SearchRepository {
	return &SearchRepository{pool: pool}
}

func (r *SearchRepository) SearchByEmbedding(ctx context.Context, q service.SimilarityQuery) ([]*service.SearchResult, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}

	vec := pgvector.NewVector(q.Embedding)

	query := `
		SELECT s.id, s.document_id, s.kind, s.segment_index, s.title, s.title_path, s.content, s.token_count,
		       1 - (s.embedding <=> $1) AS similarity,
		       d.title, d.description, d.enabled
		FROM knowledge_segments s
		JOIN knowledge_documents d ON d.id = s.document_id
		WHERE d.agent_id = $2
		  AND s.embedding IS NOT NULL
		  AND ($3::text = '' OR s.kind = $3::text)
		  AND 1 - (s.embedding <=> $1) >= $4
		ORDER BY s.embedding <=> $1
		LIMIT $5`

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	// The segment index is shared by every agent and the agent filter runs
	// after the index scan. Iterative scans keep walking the graph until
	// enough rows pass the filters, in exact distance order.
	if _, err := tx.Exec(ctx,
		`SELECT set_config('hnsw.iterative_scan', 'strict_order', true),
		        set_config('hnsw.ef_search', $1, true)`,
		strconv.Itoa(efSearch(limit)),
	); err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, query, vec, q.AgentID, string(q.Kind), q.Threshold, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]*service.SearchResult, 0)
	for rows.Next() {
		var res service.SearchResult
		var title, titlePath, description *string
		if err := rows.Scan(
			&res.SegmentID, &res.DocumentID, &res.Kind, &res.Index, &title, &titlePath, &res.Content, &res.TokenCount,
			&res.Similarity,
			&res.DocumentTitle, &description, &res.DocumentEnabled,
		); err != nil {
			return nil, err
		}
		res.Title = stringValue(title)
		res.TitlePath = stringValue(titlePath)
		res.DocumentDescription = stringValue(description)
		results = append(results, &res)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	return results, tx.Commit(ctx)
}

func efSearch(limit int) int {
	return max(minEFSearch, min(limit, maxEFSearch))
}
