//go:build integration

package repository

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/agentkb/internal/domain"
	"github.com/cloo-solutions/agentkb/internal/service"
)

func TestSearchRepository_SearchByEmbedding(t *testing.T) {
	ctx := context.Background()
	pool := setupPool(ctx, t)
	segments := NewSegmentRepository(pool)
	docs := NewDocumentRepository(pool)
	search := NewSearchRepository(pool)

	agent := setupAgent(ctx, t, pool)
	other := setupAgent(ctx, t, pool)
	doc := setupDocument(ctx, t, pool, agent, "Returns")
	foreign := setupDocument(ctx, t, pool, other, "Foreign")

	exact := newSegment(doc, domain.SegmentKindChunk, 0, "Refunds within 5 days", axisVector(map[int]float32{0: 1}))
	nearby := newSegment(doc, domain.SegmentKindBlock, 0, "Returns accepted", axisVector(map[int]float32{0: 0.8, 1: 0.6}))
	far := newSegment(doc, domain.SegmentKindChunk, 1, "Office address", axisVector(map[int]float32{2: 1}))
	pending := newSegment(doc, domain.SegmentKindChunk, 2, "Not embedded yet", nil)
	leak := newSegment(foreign, domain.SegmentKindChunk, 0, "Other tenant", axisVector(map[int]float32{0: 1}))
	require.NoError(t, segments.InsertSegments(ctx, []*domain.KnowledgeSegment{exact, nearby, far, pending}))
	require.NoError(t, segments.InsertSegments(ctx, []*domain.KnowledgeSegment{leak}))

	query := axisVector(map[int]float32{0: 1})

	t.Run("orders by similarity above threshold", func(t *testing.T) {
		results, err := search.SearchByEmbedding(ctx, service.SimilarityQuery{AgentID: agent.ID, Embedding: query, Threshold: 0.3, Limit: 10})
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, exact.ID, results[0].SegmentID)
		assert.InDelta(t, 1.0, results[0].Similarity, 1e-6)
		assert.Equal(t, nearby.ID, results[1].SegmentID)
		assert.InDelta(t, 0.8, results[1].Similarity, 1e-6)
		assert.Equal(t, "Returns", results[1].DocumentTitle)
	})

	t.Run("kind filter", func(t *testing.T) {
		results, err := search.SearchByEmbedding(ctx, service.SimilarityQuery{AgentID: agent.ID, Embedding: query, Threshold: 0.3, Kind: domain.SegmentKindBlock, Limit: 10})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, nearby.ID, results[0].SegmentID)
	})

	t.Run("disabled documents are included", func(t *testing.T) {
		doc.Enabled = false
		require.NoError(t, docs.Update(ctx, doc))

		results, err := search.SearchByEmbedding(ctx, service.SimilarityQuery{AgentID: agent.ID, Embedding: query, Threshold: 0.9, Limit: 10})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.False(t, results[0].DocumentEnabled)
	})

	t.Run("unknown agent returns empty slice", func(t *testing.T) {
		results, err := search.SearchByEmbedding(ctx, service.SimilarityQuery{AgentID: uuid.NewString(), Embedding: query, Threshold: 0.3})
		require.NoError(t, err)
		assert.NotNil(t, results)
		assert.Empty(t, results)
	})
}

func TestSearchRepository_SearchByEmbedding_SharedIndex(t *testing.T) {
	ctx := context.Background()
	pool := setupPool(ctx, t)

	// Force the HNSW index scan the planner picks on large tables.
	cfg := pool.Config()
	cfg.ConnConfig.RuntimeParams["enable_seqscan"] = "off"
	indexed, err := pgxpool.NewWithConfig(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(indexed.Close)

	segments := NewSegmentRepository(pool)
	agent := setupAgent(ctx, t, pool)
	busy := setupAgent(ctx, t, pool)
	doc := setupDocument(ctx, t, pool, agent, "Returns")
	crowded := setupDocument(ctx, t, pool, busy, "Catalog")

	closer := make([]*domain.KnowledgeSegment, 0, 120)
	for i := range 120 {
		vec := axisVector(map[int]float32{0: 1, 3 + i: 0.01})
		closer = append(closer, newSegment(crowded, domain.SegmentKindChunk, i, fmt.Sprintf("Item %d", i), vec))
	}
	require.NoError(t, segments.InsertSegments(ctx, closer))

	match := newSegment(doc, domain.SegmentKindChunk, 0, "Refunds within 5 days", axisVector(map[int]float32{0: 0.9, 1: 0.43589}))
	weak := newSegment(doc, domain.SegmentKindChunk, 1, "Store hours", axisVector(map[int]float32{0: 0.5, 2: 0.86603}))
	require.NoError(t, segments.InsertSegments(ctx, []*domain.KnowledgeSegment{match, weak}))

	search := NewSearchRepository(indexed)
	query := axisVector(map[int]float32{0: 1})

	t.Run("agent matches survive closer rows of another agent", func(t *testing.T) {
		results, err := search.SearchByEmbedding(ctx, service.SimilarityQuery{AgentID: agent.ID, Embedding: query, Threshold: 0.3, Limit: 10})
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, match.ID, results[0].SegmentID)
		assert.InDelta(t, 0.9, results[0].Similarity, 1e-3)
		assert.Equal(t, weak.ID, results[1].SegmentID)
	})

	t.Run("zero threshold returns up to the limit", func(t *testing.T) {
		results, err := search.SearchByEmbedding(ctx, service.SimilarityQuery{AgentID: busy.ID, Embedding: query, Threshold: 0, Limit: 100})
		require.NoError(t, err)
		assert.Len(t, results, 100)
		for i := 1; i < len(results); i++ {
			assert.GreaterOrEqual(t, results[i-1].Similarity, results[i].Similarity)
		}
	})
}
