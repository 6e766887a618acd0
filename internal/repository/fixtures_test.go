//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/agentkb/internal/domain"
	"github.com/cloo-solutions/agentkb/internal/testutil"
)

const testDimensions = 1536

func setupPool(ctx context.Context, t *testing.T) *pgxpool.Pool {
	t.Helper()
	pc := testutil.NewPostgresContainer(ctx, t)
	t.Cleanup(func() { _ = pc.Terminate(ctx) })

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	t.Cleanup(pool.Close)
	return pool
}

func setupAgent(ctx context.Context, t *testing.T, pool *pgxpool.Pool) *domain.Agent {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)

	org := &domain.Organization{ID: uuid.NewString(), Name: "org-" + uuid.NewString()[:8], CreatedAt: now}
	require.NoError(t, NewOrgRepository(pool).Create(ctx, org))

	agent := domain.NewAgent(uuid.NewString(), org.ID, "Support bot", "gpt-4o-mini", "sk-test", now)
	require.NoError(t, NewAgentRepository(pool).Create(ctx, agent))
	return agent
}

func setupDocument(ctx context.Context, t *testing.T, pool *pgxpool.Pool, agent *domain.Agent, title string) *domain.KnowledgeDocument {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)

	doc := domain.NewKnowledgeDocument(uuid.NewString(), agent.ID, title, "", now)
	require.NoError(t, NewDocumentRepository(pool).Create(ctx, doc))
	return doc
}

// axisVector returns a vector with the given component weights.
func axisVector(weights map[int]float32) []float32 {
	v := make([]float32, testDimensions)
	for i, w := range weights {
		v[i] = w
	}
	return v
}

func newSegment(doc *domain.KnowledgeDocument, kind domain.SegmentKind, index int, content string, embedding []float32) *domain.KnowledgeSegment {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.KnowledgeSegment{
		ID:         uuid.NewString(),
		DocumentID: doc.ID,
		Kind:       kind,
		Content:    content,
		Index:      index,
		TokenCount: domain.EstimateTokens(content),
		Embedding:  embedding,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}
