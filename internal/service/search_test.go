package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/agentkb/internal/domain"
)

func floatPtr(v float64) *float64 { return &v }

func seedSearchFixture(f *testFixture) {
	f.providers.embedder.vectors["refund policy"] = []float32{1, 0, 0}
	f.store.addSegment(&domain.KnowledgeSegment{ID: "exact", DocumentID: f.document.ID, Kind: domain.SegmentKindChunk, Index: 0, Content: "Refunds within 5 days", Embedding: []float32{1, 0, 0}})
	f.store.addSegment(&domain.KnowledgeSegment{ID: "close", DocumentID: f.document.ID, Kind: domain.SegmentKindBlock, Index: 0, Title: "Returns", Content: "Returns accepted", Embedding: []float32{0.8, 0.6, 0}})
	f.store.addSegment(&domain.KnowledgeSegment{ID: "far", DocumentID: f.document.ID, Kind: domain.SegmentKindChunk, Index: 1, Content: "Office address", Embedding: []float32{0, 0, 1}})
}

func TestSearchService_SearchKnowledgeByEmbedding(t *testing.T) {
	ctx := context.Background()

	t.Run("returns matches above threshold most similar first", func(t *testing.T) {
		f := newTestFixture()
		seedSearchFixture(f)

		svc := NewSearchService(f.agents, f.providers, f.store, nil, nil, DefaultSearchConfig())
		out, err := svc.SearchKnowledgeByEmbedding(ctx, SearchInput{Caller: f.caller, AgentID: f.agent.ID, Query: "refund policy"})
		require.NoError(t, err)

		require.Len(t, out.Results, 2)
		assert.Equal(t, 0.3, out.Threshold)
		assert.Equal(t, "exact", out.Results[0].SegmentID)
		assert.InDelta(t, 1.0, out.Results[0].Similarity, 1e-9)
		assert.Equal(t, "close", out.Results[1].SegmentID)
		assert.InDelta(t, 0.8, out.Results[1].Similarity, 1e-6)
		assert.Equal(t, "Pricing", out.Results[1].DocumentTitle)
		assert.True(t, out.Results[1].DocumentEnabled)
		for _, r := range out.Results {
			assert.GreaterOrEqual(t, r.Similarity, out.Threshold)
		}
	})

	t.Run("threshold and kind narrow results", func(t *testing.T) {
		f := newTestFixture()
		seedSearchFixture(f)

		svc := NewSearchService(f.agents, f.providers, f.store, nil, nil, DefaultSearchConfig())
		out, err := svc.SearchKnowledgeByEmbedding(ctx, SearchInput{
			Caller:              f.caller,
			AgentID:             f.agent.ID,
			Query:               "refund policy",
			SimilarityThreshold: floatPtr(0.9),
		})
		require.NoError(t, err)
		require.Len(t, out.Results, 1)
		assert.Equal(t, "exact", out.Results[0].SegmentID)

		out, err = svc.SearchKnowledgeByEmbedding(ctx, SearchInput{
			Caller:  f.caller,
			AgentID: f.agent.ID,
			Query:   "refund policy",
			Kind:    domain.SegmentKindBlock,
		})
		require.NoError(t, err)
		require.Len(t, out.Results, 1)
		assert.Equal(t, "close", out.Results[0].SegmentID)
	})

	t.Run("disabled documents are still searched", func(t *testing.T) {
		f := newTestFixture()
		f.document.Enabled = false
		seedSearchFixture(f)

		svc := NewSearchService(f.agents, f.providers, f.store, nil, nil, DefaultSearchConfig())
		out, err := svc.SearchKnowledgeByEmbedding(ctx, SearchInput{Caller: f.caller, AgentID: f.agent.ID, Query: "refund policy"})
		require.NoError(t, err)
		require.NotEmpty(t, out.Results)
		assert.False(t, out.Results[0].DocumentEnabled)
	})

	t.Run("no segments is an empty result", func(t *testing.T) {
		f := newTestFixture()

		svc := NewSearchService(f.agents, f.providers, f.store, nil, nil, DefaultSearchConfig())
		out, err := svc.SearchKnowledgeByEmbedding(ctx, SearchInput{Caller: f.caller, AgentID: f.agent.ID, Query: "anything"})
		require.NoError(t, err)
		assert.NotNil(t, out.Results)
		assert.Empty(t, out.Results)
		assert.Equal(t, 0, out.Count)
	})

	t.Run("limit is capped", func(t *testing.T) {
		f := newTestFixture()
		seedSearchFixture(f)

		cfg := DefaultSearchConfig()
		cfg.MaxResults = 1
		svc := NewSearchService(f.agents, f.providers, f.store, nil, nil, cfg)
		out, err := svc.SearchKnowledgeByEmbedding(ctx, SearchInput{Caller: f.caller, AgentID: f.agent.ID, Query: "refund policy", Limit: 50})
		require.NoError(t, err)
		assert.Len(t, out.Results, 1)
	})

	t.Run("empty query is invalid input", func(t *testing.T) {
		f := newTestFixture()

		svc := NewSearchService(f.agents, f.providers, f.store, nil, nil, DefaultSearchConfig())
		_, err := svc.SearchKnowledgeByEmbedding(ctx, SearchInput{Caller: f.caller, AgentID: f.agent.ID, Query: "   "})
		assert.ErrorIs(t, err, domain.ErrEmptyQuery)
		assert.Empty(t, f.providers.keys)
	})

	t.Run("threshold out of range is invalid input", func(t *testing.T) {
		f := newTestFixture()

		svc := NewSearchService(f.agents, f.providers, f.store, nil, nil, DefaultSearchConfig())
		_, err := svc.SearchKnowledgeByEmbedding(ctx, SearchInput{Caller: f.caller, AgentID: f.agent.ID, Query: "q", SimilarityThreshold: floatPtr(1.5)})
		assert.ErrorIs(t, err, domain.ErrInvalidThreshold)
	})

	t.Run("missing credential and foreign org", func(t *testing.T) {
		f := newTestFixture()
		svc := NewSearchService(f.agents, f.providers, f.store, nil, nil, DefaultSearchConfig())

		_, err := svc.SearchKnowledgeByEmbedding(ctx, SearchInput{Caller: OrgCaller("org-2"), AgentID: f.agent.ID, Query: "q"})
		assert.ErrorIs(t, err, domain.ErrAgentAccessDenied)

		_, err = svc.SearchKnowledgeByEmbedding(ctx, SearchInput{Caller: f.caller, AgentID: "missing", Query: "q"})
		assert.ErrorIs(t, err, domain.ErrAgentNotFound)

		f.agent.EmbeddingAPIKey = ""
		_, err = svc.SearchKnowledgeByEmbedding(ctx, SearchInput{Caller: f.caller, AgentID: f.agent.ID, Query: "q"})
		assert.ErrorIs(t, err, domain.ErrMissingEmbeddingKey)
		assert.Empty(t, f.providers.keys)
	})

	t.Run("query embedding failure is a provider failure", func(t *testing.T) {
		f := newTestFixture()
		f.providers.embedder.failOn["q"] = errors.New("boom")

		svc := NewSearchService(f.agents, f.providers, f.store, nil, nil, DefaultSearchConfig())
		_, err := svc.SearchKnowledgeByEmbedding(ctx, SearchInput{Caller: f.caller, AgentID: f.agent.ID, Query: "q"})
		assert.ErrorIs(t, err, domain.ErrProviderFailure)
	})
}

func TestSearchService_EmbeddingCache(t *testing.T) {
	ctx := context.Background()

	t.Run("cache hit skips the provider", func(t *testing.T) {
		f := newTestFixture()
		seedSearchFixture(f)

		cache := new(MockEmbeddingCache)
		cache.On("Get", mock.Anything, "text-embedding-3-small", "refund policy").Return([]float32{1, 0, 0}, true, nil)

		svc := NewSearchService(f.agents, f.providers, f.store, cache, nil, DefaultSearchConfig())
		out, err := svc.SearchKnowledgeByEmbedding(ctx, SearchInput{Caller: f.caller, AgentID: f.agent.ID, Query: "refund policy"})
		require.NoError(t, err)
		assert.Len(t, out.Results, 2)
		assert.Empty(t, f.providers.embedder.calls())
		cache.AssertExpectations(t)
	})

	t.Run("cache miss embeds and stores", func(t *testing.T) {
		f := newTestFixture()
		seedSearchFixture(f)

		cache := new(MockEmbeddingCache)
		cache.On("Get", mock.Anything, "text-embedding-3-small", "refund policy").Return(nil, false, nil)
		cache.On("Set", mock.Anything, "text-embedding-3-small", "refund policy", []float32{1, 0, 0}).Return(nil)

		svc := NewSearchService(f.agents, f.providers, f.store, cache, nil, DefaultSearchConfig())
		_, err := svc.SearchKnowledgeByEmbedding(ctx, SearchInput{Caller: f.caller, AgentID: f.agent.ID, Query: "refund policy"})
		require.NoError(t, err)
		assert.Equal(t, []string{"refund policy"}, f.providers.embedder.calls())
		cache.AssertExpectations(t)
	})

	t.Run("cache errors fall through to the provider", func(t *testing.T) {
		f := newTestFixture()

		cache := new(MockEmbeddingCache)
		cache.On("Get", mock.Anything, mock.Anything, mock.Anything).Return(nil, false, errors.New("redis down"))
		cache.On("Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("redis down"))

		svc := NewSearchService(f.agents, f.providers, f.store, cache, nil, DefaultSearchConfig())
		_, err := svc.SearchKnowledgeByEmbedding(ctx, SearchInput{Caller: f.caller, AgentID: f.agent.ID, Query: "anything"})
		require.NoError(t, err)
	})
}

func TestSearchService_SearchLog(t *testing.T) {
	ctx := context.Background()
	f := newTestFixture()
	seedSearchFixture(f)

	logs := new(MockSearchLogRepository)
	logs.On("CreateSearchLog", mock.Anything, mock.MatchedBy(func(e SearchLogEntry) bool {
		return e.OrgID == "org-1" && e.AgentID == "agent-1" && e.Query == "refund policy" &&
			len(e.Results) == 2 && e.Results[0].SegmentID == "exact" && e.Limit == 100
	})).Return("log-1", nil)

	svc := NewSearchService(f.agents, f.providers, f.store, nil, logs, DefaultSearchConfig())
	_, err := svc.SearchKnowledgeByEmbedding(ctx, SearchInput{Caller: f.caller, AgentID: f.agent.ID, Query: "refund policy"})
	require.NoError(t, err)
	logs.AssertExpectations(t)
}
