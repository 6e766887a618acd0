package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cloo-solutions/agentkb/internal/domain"
	"github.com/cloo-solutions/agentkb/internal/logger"
	"github.com/cloo-solutions/agentkb/internal/metrics"
	"github.com/cloo-solutions/agentkb/internal/telemetry"
)

// SimilarityQuery is the store-level nearest-neighbour query.
type SimilarityQuery struct {
	AgentID   string
	Embedding []float32
	Threshold float64
	Kind      domain.SegmentKind
	Limit     int
}

// SearchResult represents one matching segment with its document context
type SearchResult struct {
	SegmentID           string             `json:"segment_id"`
	DocumentID          string             `json:"document_id"`
	Kind                domain.SegmentKind `json:"kind"`
	Index               int                `json:"index"`
	Title               string             `json:"title,omitempty"`
	TitlePath           string             `json:"title_path,omitempty"`
	Content             string             `json:"content"`
	TokenCount          int                `json:"token_count"`
	Similarity          float64            `json:"similarity"`
	DocumentTitle       string             `json:"document_title"`
	DocumentDescription string             `json:"document_description,omitempty"`
	DocumentEnabled     bool               `json:"document_enabled"`
}

// SimilaritySearcher runs cosine similarity queries against stored
// embeddings. Results are ordered by ascending distance.
type SimilaritySearcher interface {
	SearchByEmbedding(ctx context.Context, q SimilarityQuery) ([]*SearchResult, error)
}

// EmbeddingCache stores query embeddings keyed by model and text.
type EmbeddingCache interface {
	Get(ctx context.Context, model, text string) ([]float32, bool, error)
	Set(ctx context.Context, model, text string, vector []float32) error
}

// SearchConfig controls search defaults.
type SearchConfig struct {
	DefaultThreshold float64
	MaxResults       int
	EmbeddingModel   string
}

// DefaultSearchConfig returns the default search configuration.
func DefaultSearchConfig() SearchConfig {
	return SearchConfig{
		DefaultThreshold: 0.3,
		MaxResults:       100,
		EmbeddingModel:   "text-embedding-3-small",
	}
}

// SearchInput represents input for a similarity search
type SearchInput struct {
	Caller              Caller
	AgentID             string
	Query               string
	SimilarityThreshold *float64
	Kind                domain.SegmentKind
	Limit               int
}

// SearchOutput represents output from a similarity search
type SearchOutput struct {
	Results   []*SearchResult `json:"results"`
	Threshold float64         `json:"threshold"`
	Count     int             `json:"count"`
}

// SearchService answers similarity queries over an agent's segments.
type SearchService struct {
	scope     scopeResolver
	providers ProviderFactory
	searcher  SimilaritySearcher
	cache     EmbeddingCache
	logs      SearchLogRepository
	cfg       SearchConfig
}

// NewSearchService creates a new SearchService instance. cache and logs may
// be nil.
func NewSearchService(
	agents AgentReader,
	providers ProviderFactory,
	searcher SimilaritySearcher,
	cache EmbeddingCache,
	logs SearchLogRepository,
	cfg SearchConfig,
) *SearchService {
	defaults := DefaultSearchConfig()
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = defaults.MaxResults
	}
	if cfg.DefaultThreshold < 0 || cfg.DefaultThreshold > 1 {
		cfg.DefaultThreshold = defaults.DefaultThreshold
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = defaults.EmbeddingModel
	}
	return &SearchService{
		scope:     scopeResolver{agents: agents},
		providers: providers,
		searcher:  searcher,
		cache:     cache,
		logs:      logs,
		cfg:       cfg,
	}
}

// SearchKnowledgeByEmbedding embeds the query and returns the agent's
// segments whose cosine similarity is at least the threshold, most similar
// first. No match is an empty result, not an error.
func (s *SearchService) SearchKnowledgeByEmbedding(ctx context.Context, input SearchInput) (*SearchOutput, error) {
	ctx, span := telemetry.StartSpan(ctx, "SearchService.SearchKnowledgeByEmbedding", telemetry.SpanAttributes{
		OrgID:     input.Caller.OrgID,
		AgentID:   input.AgentID,
		Operation: "search",
	})
	defer span.End()

	started := time.Now()

	query := strings.TrimSpace(input.Query)
	if query == "" {
		return nil, domain.ErrEmptyQuery
	}

	threshold := s.cfg.DefaultThreshold
	if input.SimilarityThreshold != nil {
		threshold = *input.SimilarityThreshold
	}
	if threshold < 0 || threshold > 1 {
		return nil, domain.ErrInvalidThreshold
	}
	if input.Kind != "" && !domain.IsValidSegmentKind(input.Kind) {
		return nil, domain.ErrInvalidSegmentKind
	}

	limit := input.Limit
	if limit <= 0 || limit > s.cfg.MaxResults {
		limit = s.cfg.MaxResults
	}

	agent, err := s.scope.agent(ctx, input.Caller, input.AgentID)
	if err != nil {
		return nil, err
	}
	if err := requireEmbeddingCredential(agent); err != nil {
		return nil, err
	}

	vector, err := s.queryEmbedding(ctx, agent, query)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	results, err := s.searcher.SearchByEmbedding(ctx, SimilarityQuery{
		AgentID:   agent.ID,
		Embedding: vector,
		Threshold: threshold,
		Kind:      input.Kind,
		Limit:     limit,
	})
	if err != nil {
		span.SetError(err)
		return nil, storeError(err)
	}
	if results == nil {
		results = []*SearchResult{}
	}

	elapsed := time.Since(started)
	metrics.SearchDuration.Observe(elapsed.Seconds())
	metrics.SearchResults.Observe(float64(len(results)))

	s.recordSearch(ctx, input, agent, threshold, limit, elapsed, results)

	return &SearchOutput{
		Results:   results,
		Threshold: threshold,
		Count:     len(results),
	}, nil
}

func (s *SearchService) queryEmbedding(ctx context.Context, agent *domain.Agent, query string) ([]float32, error) {
	if s.cache != nil {
		vector, ok, err := s.cache.Get(ctx, s.cfg.EmbeddingModel, query)
		if err != nil {
			logger.Warn("embedding cache read failed", zap.Error(err))
		} else if ok {
			metrics.CacheHits.WithLabelValues("query_embedding").Inc()
			return vector, nil
		}
		metrics.CacheMisses.WithLabelValues("query_embedding").Inc()
	}

	emb, err := s.providers.Embedder(agent.EmbeddingAPIKey).Embed(ctx, query)
	if err != nil {
		metrics.EmbeddingRequests.WithLabelValues("query", "error").Inc()
		return nil, providerError(err)
	}
	metrics.EmbeddingRequests.WithLabelValues("query", "ok").Inc()

	if s.cache != nil {
		if err := s.cache.Set(ctx, s.cfg.EmbeddingModel, query, emb.Vector); err != nil {
			logger.Warn("embedding cache write failed", zap.Error(err))
		}
	}
	return emb.Vector, nil
}

func (s *SearchService) recordSearch(
	ctx context.Context,
	input SearchInput,
	agent *domain.Agent,
	threshold float64,
	limit int,
	elapsed time.Duration,
	results []*SearchResult,
) {
	if s.logs == nil {
		return
	}

	entry := SearchLogEntry{
		OrgID:      agent.OrgID,
		AgentID:    agent.ID,
		Query:      input.Query,
		Threshold:  threshold,
		Kind:       input.Kind,
		Limit:      limit,
		DurationMs: int(elapsed.Milliseconds()),
		Results:    make([]SearchLogResult, len(results)),
	}
	for i, r := range results {
		entry.Results[i] = SearchLogResult{SegmentID: r.SegmentID, Kind: r.Kind, Similarity: r.Similarity}
	}

	if _, err := s.logs.CreateSearchLog(ctx, entry); err != nil {
		logger.Warn("search log write failed", zap.String("agent_id", agent.ID), zap.Error(err))
	}
}
