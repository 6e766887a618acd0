package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/cloo-solutions/agentkb/internal/domain"
	"github.com/cloo-solutions/agentkb/internal/logger"
	"github.com/cloo-solutions/agentkb/internal/metrics"
	"github.com/cloo-solutions/agentkb/internal/telemetry"
)

// SegmentStore reads and maintains persisted segments.
type SegmentStore interface {
	GetByID(ctx context.Context, id string) (*domain.KnowledgeSegment, error)
	// ListByDocument returns segments ordered by kind then index. An empty
	// kind lists every kind. Embeddings are not loaded.
	ListByDocument(ctx context.Context, documentID string, kind domain.SegmentKind) ([]*domain.KnowledgeSegment, error)
	// Update rewrites title, title path, content, token count and embedding.
	Update(ctx context.Context, segment *domain.KnowledgeSegment) error
	// UpdateEmbedding rewrites only the token count and embedding.
	UpdateEmbedding(ctx context.Context, id string, tokenCount int, embedding []float32) error
	Delete(ctx context.Context, id string) error
}

// RegenerateInput represents the input for regenerating a document's embeddings
type RegenerateInput struct {
	Caller     Caller
	DocumentID string
	Kind       domain.SegmentKind // empty regenerates every kind
}

// SegmentFailure records one segment whose embedding could not be refreshed.
type SegmentFailure struct {
	SegmentID string             `json:"segment_id"`
	Kind      domain.SegmentKind `json:"kind"`
	Index     int                `json:"index"`
	Error     string             `json:"error"`
}

// RegenerationResult summarizes a regeneration run.
type RegenerationResult struct {
	DocumentID    string           `json:"document_id"`
	TotalSegments int              `json:"total_segments"`
	SuccessCount  int              `json:"success_count"`
	ErrorCount    int              `json:"error_count"`
	Failures      []SegmentFailure `json:"failures,omitempty"`
}

// Partial reports whether some but not all segments failed.
func (r *RegenerationResult) Partial() bool {
	return r.ErrorCount > 0 && r.SuccessCount > 0
}

// RegenerationService re-embeds existing segments after the embedding text
// convention changes.
type RegenerationService struct {
	scope     scopeResolver
	providers ProviderFactory
	segments  SegmentStore
}

// NewRegenerationService creates a new RegenerationService instance
func NewRegenerationService(agents AgentReader, documents DocumentReader, providers ProviderFactory, segments SegmentStore) *RegenerationService {
	return &RegenerationService{
		scope:     scopeResolver{agents: agents, documents: documents},
		providers: providers,
		segments:  segments,
	}
}

// RegenerateDocumentEmbeddings re-embeds every segment of a document in
// index order. A failing segment is recorded and skipped; the call fails
// only when every segment failed.
func (s *RegenerationService) RegenerateDocumentEmbeddings(ctx context.Context, input RegenerateInput) (*RegenerationResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "RegenerationService.RegenerateDocumentEmbeddings", telemetry.SpanAttributes{
		OrgID:      input.Caller.OrgID,
		DocumentID: input.DocumentID,
		Operation:  "regenerate",
	})
	defer span.End()

	if input.Kind != "" && !domain.IsValidSegmentKind(input.Kind) {
		return nil, domain.ErrInvalidSegmentKind
	}

	doc, agent, err := s.scope.document(ctx, input.Caller, input.DocumentID)
	if err != nil {
		return nil, err
	}
	if err := requireEmbeddingCredential(agent); err != nil {
		return nil, err
	}

	segments, err := s.segments.ListByDocument(ctx, doc.ID, input.Kind)
	if err != nil {
		return nil, storeError(err)
	}

	result := &RegenerationResult{
		DocumentID:    doc.ID,
		TotalSegments: len(segments),
	}
	if len(segments) == 0 {
		return result, nil
	}

	embedder := s.providers.Embedder(agent.EmbeddingAPIKey)
	for _, seg := range segments {
		if err := s.regenerateSegment(ctx, embedder, doc, seg); err != nil {
			result.ErrorCount++
			result.Failures = append(result.Failures, SegmentFailure{
				SegmentID: seg.ID,
				Kind:      seg.Kind,
				Index:     seg.Index,
				Error:     err.Error(),
			})
			metrics.RegenerationSegments.WithLabelValues("error").Inc()
			logger.Warn("segment embedding regeneration failed",
				zap.String("document_id", doc.ID),
				zap.String("segment_id", seg.ID),
				zap.Error(err),
			)
			continue
		}
		result.SuccessCount++
		metrics.RegenerationSegments.WithLabelValues("ok").Inc()
	}

	logger.Info("document embeddings regenerated",
		zap.String("document_id", doc.ID),
		zap.Int("total", result.TotalSegments),
		zap.Int("succeeded", result.SuccessCount),
		zap.Int("failed", result.ErrorCount),
	)

	if result.SuccessCount == 0 {
		err := domain.ErrAllSegmentsFailed
		span.SetError(err)
		return result, err
	}
	return result, nil
}

func (s *RegenerationService) regenerateSegment(ctx context.Context, embedder EmbeddingProvider, doc *domain.KnowledgeDocument, seg *domain.KnowledgeSegment) error {
	text := seg.RegenerationText(doc.Title)

	emb, err := embedder.Embed(ctx, text)
	if err != nil {
		metrics.EmbeddingRequests.WithLabelValues("embed", "error").Inc()
		return providerError(err)
	}
	metrics.EmbeddingRequests.WithLabelValues("embed", "ok").Inc()

	if err := s.segments.UpdateEmbedding(ctx, seg.ID, emb.TokenCount(text), emb.Vector); err != nil {
		return storeError(err)
	}
	return nil
}
