package service

import (
	"context"
	"strings"
	"time"

	"github.com/cloo-solutions/agentkb/internal/domain"
	"github.com/cloo-solutions/agentkb/internal/metrics"
	"github.com/cloo-solutions/agentkb/internal/telemetry"
)

// SegmentService reads, edits and deletes individual segments. Edits always
// re-embed before anything is written.
type SegmentService struct {
	scope     scopeResolver
	providers ProviderFactory
	segments  SegmentStore
}

// NewSegmentService creates a new SegmentService instance
func NewSegmentService(agents AgentReader, documents DocumentReader, providers ProviderFactory, segments SegmentStore) *SegmentService {
	return &SegmentService{
		scope:     scopeResolver{agents: agents, documents: documents},
		providers: providers,
		segments:  segments,
	}
}

// UpdateSegmentInput represents the input for editing a segment. Nil fields
// are left unchanged.
type UpdateSegmentInput struct {
	Caller    Caller
	SegmentID string
	Title     *string
	TitlePath *string
	Content   *string
}

// ListSegments returns a document's segments ordered by kind then index.
func (s *SegmentService) ListSegments(ctx context.Context, caller Caller, documentID string, kind domain.SegmentKind) ([]*domain.KnowledgeSegment, error) {
	ctx, span := telemetry.StartSpan(ctx, "SegmentService.ListSegments", telemetry.SpanAttributes{
		OrgID:      caller.OrgID,
		DocumentID: documentID,
		Operation:  "list",
	})
	defer span.End()

	if kind != "" && !domain.IsValidSegmentKind(kind) {
		return nil, domain.ErrInvalidSegmentKind
	}
	if _, _, err := s.scope.document(ctx, caller, documentID); err != nil {
		return nil, err
	}

	segments, err := s.segments.ListByDocument(ctx, documentID, kind)
	if err != nil {
		return nil, storeError(err)
	}
	return segments, nil
}

// GetSegment returns one segment.
func (s *SegmentService) GetSegment(ctx context.Context, caller Caller, segmentID string) (*domain.KnowledgeSegment, error) {
	seg, _, _, err := s.load(ctx, caller, segmentID)
	return seg, err
}

// UpdateSegment applies the edit, re-embeds with the new title and content,
// and writes both in a single update. A failed embedding leaves the stored
// segment untouched.
func (s *SegmentService) UpdateSegment(ctx context.Context, input UpdateSegmentInput) (*domain.KnowledgeSegment, error) {
	ctx, span := telemetry.StartSpan(ctx, "SegmentService.UpdateSegment", telemetry.SpanAttributes{
		OrgID:     input.Caller.OrgID,
		SegmentID: input.SegmentID,
		Operation: "update",
	})
	defer span.End()

	seg, _, agent, err := s.load(ctx, input.Caller, input.SegmentID)
	if err != nil {
		return nil, err
	}

	if input.Title == nil && input.TitlePath == nil && input.Content == nil {
		return seg, nil
	}

	updated := *seg
	if input.Title != nil {
		updated.Title = strings.TrimSpace(*input.Title)
	}
	if input.TitlePath != nil {
		updated.TitlePath = *input.TitlePath
	}
	if input.Content != nil {
		if strings.TrimSpace(*input.Content) == "" {
			return nil, domain.ErrEmptyContent
		}
		updated.Content = *input.Content
	}

	if updated.Title == seg.Title && updated.Content == seg.Content {
		if updated.TitlePath == seg.TitlePath {
			return seg, nil
		}
	}

	if err := requireEmbeddingCredential(agent); err != nil {
		return nil, err
	}

	text := updated.EmbeddingText()
	emb, err := s.providers.Embedder(agent.EmbeddingAPIKey).Embed(ctx, text)
	if err != nil {
		metrics.EmbeddingRequests.WithLabelValues("embed", "error").Inc()
		span.SetError(err)
		return nil, providerError(err)
	}
	metrics.EmbeddingRequests.WithLabelValues("embed", "ok").Inc()

	updated.Embedding = emb.Vector
	updated.TokenCount = emb.TokenCount(text)
	updated.UpdatedAt = time.Now().UTC()

	if err := s.segments.Update(ctx, &updated); err != nil {
		return nil, storeError(err)
	}
	return &updated, nil
}

// DeleteSegment removes a segment. Remaining indices are left as they are.
func (s *SegmentService) DeleteSegment(ctx context.Context, caller Caller, segmentID string) error {
	ctx, span := telemetry.StartSpan(ctx, "SegmentService.DeleteSegment", telemetry.SpanAttributes{
		OrgID:     caller.OrgID,
		SegmentID: segmentID,
		Operation: "delete",
	})
	defer span.End()

	if _, _, _, err := s.load(ctx, caller, segmentID); err != nil {
		return err
	}
	return storeError(s.segments.Delete(ctx, segmentID))
}

func (s *SegmentService) load(ctx context.Context, caller Caller, segmentID string) (*domain.KnowledgeSegment, *domain.KnowledgeDocument, *domain.Agent, error) {
	if segmentID == "" {
		return nil, nil, nil, domain.NewDomainError(domain.ErrCodeValidation, "segment ID is required")
	}

	seg, err := s.segments.GetByID(ctx, segmentID)
	if err != nil {
		return nil, nil, nil, storeError(err)
	}

	doc, agent, err := s.scope.document(ctx, caller, seg.DocumentID)
	if err != nil {
		return nil, nil, nil, err
	}
	return seg, doc, agent, nil
}
