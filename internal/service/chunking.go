package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cloo-solutions/agentkb/internal/domain"
	"github.com/cloo-solutions/agentkb/internal/logger"
	"github.com/cloo-solutions/agentkb/internal/metrics"
	"github.com/cloo-solutions/agentkb/internal/telemetry"
)

// DefaultGenerationModel is used for semantic splitting when the agent has
// no model configured.
const DefaultGenerationModel = "gpt-4o-mini"

// Split policies reported in metrics and results.
const (
	PolicySingle   = "single"
	PolicyRule     = "rule"
	PolicySemantic = "semantic"
)

// SourceLoader resolves the raw text of a document from its source on
// behalf of the organization that owns it.
type SourceLoader interface {
	LoadText(ctx context.Context, orgID string, doc *domain.KnowledgeDocument) (string, error)
}

// ChunkingConfig tunes the chunking pipeline.
type ChunkingConfig struct {
	DefaultGenerationModel string
	EmbedBatchSize         int
}

// DefaultChunkingConfig provides sane defaults for chunking.
func DefaultChunkingConfig() ChunkingConfig {
	return ChunkingConfig{
		DefaultGenerationModel: DefaultGenerationModel,
		EmbedBatchSize:         100,
	}
}

// ChunkingService turns document text into embedded segments.
type ChunkingService struct {
	scope     scopeResolver
	providers ProviderFactory
	txRunner  TxRunner
	loader    SourceLoader
	uuidGen   UUIDGenerator
	cfg       ChunkingConfig
}

// NewChunkingService creates a new ChunkingService instance. loader may be
// nil, in which case smart import requires inline text.
func NewChunkingService(
	agents AgentReader,
	documents DocumentReader,
	providers ProviderFactory,
	txRunner TxRunner,
	loader SourceLoader,
	cfg ChunkingConfig,
) *ChunkingService {
	return NewChunkingServiceWithUUIDGen(agents, documents, providers, txRunner, loader, cfg, &DefaultUUIDGenerator{})
}

func NewChunkingServiceWithUUIDGen(
	agents AgentReader,
	documents DocumentReader,
	providers ProviderFactory,
	txRunner TxRunner,
	loader SourceLoader,
	cfg ChunkingConfig,
	uuidGen UUIDGenerator,
) *ChunkingService {
	defaults := DefaultChunkingConfig()
	if cfg.DefaultGenerationModel == "" {
		cfg.DefaultGenerationModel = defaults.DefaultGenerationModel
	}
	if cfg.EmbedBatchSize <= 0 {
		cfg.EmbedBatchSize = defaults.EmbedBatchSize
	}
	return &ChunkingService{
		scope:     scopeResolver{agents: agents, documents: documents},
		providers: providers,
		txRunner:  txRunner,
		loader:    loader,
		uuidGen:   uuidGen,
		cfg:       cfg,
	}
}

// CreateChunkInput represents the input for appending one caller-written chunk
type CreateChunkInput struct {
	Caller     Caller
	DocumentID string
	Title      string
	TitlePath  string
	Content    string
}

// BulkCreateChunksInput represents the input for a rule-based split
type BulkCreateChunksInput struct {
	Caller     Caller
	DocumentID string
	Text       string
	Split      SplitConfig
}

// SmartSplitInput represents the input for an LLM-driven split. When Text is
// empty the document's source is loaded instead.
type SmartSplitInput struct {
	Caller     Caller
	DocumentID string
	Text       string
}

// CreatedSegment identifies one written segment.
type CreatedSegment struct {
	ID    string `json:"id"`
	Index int    `json:"index"`
}

// AppendResult summarizes an append operation.
type AppendResult struct {
	DocumentID string             `json:"document_id"`
	Kind       domain.SegmentKind `json:"kind"`
	Policy     string             `json:"policy"`
	Created    int                `json:"created"`
	Segments   []CreatedSegment   `json:"segments"`
}

// CreateChunk embeds one caller-supplied chunk and appends it.
func (s *ChunkingService) CreateChunk(ctx context.Context, input CreateChunkInput) (*AppendResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "ChunkingService.CreateChunk", telemetry.SpanAttributes{
		OrgID:      input.Caller.OrgID,
		DocumentID: input.DocumentID,
		Operation:  "create_chunk",
	})
	defer span.End()

	if strings.TrimSpace(input.Content) == "" {
		return nil, domain.ErrEmptyContent
	}

	doc, agent, err := s.scope.document(ctx, input.Caller, input.DocumentID)
	if err != nil {
		return nil, err
	}
	if err := requireEmbeddingCredential(agent); err != nil {
		return nil, err
	}

	drafts := []domain.SegmentDraft{{
		Title:     strings.TrimSpace(input.Title),
		TitlePath: input.TitlePath,
		Content:   input.Content,
	}}

	result, err := s.appendSegments(ctx, doc, agent, domain.SegmentKindChunk, PolicySingle, drafts)
	if err != nil {
		span.SetError(err)
	}
	return result, err
}

// BulkCreateChunks splits text by rule and appends every chunk atomically.
func (s *ChunkingService) BulkCreateChunks(ctx context.Context, input BulkCreateChunksInput) (*AppendResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "ChunkingService.BulkCreateChunks", telemetry.SpanAttributes{
		OrgID:      input.Caller.OrgID,
		DocumentID: input.DocumentID,
		Operation:  "bulk_create_chunks",
	})
	defer span.End()

	doc, agent, err := s.scope.document(ctx, input.Caller, input.DocumentID)
	if err != nil {
		return nil, err
	}
	if err := requireEmbeddingCredential(agent); err != nil {
		return nil, err
	}

	chunks, err := SplitText(input.Text, input.Split)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, domain.ErrNoChunksProduced
	}

	drafts := make([]domain.SegmentDraft, len(chunks))
	for i, c := range chunks {
		drafts[i] = domain.SegmentDraft{Content: c}
	}

	result, err := s.appendSegments(ctx, doc, agent, domain.SegmentKindChunk, PolicyRule, drafts)
	if err != nil {
		span.SetError(err)
	}
	return result, err
}

// SmartChunkDocument asks the agent's model to split text into titled
// chunks and appends them.
func (s *ChunkingService) SmartChunkDocument(ctx context.Context, input SmartSplitInput) (*AppendResult, error) {
	return s.smartSplit(ctx, input, domain.SegmentKindChunk, "ChunkingService.SmartChunkDocument")
}

// SmartImportKnowledgeBlocks asks the agent's model to split text into
// titled knowledge blocks and appends them.
func (s *ChunkingService) SmartImportKnowledgeBlocks(ctx context.Context, input SmartSplitInput) (*AppendResult, error) {
	return s.smartSplit(ctx, input, domain.SegmentKindBlock, "ChunkingService.SmartImportKnowledgeBlocks")
}

func (s *ChunkingService) smartSplit(ctx context.Context, input SmartSplitInput, kind domain.SegmentKind, spanName string) (*AppendResult, error) {
	ctx, span := telemetry.StartSpan(ctx, spanName, telemetry.SpanAttributes{
		OrgID:      input.Caller.OrgID,
		DocumentID: input.DocumentID,
		Operation:  "smart_split",
	})
	defer span.End()

	doc, agent, err := s.scope.document(ctx, input.Caller, input.DocumentID)
	if err != nil {
		return nil, err
	}
	if err := requireEmbeddingCredential(agent); err != nil {
		return nil, err
	}

	text, err := s.sourceText(ctx, agent.OrgID, doc, input.Text)
	if err != nil {
		return nil, err
	}

	model := agent.GenerationModel(s.cfg.DefaultGenerationModel)
	generated, err := s.providers.Generator(agent.EmbeddingAPIKey).GenerateSegments(ctx, model, text)
	if err != nil {
		span.SetError(err)
		return nil, generationError(err)
	}

	drafts := make([]domain.SegmentDraft, 0, len(generated))
	for _, d := range generated {
		if strings.TrimSpace(d.Content) == "" {
			continue
		}
		d.Title = strings.TrimSpace(d.Title)
		drafts = append(drafts, d)
	}
	if len(drafts) == 0 {
		return nil, domain.ErrGenerationFailure.WithCause(fmt.Errorf("model %s returned no segments", model))
	}

	result, err := s.appendSegments(ctx, doc, agent, kind, PolicySemantic, drafts)
	if err != nil {
		span.SetError(err)
	}
	return result, err
}

func (s *ChunkingService) sourceText(ctx context.Context, orgID string, doc *domain.KnowledgeDocument, inline string) (string, error) {
	if strings.TrimSpace(inline) != "" {
		return inline, nil
	}
	if s.loader == nil || doc.SourceType == domain.SourceTypeText {
		return "", domain.ErrNoSourceText
	}

	text, err := s.loader.LoadText(ctx, orgID, doc)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", domain.ErrNoSourceText
	}
	return text, nil
}

// appendSegments embeds every draft and only then writes them in one
// transaction, allocating indices inside it. Nothing is written if any
// embedding fails.
func (s *ChunkingService) appendSegments(
	ctx context.Context,
	doc *domain.KnowledgeDocument,
	agent *domain.Agent,
	kind domain.SegmentKind,
	policy string,
	drafts []domain.SegmentDraft,
) (*AppendResult, error) {
	texts := make([]string, len(drafts))
	for i, d := range drafts {
		texts[i] = d.EmbeddingText()
	}

	embeddings, err := embedAll(ctx, s.providers.Embedder(agent.EmbeddingAPIKey), texts, s.cfg.EmbedBatchSize)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	segments := make([]*domain.KnowledgeSegment, len(drafts))
	for i, d := range drafts {
		segments[i] = &domain.KnowledgeSegment{
			ID:         s.uuidGen.NewString(),
			DocumentID: doc.ID,
			Kind:       kind,
			Title:      d.Title,
			TitlePath:  d.TitlePath,
			Content:    d.Content,
			TokenCount: embeddings[i].TokenCount(texts[i]),
			Embedding:  embeddings[i].Vector,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
	}

	err = s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		start, err := repos.Segments().AllocateIndices(ctx, doc.ID, kind, len(segments))
		if err != nil {
			return err
		}
		for i, seg := range segments {
			seg.Index = start + i
		}
		return repos.Segments().InsertSegments(ctx, segments)
	})
	if err != nil {
		return nil, storeError(err)
	}

	metrics.SegmentsCreated.WithLabelValues(string(kind), policy).Add(float64(len(segments)))
	logger.Info("segments appended",
		zap.String("agent_id", agent.ID),
		zap.String("document_id", doc.ID),
		zap.String("kind", string(kind)),
		zap.String("policy", policy),
		zap.Int("count", len(segments)),
		zap.Int("start_index", segments[0].Index),
	)

	result := &AppendResult{
		DocumentID: doc.ID,
		Kind:       kind,
		Policy:     policy,
		Created:    len(segments),
		Segments:   make([]CreatedSegment, len(segments)),
	}
	for i, seg := range segments {
		result.Segments[i] = CreatedSegment{ID: seg.ID, Index: seg.Index}
	}
	return result, nil
}

// embedAll embeds texts in batches, preserving order.
func embedAll(ctx context.Context, embedder EmbeddingProvider, texts []string, batchSize int) ([]domain.Embedding, error) {
	out := make([]domain.Embedding, 0, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}

		batch, err := embedder.EmbedMany(ctx, texts[start:end])
		if err != nil {
			metrics.EmbeddingRequests.WithLabelValues("embed_many", "error").Inc()
			return nil, providerError(err)
		}
		if len(batch) != end-start {
			metrics.EmbeddingRequests.WithLabelValues("embed_many", "error").Inc()
			return nil, domain.ErrProviderFailure.WithCause(
				fmt.Errorf("provider returned %d embeddings for %d texts", len(batch), end-start))
		}
		metrics.EmbeddingRequests.WithLabelValues("embed_many", "ok").Inc()

		for i, e := range batch {
			metrics.EmbeddingTokens.Add(float64(e.TokenCount(texts[start+i])))
		}
		out = append(out, batch...)
	}
	return out, nil
}
