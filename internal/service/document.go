package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cloo-solutions/agentkb/internal/domain"
	"github.com/cloo-solutions/agentkb/internal/logger"
	"github.com/cloo-solutions/agentkb/internal/pagination"
	"github.com/cloo-solutions/agentkb/internal/telemetry"
)

// DocumentRepository defines the repository interface for document persistence
type DocumentRepository interface {
	DocumentReader
	Create(ctx context.Context, doc *domain.KnowledgeDocument) error
	ListByAgentWithCursor(ctx context.Context, agentID string, cursor *pagination.Cursor, limit int) (*DocumentPageResult, error)
	Delete(ctx context.Context, id string) error
}

type DocumentPageResult = pagination.Page[*domain.KnowledgeDocument]

// DocumentService manages an agent's knowledge documents.
type DocumentService struct {
	scope     scopeResolver
	documents DocumentRepository
	txRunner  TxRunner
	uuidGen   UUIDGenerator
}

// NewDocumentService creates a new DocumentService instance
func NewDocumentService(agents AgentReader, documents DocumentRepository, txRunner TxRunner) *DocumentService {
	return NewDocumentServiceWithUUIDGen(agents, documents, txRunner, &DefaultUUIDGenerator{})
}

// NewDocumentServiceWithUUIDGen creates a new DocumentService with custom UUID generator (for testing)
func NewDocumentServiceWithUUIDGen(agents AgentReader, documents DocumentRepository, txRunner TxRunner, uuidGen UUIDGenerator) *DocumentService {
	return &DocumentService{
		scope:     scopeResolver{agents: agents, documents: documents},
		documents: documents,
		txRunner:  txRunner,
		uuidGen:   uuidGen,
	}
}

// CreateDocumentInput represents the input for creating a document
type CreateDocumentInput struct {
	Caller      Caller
	AgentID     string
	Title       string
	Description string
	SourceType  domain.SourceType
	SourceURL   string
}

// UpdateDocumentInput represents the input for updating a document. Nil
// fields are left unchanged.
type UpdateDocumentInput struct {
	Caller      Caller
	DocumentID  string
	Title       *string
	Description *string
	SourceType  *domain.SourceType
	SourceURL   *string
	Enabled     *bool
}

type ListDocumentsInput struct {
	Caller  Caller
	AgentID string
	Cursor  string
	Limit   int
}

type ListDocumentsOutput struct {
	Items   []*domain.KnowledgeDocument
	Cursor  string
	HasMore bool
}

// UpdateDocumentResult reports the updated document and whether a
// regeneration job was queued.
type UpdateDocumentResult struct {
	Document           *domain.KnowledgeDocument
	RegenerationJobID  string
	RegenerationQueued bool
}

// CreateDocument creates an empty document owned by the agent.
func (s *DocumentService) CreateDocument(ctx context.Context, input CreateDocumentInput) (*domain.KnowledgeDocument, error) {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.CreateDocument", telemetry.SpanAttributes{
		OrgID:     input.Caller.OrgID,
		AgentID:   input.AgentID,
		Operation: "create",
	})
	defer span.End()

	agent, err := s.scope.agent(ctx, input.Caller, input.AgentID)
	if err != nil {
		return nil, err
	}

	doc := domain.NewKnowledgeDocument(
		s.uuidGen.NewString(),
		agent.ID,
		strings.TrimSpace(input.Title),
		input.Description,
		time.Now().UTC(),
	)
	if input.SourceType != "" {
		doc.SourceType = input.SourceType
	}
	doc.SourceURL = strings.TrimSpace(input.SourceURL)

	if err := domain.ValidateKnowledgeDocument(doc); err != nil {
		return nil, validationError(err)
	}
	if err := checkObjectOwnership(agent, doc); err != nil {
		return nil, err
	}

	if err := s.documents.Create(ctx, doc); err != nil {
		return nil, storeError(err)
	}
	return doc, nil
}

// GetDocument returns one document.
func (s *DocumentService) GetDocument(ctx context.Context, caller Caller, documentID string) (*domain.KnowledgeDocument, error) {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.GetDocument", telemetry.SpanAttributes{
		OrgID:      caller.OrgID,
		DocumentID: documentID,
		Operation:  "get",
	})
	defer span.End()

	doc, _, err := s.scope.document(ctx, caller, documentID)
	return doc, err
}

// ListDocuments pages through an agent's documents, newest first.
func (s *DocumentService) ListDocuments(ctx context.Context, input ListDocumentsInput) (*ListDocumentsOutput, error) {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.ListDocuments", telemetry.SpanAttributes{
		OrgID:     input.Caller.OrgID,
		AgentID:   input.AgentID,
		Operation: "list",
	})
	defer span.End()

	if _, err := s.scope.agent(ctx, input.Caller, input.AgentID); err != nil {
		return nil, err
	}

	cursor, err := pagination.DecodeCursor(input.Cursor)
	if err != nil {
		return nil, domain.ErrInvalidCursor
	}

	result, err := s.documents.ListByAgentWithCursor(ctx, input.AgentID, cursor, pagination.NormalizeLimit(input.Limit))
	if err != nil {
		return nil, storeError(err)
	}

	return &ListDocumentsOutput{
		Items:   result.Items,
		Cursor:  result.NextCursor,
		HasMore: result.HasMore,
	}, nil
}

// UpdateDocument applies the edit. A title change queues a regeneration job
// in the same transaction, since every segment embedding includes it.
func (s *DocumentService) UpdateDocument(ctx context.Context, input UpdateDocumentInput) (*UpdateDocumentResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.UpdateDocument", telemetry.SpanAttributes{
		OrgID:      input.Caller.OrgID,
		DocumentID: input.DocumentID,
		Operation:  "update",
	})
	defer span.End()

	doc, agent, err := s.scope.document(ctx, input.Caller, input.DocumentID)
	if err != nil {
		return nil, err
	}

	updated := *doc
	if input.Title != nil {
		updated.Title = strings.TrimSpace(*input.Title)
	}
	if input.Description != nil {
		updated.Description = *input.Description
	}
	if input.SourceType != nil {
		updated.SourceType = *input.SourceType
	}
	if input.SourceURL != nil {
		updated.SourceURL = strings.TrimSpace(*input.SourceURL)
	}
	if input.Enabled != nil {
		updated.Enabled = *input.Enabled
	}
	updated.UpdatedAt = time.Now().UTC()

	if err := domain.ValidateKnowledgeDocument(&updated); err != nil {
		return nil, validationError(err)
	}
	if err := checkObjectOwnership(agent, &updated); err != nil {
		return nil, err
	}

	result := &UpdateDocumentResult{Document: &updated}
	titleChanged := updated.Title != doc.Title

	err = s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		if err := repos.Documents().Update(ctx, &updated); err != nil {
			return err
		}
		if !titleChanged {
			return nil
		}
		job := domain.NewRegenerationJob(s.uuidGen.NewString(), updated.ID, "", updated.UpdatedAt)
		if err := repos.RegenerationJobs().Create(ctx, job); err != nil {
			return err
		}
		result.RegenerationJobID = job.ID
		result.RegenerationQueued = true
		return nil
	})
	if err != nil {
		span.SetError(err)
		return nil, storeError(err)
	}

	if result.RegenerationQueued {
		logger.Info("document title changed, regeneration queued",
			zap.String("document_id", updated.ID),
			zap.String("job_id", result.RegenerationJobID),
		)
	}
	return result, nil
}

// DeleteDocument removes a document and every segment it owns.
func (s *DocumentService) DeleteDocument(ctx context.Context, caller Caller, documentID string) error {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.DeleteDocument", telemetry.SpanAttributes{
		OrgID:      caller.OrgID,
		DocumentID: documentID,
		Operation:  "delete",
	})
	defer span.End()

	if _, _, err := s.scope.document(ctx, caller, documentID); err != nil {
		return err
	}
	return storeError(s.documents.Delete(ctx, documentID))
}

// checkObjectOwnership keeps object sources inside the agent's
// organization namespace.
func checkObjectOwnership(agent *domain.Agent, doc *domain.KnowledgeDocument) error {
	if doc.SourceType != domain.SourceTypeObject || domain.ObjectKeyOwnedBy(doc.SourceURL, agent.OrgID) {
		return nil
	}
	return domain.ErrObjectAccessDenied.WithCause(
		fmt.Errorf("object keys must start with %q", domain.ObjectKeyPrefix(agent.OrgID)))
}

// validationError surfaces a validator message as an InvalidInput error.
func validationError(err error) error {
	if err == nil {
		return nil
	}
	return domain.NewDomainError(domain.ErrCodeValidation, err.Error())
}
