package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/agentkb/internal/api/middleware"
	"github.com/cloo-solutions/agentkb/internal/domain"
	"github.com/cloo-solutions/agentkb/internal/service"
)

const testOrgID = "org-456"

func requestWithOrgID(method, url string, body []byte) *http.Request {
	req := httptest.NewRequest(method, url, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	ctx := middleware.WithOrgID(req.Context(), testOrgID)
	return req.WithContext(ctx)
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder, data any) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	if data != nil && env.Success {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env
}

func isOrgCaller(c service.Caller) bool {
	return c.OrgID == testOrgID && !c.System
}

type MockAgentService struct {
	mock.Mock
}

func (m *MockAgentService) CreateAgent(ctx context.Context, input service.CreateAgentInput) (*domain.Agent, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Agent), args.Error(1)
}

func (m *MockAgentService) GetAgent(ctx context.Context, caller service.Caller, agentID string) (*domain.Agent, error) {
	args := m.Called(ctx, caller, agentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Agent), args.Error(1)
}

func (m *MockAgentService) ListAgents(ctx context.Context, caller service.Caller, orgID string) ([]*domain.Agent, error) {
	args := m.Called(ctx, caller, orgID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Agent), args.Error(1)
}

func (m *MockAgentService) UpdateAgent(ctx context.Context, input service.UpdateAgentInput) (*domain.Agent, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Agent), args.Error(1)
}

type MockDocumentService struct {
	mock.Mock
}

func (m *MockDocumentService) CreateDocument(ctx context.Context, input service.CreateDocumentInput) (*domain.KnowledgeDocument, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.KnowledgeDocument), args.Error(1)
}

func (m *MockDocumentService) GetDocument(ctx context.Context, caller service.Caller, documentID string) (*domain.KnowledgeDocument, error) {
	args := m.Called(ctx, caller, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.KnowledgeDocument), args.Error(1)
}

func (m *MockDocumentService) ListDocuments(ctx context.Context, input service.ListDocumentsInput) (*service.ListDocumentsOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ListDocumentsOutput), args.Error(1)
}

func (m *MockDocumentService) UpdateDocument(ctx context.Context, input service.UpdateDocumentInput) (*service.UpdateDocumentResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.UpdateDocumentResult), args.Error(1)
}

func (m *MockDocumentService) DeleteDocument(ctx context.Context, caller service.Caller, documentID string) error {
	args := m.Called(ctx, caller, documentID)
	return args.Error(0)
}

type MockSegmentService struct {
	mock.Mock
}

func (m *MockSegmentService) ListSegments(ctx context.Context, caller service.Caller, documentID string, kind domain.SegmentKind) ([]*domain.KnowledgeSegment, error) {
	args := m.Called(ctx, caller, documentID, kind)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.KnowledgeSegment), args.Error(1)
}

func (m *MockSegmentService) UpdateSegment(ctx context.Context, input service.UpdateSegmentInput) (*domain.KnowledgeSegment, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.KnowledgeSegment), args.Error(1)
}

func (m *MockSegmentService) DeleteSegment(ctx context.Context, caller service.Caller, segmentID string) error {
	args := m.Called(ctx, caller, segmentID)
	return args.Error(0)
}

type MockChunkingService struct {
	mock.Mock
}

func (m *MockChunkingService) CreateChunk(ctx context.Context, input service.CreateChunkInput) (*service.AppendResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.AppendResult), args.Error(1)
}

func (m *MockChunkingService) BulkCreateChunks(ctx context.Context, input service.BulkCreateChunksInput) (*service.AppendResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.AppendResult), args.Error(1)
}

func (m *MockChunkingService) SmartChunkDocument(ctx context.Context, input service.SmartSplitInput) (*service.AppendResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.AppendResult), args.Error(1)
}

func (m *MockChunkingService) SmartImportKnowledgeBlocks(ctx context.Context, input service.SmartSplitInput) (*service.AppendResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.AppendResult), args.Error(1)
}

type MockSearchService struct {
	mock.Mock
}

func (m *MockSearchService) SearchKnowledgeByEmbedding(ctx context.Context, input service.SearchInput) (*service.SearchOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.SearchOutput), args.Error(1)
}

type MockRegenerationService struct {
	mock.Mock
}

func (m *MockRegenerationService) RegenerateDocumentEmbeddings(ctx context.Context, input service.RegenerateInput) (*service.RegenerationResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.RegenerationResult), args.Error(1)
}
