package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/agentkb/internal/domain"
	"github.com/cloo-solutions/agentkb/internal/service"
)

func newTestDocument() *domain.KnowledgeDocument {
	now := time.Now().UTC()
	return &domain.KnowledgeDocument{
		ID:         "doc-1",
		AgentID:    "agent-1",
		Title:      "Pricing",
		SourceType: domain.SourceTypeText,
		Enabled:    true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestDocumentHandler_Create(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		mockSvc := new(MockDocumentService)
		handler := NewDocumentHandler(mockSvc)
		mockSvc.On("CreateDocument", mock.Anything, mock.MatchedBy(func(in service.CreateDocumentInput) bool {
			return isOrgCaller(in.Caller) && in.AgentID == "agent-1" && in.Title == "Pricing" && in.SourceType == domain.SourceTypeURL
		})).Return(newTestDocument(), nil)

		body := `{"title":"Pricing","source_type":"url","source_url":"https://example.com/pricing"}`
		req := withURLParam(requestWithOrgID(http.MethodPost, "/agents/agent-1/documents", []byte(body)), "id", "agent-1")
		w := httptest.NewRecorder()
		handler.Create(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)
		var resp DocumentResponse
		decodeEnvelope(t, w, &resp)
		assert.Equal(t, "doc-1", resp.ID)
		mockSvc.AssertExpectations(t)
	})

	t.Run("missing title", func(t *testing.T) {
		mockSvc := new(MockDocumentService)
		handler := NewDocumentHandler(mockSvc)

		req := withURLParam(requestWithOrgID(http.MethodPost, "/agents/agent-1/documents", []byte(`{"description":"x"}`)), "id", "agent-1")
		w := httptest.NewRecorder()
		handler.Create(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		mockSvc.AssertNotCalled(t, "CreateDocument", mock.Anything, mock.Anything)
	})
}

func TestDocumentHandler_List(t *testing.T) {
	t.Run("passes cursor and limit", func(t *testing.T) {
		mockSvc := new(MockDocumentService)
		handler := NewDocumentHandler(mockSvc)
		mockSvc.On("ListDocuments", mock.Anything, service.ListDocumentsInput{
			Caller:  service.OrgCaller(testOrgID),
			AgentID: "agent-1",
			Cursor:  "abc",
			Limit:   5,
		}).Return(&service.ListDocumentsOutput{Items: []*domain.KnowledgeDocument{newTestDocument()}, Cursor: "def", HasMore: true}, nil)

		req := withURLParam(requestWithOrgID(http.MethodGet, "/agents/agent-1/documents?cursor=abc&limit=5", nil), "id", "agent-1")
		w := httptest.NewRecorder()
		handler.List(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		var resp ListDocumentsResponse
		decodeEnvelope(t, w, &resp)
		require.Len(t, resp.Items, 1)
		assert.Equal(t, "def", resp.Cursor)
		assert.True(t, resp.HasMore)
	})

	t.Run("invalid limit", func(t *testing.T) {
		handler := NewDocumentHandler(new(MockDocumentService))

		req := withURLParam(requestWithOrgID(http.MethodGet, "/agents/agent-1/documents?limit=abc", nil), "id", "agent-1")
		w := httptest.NewRecorder()
		handler.List(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestDocumentHandler_Get(t *testing.T) {
	mockSvc := new(MockDocumentService)
	handler := NewDocumentHandler(mockSvc)
	mockSvc.On("GetDocument", mock.Anything, mock.Anything, "missing").Return(nil, domain.ErrDocumentNotFound)

	req := withURLParam(requestWithOrgID(http.MethodGet, "/documents/missing", nil), "id", "missing")
	w := httptest.NewRecorder()
	handler.Get(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	env := decodeEnvelope(t, w, nil)
	assert.Equal(t, "knowledge document not found", env.Error)
}

func TestDocumentHandler_Update(t *testing.T) {
	mockSvc := new(MockDocumentService)
	handler := NewDocumentHandler(mockSvc)

	doc := newTestDocument()
	doc.Title = "Pricing 2025"
	mockSvc.On("UpdateDocument", mock.Anything, mock.MatchedBy(func(in service.UpdateDocumentInput) bool {
		return in.DocumentID == "doc-1" && in.Title != nil && *in.Title == "Pricing 2025" &&
			in.SourceType != nil && *in.SourceType == domain.SourceTypeText && in.Enabled == nil
	})).Return(&service.UpdateDocumentResult{Document: doc, RegenerationJobID: "job-1", RegenerationQueued: true}, nil)

	body := `{"title":"Pricing 2025","source_type":"text"}`
	req := withURLParam(requestWithOrgID(http.MethodPut, "/documents/doc-1", []byte(body)), "id", "doc-1")
	w := httptest.NewRecorder()
	handler.Update(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp UpdateDocumentResponse
	decodeEnvelope(t, w, &resp)
	assert.True(t, resp.RegenerationQueued)
	assert.Equal(t, "job-1", resp.RegenerationJobID)
	assert.Equal(t, "Pricing 2025", resp.Document.Title)
}

func TestDocumentHandler_Delete(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		mockSvc := new(MockDocumentService)
		handler := NewDocumentHandler(mockSvc)
		mockSvc.On("DeleteDocument", mock.Anything, service.OrgCaller(testOrgID), "doc-1").Return(nil)

		req := withURLParam(requestWithOrgID(http.MethodDelete, "/documents/doc-1", nil), "id", "doc-1")
		w := httptest.NewRecorder()
		handler.Delete(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		mockSvc.AssertExpectations(t)
	})

	t.Run("store failure hides the cause", func(t *testing.T) {
		mockSvc := new(MockDocumentService)
		handler := NewDocumentHandler(mockSvc)
		mockSvc.On("DeleteDocument", mock.Anything, mock.Anything, "doc-1").
			Return(domain.ErrStoreFailure.WithCause(errors.New("pq: deadlock detected")))

		req := withURLParam(requestWithOrgID(http.MethodDelete, "/documents/doc-1", nil), "id", "doc-1")
		w := httptest.NewRecorder()
		handler.Delete(w, req)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.False(t, strings.Contains(w.Body.String(), "deadlock"))
	})
}
