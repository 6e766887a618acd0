package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/agentkb/internal/domain"
	"github.com/cloo-solutions/agentkb/internal/service"
)

func newTestAgent() *domain.Agent {
	now := time.Now().UTC()
	return &domain.Agent{
		ID:              "agent-1",
		OrgID:           testOrgID,
		Name:            "Support bot",
		Model:           "gpt-4o-mini",
		EmbeddingAPIKey: "sk-secret",
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func TestAgentHandler_Create(t *testing.T) {
	t.Run("creates in the caller's org", func(t *testing.T) {
		mockSvc := new(MockAgentService)
		handler := NewAgentHandler(mockSvc)

		mockSvc.On("CreateAgent", mock.Anything, mock.MatchedBy(func(in service.CreateAgentInput) bool {
			return isOrgCaller(in.Caller) && in.OrgID == testOrgID && in.Name == "Support bot" && in.EmbeddingAPIKey == "sk-secret"
		})).Return(newTestAgent(), nil)

		body := `{"name":"Support bot","model":"gpt-4o-mini","embedding_api_key":"sk-secret"}`
		w := httptest.NewRecorder()
		handler.Create(w, requestWithOrgID(http.MethodPost, "/agents", []byte(body)))

		assert.Equal(t, http.StatusCreated, w.Code)
		var resp AgentResponse
		env := decodeEnvelope(t, w, &resp)
		assert.True(t, env.Success)
		assert.Equal(t, "agent-1", resp.ID)
		assert.True(t, resp.HasEmbeddingAPIKey)
		assert.NotContains(t, w.Body.String(), "sk-secret")
		mockSvc.AssertExpectations(t)
	})

	t.Run("missing name", func(t *testing.T) {
		mockSvc := new(MockAgentService)
		handler := NewAgentHandler(mockSvc)

		w := httptest.NewRecorder()
		handler.Create(w, requestWithOrgID(http.MethodPost, "/agents", []byte(`{}`)))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		mockSvc.AssertNotCalled(t, "CreateAgent", mock.Anything, mock.Anything)
	})

	t.Run("invalid body", func(t *testing.T) {
		handler := NewAgentHandler(new(MockAgentService))

		w := httptest.NewRecorder()
		handler.Create(w, requestWithOrgID(http.MethodPost, "/agents", []byte(`{`)))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "invalid request body")
	})

	t.Run("unauthenticated", func(t *testing.T) {
		handler := NewAgentHandler(new(MockAgentService))

		w := httptest.NewRecorder()
		handler.Create(w, httptest.NewRequest(http.MethodPost, "/agents", nil))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestAgentHandler_List(t *testing.T) {
	mockSvc := new(MockAgentService)
	handler := NewAgentHandler(mockSvc)

	mockSvc.On("ListAgents", mock.Anything, service.OrgCaller(testOrgID), testOrgID).Return([]*domain.Agent{newTestAgent()}, nil)

	w := httptest.NewRecorder()
	handler.List(w, requestWithOrgID(http.MethodGet, "/agents", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp []AgentResponse
	decodeEnvelope(t, w, &resp)
	require.Len(t, resp, 1)
	assert.Equal(t, "Support bot", resp[0].Name)
}

func TestAgentHandler_Get(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		mockSvc := new(MockAgentService)
		handler := NewAgentHandler(mockSvc)
		mockSvc.On("GetAgent", mock.Anything, service.OrgCaller(testOrgID), "agent-1").Return(newTestAgent(), nil)

		req := withURLParam(requestWithOrgID(http.MethodGet, "/agents/agent-1", nil), "id", "agent-1")
		w := httptest.NewRecorder()
		handler.Get(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("other org", func(t *testing.T) {
		mockSvc := new(MockAgentService)
		handler := NewAgentHandler(mockSvc)
		mockSvc.On("GetAgent", mock.Anything, mock.Anything, "agent-2").Return(nil, domain.ErrAgentAccessDenied)

		req := withURLParam(requestWithOrgID(http.MethodGet, "/agents/agent-2", nil), "id", "agent-2")
		w := httptest.NewRecorder()
		handler.Get(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		env := decodeEnvelope(t, w, nil)
		assert.False(t, env.Success)
		assert.Equal(t, domain.ErrCodeUnauthorized, env.Code)
	})
}

func TestAgentHandler_Update(t *testing.T) {
	mockSvc := new(MockAgentService)
	handler := NewAgentHandler(mockSvc)

	updated := newTestAgent()
	updated.EmbeddingAPIKey = ""
	mockSvc.On("UpdateAgent", mock.Anything, mock.MatchedBy(func(in service.UpdateAgentInput) bool {
		return in.AgentID == "agent-1" && in.EmbeddingAPIKey != nil && *in.EmbeddingAPIKey == "" && in.Name == nil
	})).Return(updated, nil)

	req := withURLParam(requestWithOrgID(http.MethodPut, "/agents/agent-1", []byte(`{"embedding_api_key":""}`)), "id", "agent-1")
	w := httptest.NewRecorder()
	handler.Update(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp AgentResponse
	decodeEnvelope(t, w, &resp)
	assert.False(t, resp.HasEmbeddingAPIKey)
	mockSvc.AssertExpectations(t)
}
