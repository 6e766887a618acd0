package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cloo-solutions/agentkb/internal/api"
	"github.com/cloo-solutions/agentkb/internal/domain"
	"github.com/cloo-solutions/agentkb/internal/service"
)

type AgentService interface {
	CreateAgent(ctx context.Context, input service.CreateAgentInput) (*domain.Agent, error)
	GetAgent(ctx context.Context, caller service.Caller, agentID string) (*domain.Agent, error)
	ListAgents(ctx context.Context, caller service.Caller, orgID string) ([]*domain.Agent, error)
	UpdateAgent(ctx context.Context, input service.UpdateAgentInput) (*domain.Agent, error)
}

type AgentHandler struct {
	svc AgentService
}

func NewAgentHandler(svc AgentService) *AgentHandler {
	return &AgentHandler{svc: svc}
}

type CreateAgentRequest struct {
	Name            string `json:"name"`
	Model           string `json:"model"`
	EmbeddingAPIKey string `json:"embedding_api_key"`
}

type UpdateAgentRequest struct {
	Name            *string `json:"name"`
	Model           *string `json:"model"`
	EmbeddingAPIKey *string `json:"embedding_api_key"`
}

// AgentResponse never carries the embedding credential itself.
type AgentResponse struct {
	ID                 string `json:"id"`
	OrgID              string `json:"org_id"`
	Name               string `json:"name"`
	Model              string `json:"model"`
	HasEmbeddingAPIKey bool   `json:"has_embedding_api_key"`
	CreatedAt          string `json:"created_at"`
	UpdatedAt          string `json:"updated_at"`
}

func agentToResponse(a *domain.Agent) *AgentResponse {
	return &AgentResponse{
		ID:                 a.ID,
		OrgID:              a.OrgID,
		Name:               a.Name,
		Model:              a.Model,
		HasEmbeddingAPIKey: a.HasEmbeddingCredential(),
		CreatedAt:          a.CreatedAt.Format(timeFormat),
		UpdatedAt:          a.UpdatedAt.Format(timeFormat),
	}
}

func (h *AgentHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}

	var req CreateAgentRequest
	if !decodeBody(w, r, &req, false) {
		return
	}
	if req.Name == "" {
		api.Error(w, http.StatusBadRequest, "name is required")
		return
	}

	agent, err := h.svc.CreateAgent(r.Context(), service.CreateAgentInput{
		Caller:          caller,
		OrgID:           caller.OrgID,
		Name:            req.Name,
		Model:           req.Model,
		EmbeddingAPIKey: req.EmbeddingAPIKey,
	})
	if err != nil {
		api.HandleError(w, r, err)
		return
	}

	api.Success(w, http.StatusCreated, agentToResponse(agent))
}

func (h *AgentHandler) List(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}

	agents, err := h.svc.ListAgents(r.Context(), caller, caller.OrgID)
	if err != nil {
		api.HandleError(w, r, err)
		return
	}

	items := make([]*AgentResponse, len(agents))
	for i, a := range agents {
		items[i] = agentToResponse(a)
	}
	api.Success(w, http.StatusOK, items)
}

func (h *AgentHandler) Get(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}

	agent, err := h.svc.GetAgent(r.Context(), caller, chi.URLParam(r, "id"))
	if err != nil {
		api.HandleError(w, r, err)
		return
	}

	api.Success(w, http.StatusOK, agentToResponse(agent))
}

func (h *AgentHandler) Update(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}

	var req UpdateAgentRequest
	if !decodeBody(w, r, &req, false) {
		return
	}

	agent, err := h.svc.UpdateAgent(r.Context(), service.UpdateAgentInput{
		Caller:          caller,
		AgentID:         chi.URLParam(r, "id"),
		Name:            req.Name,
		Model:           req.Model,
		EmbeddingAPIKey: req.EmbeddingAPIKey,
	})
	if err != nil {
		api.HandleError(w, r, err)
		return
	}

	api.Success(w, http.StatusOK, agentToResponse(agent))
}
