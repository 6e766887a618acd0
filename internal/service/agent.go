package service

import (
	"context"
	"strings"
	"time"

	"github.com/cloo-solutions/agentkb/internal/domain"
	"github.com/cloo-solutions/agentkb/internal/telemetry"
)

// AgentRepository defines the repository interface for agent persistence
type AgentRepository interface {
	AgentReader
	Create(ctx context.Context, agent *domain.Agent) error
	ListByOrg(ctx context.Context, orgID string) ([]*domain.Agent, error)
	Update(ctx context.Context, agent *domain.Agent) error
	Delete(ctx context.Context, id string) error
}

// AgentService manages agents and their provider credentials.
type AgentService struct {
	agents  AgentRepository
	scope   scopeResolver
	uuidGen UUIDGenerator
}

// NewAgentService creates a new AgentService instance
func NewAgentService(agents AgentRepository) *AgentService {
	return NewAgentServiceWithUUIDGen(agents, &DefaultUUIDGenerator{})
}

// NewAgentServiceWithUUIDGen creates a new AgentService with custom UUID generator (for testing)
func NewAgentServiceWithUUIDGen(agents AgentRepository, uuidGen UUIDGenerator) *AgentService {
	return &AgentService{
		agents:  agents,
		scope:   scopeResolver{agents: agents},
		uuidGen: uuidGen,
	}
}

// CreateAgentInput represents the input for creating an agent. OrgID is
// taken from the caller unless the caller is the system.
type CreateAgentInput struct {
	Caller          Caller
	OrgID           string
	Name            string
	Model           string
	EmbeddingAPIKey string
}

// UpdateAgentInput represents the input for updating an agent. Nil fields
// are left unchanged; an empty EmbeddingAPIKey clears the credential.
type UpdateAgentInput struct {
	Caller          Caller
	AgentID         string
	Name            *string
	Model           *string
	EmbeddingAPIKey *string
}

// CreateAgent creates an agent in the caller's organization.
func (s *AgentService) CreateAgent(ctx context.Context, input CreateAgentInput) (*domain.Agent, error) {
	orgID := input.Caller.OrgID
	if input.Caller.System {
		orgID = input.OrgID
	}

	ctx, span := telemetry.StartSpan(ctx, "AgentService.CreateAgent", telemetry.SpanAttributes{
		OrgID:     orgID,
		Operation: "create",
	})
	defer span.End()

	agent := domain.NewAgent(
		s.uuidGen.NewString(),
		orgID,
		strings.TrimSpace(input.Name),
		strings.TrimSpace(input.Model),
		strings.TrimSpace(input.EmbeddingAPIKey),
		time.Now().UTC(),
	)
	if err := domain.ValidateAgent(agent); err != nil {
		return nil, validationError(err)
	}

	if err := s.agents.Create(ctx, agent); err != nil {
		return nil, storeError(err)
	}
	return agent, nil
}

// GetAgent returns one agent the caller may access.
func (s *AgentService) GetAgent(ctx context.Context, caller Caller, agentID string) (*domain.Agent, error) {
	ctx, span := telemetry.StartSpan(ctx, "AgentService.GetAgent", telemetry.SpanAttributes{
		OrgID:     caller.OrgID,
		AgentID:   agentID,
		Operation: "get",
	})
	defer span.End()

	return s.scope.agent(ctx, caller, agentID)
}

// ListAgents returns the agents of an organization. Non-system callers
// always list their own organization.
func (s *AgentService) ListAgents(ctx context.Context, caller Caller, orgID string) ([]*domain.Agent, error) {
	if !caller.System || orgID == "" {
		orgID = caller.OrgID
	}
	if orgID == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "organization ID is required")
	}

	ctx, span := telemetry.StartSpan(ctx, "AgentService.ListAgents", telemetry.SpanAttributes{
		OrgID:     orgID,
		Operation: "list",
	})
	defer span.End()

	agents, err := s.agents.ListByOrg(ctx, orgID)
	if err != nil {
		return nil, storeError(err)
	}
	return agents, nil
}

// UpdateAgent renames an agent or changes its model or credential.
func (s *AgentService) UpdateAgent(ctx context.Context, input UpdateAgentInput) (*domain.Agent, error) {
	ctx, span := telemetry.StartSpan(ctx, "AgentService.UpdateAgent", telemetry.SpanAttributes{
		OrgID:     input.Caller.OrgID,
		AgentID:   input.AgentID,
		Operation: "update",
	})
	defer span.End()

	agent, err := s.scope.agent(ctx, input.Caller, input.AgentID)
	if err != nil {
		return nil, err
	}

	updated := *agent
	if input.Name != nil {
		updated.Name = strings.TrimSpace(*input.Name)
	}
	if input.Model != nil {
		updated.Model = strings.TrimSpace(*input.Model)
	}
	if input.EmbeddingAPIKey != nil {
		updated.EmbeddingAPIKey = strings.TrimSpace(*input.EmbeddingAPIKey)
	}
	updated.UpdatedAt = time.Now().UTC()

	if err := domain.ValidateAgent(&updated); err != nil {
		return nil, validationError(err)
	}

	if err := s.agents.Update(ctx, &updated); err != nil {
		return nil, storeError(err)
	}
	return &updated, nil
}

// DeleteAgent removes an agent together with its documents and segments.
func (s *AgentService) DeleteAgent(ctx context.Context, caller Caller, agentID string) error {
	ctx, span := telemetry.StartSpan(ctx, "AgentService.DeleteAgent", telemetry.SpanAttributes{
		OrgID:     caller.OrgID,
		AgentID:   agentID,
		Operation: "delete",
	})
	defer span.End()

	if _, err := s.scope.agent(ctx, caller, agentID); err != nil {
		return err
	}
	return storeError(s.agents.Delete(ctx, agentID))
}
