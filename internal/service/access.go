package service

import (
	"context"
	"errors"

	"github.com/cloo-solutions/agentkb/internal/domain"
)

// Caller is the trust context of an operation. HTTP callers act for the
// organization their API key belongs to; System is reserved for the admin
// CLI and background workers.
type Caller struct {
	OrgID  string
	System bool
}

// OrgCaller returns a caller scoped to one organization.
func OrgCaller(orgID string) Caller {
	return Caller{OrgID: orgID}
}

// SystemCaller returns an unrestricted caller.
func SystemCaller() Caller {
	return Caller{System: true}
}

// CanAccess reports whether the caller may act on the agent's knowledge.
func (c Caller) CanAccess(agent *domain.Agent) bool {
	if c.System {
		return true
	}
	return c.OrgID != "" && agent != nil && c.OrgID == agent.OrgID
}

// AgentReader loads agents.
type AgentReader interface {
	GetByID(ctx context.Context, id string) (*domain.Agent, error)
}

// DocumentReader loads documents.
type DocumentReader interface {
	GetByID(ctx context.Context, id string) (*domain.KnowledgeDocument, error)
}

// scopeResolver loads the agent behind a request and checks the caller
// against it.
type scopeResolver struct {
	agents    AgentReader
	documents DocumentReader
}

func (r scopeResolver) agent(ctx context.Context, caller Caller, agentID string) (*domain.Agent, error) {
	if agentID == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "agent ID is required")
	}

	agent, err := r.agents.GetByID(ctx, agentID)
	if err != nil {
		return nil, storeError(err)
	}

	if !caller.CanAccess(agent) {
		return nil, domain.ErrAgentAccessDenied
	}

	return agent, nil
}

func (r scopeResolver) document(ctx context.Context, caller Caller, documentID string) (*domain.KnowledgeDocument, *domain.Agent, error) {
	if documentID == "" {
		return nil, nil, domain.NewDomainError(domain.ErrCodeValidation, "document ID is required")
	}

	doc, err := r.documents.GetByID(ctx, documentID)
	if err != nil {
		return nil, nil, storeError(err)
	}

	agent, err := r.agent(ctx, caller, doc.AgentID)
	if err != nil {
		return nil, nil, err
	}

	return doc, agent, nil
}

// requireEmbeddingCredential fails before any provider call is attempted.
func requireEmbeddingCredential(agent *domain.Agent) error {
	if !agent.HasEmbeddingCredential() {
		return domain.ErrMissingEmbeddingKey
	}
	return nil
}

// storeError keeps domain errors from the store and wraps anything else
// as a store failure.
func storeError(err error) error {
	if err == nil {
		return nil
	}
	var de *domain.DomainError
	if errors.As(err, &de) {
		return err
	}
	return domain.ErrStoreFailure.WithCause(err)
}
