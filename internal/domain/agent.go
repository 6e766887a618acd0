package domain

import (
	"fmt"
	"strings"
	"time"
)

// Agent is a configured chatbot persona owned by an organization. Its
// knowledge documents feed retrieval-augmented answers.
type Agent struct {
	ID              string
	OrgID           string
	Name            string
	Model           string // generative model used for semantic splitting
	EmbeddingAPIKey string // embedding provider credential, never echoed back
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewAgent creates a new Agent instance
func NewAgent(id, orgID, name, model, embeddingAPIKey string, createdAt time.Time) *Agent {
	return &Agent{
		ID:              id,
		OrgID:           orgID,
		Name:            name,
		Model:           model,
		EmbeddingAPIKey: embeddingAPIKey,
		CreatedAt:       createdAt,
		UpdatedAt:       createdAt,
	}
}

// HasEmbeddingCredential reports whether the agent can request embeddings.
func (a *Agent) HasEmbeddingCredential() bool {
	return strings.TrimSpace(a.EmbeddingAPIKey) != ""
}

// GenerationModel returns the agent's model or fallback when unset.
func (a *Agent) GenerationModel(fallback string) string {
	if strings.TrimSpace(a.Model) != "" {
		return a.Model
	}
	return fallback
}

// ValidateAgent validates an Agent instance
func ValidateAgent(a *Agent) error {
	if a == nil {
		return fmt.Errorf("agent cannot be nil")
	}

	if a.ID == "" {
		return fmt.Errorf("agent ID is required")
	}

	if a.OrgID == "" {
		return fmt.Errorf("agent OrgID is required")
	}

	if strings.TrimSpace(a.Name) == "" {
		return fmt.Errorf("agent Name is required")
	}

	return nil
}
