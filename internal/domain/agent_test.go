package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAgent(t *testing.T) {
	now := time.Now()
	agent := NewAgent("agent1", "org1", "Support Bot", "gpt-4o", "sk-test", now)

	assert.Equal(t, "agent1", agent.ID)
	assert.Equal(t, "org1", agent.OrgID)
	assert.Equal(t, "Support Bot", agent.Name)
	assert.Equal(t, "gpt-4o", agent.Model)
	assert.Equal(t, now, agent.CreatedAt)
	assert.Equal(t, now, agent.UpdatedAt)
	assert.True(t, agent.HasEmbeddingCredential())
}

func TestAgent_HasEmbeddingCredential(t *testing.T) {
	assert.False(t, (&Agent{}).HasEmbeddingCredential())
	assert.False(t, (&Agent{EmbeddingAPIKey: "   "}).HasEmbeddingCredential())
	assert.True(t, (&Agent{EmbeddingAPIKey: "sk-1"}).HasEmbeddingCredential())
}

func TestAgent_GenerationModel(t *testing.T) {
	assert.Equal(t, "gpt-4o-mini", (&Agent{}).GenerationModel("gpt-4o-mini"))
	assert.Equal(t, "gpt-4o", (&Agent{Model: "gpt-4o"}).GenerationModel("gpt-4o-mini"))
}

func TestValidateAgent(t *testing.T) {
	tests := []struct {
		name    string
		agent   *Agent
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid agent",
			agent:   &Agent{ID: "a1", OrgID: "org1", Name: "Bot"},
			wantErr: false,
		},
		{
			name:    "nil agent",
			agent:   nil,
			wantErr: true,
			errMsg:  "nil",
		},
		{
			name:    "missing ID",
			agent:   &Agent{OrgID: "org1", Name: "Bot"},
			wantErr: true,
			errMsg:  "ID",
		},
		{
			name:    "missing OrgID",
			agent:   &Agent{ID: "a1", Name: "Bot"},
			wantErr: true,
			errMsg:  "OrgID",
		},
		{
			name:    "blank Name",
			agent:   &Agent{ID: "a1", OrgID: "org1", Name: "  "},
			wantErr: true,
			errMsg:  "Name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAgent(tt.agent)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				require.NoError(t, err)
			}
		})
	}
}
