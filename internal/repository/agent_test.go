//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/agentkb/internal/domain"
)

func TestAgentRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	pool := setupPool(ctx, t)

	agent := setupAgent(ctx, t, pool)

	retrieved, err := NewAgentRepository(pool).GetByID(ctx, agent.ID)
	require.NoError(t, err)
	assert.Equal(t, agent.OrgID, retrieved.OrgID)
	assert.Equal(t, "Support bot", retrieved.Name)
	assert.Equal(t, "gpt-4o-mini", retrieved.Model)
	assert.Equal(t, "sk-test", retrieved.EmbeddingAPIKey)
}

func TestAgentRepository_GetByID_NotFound(t *testing.T) {
	ctx := context.Background()
	pool := setupPool(ctx, t)

	_, err := NewAgentRepository(pool).GetByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrAgentNotFound)
}

func TestAgentRepository_UpdateClearsCredential(t *testing.T) {
	ctx := context.Background()
	pool := setupPool(ctx, t)
	repo := NewAgentRepository(pool)

	agent := setupAgent(ctx, t, pool)
	agent.EmbeddingAPIKey = ""
	agent.Model = ""
	agent.UpdatedAt = time.Now().UTC().Truncate(time.Microsecond)
	require.NoError(t, repo.Update(ctx, agent))

	retrieved, err := repo.GetByID(ctx, agent.ID)
	require.NoError(t, err)
	assert.False(t, retrieved.HasEmbeddingCredential())
	assert.Empty(t, retrieved.Model)
}

func TestAgentRepository_ListByOrg(t *testing.T) {
	ctx := context.Background()
	pool := setupPool(ctx, t)
	repo := NewAgentRepository(pool)

	agent := setupAgent(ctx, t, pool)
	other := setupAgent(ctx, t, pool)

	agents, err := repo.ListByOrg(ctx, agent.OrgID)
	require.NoError(t, err)
	require.Len(t, agents, 1)
	assert.Equal(t, agent.ID, agents[0].ID)
	assert.NotEqual(t, other.OrgID, agents[0].OrgID)
}

func TestAgentRepository_Delete(t *testing.T) {
	ctx := context.Background()
	pool := setupPool(ctx, t)
	repo := NewAgentRepository(pool)

	agent := setupAgent(ctx, t, pool)
	require.NoError(t, repo.Delete(ctx, agent.ID))

	err := repo.Delete(ctx, agent.ID)
	assert.ErrorIs(t, err, domain.ErrAgentNotFound)
}
