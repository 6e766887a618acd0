package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cloo-solutions/agentkb/internal/domain"
)

type AgentRepository struct {
	pool *pgxpool.Pool
}

func NewAgentRepository(pool *pgxpool.Pool) *AgentRepository {
	return &AgentRepository{pool: pool}
}

const agentColumns = `id, org_id, name, model, embedding_api_key, created_at, updated_at`

func (r *AgentRepository) Create(ctx context.Context, agent *domain.Agent) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO agents (`+agentColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		agent.ID, agent.OrgID, agent.Name, nullableString(agent.Model), nullableString(agent.EmbeddingAPIKey),
		agent.CreatedAt, agent.UpdatedAt,
	)
	return err
}

func (r *AgentRepository) GetByID(ctx context.Context, id string) (*domain.Agent, error) {
	agent, err := scanAgent(r.pool.QueryRow(ctx,
		`SELECT `+agentColumns+` FROM agents WHERE id = $1`,
		id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAgentNotFound
		}
		return nil, err
	}
	return agent, nil
}

func (r *AgentRepository) ListByOrg(ctx context.Context, orgID string) ([]*domain.Agent, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+agentColumns+` FROM agents WHERE org_id = $1 ORDER BY created_at DESC`,
		orgID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var agents []*domain.Agent
	for rows.Next() {
		agent, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		agents = append(agents, agent)
	}
	return agents, rows.Err()
}

func (r *AgentRepository) Update(ctx context.Context, agent *domain.Agent) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE agents SET name = $1, model = $2, embedding_api_key = $3, updated_at = $4 WHERE id = $5`,
		agent.Name, nullableString(agent.Model), nullableString(agent.EmbeddingAPIKey), agent.UpdatedAt, agent.ID,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrAgentNotFound
	}
	return nil
}

func (r *AgentRepository) Delete(ctx context.Context, id string) error {
	cmdTag, err := r.pool.Exec(ctx,
		`DELETE FROM agents WHERE id = $1`,
		id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrAgentNotFound
	}
	return nil
}

func scanAgent(row pgx.Row) (*domain.Agent, error) {
	var a domain.Agent
	var model, key *string
	if err := row.Scan(&a.ID, &a.OrgID, &a.Name, &model, &key, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.Model = stringValue(model)
	a.EmbeddingAPIKey = stringValue(key)
	return &a, nil
}
