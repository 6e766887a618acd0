package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cloo-solutions/agentkb/internal/domain"
	"github.com/cloo-solutions/agentkb/internal/pagination"
	"github.com/cloo-solutions/agentkb/internal/service"
)

type APIKeyRepository struct {
	pool *pgxpool.Pool
}

func NewAPIKeyRepository(pool *pgxpool.Pool) *APIKeyRepository {
	return &APIKeyRepository{pool: pool}
}

const apiKeyColumns = `id, org_id, name, key_hash, created_at, revoked_at`

func (r *APIKeyRepository) Create(ctx context.Context, key *domain.APIKey) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO api_keys (`+apiKeyColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		key.ID, key.OrgID, key.Name, key.KeyHash, key.CreatedAt, key.RevokedAt,
	)
	if isUniqueViolation(err) {
		return domain.ErrAPIKeyAlreadyExists
	}
	return err
}

func (r *APIKeyRepository) GetByHash(ctx context.Context, hash string) (*domain.APIKey, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE key_hash = $1`,
		hash,
	)
	if err != nil {
		return nil, err
	}
	key, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByPos[domain.APIKey])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrAPIKeyNotFound
	}
	return key, err
}

func (r *APIKeyRepository) ListByOrgWithCursor(ctx context.Context, orgID string, cursor *pagination.Cursor, limit int) (*service.APIKeyPage, error) {
	limit = pagination.NormalizeLimit(limit)
	before, lastID := cursor.Bounds()

	rows, err := r.pool.Query(ctx,
		`SELECT `+apiKeyColumns+`
		 FROM api_keys
		 WHERE org_id = $1
		   AND ($2::timestamptz IS NULL OR (created_at, id) < ($2, $3::uuid))
		 ORDER BY created_at DESC, id DESC
		 LIMIT $4`,
		orgID, before, lastID, limit+1,
	)
	if err != nil {
		return nil, err
	}

	keys, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByPos[domain.APIKey])
	if err != nil {
		return nil, err
	}

	page := pagination.Paginate(keys, limit, func(k *domain.APIKey) pagination.Cursor {
		return pagination.Cursor{LastID: k.ID, Timestamp: k.CreatedAt}
	})
	return &page, nil
}

// Revoke marks an active key revoked. Revoking an unknown or already revoked
// key is ErrAPIKeyNotFound.
func (r *APIKeyRepository) Revoke(ctx context.Context, id string, at time.Time) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE api_keys SET revoked_at = $1 WHERE id = $2 AND revoked_at IS NULL`,
		at, id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrAPIKeyNotFound
	}
	return nil
}
