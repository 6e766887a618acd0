package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cloo-solutions/agentkb/internal/domain"
	"github.com/cloo-solutions/agentkb/internal/pagination"
	"github.com/cloo-solutions/agentkb/internal/service"
)

type OrgRepository struct {
	pool *pgxpool.Pool
}

func NewOrgRepository(pool *pgxpool.Pool) *OrgRepository {
	return &OrgRepository{pool: pool}
}

const orgColumns = `id, name, created_at`

func (r *OrgRepository) Create(ctx context.Context, org *domain.Organization) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO organizations (`+orgColumns+`) VALUES ($1, $2, $3)`,
		org.ID, org.Name, org.CreatedAt,
	)
	if isUniqueViolation(err) {
		return domain.ErrOrganizationAlreadyExists
	}
	return err
}

func (r *OrgRepository) GetByID(ctx context.Context, id string) (*domain.Organization, error) {
	return r.getOne(ctx, `SELECT `+orgColumns+` FROM organizations WHERE id = $1`, id)
}

func (r *OrgRepository) GetByName(ctx context.Context, name string) (*domain.Organization, error) {
	return r.getOne(ctx, `SELECT `+orgColumns+` FROM organizations WHERE name = $1`, name)
}

func (r *OrgRepository) getOne(ctx context.Context, query string, arg any) (*domain.Organization, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	org, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByPos[domain.Organization])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrOrganizationNotFound
	}
	return org, err
}

func (r *OrgRepository) ListWithCursor(ctx context.Context, cursor *pagination.Cursor, limit int) (*service.OrgPage, error) {
	limit = pagination.NormalizeLimit(limit)
	before, lastID := cursor.Bounds()

	rows, err := r.pool.Query(ctx,
		`SELECT `+orgColumns+`
		 FROM organizations
		 WHERE $1::timestamptz IS NULL OR (created_at, id) < ($1, $2::uuid)
		 ORDER BY created_at DESC, id DESC
		 LIMIT $3`,
		before, lastID, limit+1,
	)
	if err != nil {
		return nil, err
	}

	orgs, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByPos[domain.Organization])
	if err != nil {
		return nil, err
	}

	page := pagination.Paginate(orgs, limit, func(o *domain.Organization) pagination.Cursor {
		return pagination.Cursor{LastID: o.ID, Timestamp: o.CreatedAt}
	})
	return &page, nil
}
