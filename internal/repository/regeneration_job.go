package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cloo-solutions/agentkb/internal/domain"
)

var ErrRegenerationJobNotFound = errors.New("regeneration job not found")

type RegenerationJobRepository struct {
	db dbtx
}

func NewRegenerationJobRepository(pool *pgxpool.Pool) *RegenerationJobRepository {
	return &RegenerationJobRepository{db: pool}
}

func NewRegenerationJobRepositoryWithTx(tx pgx.Tx) *RegenerationJobRepository {
	return &RegenerationJobRepository{db: tx}
}

const regenerationJobColumns = `id, document_id, kind, status, retries, error, created_at, processed_at`

func (r *RegenerationJobRepository) Create(ctx context.Context, job *domain.RegenerationJob) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO regeneration_jobs (`+regenerationJobColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		job.ID, job.DocumentID, nullableString(string(job.Kind)), job.Status, job.Retries,
		nullableString(job.Error), job.CreatedAt, job.ProcessedAt,
	)
	return err
}

func (r *RegenerationJobRepository) GetByID(ctx context.Context, id string) (*domain.RegenerationJob, error) {
	job, err := scanRegenerationJob(r.db.QueryRow(ctx,
		`SELECT `+regenerationJobColumns+` FROM regeneration_jobs WHERE id = $1`,
		id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRegenerationJobNotFound
		}
		return nil, err
	}
	return job, nil
}

// ClaimPending moves up to limit pending jobs to processing and returns
// them. Rows locked by another worker are skipped.
func (r *RegenerationJobRepository) ClaimPending(ctx context.Context, limit int) ([]*domain.RegenerationJob, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.Query(ctx,
		`WITH cte AS (
			 SELECT id
			 FROM regeneration_jobs
			 WHERE status = $1
			 ORDER BY created_at ASC
			 FOR UPDATE SKIP LOCKED
			 LIMIT $2
		 )
		 UPDATE regeneration_jobs
		 SET status = $3,
		     error = NULL,
		     processed_at = NULL
		 FROM cte
		 WHERE regeneration_jobs.id = cte.id
		 RETURNING regeneration_jobs.id, regeneration_jobs.document_id, regeneration_jobs.kind, regeneration_jobs.status,
		           regeneration_jobs.retries, regeneration_jobs.error, regeneration_jobs.created_at, regeneration_jobs.processed_at`,
		domain.RegenerationJobStatusPending, limit, domain.RegenerationJobStatusProcessing,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*domain.RegenerationJob
	for rows.Next() {
		job, err := scanRegenerationJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (r *RegenerationJobRepository) UpdateStatus(ctx context.Context, id string, status domain.RegenerationJobStatus, errMsg string) error {
	var processedAt *time.Time
	if status == domain.RegenerationJobStatusCompleted || status == domain.RegenerationJobStatusFailed {
		now := time.Now().UTC()
		processedAt = &now
	}

	cmdTag, err := r.db.Exec(ctx,
		`UPDATE regeneration_jobs SET status = $1, error = $2, processed_at = $3 WHERE id = $4`,
		status, nullableString(errMsg), processedAt, id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrRegenerationJobNotFound
	}
	return nil
}

func (r *RegenerationJobRepository) IncrementRetries(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE regeneration_jobs SET retries = retries + 1 WHERE id = $1`,
		id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrRegenerationJobNotFound
	}
	return nil
}

func scanRegenerationJob(row pgx.Row) (*domain.RegenerationJob, error) {
	var job domain.RegenerationJob
	var kind, errMsg pgtype.Text
	if err := row.Scan(&job.ID, &job.DocumentID, &kind, &job.Status, &job.Retries, &errMsg, &job.CreatedAt, &job.ProcessedAt); err != nil {
		return nil, err
	}
	if kind.Valid {
		job.Kind = domain.SegmentKind(kind.String)
	}
	if errMsg.Valid {
		job.Error = errMsg.String
	}
	return &job, nil
}
