package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cloo-solutions/agentkb/internal/domain"
)

// SegmentRepository persists knowledge segments and their per-kind index
// counters.
type SegmentRepository struct {
	db dbtx
}

func NewSegmentRepository(pool *pgxpool.Pool) *SegmentRepository {
	return &SegmentRepository{db: pool}
}

func NewSegmentRepositoryWithTx(tx pgx.Tx) *SegmentRepository {
	return &SegmentRepository{db: tx}
}

const segmentColumns = `id, document_id, kind, title, title_path, content, segment_index, token_count, created_at, updated_at`

// AllocateIndices reserves n indices for (documentID, kind) and returns the
// first. A missing counter is seeded past any existing segment. The upsert
// holds the counter row lock until the surrounding transaction ends, so
// concurrent appenders on the same document and kind serialize here.
func (r *SegmentRepository) AllocateIndices(ctx context.Context, documentID string, kind domain.SegmentKind, n int) (int, error) {
	if n <= 0 {
		return 0, fmt.Errorf("allocate indices: n must be positive, got %d", n)
	}

	var start int
	err := r.db.QueryRow(ctx,
		`INSERT INTO segment_index_counters (document_id, kind, next_index)
		 VALUES ($1, $2, $3::int + COALESCE(
			 (SELECT MAX(segment_index) + 1 FROM knowledge_segments WHERE document_id = $1 AND kind = $2), 0))
		 ON CONFLICT (document_id, kind)
		 DO UPDATE SET next_index = segment_index_counters.next_index + $3::int
		 RETURNING next_index - $3::int`,
		documentID, kind, n,
	).Scan(&start)
	if err != nil {
		return 0, fmt.Errorf("allocate indices: %w", err)
	}
	return start, nil
}

// MaxIndex returns the highest index in use for (documentID, kind), or -1.
func (r *SegmentRepository) MaxIndex(ctx context.Context, documentID string, kind domain.SegmentKind) (int, error) {
	var maxIndex *int
	err := r.db.QueryRow(ctx,
		`SELECT MAX(segment_index) FROM knowledge_segments WHERE document_id = $1 AND kind = $2`,
		documentID, kind,
	).Scan(&maxIndex)
	if err != nil {
		return 0, err
	}
	if maxIndex == nil {
		return -1, nil
	}
	return *maxIndex, nil
}

// InsertSegments writes all segments in one batch.
func (r *SegmentRepository) InsertSegments(ctx context.Context, segments []*domain.KnowledgeSegment) error {
	if len(segments) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, s := range segments {
		batch.Queue(
			`INSERT INTO knowledge_segments
				(id, document_id, kind, title, title_path, content, segment_index, token_count, embedding, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			s.ID, s.DocumentID, s.Kind, nullableString(s.Title), nullableString(s.TitlePath), s.Content,
			s.Index, s.TokenCount, embeddingParam(s.Embedding), s.CreatedAt, s.UpdatedAt,
		)
	}

	br := r.db.SendBatch(ctx, batch)
	defer br.Close()

	for range segments {
		if _, err := br.Exec(); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("insert segments: index already taken: %w", err)
			}
			return fmt.Errorf("insert segments: %w", err)
		}
	}
	return br.Close()
}

func (r *SegmentRepository) GetByID(ctx context.Context, id string) (*domain.KnowledgeSegment, error) {
	var s domain.KnowledgeSegment
	var title, titlePath, embedding *string
	err := r.db.QueryRow(ctx,
		`SELECT `+segmentColumns+`, embedding::text FROM knowledge_segments WHERE id = $1`,
		id,
	).Scan(&s.ID, &s.DocumentID, &s.Kind, &title, &titlePath, &s.Content, &s.Index, &s.TokenCount,
		&s.CreatedAt, &s.UpdatedAt, &embedding)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSegmentNotFound
		}
		return nil, err
	}
	s.Title = stringValue(title)
	s.TitlePath = stringValue(titlePath)
	if s.Embedding, err = parseEmbedding(embedding); err != nil {
		return nil, err
	}
	return &s, nil
}

// ListByDocument returns segments ordered by kind then index, without
// embeddings. An empty kind lists every kind.
func (r *SegmentRepository) ListByDocument(ctx context.Context, documentID string, kind domain.SegmentKind) ([]*domain.KnowledgeSegment, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+segmentColumns+`
		 FROM knowledge_segments
		 WHERE document_id = $1 AND ($2::text = '' OR kind = $2::text)
		 ORDER BY kind, segment_index`,
		documentID, string(kind),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var segments []*domain.KnowledgeSegment
	for rows.Next() {
		var s domain.KnowledgeSegment
		var title, titlePath *string
		if err := rows.Scan(&s.ID, &s.DocumentID, &s.Kind, &title, &titlePath, &s.Content, &s.Index, &s.TokenCount,
			&s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		s.Title = stringValue(title)
		s.TitlePath = stringValue(titlePath)
		segments = append(segments, &s)
	}
	return segments, rows.Err()
}

// Update rewrites the editable fields and the embedding together.
func (r *SegmentRepository) Update(ctx context.Context, s *domain.KnowledgeSegment) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE knowledge_segments
		 SET title = $1, title_path = $2, content = $3, token_count = $4, embedding = $5, updated_at = $6
		 WHERE id = $7`,
		nullableString(s.Title), nullableString(s.TitlePath), s.Content, s.TokenCount,
		embeddingParam(s.Embedding), s.UpdatedAt, s.ID,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrSegmentNotFound
	}
	return nil
}

func (r *SegmentRepository) UpdateEmbedding(ctx context.Context, id string, tokenCount int, embedding []float32) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE knowledge_segments SET token_count = $1, embedding = $2, updated_at = NOW() WHERE id = $3`,
		tokenCount, embeddingParam(embedding), id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrSegmentNotFound
	}
	return nil
}

// Delete removes one segment. Remaining indices are not renumbered.
func (r *SegmentRepository) Delete(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx,
		`DELETE FROM knowledge_segments WHERE id = $1`,
		id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrSegmentNotFound
	}
	return nil
}
