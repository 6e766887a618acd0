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

type DocumentRepository struct {
	db dbtx
}

func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{db: pool}
}

func NewDocumentRepositoryWithTx(tx pgx.Tx) *DocumentRepository {
	return &DocumentRepository{db: tx}
}

const documentColumns = `id, agent_id, title, description, source_url, source_type, enabled, created_at, updated_at`

func (r *DocumentRepository) Create(ctx context.Context, doc *domain.KnowledgeDocument) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO knowledge_documents (`+documentColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		doc.ID, doc.AgentID, doc.Title, nullableString(doc.Description), nullableString(doc.SourceURL),
		doc.SourceType, doc.Enabled, doc.CreatedAt, doc.UpdatedAt,
	)
	return err
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.KnowledgeDocument, error) {
	doc, err := scanDocument(r.db.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM knowledge_documents WHERE id = $1`,
		id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, err
	}
	return doc, nil
}

func (r *DocumentRepository) ListByAgentWithCursor(ctx context.Context, agentID string, cursor *pagination.Cursor, limit int) (*service.DocumentPageResult, error) {
	limit = pagination.NormalizeLimit(limit)
	before, lastID := cursor.Bounds()

	rows, err := r.db.Query(ctx,
		`SELECT `+documentColumns+`
		 FROM knowledge_documents
		 WHERE agent_id = $1
		   AND ($2::timestamptz IS NULL OR (created_at, id) < ($2, $3::uuid))
		 ORDER BY created_at DESC, id DESC
		 LIMIT $4`,
		agentID, before, lastID, limit+1,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*domain.KnowledgeDocument
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	page := pagination.Paginate(items, limit, documentPosition)
	return &page, nil
}

func documentPosition(d *domain.KnowledgeDocument) pagination.Cursor {
	return pagination.Cursor{LastID: d.ID, Timestamp: d.CreatedAt}
}

func (r *DocumentRepository) Update(ctx context.Context, doc *domain.KnowledgeDocument) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE knowledge_documents
		 SET title = $1, description = $2, source_url = $3, source_type = $4, enabled = $5, updated_at = $6
		 WHERE id = $7`,
		doc.Title, nullableString(doc.Description), nullableString(doc.SourceURL), doc.SourceType,
		doc.Enabled, doc.UpdatedAt, doc.ID,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

// Delete removes the document; segments, counters and jobs cascade.
func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx,
		`DELETE FROM knowledge_documents WHERE id = $1`,
		id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

func scanDocument(row pgx.Row) (*domain.KnowledgeDocument, error) {
	var d domain.KnowledgeDocument
	var description, sourceURL *string
	if err := row.Scan(&d.ID, &d.AgentID, &d.Title, &description, &sourceURL, &d.SourceType, &d.Enabled, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	d.Description = stringValue(description)
	d.SourceURL = stringValue(sourceURL)
	return &d, nil
}
