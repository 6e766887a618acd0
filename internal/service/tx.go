package service

import (
	"context"

	"github.com/cloo-solutions/agentkb/internal/domain"
)

// SegmentWriter appends segments inside a transaction.
type SegmentWriter interface {
	// AllocateIndices reserves n consecutive indices for (documentID, kind)
	// and returns the first. The reservation holds a row lock until the
	// transaction ends.
	AllocateIndices(ctx context.Context, documentID string, kind domain.SegmentKind, n int) (int, error)
	InsertSegments(ctx context.Context, segments []*domain.KnowledgeSegment) error
}

// DocumentWriter updates documents inside a transaction.
type DocumentWriter interface {
	Update(ctx context.Context, doc *domain.KnowledgeDocument) error
}

// RegenerationJobQueue enqueues background regeneration work.
type RegenerationJobQueue interface {
	Create(ctx context.Context, job *domain.RegenerationJob) error
}

// TxRepositories provides transaction-bound repositories.
type TxRepositories interface {
	Documents() DocumentWriter
	Segments() SegmentWriter
	RegenerationJobs() RegenerationJobQueue
}

// TxRunner executes a function within a transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(repos TxRepositories) error) error
}
