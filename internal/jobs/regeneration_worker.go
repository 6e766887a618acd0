package jobs

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/cloo-solutions/agentkb/internal/domain"
	"github.com/cloo-solutions/agentkb/internal/logger"
	"github.com/cloo-solutions/agentkb/internal/metrics"
	"github.com/cloo-solutions/agentkb/internal/service"
)

const (
	// MaxRetries is the maximum number of retries for a failed job
	MaxRetries = 3
	// DefaultBatchSize is how many jobs one poll claims
	DefaultBatchSize = 10
)

// RegenerationJobRepository defines the interface for regeneration job persistence
type RegenerationJobRepository interface {
	// ClaimPending moves pending jobs to processing and returns them
	ClaimPending(ctx context.Context, limit int) ([]*domain.RegenerationJob, error)

	// UpdateStatus updates the status of a regeneration job
	UpdateStatus(ctx context.Context, id string, status domain.RegenerationJobStatus, errMsg string) error

	// IncrementRetries increments the retry count for a job
	IncrementRetries(ctx context.Context, id string) error
}

// Regenerator re-embeds a document's segments
type Regenerator interface {
	RegenerateDocumentEmbeddings(ctx context.Context, input service.RegenerateInput) (*service.RegenerationResult, error)
}

// RegenerationWorker processes regeneration jobs queued by document title
// changes
type RegenerationWorker struct {
	repo        RegenerationJobRepository
	regenerator Regenerator
	batchSize   int
}

// NewRegenerationWorker creates a new RegenerationWorker instance
func NewRegenerationWorker(repo RegenerationJobRepository, regenerator Regenerator) *RegenerationWorker {
	return &RegenerationWorker{
		repo:        repo,
		regenerator: regenerator,
		batchSize:   DefaultBatchSize,
	}
}

// ProcessJobs implements the JobProcessor interface
func (w *RegenerationWorker) ProcessJobs(ctx context.Context) error {
	jobs, err := w.repo.ClaimPending(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("failed to claim pending jobs: %w", err)
	}

	if len(jobs) == 0 {
		return nil
	}

	logger.Log.Info("processing regeneration jobs", zap.Int("count", len(jobs)))

	for _, job := range jobs {
		if err := w.processJob(ctx, job); err != nil {
			logger.Log.Error("error processing job", zap.String("job_id", job.ID), zap.Error(err))
		}
	}

	return nil
}

func (w *RegenerationWorker) processJob(ctx context.Context, job *domain.RegenerationJob) error {
	log := logger.Log.With(zap.String("job_id", job.ID), zap.String("document_id", job.DocumentID))
	log.Info("regenerating document embeddings", zap.String("kind", string(job.Kind)))

	result, err := w.regenerator.RegenerateDocumentEmbeddings(ctx, service.RegenerateInput{
		Caller:     service.SystemCaller(),
		DocumentID: job.DocumentID,
		Kind:       job.Kind,
	})
	if err != nil {
		return w.handleJobFailure(ctx, job, err)
	}

	var note string
	if result.ErrorCount > 0 {
		note = fmt.Sprintf("%d of %d segments failed", result.ErrorCount, result.TotalSegments)
	}
	if err := w.repo.UpdateStatus(ctx, job.ID, domain.RegenerationJobStatusCompleted, note); err != nil {
		return fmt.Errorf("failed to update job status to completed: %w", err)
	}

	metrics.JobsProcessed.WithLabelValues(string(domain.RegenerationJobStatusCompleted)).Inc()
	log.Info("job completed",
		zap.Int("total_segments", result.TotalSegments),
		zap.Int("success_count", result.SuccessCount),
		zap.Int("error_count", result.ErrorCount),
	)
	return nil
}

// handleJobFailure handles a failed job with retry logic. Errors that no
// retry can fix fail the job at once.
func (w *RegenerationWorker) handleJobFailure(ctx context.Context, job *domain.RegenerationJob, jobErr error) error {
	log := logger.Log.With(zap.String("job_id", job.ID))
	log.Warn("job failed", zap.Error(jobErr))

	if err := w.repo.IncrementRetries(ctx, job.ID); err != nil {
		return fmt.Errorf("failed to increment retries: %w", err)
	}

	if permanent(jobErr) || job.Retries+1 >= MaxRetries {
		log.Warn("marking job as failed", zap.Int32("retries", job.Retries+1))
		errMsg := fmt.Sprintf("giving up after %d attempts: %v", job.Retries+1, jobErr)
		if err := w.repo.UpdateStatus(ctx, job.ID, domain.RegenerationJobStatusFailed, errMsg); err != nil {
			return fmt.Errorf("failed to update job status to failed: %w", err)
		}
		metrics.JobsProcessed.WithLabelValues(string(domain.RegenerationJobStatusFailed)).Inc()
		return nil
	}

	log.Info("job will be retried", zap.Int32("attempt", job.Retries+1), zap.Int("max_retries", MaxRetries))
	errMsg := fmt.Sprintf("retry %d: %v", job.Retries+1, jobErr)
	if err := w.repo.UpdateStatus(ctx, job.ID, domain.RegenerationJobStatusPending, errMsg); err != nil {
		return fmt.Errorf("failed to reset job status to pending: %w", err)
	}

	return nil
}

func permanent(err error) bool {
	switch domain.CodeOf(err) {
	case domain.ErrCodeNotFound, domain.ErrCodeMissingCredential, domain.ErrCodeValidation:
		return true
	}
	return false
}
