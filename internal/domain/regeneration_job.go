package domain

import (
	"fmt"
	"time"
)

// RegenerationJobStatus represents the status of a regeneration job
type RegenerationJobStatus string

const (
	RegenerationJobStatusPending    RegenerationJobStatus = "pending"
	RegenerationJobStatusProcessing RegenerationJobStatus = "processing"
	RegenerationJobStatusCompleted  RegenerationJobStatus = "completed"
	RegenerationJobStatusFailed     RegenerationJobStatus = "failed"
)

// RegenerationJob asks the background worker to re-embed every segment of
// a document, e.g. after its title changed.
type RegenerationJob struct {
	ID          string
	DocumentID  string
	Kind        SegmentKind // empty means every kind
	Status      RegenerationJobStatus
	Retries     int32
	Error       string
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

// NewRegenerationJob creates a pending RegenerationJob instance
func NewRegenerationJob(id, documentID string, kind SegmentKind, createdAt time.Time) *RegenerationJob {
	return &RegenerationJob{
		ID:         id,
		DocumentID: documentID,
		Kind:       kind,
		Status:     RegenerationJobStatusPending,
		CreatedAt:  createdAt,
	}
}

// ValidateRegenerationJob validates a RegenerationJob instance
func ValidateRegenerationJob(j *RegenerationJob) error {
	if j == nil {
		return fmt.Errorf("regeneration job cannot be nil")
	}

	if j.ID == "" {
		return fmt.Errorf("regeneration job ID is required")
	}

	if j.DocumentID == "" {
		return fmt.Errorf("regeneration job DocumentID is required")
	}

	if j.Kind != "" && !IsValidSegmentKind(j.Kind) {
		return fmt.Errorf("regeneration job Kind is invalid: %s", j.Kind)
	}

	if !isValidRegenerationJobStatus(j.Status) {
		return fmt.Errorf("regeneration job Status is invalid: %s", j.Status)
	}

	if j.Retries < 0 {
		return fmt.Errorf("regeneration job Retries cannot be negative")
	}

	return nil
}

func isValidRegenerationJobStatus(s RegenerationJobStatus) bool {
	switch s {
	case RegenerationJobStatusPending, RegenerationJobStatusProcessing,
		RegenerationJobStatusCompleted, RegenerationJobStatusFailed:
		return true
	}
	return false
}
