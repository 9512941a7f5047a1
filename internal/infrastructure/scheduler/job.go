package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the status of a merge job
type JobStatus string

const (
	JobStatusPending JobStatus = "PENDING"
	JobStatusRunning JobStatus = "RUNNING"
	JobStatusSuccess JobStatus = "SUCCESS"
	JobStatusFailed  JobStatus = "FAILED"
)

// JobKind is the merge pass a job runs
type JobKind string

const (
	JobKindMergePurchaseOrders JobKind = "MERGE_PURCHASE_ORDERS"
	JobKindMergeAcceptances    JobKind = "MERGE_ACCEPTANCES"
)

// IsValid checks if the kind is valid
func (k JobKind) IsValid() bool {
	return k == JobKindMergePurchaseOrders || k == JobKindMergeAcceptances
}

// AllJobKinds returns every merge kind in the order a sweep runs them.
// POs go first so acceptances for freshly merged lines find their entry.
func AllJobKinds() []JobKind {
	return []JobKind{JobKindMergePurchaseOrders, JobKindMergeAcceptances}
}

// Job is one queued merge pass. BatchID ties it to the upload that caused
// it; sweep jobs carry none.
type Job struct {
	ID          uuid.UUID
	Kind        JobKind
	BatchID     *uuid.UUID
	Status      JobStatus
	Error       string
	StartedAt   *time.Time
	CompletedAt *time.Time
	RetryCount  int
	MaxRetries  int
}

// NewJob creates a new job instance
func NewJob(kind JobKind, batchID *uuid.UUID, maxRetries int) *Job {
	return &Job{
		ID:         uuid.New(),
		Kind:       kind,
		BatchID:    batchID,
		Status:     JobStatusPending,
		MaxRetries: maxRetries,
	}
}

// Start marks the job as running
func (j *Job) Start() {
	now := time.Now()
	j.Status = JobStatusRunning
	j.StartedAt = &now
	j.Error = ""
}

// Complete marks the job as successful
func (j *Job) Complete() {
	now := time.Now()
	j.Status = JobStatusSuccess
	j.CompletedAt = &now
}

// Fail marks the job as failed
func (j *Job) Fail(err string) {
	now := time.Now()
	j.Status = JobStatusFailed
	j.CompletedAt = &now
	j.Error = err
}

// ShouldRetry returns true if the job should be retried
func (j *Job) ShouldRetry() bool {
	return j.Status == JobStatusFailed && j.RetryCount < j.MaxRetries
}

// PrepareRetry puts a failed job back to pending for another attempt
func (j *Job) PrepareRetry() {
	j.RetryCount++
	j.Status = JobStatusPending
}

// JobExecutor runs merge jobs
type JobExecutor interface {
	Execute(ctx context.Context, job *Job) error
}

// JobExecutorFunc adapts a function to JobExecutor
type JobExecutorFunc func(ctx context.Context, job *Job) error

// Execute calls f
func (f JobExecutorFunc) Execute(ctx context.Context, job *Job) error {
	return f(ctx, job)
}
