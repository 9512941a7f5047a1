// Package scheduler runs merge passes off the request path: a job queue fed by
// upload handlers and a cron sweep that retries rows left unprocessed.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/erp/reconciler/internal/infrastructure/config"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Scheduler runs merge jobs on a single worker. Passes serialize on the pass
// lock anyway, so more workers would only queue behind it.
type Scheduler struct {
	config   config.SchedulerConfig
	executor JobExecutor
	logger   *zap.Logger

	jobs      chan *Job
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
	// sweep jobs queued per kind, so repeated sweeps coalesce
	queuedSweeps map[JobKind]bool
	retryTimers  map[uuid.UUID]*time.Timer
}

// NewScheduler creates a new scheduler instance
func NewScheduler(cfg config.SchedulerConfig, executor JobExecutor, logger *zap.Logger) *Scheduler {
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 100
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 30 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		config:       cfg,
		executor:     executor,
		logger:       logger,
		jobs:         make(chan *Job, queueSize),
		queuedSweeps: make(map[JobKind]bool),
		retryTimers:  make(map[uuid.UUID]*time.Timer),
	}
}

// Start starts the worker
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.worker(ctx)

	s.logger.Info("Merge scheduler started",
		zap.Int("queue_size", cap(s.jobs)),
		zap.Duration("job_timeout", s.config.JobTimeout),
		zap.Int("retry_attempts", s.config.RetryAttempts),
	)
	return nil
}

// Stop stops the worker, waiting for the running job up to ctx's deadline.
// Jobs still queued are dropped; their rows stay unprocessed for the next
// sweep.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	for id, timer := range s.retryTimers {
		timer.Stop()
		delete(s.retryTimers, id)
	}
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Merge scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Merge scheduler stop timed out")
		return ctx.Err()
	}
}

// IsRunning reports whether the worker is accepting jobs
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

// Enqueue submits a merge of the given kind, optionally tied to a batch
func (s *Scheduler) Enqueue(kind JobKind, batchID *uuid.UUID) (*Job, error) {
	if !kind.IsValid() {
		return nil, ErrInvalidJobKind
	}
	job := NewJob(kind, batchID, s.config.RetryAttempts)
	if err := s.SubmitJob(job); err != nil {
		return nil, err
	}
	return job, nil
}

// SubmitJob submits a job for execution. A sweep job (no batch) is dropped
// when one of the same kind is already queued.
func (s *Scheduler) SubmitJob(job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isRunning {
		return ErrSchedulerNotRunning
	}
	if job.BatchID == nil {
		if s.queuedSweeps[job.Kind] {
			s.logger.Debug("Sweep job already queued", zap.String("kind", string(job.Kind)))
			return nil
		}
	}

	select {
	case s.jobs <- job:
		if job.BatchID == nil {
			s.queuedSweeps[job.Kind] = true
		}
		s.logger.Debug("Job submitted",
			zap.String("job_id", job.ID.String()),
			zap.String("kind", string(job.Kind)),
		)
		return nil
	default:
		return ErrJobQueueFull
	}
}

func (s *Scheduler) worker(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case job := <-s.jobs:
			if job.BatchID == nil {
				s.mu.Lock()
				delete(s.queuedSweeps, job.Kind)
				s.mu.Unlock()
			}
			s.processJob(ctx, job)
		}
	}
}

func (s *Scheduler) processJob(ctx context.Context, job *Job) {
	job.Start()
	fields := []zap.Field{
		zap.String("job_id", job.ID.String()),
		zap.String("kind", string(job.Kind)),
	}
	if job.BatchID != nil {
		fields = append(fields, zap.String("batch_id", job.BatchID.String()))
	}
	s.logger.Info("Processing job", fields...)

	jobCtx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	defer cancel()

	if err := s.execute(jobCtx, job); err != nil {
		job.Fail(err.Error())
		s.logger.Error("Job failed", append(fields, zap.Int("attempt", job.RetryCount+1), zap.Error(err))...)
		if job.ShouldRetry() && ctx.Err() == nil {
			s.scheduleRetry(job)
		}
		return
	}

	job.Complete()
	s.logger.Info("Job completed successfully", fields...)
}

// execute runs the job, turning a panic into a job failure
func (s *Scheduler) execute(ctx context.Context, job *Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r}
		}
	}()
	return s.executor.Execute(ctx, job)
}

func (s *Scheduler) scheduleRetry(job *Job) {
	job.PrepareRetry()
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isRunning {
		return
	}
	s.retryTimers[job.ID] = time.AfterFunc(s.config.RetryDelay, func() {
		s.mu.Lock()
		delete(s.retryTimers, job.ID)
		running := s.isRunning
		s.mu.Unlock()
		if !running {
			return
		}
		select {
		case s.jobs <- job:
			s.logger.Info("Job re-queued for retry",
				zap.String("job_id", job.ID.String()),
				zap.Int("retry_count", job.RetryCount),
				zap.Int("max_retries", job.MaxRetries),
			)
		default:
			s.logger.Warn("Failed to re-queue job for retry", zap.String("job_id", job.ID.String()))
		}
	})
}

type panicError struct {
	value any
}

func (e *panicError) Error() string {
	return fmt.Sprintf("job panicked: %v", e.value)
}
