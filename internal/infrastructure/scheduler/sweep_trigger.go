package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/erp/reconciler/internal/infrastructure/config"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Submitter accepts merge jobs
type Submitter interface {
	Enqueue(kind JobKind, batchID *uuid.UUID) (*Job, error)
}

// SweepTrigger enqueues a merge of every kind on a cron schedule, so rows a
// previous pass left unprocessed get another attempt
type SweepTrigger struct {
	cron      *cron.Cron
	submitter Submitter
	logger    *zap.Logger
	spec      string

	mu        sync.Mutex
	isRunning bool
	lastRun   time.Time
}

// NewSweepTrigger parses the schedule and registers the sweep
func NewSweepTrigger(cfg config.SchedulerConfig, submitter Submitter, logger *zap.Logger) (*SweepTrigger, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	loc := time.UTC
	if cfg.Timezone != "" {
		l, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, fmt.Errorf("%w: timezone %q: %v", ErrInvalidSchedule, cfg.Timezone, err)
		}
		loc = l
	}

	t := &SweepTrigger{
		cron:      cron.New(cron.WithLocation(loc)),
		submitter: submitter,
		logger:    logger,
		spec:      cfg.SweepSchedule,
	}
	if _, err := t.cron.AddFunc(cfg.SweepSchedule, t.Trigger); err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidSchedule, cfg.SweepSchedule, err)
	}
	return t, nil
}

// Start starts the cron loop
func (t *SweepTrigger) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.isRunning {
		return
	}
	t.isRunning = true
	t.cron.Start()
	t.logger.Info("Merge sweep scheduled", zap.String("schedule", t.spec))
}

// Stop stops the cron loop and waits for a running trigger up to ctx's deadline
func (t *SweepTrigger) Stop(ctx context.Context) error {
	t.mu.Lock()
	if !t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = false
	t.mu.Unlock()

	select {
	case <-t.cron.Stop().Done():
		t.logger.Info("Merge sweep stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Trigger enqueues one sweep now
func (t *SweepTrigger) Trigger() {
	t.mu.Lock()
	t.lastRun = time.Now()
	t.mu.Unlock()

	for _, kind := range AllJobKinds() {
		if _, err := t.submitter.Enqueue(kind, nil); err != nil {
			t.logger.Warn("Failed to enqueue sweep job", zap.String("kind", string(kind)), zap.Error(err))
		}
	}
}

// LastRun returns when the sweep last fired, zero if never
func (t *SweepTrigger) LastRun() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastRun
}

// Next returns the next scheduled fire time, zero while stopped
func (t *SweepTrigger) Next() time.Time {
	entries := t.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}
