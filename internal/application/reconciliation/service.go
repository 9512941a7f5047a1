// Package reconciliation holds the use cases that feed and maintain the
// canonical PO ledger: ingestion of raw uploads, the PO and acceptance merge
// passes, project resolution rules and manual site allocations.
package reconciliation

import (
	"context"
	"strings"
	"time"

	"github.com/erp/reconciler/internal/domain/project"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Pass names, shared with the metrics "pass" attribute
const (
	PassMergePurchaseOrders = "merge_purchase_orders"
	PassMergeAcceptances    = "merge_acceptances"
	PassApplyRule           = "apply_rule"
	PassAssignSites         = "assign_sites"
)

// ledgerLockName is the single pass lock every ledger writer takes
const ledgerLockName = "ledger"

// PassLocker serializes passes that write the ledger
type PassLocker interface {
	Acquire(ctx context.Context, name string) (release func(), err error)
}

// ResolverCache keeps the last built resolver keyed by resolution version
type ResolverCache interface {
	Get(version int64) (*project.Resolver, bool)
	Put(r *project.Resolver)
	Invalidate()
}

// Metrics receives pass outcomes
type Metrics interface {
	RecordIngest(ctx context.Context, kind string, ingested, rejected int)
	RecordMerge(ctx context.Context, pass string, merged, skipped, unresolved int, d time.Duration)
	RecordReassigned(ctx context.Context, pass string, rows int64, d time.Duration)
	RecordFailure(ctx context.Context, pass, reason string)
}

type nopMetrics struct{}

func (nopMetrics) RecordIngest(context.Context, string, int, int) {}
func (nopMetrics) RecordMerge(context.Context, string, int, int, int, time.Duration) {}
func (nopMetrics) RecordReassigned(context.Context, string, int64, time.Duration) {}
func (nopMetrics) RecordFailure(context.Context, string, string) {}

type nopResolverCache struct{}

func (nopResolverCache) Get(int64) (*project.Resolver, bool) { return nil, false }
func (nopResolverCache) Put(*project.Resolver) {}
func (nopResolverCache) Invalidate() {}

// Service runs ingestion, merge passes, rule creation and site assignment.
// Every pass that writes the ledger runs under the pass lock and inside one
// transaction.
type Service struct {
	scope           TransactionScope
	locker          PassLocker
	cache           ResolverCache
	metrics         Metrics
	logger          *zap.Logger
	fetchLimit      int
	defaultUploader string
}

// ServiceOption configures a Service
type ServiceOption func(*Service)

// WithResolverCache sets the resolver cache
func WithResolverCache(c ResolverCache) ServiceOption {
	return func(s *Service) {
		if c != nil {
			s.cache = c
		}
	}
}

// WithMetrics sets the metrics sink
func WithMetrics(m Metrics) ServiceOption {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithFetchLimit caps how many raw rows one pass consumes; 0 means all
func WithFetchLimit(n int) ServiceOption {
	return func(s *Service) {
		if n >= 0 {
			s.fetchLimit = n
		}
	}
}

// WithDefaultUploader sets the uploader recorded when an upload names none
func WithDefaultUploader(name string) ServiceOption {
	return func(s *Service) {
		if name = strings.TrimSpace(name); name != "" {
			s.defaultUploader = name
		}
	}
}

// NewService creates a new reconciliation Service
func NewService(scope TransactionScope, locker PassLocker, logger *zap.Logger, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		scope:           scope,
		locker:          locker,
		cache:           nopResolverCache{},
		metrics:         nopMetrics{},
		logger:          logger,
		defaultUploader: "system",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// withPassLock runs fn while holding the ledger pass lock
func (s *Service) withPassLock(ctx context.Context, fn func() error) error {
	release, err := s.locker.Acquire(ctx, ledgerLockName)
	if err != nil {
		return err
	}
	defer release()
	return fn()
}

// loadResolver returns a resolver for the current resolution version,
// building and caching one on a miss
func (s *Service) loadResolver(ctx context.Context, repos TransactionalRepositories) (*project.Resolver, error) {
	version, err := repos.Versions().Current(ctx)
	if err != nil {
		return nil, err
	}
	if r, ok := s.cache.Get(version); ok {
		return r, nil
	}

	tbd, err := repos.Projects().EnsureTBD(ctx)
	if err != nil {
		return nil, err
	}
	allocations, err := repos.Allocations().FindAll(ctx)
	if err != nil {
		return nil, err
	}
	rules, err := repos.Rules().FindAll(ctx)
	if err != nil {
		return nil, err
	}

	bySite := make(map[string]uuid.UUID, len(allocations))
	for _, a := range allocations {
		bySite[a.SiteCode] = a.ProjectID
	}
	r := project.NewResolver(project.Snapshot{
		Version:      version,
		TBDProjectID: tbd.ID,
		Allocations:  bySite,
		Rules:        rules,
	})
	s.cache.Put(r)
	s.logger.Debug("Resolver rebuilt",
		zap.Int64("version", version),
		zap.Int("rules", len(rules)),
		zap.Int("allocations", len(allocations)),
	)
	return r, nil
}

func (s *Service) uploader(name string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	return s.defaultUploader
}
