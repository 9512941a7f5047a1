package reconciliation

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/reconciler/internal/domain/ledger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MergeUnprocessedPOs folds every unprocessed raw PO line into the ledger.
//
// Rows are deduplicated per PO line, the representative is resolved to an
// internal project and then inserted or merged into the existing entry. Rows
// whose customer project label is unknown stay unprocessed for a later pass;
// rows missing a key field are discarded. Everything else is marked processed
// in the same transaction, so rerunning the pass is a no-op.
func (s *Service) MergeUnprocessedPOs(ctx context.Context) (*MergeResult, error) {
	return s.runMerge(ctx, PassMergePurchaseOrders, s.mergePOs)
}

func (s *Service) mergePOs(ctx context.Context, repos TransactionalRepositories, result *MergeResult) error {
	rows, err := repos.RawPOs().FetchUnprocessed(ctx, s.fetchLimit)
	if err != nil {
		return fmt.Errorf("failed to fetch raw PO lines: %w", err)
	}
	result.Fetched = len(rows)
	if len(rows) == 0 {
		return nil
	}

	groups, malformed := ledger.Deduplicate(rows)
	result.Skipped = len(malformed)
	for _, id := range malformed {
		s.logger.Warn("Raw PO line skipped: missing PO number, line, price or quantity",
			zap.Int64("raw_id", id))
	}

	customerProjects, err := s.hydrateCustomerProjects(ctx, repos, groups)
	if err != nil {
		return err
	}
	resolver, err := s.loadResolver(ctx, repos)
	if err != nil {
		return fmt.Errorf("failed to load project resolver: %w", err)
	}

	poIDs := make([]string, len(groups))
	for i := range groups {
		poIDs[i] = groups[i].Key.PoID()
	}
	existing, err := repos.MergedPOs().FindByPoIDsForUpdate(ctx, poIDs)
	if err != nil {
		return fmt.Errorf("failed to load ledger entries: %w", err)
	}

	processed := append(make([]int64, 0, len(rows)), malformed...)
	var deferred []int64
	var created []*ledger.MergedPO
	for i := range groups {
		g := &groups[i]
		rep := &g.Representative

		var customerProjectID *uuid.UUID
		if rep.CustomerProjectLabel != "" {
			id, ok := customerProjects[rep.CustomerProjectLabel]
			if !ok {
				result.Unresolved += len(g.RowIDs)
				deferred = append(deferred, g.RowIDs...)
				result.noteError(fmt.Sprintf("customer project %q not found for %s", rep.CustomerProjectLabel, g.Key.PoID()))
				s.logger.Warn("PO line left unprocessed: unknown customer project",
					zap.String("po_id", g.Key.PoID()),
					zap.String("customer_project", rep.CustomerProjectLabel),
					zap.Int("rows", len(g.RowIDs)),
				)
				continue
			}
			customerProjectID = &id
		}

		projectID := resolver.Resolve(rep.SiteCode, rep.PublishDate, customerProjectID)
		incoming := ledger.IncomingFromRaw(*g, customerProjectID, projectID)
		result.Duplicates += len(g.RowIDs) - 1
		processed = append(processed, g.RowIDs...)

		entry, ok := existing[g.Key.PoID()]
		if !ok {
			created = append(created, ledger.NewMergedPO(incoming))
			continue
		}
		if !entry.ApplyIncoming(incoming) {
			result.Unchanged++
			continue
		}
		if err := repos.MergedPOs().Update(ctx, entry); err != nil {
			return fmt.Errorf("failed to update ledger entry %s: %w", entry.PoID, err)
		}
		result.Updated++
	}

	if err := repos.MergedPOs().Create(ctx, created); err != nil {
		return fmt.Errorf("failed to insert ledger entries: %w", err)
	}
	result.Created = len(created)
	result.Merged = result.Created + result.Updated

	marked, err := repos.RawPOs().MarkProcessed(ctx, processed)
	if err != nil {
		return fmt.Errorf("failed to mark raw PO lines processed: %w", err)
	}
	if err := repos.RawPOs().MarkAttempted(ctx, deferred); err != nil {
		return fmt.Errorf("failed to mark raw PO lines attempted: %w", err)
	}
	result.Processed = marked
	return nil
}

// hydrateCustomerProjects maps the customer project labels of the
// representatives to ids. Unknown labels are absent from the map.
func (s *Service) hydrateCustomerProjects(ctx context.Context, repos TransactionalRepositories, groups []ledger.POGroup) (map[string]uuid.UUID, error) {
	seen := make(map[string]struct{})
	codes := make([]string, 0)
	for i := range groups {
		label := groups[i].Representative.CustomerProjectLabel
		if label == "" {
			continue
		}
		if _, ok := seen[label]; ok {
			continue
		}
		seen[label] = struct{}{}
		codes = append(codes, label)
	}
	if len(codes) == 0 {
		return map[string]uuid.UUID{}, nil
	}
	ids, err := repos.CustomerProjects().FindIDsByCodes(ctx, codes)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve customer projects: %w", err)
	}
	return ids, nil
}

// runMerge wraps a merge pass with the pass lock, a transaction, logging and
// metrics
func (s *Service) runMerge(ctx context.Context, pass string, fn func(context.Context, TransactionalRepositories, *MergeResult) error) (*MergeResult, error) {
	start := time.Now()
	var result *MergeResult

	err := s.withPassLock(ctx, func() error {
		return s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
			// fresh counters on every attempt; a rolled back pass reports nothing merged
			result = &MergeResult{Pass: pass}
			return fn(ctx, repos, result)
		})
	})
	if result == nil {
		result = &MergeResult{Pass: pass}
	}
	result.Duration = time.Since(start)

	if err != nil {
		failed := &MergeResult{Pass: pass, Reason: ReasonFailed, FirstError: err.Error(), Duration: result.Duration}
		s.metrics.RecordFailure(ctx, pass, errorReason(err))
		s.logger.Error("Merge pass rolled back",
			zap.String("pass", pass),
			zap.Duration("duration", result.Duration),
			zap.Error(err),
		)
		return failed, fmt.Errorf("%s: %w", pass, err)
	}

	result.finish()
	s.metrics.RecordMerge(ctx, pass, result.Merged, result.Skipped, result.Unresolved, result.Duration)
	s.logger.Info("Merge pass completed",
		zap.String("pass", pass),
		zap.String("reason", result.Reason),
		zap.Int("fetched", result.Fetched),
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("unchanged", result.Unchanged),
		zap.Int("skipped", result.Skipped),
		zap.Int("unresolved", result.Unresolved),
		zap.Int64("processed", result.Processed),
		zap.Duration("duration", result.Duration),
	)
	return result, nil
}
