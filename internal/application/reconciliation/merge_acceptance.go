package reconciliation

import (
	"context"
	"fmt"
	"sort"

	"github.com/erp/reconciler/internal/domain/ledger"
	"go.uber.org/zap"
)

// MergeUnprocessedAcceptances derives AC/PAC state from unprocessed
// acceptance lines.
//
// Each shipment touched by the pending rows is re-aggregated over its whole
// history, so acceptances split across uploads add up without counting a row
// twice. Shipments whose PO line is not in the ledger yet stay unprocessed
// and are retried once the PO merges.
func (s *Service) MergeUnprocessedAcceptances(ctx context.Context) (*MergeResult, error) {
	return s.runMerge(ctx, PassMergeAcceptances, s.mergeAcceptances)
}

func (s *Service) mergeAcceptances(ctx context.Context, repos TransactionalRepositories, result *MergeResult) error {
	rows, err := repos.RawAcceptances().FetchUnprocessed(ctx, s.fetchLimit)
	if err != nil {
		return fmt.Errorf("failed to fetch raw acceptance lines: %w", err)
	}
	result.Fetched = len(rows)
	if len(rows) == 0 {
		return nil
	}

	pending, malformed := ledger.AggregateAcceptances(rows)
	result.Skipped = len(malformed)
	for _, id := range malformed {
		s.logger.Warn("Raw acceptance line skipped: missing PO number, line, shipment, quantity or date",
			zap.Int64("raw_id", id))
	}
	processed := append(make([]int64, 0, len(rows)), malformed...)
	var deferred []int64

	totals, err := s.fullHistory(ctx, repos, pending)
	if err != nil {
		return err
	}

	poIDs := make([]string, 0, len(pending))
	seen := make(map[string]struct{}, len(pending))
	for i := range pending {
		id := pending[i].Key.PoID()
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			poIDs = append(poIDs, id)
		}
	}
	entries, err := repos.MergedPOs().FindByPoIDsForUpdate(ctx, poIDs)
	if err != nil {
		return fmt.Errorf("failed to load ledger entries: %w", err)
	}

	dirty := make(map[string]*ledger.MergedPO)
	for i := range pending {
		p := &pending[i]
		entry, ok := entries[p.Key.PoID()]
		if !ok {
			result.Unresolved += len(p.RowIDs)
			deferred = append(deferred, p.RowIDs...)
			result.noteError(fmt.Sprintf("no ledger entry for %s shipment %d", p.Key.PoID(), p.Key.ShipmentNo))
			s.logger.Warn("Acceptance left unprocessed: PO line not merged yet",
				zap.String("po_id", p.Key.PoID()),
				zap.Int("shipment_no", p.Key.ShipmentNo),
				zap.Int("rows", len(p.RowIDs)),
			)
			continue
		}

		agg, ok := totals[p.Key]
		if !ok {
			agg = *p
		}
		if entry.ApplyAcceptance(agg) {
			dirty[entry.PoID] = entry
		}
		processed = append(processed, p.RowIDs...)
	}

	updated := make([]string, 0, len(dirty))
	for poID := range dirty {
		updated = append(updated, poID)
	}
	sort.Strings(updated)
	for _, poID := range updated {
		if err := repos.MergedPOs().Update(ctx, dirty[poID]); err != nil {
			return fmt.Errorf("failed to update ledger entry %s: %w", poID, err)
		}
	}
	result.Updated = len(updated)
	result.Merged = result.Updated
	result.Unchanged = len(entries) - len(updated)

	marked, err := repos.RawAcceptances().MarkProcessed(ctx, processed)
	if err != nil {
		return fmt.Errorf("failed to mark raw acceptance lines processed: %w", err)
	}
	if err := repos.RawAcceptances().MarkAttempted(ctx, deferred); err != nil {
		return fmt.Errorf("failed to mark raw acceptance lines attempted: %w", err)
	}
	result.Processed = marked
	return nil
}

// fullHistory aggregates every stored row, processed or not, of the
// shipments in pending
func (s *Service) fullHistory(ctx context.Context, repos TransactionalRepositories, pending []ledger.AcceptanceAggregate) (map[ledger.AcceptanceKey]ledger.AcceptanceAggregate, error) {
	touched := make(map[ledger.AcceptanceKey]struct{}, len(pending))
	poNumbers := make([]string, 0, len(pending))
	seen := make(map[string]struct{})
	for i := range pending {
		k := pending[i].Key
		touched[k] = struct{}{}
		if _, ok := seen[k.PONumber]; !ok {
			seen[k.PONumber] = struct{}{}
			poNumbers = append(poNumbers, k.PONumber)
		}
	}
	if len(poNumbers) == 0 {
		return map[ledger.AcceptanceKey]ledger.AcceptanceAggregate{}, nil
	}

	history, err := repos.RawAcceptances().FindByPONumbers(ctx, poNumbers)
	if err != nil {
		return nil, fmt.Errorf("failed to load acceptance history: %w", err)
	}
	aggregates, _ := ledger.AggregateAcceptances(history)

	totals := make(map[ledger.AcceptanceKey]ledger.AcceptanceAggregate, len(touched))
	for _, agg := range aggregates {
		if _, ok := touched[agg.Key]; ok {
			totals[agg.Key] = agg
		}
	}
	return totals, nil
}
