package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Pass names used as the "pass" attribute
const (
	PassMergePurchaseOrders = "merge_purchase_orders"
	PassMergeAcceptances    = "merge_acceptances"
	PassApplyRule           = "apply_rule"
	PassAssignSites         = "assign_sites"
)

// Attribute keys
var (
	AttrPass   = attribute.Key("pass")
	AttrKind   = attribute.Key("kind")
	AttrReason = attribute.Key("reason")
)

// passDurationBuckets spans quick incremental passes up to bulk backfills
var passDurationBuckets = []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300}

// ReconciliationMetrics counts what the ingestion and merge passes do
type ReconciliationMetrics struct {
	rowsIngested     *Counter
	rowsRejected     *Counter
	rowsMerged       *Counter
	rowsSkipped      *Counter
	rowsUnresolved   *Counter
	passFailures     *Counter
	ledgerReassigned *Counter
	passDuration     *Histogram
}

// NewReconciliationMetrics creates the instruments on the given meter
func NewReconciliationMetrics(meter metric.Meter) (*ReconciliationMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}

	m := &ReconciliationMetrics{}
	var err error
	counters := []struct {
		dst        **Counter
		name, desc string
		unit       string
	}{
		{&m.rowsIngested, "recon_rows_ingested_total", "Raw rows written by uploads", "{rows}"},
		{&m.rowsRejected, "recon_rows_rejected_total", "Uploaded rows rejected during coercion", "{rows}"},
		{&m.rowsMerged, "recon_rows_merged_total", "Ledger entries created or updated by merge passes", "{rows}"},
		{&m.rowsSkipped, "recon_rows_skipped_total", "Raw rows discarded by merge passes", "{rows}"},
		{&m.rowsUnresolved, "recon_rows_unresolved_total", "Raw rows left unprocessed for lack of a reference", "{rows}"},
		{&m.passFailures, "recon_pass_failures_total", "Merge passes rolled back", "{passes}"},
		{&m.ledgerReassigned, "recon_ledger_reassigned_total", "Ledger entries moved to another internal project", "{rows}"},
	}
	for _, c := range counters {
		if *c.dst, err = NewCounter(meter, c.name, c.desc, c.unit); err != nil {
			return nil, err
		}
	}

	m.passDuration, err = NewHistogram(meter, "recon_pass_duration_seconds", "Duration of reconciliation passes", "s", passDurationBuckets...)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// RecordIngest records an upload's accepted and rejected rows
func (m *ReconciliationMetrics) RecordIngest(ctx context.Context, kind string, ingested, rejected int) {
	if m == nil {
		return
	}
	m.rowsIngested.Add(ctx, int64(ingested), AttrKind.String(kind))
	m.rowsRejected.Add(ctx, int64(rejected), AttrKind.String(kind))
}

// RecordMerge records the outcome of a merge pass
func (m *ReconciliationMetrics) RecordMerge(ctx context.Context, pass string, merged, skipped, unresolved int, d time.Duration) {
	if m == nil {
		return
	}
	attr := AttrPass.String(pass)
	m.rowsMerged.Add(ctx, int64(merged), attr)
	m.rowsSkipped.Add(ctx, int64(skipped), attr)
	m.rowsUnresolved.Add(ctx, int64(unresolved), attr)
	m.passDuration.RecordDuration(ctx, d, attr)
}

// RecordReassigned records ledger entries moved between projects
func (m *ReconciliationMetrics) RecordReassigned(ctx context.Context, pass string, rows int64, d time.Duration) {
	if m == nil {
		return
	}
	attr := AttrPass.String(pass)
	m.ledgerReassigned.Add(ctx, rows, attr)
	m.passDuration.RecordDuration(ctx, d, attr)
}

// RecordFailure records a rolled back pass
func (m *ReconciliationMetrics) RecordFailure(ctx context.Context, pass, reason string) {
	if m == nil {
		return
	}
	m.passFailures.Inc(ctx, AttrPass.String(pass), AttrReason.String(reason))
}

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewReconciliationMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
