package ledger

import (
	"fmt"
	"time"

	"github.com/erp/reconciler/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LedgerFilter narrows ledger listings
type LedgerFilter struct {
	shared.Filter
	ProjectID     *uuid.UUID
	SiteCode      string
	PublishedFrom *time.Time
	PublishedTo   *time.Time
}

// SummaryFilter narrows summaries
type SummaryFilter struct {
	ProjectID     *uuid.UUID
	PublishedFrom *time.Time
	PublishedTo   *time.Time
}

// RemainingFilter narrows the outstanding view. An empty stage means every
// outstanding stage.
type RemainingFilter struct {
	shared.Filter
	Stage     Stage
	ProjectID *uuid.UUID
}

// Totals is the financial position of a set of ledger entries
type Totals struct {
	EntryCount  int64           `json:"entry_count"`
	POValue     decimal.Decimal `json:"po_value"`
	AcceptedAC  decimal.Decimal `json:"accepted_ac"`
	AcceptedPAC decimal.Decimal `json:"accepted_pac"`
	Gap         decimal.Decimal `json:"gap"`
}

// WithGap fills Gap from the other totals
func (t Totals) WithGap() Totals {
	t.Gap = t.POValue.Sub(t.AcceptedAC).Sub(t.AcceptedPAC)
	return t
}

// ProjectTotals is Totals for one internal project
type ProjectTotals struct {
	ProjectID   uuid.UUID `json:"project_id"`
	ProjectName string    `json:"project_name"`
	Totals
}

// Granularity is the bucket size of a period summary
type Granularity string

const (
	GranularityYear  Granularity = "year"
	GranularityMonth Granularity = "month"
	GranularityWeek  Granularity = "week"
)

// MaxPeriods bounds how many buckets one period summary may produce
const MaxPeriods = 120

// Period is a half-open [Start, End) time bucket
type Period struct {
	Label string    `json:"label"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// PeriodTotals is Totals for one period. PO value is bucketed by publish
// date, AC by AC date and PAC by PAC date.
type PeriodTotals struct {
	Period
	Totals
}

// BuildPeriods splits [from, to] into consecutive buckets of the given
// granularity. Weeks are ISO weeks starting Monday.
func BuildPeriods(g Granularity, from, to time.Time) ([]Period, error) {
	from, to = from.UTC(), to.UTC()
	if to.Before(from) {
		return nil, shared.NewDomainError("INVALID_PERIOD", "Period end is before its start")
	}

	var start time.Time
	var next func(time.Time) time.Time
	var label func(time.Time) string

	switch g {
	case GranularityYear:
		start = time.Date(from.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
		next = func(t time.Time) time.Time { return t.AddDate(1, 0, 0) }
		label = func(t time.Time) string { return fmt.Sprintf("%04d", t.Year()) }
	case GranularityMonth:
		start = time.Date(from.Year(), from.Month(), 1, 0, 0, 0, 0, time.UTC)
		next = func(t time.Time) time.Time { return t.AddDate(0, 1, 0) }
		label = func(t time.Time) string { return t.Format("2006-01") }
	case GranularityWeek:
		d := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
		offset := (int(d.Weekday()) + 6) % 7
		start = d.AddDate(0, 0, -offset)
		next = func(t time.Time) time.Time { return t.AddDate(0, 0, 7) }
		label = func(t time.Time) string {
			y, w := t.ISOWeek()
			return fmt.Sprintf("%04d-W%02d", y, w)
		}
	default:
		return nil, shared.NewDomainError("INVALID_GRANULARITY", fmt.Sprintf("Unknown granularity %q", g))
	}

	periods := make([]Period, 0)
	for cur := start; !cur.After(to); cur = next(cur) {
		if len(periods) == MaxPeriods {
			return nil, shared.NewDomainError("TOO_MANY_PERIODS",
				fmt.Sprintf("Period summary is limited to %d buckets", MaxPeriods))
		}
		periods = append(periods, Period{Label: label(cur), Start: cur, End: next(cur)})
	}
	return periods, nil
}
