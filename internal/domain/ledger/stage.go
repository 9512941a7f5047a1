package ledger

import "github.com/shopspring/decimal"

// Stage classifies a ledger entry by how far acceptance has progressed
type Stage string

const (
	StageWaitingAC  Stage = "WAITING_AC"
	StageWaitingPAC Stage = "WAITING_PAC"
	StagePartialGap Stage = "PARTIAL_GAP"
	StageSettled    Stage = "SETTLED"
)

// IsValid checks if the stage is valid
func (s Stage) IsValid() bool {
	switch s {
	case StageWaitingAC, StageWaitingPAC, StagePartialGap, StageSettled:
		return true
	}
	return false
}

// IsOutstanding reports whether the stage can appear on the outstanding report
func (s Stage) IsOutstanding() bool {
	return s == StageWaitingAC || s == StageWaitingPAC || s == StagePartialGap
}

// GapTolerance absorbs rounding noise when deciding whether a gap remains
var GapTolerance = decimal.RequireFromString("0.01")

// Remaining returns line value minus accepted AC and PAC, nulls counting as zero
func (m *MergedPO) Remaining() decimal.Decimal {
	return m.LineValue.Sub(nullZero(m.AcceptedACAmount)).Sub(nullZero(m.AcceptedPACAmount))
}

// IsOutstanding reports whether the remaining gap exceeds the tolerance
func (m *MergedPO) IsOutstanding() bool {
	return IsOutstandingAmount(m.Remaining())
}

// IsOutstandingAmount applies the gap tolerance to a remaining amount
func IsOutstandingAmount(remaining decimal.Decimal) bool {
	return remaining.Abs().GreaterThan(GapTolerance)
}

// Stage returns WAITING_AC until the AC date is set, WAITING_PAC until the PAC
// date is set, then PARTIAL_GAP while a gap remains and SETTLED once it closes.
func (m *MergedPO) Stage() Stage {
	switch {
	case m.DateACOK == nil:
		return StageWaitingAC
	case m.DatePACOK == nil:
		return StageWaitingPAC
	case m.IsOutstanding():
		return StagePartialGap
	default:
		return StageSettled
	}
}

func nullZero(d decimal.NullDecimal) decimal.Decimal {
	if !d.Valid {
		return decimal.Zero
	}
	return d.Decimal
}
