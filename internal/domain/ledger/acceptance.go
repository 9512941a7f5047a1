package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

var (
	acShare  = decimal.NewFromFloat(0.80)
	pacShare = decimal.NewFromFloat(0.20)
)

// ApplyAcceptance runs the AC/PAC derivation for one shipment aggregate and
// reports whether the entry changed.
//
// Shipment 1 sets the AC tranche (80%), and under AC_PAC_100 also the PAC
// tranche (20%) on the same date. Shipment 2 sets the PAC tranche only under
// AC1_80_PAC_20. Other shipments carry no financial effect. Accepted amounts
// never decrease and dates are never cleared or moved earlier.
func (m *MergedPO) ApplyAcceptance(agg AcceptanceAggregate) bool {
	changed := m.reclassify()

	switch agg.Key.ShipmentNo {
	case 1:
		if m.setAC(agg.AcceptedQty, agg.ProcessedAt) {
			changed = true
		}
		if m.PaymentTerm == PaymentTermACPAC100 && m.setPAC(agg.AcceptedQty, agg.ProcessedAt) {
			changed = true
		}
	case 2:
		if m.PaymentTerm == PaymentTermAC80PAC20 && m.setPAC(agg.AcceptedQty, agg.ProcessedAt) {
			changed = true
		}
	}

	if changed {
		m.Touch()
	}
	return changed
}

func (m *MergedPO) reclassify() bool {
	category := Classify(m.ItemDescription)
	if category == m.Category {
		return false
	}
	m.Category = category
	return true
}

func (m *MergedPO) setAC(acceptedQty decimal.Decimal, at time.Time) bool {
	total := tranche(m.UnitPrice, m.RequestedQty, acShare)
	accepted := tranche(m.UnitPrice, acceptedQty, acShare)
	changed := setAmount(&m.TotalACAmount, total)
	changed = raiseAmount(&m.AcceptedACAmount, accepted) || changed
	changed = advanceDate(&m.DateACOK, at) || changed
	return changed
}

func (m *MergedPO) setPAC(acceptedQty decimal.Decimal, at time.Time) bool {
	total := tranche(m.UnitPrice, m.RequestedQty, pacShare)
	accepted := tranche(m.UnitPrice, acceptedQty, pacShare)
	changed := setAmount(&m.TotalPACAmount, total)
	changed = raiseAmount(&m.AcceptedPACAmount, accepted) || changed
	changed = advanceDate(&m.DatePACOK, at) || changed
	return changed
}

func tranche(price, qty, share decimal.Decimal) decimal.Decimal {
	return price.Mul(qty).Mul(share).Round(amountScale)
}

func setAmount(dst *decimal.NullDecimal, v decimal.Decimal) bool {
	if dst.Valid && dst.Decimal.Equal(v) {
		return false
	}
	*dst = decimal.NewNullDecimal(v)
	return true
}

func raiseAmount(dst *decimal.NullDecimal, v decimal.Decimal) bool {
	if dst.Valid && !v.GreaterThan(dst.Decimal) {
		return false
	}
	*dst = decimal.NewNullDecimal(v)
	return true
}

func advanceDate(dst **time.Time, at time.Time) bool {
	at = at.UTC()
	if *dst != nil && !at.After(**dst) {
		return false
	}
	*dst = &at
	return true
}
