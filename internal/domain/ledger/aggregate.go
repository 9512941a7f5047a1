package ledger

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// AcceptanceAggregate is the summed acceptance of one shipment
type AcceptanceAggregate struct {
	Key         AcceptanceKey
	AcceptedQty decimal.Decimal
	ProcessedAt time.Time
	RowIDs      []int64
}

// AggregateAcceptances groups rows by (PO number, line, shipment), summing the
// accepted quantity and keeping the latest processing date. Rows missing any
// key field are dropped and returned as malformed. Each row ID counts once.
func AggregateAcceptances(rows []RawAcceptanceLine) (aggregates []AcceptanceAggregate, malformed []int64) {
	index := make(map[AcceptanceKey]int)
	seen := make(map[int64]struct{}, len(rows))
	for i := range rows {
		row := rows[i]
		if _, dup := seen[row.ID]; dup {
			continue
		}
		seen[row.ID] = struct{}{}

		key, ok := row.Key()
		if !ok {
			malformed = append(malformed, row.ID)
			continue
		}
		pos, exists := index[key]
		if !exists {
			index[key] = len(aggregates)
			aggregates = append(aggregates, AcceptanceAggregate{
				Key:         key,
				AcceptedQty: row.AcceptedQty.Decimal,
				ProcessedAt: row.ProcessedAt.UTC(),
				RowIDs:      []int64{row.ID},
			})
			continue
		}
		agg := &aggregates[pos]
		agg.AcceptedQty = agg.AcceptedQty.Add(row.AcceptedQty.Decimal)
		if row.ProcessedAt.After(agg.ProcessedAt) {
			agg.ProcessedAt = row.ProcessedAt.UTC()
		}
		agg.RowIDs = append(agg.RowIDs, row.ID)
	}

	sort.Slice(aggregates, func(i, j int) bool {
		a, b := aggregates[i].Key, aggregates[j].Key
		if a.PONumber != b.PONumber {
			return a.PONumber < b.PONumber
		}
		if a.LineNo != b.LineNo {
			return a.LineNo < b.LineNo
		}
		return a.ShipmentNo < b.ShipmentNo
	})
	return aggregates, malformed
}
