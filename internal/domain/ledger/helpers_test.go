package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

func intPtr(v int) *int { return &v }

func at(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func nullDec(s string) decimal.NullDecimal { return decimal.NewNullDecimal(dec(s)) }

func rawPO(id int64, po string, line int, qty string, published *time.Time) RawPOLine {
	return RawPOLine{
		ID:           id,
		PONumber:     po,
		LineNo:       intPtr(line),
		SiteCode:     "SITE-1",
		UnitPrice:    nullDec("100"),
		RequestedQty: nullDec(qty),
		PublishDate:  published,
	}
}
