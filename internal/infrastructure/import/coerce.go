package csvimport

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

var errNotInteger = errors.New("not an integer")

// dateLayouts are tried in order. Day-first layouts come before month-first
// ones since the upstream exports are day-first.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006/01/02",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"02/01/2006",
	"02-01-2006",
	"02.01.2006",
	"2-Jan-2006",
	"02-Jan-06",
	"Jan 2, 2006",
}

// Excel serial dates beyond this are rejected as implausible
const maxExcelSerial = 2958465 // 9999-12-31

// parseDecimal reads an amount. Thousands separators are dropped and a lone
// comma followed by other than three digits is taken as the decimal point.
func parseDecimal(s string) (decimal.NullDecimal, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	if s == "" {
		return decimal.NullDecimal{}, nil
	}
	if strings.Contains(s, ".") {
		s = strings.ReplaceAll(s, ",", "")
	} else if strings.Count(s, ",") == 1 {
		if idx := strings.Index(s, ","); len(s)-idx-1 == 3 {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.Replace(s, ",", ".", 1)
		}
	} else {
		s = strings.ReplaceAll(s, ",", "")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(d), nil
}

// parseInt reads a whole number, accepting a zero fraction such as "3.0"
// which spreadsheets emit for numeric cells
func parseInt(s string) (*int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		return &n, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil || !d.Equal(d.Truncate(0)) {
		return nil, errNotInteger
	}
	n := int(d.IntPart())
	return &n, nil
}

// parseDate reads a date in any known layout or as an Excel serial number.
// Values without a zone are taken as UTC.
func parseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial > 0 && serial <= maxExcelSerial {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return nil, err
		}
		t = t.UTC()
		return &t, nil
	}
	return nil, errors.New("unrecognized date")
}
