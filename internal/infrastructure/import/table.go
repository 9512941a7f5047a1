// Package csvimport reads uploaded PO and acceptance files (CSV or XLSX) into
// raw ledger rows, collecting per-row coercion errors instead of failing the
// whole upload.
package csvimport

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

// Row is one data row keyed by normalized header
type Row struct {
	LineNumber int
	Data       map[string]string
}

// Get returns the value for a column by normalized header name
func (r *Row) Get(header string) string {
	return r.Data[header]
}

// IsEmpty returns true if the row has no non-empty values
func (r *Row) IsEmpty() bool {
	for _, v := range r.Data {
		if v != "" {
			return false
		}
	}
	return true
}

// Table is a header plus its data rows, whatever the source format
type Table struct {
	Headers []string
	Rows    []*Row
}

// HasHeader checks if a normalized header exists
func (t *Table) HasHeader(name string) bool {
	for _, h := range t.Headers {
		if h == name {
			return true
		}
	}
	return false
}

// MissingHeaders returns the required headers the table lacks
func (t *Table) MissingHeaders(required []string) []string {
	var missing []string
	for _, h := range required {
		if !t.HasHeader(h) {
			missing = append(missing, h)
		}
	}
	return missing
}

// NormalizeHeader folds case and collapses every run of non-alphanumerics
// into one underscore, so "PO Line No." and "po_line_no" compare equal.
// Known aliases map to their canonical column name.
func NormalizeHeader(h string) string {
	folded := cases.Fold().String(strings.TrimSpace(h))

	var sb strings.Builder
	pendingSep := false
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSep && sb.Len() > 0 {
				sb.WriteByte('_')
			}
			pendingSep = false
			sb.WriteRune(r)
			continue
		}
		pendingSep = true
	}

	key := sb.String()
	if canonical, ok := headerAliases[key]; ok {
		return canonical
	}
	return key
}

// newTable builds a table from raw records, the first being the header.
// Rows are numbered from 2 so numbers match what a spreadsheet shows.
func newTable(records [][]string) (*Table, error) {
	if len(records) == 0 {
		return nil, ErrMissingHeader
	}

	headers := make([]string, len(records[0]))
	nonEmpty := 0
	for i, h := range records[0] {
		headers[i] = NormalizeHeader(h)
		if headers[i] != "" {
			nonEmpty++
		}
	}
	if nonEmpty == 0 {
		return nil, ErrMissingHeader
	}

	t := &Table{Headers: headers, Rows: make([]*Row, 0, len(records)-1)}
	for i, record := range records[1:] {
		row := &Row{LineNumber: i + 2, Data: make(map[string]string, len(headers))}
		for j, header := range headers {
			if header == "" {
				continue
			}
			if j < len(record) {
				row.Data[header] = strings.TrimSpace(record[j])
			} else {
				row.Data[header] = ""
			}
		}
		if row.IsEmpty() {
			continue
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}
