package csvimport

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// XLSXReader reads one worksheet of an uploaded workbook, the first by default
type XLSXReader struct {
	sheet string
}

// XLSXOption is a functional option for XLSXReader configuration
type XLSXOption func(*XLSXReader)

// WithSheet reads the named sheet instead of the first one
func WithSheet(name string) XLSXOption {
	return func(x *XLSXReader) {
		x.sheet = name
	}
}

// NewXLSXReader creates an XLSX reader
func NewXLSXReader(opts ...XLSXOption) *XLSXReader {
	x := &XLSXReader{}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// Parse reads the worksheet into a table. Cell values are read raw, so date
// cells arrive as Excel serial numbers and are decoded by the row mappers.
func (x *XLSXReader) Parse(r io.Reader) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNoWorksheet
	}
	sheet := sheets[0]
	if x.sheet != "" {
		if idx, _ := f.GetSheetIndex(x.sheet); idx < 0 {
			return nil, fmt.Errorf("%w: %s", ErrSheetNotFound, x.sheet)
		}
		sheet = x.sheet
	}

	records, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}
	if len(records) == 0 {
		return nil, ErrEmptyFile
	}
	return newTable(records)
}
