package csvimport

import (
	"errors"
	"fmt"
	"strings"

	"github.com/erp/reconciler/internal/domain/batch"
)

// Import error codes
const (
	ErrCodeImportMalformedRow  = "ERR_IMPORT_MALFORMED_ROW"
	ErrCodeImportInvalidType   = "ERR_IMPORT_INVALID_TYPE"
	ErrCodeImportInvalidFormat = "ERR_IMPORT_INVALID_FORMAT"
	ErrCodeImportInvalidRange  = "ERR_IMPORT_INVALID_RANGE"
)

// Common import errors
var (
	ErrEmptyFile         = errors.New("file is empty")
	ErrInvalidEncoding   = errors.New("invalid file encoding, expected UTF-8")
	ErrMissingHeader     = errors.New("file missing header row")
	ErrNoDataRows        = errors.New("file contains no data rows")
	ErrFileTooLarge      = errors.New("file exceeds maximum allowed size")
	ErrUnsupportedFormat = errors.New("unsupported file format, expected .csv or .xlsx")
	ErrMissingKeyColumns = errors.New("file lacks required columns")
	ErrNoWorksheet       = errors.New("workbook has no worksheet")
	ErrInvalidDelimiter  = errors.New("invalid CSV delimiter")
	ErrSheetNotFound     = errors.New("worksheet not found")
)

// MissingColumnsError lists the required columns a file lacks
type MissingColumnsError struct {
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("missing required columns: %s", strings.Join(e.Columns, ", "))
}

// Unwrap lets errors.Is match ErrMissingKeyColumns
func (e *MissingColumnsError) Unwrap() error {
	return ErrMissingKeyColumns
}

// RowError represents an error in a specific row
type RowError struct {
	Row     int    `json:"row"`
	Column  string `json:"column"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Value   string `json:"value,omitempty"`
}

// Error implements the error interface
func (e RowError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("row %d, column '%s': %s", e.Row, e.Column, e.Message)
	}
	return fmt.Sprintf("row %d: %s", e.Row, e.Message)
}

// ErrorCollection collects row errors up to a limit while still counting
// every row that failed
type ErrorCollection struct {
	errors     []RowError
	maxErrors  int
	totalCount int
	malformed  int
	rows       map[int]struct{}
}

// NewErrorCollection creates a new ErrorCollection with a maximum error limit
func NewErrorCollection(maxErrors int) *ErrorCollection {
	if maxErrors <= 0 {
		maxErrors = batch.MaxRowErrors
	}
	return &ErrorCollection{
		errors:    make([]RowError, 0),
		maxErrors: maxErrors,
		rows:      make(map[int]struct{}),
	}
}

// Add adds an error to the collection
func (ec *ErrorCollection) Add(err RowError) {
	ec.totalCount++
	ec.rows[err.Row] = struct{}{}
	if len(ec.errors) < ec.maxErrors {
		ec.errors = append(ec.errors, err)
	}
}

// AddTypeError records a value that does not parse as the expected type
func (ec *ErrorCollection) AddTypeError(row int, column, expectedType, value string) {
	ec.Add(RowError{
		Row:     row,
		Column:  column,
		Code:    ErrCodeImportInvalidType,
		Message: fmt.Sprintf("expected %s", expectedType),
		Value:   value,
	})
}

// AddRangeError records a value outside its allowed range
func (ec *ErrorCollection) AddRangeError(row int, column, message, value string) {
	ec.Add(RowError{Row: row, Column: column, Code: ErrCodeImportInvalidRange, Message: message, Value: value})
}

// AddMalformedRow records a row the reader could not split into fields
func (ec *ErrorCollection) AddMalformedRow(row int, message string) {
	ec.malformed++
	ec.Add(RowError{Row: row, Code: ErrCodeImportMalformedRow, Message: message})
}

// Errors returns the collected errors
func (ec *ErrorCollection) Errors() []RowError {
	return ec.errors
}

// TotalCount returns the total number of errors including those not collected
func (ec *ErrorCollection) TotalCount() int {
	return ec.totalCount
}

// RejectedRows returns how many distinct rows had at least one error
func (ec *ErrorCollection) RejectedRows() int {
	return len(ec.rows)
}

// malformedRows counts rows dropped before they reached a table
func (ec *ErrorCollection) malformedRows() int {
	return ec.malformed
}

// HasErrors returns true if there are any errors
func (ec *ErrorCollection) HasErrors() bool {
	return ec.totalCount > 0
}

// IsTruncated returns true if some errors were not collected due to the limit
func (ec *ErrorCollection) IsTruncated() bool {
	return ec.totalCount > ec.maxErrors
}

// BatchErrors converts the collected errors for storage on an upload batch
func (ec *ErrorCollection) BatchErrors() []batch.RowError {
	out := make([]batch.RowError, len(ec.errors))
	for i, e := range ec.errors {
		out[i] = batch.RowError{Row: e.Row, Column: e.Column, Code: e.Code, Message: e.Message, Value: e.Value}
	}
	return out
}

// String returns a string representation of all errors
func (ec *ErrorCollection) String() string {
	if !ec.HasErrors() {
		return "no errors"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d error(s) found", ec.totalCount))
	if ec.IsTruncated() {
		sb.WriteString(fmt.Sprintf(" (showing first %d)", ec.maxErrors))
	}
	sb.WriteString(":\n")
	for _, err := range ec.errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}
