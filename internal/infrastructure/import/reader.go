package csvimport

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// Format is the container format of an upload
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// zip local file header, the container of every XLSX workbook
var zipMagic = []byte{'P', 'K', 0x03, 0x04}

// DetectFormat picks the format from the file extension, falling back to
// sniffing the content when the name carries no known extension
func DetectFormat(fileName string, head []byte) (Format, error) {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".csv", ".txt":
		return FormatCSV, nil
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	case "":
		if bytes.HasPrefix(head, zipMagic) {
			return FormatXLSX, nil
		}
		return FormatCSV, nil
	}
	return "", ErrUnsupportedFormat
}

// ReadOption passes format specific settings through ReadTable. Options for
// the format the file does not turn out to be are ignored.
type ReadOption func(*readSettings)

type readSettings struct {
	csv  []ParserOption
	xlsx []XLSXOption
}

// WithCSVOptions applies opts when the upload is a CSV file
func WithCSVOptions(opts ...ParserOption) ReadOption {
	return func(s *readSettings) {
		s.csv = append(s.csv, opts...)
	}
}

// WithXLSXOptions applies opts when the upload is a workbook
func WithXLSXOptions(opts ...XLSXOption) ReadOption {
	return func(s *readSettings) {
		s.xlsx = append(s.xlsx, opts...)
	}
}

// ParseDelimiter reads a user supplied CSV delimiter. Empty means comma and
// "tab" or "\t" mean a tab.
func ParseDelimiter(s string) (rune, error) {
	switch s {
	case "":
		return ',', nil
	case "tab", `\t`:
		return '\t', nil
	}
	r, size := utf8.DecodeRuneInString(s)
	if size != len(s) || r == utf8.RuneError || r == '"' || r == '\r' || r == '\n' {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDelimiter, s)
	}
	return r, nil
}

// ReadTable reads an upload of at most maxSize bytes (0 means unlimited)
// into a table
func ReadTable(fileName string, r io.Reader, maxSize int64, errs *ErrorCollection, opts ...ReadOption) (*Table, error) {
	var settings readSettings
	for _, opt := range opts {
		opt(&settings)
	}

	if maxSize > 0 {
		r = io.LimitReader(r, maxSize+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if maxSize > 0 && int64(len(data)) > maxSize {
		return nil, ErrFileTooLarge
	}
	if len(data) == 0 {
		return nil, ErrEmptyFile
	}

	format, err := DetectFormat(fileName, data)
	if err != nil {
		return nil, err
	}
	if format == FormatXLSX {
		return NewXLSXReader(settings.xlsx...).Parse(bytes.NewReader(data))
	}
	return NewCSVParser(settings.csv...).Parse(bytes.NewReader(data), errs)
}
