package csvimport

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"unicode/utf8"
)

// CSVParser reads a UTF-8 CSV upload, stripping a leading BOM
type CSVParser struct {
	delimiter  rune
	lazyQuotes bool
}

// ParserOption is a functional option for CSVParser configuration
type ParserOption func(*CSVParser)

// WithDelimiter sets the field delimiter (default is comma)
func WithDelimiter(d rune) ParserOption {
	return func(p *CSVParser) {
		p.delimiter = d
	}
}

// WithLazyQuotes enables lazy quote handling
func WithLazyQuotes(lazy bool) ParserOption {
	return func(p *CSVParser) {
		p.lazyQuotes = lazy
	}
}

// NewCSVParser creates a CSV parser
func NewCSVParser(opts ...ParserOption) *CSVParser {
	p := &CSVParser{delimiter: ',', lazyQuotes: true}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse reads the whole CSV into a table. Rows the CSV reader cannot split
// are reported in errs and left out of the table.
func (p *CSVParser) Parse(r io.Reader, errs *ErrorCollection) (*Table, error) {
	br := bufio.NewReader(r)

	// UTF-8 BOM: 0xEF, 0xBB, 0xBF
	if bom, err := br.Peek(3); err == nil && bom[0] == 0xEF && bom[1] == 0xBB && bom[2] == 0xBF {
		_, _ = br.Discard(3)
	}

	if err := validateUTF8(br); err != nil {
		return nil, err
	}

	reader := csv.NewReader(br)
	reader.Comma = p.delimiter
	reader.LazyQuotes = p.lazyQuotes
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = false

	var records [][]string
	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			if line == 1 {
				return nil, fmt.Errorf("failed to read header: %w", err)
			}
			if errs != nil {
				errs.AddMalformedRow(line, err.Error())
			}
			records = append(records, nil)
			continue
		}
		records = append(records, record)
	}

	return newTable(records)
}

// validateUTF8 checks that the leading content is valid UTF-8
func validateUTF8(r *bufio.Reader) error {
	const checkSize = 4096
	content, err := r.Peek(checkSize)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return fmt.Errorf("failed to read file for encoding validation: %w", err)
	}
	if len(content) == 0 {
		return ErrEmptyFile
	}
	// A multi-byte rune may straddle the peek window
	if len(content) == checkSize {
		for i := 0; i < utf8.UTFMax && len(content) > 0 && !utf8.Valid(content); i++ {
			content = content[:len(content)-1]
		}
	}
	if !utf8.Valid(content) {
		return ErrInvalidEncoding
	}
	return nil
}
