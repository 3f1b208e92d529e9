package dataset

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ParseXLSX reads the first worksheet of an Excel workbook. The first non-empty row is the header;
// short rows are padded with empty (missing) cells.
func ParseXLSX(name string, r io.Reader) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, &FormatError{File: name, Err: fmt.Errorf("open workbook: %w", err)}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &FormatError{File: name, Err: errors.New("workbook has no sheets")}
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, &FormatError{File: name, Err: fmt.Errorf("read sheet %q: %w", sheets[0], err)}
	}

	var header []string
	var records [][]string
	for _, row := range rows {
		if isBlankRow(row) {
			continue
		}
		if header == nil {
			header = row
			continue
		}
		if len(row) > len(header) {
			return nil, &FormatError{
				File: name,
				Line: len(records) + 2,
				Err:  fmt.Errorf("expected %d fields, got %d", len(header), len(row)),
			}
		}
		padded := make([]string, len(header))
		copy(padded, row)
		records = append(records, padded)
	}
	if header == nil {
		return nil, &FormatError{File: name, Line: 1, Err: errMissingHeader}
	}
	return NewTable(name, header, records)
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
