package dataset

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// File types accepted by Parse.
const (
	TypeCSV  = "text/csv"
	TypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// FileType maps a filename to the MIME type recorded in report metadata.
func FileType(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx":
		return TypeXLSX
	default:
		return TypeCSV
	}
}

// Supported reports whether the extension is one Parse understands.
func Supported(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv", ".xlsx":
		return true
	}
	return false
}

// Parse reads r as CSV or XLSX depending on the filename extension.
func Parse(filename string, r io.Reader) (*Table, error) {
	if FileType(filename) == TypeXLSX {
		return ParseXLSX(filename, r)
	}
	return ParseCSV(filename, r)
}

// ParseCSV reads a header row followed by records. The delimiter is sniffed
// from the header line among comma, semicolon and tab.
func ParseCSV(name string, r io.Reader) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		return nil, &FormatError{File: name, Line: invalidUTF8Line(data), Err: errors.New("invalid UTF-8")}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &FormatError{File: name, Line: 1, Err: errMissingHeader}
	}

	cr := csv.NewReader(bytes.NewReader(data))
	cr.Comma = sniffDelimiter(data)
	cr.FieldsPerRecord = 0 // first record fixes the width
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, csvFormatError(name, err)
	}

	var records [][]string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, csvFormatError(name, err)
		}
		records = append(records, rec)
	}
	return NewTable(name, header, records)
}

func csvFormatError(name string, err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return &FormatError{File: name, Line: pe.Line, Err: pe.Err}
	}
	return &FormatError{File: name, Err: err}
}

// sniffDelimiter picks the candidate that occurs most often in the first line
// outside quoted sections. Ties keep the comma.
func sniffDelimiter(data []byte) rune {
	line, _ := bufio.NewReader(bytes.NewReader(data)).ReadString('\n')
	counts := map[rune]int{}
	inQuotes := false
	for _, ch := range line {
		switch {
		case ch == '"':
			inQuotes = !inQuotes
		case !inQuotes && (ch == ',' || ch == ';' || ch == '\t'):
			counts[ch]++
		}
	}
	best := ','
	for _, cand := range []rune{';', '\t'} {
		if counts[cand] > counts[best] {
			best = cand
		}
	}
	return best
}

func invalidUTF8Line(data []byte) int {
	line := 1
	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size <= 1 {
			return line
		}
		if r == '\n' {
			line++
		}
		data = data[size:]
	}
	return line
}
