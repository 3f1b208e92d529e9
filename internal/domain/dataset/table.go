package dataset

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind is the inferred type of a column.
type Kind string

const (
	KindNumeric Kind = "numeric"
	KindOther   Kind = "other"
)

// missingTokens mirrors the markers spreadsheet exports commonly use for empty cells.
var missingTokens = map[string]struct{}{
	"": {}, "#N/A": {}, "#N/A N/A": {}, "#NA": {}, "-1.#IND": {}, "-1.#QNAN": {},
	"-NaN": {}, "-nan": {}, "1.#IND": {}, "1.#QNAN": {}, "<NA>": {}, "N/A": {},
	"NA": {}, "NULL": {}, "NaN": {}, "None": {}, "n/a": {}, "nan": {}, "null": {},
}

// IsMissing reports whether a raw cell value counts as a missing value.
func IsMissing(v string) bool {
	_, ok := missingTokens[strings.TrimSpace(v)]
	return ok
}

// Column is one named, typed column. Raw, Values and Missing always have the table's row count.
type Column struct {
	Name    string
	Kind    Kind
	Raw     []string
	Values  []float64 // parsed numbers, NaN where missing; nil for non-numeric columns
	Missing []bool
}

// MissingCount returns the number of missing cells in the column.
func (c *Column) MissingCount() int {
	n := 0
	for _, m := range c.Missing {
		if m {
			n++
		}
	}
	return n
}

// Numbers returns the non-missing numeric values in row order.
func (c *Column) Numbers() []float64 {
	if c.Kind != KindNumeric {
		return nil
	}
	out := make([]float64, 0, len(c.Values))
	for i, v := range c.Values {
		if !c.Missing[i] {
			out = append(out, v)
		}
	}
	return out
}

// Table is an in-memory tabular dataset with unique column names and equal-length columns.
type Table struct {
	Name    string
	Columns []Column
	rows    int
}

// Stats holds the shape statistics shown on the dataset overview.
type Stats struct {
	Records        int `json:"records"`
	Features       int `json:"features"`
	NumericColumns int `json:"numeric_columns"`
	MissingValues  int `json:"missing_values"`
}

// NewTable builds a Table from a header and records, inferring column kinds by value inspection.
// Every record must have exactly len(header) fields.
func NewTable(name string, header []string, records [][]string) (*Table, error) {
	if len(header) == 0 {
		return nil, &FormatError{File: name, Line: 1, Err: errMissingHeader}
	}
	seen := make(map[string]struct{}, len(header))
	cols := make([]Column, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("Unnamed: %d", i)
		}
		if _, dup := seen[h]; dup {
			return nil, &FormatError{File: name, Line: 1, Err: fmt.Errorf("duplicate column name %q", h)}
		}
		seen[h] = struct{}{}
		cols[i] = Column{
			Name:    h,
			Raw:     make([]string, 0, len(records)),
			Missing: make([]bool, 0, len(records)),
		}
	}

	for r, rec := range records {
		if len(rec) != len(header) {
			return nil, &FormatError{
				File: name,
				Line: r + 2,
				Err:  fmt.Errorf("expected %d fields, got %d", len(header), len(rec)),
			}
		}
		for i, v := range rec {
			cols[i].Raw = append(cols[i].Raw, v)
			cols[i].Missing = append(cols[i].Missing, IsMissing(v))
		}
	}

	for i := range cols {
		inferKind(&cols[i])
	}
	return &Table{Name: name, Columns: cols, rows: len(records)}, nil
}

// inferKind marks a column numeric when every non-missing cell parses as a float.
// A column with no values at all is numeric as well, matching how dataframes type all-NaN columns.
// Non-finite cells such as "inf" or "NAN" count as missing in a numeric column.
func inferKind(c *Column) {
	vals := make([]float64, len(c.Raw))
	for i, raw := range c.Raw {
		if c.Missing[i] {
			vals[i] = math.NaN()
			continue
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil && !errors.Is(err, strconv.ErrRange) {
			c.Kind = KindOther
			return
		}
		vals[i] = f
	}
	for i, v := range vals {
		if math.IsInf(v, 0) || math.IsNaN(v) {
			vals[i] = math.NaN()
			c.Missing[i] = true
		}
	}
	c.Kind = KindNumeric
	c.Values = vals
}

// Records returns the number of rows.
func (t *Table) Records() int { return t.rows }

// Features returns the number of columns.
func (t *Table) Features() int { return len(t.Columns) }

// Header returns the column names in order.
func (t *Table) Header() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// Column looks a column up by name.
func (t *Table) Column(name string) (*Column, bool) {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i], true
		}
	}
	return nil, false
}

// NumericColumns returns the numeric columns in table order.
func (t *Table) NumericColumns() []*Column {
	var out []*Column
	for i := range t.Columns {
		if t.Columns[i].Kind == KindNumeric {
			out = append(out, &t.Columns[i])
		}
	}
	return out
}

// Stats computes the overview statistics in a single pass over the cells.
func (t *Table) Stats() Stats {
	s := Stats{Records: t.rows, Features: len(t.Columns)}
	for i := range t.Columns {
		c := &t.Columns[i]
		if c.Kind == KindNumeric {
			s.NumericColumns++
		}
		for _, m := range c.Missing {
			if m {
				s.MissingValues++
			}
		}
	}
	return s
}

// Head returns up to n rows as raw strings.
func (t *Table) Head(n int) [][]string {
	if n > t.rows {
		n = t.rows
	}
	if n < 0 {
		n = 0
	}
	out := make([][]string, n)
	for r := 0; r < n; r++ {
		row := make([]string, len(t.Columns))
		for i := range t.Columns {
			row[i] = t.Columns[i].Raw[r]
		}
		out[r] = row
	}
	return out
}
