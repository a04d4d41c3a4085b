// Package genotype loads the single-cell genotype matrix and the mutation
// names that drive tree construction.
//
// The matrix holds one line per cell with one character per mutation.
// Whitespace inside a line is ignored, so "0 1 1" and "011" are the same
// row. Blank lines are skipped. The first row fixes the mutation count;
// a shorter row leaves its trailing mutations missing and a longer one is
// cut to size.
package genotype

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"unicode"
)

// Value is a single matrix cell.
type Value uint8

const (
	// Absent means the mutation was not observed in the cell.
	Absent Value = 0

	// Present means the mutation was observed in the cell.
	Present Value = 1

	// Missing means the cell could not be called for the mutation.
	Missing Value = 2
)

func (v Value) String() string {
	switch v {
	case Absent:
		return "0"
	case Present:
		return "1"
	case Missing:
		return "2"
	}
	return fmt.Sprintf("value(%d)", uint8(v))
}

// Matrix is a cells x mutations genotype matrix. It is immutable once
// read.
type Matrix struct {
	rows    [][]Value
	columns int
}

// NewMatrix builds a matrix from rows. The first row fixes the column
// count and must be non-empty; other rows may be shorter or longer.
func NewMatrix(rows [][]Value) (*Matrix, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, &LoadError{Code: ErrCodeEmptyMatrix, Message: "matrix has no values"}
	}
	m := &Matrix{columns: len(rows[0])}
	for i, row := range rows {
		for _, v := range row {
			if v > Missing {
				return nil, &LoadError{Code: ErrCodeBadValue, Line: i + 1, Message: fmt.Sprintf("value %d out of range", v)}
			}
		}
		m.add(row)
	}
	return m, nil
}

// add stores row, dropping values past the column count.
func (m *Matrix) add(row []Value) {
	m.rows = append(m.rows, append([]Value(nil), row[:min(len(row), m.columns)]...))
}

// ReadMatrix parses a matrix from r.
func ReadMatrix(r io.Reader) (*Matrix, error) {
	m := &Matrix{}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	line := 0
	for sc.Scan() {
		line++
		text := sc.Text()
		if strings.TrimSpace(text) == "" {
			continue
		}
		row, err := parseRow(text, line)
		if err != nil {
			return nil, err
		}
		if len(m.rows) == 0 {
			m.columns = len(row)
		}
		m.add(row)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read matrix: %w", err)
	}
	if len(m.rows) == 0 {
		return nil, &LoadError{Code: ErrCodeEmptyMatrix, Message: "matrix has no rows"}
	}
	return m, nil
}

func parseRow(text string, line int) ([]Value, error) {
	row := make([]Value, 0, len(text))
	for _, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		switch r {
		case '0':
			row = append(row, Absent)
		case '1':
			row = append(row, Present)
		case '2':
			row = append(row, Missing)
		default:
			return nil, &LoadError{
				Code:    ErrCodeBadValue,
				Line:    line,
				Message: fmt.Sprintf("unexpected value %q, want 0, 1 or 2", r),
			}
		}
	}
	return row, nil
}

// Rows returns the number of cells.
func (m *Matrix) Rows() int { return len(m.rows) }

// Columns returns the number of mutations.
func (m *Matrix) Columns() int { return m.columns }

// At returns the value of mutation j in cell i. Cells past the end of a
// short row are Missing.
func (m *Matrix) At(i, j int) Value {
	if row := m.rows[i]; j < len(row) {
		return row[j]
	}
	return Missing
}

// Row returns cell i padded with Missing to the column count.
func (m *Matrix) Row(i int) []Value {
	row := make([]Value, m.columns)
	for j := range row {
		row[j] = m.At(i, j)
	}
	return row
}

// ColumnCounts tallies the values of mutation j across all cells.
type ColumnCounts struct {
	Present int `json:"present"`
	Absent  int `json:"absent"`
	Missing int `json:"missing"`
}

// Counts returns the per-value tally of column j.
func (m *Matrix) Counts(j int) ColumnCounts {
	var c ColumnCounts
	for i := range m.rows {
		switch m.At(i, j) {
		case Present:
			c.Present++
		case Absent:
			c.Absent++
		case Missing:
			c.Missing++
		}
	}
	return c
}

// Consistent reports whether cell i agrees with profile, the presence of
// every mutation in a clone. Missing values agree with anything.
func (m *Matrix) Consistent(i int, profile []bool) bool {
	for j := range min(m.columns, len(profile)) {
		switch m.At(i, j) {
		case Present:
			if !profile[j] {
				return false
			}
		case Absent:
			if profile[j] {
				return false
			}
		}
	}
	return true
}

// ConsistentCells counts the cells that agree with profile.
func (m *Matrix) ConsistentCells(profile []bool) int {
	n := 0
	for i := range m.rows {
		if m.Consistent(i, profile) {
			n++
		}
	}
	return n
}

// String renders the matrix back in its input format. Short rows stay
// short.
func (m *Matrix) String() string {
	var b strings.Builder
	for _, row := range m.rows {
		for _, v := range row {
			b.WriteString(v.String())
		}
		b.WriteByte('\n')
	}
	return b.String()
}
