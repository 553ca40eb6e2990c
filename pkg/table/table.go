// Package table provides a small in-memory tabular value type and the
// column processor that runs batch extraction over a column's distinct
// values and joins the results back on.
package table

import (
	"fmt"
	"strconv"
	"strings"
)

// Table is an ordered-column, row-major table. Cells are any; nil is
// null. Methods never mutate the receiver: they return a new Table
// sharing unchanged column slices.
type Table struct {
	cols []string
	data map[string][]any
	rows int
}

// New creates a table from column names and their values. Every column
// must be present in data with the same length.
func New(cols []string, data map[string][]any) (Table, error) {
	rows := -1
	for _, col := range cols {
		vals, ok := data[col]
		if !ok {
			return Table{}, fmt.Errorf("column %q has no data", col)
		}
		if rows == -1 {
			rows = len(vals)
		} else if len(vals) != rows {
			return Table{}, fmt.Errorf("column %q has %d rows, expected %d", col, len(vals), rows)
		}
	}
	if rows == -1 {
		rows = 0
	}

	copied := make(map[string][]any, len(cols))
	for _, col := range cols {
		copied[col] = data[col]
	}
	return Table{cols: append([]string(nil), cols...), data: copied, rows: rows}, nil
}

// Columns returns the column names in order.
func (t Table) Columns() []string {
	return append([]string(nil), t.cols...)
}

// NumRows returns the row count.
func (t Table) NumRows() int {
	return t.rows
}

// HasColumn reports whether the named column exists.
func (t Table) HasColumn(name string) bool {
	_, ok := t.data[name]
	return ok
}

// Column returns the values of the named column.
func (t Table) Column(name string) ([]any, bool) {
	vals, ok := t.data[name]
	return vals, ok
}

// CastString renders one cell as a string. Floats render without a
// trailing ".0" so numeric and string key columns join consistently.
func CastString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	default:
		return fmt.Sprint(x)
	}
}

// DistinctStrings returns the distinct string-cast values of a column,
// skipping nulls and blank strings, in first-seen row order.
func (t Table) DistinctStrings(name string) []string {
	vals, ok := t.data[name]
	if !ok {
		return nil
	}

	seen := make(map[string]bool, len(vals))
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		if v == nil {
			continue
		}
		s := CastString(v)
		if strings.TrimSpace(s) == "" {
			continue
		}
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// WithColumn returns a table with the column set to the given values,
// appended when new, replaced in place when it already exists.
func (t Table) WithColumn(name string, values []any) (Table, error) {
	if len(values) != t.rows {
		return Table{}, fmt.Errorf("column %q has %d values, table has %d rows", name, len(values), t.rows)
	}

	cols := t.cols
	if !t.HasColumn(name) {
		cols = append(append([]string(nil), t.cols...), name)
	}

	data := make(map[string][]any, len(cols))
	for col, vals := range t.data {
		data[col] = vals
	}
	data[name] = values

	return Table{cols: cols, data: data, rows: t.rows}, nil
}

// DropColumn returns a table without the named column. Dropping an
// absent column is a no-op.
func (t Table) DropColumn(name string) Table {
	if !t.HasColumn(name) {
		return t
	}

	cols := make([]string, 0, len(t.cols)-1)
	data := make(map[string][]any, len(t.cols)-1)
	for _, col := range t.cols {
		if col == name {
			continue
		}
		cols = append(cols, col)
		data[col] = t.data[col]
	}
	return Table{cols: cols, data: data, rows: t.rows}
}

// LeftJoin joins other onto t by equality of the string-cast key
// column. Every row of t is kept; unmatched rows get nulls for the
// other table's columns. When other has duplicate keys the first
// occurrence wins.
func (t Table) LeftJoin(other Table, key string) (Table, error) {
	if !t.HasColumn(key) {
		return Table{}, fmt.Errorf("left table has no join column %q", key)
	}
	if !other.HasColumn(key) {
		return Table{}, fmt.Errorf("right table has no join column %q", key)
	}

	rightKeys, _ := other.Column(key)
	index := make(map[string]int, len(rightKeys))
	for i, v := range rightKeys {
		k := CastString(v)
		if _, ok := index[k]; !ok {
			index[k] = i
		}
	}

	cols := append([]string(nil), t.cols...)
	data := make(map[string][]any, len(cols))
	for _, col := range t.cols {
		data[col] = t.data[col]
	}

	leftKeys := t.data[key]
	for _, col := range other.cols {
		if col == key {
			continue
		}
		if t.HasColumn(col) {
			return Table{}, fmt.Errorf("join would duplicate column %q", col)
		}
		src := other.data[col]
		vals := make([]any, t.rows)
		for i := 0; i < t.rows; i++ {
			if j, ok := index[CastString(leftKeys[i])]; ok {
				vals[i] = src[j]
			}
		}
		cols = append(cols, col)
		data[col] = vals
	}

	return Table{cols: cols, data: data, rows: t.rows}, nil
}

// Coalesce returns a table where the dst column takes its value from
// src wherever dst is null, then drops src.
func (t Table) Coalesce(dst, src string) (Table, error) {
	dvals, ok := t.Column(dst)
	if !ok {
		return Table{}, fmt.Errorf("no column %q", dst)
	}
	svals, ok := t.Column(src)
	if !ok {
		return Table{}, fmt.Errorf("no column %q", src)
	}

	merged := make([]any, t.rows)
	for i := 0; i < t.rows; i++ {
		if dvals[i] != nil {
			merged[i] = dvals[i]
		} else {
			merged[i] = svals[i]
		}
	}

	out, err := t.WithColumn(dst, merged)
	if err != nil {
		return Table{}, err
	}
	return out.DropColumn(src), nil
}

// Equal reports whether two tables have identical columns, order and
// cell values. Intended for tests.
func (t Table) Equal(other Table) bool {
	if t.rows != other.rows || len(t.cols) != len(other.cols) {
		return false
	}
	for i, col := range t.cols {
		if other.cols[i] != col {
			return false
		}
		a, b := t.data[col], other.data[col]
		for j := 0; j < t.rows; j++ {
			if a[j] != b[j] {
				return false
			}
		}
	}
	return true
}
