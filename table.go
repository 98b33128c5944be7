// Copyright 2017 Pilosa Corp.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions
// are met:
//
// 1. Redistributions of source code must retain the above copyright
// notice, this list of conditions and the following disclaimer.
//
// 2. Redistributions in binary form must reproduce the above copyright
// notice, this list of conditions and the following disclaimer in the
// documentation and/or other materials provided with the distribution.
//
// 3. Neither the name of the copyright holder nor the names of its
// contributors may be used to endorse or promote products derived
// from this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND
// CONTRIBUTORS "AS IS" AND ANY EXPRESS OR IMPLIED WARRANTIES,
// INCLUDING, BUT NOT LIMITED TO, THE IMPLIED WARRANTIES OF
// MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE ARE
// DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR
// CONTRIBUTORS BE LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL,
// SPECIAL, EXEMPLARY, OR CONSEQUENTIAL DAMAGES (INCLUDING,
// BUT NOT LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS OR
// SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS
// INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY,
// WHETHER IN CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING
// NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF THE USE
// OF THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF SUCH
// DAMAGE.

package bikeshare

import (
	"sort"

	"github.com/pkg/errors"
)

// Table is an in-memory tabular dataset with ordered, named columns. Cell
// values are nil, int64, float64, string, bool, time.Time or Geometry.
//
// A Table is not safe for concurrent mutation, but any number of goroutines
// may read a Table that nobody is writing to.
type Table struct {
	name    string
	columns []string
	index   map[string]int
	rows    [][]interface{}
}

// NewTable creates an empty table with the given column names. It panics on
// duplicate column names since that is always a programming error.
func NewTable(name string, columns ...string) *Table {
	t := &Table{
		name:    name,
		columns: make([]string, 0, len(columns)),
		index:   make(map[string]int, len(columns)),
	}
	for _, c := range columns {
		if _, ok := t.index[c]; ok {
			panic(errors.Errorf("duplicate column '%s' in table '%s'", c, name))
		}
		t.index[c] = len(t.columns)
		t.columns = append(t.columns, c)
	}
	return t
}

// Name returns the dataset name used in error messages and logs.
func (t *Table) Name() string { return t.name }

// Named returns a shallow copy of t under a different name. Rows are shared.
func (t *Table) Named(name string) *Table {
	n := *t
	n.name = name
	return &n
}

// Columns returns a copy of the column names in order.
func (t *Table) Columns() []string {
	ret := make([]string, len(t.columns))
	copy(ret, t.columns)
	return ret
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// Has reports whether the table has the named column.
func (t *Table) Has(col string) bool {
	_, ok := t.index[col]
	return ok
}

// Index returns the position of col, or -1.
func (t *Table) Index(col string) int {
	if i, ok := t.index[col]; ok {
		return i
	}
	return -1
}

// Append adds a row. The number of values must match the number of columns.
func (t *Table) Append(vals ...interface{}) error {
	if len(vals) != len(t.columns) {
		return errors.Errorf("table '%s': row has %d values, want %d", t.name, len(vals), len(t.columns))
	}
	row := make([]interface{}, len(vals))
	copy(row, vals)
	t.rows = append(t.rows, row)
	return nil
}

// AppendMap adds a row built from a column->value map. Columns missing from
// rec are nil, keys of rec which are not columns are an error.
func (t *Table) AppendMap(rec map[string]interface{}) error {
	row := make([]interface{}, len(t.columns))
	for k, v := range rec {
		i, ok := t.index[k]
		if !ok {
			return errors.Errorf("table '%s': unknown column '%s'", t.name, k)
		}
		row[i] = v
	}
	t.rows = append(t.rows, row)
	return nil
}

// Row returns the i'th row. The returned slice must not be modified.
func (t *Table) Row(i int) []interface{} { return t.rows[i] }

// Value returns the value of col in row i, or nil if the column does not
// exist.
func (t *Table) Value(i int, col string) interface{} {
	j, ok := t.index[col]
	if !ok {
		return nil
	}
	return t.rows[i][j]
}

// Set replaces the value of col in row i.
func (t *Table) Set(i int, col string, v interface{}) error {
	j, ok := t.index[col]
	if !ok {
		return errors.Errorf("table '%s': unknown column '%s'", t.name, col)
	}
	t.rows[i][j] = v
	return nil
}

// Column returns a copy of all values of col.
func (t *Table) Column(col string) ([]interface{}, error) {
	j, ok := t.index[col]
	if !ok {
		return nil, errors.Errorf("table '%s': unknown column '%s'", t.name, col)
	}
	ret := make([]interface{}, len(t.rows))
	for i, row := range t.rows {
		ret[i] = row[j]
	}
	return ret, nil
}

// AddColumn returns a new table with col appended, its values computed by fn
// for each row.
func (t *Table) AddColumn(col string, fn func(i int, row []interface{}) interface{}) (*Table, error) {
	if t.Has(col) {
		return nil, errors.Errorf("table '%s': column '%s' already exists", t.name, col)
	}
	ret := NewTable(t.name, append(t.Columns(), col)...)
	ret.rows = make([][]interface{}, len(t.rows))
	for i, row := range t.rows {
		nr := make([]interface{}, len(row)+1)
		copy(nr, row)
		nr[len(row)] = fn(i, row)
		ret.rows[i] = nr
	}
	return ret, nil
}

// Select returns a new table with only the given columns, in the given order.
func (t *Table) Select(cols ...string) (*Table, error) {
	idx := make([]int, len(cols))
	for k, c := range cols {
		j, ok := t.index[c]
		if !ok {
			return nil, errors.Errorf("table '%s': unknown column '%s'", t.name, c)
		}
		idx[k] = j
	}
	ret := NewTable(t.name, cols...)
	ret.rows = make([][]interface{}, len(t.rows))
	for i, row := range t.rows {
		nr := make([]interface{}, len(idx))
		for k, j := range idx {
			nr[k] = row[j]
		}
		ret.rows[i] = nr
	}
	return ret, nil
}

// Drop returns a new table without the named columns. Unknown names are
// ignored.
func (t *Table) Drop(cols ...string) *Table {
	drop := make(map[string]struct{}, len(cols))
	for _, c := range cols {
		drop[c] = struct{}{}
	}
	keep := make([]string, 0, len(t.columns))
	for _, c := range t.columns {
		if _, ok := drop[c]; !ok {
			keep = append(keep, c)
		}
	}
	ret, _ := t.Select(keep...)
	return ret
}

// Rename returns a new table with columns renamed according to m. Every key
// of m must be a column of t, and the result must not contain duplicates.
func (t *Table) Rename(m ColumnMap) (*Table, error) {
	for from := range m {
		if !t.Has(from) {
			return nil, errors.Errorf("table '%s': cannot rename unknown column '%s'", t.name, from)
		}
	}
	cols := make([]string, len(t.columns))
	seen := make(map[string]struct{}, len(t.columns))
	for i, c := range t.columns {
		cols[i] = m.Apply(c)
		if _, ok := seen[cols[i]]; ok {
			return nil, errors.Errorf("table '%s': rename produces duplicate column '%s'", t.name, cols[i])
		}
		seen[cols[i]] = struct{}{}
	}
	ret := NewTable(t.name, cols...)
	ret.rows = t.rows
	return ret, nil
}

// Filter returns a new table holding the rows for which keep returns true.
// Rows are shared with t.
func (t *Table) Filter(keep func(i int, row []interface{}) bool) *Table {
	ret := NewTable(t.name, t.columns...)
	for i, row := range t.rows {
		if keep(i, row) {
			ret.rows = append(ret.rows, row)
		}
	}
	return ret
}

// SortStable sorts the rows in place with less, keeping the relative order of
// equal rows.
func (t *Table) SortStable(less func(a, b []interface{}) bool) {
	sort.SliceStable(t.rows, func(i, j int) bool {
		return less(t.rows[i], t.rows[j])
	})
}

// Clone returns a deep copy of the row slices of t.
func (t *Table) Clone() *Table {
	ret := NewTable(t.name, t.columns...)
	ret.rows = make([][]interface{}, len(t.rows))
	for i, row := range t.rows {
		nr := make([]interface{}, len(row))
		copy(nr, row)
		ret.rows[i] = nr
	}
	return ret
}

// Concat appends the rows of every table, in order. All tables must have the
// same set of columns; the column order of the first table is used.
func Concat(name string, tables ...*Table) (*Table, error) {
	if len(tables) == 0 {
		return NewTable(name), nil
	}
	ret := NewTable(name, tables[0].columns...)
	for _, t := range tables {
		if len(t.columns) != len(ret.columns) {
			return nil, errors.Errorf("concat '%s': '%s' has columns %v, want %v", name, t.name, t.columns, ret.columns)
		}
		sel, err := t.Select(ret.columns...)
		if err != nil {
			return nil, errors.Wrapf(err, "concat '%s'", name)
		}
		ret.rows = append(ret.rows, sel.rows...)
	}
	return ret, nil
}

// JoinType selects the behaviour of Join for left rows without a partner.
type JoinType int

const (
	// InnerJoin drops left rows without a partner.
	InnerJoin JoinType = iota
	// LeftJoin keeps left rows without a partner, with nil right values.
	LeftJoin
)

// Join merges right onto left where left[leftKey] == right[rightKey]. The
// right key must be unique in right. The result has every column of left
// followed by every column of right except rightKey. It also returns the
// number of left rows which had no partner; for an InnerJoin those rows are
// dropped.
func Join(left, right *Table, leftKey, rightKey string, how JoinType) (*Table, int, error) {
	lk, ok := left.index[leftKey]
	if !ok {
		return nil, 0, errors.Errorf("join: '%s' has no column '%s'", left.name, leftKey)
	}
	rk, ok := right.index[rightKey]
	if !ok {
		return nil, 0, errors.Errorf("join: '%s' has no column '%s'", right.name, rightKey)
	}
	cols := left.Columns()
	rcols := make([]int, 0, len(right.columns))
	for j, c := range right.columns {
		if j == rk {
			continue
		}
		if left.Has(c) {
			return nil, 0, errors.Errorf("join: column '%s' exists in both '%s' and '%s'", c, left.name, right.name)
		}
		cols = append(cols, c)
		rcols = append(rcols, j)
	}
	lookup := make(map[interface{}][]interface{}, len(right.rows))
	for _, row := range right.rows {
		k := row[rk]
		if k == nil {
			continue
		}
		if _, dup := lookup[k]; dup {
			return nil, 0, errors.Errorf("join: key '%v' is not unique in '%s'.%s", k, right.name, rightKey)
		}
		lookup[k] = row
	}
	ret := NewTable(left.name, cols...)
	unmatched := 0
	for _, row := range left.rows {
		nr := make([]interface{}, len(cols))
		copy(nr, row)
		var partner []interface{}
		if k := row[lk]; k != nil {
			partner = lookup[k]
		}
		if partner == nil {
			unmatched++
			if how == InnerJoin {
				continue
			}
		} else {
			for n, j := range rcols {
				nr[len(row)+n] = partner[j]
			}
		}
		ret.rows = append(ret.rows, nr)
	}
	return ret, unmatched, nil
}
