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
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// ColumnType is the semantic type of a column.
type ColumnType int

// Semantic column types.
const (
	Integer ColumnType = iota + 1
	Float
	String
	Boolean
	Timestamp
	GeometryType
)

func (t ColumnType) String() string {
	switch t {
	case Integer:
		return "integer"
	case Float:
		return "float"
	case String:
		return "string"
	case Boolean:
		return "boolean"
	case Timestamp:
		return "timestamp"
	case GeometryType:
		return "geometry"
	}
	return fmt.Sprintf("ColumnType(%d)", int(t))
}

// Accepts reports whether v is a legal non-nil value for the type. Float
// columns accept integers.
func (t ColumnType) Accepts(v interface{}) bool {
	switch t {
	case Integer:
		_, ok := AsInt(v)
		return ok
	case Float:
		_, ok := AsFloat(v)
		return ok
	case String:
		_, ok := v.(string)
		return ok
	case Boolean:
		_, ok := v.(bool)
		return ok
	case Timestamp:
		_, ok := v.(time.Time)
		return ok
	case GeometryType:
		_, ok := v.(Geometry)
		return ok
	}
	return false
}

// Check is an allowed-value predicate with a description used in violation
// reports.
type Check struct {
	Desc string
	OK   func(v interface{}) bool
}

// InSet allows only the listed values.
func InSet(vals ...interface{}) *Check {
	keys := make(map[string]struct{}, len(vals))
	descs := make([]string, len(vals))
	for i, v := range vals {
		keys[Key(v)] = struct{}{}
		descs[i] = fmt.Sprintf("%v", v)
	}
	return &Check{
		Desc: "in {" + strings.Join(descs, ", ") + "}",
		OK: func(v interface{}) bool {
			_, ok := keys[Key(v)]
			return ok
		},
	}
}

// InRange allows numbers in [min, max].
func InRange(min, max float64) *Check {
	return &Check{
		Desc: fmt.Sprintf("in [%v, %v]", min, max),
		OK: func(v interface{}) bool {
			f, ok := AsFloat(v)
			return ok && f >= min && f <= max
		},
	}
}

// NonNegative allows numbers >= 0.
func NonNegative() *Check {
	return &Check{
		Desc: ">= 0",
		OK: func(v interface{}) bool {
			f, ok := AsFloat(v)
			return ok && f >= 0
		},
	}
}

// YearIn allows timestamps whose year is one of years.
func YearIn(years ...int) *Check {
	set := make(map[int]struct{}, len(years))
	for _, y := range years {
		set[y] = struct{}{}
	}
	return &Check{
		Desc: fmt.Sprintf("year in %v", years),
		OK: func(v interface{}) bool {
			t, ok := v.(time.Time)
			if !ok {
				return false
			}
			_, ok = set[t.Year()]
			return ok
		},
	}
}

// Column declares the invariants of one column.
type Column struct {
	Name     string
	Type     ColumnType
	Nullable bool
	Unique   bool
	Allowed  *Check
}

// Col is shorthand for a non-null, non-unique column.
func Col(name string, typ ColumnType) Column {
	return Column{Name: name, Type: typ}
}

// Null returns a nullable copy of c.
func (c Column) Null() Column {
	c.Nullable = true
	return c
}

// Uniq returns a unique copy of c.
func (c Column) Uniq() Column {
	c.Unique = true
	return c
}

// Allow returns a copy of c restricted by chk.
func (c Column) Allow(chk *Check) Column {
	c.Allowed = chk
	return c
}

// Contract is the declared shape of a named dataset: an ordered list of
// columns and optional composite unique keys. Tables may carry columns the
// contract does not mention.
type Contract struct {
	Name    string
	Columns []Column
	Keys    [][]string
}

// NewContract creates a contract.
func NewContract(name string, cols ...Column) *Contract {
	c := &Contract{Name: name}
	c.Columns = append(c.Columns, cols...)
	return c
}

// Names returns the column names in order.
func (c *Contract) Names() []string {
	ret := make([]string, len(c.Columns))
	for i, col := range c.Columns {
		ret[i] = col.Name
	}
	return ret
}

// Column returns the named column declaration.
func (c *Contract) Column(name string) (Column, bool) {
	for _, col := range c.Columns {
		if col.Name == name {
			return col, true
		}
	}
	return Column{}, false
}

func (c *Contract) copyAs(name string) *Contract {
	n := &Contract{Name: name}
	n.Columns = append(n.Columns, c.Columns...)
	for _, k := range c.Keys {
		n.Keys = append(n.Keys, append([]string(nil), k...))
	}
	return n
}

// Extend derives a new contract with cols appended. A column with the name
// of an existing one replaces it in place.
func (c *Contract) Extend(name string, cols ...Column) *Contract {
	n := c.copyAs(name)
outer:
	for _, col := range cols {
		for i := range n.Columns {
			if n.Columns[i].Name == col.Name {
				n.Columns[i] = col
				continue outer
			}
		}
		n.Columns = append(n.Columns, col)
	}
	return n
}

// Without derives a new contract lacking the named columns, and any key
// which refers to them.
func (c *Contract) Without(name string, cols ...string) *Contract {
	drop := make(map[string]struct{}, len(cols))
	for _, col := range cols {
		drop[col] = struct{}{}
	}
	n := &Contract{Name: name}
	for _, col := range c.Columns {
		if _, ok := drop[col.Name]; !ok {
			n.Columns = append(n.Columns, col)
		}
	}
keys:
	for _, k := range c.Keys {
		for _, col := range k {
			if _, ok := drop[col]; ok {
				continue keys
			}
		}
		n.Keys = append(n.Keys, append([]string(nil), k...))
	}
	return n
}

// Renamed derives a new contract with columns renamed through m.
func (c *Contract) Renamed(name string, m ColumnMap) *Contract {
	n := c.copyAs(name)
	for i := range n.Columns {
		n.Columns[i].Name = m.Apply(n.Columns[i].Name)
	}
	for _, k := range n.Keys {
		for i := range k {
			k[i] = m.Apply(k[i])
		}
	}
	return n
}

// WithKey derives a new contract with an additional composite unique key.
func (c *Contract) WithKey(cols ...string) *Contract {
	n := c.copyAs(c.Name)
	n.Keys = append(n.Keys, append([]string(nil), cols...))
	return n
}

// WithoutKey derives a new contract lacking the composite key made of
// exactly cols, in order.
func (c *Contract) WithoutKey(cols ...string) *Contract {
	n := &Contract{Name: c.Name, Columns: append([]Column(nil), c.Columns...)}
	for _, k := range c.Keys {
		if !sameColumns(k, cols) {
			n.Keys = append(n.Keys, append([]string(nil), k...))
		}
	}
	return n
}

func sameColumns(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Conform selects the contract's columns from t, in contract order, and
// validates the result.
func (c *Contract) Conform(t *Table) (*Table, error) {
	if err := c.Validate(t); err != nil {
		return nil, err
	}
	return t.Select(c.Names()...)
}

// Validate checks t against the contract. It returns nil or a
// *SchemaViolation listing every failing column with its first bad value.
func (c *Contract) Validate(t *Table) error {
	sv := &SchemaViolation{Dataset: t.Name(), Contract: c.Name}
	for _, col := range c.Columns {
		j := t.Index(col.Name)
		if j < 0 {
			sv.add(col.Name, "missing column", nil)
			continue
		}
		var seen map[string]struct{}
		if col.Unique {
			seen = make(map[string]struct{}, t.Len())
		}
		for i := 0; i < t.Len(); i++ {
			v := t.rows[i][j]
			if v == nil {
				if !col.Nullable {
					sv.addRow(col.Name, "unexpected null", nil, i)
					break
				}
				continue
			}
			if !col.Type.Accepts(v) {
				sv.addRow(col.Name, fmt.Sprintf("expected %s, got %T", col.Type, v), v, i)
				break
			}
			if col.Allowed != nil && !col.Allowed.OK(v) {
				sv.addRow(col.Name, "value not "+col.Allowed.Desc, v, i)
				break
			}
			if seen != nil {
				k := Key(v)
				if _, dup := seen[k]; dup {
					sv.addRow(col.Name, "duplicate value", v, i)
					break
				}
				seen[k] = struct{}{}
			}
		}
	}
	for _, key := range c.Keys {
		idx := make([]int, 0, len(key))
		for _, k := range key {
			if j := t.Index(k); j >= 0 {
				idx = append(idx, j)
			}
		}
		if len(idx) != len(key) {
			continue // reported as missing column above
		}
		seen := make(map[string]struct{}, t.Len())
		vals := make([]interface{}, len(idx))
		for i := 0; i < t.Len(); i++ {
			for n, j := range idx {
				vals[n] = t.rows[i][j]
			}
			k := Key(vals...)
			if _, dup := seen[k]; dup {
				sv.addRow(strings.Join(key, "+"), "duplicate key", fmt.Sprint(vals), i)
				break
			}
			seen[k] = struct{}{}
		}
	}
	if len(sv.Violations) > 0 {
		return sv
	}
	return nil
}

// Validate checks t against c, wrapping a violation with the stage name.
func Validate(stage string, t *Table, c *Contract) error {
	if err := c.Validate(t); err != nil {
		return errors.Wrap(err, stage)
	}
	return nil
}
