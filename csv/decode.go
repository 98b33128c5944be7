package csv

import (
	"strconv"
	"strings"
	"time"

	"github.com/pilosa/bikeshare"
	"github.com/pkg/errors"
)

// TimeLayouts are tried in order when decoding timestamp columns.
var TimeLayouts = []string{
	"01/02/2006 15:04",
	"01/02/2006 15:04:05",
	"1/2/2006 15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	time.RFC3339,
	"2006-01-02",
}

// Decoder converts the string values of a parsed CSV file to the types a
// contract declares.
type Decoder struct {
	contract *bikeshare.Contract
	loc      *time.Location
}

// NewDecoder returns a Decoder for c. Timestamps without a zone are read in
// loc, or UTC if loc is nil.
func NewDecoder(c *bikeshare.Contract, loc *time.Location) *Decoder {
	if loc == nil {
		loc = time.UTC
	}
	return &Decoder{contract: c, loc: loc}
}

type valGetter func(val string) (interface{}, error)

func (d *Decoder) getter(typ bikeshare.ColumnType) valGetter {
	switch typ {
	case bikeshare.Integer:
		return func(val string) (interface{}, error) {
			i, err := strconv.ParseInt(val, 10, 64)
			if err == nil {
				return i, nil
			}
			// some exports write integers as "12.0"
			f, ferr := strconv.ParseFloat(val, 64)
			if ferr != nil || f != float64(int64(f)) {
				return nil, err
			}
			return int64(f), nil
		}
	case bikeshare.Float:
		return func(val string) (interface{}, error) {
			return strconv.ParseFloat(val, 64)
		}
	case bikeshare.Boolean:
		return func(val string) (interface{}, error) {
			return strconv.ParseBool(val)
		}
	case bikeshare.Timestamp:
		return func(val string) (interface{}, error) {
			for _, layout := range TimeLayouts {
				if t, err := time.ParseInLocation(layout, val, d.loc); err == nil {
					return t, nil
				}
			}
			return nil, errors.Errorf("unknown time format '%s'", val)
		}
	}
	return nil
}

// Decode returns a copy of t in which every column declared by the contract
// holds values of the declared type. Values are trimmed and blank values
// become null. Columns the contract does not mention are kept as strings, and
// string and geometry columns are left alone. Every column with a value that
// can't be decoded is reported in a *bikeshare.SchemaViolation.
func (d *Decoder) Decode(t *bikeshare.Table) (*bikeshare.Table, error) {
	cols := t.Columns()
	getters := make([]valGetter, len(cols))
	for j, name := range cols {
		if col, ok := d.contract.Column(name); ok {
			getters[j] = d.getter(col.Type)
		}
	}
	sv := &bikeshare.SchemaViolation{Dataset: t.Name(), Contract: d.contract.Name}
	failed := make([]bool, len(cols))
	out := bikeshare.NewTable(t.Name(), cols...)
	for i := 0; i < t.Len(); i++ {
		row := t.Row(i)
		vals := make([]interface{}, len(row))
		for j, v := range row {
			s, ok := v.(string)
			if !ok {
				vals[j] = v
				continue
			}
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			if getters[j] == nil {
				vals[j] = s
				continue
			}
			dv, err := getters[j](s)
			if err != nil {
				if !failed[j] {
					failed[j] = true
					sv.Violations = append(sv.Violations, bikeshare.ColumnViolation{
						Column: cols[j],
						Reason: "can't decode: " + err.Error(),
						Sample: s,
						Row:    i,
					})
				}
				continue
			}
			vals[j] = dv
		}
		if err := out.Append(vals...); err != nil {
			return nil, errors.Wrap(err, "decoding")
		}
	}
	if len(sv.Violations) > 0 {
		return nil, sv
	}
	return out, nil
}
