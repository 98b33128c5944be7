// Package store persists Tables as parquet files and keeps the incremental
// aggregate store up to date.
package store

import (
	"context"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"time"

	"github.com/apache/arrow/go/v11/arrow"
	"github.com/apache/arrow/go/v11/arrow/array"
	"github.com/apache/arrow/go/v11/arrow/memory"
	"github.com/apache/arrow/go/v11/parquet"
	"github.com/apache/arrow/go/v11/parquet/compress"
	"github.com/apache/arrow/go/v11/parquet/pqarrow"
	"github.com/pilosa/bikeshare"
	"github.com/pkg/errors"
)

// rowsPerGroup bounds the rows buffered in one arrow record while writing.
const rowsPerGroup = 1 << 16

var timestampType = &arrow.TimestampType{Unit: arrow.Microsecond, TimeZone: "UTC"}

// Schema returns the arrow schema of the contract's columns. Geometry columns
// are stored as WKT strings.
func Schema(c *bikeshare.Contract) *arrow.Schema {
	fields := make([]arrow.Field, len(c.Columns))
	for i, col := range c.Columns {
		fields[i] = arrow.Field{Name: col.Name, Type: arrowType(col.Type), Nullable: true}
	}
	return arrow.NewSchema(fields, nil)
}

func arrowType(t bikeshare.ColumnType) arrow.DataType {
	switch t {
	case bikeshare.Integer:
		return arrow.PrimitiveTypes.Int64
	case bikeshare.Float:
		return arrow.PrimitiveTypes.Float64
	case bikeshare.Boolean:
		return arrow.FixedWidthTypes.Boolean
	case bikeshare.Timestamp:
		return timestampType
	}
	return arrow.BinaryTypes.String
}

// Write encodes the columns of c from t as a gzip compressed parquet file.
func Write(w io.Writer, t *bikeshare.Table, c *bikeshare.Contract) error {
	t, err := t.Select(c.Names()...)
	if err != nil {
		return errors.Wrap(err, "selecting contract columns")
	}
	schema := Schema(c)
	props := parquet.NewWriterProperties(parquet.WithCompression(compress.Codecs.Gzip))
	writer, err := pqarrow.NewFileWriter(schema, w, props, pqarrow.DefaultWriterProps())
	if err != nil {
		return errors.Wrap(err, "getting parquet writer")
	}
	builder := array.NewRecordBuilder(memory.NewGoAllocator(), schema)
	defer builder.Release()
	for start := 0; start < t.Len(); start += rowsPerGroup {
		end := start + rowsPerGroup
		if end > t.Len() {
			end = t.Len()
		}
		for i := start; i < end; i++ {
			for j, v := range t.Row(i) {
				if err := appendValue(builder.Field(j), v); err != nil {
					return errors.Wrapf(err, "row %d column '%s'", i, c.Columns[j].Name)
				}
			}
		}
		rec := builder.NewRecord()
		err = writer.Write(rec)
		rec.Release()
		if err != nil {
			return errors.Wrap(err, "writing record")
		}
	}
	return errors.Wrap(writer.Close(), "closing parquet writer")
}

func appendValue(b array.Builder, v interface{}) error {
	if v == nil {
		b.AppendNull()
		return nil
	}
	var ok bool
	switch bt := b.(type) {
	case *array.Int64Builder:
		var i int64
		if i, ok = bikeshare.AsInt(v); ok {
			bt.Append(i)
		}
	case *array.Float64Builder:
		var f float64
		if f, ok = bikeshare.AsFloat(v); ok {
			bt.Append(f)
		}
	case *array.BooleanBuilder:
		var x bool
		if x, ok = bikeshare.AsBool(v); ok {
			bt.Append(x)
		}
	case *array.TimestampBuilder:
		var ts time.Time
		if ts, ok = bikeshare.AsTime(v); ok {
			bt.Append(arrow.Timestamp(ts.UnixNano() / int64(time.Microsecond)))
		}
	case *array.StringBuilder:
		switch vt := v.(type) {
		case string:
			bt.Append(vt)
			ok = true
		case bikeshare.Geometry:
			bt.Append(vt.WKT())
			ok = true
		}
	default:
		return errors.Errorf("unsupported builder %T", b)
	}
	if !ok {
		return errors.Errorf("value %v of type %T does not fit %s", v, v, b.Type())
	}
	return nil
}

// Read decodes a parquet file into a table with the given name. Integers are
// read as int64, floats as float64 and timestamps as UTC times; geometry
// columns come back as WKT strings.
func Read(path, name string) (*bikeshare.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening parquet file")
	}
	defer f.Close()
	mem := memory.NewGoAllocator()
	tbl, err := pqarrow.ReadTable(context.Background(), f, parquet.NewReaderProperties(mem), pqarrow.ArrowReadProperties{}, mem)
	if err != nil {
		return nil, errors.Wrapf(err, "reading parquet file '%s'", path)
	}
	defer tbl.Release()

	fields := tbl.Schema().Fields()
	cols := make([]string, len(fields))
	for j, fld := range fields {
		cols[j] = fld.Name
	}
	t := bikeshare.NewTable(name, cols...)
	tr := array.NewTableReader(tbl, rowsPerGroup)
	defer tr.Release()
	for tr.Next() {
		rec := tr.Record()
		for i := 0; i < int(rec.NumRows()); i++ {
			row := make([]interface{}, len(cols))
			for j := range cols {
				if row[j], err = value(rec.Column(j), i); err != nil {
					return nil, errors.Wrapf(err, "column '%s'", cols[j])
				}
			}
			if err := t.Append(row...); err != nil {
				return nil, err
			}
		}
	}
	return t, nil
}

func value(arr arrow.Array, i int) (interface{}, error) {
	if arr.IsNull(i) {
		return nil, nil
	}
	switch a := arr.(type) {
	case *array.Int64:
		return a.Value(i), nil
	case *array.Int32:
		return int64(a.Value(i)), nil
	case *array.Float64:
		return a.Value(i), nil
	case *array.Float32:
		return float64(a.Value(i)), nil
	case *array.Boolean:
		return a.Value(i), nil
	case *array.String:
		return a.Value(i), nil
	case *array.Timestamp:
		unit := a.DataType().(*arrow.TimestampType).Unit
		return a.Value(i).ToTime(unit), nil
	}
	return nil, errors.Errorf("unsupported parquet type %s", arr.DataType())
}

// WriteFile writes t to path through a temporary file in the same directory
// which is synced and renamed over path. On failure path is untouched and
// the error is a *bikeshare.StoreWriteFailure.
func WriteFile(path string, t *bikeshare.Table, c *bikeshare.Contract) error {
	fail := func(err error) error {
		return &bikeshare.StoreWriteFailure{Path: path, Err: err}
	}
	tmp, err := ioutil.TempFile(filepath.Dir(path), "."+filepath.Base(path)+".tmp")
	if err != nil {
		return fail(errors.Wrap(err, "creating temp file"))
	}
	defer os.Remove(tmp.Name()) // no-op after the rename
	// the parquet writer closes its sink
	if err := Write(struct{ io.Writer }{tmp}, t, c); err != nil {
		tmp.Close()
		return fail(err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fail(errors.Wrap(err, "syncing temp file"))
	}
	if err := tmp.Close(); err != nil {
		return fail(errors.Wrap(err, "closing temp file"))
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fail(errors.Wrap(err, "renaming temp file"))
	}
	return nil
}
