package csv

import (
	"compress/gzip"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pilosa/bikeshare"
	"github.com/pkg/errors"
)

// DefaultChunkPrefix is the file name prefix of staged export chunks.
const DefaultChunkPrefix = "local_stage"

// ExportChunks writes the columns cols of t to gzip compressed CSV files
// named <prefix>_<k>.csv.gz in dir, k starting at 1, with at most maxRows
// rows each. It writes ceil(n/maxRows) files; only the last one may be
// partial. An empty table writes nothing. It returns the paths written.
func ExportChunks(dir, prefix string, t *bikeshare.Table, cols []string, maxRows int) ([]string, error) {
	if maxRows <= 0 {
		return nil, errors.Errorf("rows per chunk must be positive, got %d", maxRows)
	}
	sel, err := t.Select(cols...)
	if err != nil {
		return nil, errors.Wrap(err, "selecting export columns")
	}
	var paths []string
	for k, start := 1, 0; start < sel.Len(); k, start = k+1, start+maxRows {
		end := start + maxRows
		if end > sel.Len() {
			end = sel.Len()
		}
		path := filepath.Join(dir, fmt.Sprintf("%s_%d.csv.gz", prefix, k))
		if err := writeChunk(path, sel, start, end); err != nil {
			return paths, errors.Wrapf(err, "writing chunk %d", k)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeChunk(path string, t *bikeshare.Table, start, end int) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "creating file")
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = errors.Wrap(cerr, "closing file")
		}
	}()
	gz := gzip.NewWriter(f)
	w := csv.NewWriter(gz)
	if err := w.Write(t.Columns()); err != nil {
		return errors.Wrap(err, "writing header")
	}
	rec := make([]string, len(t.Columns()))
	for i := start; i < end; i++ {
		for j, v := range t.Row(i) {
			rec[j] = Format(v)
		}
		if err := w.Write(rec); err != nil {
			return errors.Wrapf(err, "writing row %d", i)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return errors.Wrap(err, "flushing")
	}
	return errors.Wrap(gz.Close(), "closing gzip stream")
}

// Format renders a table value as a CSV field. Null is the empty string and
// timestamps are written as "2006-01-02 15:04:05" in their own zone.
func Format(v interface{}) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case time.Time:
		return v.Format("2006-01-02 15:04:05")
	case bikeshare.Geometry:
		return v.WKT()
	}
	return fmt.Sprint(v)
}
