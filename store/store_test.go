package store_test

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pilosa/bikeshare"
	"github.com/pilosa/bikeshare/store"
	"github.com/pkg/errors"
)

var aggContract = bikeshare.NewContract("agg",
	bikeshare.Col(bikeshare.SourceFileColumn, bikeshare.String),
	bikeshare.Col(bikeshare.StationName, bikeshare.String),
	bikeshare.Col(bikeshare.NumTrips, bikeshare.Integer),
	bikeshare.Col(bikeshare.DurationMean, bikeshare.Float).Null(),
	bikeshare.Col(bikeshare.DownloadedColumn, bikeshare.Boolean),
	bikeshare.Col(bikeshare.LastModifiedColumn, bikeshare.Timestamp).Null(),
).WithKey(bikeshare.SourceFileColumn, bikeshare.StationName)

var (
	jan = time.Date(2021, 2, 3, 10, 0, 0, 0, time.UTC)
	feb = time.Date(2021, 3, 4, 11, 0, 0, 0, time.UTC)
)

func aggTable(t *testing.T, rows ...[]interface{}) *bikeshare.Table {
	t.Helper()
	tbl := bikeshare.NewTable("agg", aggContract.Names()...)
	for _, r := range rows {
		if err := tbl.Append(r...); err != nil {
			t.Fatal(err)
		}
	}
	return tbl
}

func tempDir(t *testing.T) string {
	t.Helper()
	dir, err := ioutil.TempDir("", "store")
	if err != nil {
		t.Fatalf("getting temp dir: %v", err)
	}
	return dir
}

func TestWriteRead(t *testing.T) {
	dir := tempDir(t)
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "agg.parquet")
	in := aggTable(t,
		[]interface{}{"2021-01.csv", "Bay St", int64(3), 612.5, true, jan},
		[]interface{}{"2021-01.csv", "King St", int64(1), nil, false, nil},
	)
	if err := store.WriteFile(path, in, aggContract); err != nil {
		t.Fatalf("writing: %v", err)
	}
	out, err := store.Read(path, "agg")
	if err != nil {
		t.Fatalf("reading: %v", err)
	}
	if out.Len() != 2 {
		t.Fatalf("expected 2 rows, got %d", out.Len())
	}
	for i := 0; i < 2; i++ {
		for _, c := range aggContract.Names() {
			a, b := in.Value(i, c), out.Value(i, c)
			if bikeshare.Compare(a, b) != 0 {
				t.Fatalf("row %d column %s: wrote %#v, read %#v", i, c, a, b)
			}
		}
	}
	if err := aggContract.Validate(out); err != nil {
		t.Fatalf("read table fails its contract: %v", err)
	}
}

func TestUpdateReplacesSource(t *testing.T) {
	dir := tempDir(t)
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "agg.parquet")
	orig := aggTable(t,
		[]interface{}{"2021-01.csv", "Bay St", int64(3), 600.0, true, jan},
		[]interface{}{"2021-01.csv", "King St", int64(2), 300.0, true, jan},
		[]interface{}{"2021-02.csv", "Bay St", int64(4), 100.0, true, jan},
		[]interface{}{"2021-02.csv", "Queen St", int64(9), 200.0, true, jan},
	)
	if err := store.WriteFile(path, orig, aggContract); err != nil {
		t.Fatalf("writing: %v", err)
	}
	batch := aggTable(t,
		[]interface{}{"2021-02.csv", "Bay St", int64(5), 110.0, true, feb},
	)
	u, err := store.NewUpdater(aggContract)
	if err != nil {
		t.Fatalf("getting updater: %v", err)
	}
	for n := 0; n < 2; n++ {
		rep, err := u.Update(path, batch, path)
		if err != nil {
			t.Fatalf("update %d: %v", n, err)
		}
		if rep.Kept != 2 || rep.Added != 1 {
			t.Fatalf("update %d: unexpected report %+v", n, rep)
		}
		got, err := store.Read(path, "agg")
		if err != nil {
			t.Fatalf("reading: %v", err)
		}
		if got.Len() != 3 {
			t.Fatalf("update %d: expected 3 rows, got %d", n, got.Len())
		}
		for i := 0; i < 2; i++ {
			if got.Value(i, bikeshare.SourceFileColumn) != "2021-01.csv" || got.Value(i, bikeshare.NumTrips) != orig.Value(i, bikeshare.NumTrips) {
				t.Fatalf("update %d: row %d of the untouched source changed: %v", n, i, got.Row(i))
			}
		}
		if got.Value(2, bikeshare.NumTrips) != int64(5) || got.Value(2, bikeshare.StationName) != "Bay St" {
			t.Fatalf("update %d: unexpected new row %v", n, got.Row(2))
		}
	}
}

func TestUpdateNewStore(t *testing.T) {
	dir := tempDir(t)
	defer os.RemoveAll(dir)
	u, err := store.NewUpdater(aggContract)
	if err != nil {
		t.Fatalf("getting updater: %v", err)
	}
	out := filepath.Join(dir, "new.parquet")
	rep, err := u.Update(filepath.Join(dir, "missing.parquet"), aggTable(t, []interface{}{"a.csv", "Bay St", int64(1), 1.0, false, nil}), out)
	if err != nil {
		t.Fatalf("updating: %v", err)
	}
	if rep.Existing != 0 || rep.Added != 1 {
		t.Fatalf("unexpected report %+v", rep)
	}
	if _, err := os.Stat(out); err != nil {
		t.Fatalf("store was not written: %v", err)
	}
}

func TestUpdateFailures(t *testing.T) {
	dir := tempDir(t)
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "agg.parquet")
	orig := aggTable(t, []interface{}{"2021-01.csv", "Bay St", int64(3), 600.0, true, jan})
	if err := store.WriteFile(path, orig, aggContract); err != nil {
		t.Fatalf("writing: %v", err)
	}
	before, err := ioutil.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	u, err := store.NewUpdater(aggContract)
	if err != nil {
		t.Fatalf("getting updater: %v", err)
	}

	batch := aggTable(t, []interface{}{"2021-01.csv", "Bay St", int64(4), 1.0, true, feb})
	_, err = u.Update(path, batch, filepath.Join(dir, "no", "such", "dir", "agg.parquet"))
	if _, ok := errors.Cause(err).(*bikeshare.StoreWriteFailure); !ok {
		t.Fatalf("expected a StoreWriteFailure, got %v", err)
	}

	dup := aggTable(t,
		[]interface{}{"2021-01.csv", "Bay St", int64(4), 1.0, true, feb},
		[]interface{}{"2021-01.csv", "Bay St", int64(5), 1.0, true, feb},
	)
	_, err = u.Update(path, dup, path)
	if _, ok := errors.Cause(err).(*bikeshare.SchemaViolation); !ok {
		t.Fatalf("expected a SchemaViolation for a duplicate key, got %v", err)
	}

	after, err := ioutil.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(before) != string(after) {
		t.Fatalf("failed updates modified the store")
	}
	if _, err := store.NewUpdater(bikeshare.NewContract("x", bikeshare.Col("A", bikeshare.String))); err == nil {
		t.Fatalf("expected an error for a contract without %s", bikeshare.SourceFileColumn)
	}
}

func TestPlan(t *testing.T) {
	dir := tempDir(t)
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "agg.parquet")
	for _, f := range []string{"2021-01.csv", "2021-02.csv", "2021-04.csv"} {
		if err := ioutil.WriteFile(filepath.Join(dir, f), []byte("x"), 0600); err != nil {
			t.Fatal(err)
		}
	}
	sources := []bikeshare.SourceFile{
		{Name: "trips/2021-01.csv", LastModified: jan},
		{Name: "trips/2021-02.csv", LastModified: feb},
		{Name: "trips/2021-03.csv", LastModified: jan},
		{Name: "trips/2021-04.csv", LastModified: jan},
	}

	statuses, err := store.Plan(path, sources, dir)
	if err != nil {
		t.Fatalf("planning without store: %v", err)
	}
	for _, s := range statuses {
		if !s.Refresh || s.Reason() != "no store" {
			t.Fatalf("expected refresh without store: %+v", s)
		}
	}

	err = store.WriteFile(path, aggTable(t,
		[]interface{}{"trips/2021-01.csv", "Bay St", int64(3), 1.0, true, jan},
		[]interface{}{"trips/2021-02.csv", "Bay St", int64(3), 1.0, true, jan},
		[]interface{}{"trips/2021-03.csv", "Bay St", int64(3), 1.0, true, jan},
	), aggContract)
	if err != nil {
		t.Fatalf("writing: %v", err)
	}
	statuses, err = store.Plan(path, sources, dir)
	if err != nil {
		t.Fatalf("planning: %v", err)
	}
	tests := []struct {
		refresh bool
		reason  string
	}{
		{false, "up to date"},
		{true, "outdated"},
		{true, "raw file missing"},
		{true, "not in store"},
	}
	for i, test := range tests {
		s := statuses[i]
		if s.Refresh != test.refresh || s.Reason() != test.reason {
			t.Fatalf("source %s: refresh %v (%s), want %v (%s)", s.Source.Name, s.Refresh, s.Reason(), test.refresh, test.reason)
		}
	}
}
