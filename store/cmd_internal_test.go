package store

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pilosa/bikeshare"
)

func TestMainUpdate(t *testing.T) {
	dir, err := ioutil.TempDir("", "store")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	c := bikeshare.NewContract("counts",
		bikeshare.Col(bikeshare.SourceFileColumn, bikeshare.String),
		bikeshare.Col(bikeshare.NumTrips, bikeshare.Integer),
		bikeshare.Col(bikeshare.LastModifiedColumn, bikeshare.Timestamp),
	)
	reg := bikeshare.NewRegistry()
	if err := reg.Register(c); err != nil {
		t.Fatal(err)
	}
	mod := time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC)
	write := func(name string, rows ...[]interface{}) string {
		tbl := bikeshare.NewTable("counts", c.Names()...)
		for _, r := range rows {
			if err := tbl.Append(r...); err != nil {
				t.Fatal(err)
			}
		}
		p := filepath.Join(dir, name)
		if err := WriteFile(p, tbl, c); err != nil {
			t.Fatalf("writing %s: %v", name, err)
		}
		return p
	}

	m := NewMain()
	m.reg = reg
	m.Contract = "counts"
	m.StorePath = write("store.parquet",
		[]interface{}{"2021-01.csv", int64(1), mod},
		[]interface{}{"2021-02.csv", int64(2), mod})
	m.BatchPath = write("batch.parquet",
		[]interface{}{"2021-02.csv", int64(20), mod.Add(time.Hour)},
		[]interface{}{"2021-02.csv", int64(21), mod.Add(time.Hour)})
	m.OutPath = filepath.Join(dir, "out.parquet")

	rep, err := m.Update()
	if err != nil {
		t.Fatalf("updating: %v", err)
	}
	if rep.Existing != 2 || rep.Replaced != 1 || rep.Kept != 1 || rep.Added != 2 {
		t.Fatalf("unexpected report: %+v", rep)
	}
	out, err := Read(m.OutPath, "counts")
	if err != nil {
		t.Fatalf("reading: %v", err)
	}
	if out.Len() != 3 || out.Value(1, bikeshare.NumTrips) != int64(20) {
		t.Fatalf("unexpected store: %d rows, second %v", out.Len(), out.Row(1))
	}
	// the input store is left alone when out-path is set
	orig, err := Read(m.StorePath, "counts")
	if err != nil {
		t.Fatalf("reading: %v", err)
	}
	if orig.Len() != 2 {
		t.Fatalf("expected the store to be untouched, got %d rows", orig.Len())
	}

	m.BatchPath = ""
	if _, err := m.Update(); err == nil {
		t.Fatalf("expected an error without a batch")
	}
}
