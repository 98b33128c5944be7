package sqlite

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/pilosa/bikeshare"
	"github.com/pilosa/bikeshare/store"
)

type wkt string

func (w wkt) WKT() string { return string(w) }

func TestMainCopiesParquet(t *testing.T) {
	dir, err := ioutil.TempDir("", "sqlite")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	c := bikeshare.NewContract("areas",
		bikeshare.Col(bikeshare.AreaName, bikeshare.String),
		bikeshare.Col(bikeshare.NeighStations, bikeshare.Integer),
		bikeshare.Col(bikeshare.GeometryColumn, bikeshare.GeometryType),
	).WithKey(bikeshare.AreaName)
	reg := bikeshare.NewRegistry()
	if err := reg.Register(c); err != nil {
		t.Fatal(err)
	}
	tbl := bikeshare.NewTable("areas", c.Names()...)
	if err := tbl.Append("A", int64(2), wkt("POINT (1 2)")); err != nil {
		t.Fatal(err)
	}
	pq := filepath.Join(dir, "areas.parquet")
	if err := store.WriteFile(pq, tbl, c); err != nil {
		t.Fatalf("writing parquet: %v", err)
	}

	m := NewMain()
	m.reg = reg
	m.Path = filepath.Join(dir, "dash.db")
	m.Tables = []string{"areas:" + pq}
	if err := m.Run(); err != nil {
		t.Fatalf("running: %v", err)
	}
	db, err := Open(m.Path)
	if err != nil {
		t.Fatalf("opening: %v", err)
	}
	defer db.Close()
	var geom string
	if err := db.QueryRow(`SELECT "GEOMETRY" FROM "areas" WHERE "AREA_NAME" = 'A'`).Scan(&geom); err != nil {
		t.Fatalf("querying: %v", err)
	}
	if geom != "POINT (1 2)" {
		t.Fatalf("unexpected geometry %q", geom)
	}

	for _, bad := range []string{"areas", "nope:" + pq, "areas:" + filepath.Join(dir, "missing.parquet")} {
		m.Tables = []string{bad}
		if err := m.Run(); err == nil {
			t.Fatalf("expected an error for %q", bad)
		}
	}
}
