package pilosa_test

import (
	"sync"
	"testing"
	"time"

	"github.com/pilosa/bikeshare"
	"github.com/pilosa/bikeshare/pilosa"
)

type bit struct {
	field    string
	col, row uint64
	ts       time.Time
}

type fakeIndexer struct {
	mu     sync.Mutex
	bits   []bit
	values map[string]map[uint64]int64
}

func newFakeIndexer() *fakeIndexer {
	return &fakeIndexer{values: make(map[string]map[uint64]int64)}
}

func (f *fakeIndexer) AddColumn(field string, col, row uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bits = append(f.bits, bit{field: field, col: col, row: row})
}

func (f *fakeIndexer) AddColumnTimestamp(field string, col, row uint64, ts time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bits = append(f.bits, bit{field: field, col: col, row: row, ts: ts})
}

func (f *fakeIndexer) AddValue(field string, col uint64, val int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.values[field] == nil {
		f.values[field] = make(map[uint64]int64)
	}
	f.values[field][col] = val
}

func (f *fakeIndexer) Close() error { return nil }

func (f *fakeIndexer) rows(field string) map[uint64]uint64 {
	ret := map[uint64]uint64{}
	for _, b := range f.bits {
		if b.field == field {
			ret[b.col] = b.row
		}
	}
	return ret
}

func hourly(t *testing.T) *bikeshare.Table {
	t.Helper()
	tbl := bikeshare.NewTable(bikeshare.ContractStationHourly,
		bikeshare.SourceFileColumn, bikeshare.CSVFileColumn, bikeshare.StationName,
		bikeshare.Year, bikeshare.Month, bikeshare.Day, bikeshare.Hour,
		bikeshare.UserType, bikeshare.StationType, bikeshare.AreaName,
		bikeshare.NumTrips, bikeshare.DurationMin, bikeshare.DurationMedian, bikeshare.DurationMean, bikeshare.DurationMax,
		bikeshare.Capacity)
	rows := [][]interface{}{
		{"trips/2021-07.csv", "2021-07.csv", "Bay St", int64(2021), int64(7), int64(1), int64(8), bikeshare.AnnualMember, bikeshare.StationTypeStart, "A", int64(2), 100.0, 200.0, 200.4, 300.0, int64(15)},
		{"trips/2021-07.csv", "2021-07.csv", "Bay St", int64(2021), int64(7), int64(1), int64(8), bikeshare.AnnualMember, bikeshare.StationTypeEnd, "A", int64(1), 50.0, 50.0, 50.5, 50.0, int64(15)},
		{"trips/2021-07.csv", "2021-07.csv", "King St", int64(2021), int64(7), int64(1), int64(9), bikeshare.CasualMember, bikeshare.StationTypeStart, "B", int64(3), 10.0, 20.0, 20.0, 30.0, int64(20)},
	}
	for _, r := range rows {
		if err := tbl.Append(r...); err != nil {
			t.Fatal(err)
		}
	}
	return tbl
}

func TestExport(t *testing.T) {
	idx := newFakeIndexer()
	tr := bikeshare.NewMapTranslator()
	toronto, err := time.LoadLocation("America/Toronto")
	if err != nil {
		t.Fatal(err)
	}
	e := pilosa.NewExporter(idx, tr, pilosa.OptExporterLocation(toronto))
	n, err := e.Export(hourly(t))
	if err != nil {
		t.Fatalf("exporting: %v", err)
	}
	if n != 3 {
		t.Fatalf("exported %d rows", n)
	}

	stations := idx.rows(pilosa.FieldStation)
	if len(stations) != 3 || stations[0] != stations[1] || stations[0] == stations[2] {
		t.Fatalf("unexpected station bits %v", stations)
	}
	if name, err := tr.Get(pilosa.FieldStation, stations[2]); err != nil || name != "King St" {
		t.Fatalf("station row %d translates to %s, %v", stations[2], name, err)
	}
	types := idx.rows(pilosa.FieldStationType)
	if types[0] == types[1] || types[0] != types[2] {
		t.Fatalf("unexpected station type bits %v", types)
	}
	if got := idx.values[pilosa.FieldDurationAvg]; got[0] != 200 || got[1] != 51 {
		t.Fatalf("unexpected rounded means %v", got)
	}
	if got := idx.values[pilosa.FieldNumTrips][2]; got != 3 {
		t.Fatalf("unexpected trip count %d", got)
	}
	var hours []time.Time
	for _, b := range idx.bits {
		if b.field == pilosa.FieldHour {
			hours = append(hours, b.ts)
		}
	}
	if len(hours) != 3 || !hours[2].Equal(time.Date(2021, 7, 1, 13, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected hour timestamps %v", hours)
	}

	// a second export of the same rows reuses their columns
	before := len(idx.bits)
	if _, err := e.Export(hourly(t)); err != nil {
		t.Fatalf("exporting again: %v", err)
	}
	again := idx.rows(pilosa.FieldStation)
	if len(again) != 3 || len(idx.bits) != 2*before {
		t.Fatalf("re-export allocated new columns: %v", again)
	}
}

func TestExportMissingColumn(t *testing.T) {
	tbl := hourly(t).Drop(bikeshare.AreaName)
	if _, err := pilosa.NewExporter(newFakeIndexer(), bikeshare.NewMapTranslator()).Export(tbl); err == nil {
		t.Fatalf("expected an error without AREA_NAME")
	}
}
