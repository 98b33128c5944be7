package promstat_test

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pilosa/bikeshare/promstat"
)

func TestCollector(t *testing.T) {
	c := promstat.NewCollector("bikeshare")
	c.Count("enrich.dropped", 1, 1, "dataset:stations")
	c.Count("enrich.dropped", 2, 1, "dataset:stations")
	c.Count("enrich.dropped", 4, 1, "dataset:institutions", "extra:ignored")
	c.Gauge("store.rows", 12, 1)
	c.Timing("pilosa.export", 1500*time.Millisecond, 1)
	c.Set("run.granularity", "full", 1)

	fams, err := c.Registry().Gather()
	if err != nil {
		t.Fatalf("gathering: %v", err)
	}
	got := map[string]float64{}
	for _, f := range fams {
		for _, m := range f.GetMetric() {
			key := f.GetName()
			for _, l := range m.GetLabel() {
				key += "," + l.GetName() + "=" + l.GetValue()
			}
			switch {
			case m.Counter != nil:
				got[key] = m.Counter.GetValue()
			case m.Gauge != nil:
				got[key] = m.Gauge.GetValue()
			case m.Histogram != nil:
				got[key] = m.Histogram.GetSampleSum()
			}
		}
	}
	exp := map[string]float64{
		"bikeshare_enrich_dropped_total,dataset=stations":     3,
		"bikeshare_enrich_dropped_total,dataset=institutions": 4,
		"bikeshare_store_rows":                                12,
		"bikeshare_pilosa_export_seconds":                     1.5,
		"bikeshare_run_granularity_info,value=full":           1,
	}
	for k, v := range exp {
		if got[k] != v {
			t.Fatalf("%s = %v, want %v (all: %v)", k, got[k], v, got)
		}
	}
}

func TestWriteTextfile(t *testing.T) {
	dir, err := ioutil.TempDir("", "promstat")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	c := promstat.NewCollector("bikeshare")
	c.Count("trips.duplicates", 7, 1)
	path := filepath.Join(dir, "bikeshare.prom")
	if err := c.WriteTextfile(path); err != nil {
		t.Fatalf("writing textfile: %v", err)
	}
	data, err := ioutil.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "bikeshare_trips_duplicates_total 7") {
		t.Fatalf("unexpected textfile:\n%s", data)
	}
}
