package termstat

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestCollector(t *testing.T) {
	buf := &bytes.Buffer{}
	c := NewCollector(buf, time.Hour)
	c.Count("trips.duplicates", 2, 1)
	c.Count("trips.duplicates", 3, 1)
	c.Count("enrich.dropped", 1, 1, "dataset:stations")
	c.Count("never", 1, 0)
	if err := c.Close(); err != nil {
		t.Fatalf("closing: %v", err)
	}
	out := buf.String()
	if out != "\rtrips.duplicates: 5 enrich.dropped[dataset:stations]: 1 \n" {
		t.Fatalf("unexpected output %q", out)
	}
	if strings.Contains(out, "never") {
		t.Fatalf("zero rate count was recorded")
	}
}
