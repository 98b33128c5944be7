package csv_test

import (
	"testing"
	"time"

	"github.com/pilosa/bikeshare"
	"github.com/pilosa/bikeshare/csv"
	"github.com/pkg/errors"
)

func tripsContract() *bikeshare.Contract {
	return bikeshare.NewContract("trips",
		bikeshare.Col("TRIP_ID", bikeshare.Integer),
		bikeshare.Col("DURATION", bikeshare.Float),
		bikeshare.Col("START_TIME", bikeshare.Timestamp),
		bikeshare.Col("NAME", bikeshare.String).Null(),
		bikeshare.Col("ACTIVE", bikeshare.Boolean).Null(),
	)
}

func TestDecode(t *testing.T) {
	toronto, err := time.LoadLocation("America/Toronto")
	if err != nil {
		t.Fatal(err)
	}
	tbl := bikeshare.NewTable("trips", "TRIP_ID", "DURATION", "START_TIME", "NAME", "ACTIVE", "EXTRA")
	for _, row := range [][]interface{}{
		{"1", "12.5", "07/01/2021 08:00", " Bay St ", "true", "x"},
		{"2.0", "3", "2021-07-01 09:30:15", nil, "", "7"},
	} {
		if err := tbl.Append(row...); err != nil {
			t.Fatal(err)
		}
	}
	out, err := csv.NewDecoder(tripsContract(), toronto).Decode(tbl)
	if err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if err := tripsContract().Validate(out); err != nil {
		t.Fatalf("decoded table fails the contract: %v", err)
	}
	if out.Value(1, "TRIP_ID") != int64(2) || out.Value(0, "DURATION") != 12.5 || out.Value(1, "DURATION") != 3.0 {
		t.Fatalf("unexpected numbers %v %v", out.Row(0), out.Row(1))
	}
	start := out.Value(0, "START_TIME").(time.Time)
	if !start.Equal(time.Date(2021, 7, 1, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("start time read in the wrong zone: %v", start)
	}
	if out.Value(0, "NAME") != "Bay St" || out.Value(1, "ACTIVE") != nil || out.Value(1, "EXTRA") != "7" {
		t.Fatalf("unexpected values %v %v", out.Row(0), out.Row(1))
	}
}

func TestDecodeViolations(t *testing.T) {
	tbl := bikeshare.NewTable("trips", "TRIP_ID", "DURATION", "START_TIME")
	for _, row := range [][]interface{}{
		{"1", "1", "yesterday"},
		{"2.5", "1", "2021-07-01"},
		{"x", "1", "2021-07-01"},
	} {
		if err := tbl.Append(row...); err != nil {
			t.Fatal(err)
		}
	}
	_, err := csv.NewDecoder(tripsContract(), nil).Decode(tbl)
	sv, ok := errors.Cause(err).(*bikeshare.SchemaViolation)
	if !ok {
		t.Fatalf("expected a schema violation, got %v", err)
	}
	if len(sv.Violations) != 2 {
		t.Fatalf("expected one violation per column, got %+v", sv.Violations)
	}
	got := map[string]bikeshare.ColumnViolation{}
	for _, v := range sv.Violations {
		got[v.Column] = v
	}
	if v := got["START_TIME"]; v.Sample != "yesterday" || v.Row != 0 {
		t.Fatalf("unexpected START_TIME violation %+v", v)
	}
	if v := got["TRIP_ID"]; v.Sample != "2.5" || v.Row != 1 {
		t.Fatalf("unexpected TRIP_ID violation %+v", v)
	}
}
