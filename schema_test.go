package bikeshare

import (
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
)

func tripsTable(t *testing.T, userTypes ...string) *Table {
	t.Helper()
	tbl := NewTable("trips 2021-01", TripID, TripDuration, StartStationID, StartStationName, StartTime,
		EndStationID, EndStationName, EndTime, BikeID, UserType)
	start := time.Date(2021, 1, 1, 0, 4, 0, 0, time.UTC)
	for i, ut := range userTypes {
		mustAppend(t, tbl, []interface{}{int64(i), int64(600), int64(7000), "Queen St W / Spadina Ave", start,
			nil, nil, nil, nil, ut})
	}
	return tbl
}

func TestValidateUserTypeUnknown(t *testing.T) {
	reg, err := NewDefaultRegistry(RegistryOptions{})
	if err != nil {
		t.Fatalf("building registry: %v", err)
	}
	tbl := tripsTable(t, AnnualMember, CasualMember, "Unknown")
	err = reg.Validate(ContractTripsRaw, tbl)
	sv, ok := errors.Cause(err).(*SchemaViolation)
	if !ok {
		t.Fatalf("expected *SchemaViolation, got %T: %v", err, err)
	}
	MustBe(t, sv.Columns(), []string{UserType})
	MustBe(t, sv.Violations[0].Sample, "Unknown")
	MustBe(t, sv.Violations[0].Row, 2)
	if !strings.Contains(sv.Error(), "Unknown") || !strings.Contains(sv.Error(), UserType) {
		t.Fatalf("error should name column and value: %v", sv)
	}

	if err := reg.Validate(ContractTripsRaw, tripsTable(t, AnnualMember, CasualMember)); err != nil {
		t.Fatalf("valid trips rejected: %v", err)
	}
}

func TestContractViolations(t *testing.T) {
	c := NewContract("c",
		Col("ID", Integer).Uniq(),
		Col("NAME", String),
		Col("SCORE", Float).Null().Allow(InRange(0, 1)),
		Col("WHEN", Timestamp).Allow(YearIn(2021)),
	)
	tests := []struct {
		name string
		row  []interface{}
		col  string
	}{
		{"null", []interface{}{int64(2), nil, 0.5, time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC)}, "NAME"},
		{"type", []interface{}{"2", "b", 0.5, time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC)}, "ID"},
		{"range", []interface{}{int64(2), "b", 1.5, time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC)}, "SCORE"},
		{"year", []interface{}{int64(2), "b", nil, time.Date(2020, 12, 31, 0, 0, 0, 0, time.UTC)}, "WHEN"},
		{"unique", []interface{}{int64(1), "b", nil, time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC)}, "ID"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			tbl := NewTable("d", "ID", "NAME", "SCORE", "WHEN")
			mustAppend(t, tbl, []interface{}{int64(1), "a", nil, time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)}, test.row)
			err := c.Validate(tbl)
			sv, ok := err.(*SchemaViolation)
			if !ok {
				t.Fatalf("expected violation, got %v", err)
			}
			MustBe(t, sv.Columns(), []string{test.col})
			MustBe(t, sv.Dataset, "d")
		})
	}

	missing := NewTable("d", "ID")
	sv, ok := c.Validate(missing).(*SchemaViolation)
	if !ok {
		t.Fatalf("expected violation for missing columns")
	}
	MustBe(t, sv.Columns(), []string{"NAME", "SCORE", "WHEN"})
}

func TestContractKeysAndDerivation(t *testing.T) {
	base := NewContract("base", Col("A", Integer), Col("B", String)).WithKey("A", "B")
	tbl := NewTable("d", "A", "B", "EXTRA")
	mustAppend(t, tbl, []interface{}{int64(1), "x", nil}, []interface{}{int64(1), "y", nil})
	if err := base.Validate(tbl); err != nil {
		t.Fatalf("distinct keys rejected: %v", err)
	}
	mustAppend(t, tbl, []interface{}{int64(1), "x", nil})
	sv, ok := base.Validate(tbl).(*SchemaViolation)
	if !ok {
		t.Fatalf("expected duplicate key violation")
	}
	MustBe(t, sv.Columns(), []string{"A+B"})

	ext := base.Extend("ext", Col("C", Float).Null(), Col("B", String).Null())
	MustBe(t, ext.Names(), []string{"A", "B", "C"})
	if col, _ := ext.Column("B"); !col.Nullable {
		t.Fatalf("Extend should replace existing column declarations")
	}
	MustBe(t, base.Names(), []string{"A", "B"})

	without := ext.Without("w", "B")
	MustBe(t, without.Names(), []string{"A", "C"})
	MustBe(t, len(without.Keys), 0)

	ren := base.Renamed("r", PrefixMap("NEIGH_", "B"))
	MustBe(t, ren.Names(), []string{"A", "NEIGH_B"})
	MustBe(t, ren.Keys, [][]string{{"A", "NEIGH_B"}})
	MustBe(t, base.Keys, [][]string{{"A", "B"}})

	conformed, err := NewContract("c", Col("B", String), Col("A", Integer)).Conform(tbl.Filter(func(i int, _ []interface{}) bool { return i < 2 }))
	if err != nil {
		t.Fatalf("conform: %v", err)
	}
	MustBe(t, conformed.Columns(), []string{"B", "A"})

	rekeyed := base.WithoutKey("A", "B").WithKey("A")
	MustBe(t, rekeyed.Keys, [][]string{{"A"}})
	MustBe(t, base.WithoutKey("B", "A").Keys, [][]string{{"A", "B"}})
	MustBe(t, base.Keys, [][]string{{"A", "B"}})
}

func TestDefaultRegistry(t *testing.T) {
	reg, err := NewDefaultRegistry(RegistryOptions{ValidYears: []int{2022}})
	if err != nil {
		t.Fatalf("building registry: %v", err)
	}
	if _, err := reg.Get("nope"); err == nil {
		t.Fatalf("expected error for unknown contract")
	}
	hourly, err := reg.Get(ContractAreaHourly)
	if err != nil {
		t.Fatalf("getting area hourly: %v", err)
	}
	if _, ok := hourly.Column(SourceFileColumn); !ok {
		t.Fatalf("area hourly contract lacks %s", SourceFileColumn)
	}
	stats, err := reg.Get(ContractStationStatsReduced)
	if err != nil {
		t.Fatalf("getting station stats: %v", err)
	}
	for _, col := range []string{StationID, AreaName, NeighCollegesUnivs} {
		if _, ok := stats.Column(col); !ok {
			t.Fatalf("station stats lacks %s: %v", col, stats.Names())
		}
	}
	if _, ok := stats.Column(GeometryColumn); ok {
		t.Fatalf("station stats should not carry geometry")
	}
	if err := reg.Register(NewContract(ContractTrips)); err == nil {
		t.Fatalf("expected error registering a name twice")
	}
	// trip years come from the options
	err = reg.Validate(ContractTripsRaw, tripsTable(t, AnnualMember))
	if _, ok := err.(*SchemaViolation); !ok {
		t.Fatalf("2021 trip should fail a 2022-only registry, got %v", err)
	}
}
