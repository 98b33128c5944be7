package enrich_test

import (
	"context"
	"testing"

	"github.com/pilosa/bikeshare"
	"github.com/pilosa/bikeshare/enrich"
	"github.com/pilosa/bikeshare/mock"
	"github.com/pilosa/bikeshare/spatial"
	"github.com/pkg/errors"
)

func square(minLon, minLat, maxLon, maxLat float64) spatial.MultiPolygon {
	return spatial.MultiPolygon{{Outer: spatial.Ring{
		{Lat: minLat, Lon: minLon}, {Lat: minLat, Lon: maxLon},
		{Lat: maxLat, Lon: maxLon}, {Lat: maxLat, Lon: minLon},
	}}}
}

// neighbourhoods returns three disjoint areas A, B and C along the equator.
func neighbourhoods(t *testing.T) *bikeshare.Table {
	t.Helper()
	tbl := bikeshare.NewTable(bikeshare.ContractNeighbourhoods,
		bikeshare.AreaID, bikeshare.AreaShortCode, bikeshare.AreaLongCode, bikeshare.AreaName,
		bikeshare.ShapeArea, bikeshare.AreaLatitude, bikeshare.AreaLongitude, bikeshare.GeometryColumn)
	for i, name := range []string{"A", "B", "C"} {
		lon := float64(2 * i)
		g := square(lon, 0, lon+1, 1)
		c := g.Centroid()
		if err := tbl.Append(int64(i+1), nil, nil, name, g.Area(), c.Lat, c.Lon, g); err != nil {
			t.Fatal(err)
		}
	}
	return tbl
}

func stations(t *testing.T, coords ...[2]float64) *bikeshare.Table {
	t.Helper()
	tbl := bikeshare.NewTable(bikeshare.ContractStations,
		bikeshare.StationID, bikeshare.Name, bikeshare.PhysicalConfiguration, bikeshare.Lat, bikeshare.Lon,
		bikeshare.Altitude, bikeshare.Address, bikeshare.Capacity,
		bikeshare.PhysicalKey, bikeshare.TransitCard, bikeshare.CreditCard, bikeshare.Phone)
	for i, c := range coords {
		err := tbl.Append(int64(7000+i), "station "+string(rune('a'+i)), "REGULAR", c[0], c[1],
			nil, nil, int64(15), int64(1), int64(0), int64(1), int64(0))
		if err != nil {
			t.Fatal(err)
		}
	}
	return tbl
}

func fiveStations(t *testing.T) *bikeshare.Table {
	return stations(t, [2]float64{0.5, 0.5}, [2]float64{0.2, 0.8}, [2]float64{0.5, 2.5}, [2]float64{0.9, 2.1}, [2]float64{5, 5})
}

func registry(t *testing.T) *bikeshare.Registry {
	t.Helper()
	reg, err := bikeshare.NewDefaultRegistry(bikeshare.RegistryOptions{})
	if err != nil {
		t.Fatalf("building registry: %v", err)
	}
	return reg
}

func TestEnrichStations(t *testing.T) {
	stats := &mock.RecordingStatter{}
	e, err := enrich.NewEnricher(registry(t), neighbourhoods(t), enrich.OptStatter(stats))
	if err != nil {
		t.Fatalf("getting enricher: %v", err)
	}
	out, rep, err := e.Enrich(enrich.Stations, fiveStations(t))
	if err != nil {
		t.Fatalf("enriching: %v", err)
	}
	if out.Len() != 4 || rep.Dropped() != 1 {
		t.Fatalf("expected 4 rows and 1 dropped, got %d and %d", out.Len(), rep.Dropped())
	}
	if out.Name() != bikeshare.ContractStationsEnriched {
		t.Fatalf("unexpected name %s", out.Name())
	}
	if out.Has(bikeshare.GeometryColumn) {
		t.Fatalf("enriched stations should not carry the polygon geometry")
	}
	if n := stats.CountedWith("enrich.dropped", "dataset:stations"); n != 1 {
		t.Fatalf("dropped count sent to statter = %d", n)
	}
}

func TestEnrichInvalid(t *testing.T) {
	e, err := enrich.NewEnricher(registry(t), neighbourhoods(t))
	if err != nil {
		t.Fatalf("getting enricher: %v", err)
	}
	bad := fiveStations(t).Drop(bikeshare.Capacity)
	_, _, err = e.Enrich(enrich.Stations, bad)
	sv, ok := errors.Cause(err).(*bikeshare.SchemaViolation)
	if !ok {
		t.Fatalf("expected a schema violation, got %v", err)
	}
	if cols := sv.Columns(); len(cols) != 1 || cols[0] != bikeshare.Capacity {
		t.Fatalf("unexpected violating columns %v", cols)
	}

	if _, err := enrich.NewEnricher(registry(t), neighbourhoods(t), enrich.OptCRS(27700)); err == nil {
		t.Fatalf("expected error for unsupported CRS")
	}
}

func TestEnrichAll(t *testing.T) {
	e, err := enrich.NewEnricher(registry(t), neighbourhoods(t), enrich.OptPrecision(3))
	if err != nil {
		t.Fatalf("getting enricher: %v", err)
	}
	insts := bikeshare.NewTable(bikeshare.ContractInstitutions, bikeshare.InstitutionID, bikeshare.InstitutionName, bikeshare.Lat, bikeshare.Lon)
	for i, c := range [][2]float64{{0.5, 4.5}, {0.5, 4.6}, {0.5, 0.5}} {
		if err := insts.Append(int64(i), string(rune('x'+i)), c[0], c[1]); err != nil {
			t.Fatal(err)
		}
	}
	res, err := e.EnrichAll(context.Background(),
		enrich.Input{Kind: enrich.Stations, Table: fiveStations(t)},
		enrich.Input{Kind: enrich.Institutions, Table: insts},
	)
	if err != nil {
		t.Fatalf("enriching: %v", err)
	}
	if len(res) != 2 || res[0].Kind.Name != "stations" || res[1].Kind.Name != "institutions" {
		t.Fatalf("results out of order: %+v", res)
	}
	got := enrich.Find(res, enrich.Institutions)
	if got.Len() != 3 || got.Value(0, bikeshare.AreaName) != "C" || got.Value(2, bikeshare.AreaName) != "A" {
		t.Fatalf("unexpected institutions %v", got)
	}
	if enrich.Find(res, enrich.TransitStops) != nil {
		t.Fatalf("found a result for a kind that was not enriched")
	}

	_, err = e.EnrichAll(context.Background(),
		enrich.Input{Kind: enrich.Stations, Table: fiveStations(t)},
		enrich.Input{Kind: enrich.Institutions, Table: fiveStations(t)},
	)
	if err == nil {
		t.Fatalf("expected an error when a dataset fails its contract")
	}
}

func TestDefaultInstitutions(t *testing.T) {
	insts := enrich.DefaultInstitutions()
	if insts.Len() != 11 {
		t.Fatalf("expected 11 institutions, got %d", insts.Len())
	}
	if err := registry(t).Validate(bikeshare.ContractInstitutions, insts); err != nil {
		t.Fatalf("default institutions fail their contract: %v", err)
	}
}
