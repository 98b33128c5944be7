package aggregate_test

import (
	"context"
	"testing"
	"time"

	"github.com/pilosa/bikeshare"
	"github.com/pilosa/bikeshare/aggregate"
	"github.com/pilosa/bikeshare/enrich"
	"github.com/pilosa/bikeshare/spatial"
)

type fixture struct {
	reg      *bikeshare.Registry
	agg      *aggregate.Aggregator
	polygons *bikeshare.Table
	enriched []enrich.Result
}

func square(minLon, minLat, maxLon, maxLat float64) spatial.MultiPolygon {
	return spatial.MultiPolygon{{Outer: spatial.Ring{
		{Lat: minLat, Lon: minLon}, {Lat: minLat, Lon: maxLon},
		{Lat: maxLat, Lon: maxLon}, {Lat: maxLat, Lon: minLon},
	}}}
}

func appendRows(t *testing.T, tbl *bikeshare.Table, rows ...[]interface{}) *bikeshare.Table {
	t.Helper()
	for _, r := range rows {
		if err := tbl.Append(r...); err != nil {
			t.Fatal(err)
		}
	}
	return tbl
}

func emptyInput(t *testing.T, reg *bikeshare.Registry, kind enrich.Kind) enrich.Input {
	t.Helper()
	c, err := reg.Get(kind.Input)
	if err != nil {
		t.Fatal(err)
	}
	return enrich.Input{Kind: kind, Table: bikeshare.NewTable(kind.Input, c.Names()...)}
}

// newFixture builds three disjoint neighbourhoods A, B and C, five stations
// (a and b in A, c and d in B, e outside) and one college in A, and enriches
// them.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	reg, err := bikeshare.NewDefaultRegistry(bikeshare.RegistryOptions{})
	if err != nil {
		t.Fatalf("building registry: %v", err)
	}
	agg, err := aggregate.NewAggregator(reg)
	if err != nil {
		t.Fatalf("getting aggregator: %v", err)
	}
	polygons := bikeshare.NewTable(bikeshare.ContractNeighbourhoods,
		bikeshare.AreaID, bikeshare.AreaShortCode, bikeshare.AreaLongCode, bikeshare.AreaName,
		bikeshare.ShapeArea, bikeshare.AreaLatitude, bikeshare.AreaLongitude, bikeshare.GeometryColumn)
	for i, name := range []string{"A", "B", "C"} {
		lon := float64(2 * i)
		g := square(lon, 0, lon+1, 1)
		c := g.Centroid()
		appendRows(t, polygons, []interface{}{int64(i + 1), nil, nil, name, g.Area(), c.Lat, c.Lon, g})
	}

	stations := bikeshare.NewTable(bikeshare.ContractStations,
		bikeshare.StationID, bikeshare.Name, bikeshare.PhysicalConfiguration, bikeshare.Lat, bikeshare.Lon,
		bikeshare.Altitude, bikeshare.Address, bikeshare.Capacity,
		bikeshare.PhysicalKey, bikeshare.TransitCard, bikeshare.CreditCard, bikeshare.Phone)
	for i, c := range [][2]float64{{0.5, 0.5}, {0.2, 0.8}, {0.5, 2.5}, {0.9, 2.1}, {5, 5}} {
		appendRows(t, stations, []interface{}{int64(7000 + i), "station " + string(rune('a'+i)), "REGULAR", c[0], c[1],
			nil, nil, int64(15), int64(1), int64(0), int64(1), int64(0)})
	}
	colleges := appendRows(t, bikeshare.NewTable(bikeshare.ContractInstitutions,
		bikeshare.InstitutionID, bikeshare.InstitutionName, bikeshare.Lat, bikeshare.Lon),
		[]interface{}{int64(0), "ocad", 0.4, 0.4})

	e, err := enrich.NewEnricher(reg, polygons)
	if err != nil {
		t.Fatalf("getting enricher: %v", err)
	}
	enriched, err := e.EnrichAll(context.Background(),
		enrich.Input{Kind: enrich.Stations, Table: stations},
		enrich.Input{Kind: enrich.Institutions, Table: colleges},
		emptyInput(t, reg, enrich.TransitStops),
		emptyInput(t, reg, enrich.PointsOfInterest),
		emptyInput(t, reg, enrich.CulturalHotspots),
	)
	if err != nil {
		t.Fatalf("enriching: %v", err)
	}
	return &fixture{reg: reg, agg: agg, polygons: polygons, enriched: enriched}
}

func (f *fixture) demographics(t *testing.T) *bikeshare.Table {
	return appendRows(t, bikeshare.NewTable(bikeshare.ContractDemographics,
		bikeshare.AreaName, bikeshare.Population, bikeshare.Youth15To24, bikeshare.WorkingAge25To54),
		[]interface{}{"A", "12,345", "", " 1,000 "},
		[]interface{}{"B", "2000", "300", "1,200"},
	)
}

func (f *fixture) neighbourhoods(t *testing.T, v aggregate.Variant) *bikeshare.Table {
	t.Helper()
	var demo *bikeshare.Table
	if v.Demographics {
		demo = f.demographics(t)
	}
	out, err := f.agg.Neighbourhoods(f.polygons, f.enriched, demo, v)
	if err != nil {
		t.Fatalf("aggregating neighbourhoods: %v", err)
	}
	return out
}

func (f *fixture) stationStats(t *testing.T, v aggregate.Variant) *bikeshare.Table {
	t.Helper()
	out, err := f.agg.StationNeighbourhoods(enrich.Find(f.enriched, enrich.Stations), f.neighbourhoods(t, v), v)
	if err != nil {
		t.Fatalf("merging stations: %v", err)
	}
	return out
}

var tripColumns = []string{
	bikeshare.TripID, bikeshare.TripDuration, bikeshare.StartStationID, bikeshare.StartStationName, bikeshare.StartTime,
	bikeshare.EndStationID, bikeshare.EndStationName, bikeshare.EndTime, bikeshare.BikeID, bikeshare.UserType,
}

func at(hh, mm, ss int) time.Time {
	return time.Date(2021, 7, 1, hh, mm, ss, 0, time.UTC)
}

// rawTrips are six trips on 2021-07-01 around 08:00 in Toronto. Trip 2 is
// repeated, trip 4 has no start station and trip 5 starts at a station
// without metadata.
func rawTrips(t *testing.T) *bikeshare.Table {
	return appendRows(t, bikeshare.NewTable(bikeshare.ContractTripsRaw, tripColumns...),
		[]interface{}{int64(1), int64(100), int64(7000), "station a", at(12, 0, 0), int64(7002), "station c", at(12, 1, 40), int64(1), bikeshare.AnnualMember},
		[]interface{}{int64(2), int64(300), int64(7000), "station a", at(12, 30, 0), int64(7002), "station c", at(12, 35, 0), int64(2), bikeshare.AnnualMember},
		[]interface{}{int64(2), int64(999), int64(7000), "station a", at(12, 30, 0), int64(7002), "station c", at(12, 46, 39), int64(2), bikeshare.AnnualMember},
		[]interface{}{int64(3), int64(200), int64(7000), "station a", at(12, 10, 0), nil, nil, nil, nil, bikeshare.CasualMember},
		[]interface{}{int64(4), int64(50), nil, nil, at(12, 15, 0), int64(7000), "station a", at(12, 16, 0), nil, bikeshare.CasualMember},
		[]interface{}{int64(5), int64(400), int64(9999), "ghost", at(12, 20, 0), int64(7000), "station a", at(12, 27, 0), nil, bikeshare.AnnualMember},
	)
}

func (f *fixture) trips(t *testing.T) *bikeshare.Table {
	t.Helper()
	out, _, err := f.agg.ProcessTrips(rawTrips(t))
	if err != nil {
		t.Fatalf("processing trips: %v", err)
	}
	return out
}

var july = aggregate.SourceInfo{
	File:       bikeshare.SourceFile{Name: "trips/2021-07.csv", LastModified: time.Date(2021, 8, 2, 0, 0, 0, 0, time.UTC)},
	Downloaded: true,
}
