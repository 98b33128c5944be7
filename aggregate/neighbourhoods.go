package aggregate

import (
	"strconv"
	"strings"

	"github.com/pilosa/bikeshare"
	"github.com/pilosa/bikeshare/enrich"
	"github.com/pkg/errors"
)

// Count is a point dataset counted per neighbourhood. Column is the name of
// the count before the NEIGH_ prefix is applied.
type Count struct {
	Kind   enrich.Kind
	Column string
}

// Variant selects which counts the neighbourhood aggregate carries and the
// contracts of the aggregates derived from it.
type Variant struct {
	Name          string
	Contract      string
	StatsContract string
	Counts        []Count
	Demographics  bool
}

// FullVariant counts every point dataset and merges demographics.
var FullVariant = Variant{
	Name:          "full",
	Contract:      bikeshare.ContractNeighbourhoodAggregate,
	StatsContract: bikeshare.ContractStationStats,
	Counts: []Count{
		{enrich.Stations, "STATIONS"},
		{enrich.TransitStops, "TRANSIT_STOPS"},
		{enrich.Institutions, "COLLEGES_UNIVS"},
		{enrich.CulturalHotspots, "CULTURAL_ATTRACTIONS"},
		{enrich.PointsOfInterest, "PLACES_OF_INTEREST"},
	},
	Demographics: true,
}

// ReducedVariant only counts colleges and universities.
var ReducedVariant = Variant{
	Name:          "reduced",
	Contract:      bikeshare.ContractNeighbourhoodAggregateReduced,
	StatsContract: bikeshare.ContractStationStatsReduced,
	Counts:        []Count{{enrich.Institutions, "COLLEGES_UNIVS"}},
}

// Kinds returns the point dataset kinds the variant needs enriched.
func (v Variant) Kinds() []enrich.Kind {
	ret := make([]enrich.Kind, 0, len(v.Counts)+1)
	seen := map[string]bool{}
	// station metadata is always needed by the ridership aggregates
	for _, k := range append([]enrich.Kind{enrich.Stations}, kindsOf(v.Counts)...) {
		if !seen[k.Name] {
			seen[k.Name] = true
			ret = append(ret, k)
		}
	}
	return ret
}

func kindsOf(cs []Count) []enrich.Kind {
	ret := make([]enrich.Kind, len(cs))
	for i, c := range cs {
		ret[i] = c.Kind
	}
	return ret
}

var neighRenames = bikeshare.ColumnMap{
	bikeshare.ShapeArea:     bikeshare.NeighShapeArea,
	bikeshare.AreaLatitude:  bikeshare.NeighAreaLatitude,
	bikeshare.AreaLongitude: bikeshare.NeighAreaLongitude,
}

var demographicRenames = bikeshare.ColumnMap{
	bikeshare.Population:       bikeshare.NeighPopulation,
	bikeshare.Youth15To24:      bikeshare.NeighYouth15To24,
	bikeshare.WorkingAge25To54: bikeshare.NeighWorkingAge25To54,
}

// renames returns the declared rename table of the variant.
func (v Variant) renames() bikeshare.ColumnMap {
	m := neighRenames
	if v.Demographics {
		m = m.Merge(demographicRenames)
	}
	cols := make([]string, len(v.Counts))
	for i, c := range v.Counts {
		cols[i] = c.Column
	}
	return m.Merge(bikeshare.PrefixMap(bikeshare.NeighPrefix, cols...))
}

// Neighbourhoods builds one row per neighbourhood holding the counts of the
// variant, shape metrics and, for variants with demographics, the
// demographic profile. Neighbourhoods without points of a kind get a count of
// zero. demographics may be nil for variants without demographics.
func (a *Aggregator) Neighbourhoods(polygons *bikeshare.Table, enriched []enrich.Result, demographics *bikeshare.Table, v Variant) (*bikeshare.Table, error) {
	stage := "aggregating neighbourhoods (" + v.Name + ")"
	if err := a.reg.Validate(bikeshare.ContractNeighbourhoods, polygons); err != nil {
		return nil, errors.Wrapf(err, "%s: validating input", stage)
	}
	agg, err := polygons.Select(bikeshare.AreaName, bikeshare.ShapeArea, bikeshare.AreaLatitude, bikeshare.AreaLongitude, bikeshare.GeometryColumn)
	if err != nil {
		return nil, errors.Wrap(err, stage)
	}
	for _, c := range v.Counts {
		points := enrich.Find(enriched, c.Kind)
		if points == nil {
			return nil, errors.Errorf("%s: no enriched %s", stage, c.Kind.Name)
		}
		if err := a.reg.Validate(c.Kind.Output, points); err != nil {
			return nil, errors.Wrapf(err, "%s: validating input", stage)
		}
		counts, err := countBy(points, bikeshare.AreaName, c.Column)
		if err != nil {
			return nil, errors.Wrap(err, stage)
		}
		agg, _, err = bikeshare.Join(agg, counts, bikeshare.AreaName, bikeshare.AreaName, bikeshare.LeftJoin)
		if err != nil {
			return nil, errors.Wrapf(err, "%s: merging %s", stage, c.Kind.Name)
		}
		j := agg.Index(c.Column)
		for i := 0; i < agg.Len(); i++ {
			if agg.Row(i)[j] == nil {
				_ = agg.Set(i, c.Column, int64(0))
			}
		}
	}
	if v.Demographics {
		if demographics == nil {
			return nil, errors.Errorf("%s: no demographics", stage)
		}
		demo, err := a.parseDemographics(demographics)
		if err != nil {
			return nil, errors.Wrap(err, stage)
		}
		var missing int
		agg, missing, err = bikeshare.Join(agg, demo, bikeshare.AreaName, bikeshare.AreaName, bikeshare.LeftJoin)
		if err != nil {
			return nil, errors.Wrapf(err, "%s: merging demographics", stage)
		}
		if missing > 0 {
			a.log.Printf("%s: %d neighbourhoods without demographics", stage, missing)
		}
	}
	agg, err = agg.Rename(v.renames())
	if err != nil {
		return nil, errors.Wrap(err, stage)
	}
	return a.conform(stage, v.Contract, agg)
}

// countBy counts the rows of t per value of col, in order of first
// appearance.
func countBy(t *bikeshare.Table, col, countCol string) (*bikeshare.Table, error) {
	j := t.Index(col)
	if j < 0 {
		return nil, errors.Errorf("table '%s' has no column '%s'", t.Name(), col)
	}
	counts := make(map[interface{}]int64)
	var order []interface{}
	for i := 0; i < t.Len(); i++ {
		k := t.Row(i)[j]
		if _, ok := counts[k]; !ok {
			order = append(order, k)
		}
		counts[k]++
	}
	ret := bikeshare.NewTable(t.Name(), col, countCol)
	for _, k := range order {
		if err := ret.Append(k, counts[k]); err != nil {
			return nil, err
		}
	}
	return ret, nil
}

// parseDemographics converts the comma-grouped number strings of the
// demographics dataset to floats. Empty strings become null.
func (a *Aggregator) parseDemographics(t *bikeshare.Table) (*bikeshare.Table, error) {
	if err := a.reg.Validate(bikeshare.ContractDemographics, t); err != nil {
		return nil, errors.Wrap(err, "validating demographics")
	}
	cols := []string{bikeshare.AreaName, bikeshare.Population, bikeshare.Youth15To24, bikeshare.WorkingAge25To54}
	sel, err := t.Select(cols...)
	if err != nil {
		return nil, err
	}
	out := bikeshare.NewTable(t.Name(), cols...)
	for i := 0; i < sel.Len(); i++ {
		row := sel.Row(i)
		vals := []interface{}{row[0]}
		for k, v := range row[1:] {
			n, err := parseNumber(v)
			if err != nil {
				sv := &bikeshare.SchemaViolation{Dataset: t.Name(), Contract: bikeshare.ContractDemographics}
				sv.Violations = append(sv.Violations, bikeshare.ColumnViolation{Column: cols[k+1], Reason: "not a number", Sample: v, Row: i})
				return nil, sv
			}
			vals = append(vals, n)
		}
		if err := out.Append(vals...); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func parseNumber(v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	if f, ok := bikeshare.AsFloat(v); ok {
		return f, nil
	}
	s, ok := bikeshare.AsString(v)
	if !ok {
		return nil, errors.Errorf("unexpected %T", v)
	}
	s = strings.Replace(strings.TrimSpace(s), ",", "", -1)
	if s == "" {
		return nil, nil
	}
	return strconv.ParseFloat(s, 64)
}
