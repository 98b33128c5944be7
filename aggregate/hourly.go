package aggregate

import (
	"github.com/pilosa/bikeshare"
	"github.com/pkg/errors"
)

// SourceInfo identifies the raw trip file an aggregate was computed from.
type SourceInfo struct {
	File bikeshare.SourceFile
	// Downloaded is true when the file was fetched in this run.
	Downloaded bool
}

// Tag appends the source metadata columns to every row of t. A zero
// LastModified is stored as null.
func Tag(t *bikeshare.Table, src SourceInfo) (*bikeshare.Table, error) {
	var lastMod interface{}
	if !src.File.LastModified.IsZero() {
		lastMod = src.File.LastModified
	}
	cols := []struct {
		name string
		val  interface{}
	}{
		{bikeshare.SourceFileColumn, src.File.Name},
		{bikeshare.CSVFileColumn, src.File.Base()},
		{bikeshare.DownloadedColumn, src.Downloaded},
		{bikeshare.LastModifiedColumn, lastMod},
	}
	var err error
	for _, c := range cols {
		val := c.val
		t, err = t.AddColumn(c.name, func(int, []interface{}) interface{} { return val })
		if err != nil {
			return nil, errors.Wrap(err, "tagging source")
		}
	}
	return t, nil
}

var hourlyColumns = []string{
	bikeshare.StationName, bikeshare.Year, bikeshare.Month, bikeshare.Day, bikeshare.Hour,
	bikeshare.UserType, bikeshare.StationType,
	bikeshare.NumTrips, bikeshare.DurationMin, bikeshare.DurationMedian, bikeshare.DurationMean, bikeshare.DurationMax,
}

// StationHourly computes trip counts and duration statistics per station,
// hour and user type, once for trip starts and once for trip ends, and
// merges station metadata onto every row. Rows of stations without metadata
// are dropped and reported in the returned JoinMismatch. The result is
// sorted by descending NUM_TRIPS, ties by grouping key.
func (a *Aggregator) StationHourly(trips, stations *bikeshare.Table, src SourceInfo) (*bikeshare.Table, *bikeshare.JoinMismatch, error) {
	stage := "aggregating station hours"
	if err := a.trips.Validate(trips); err != nil {
		return nil, nil, errors.Wrapf(err, "%s: validating input", stage)
	}
	if err := a.reg.Validate(bikeshare.ContractStationStats, stations); err != nil {
		return nil, nil, errors.Wrapf(err, "%s: validating input", stage)
	}
	hourly := bikeshare.NewTable("station_hours", hourlyColumns...)
	for _, pass := range []struct {
		typ    string
		prefix string
		name   string
	}{
		{bikeshare.StationTypeStart, "START", bikeshare.StartStationName},
		{bikeshare.StationTypeEnd, "END", bikeshare.EndStationName},
	} {
		keyCols := []string{pass.name, pass.prefix + "_YEAR", pass.prefix + "_MONTH", pass.prefix + "_DAY", pass.prefix + "_HOUR", bikeshare.UserType}
		groups, skipped, err := groupDurations(trips, keyCols)
		if err != nil {
			return nil, nil, errors.Wrap(err, stage)
		}
		if skipped > 0 {
			a.log.Printf("%s: %d trips without a complete %s station and time", stage, skipped, pass.typ)
			a.stats.Count("aggregate.incomplete_trips", int64(skipped), 1, "station_type:"+pass.typ)
		}
		for _, g := range groups {
			lo, median, mean, hi := g.d.summary()
			vals := append(append([]interface{}{}, g.key...), pass.typ, int64(g.d.count()), lo, median, mean, hi)
			if err := hourly.Append(vals...); err != nil {
				return nil, nil, errors.Wrap(err, stage)
			}
		}
	}
	numTrips := hourly.Index(bikeshare.NumTrips)
	hourly.SortStable(func(x, y []interface{}) bool {
		if c := bikeshare.Compare(x[numTrips], y[numTrips]); c != 0 {
			return c > 0
		}
		for k := 0; k < numTrips; k++ {
			if c := bikeshare.Compare(x[k], y[k]); c != 0 {
				return c < 0
			}
		}
		return false
	})

	merged, dropped, err := bikeshare.Join(hourly, stations, bikeshare.StationName, bikeshare.Name, bikeshare.InnerJoin)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "%s: merging stations", stage)
	}
	jm := a.mismatch(bikeshare.ContractStationHourly, hourly, bikeshare.StationName, stations, bikeshare.Name, dropped)
	merged, err = Tag(merged, src)
	if err != nil {
		return nil, nil, errors.Wrap(err, stage)
	}
	out, err := a.conform(stage, bikeshare.ContractStationHourly, merged)
	return out, jm, err
}

type durationGroup struct {
	key []interface{}
	d   durations
}

// groupDurations groups the TRIP_DURATION of every trip by keyCols, in order
// of first appearance. Trips with a null key value are skipped and counted.
func groupDurations(trips *bikeshare.Table, keyCols []string) ([]*durationGroup, int, error) {
	idx, err := indexes(trips, keyCols)
	if err != nil {
		return nil, 0, err
	}
	dur := trips.Index(bikeshare.TripDuration)
	if dur < 0 {
		return nil, 0, errors.Errorf("table '%s' has no column '%s'", trips.Name(), bikeshare.TripDuration)
	}
	byKey := make(map[string]*durationGroup)
	var groups []*durationGroup
	skipped := 0
	key := make([]interface{}, len(idx))
rows:
	for i := 0; i < trips.Len(); i++ {
		row := trips.Row(i)
		for k, j := range idx {
			if row[j] == nil {
				skipped++
				continue rows
			}
			key[k] = row[j]
		}
		kk := bikeshare.Key(key...)
		g, ok := byKey[kk]
		if !ok {
			g = &durationGroup{key: append([]interface{}{}, key...)}
			byKey[kk] = g
			groups = append(groups, g)
		}
		d, _ := bikeshare.AsFloat(row[dur])
		g.d.add(d)
	}
	return groups, skipped, nil
}

// MergeTripsStations attaches the reduced station statistics of each trip's
// start station. Trips whose start station has no metadata are dropped and
// reported in the returned JoinMismatch.
func (a *Aggregator) MergeTripsStations(trips, stations *bikeshare.Table) (*bikeshare.Table, *bikeshare.JoinMismatch, error) {
	stage := "merging trips and stations"
	if err := a.trips.Validate(trips); err != nil {
		return nil, nil, errors.Wrapf(err, "%s: validating input", stage)
	}
	if err := a.reg.Validate(bikeshare.ContractStationStatsReduced, stations); err != nil {
		return nil, nil, errors.Wrapf(err, "%s: validating input", stage)
	}
	merged, dropped, err := bikeshare.Join(trips, stations, bikeshare.StartStationName, bikeshare.Name, bikeshare.InnerJoin)
	if err != nil {
		return nil, nil, errors.Wrap(err, stage)
	}
	jm := a.mismatch(bikeshare.ContractTripsStations, trips, bikeshare.StartStationName, stations, bikeshare.Name, dropped)
	out, err := a.conform(stage, bikeshare.ContractTripsStations, merged)
	return out, jm, err
}

var areaHourlyKey = []string{
	bikeshare.AreaName, bikeshare.UserType,
	bikeshare.StartYear, bikeshare.StartMonth, bikeshare.StartWeekday, bikeshare.StartHour,
}

type areaGroup struct {
	key      []interface{}
	duration int64
	trips    int64
	stations map[interface{}]struct{}
	docks    int64
	payments [4]int64
	colleges interface{}
}

var paymentColumns = [4]string{bikeshare.PhysicalKey, bikeshare.TransitCard, bikeshare.CreditCard, bikeshare.Phone}

// AreaHourly aggregates merged trips per neighbourhood, user type and start
// hour: total duration, number of trips, distinct start stations, docks
// (summed capacity), trips per payment method and the neighbourhood's
// college count. Rows are ordered by grouping key and tagged with src.
func (a *Aggregator) AreaHourly(merged *bikeshare.Table, src SourceInfo) (*bikeshare.Table, error) {
	stage := "aggregating area hours"
	if err := a.reg.Validate(bikeshare.ContractTripsStations, merged); err != nil {
		return nil, errors.Wrapf(err, "%s: validating input", stage)
	}
	keyIdx, err := indexes(merged, areaHourlyKey)
	if err != nil {
		return nil, errors.Wrap(err, stage)
	}
	valIdx, err := indexes(merged, []string{bikeshare.TripDuration, bikeshare.StartStationName, bikeshare.Capacity, bikeshare.NeighCollegesUnivs})
	if err != nil {
		return nil, errors.Wrap(err, stage)
	}
	payIdx, err := indexes(merged, paymentColumns[:])
	if err != nil {
		return nil, errors.Wrap(err, stage)
	}

	byKey := make(map[string]*areaGroup)
	var groups []*areaGroup
	key := make([]interface{}, len(keyIdx))
	for i := 0; i < merged.Len(); i++ {
		row := merged.Row(i)
		for k, j := range keyIdx {
			key[k] = row[j]
		}
		kk := bikeshare.Key(key...)
		g, ok := byKey[kk]
		if !ok {
			g = &areaGroup{key: append([]interface{}{}, key...), stations: make(map[interface{}]struct{}), colleges: row[valIdx[3]]}
			byKey[kk] = g
			groups = append(groups, g)
		}
		d, _ := bikeshare.AsInt(row[valIdx[0]])
		g.duration += d
		g.trips++
		g.stations[row[valIdx[1]]] = struct{}{}
		c, _ := bikeshare.AsInt(row[valIdx[2]])
		g.docks += c
		for k, j := range payIdx {
			p, _ := bikeshare.AsInt(row[j])
			g.payments[k] += p
		}
	}

	out := bikeshare.NewTable(bikeshare.ContractAreaHourly, append(append([]string{}, areaHourlyKey...),
		bikeshare.TripDuration, bikeshare.NumTrips, bikeshare.NumStations, bikeshare.NumDocks,
		bikeshare.NumTripsPhysicalKey, bikeshare.NumTripsTransitCard, bikeshare.NumTripsCreditCard, bikeshare.NumTripsPhone,
		bikeshare.NeighCollegesUnivs)...)
	for _, g := range groups {
		vals := append(append([]interface{}{}, g.key...),
			g.duration, g.trips, int64(len(g.stations)), g.docks,
			g.payments[0], g.payments[1], g.payments[2], g.payments[3],
			g.colleges)
		if err := out.Append(vals...); err != nil {
			return nil, errors.Wrap(err, stage)
		}
	}
	nkey := len(areaHourlyKey)
	out.SortStable(func(x, y []interface{}) bool {
		for k := 0; k < nkey; k++ {
			if c := bikeshare.Compare(x[k], y[k]); c != 0 {
				return c < 0
			}
		}
		return false
	})
	out, err = Tag(out, src)
	if err != nil {
		return nil, errors.Wrap(err, stage)
	}
	return a.conform(stage, bikeshare.ContractAreaHourly, out)
}
