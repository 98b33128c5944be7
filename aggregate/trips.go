package aggregate

import (
	"time"
	// date parts need America/Toronto even without a system zoneinfo
	_ "time/tzdata"

	"github.com/pilosa/bikeshare"
	"github.com/pkg/errors"
)

// TripReport counts the rows ProcessTrips removed.
type TripReport struct {
	Input       int
	NullDropped int
	Duplicates  int
	Output      int
}

// ProcessTrips validates raw trips, drops trips with nulls in the configured
// columns, removes duplicates keeping the first occurrence and adds the date
// part columns of START_TIME and END_TIME in the Aggregator's location.
func (a *Aggregator) ProcessTrips(raw *bikeshare.Table) (*bikeshare.Table, TripReport, error) {
	rep := TripReport{Input: raw.Len()}
	if err := a.reg.Validate(bikeshare.ContractTripsRaw, raw); err != nil {
		return nil, rep, errors.Wrap(err, "processing trips: validating input")
	}
	nullIdx, err := indexes(raw, a.nullCols)
	if err != nil {
		return nil, rep, errors.Wrap(err, "processing trips")
	}
	dupIdx, err := indexes(raw, a.dupCols)
	if err != nil {
		return nil, rep, errors.Wrap(err, "processing trips")
	}

	seen := make(map[string]struct{}, raw.Len())
	key := make([]interface{}, len(dupIdx))
	trips := raw.Filter(func(i int, row []interface{}) bool {
		for _, j := range nullIdx {
			if row[j] == nil {
				rep.NullDropped++
				return false
			}
		}
		for k, j := range dupIdx {
			key[k] = row[j]
		}
		kk := bikeshare.Key(key...)
		if _, dup := seen[kk]; dup {
			rep.Duplicates++
			return false
		}
		seen[kk] = struct{}{}
		return true
	})

	for _, p := range []struct{ time, prefix string }{
		{bikeshare.StartTime, "START"},
		{bikeshare.EndTime, "END"},
	} {
		trips, err = a.addDateParts(trips, p.time, p.prefix)
		if err != nil {
			return nil, rep, errors.Wrap(err, "processing trips")
		}
	}
	rep.Output = trips.Len()
	a.stats.Count("trips.null_dropped", int64(rep.NullDropped), 1)
	a.stats.Count("trips.duplicates", int64(rep.Duplicates), 1)
	a.log.Printf("trips: kept %d of %d rows, dropped %d with nulls in %v and %d duplicates on %v",
		rep.Output, rep.Input, rep.NullDropped, a.nullCols, rep.Duplicates, a.dupCols)

	out, err := a.trips.Conform(trips)
	if err != nil {
		return nil, rep, errors.Wrap(err, "processing trips: validating output")
	}
	return out.Named(bikeshare.ContractTrips), rep, nil
}

// addDateParts appends <prefix>_YEAR, _MONTH, _DAY, _HOUR and _WEEKDAY
// computed from the timestamp column col. A null timestamp gives null parts.
func (a *Aggregator) addDateParts(t *bikeshare.Table, col, prefix string) (*bikeshare.Table, error) {
	j := t.Index(col)
	if j < 0 {
		return nil, errors.Errorf("table '%s' has no column '%s'", t.Name(), col)
	}
	local := func(row []interface{}) (time.Time, bool) {
		ts, ok := bikeshare.AsTime(row[j])
		return ts.In(a.loc), ok
	}
	parts := []struct {
		suffix string
		fn     func(time.Time) interface{}
	}{
		{"_YEAR", func(ts time.Time) interface{} { return int64(ts.Year()) }},
		{"_MONTH", func(ts time.Time) interface{} { return int64(ts.Month()) }},
		{"_DAY", func(ts time.Time) interface{} { return int64(ts.Day()) }},
		{"_HOUR", func(ts time.Time) interface{} { return int64(ts.Hour()) }},
		{"_WEEKDAY", func(ts time.Time) interface{} { return ts.Weekday().String() }},
	}
	var err error
	for _, p := range parts {
		fn := p.fn
		t, err = t.AddColumn(prefix+p.suffix, func(i int, row []interface{}) interface{} {
			ts, ok := local(row)
			if !ok {
				return nil
			}
			return fn(ts)
		})
		if err != nil {
			return nil, err
		}
	}
	return t, nil
}

func indexes(t *bikeshare.Table, cols []string) ([]int, error) {
	ret := make([]int, len(cols))
	for k, c := range cols {
		if ret[k] = t.Index(c); ret[k] < 0 {
			return nil, errors.Errorf("table '%s' has no column '%s'", t.Name(), c)
		}
	}
	return ret, nil
}
