// Package aggregate turns enriched point datasets and processed trips into
// the neighbourhood and ridership aggregates of the pipeline.
//
// Every method validates its inputs and its output against the contracts of
// the Aggregator's registry. Rows dropped by an inner join are never fatal:
// they are logged, counted and returned as a *bikeshare.JoinMismatch.
package aggregate

import (
	"time"

	"github.com/pilosa/bikeshare"
	"github.com/pkg/errors"
)

// TimeZone is the location trip date parts are computed in.
const TimeZone = "America/Toronto"

// maxSamples bounds the keys kept in a JoinMismatch.
const maxSamples = 5

// Aggregator computes aggregates. It holds no per-run state and is safe for
// concurrent use.
type Aggregator struct {
	reg   *bikeshare.Registry
	log   bikeshare.Logger
	stats bikeshare.Statter
	loc   *time.Location

	nullCols []string
	dupCols  []string
	// trips is the trips contract keyed by dupCols.
	trips *bikeshare.Contract
}

// Option configures an Aggregator.
type Option func(a *Aggregator)

// OptLogger sets the logger.
func OptLogger(l bikeshare.Logger) Option {
	return func(a *Aggregator) {
		a.log = l
	}
}

// OptStatter sets the statter dropped rows are counted in.
func OptStatter(s bikeshare.Statter) Option {
	return func(a *Aggregator) {
		a.stats = s
	}
}

// OptLocation sets the location of trip date parts.
func OptLocation(loc *time.Location) Option {
	return func(a *Aggregator) {
		a.loc = loc
	}
}

// OptNullColumns sets the trip columns which must not be null. Trips with a
// null in one of them are dropped. START_STATION_NAME is always among them.
func OptNullColumns(cols ...string) Option {
	return func(a *Aggregator) {
		a.nullCols = cols
	}
}

// OptDuplicateColumns sets the trip columns identifying a duplicate. They
// replace TRIP_ID+START_TIME as the unique key of processed trips.
func OptDuplicateColumns(cols ...string) Option {
	return func(a *Aggregator) {
		a.dupCols = cols
	}
}

// NewAggregator gets a new Aggregator.
func NewAggregator(reg *bikeshare.Registry, opts ...Option) (*Aggregator, error) {
	a := &Aggregator{
		reg:      reg,
		log:      bikeshare.NopLogger{},
		stats:    bikeshare.NopStatter{},
		nullCols: []string{bikeshare.StartStationName},
		dupCols:  []string{bikeshare.TripID, bikeshare.StartTime},
	}
	for _, opt := range opts {
		opt(a)
	}
	if !contains(a.nullCols, bikeshare.StartStationName) {
		a.nullCols = append([]string{bikeshare.StartStationName}, a.nullCols...)
	}
	if len(a.dupCols) == 0 {
		return nil, errors.New("no duplicate columns")
	}
	trips, err := reg.Get(bikeshare.ContractTrips)
	if err != nil {
		return nil, err
	}
	raw, err := reg.Get(bikeshare.ContractTripsRaw)
	if err != nil {
		return nil, err
	}
	a.trips = trips.WithoutKey(bikeshare.TripID, bikeshare.StartTime).WithKey(a.dupCols...)
	for _, c := range append(append([]string(nil), a.nullCols...), a.dupCols...) {
		if _, ok := raw.Column(c); !ok {
			return nil, errors.Errorf("unknown trip column '%s'", c)
		}
	}
	if a.loc == nil {
		loc, err := time.LoadLocation(TimeZone)
		if err != nil {
			return nil, errors.Wrap(err, "loading time zone")
		}
		a.loc = loc
	}
	return a, nil
}

// conform validates t against the named contract and returns its columns in
// contract order, named after the contract.
func (a *Aggregator) conform(stage, contract string, t *bikeshare.Table) (*bikeshare.Table, error) {
	out, err := a.reg.Conform(contract, t)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: validating output", stage)
	}
	return out.Named(contract), nil
}

// mismatch reports the rows of left whose key has no partner in right. It
// returns nil when there are none.
func (a *Aggregator) mismatch(dataset string, left *bikeshare.Table, leftKey string, right *bikeshare.Table, rightKey string, dropped int) *bikeshare.JoinMismatch {
	if dropped == 0 {
		return nil
	}
	known := make(map[interface{}]struct{}, right.Len())
	j := right.Index(rightKey)
	for i := 0; i < right.Len(); i++ {
		known[right.Row(i)[j]] = struct{}{}
	}
	jm := &bikeshare.JoinMismatch{Dataset: dataset, Key: leftKey, Dropped: dropped}
	seen := make(map[interface{}]struct{})
	k := left.Index(leftKey)
	for i := 0; i < left.Len() && len(jm.Samples) < maxSamples; i++ {
		v := left.Row(i)[k]
		if _, ok := known[v]; ok {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		jm.Samples = append(jm.Samples, v)
	}
	a.stats.Count("aggregate.join_dropped", int64(dropped), 1, "dataset:"+dataset)
	a.log.Printf("%s: dropped %d rows without a partner on %s, e.g. %v", dataset, dropped, leftKey, jm.Samples)
	return jm
}

func contains(cols []string, col string) bool {
	for _, c := range cols {
		if c == col {
			return true
		}
	}
	return false
}
