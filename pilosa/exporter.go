package pilosa

import (
	"math"
	"time"

	"github.com/pilosa/bikeshare"
	"github.com/pkg/errors"
)

// Field names of the exported index.
const (
	FieldStation     = "station"
	FieldArea        = "neighbourhood"
	FieldUserType    = "user_type"
	FieldStationType = "station_type"
	FieldSource      = "source_file"
	FieldHour        = "hour"
	FieldNumTrips    = "num_trips"
	FieldDurationMin = "duration_min"
	FieldDurationMed = "duration_median"
	FieldDurationAvg = "duration_mean"
	FieldDurationMax = "duration_max"
	FieldCapacity    = "capacity"

	// columnField translates the grouping key of a row to its column id.
	columnField = "_row"
)

// keyed are the set fields whose row ids come from the translator.
var keyed = []struct {
	field  string
	column string
}{
	{FieldStation, bikeshare.StationName},
	{FieldArea, bikeshare.AreaName},
	{FieldUserType, bikeshare.UserType},
	{FieldStationType, bikeshare.StationType},
	{FieldSource, bikeshare.CSVFileColumn},
}

var values = []struct {
	field  string
	column string
}{
	{FieldNumTrips, bikeshare.NumTrips},
	{FieldDurationMin, bikeshare.DurationMin},
	{FieldDurationMed, bikeshare.DurationMedian},
	{FieldDurationAvg, bikeshare.DurationMean},
	{FieldDurationMax, bikeshare.DurationMax},
	{FieldCapacity, bikeshare.Capacity},
}

// Exporter writes station-hour aggregate rows to an Indexer. Each row is one
// column; its id is the translated grouping key, so exporting the same
// aggregate twice sets the same bits.
type Exporter struct {
	indexer    Indexer
	translator bikeshare.Translator
	loc        *time.Location
	log        bikeshare.Logger
	stats      bikeshare.Statter
}

// ExporterOption configures an Exporter.
type ExporterOption func(*Exporter)

// OptExporterLogger sets the logger.
func OptExporterLogger(l bikeshare.Logger) ExporterOption {
	return func(e *Exporter) { e.log = l }
}

// OptExporterStatter sets the statter.
func OptExporterStatter(s bikeshare.Statter) ExporterOption {
	return func(e *Exporter) { e.stats = s }
}

// OptExporterLocation sets the zone the YEAR/MONTH/DAY/HOUR columns are
// expressed in. It defaults to UTC.
func OptExporterLocation(loc *time.Location) ExporterOption {
	return func(e *Exporter) { e.loc = loc }
}

// NewExporter returns an Exporter writing to indexer.
func NewExporter(indexer Indexer, translator bikeshare.Translator, opts ...ExporterOption) *Exporter {
	e := &Exporter{
		indexer:    indexer,
		translator: translator,
		loc:        time.UTC,
		log:        bikeshare.NopLogger{},
		stats:      bikeshare.NopStatter{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var keyColumns = []string{
	bikeshare.SourceFileColumn, bikeshare.StationName, bikeshare.Year, bikeshare.Month,
	bikeshare.Day, bikeshare.Hour, bikeshare.UserType, bikeshare.StationType,
}

// Export writes every row of a station_hourly table and returns the number
// of rows exported. Null values are skipped; float statistics are rounded
// to whole seconds.
func (e *Exporter) Export(t *bikeshare.Table) (int, error) {
	for _, cols := range [][]string{keyColumns, {bikeshare.AreaName, bikeshare.CSVFileColumn, bikeshare.Capacity}} {
		for _, c := range cols {
			if !t.Has(c) {
				return 0, errors.Errorf("exporting '%s': missing column '%s'", t.Name(), c)
			}
		}
	}
	start := time.Now()
	key := make([]interface{}, len(keyColumns))
	for i := 0; i < t.Len(); i++ {
		for k, c := range keyColumns {
			key[k] = t.Value(i, c)
		}
		col, err := e.translator.GetID(columnField, bikeshare.Key(key...))
		if err != nil {
			return i, errors.Wrapf(err, "translating row %d", i)
		}
		for _, k := range keyed {
			s, ok := bikeshare.AsString(t.Value(i, k.column))
			if !ok {
				continue
			}
			row, err := e.translator.GetID(k.field, s)
			if err != nil {
				return i, errors.Wrapf(err, "translating %s '%s'", k.field, s)
			}
			e.indexer.AddColumn(k.field, col, row)
			if k.field == FieldStation {
				if ts, ok := e.hour(t, i); ok {
					e.indexer.AddColumnTimestamp(FieldHour, col, row, ts)
				}
			}
		}
		for _, v := range values {
			f, ok := bikeshare.AsFloat(t.Value(i, v.column))
			if !ok {
				continue
			}
			e.indexer.AddValue(v.field, col, int64(math.Round(f)))
		}
	}
	e.stats.Count("pilosa.exported_rows", int64(t.Len()), 1)
	e.stats.Timing("pilosa.export", time.Since(start), 1)
	e.log.Printf("exported %d rows of '%s'", t.Len(), t.Name())
	return t.Len(), nil
}

func (e *Exporter) hour(t *bikeshare.Table, i int) (time.Time, bool) {
	var parts [4]int64
	for k, c := range []string{bikeshare.Year, bikeshare.Month, bikeshare.Day, bikeshare.Hour} {
		v, ok := bikeshare.AsInt(t.Value(i, c))
		if !ok {
			return time.Time{}, false
		}
		parts[k] = v
	}
	return time.Date(int(parts[0]), time.Month(parts[1]), int(parts[2]), int(parts[3]), 0, 0, 0, e.loc), true
}
