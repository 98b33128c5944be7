// Package ridership runs the complete bike share pipeline: it enriches the
// point datasets with their neighbourhoods, aggregates them, turns every new
// or updated monthly trip file into ridership aggregates and folds those
// into the persisted store.
package ridership

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/pilosa/bikeshare"
	"github.com/pilosa/bikeshare/aggregate"
	"github.com/pilosa/bikeshare/aws/s3"
	"github.com/pilosa/bikeshare/csv"
	"github.com/pilosa/bikeshare/enrich"
	"github.com/pilosa/bikeshare/promstat"
	"github.com/pilosa/bikeshare/spatial"
	"github.com/pilosa/bikeshare/sqlite"
	"github.com/pilosa/bikeshare/store"
	"github.com/pilosa/bikeshare/validate"
	"github.com/pkg/errors"
	"golang.org/x/text/encoding/charmap"
)

// Granularities accepted by Main.
const (
	Full    = "full"
	Reduced = "reduced"
)

// Main holds the configuration of a pipeline run.
type Main struct {
	NeighbourhoodsFile string `help:"GeoJSON FeatureCollection of neighbourhood polygons."`
	StationsFile       string `help:"CSV file of bike share stations."`
	InstitutionsFile   string `help:"CSV file of colleges and universities. Empty uses the built in Toronto list."`
	TransitStopsFile   string `help:"CSV file of transit stops. Full granularity only."`
	POIsFile           string `help:"CSV file of places of interest. Full granularity only."`
	HotspotsFile       string `help:"CSV file of cultural hotspots. Full granularity only."`
	DemographicsFile   string `help:"CSV file of neighbourhood demographics. Full granularity only."`
	CRS                int    `help:"EPSG code of every input coordinate."`

	RawDir string `help:"Directory of raw monthly trip CSVs. Outdated files are downloaded here when a bucket is set."`
	Bucket string `help:"S3 bucket holding the raw trip files. Empty uses the files in raw-dir as they are."`
	Prefix string `help:"Key prefix of the raw trip files in the bucket."`
	Region string `help:"AWS region of the bucket."`

	StorePath         string `help:"Parquet file of the persisted ridership aggregate."`
	NeighbourhoodsOut string `help:"Parquet file the neighbourhood aggregate is written to. Empty skips it."`
	StationsOut       string `help:"Parquet file the station statistics are written to. Empty skips it."`
	ExportDir         string `help:"Directory chunked csv.gz copies of the store are written to. Empty skips them."`
	ChunkRows         int    `help:"Maximum rows per exported chunk."`
	SQLitePath        string `help:"SQLite database the aggregates are copied to. Empty skips it."`
	MetricsFile       string `help:"Prometheus textfile the run's metrics are written to. Empty skips it."`

	Granularity            string   `help:"Aggregate granularity: full (station hours) or reduced (neighbourhood hours)."`
	ValidYears             []string `help:"Years trip start times must fall in."`
	NullColumns            []string `help:"Trip columns which must not be null. START_STATION_NAME is always required."`
	DuplicateColumns       []string `help:"Trip columns identifying a duplicate trip. The first occurrence is kept."`
	ExpectedNeighbourhoods int      `help:"Number of neighbourhoods the polygons must yield."`
	Concurrency            int      `help:"Number of files read concurrently."`
	Verbose                bool     `help:"Enable verbose logging."`

	log    bikeshare.Logger
	stats  bikeshare.Statter
	s3opts []s3.SrcOption
}

// NewMain gets a new Main with the default configuration.
func NewMain() *Main {
	return &Main{
		CRS:                    spatial.WGS84,
		RawDir:                 "raw",
		StorePath:              "ridership.parquet",
		ChunkRows:              100000,
		Granularity:            Full,
		ExpectedNeighbourhoods: validate.DefaultNeighbourhoodCount,
		Concurrency:            4,
		NullColumns:            []string{bikeshare.StartStationName},
		DuplicateColumns:       []string{bikeshare.TripID, bikeshare.StartTime},
		stats:                  bikeshare.NopStatter{},
	}
}

// Log returns the logger of the run.
func (m *Main) Log() bikeshare.Logger {
	if m.log == nil {
		m.log = bikeshare.NewLogger(log.New(os.Stderr, "", log.LstdFlags), m.Verbose)
	}
	return m.log
}

// SetLogger replaces the default stderr logger.
func (m *Main) SetLogger(l bikeshare.Logger) { m.log = l }

// SetStatter sets where the run's stats go in addition to the metrics file.
func (m *Main) SetStatter(s bikeshare.Statter) { m.stats = s }

// Report summarizes a run.
type Report struct {
	Neighbourhoods int
	Stations       int
	Sources        []store.SourceStatus
	Trips          []aggregate.TripReport
	Mismatches     []*bikeshare.JoinMismatch
	Warnings       []*bikeshare.ConsistencyWarning
	Update         store.UpdateReport
	// Batch is the number of aggregate rows computed in this run.
	Batch  int
	Chunks []string
}

// Run runs the pipeline.
func (m *Main) Run() error {
	_, err := m.RunContext(context.Background())
	return err
}

// run carries the state shared by the stages of one RunContext call.
type run struct {
	*Main
	ctx     context.Context
	reg     *bikeshare.Registry
	variant aggregate.Variant
	loc     *time.Location
	stats   bikeshare.Statter
	agg     *aggregate.Aggregator
	rep     *Report
}

// RunContext runs the pipeline and reports what it did. Join mismatches and
// consistency warnings are reported, not returned as errors.
func (m *Main) RunContext(ctx context.Context) (*Report, error) {
	start := time.Now()
	r, err := m.setup(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "setting up")
	}
	var prom *promstat.Collector
	if m.MetricsFile != "" {
		prom = promstat.NewCollector("bikeshare")
		r.stats = bikeshare.MultiStatter{r.stats, prom}
	}
	r.agg, err = aggregate.NewAggregator(r.reg,
		aggregate.OptLogger(m.Log()),
		aggregate.OptStatter(r.stats),
		aggregate.OptLocation(r.loc),
		aggregate.OptNullColumns(m.NullColumns...),
		aggregate.OptDuplicateColumns(m.DuplicateColumns...))
	if err != nil {
		return nil, errors.Wrap(err, "getting aggregator")
	}

	m.Log().Printf("aggregating neighbourhoods (%s)", r.variant.Name)
	neighbourhoods, stationStats, err := r.neighbourhoods()
	if err != nil {
		return r.rep, err
	}

	m.Log().Printf("planning refresh of %s", m.StorePath)
	statuses, err := r.plan()
	if err != nil {
		return r.rep, errors.Wrap(err, "planning refresh")
	}
	r.rep.Sources = statuses

	batch, err := r.aggregateTrips(statuses, stationStats)
	if err != nil {
		return r.rep, err
	}

	warnings := []*bikeshare.ConsistencyWarning{validate.NeighbourhoodCount(neighbourhoods, m.ExpectedNeighbourhoods)}
	if batch != nil {
		warnings = append(warnings, validate.UserTypes(batch))
	}
	if m.Bucket != "" {
		warnings = append(warnings, validate.DownloadStatus(batch, statuses))
	}
	r.rep.Warnings = append(r.rep.Warnings, validate.Report(m.Log(), r.stats, warnings...)...)

	if batch != nil {
		r.rep.Batch = batch.Len()
		up, err := store.NewUpdater(r.storeContract(),
			store.OptUpdaterLogger(m.Log()),
			store.OptUpdaterStatter(r.stats))
		if err != nil {
			return r.rep, errors.Wrap(err, "getting updater")
		}
		r.rep.Update, err = up.Update(m.StorePath, batch, m.StorePath)
		if err != nil {
			return r.rep, errors.Wrap(err, "updating store")
		}
	} else {
		m.Log().Printf("store %s is up to date", m.StorePath)
	}

	if err := r.export(neighbourhoods, stationStats); err != nil {
		return r.rep, errors.Wrap(err, "exporting")
	}
	r.stats.Timing("ridership.run", time.Since(start), 1, "granularity:"+r.variant.Name)
	if prom != nil {
		if err := prom.WriteTextfile(m.MetricsFile); err != nil {
			return r.rep, errors.Wrap(err, "writing metrics")
		}
	}
	m.Log().Printf("done in %v: %d aggregate rows from %d files", time.Since(start), r.rep.Batch, len(r.rep.Trips))
	return r.rep, nil
}

func (m *Main) setup(ctx context.Context) (*run, error) {
	var v aggregate.Variant
	switch m.Granularity {
	case Full:
		v = aggregate.FullVariant
	case Reduced:
		v = aggregate.ReducedVariant
	default:
		return nil, errors.Errorf("unknown granularity '%s', want %s or %s", m.Granularity, Full, Reduced)
	}
	if m.NeighbourhoodsFile == "" || m.StationsFile == "" {
		return nil, errors.New("neighbourhoods-file and stations-file are required")
	}
	if err := spatial.CheckCRS(m.CRS); err != nil {
		return nil, err
	}
	years := make([]int, len(m.ValidYears))
	for i, y := range m.ValidYears {
		n, err := strconv.Atoi(y)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing valid year '%s'", y)
		}
		years[i] = n
	}
	reg, err := bikeshare.NewDefaultRegistry(bikeshare.RegistryOptions{ValidYears: years})
	if err != nil {
		return nil, err
	}
	loc, err := time.LoadLocation(aggregate.TimeZone)
	if err != nil {
		return nil, errors.Wrap(err, "loading trip time zone")
	}
	stats := m.stats
	if stats == nil {
		stats = bikeshare.NopStatter{}
	}
	return &run{Main: m, ctx: ctx, reg: reg, variant: v, loc: loc, stats: stats, rep: &Report{}}, nil
}

func (r *run) storeContract() *bikeshare.Contract {
	name := bikeshare.ContractStationHourly
	if r.variant.Name == Reduced {
		name = bikeshare.ContractAreaHourly
	}
	c, _ := r.reg.Get(name)
	return c
}

// pointFile is a point dataset to read and the contract it decodes against.
type pointFile struct {
	path     string
	contract string
	kind     *enrich.Kind
}

func (r *run) pointFiles() ([]pointFile, error) {
	paths := map[string]string{
		enrich.Stations.Name:         r.StationsFile,
		enrich.Institutions.Name:     r.InstitutionsFile,
		enrich.TransitStops.Name:     r.TransitStopsFile,
		enrich.PointsOfInterest.Name: r.POIsFile,
		enrich.CulturalHotspots.Name: r.HotspotsFile,
	}
	var files []pointFile
	for _, k := range r.variant.Kinds() {
		k := k
		p := paths[k.Name]
		if p == "" {
			if k.Name == enrich.Institutions.Name {
				continue
			}
			return nil, errors.Errorf("%s granularity needs a %s file", r.variant.Name, k.Name)
		}
		files = append(files, pointFile{path: p, contract: k.Input, kind: &k})
	}
	if r.variant.Demographics {
		if r.DemographicsFile == "" {
			return nil, errors.Errorf("%s granularity needs a demographics file", r.variant.Name)
		}
		files = append(files, pointFile{path: r.DemographicsFile, contract: bikeshare.ContractDemographics})
	}
	return files, nil
}

// readPoints reads and decodes the point datasets and the demographics
// concurrently.
func (r *run) readPoints() ([]enrich.Input, *bikeshare.Table, error) {
	files, err := r.pointFiles()
	if err != nil {
		return nil, nil, err
	}
	urls := make([]string, len(files))
	for i, f := range files {
		urls[i] = f.path
	}
	src := csv.NewSource(csv.WithURLs(urls), csv.WithConcurrency(r.Concurrency), csv.WithLogger(r.Log()))
	read, err := src.ReadAll(r.ctx)
	if err != nil {
		return nil, nil, errors.Wrap(err, "reading point datasets")
	}

	var inputs []enrich.Input
	var demographics *bikeshare.Table
	for i, f := range files {
		c, err := r.reg.Get(f.contract)
		if err != nil {
			return nil, nil, err
		}
		t, err := csv.NewDecoder(c, r.loc).Decode(read[i].Table)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "decoding %s", f.path)
		}
		if f.kind == nil {
			demographics = t
			continue
		}
		inputs = append(inputs, enrich.Input{Kind: *f.kind, Table: t})
	}
	if r.InstitutionsFile == "" {
		r.Log().Printf("no institutions file, using the built in list")
		inputs = append(inputs, enrich.Input{Kind: enrich.Institutions, Table: enrich.DefaultInstitutions()})
	}
	return inputs, demographics, nil
}

// neighbourhoods computes the neighbourhood aggregate and the station
// statistics derived from it, and writes them if asked to.
func (r *run) neighbourhoods() (*bikeshare.Table, *bikeshare.Table, error) {
	f, err := os.Open(r.NeighbourhoodsFile)
	if err != nil {
		return nil, nil, errors.Wrap(err, "opening neighbourhoods")
	}
	polygons, err := spatial.ReadNeighbourhoods(f, bikeshare.ContractNeighbourhoods)
	f.Close()
	if err != nil {
		return nil, nil, errors.Wrapf(err, "reading %s", r.NeighbourhoodsFile)
	}

	inputs, demographics, err := r.readPoints()
	if err != nil {
		return nil, nil, err
	}
	e, err := enrich.NewEnricher(r.reg, polygons,
		enrich.OptLogger(r.Log()),
		enrich.OptStatter(r.stats),
		enrich.OptCRS(r.CRS))
	if err != nil {
		return nil, nil, errors.Wrap(err, "getting enricher")
	}
	enriched, err := e.EnrichAll(r.ctx, inputs...)
	if err != nil {
		return nil, nil, errors.Wrap(err, "enriching")
	}

	neighbourhoods, err := r.agg.Neighbourhoods(polygons, enriched, demographics, r.variant)
	if err != nil {
		return nil, nil, err
	}
	r.rep.Neighbourhoods = neighbourhoods.Len()
	stationStats, err := r.agg.StationNeighbourhoods(enrich.Find(enriched, enrich.Stations), neighbourhoods, r.variant)
	if err != nil {
		return nil, nil, err
	}
	r.rep.Stations = stationStats.Len()

	outputs := []struct {
		path     string
		t        *bikeshare.Table
		contract string
	}{
		{r.NeighbourhoodsOut, neighbourhoods, r.variant.Contract},
		{r.StationsOut, stationStats, r.variant.StatsContract},
	}
	for _, o := range outputs {
		if o.path == "" {
			continue
		}
		c, err := r.reg.Get(o.contract)
		if err != nil {
			return nil, nil, err
		}
		if err := store.WriteFile(o.path, o.t, c); err != nil {
			return nil, nil, errors.Wrapf(err, "writing %s", o.contract)
		}
	}
	return neighbourhoods, stationStats, nil
}

// listSources lists the raw trip files of the bucket, or of RawDir when no
// bucket is set. The RawSource is nil for local files.
func (m *Main) listSources() ([]bikeshare.SourceFile, *s3.RawSource, error) {
	if m.Bucket == "" {
		sources, err := localSources(m.RawDir)
		return sources, nil, err
	}
	opts := append([]s3.SrcOption{
		s3.OptSrcRegion(m.Region),
		s3.OptSrcPrefix(m.Prefix),
		s3.OptSrcSuffix(".csv"),
	}, m.s3opts...)
	rs, err := s3.NewRawSource(m.Bucket, opts...)
	if err != nil {
		return nil, nil, errors.Wrap(err, "listing bucket")
	}
	return rs.Files(), rs, nil
}

// Status reports which raw sources the next run would recompute. Nothing is
// downloaded.
func (m *Main) Status() ([]store.SourceStatus, error) {
	sources, _, err := m.listSources()
	if err != nil {
		return nil, err
	}
	return store.Plan(m.StorePath, sources, m.RawDir)
}

// plan lists the raw sources, decides which need recomputing and downloads
// those when they come from a bucket.
func (r *run) plan() ([]store.SourceStatus, error) {
	if err := os.MkdirAll(r.RawDir, 0755); err != nil {
		return nil, errors.Wrap(err, "making raw dir")
	}
	sources, rs, err := r.listSources()
	if err != nil {
		return nil, err
	}

	statuses, err := store.Plan(r.StorePath, sources, r.RawDir)
	if err != nil {
		return nil, err
	}
	for i := range statuses {
		st := &statuses[i]
		r.Log().Debugf("%s: %s", st.Source.Name, st.Reason())
		if !st.Refresh {
			continue
		}
		r.stats.Count("ridership.refresh", 1, 1, "reason:"+st.Reason())
		if rs == nil {
			continue
		}
		r.Log().Printf("downloading %s (%s)", st.Source.Name, st.Reason())
		if _, err := rs.Download(r.ctx, st.Source.Name, r.RawDir); err != nil {
			return nil, errors.Wrapf(err, "downloading %s", st.Source.Name)
		}
		st.Downloaded = true
		st.RawExists = true
	}
	return statuses, nil
}

// localSources lists the CSVs of dir, using their modification times
// truncated to the second like S3's.
func localSources(dir string) ([]bikeshare.SourceFile, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return nil, errors.Wrap(err, "listing raw dir")
	}
	sort.Strings(paths)
	ret := make([]bikeshare.SourceFile, 0, len(paths))
	for _, p := range paths {
		fi, err := os.Stat(p)
		if err != nil {
			return nil, errors.Wrap(err, "statting raw file")
		}
		ret = append(ret, bikeshare.SourceFile{Name: filepath.Base(p), LastModified: fi.ModTime().UTC().Truncate(time.Second)})
	}
	return ret, nil
}

// aggregateTrips turns every refreshed raw file into aggregate rows. It
// returns nil when nothing needed refreshing.
func (r *run) aggregateTrips(statuses []store.SourceStatus, stationStats *bikeshare.Table) (*bikeshare.Table, error) {
	var refresh []store.SourceStatus
	var urls []string
	for _, st := range statuses {
		if st.Refresh && st.RawExists {
			refresh = append(refresh, st)
			urls = append(urls, filepath.Join(r.RawDir, st.Source.Base()))
		}
	}
	if len(refresh) == 0 {
		return nil, nil
	}
	r.Log().Printf("reading %d raw trip files", len(refresh))
	src := csv.NewSource(
		csv.WithURLs(urls),
		csv.WithEncoding(charmap.Windows1252),
		csv.WithConcurrency(r.Concurrency),
		csv.WithLogger(r.Log()))
	files, err := src.ReadAll(r.ctx)
	if err != nil {
		return nil, errors.Wrap(err, "reading raw trips")
	}
	rawContract, err := r.reg.Get(bikeshare.ContractTripsRaw)
	if err != nil {
		return nil, err
	}
	dec := csv.NewDecoder(rawContract, r.loc)

	contract := r.storeContract()
	outs := make([]*bikeshare.Table, 0, len(files))
	for i, f := range files {
		st := refresh[i]
		raw, err := dec.Decode(f.Table)
		if err != nil {
			return nil, errors.Wrapf(err, "decoding %s", st.Source.Name)
		}
		trips, tr, err := r.agg.ProcessTrips(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "processing %s", st.Source.Name)
		}
		r.rep.Trips = append(r.rep.Trips, tr)

		src := aggregate.SourceInfo{File: st.Source, Downloaded: st.Downloaded}
		var out *bikeshare.Table
		var jm *bikeshare.JoinMismatch
		if r.variant.Name == Reduced {
			var merged *bikeshare.Table
			merged, jm, err = r.agg.MergeTripsStations(trips, stationStats)
			if err != nil {
				return nil, errors.Wrapf(err, "merging %s", st.Source.Name)
			}
			r.rep.Warnings = append(r.rep.Warnings, validate.Report(r.Log(), r.stats,
				validate.StationIDs(merged), validate.UniqueStationIDs(merged))...)
			out, err = r.agg.AreaHourly(merged, src)
		} else {
			out, jm, err = r.agg.StationHourly(trips, stationStats, src)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "aggregating %s", st.Source.Name)
		}
		if jm != nil {
			r.rep.Mismatches = append(r.rep.Mismatches, jm)
		}
		outs = append(outs, out)
	}
	return bikeshare.Concat(contract.Name, outs...)
}

// export copies the store and the neighbourhood aggregates to the
// configured secondary outputs.
func (r *run) export(neighbourhoods, stationStats *bikeshare.Table) error {
	if r.ExportDir == "" && r.SQLitePath == "" {
		return nil
	}
	contract := r.storeContract()
	var stored *bikeshare.Table
	if _, err := os.Stat(r.StorePath); err == nil {
		stored, err = store.Read(r.StorePath, contract.Name)
		if err != nil {
			return err
		}
	}

	if r.ExportDir != "" && stored != nil {
		if err := os.MkdirAll(r.ExportDir, 0755); err != nil {
			return errors.Wrap(err, "making export dir")
		}
		chunks, err := csv.ExportChunks(r.ExportDir, csv.DefaultChunkPrefix, stored, contract.Names(), r.ChunkRows)
		if err != nil {
			return err
		}
		r.rep.Chunks = chunks
		r.Log().Printf("exported %d rows in %d chunks to %s", stored.Len(), len(chunks), r.ExportDir)
	}

	if r.SQLitePath != "" {
		db, err := sqlite.Open(r.SQLitePath)
		if err != nil {
			return err
		}
		defer db.Close()
		tables := []struct {
			t        *bikeshare.Table
			contract string
		}{
			{neighbourhoods, r.variant.Contract},
			{stationStats, r.variant.StatsContract},
			{stored, contract.Name},
		}
		for _, tc := range tables {
			if tc.t == nil {
				continue
			}
			c, err := r.reg.Get(tc.contract)
			if err != nil {
				return err
			}
			if err := sqlite.WriteTable(r.ctx, db, tc.t, c); err != nil {
				return errors.Wrapf(err, "copying %s to sqlite", tc.contract)
			}
		}
	}
	return nil
}
